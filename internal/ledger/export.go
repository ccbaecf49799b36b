package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
)

// ExportCSV streams matching records as a flat CSV table for compliance
// export. Pagination is handled internally; the filter's Limit/Offset are
// ignored.
func (s *Store) ExportCSV(ctx context.Context, w io.Writer, ownerID string, f Filter) error {
	cw := csv.NewWriter(w)
	header := []string{"id", "created_at", "trigger_type", "policy_id",
		"result", "actions", "error", "related_action_id", "undone_at"}
	if err := cw.Write(header); err != nil {
		return err
	}

	const page = 500
	f.Limit = page
	f.Offset = 0
	for {
		records, _, err := s.Query(ctx, ownerID, f)
		if err != nil {
			return fmt.Errorf("export query: %w", err)
		}
		for _, r := range records {
			var actions []string
			for _, a := range r.ActionsTaken {
				actions = append(actions, string(a.Type))
			}
			policyID, relatedID, undoneAt := "", "", ""
			if r.PolicyID != nil {
				policyID = r.PolicyID.String()
			}
			if r.RelatedActionID != nil {
				relatedID = r.RelatedActionID.String()
			}
			if r.UndoneAt != nil {
				undoneAt = r.UndoneAt.UTC().Format(time.RFC3339)
			}
			row := []string{
				r.ID.String(),
				r.CreatedAt.UTC().Format(time.RFC3339),
				string(r.TriggerType),
				policyID,
				string(r.Result),
				strings.Join(actions, ";"),
				r.Error,
				relatedID,
				undoneAt,
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		if len(records) < page {
			break
		}
		f.Offset += page
	}

	cw.Flush()
	return cw.Error()
}
