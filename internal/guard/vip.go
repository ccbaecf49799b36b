package guard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stewardhq/steward/internal/domain"
	"github.com/stewardhq/steward/internal/policy"
)

// ErrVIPNotFound means no VIP contact with that id/address for the owner.
var ErrVIPNotFound = errors.New("vip contact not found")

// vipCacheTTL bounds staleness of the per-owner address set in Redis.
// Evaluations batch-load the set once anyway; the cache just keeps bursty
// inboxes from hammering Postgres.
const vipCacheTTL = 30 * time.Second

// VIPStore manages VIP contacts with a Redis read-through cache for the
// address set. The Redis client is optional; nil degrades to Postgres-only.
type VIPStore struct {
	db    *sql.DB
	redis *redis.Client
}

// NewVIPStore creates a VIP store. redisClient may be nil.
func NewVIPStore(db *sql.DB, redisClient *redis.Client) *VIPStore {
	return &VIPStore{db: db, redis: redisClient}
}

func vipSetKey(ownerID string) string {
	return "steward:vips:" + ownerID
}

// VIPAddresses returns the owner's VIP address set, lowercase. Loaded once
// per evaluation batch by the policy selector.
func (s *VIPStore) VIPAddresses(ctx context.Context, ownerID string) (policy.VIPSet, error) {
	if s.redis != nil {
		members, err := s.redis.SMembers(ctx, vipSetKey(ownerID)).Result()
		if err == nil && len(members) > 0 {
			set := make(policy.VIPSet, len(members))
			for _, m := range members {
				if m == "\x00" { // empty-set marker
					return policy.VIPSet{}, nil
				}
				set[m] = struct{}{}
			}
			return set, nil
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT address FROM steward_vip_contacts WHERE owner_id = $1`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := policy.VIPSet{}
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, err
		}
		set[strings.ToLower(addr)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if s.redis != nil {
		members := make([]any, 0, len(set)+1)
		for addr := range set {
			members = append(members, addr)
		}
		if len(members) == 0 {
			// Cache the empty set too, or every non-VIP mail misses.
			members = append(members, "\x00")
		}
		pipe := s.redis.Pipeline()
		pipe.SAdd(ctx, vipSetKey(ownerID), members...)
		pipe.Expire(ctx, vipSetKey(ownerID), vipCacheTTL)
		if _, err := pipe.Exec(ctx); err != nil {
			log.Printf("[VIPStore] cache write failed: %v", err)
		}
	}
	return set, nil
}

func (s *VIPStore) invalidate(ctx context.Context, ownerID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, vipSetKey(ownerID)).Err(); err != nil {
		log.Printf("[VIPStore] cache invalidate failed: %v", err)
	}
}

const vipColumns = `id, owner_id, address, COALESCE(display_name,''), tier,
	notify_immediately, bypass_policies, interaction_count, last_interaction_at, created_at`

func scanVIP(row interface{ Scan(...any) error }) (*domain.VIPContact, error) {
	var v domain.VIPContact
	if err := row.Scan(&v.ID, &v.OwnerID, &v.Address, &v.DisplayName, &v.Tier,
		&v.NotifyImmediately, &v.BypassPolicies, &v.InteractionCount,
		&v.LastInteractionAt, &v.CreatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}

// Find returns the VIP contact matching the address, or ErrVIPNotFound.
func (s *VIPStore) Find(ctx context.Context, ownerID, address string) (*domain.VIPContact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+vipColumns+` FROM steward_vip_contacts
		WHERE owner_id = $1 AND LOWER(address) = LOWER($2)`,
		ownerID, strings.TrimSpace(address))
	v, err := scanVIP(row)
	if err == sql.ErrNoRows {
		return nil, ErrVIPNotFound
	}
	return v, err
}

// List returns the owner's VIP contacts.
func (s *VIPStore) List(ctx context.Context, ownerID string) ([]domain.VIPContact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+vipColumns+` FROM steward_vip_contacts
		WHERE owner_id = $1 ORDER BY address`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []domain.VIPContact
	for rows.Next() {
		v, err := scanVIP(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, *v)
	}
	return contacts, rows.Err()
}

// Create inserts a new VIP contact.
func (s *VIPStore) Create(ctx context.Context, v *domain.VIPContact) error {
	if v.Address == "" {
		return fmt.Errorf("vip contact: address required")
	}
	if v.Tier == "" {
		v.Tier = domain.VIPNormal
	}
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.Address = strings.ToLower(strings.TrimSpace(v.Address))
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO steward_vip_contacts
		(id, owner_id, address, display_name, tier, notify_immediately, bypass_policies)
		VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING created_at`,
		v.ID, v.OwnerID, v.Address, v.DisplayName, v.Tier,
		v.NotifyImmediately, v.BypassPolicies).Scan(&v.CreatedAt)
	if err != nil {
		return err
	}
	s.invalidate(ctx, v.OwnerID)
	return nil
}

// Delete removes a VIP contact.
func (s *VIPStore) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM steward_vip_contacts WHERE id = $1 AND owner_id = $2`,
		id, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVIPNotFound
	}
	s.invalidate(ctx, ownerID)
	return nil
}

// RecordInteraction bumps the contact's counter. This is the only mutation
// the matching path performs on VIP data.
func (s *VIPStore) RecordInteraction(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE steward_vip_contacts
		SET interaction_count = interaction_count + 1, last_interaction_at = NOW()
		WHERE id = $1`, id)
	return err
}
