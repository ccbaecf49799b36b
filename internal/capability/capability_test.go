package capability

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/stewardhq/steward/internal/domain"
)

func TestMinimumTierFor(t *testing.T) {
	standard := []domain.ActionType{
		domain.ActionArchiveMessage, domain.ActionMarkRead,
		domain.ActionFlagMessage, domain.ActionRespondToEvent,
	}
	for _, at := range standard {
		if got := MinimumTierFor(at); got != domain.TierStandard {
			t.Errorf("MinimumTierFor(%s) = %s, want standard", at, got)
		}
	}

	full := []domain.ActionType{
		domain.ActionSendMessage, domain.ActionReplyMessage, domain.ActionForwardMessage,
		domain.ActionDeleteMessage, domain.ActionScheduleEvent, domain.ActionCancelEvent,
	}
	for _, at := range full {
		if got := MinimumTierFor(at); got != domain.TierFull {
			t.Errorf("MinimumTierFor(%s) = %s, want full", at, got)
		}
	}
}

func TestCheck(t *testing.T) {
	if err := Check(domain.TierStandard, domain.ActionArchiveMessage); err != nil {
		t.Errorf("standard tier should cover archive: %v", err)
	}
	if err := Check(domain.TierFull, domain.ActionSendMessage); err != nil {
		t.Errorf("full tier should cover send: %v", err)
	}

	err := Check(domain.TierStandard, domain.ActionSendMessage)
	if !errors.Is(err, ErrInsufficientTier) {
		t.Errorf("err = %v, want ErrInsufficientTier", err)
	}
	if err := Check(domain.TierRead, domain.ActionMarkRead); !errors.Is(err, ErrInsufficientTier) {
		t.Errorf("read tier covers nothing, got %v", err)
	}
}

func TestOwnerTierDefaultsToRead(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	store := NewStore(db)

	mock.ExpectQuery("SELECT tier FROM steward_owner_tiers").
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{"tier"}))

	tier, err := store.OwnerTier(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("OwnerTier: %v", err)
	}
	if tier != domain.TierRead {
		t.Errorf("tier = %s, want read", tier)
	}
}

func TestSetOwnerTier(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	store := NewStore(db)

	mock.ExpectExec("INSERT INTO steward_owner_tiers").
		WithArgs("o1", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.SetOwnerTier(context.Background(), "o1", domain.TierFull); err != nil {
		t.Fatalf("SetOwnerTier: %v", err)
	}

	mock.ExpectQuery("SELECT tier FROM steward_owner_tiers").
		WithArgs("o1").
		WillReturnRows(sqlmock.NewRows([]string{"tier"}).AddRow(3))

	tier, err := store.OwnerTier(context.Background(), "o1")
	if err != nil {
		t.Fatalf("OwnerTier: %v", err)
	}
	if tier != domain.TierFull {
		t.Errorf("tier = %s, want full", tier)
	}
}
