package guard

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stewardhq/steward/internal/domain"
)

func setupVIP(t *testing.T) (*VIPStore, sqlmock.Sqlmock, *miniredis.Miniredis, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewVIPStore(db, client)
	return store, mock, mr, func() {
		client.Close()
		mr.Close()
		db.Close()
	}
}

func TestVIPAddressesCachesInRedis(t *testing.T) {
	store, mock, mr, cleanup := setupVIP(t)
	defer cleanup()

	mock.ExpectQuery("SELECT address FROM steward_vip_contacts").
		WithArgs("o1").
		WillReturnRows(sqlmock.NewRows([]string{"address"}).
			AddRow("boss@corp.example").AddRow("cfo@corp.example"))

	set, err := store.VIPAddresses(context.Background(), "o1")
	if err != nil {
		t.Fatalf("VIPAddresses: %v", err)
	}
	if len(set) != 2 || !set.Contains("Boss@Corp.Example") {
		t.Errorf("unexpected set: %v", set)
	}

	// Second read comes from Redis; no DB expectation registered.
	set2, err := store.VIPAddresses(context.Background(), "o1")
	if err != nil {
		t.Fatalf("cached VIPAddresses: %v", err)
	}
	if len(set2) != 2 {
		t.Errorf("cached set size = %d, want 2", len(set2))
	}

	// The cache expires rather than lingering forever.
	mr.FastForward(time.Minute)
	if mr.Exists(vipSetKey("o1")) {
		t.Error("cache key should have expired")
	}
}

func TestVIPAddressesCachesEmptySet(t *testing.T) {
	store, mock, _, cleanup := setupVIP(t)
	defer cleanup()

	mock.ExpectQuery("SELECT address FROM steward_vip_contacts").
		WithArgs("o1").
		WillReturnRows(sqlmock.NewRows([]string{"address"}))

	set, err := store.VIPAddresses(context.Background(), "o1")
	if err != nil {
		t.Fatalf("VIPAddresses: %v", err)
	}
	if len(set) != 0 {
		t.Errorf("set should be empty, got %v", set)
	}

	// The empty marker satisfies the second read without hitting Postgres.
	set, err = store.VIPAddresses(context.Background(), "o1")
	if err != nil {
		t.Fatalf("cached empty VIPAddresses: %v", err)
	}
	if len(set) != 0 {
		t.Errorf("cached empty set should stay empty, got %v", set)
	}
}

func TestVIPAddressesWithoutRedis(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	store := NewVIPStore(db, nil)

	mock.ExpectQuery("SELECT address FROM steward_vip_contacts").
		WithArgs("o1").
		WillReturnRows(sqlmock.NewRows([]string{"address"}).AddRow("boss@corp.example"))

	set, err := store.VIPAddresses(context.Background(), "o1")
	if err != nil {
		t.Fatalf("VIPAddresses: %v", err)
	}
	if !set.Contains("boss@corp.example") {
		t.Error("postgres-only path should still load the set")
	}
}

func TestFindNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	store := NewVIPStore(db, nil)

	mock.ExpectQuery("SELECT .* FROM steward_vip_contacts").
		WithArgs("o1", "ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err = store.Find(context.Background(), "o1", "ghost@example.com")
	if !errors.Is(err, ErrVIPNotFound) {
		t.Errorf("err = %v, want ErrVIPNotFound", err)
	}
}

func TestCreateInvalidatesCache(t *testing.T) {
	store, mock, mr, cleanup := setupVIP(t)
	defer cleanup()

	// Seed the cache.
	mr.SAdd(vipSetKey("o1"), "old@corp.example")

	mock.ExpectQuery("INSERT INTO steward_vip_contacts").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	contact := &domain.VIPContact{OwnerID: "o1", Address: "New@Corp.Example"}
	if err := store.Create(context.Background(), contact); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if contact.Address != "new@corp.example" {
		t.Errorf("address should be lowercased, got %q", contact.Address)
	}
	if mr.Exists(vipSetKey("o1")) {
		t.Error("cache should be invalidated after Create")
	}
}

func TestDeleteMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	store := NewVIPStore(db, nil)

	id := uuid.New()
	mock.ExpectExec("DELETE FROM steward_vip_contacts").
		WithArgs(id, "o1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Delete(context.Background(), "o1", id); !errors.Is(err, ErrVIPNotFound) {
		t.Errorf("err = %v, want ErrVIPNotFound", err)
	}
}
