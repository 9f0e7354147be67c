package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/biofleet/biofleet-core/internal/infrastructure/config"
	"github.com/biofleet/biofleet-core/internal/infrastructure/database"
)

func testRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "audit.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestRecordAndList(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	entry := &Entry{
		Action:     ActionCreate,
		EntityType: EntityDevice,
		EntityID:   "dev-1",
		RemoteAddr: "192.168.1.50",
		Details:    map[string]any{"name": "Lobby", "ip": "10.0.0.5"},
	}
	if err := repo.Record(ctx, entry); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if entry.ID == "" || entry.CreatedAt.IsZero() {
		t.Error("expected generated ID and timestamp")
	}

	res, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if res.Total != 1 || len(res.Entries) != 1 {
		t.Fatalf("expected one entry, got total=%d len=%d", res.Total, len(res.Entries))
	}

	got := res.Entries[0]
	if got.Action != ActionCreate || got.EntityType != EntityDevice || got.EntityID != "dev-1" {
		t.Errorf("unexpected entry: %+v", got)
	}
	if got.Details["name"] != "Lobby" {
		t.Errorf("details not round-tripped: %v", got.Details)
	}
}

func TestList_Filtered(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	seed := []*Entry{
		{Action: ActionCreate, EntityType: EntityDevice, EntityID: "dev-1"},
		{Action: ActionDelete, EntityType: EntityDevice, EntityID: "dev-1"},
		{Action: ActionStart, EntityType: EntityListener},
		{Action: ActionCreate, EntityType: EntityUser, EntityID: "7"},
	}
	for _, e := range seed {
		if err := repo.Record(ctx, e); err != nil {
			t.Fatalf("Record returned error: %v", err)
		}
	}

	res, err := repo.List(ctx, Filter{EntityType: EntityDevice})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if res.Total != 2 {
		t.Errorf("expected 2 device entries, got %d", res.Total)
	}

	res, err = repo.List(ctx, Filter{Action: ActionCreate, EntityType: EntityUser})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if res.Total != 1 || res.Entries[0].EntityID != "7" {
		t.Errorf("unexpected filtered result: %+v", res)
	}
}

func TestList_PaginationAndOrder(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		e := &Entry{
			Action:     ActionUpdate,
			EntityType: EntityDevice,
			EntityID:   "dev-1",
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		}
		if err := repo.Record(ctx, e); err != nil {
			t.Fatalf("Record returned error: %v", err)
		}
	}

	res, err := repo.List(ctx, Filter{Limit: 2})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if res.Total != 5 || len(res.Entries) != 2 {
		t.Fatalf("expected total 5 page 2, got total=%d len=%d", res.Total, len(res.Entries))
	}
	// Most recent first.
	if !res.Entries[0].CreatedAt.After(res.Entries[1].CreatedAt) {
		t.Error("entries not ordered most recent first")
	}

	res, err = repo.List(ctx, Filter{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(res.Entries) != 1 {
		t.Errorf("expected final page of 1, got %d", len(res.Entries))
	}
}

func TestList_Empty(t *testing.T) {
	repo := testRepo(t)

	res, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if res.Entries == nil || len(res.Entries) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", res.Entries)
	}
}
