package transcript

import (
	"context"
	"path/filepath"
	"testing"

	_ "github.com/nerrad567/modemsim/migrations"

	"github.com/nerrad567/modemsim/internal/events"
	"github.com/nerrad567/modemsim/internal/infrastructure/database"
	"github.com/nerrad567/modemsim/internal/infrastructure/logging"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "transcript.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	return NewStore(db.DB, logging.Default())
}

func TestStore_EmitAndRecent(t *testing.T) {
	store := newTestStore(t)

	rx := events.New(events.KindRX)
	rx.Line = "AT+CGMI"
	rx.Generation = 1
	store.Emit(rx)

	tx := events.New(events.KindTX)
	tx.Line = "AT+CGMI"
	tx.Reply = "fake-atc\nOK"
	tx.DelayMS = 100
	tx.Generation = 1
	store.Emit(tx)

	entries, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}

	// Newest first.
	if entries[0].Kind != string(events.KindTX) {
		t.Errorf("entries[0].Kind = %q, want tx", entries[0].Kind)
	}
	if entries[0].Reply != "fake-atc\nOK" {
		t.Errorf("entries[0].Reply = %q, want response text", entries[0].Reply)
	}
	if entries[0].DelayMS != 100 {
		t.Errorf("entries[0].DelayMS = %d, want 100", entries[0].DelayMS)
	}
	if entries[1].Line != "AT+CGMI" {
		t.Errorf("entries[1].Line = %q, want AT+CGMI", entries[1].Line)
	}
}

func TestStore_RecentLimitClamped(t *testing.T) {
	store := newTestStore(t)

	for range 5 {
		store.Emit(events.New(events.KindRX))
	}

	entries, err := store.Recent(context.Background(), 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("len(entries) = %d, want 2", len(entries))
	}

	// Zero limit falls back to the default.
	entries, err = store.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 5 {
		t.Errorf("len(entries) = %d, want 5", len(entries))
	}
}

func TestStore_Count(t *testing.T) {
	store := newTestStore(t)

	ev := events.New(events.KindReboot)
	ev.Generation = 2
	ev.PeerPath = "/dev/pts/9"
	store.Emit(ev)

	count, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
}
