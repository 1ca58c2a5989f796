package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nerrad567/modemsim/internal/events"
	"github.com/nerrad567/modemsim/internal/infrastructure/logging"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500

	// writeTimeout bounds each insert so a wedged database can never
	// stall the session loop for long.
	writeTimeout = 2 * time.Second
)

// Store records session events in the transcript table.
type Store struct {
	db     *sql.DB
	logger *logging.Logger
}

// Entry is one journaled session event.
type Entry struct {
	ID         int64  `json:"id"`
	EventID    string `json:"event_id"`
	Kind       string `json:"kind"`
	Line       string `json:"line,omitempty"`
	Reply      string `json:"reply,omitempty"`
	DelayMS    int64  `json:"delay_ms,omitempty"`
	Generation uint64 `json:"generation,omitempty"`
	PeerPath   string `json:"peer_path,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// NewStore creates a Store over an open database connection.
//
// Parameters:
//   - db: Open SQLite connection with the transcript schema migrated
//   - logger: Destination for write failures
//
// Returns:
//   - *Store: Store ready for use
func NewStore(db *sql.DB, logger *logging.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Emit implements events.Sink by inserting one row per event.
// Failures are logged, never propagated: journaling must not affect
// protocol behaviour.
func (s *Store) Emit(e events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transcript (event_id, kind, line, reply, delay_ms, generation, peer_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		string(e.Kind),
		e.Line,
		e.Reply,
		e.DelayMS,
		e.Generation,
		e.PeerPath,
		e.Time.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		s.logger.Error("transcript insert failed", "event_id", e.ID, "error", err)
	}
}

// Recent returns the most recent entries, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - limit: Maximum entries to return (default 50, max 500)
//
// Returns:
//   - []Entry: Entries ordered by id DESC
//   - error: nil on success, otherwise the underlying query error
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event_id, kind, line, reply, delay_ms, generation, peer_path, created_at
		 FROM transcript
		 ORDER BY id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying transcript: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID, &e.EventID, &e.Kind, &e.Line, &e.Reply,
			&e.DelayMS, &e.Generation, &e.PeerPath, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning transcript entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transcript: %w", err)
	}

	return entries, nil
}

// Count returns the total number of journaled events.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transcript").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting transcript: %w", err)
	}
	return count, nil
}
