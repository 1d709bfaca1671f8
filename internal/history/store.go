// internal/history/store.go
//
// Archive of finished rounds backed by SQLite.
//   - Record: one row per player of a finished round, in one transaction.
//   - Recent: newest rows first, for GET /api/results.
//
// Live rooms are never read back from here.

package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jeffreyp/wordgame/internal/game"
)

// Result is one player's line in a finished round.
type Result struct {
	Room       string    `json:"room_code"`
	Round      int       `json:"round"`
	PlayerID   string    `json:"player_id"`
	PlayerName string    `json:"name"`
	Score      int       `json:"score"`
	Words      int       `json:"words"`
	Winner     bool      `json:"winner"`
	Aborted    bool      `json:"aborted"`
	FinishedAt time.Time `json:"finished_at"`
}

// Store archives finished rounds. Live rooms are never read back from it.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the database at path and applies migrations.
func Open(path string) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// Record stores the players of a finished round in one transaction.
func (s *Store) Record(ctx context.Context, v game.StatusView) error {
	if v.Status != game.StatusFinished {
		return fmt.Errorf("history: room %s is %s, not finished", v.Room, v.Status)
	}
	winners := make(map[string]bool, len(v.Winners))
	for _, id := range v.Winners {
		winners[id] = true
	}
	finished := s.now().UTC().Format(time.RFC3339)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range v.Players {
		if _, err := tx.ExecContext(ctx, `
            INSERT OR IGNORE INTO round_results
                (room_code, round, player_id, player_name, score, words, winner, aborted, finished_at)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			v.Room, v.Round, p.ID, p.Name, p.Score, p.WordCount, winners[p.ID], v.Aborted, finished,
		); err != nil {
			return fmt.Errorf("history: insert %s/%s: %w", v.Room, p.ID, err)
		}
	}
	return tx.Commit()
}

// Recent returns the latest results, newest first. Default limit is 20.
func (s *Store) Recent(ctx context.Context, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT room_code, round, player_id, player_name, score, words, winner, aborted, finished_at
        FROM round_results
        ORDER BY finished_at DESC, id DESC
        LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Result, 0, limit)
	for rows.Next() {
		var (
			r        Result
			finished string
		)
		if err := rows.Scan(&r.Room, &r.Round, &r.PlayerID, &r.PlayerName, &r.Score, &r.Words,
			&r.Winner, &r.Aborted, &finished); err != nil {
			return nil, err
		}
		r.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		out = append(out, r)
	}
	return out, rows.Err()
}
