// Package sqlite stores finished games in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"trivia/internal/domain"
	"trivia/internal/storage/sqlite/migrations"
)

// DefaultHistoryLimit is used when RecentGames is asked for no rows
const DefaultHistoryLimit = 20

// MaxHistoryLimit caps a single RecentGames query
const MaxHistoryLimit = 100

// Store persists game history
type Store struct {
	db *sql.DB
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

// Open opens the database at path, creating its directory, and applies
// the embedded migrations
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrations.Run(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the database is usable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RecordGame stores a finished game with its final ranking
func (s *Store) RecordGame(ctx context.Context, summary domain.GameSummary) (err error) {
	if strings.TrimSpace(summary.GameID) == "" {
		return errors.New("game id is required")
	}
	if len(summary.Ranking) == 0 {
		return errors.New("ranking is required")
	}
	finishedAt := summary.FinishedAt
	if finishedAt.IsZero() {
		finishedAt = time.Now()
	}

	winners := make(map[string]bool, len(summary.Winners))
	for _, p := range summary.Winners {
		winners[p.ID] = true
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record game: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO games (table_code, turns, finished_at) VALUES (?, ?, ?)`,
		summary.GameID, summary.Turns, toMillis(finishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	gameID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}

	for i, p := range summary.Ranking {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO game_players (game_id, position, player_id, name, score, winner)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			gameID, i, p.ID, p.Name, p.Score, winners[p.ID],
		); err != nil {
			return fmt.Errorf("insert player %s: %w", p.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit record game: %w", err)
	}
	return nil
}

// RecentGames returns up to limit finished games, newest first
func (s *Store) RecentGames(ctx context.Context, limit int) ([]domain.GameSummary, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT g.id, g.table_code, g.turns, g.finished_at,
		        p.player_id, p.name, p.score, p.winner
		   FROM (SELECT * FROM games ORDER BY finished_at DESC, id DESC LIMIT ?) g
		   JOIN game_players p ON p.game_id = g.id
		  ORDER BY g.finished_at DESC, g.id DESC, p.position ASC`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent games: %w", err)
	}
	defer rows.Close()

	games := make([]domain.GameSummary, 0)
	lastID := int64(-1)
	for rows.Next() {
		var (
			id         int64
			code       string
			turns      int
			finishedAt int64
			player     domain.Player
			winner     bool
		)
		if err := rows.Scan(&id, &code, &turns, &finishedAt, &player.ID, &player.Name, &player.Score, &winner); err != nil {
			return nil, fmt.Errorf("scan recent game: %w", err)
		}
		if id != lastID {
			games = append(games, domain.GameSummary{
				GameID:     code,
				Turns:      turns,
				FinishedAt: fromMillis(finishedAt),
				Ranking:    []domain.Player{},
				Winners:    []domain.Player{},
			})
			lastID = id
		}
		g := &games[len(games)-1]
		g.Ranking = append(g.Ranking, player)
		if winner {
			g.Winners = append(g.Winners, player)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent games: %w", err)
	}
	return games, nil
}

// GameCount returns how many games have been recorded
func (s *Store) GameCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM games`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count games: %w", err)
	}
	return n, nil
}
