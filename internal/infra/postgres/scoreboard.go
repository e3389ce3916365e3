package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"songquiz-service/internal/domain"
)

// Scoreboard persists completed sessions in the scores table.
type Scoreboard struct {
	pool *pgxpool.Pool
}

func NewScoreboard(pool *pgxpool.Pool) *Scoreboard {
	return &Scoreboard{pool: pool}
}

func (b *Scoreboard) RecordScore(ctx context.Context, entry domain.ScoreEntry) error {
	_, err := b.pool.Exec(ctx, `
		INSERT INTO scores (session_id, playlist_id, difficulty, scoring, score, correct, total, played_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id) DO NOTHING`,
		entry.SessionID, entry.Selection, string(entry.Difficulty), entry.Rule,
		entry.Score, entry.Correct, entry.Total, entry.PlayedAt)
	if err != nil {
		return fmt.Errorf("record score: %w", err)
	}
	return nil
}

// TopScores returns the best entries, highest score first. A non-positive
// limit returns all of them.
func (b *Scoreboard) TopScores(ctx context.Context, selection string, limit int) ([]domain.ScoreEntry, error) {
	query, args := topScoresQuery(selection, limit)
	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	defer rows.Close()

	var entries []domain.ScoreEntry
	for rows.Next() {
		var (
			e          domain.ScoreEntry
			difficulty string
		)
		if err := rows.Scan(&e.SessionID, &e.Selection, &difficulty, &e.Rule, &e.Score, &e.Correct, &e.Total, &e.PlayedAt); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		e.Difficulty = domain.Difficulty(difficulty)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func topScoresQuery(selection string, limit int) (string, []interface{}) {
	query := `
		SELECT session_id, playlist_id, difficulty, scoring, score, correct, total, played_at
		FROM scores WHERE playlist_id=$1
		ORDER BY score DESC, played_at ASC`
	args := []interface{}{selection}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return query, args
}
