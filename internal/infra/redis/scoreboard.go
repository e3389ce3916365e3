package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"songquiz-service/internal/domain"
)

// Scoreboard ranks completed sessions per playlist.
// Ranking:  ZADD scores:{playlistID} {score} {sessionID}
// Entries:  HSET scores:{playlistID}:entries {sessionID} {json}
type Scoreboard struct {
	client *redis.Client
}

func NewScoreboard(client *redis.Client) *Scoreboard {
	return &Scoreboard{client: client}
}

func (b *Scoreboard) RecordScore(ctx context.Context, entry domain.ScoreEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode score: %w", err)
	}
	pipe := b.client.TxPipeline()
	pipe.ZAdd(ctx, b.rankKey(entry.Selection), redis.Z{Score: float64(entry.Score), Member: entry.SessionID})
	pipe.HSet(ctx, b.entriesKey(entry.Selection), entry.SessionID, raw)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record score: %w", err)
	}
	return nil
}

// TopScores returns the best entries, highest score first. A non-positive
// limit returns all of them.
func (b *Scoreboard) TopScores(ctx context.Context, selection string, limit int) ([]domain.ScoreEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ranked, err := b.client.ZRevRange(ctx, b.rankKey(selection), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("rank scores: %w", err)
	}
	if len(ranked) == 0 {
		return nil, nil
	}

	values, err := b.client.HMGet(ctx, b.entriesKey(selection), ranked...).Result()
	if err != nil {
		return nil, fmt.Errorf("load scores: %w", err)
	}
	entries := make([]domain.ScoreEntry, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var entry domain.ScoreEntry
		if err := json.Unmarshal([]byte(s), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (b *Scoreboard) rankKey(selection string) string {
	return "scores:" + selection
}

func (b *Scoreboard) entriesKey(selection string) string {
	return "scores:" + selection + ":entries"
}
