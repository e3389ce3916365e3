package memory

import (
	"context"
	"sort"
	"sync"

	"songquiz-service/internal/domain"
)

// Scoreboard keeps completed sessions per playlist in memory.
type Scoreboard struct {
	mu      sync.RWMutex
	entries map[string][]domain.ScoreEntry
}

func NewScoreboard() *Scoreboard {
	return &Scoreboard{entries: make(map[string][]domain.ScoreEntry)}
}

func (b *Scoreboard) RecordScore(_ context.Context, entry domain.ScoreEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := append(b.entries[entry.Selection], entry)
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Score != list[j].Score {
			return list[i].Score > list[j].Score
		}
		return list[i].PlayedAt.Before(list[j].PlayedAt)
	})
	b.entries[entry.Selection] = list
	return nil
}

// TopScores returns the best entries, highest score first. A non-positive
// limit returns all of them.
func (b *Scoreboard) TopScores(_ context.Context, selection string, limit int) ([]domain.ScoreEntry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	list := b.entries[selection]
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	out := make([]domain.ScoreEntry, len(list))
	copy(out, list)
	return out, nil
}
