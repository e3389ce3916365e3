package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"songquiz-service/internal/domain"
	"songquiz-service/internal/infra/memory"
)

// PlaylistRepository caches playlist tracks in Redis and falls back to a loader on cache miss.
// Tracks are stored as JSON: SET playlist:{playlistID}:tracks [...]
type PlaylistRepository struct {
	client *redis.Client
	loader memory.TrackLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewPlaylistRepository(client *redis.Client, loader memory.TrackLoader, ttl time.Duration) *PlaylistRepository {
	return &PlaylistRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *PlaylistRepository) GetTracks(ctx context.Context, playlistID string) ([]domain.Track, error) {
	if tracks, ok := r.cached(ctx, playlistID); ok {
		return tracks, nil
	}

	result, err, _ := r.sf.Do(playlistID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if tracks, ok := r.cached(ctx, playlistID); ok {
			return tracks, nil
		}

		tracks, err := r.loader.LoadTracks(ctx, playlistID)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(tracks); err == nil {
			// best-effort fill; a failed write only costs a reload
			_ = r.client.Set(ctx, r.key(playlistID), raw, r.ttlWithJitter()).Err()
		}
		return tracks, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Track), nil
}

func (r *PlaylistRepository) cached(ctx context.Context, playlistID string) ([]domain.Track, bool) {
	raw, err := r.client.Get(ctx, r.key(playlistID)).Bytes()
	if err != nil {
		return nil, false
	}
	var tracks []domain.Track
	if err := json.Unmarshal(raw, &tracks); err != nil || len(tracks) == 0 {
		return nil, false
	}
	return tracks, true
}

// Invalidate drops the cached copy of a playlist.
func (r *PlaylistRepository) Invalidate(ctx context.Context, playlistID string) error {
	return r.client.Del(ctx, r.key(playlistID)).Err()
}

func (r *PlaylistRepository) key(playlistID string) string {
	return "playlist:" + playlistID + ":tracks"
}

func (r *PlaylistRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
