package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"songquiz-service/internal/domain"
)

// TrackLoader fetches playlist tracks from a backing store (e.g., Postgres).
type TrackLoader interface {
	LoadTracks(ctx context.Context, playlistID string) ([]domain.Track, error)
}

// PlaylistRepository caches playlist tracks with TTL to avoid repeated loads.
type PlaylistRepository struct {
	loader TrackLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedPlaylist
}

type cachedPlaylist struct {
	tracks    []domain.Track
	expiresAt time.Time
}

func NewPlaylistRepository(loader TrackLoader, ttl time.Duration) *PlaylistRepository {
	return &PlaylistRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedPlaylist),
	}
}

func (r *PlaylistRepository) GetTracks(ctx context.Context, playlistID string) ([]domain.Track, error) {
	if tracks, ok := r.cached(playlistID); ok {
		return tracks, nil
	}

	result, err, _ := r.sf.Do(playlistID, func() (interface{}, error) {
		if tracks, ok := r.cached(playlistID); ok {
			return tracks, nil
		}
		tracks, err := r.loader.LoadTracks(ctx, playlistID)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[playlistID] = cachedPlaylist{
			tracks:    tracks,
			expiresAt: r.clock().Add(r.ttlWithJitterLocked()),
		}
		r.mu.Unlock()
		return tracks, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Track), nil
}

func (r *PlaylistRepository) cached(playlistID string) ([]domain.Track, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[playlistID]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return nil, false
	}
	return entry.tracks, true
}

// ttlWithJitterLocked adds up to 10% jitter to spread expirations.
func (r *PlaylistRepository) ttlWithJitterLocked() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticTrackLoader serves playlists from a map (useful for tests/demos).
type StaticTrackLoader struct {
	playlists map[string][]domain.Track
}

func NewStaticTrackLoader(playlists map[string][]domain.Track) *StaticTrackLoader {
	return &StaticTrackLoader{playlists: playlists}
}

func (l *StaticTrackLoader) LoadTracks(_ context.Context, playlistID string) ([]domain.Track, error) {
	if tracks, ok := l.playlists[playlistID]; ok {
		return tracks, nil
	}
	return nil, domain.ErrPlaylistNotFound
}
