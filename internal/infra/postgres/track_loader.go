package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"songquiz-service/internal/domain"
)

// TrackLoader loads playlist tracks stored as JSONB.
type TrackLoader struct {
	pool *pgxpool.Pool
}

func NewTrackLoader(pool *pgxpool.Pool) *TrackLoader {
	return &TrackLoader{pool: pool}
}

func (l *TrackLoader) LoadTracks(ctx context.Context, playlistID string) ([]domain.Track, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM playlists WHERE id=$1`, playlistID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrPlaylistNotFound, playlistID)
	}
	if err != nil {
		return nil, fmt.Errorf("load playlist: %w", err)
	}
	return decodeTracks(raw)
}

func decodeTracks(raw []byte) ([]domain.Track, error) {
	var tracks []domain.Track
	if err := json.Unmarshal(raw, &tracks); err != nil {
		return nil, fmt.Errorf("unmarshal playlist: %w", err)
	}
	return tracks, nil
}

// SavePlaylist stores or replaces a playlist's tracks.
func (l *TrackLoader) SavePlaylist(ctx context.Context, playlistID, name string, tracks []domain.Track) error {
	data, err := json.Marshal(tracks)
	if err != nil {
		return fmt.Errorf("marshal playlist: %w", err)
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO playlists (id, name, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, data=EXCLUDED.data, updated_at=now()`,
		playlistID, name, string(data))
	if err != nil {
		return fmt.Errorf("save playlist: %w", err)
	}
	return nil
}
