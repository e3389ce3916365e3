// Package questions turns playlist tracks into quiz question sets.
package questions

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"songquiz-service/internal/domain"
)

const (
	// MinTracks is the smallest playlist a quiz can be built from.
	MinTracks = 20
	// PoolSize is how many shuffled tracks a set draws from.
	PoolSize = 20
	// QuestionsPerSet is the number of questions in a generated set.
	QuestionsPerSet = 5
	// OptionsPerQuestion includes the correct option.
	OptionsPerQuestion = 4
)

// TrackRepository returns the tracks of a playlist.
type TrackRepository interface {
	GetTracks(ctx context.Context, playlistID string) ([]domain.Track, error)
}

// AnswerKeyStore keeps the correct options of a generated set so answers can
// be validated after the set went out without them.
type AnswerKeyStore interface {
	PutAnswers(ctx context.Context, setID string, answers map[string]domain.Option) error
}

type Option func(*Generator)

// WithRand makes generation deterministic.
func WithRand(rnd *rand.Rand) Option {
	return func(g *Generator) { g.rnd = rnd }
}

// WithAnswerKeys registers every generated set's answers in store.
func WithAnswerKeys(store AnswerKeyStore) Option {
	return func(g *Generator) { g.keys = store }
}

// WithheldAnswers strips the correct option from the returned questions.
// It requires an answer key store.
func WithheldAnswers() Option {
	return func(g *Generator) { g.withhold = true }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// Generator builds question sets from playlists. It implements app.QuestionSource.
type Generator struct {
	tracks   TrackRepository
	keys     AnswerKeyStore
	withhold bool
	logger   *slog.Logger
	newID    func() string

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewGenerator(tracks TrackRepository, opts ...Option) *Generator {
	g := &Generator{
		tracks: tracks,
		newID:  uuid.NewString,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// LoadQuestions generates a fresh set for the playlist.
func (g *Generator) LoadQuestions(ctx context.Context, playlistID string) (domain.QuestionSet, error) {
	tracks, err := g.tracks.GetTracks(ctx, playlistID)
	if err != nil {
		return domain.QuestionSet{}, fmt.Errorf("load tracks for %s: %w", playlistID, err)
	}
	set, err := g.Generate(playlistID, tracks)
	if err != nil {
		return domain.QuestionSet{}, err
	}

	if g.keys != nil {
		answers := make(map[string]domain.Option, set.Len())
		for _, q := range set.Questions {
			answers[q.ID] = *q.Correct
		}
		if err := g.keys.PutAnswers(ctx, set.ID, answers); err != nil {
			return domain.QuestionSet{}, fmt.Errorf("store answer key: %w", err)
		}
	}
	if g.withhold {
		if g.keys == nil {
			g.logger.Warn("answers withheld without an answer key store", "set", set.ID)
		}
		for i := range set.Questions {
			set.Questions[i] = set.Questions[i].View()
		}
	}
	g.logger.Debug("question set generated", "playlist", playlistID, "set", set.ID, "tracks", len(tracks))
	return set, nil
}

// Generate draws a set from tracks. Tracks are not modified.
func (g *Generator) Generate(playlistID string, tracks []domain.Track) (domain.QuestionSet, error) {
	if len(tracks) < MinTracks {
		return domain.QuestionSet{}, fmt.Errorf("%w: %d of %d", domain.ErrNotEnoughTracks, len(tracks), MinTracks)
	}

	pool := make([]domain.Track, len(tracks))
	copy(pool, tracks)

	g.mu.Lock()
	defer g.mu.Unlock()

	g.rnd.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	pool = pool[:PoolSize]

	set := domain.QuestionSet{
		ID:        g.newID(),
		Selection: playlistID,
		Questions: make([]domain.Question, 0, QuestionsPerSet),
	}
	for n := 1; n <= QuestionsPerSet; n++ {
		correct := pool[0]
		pool = pool[1:]

		options := make([]domain.Option, 0, OptionsPerQuestion)
		for _, i := range g.rnd.Perm(len(pool))[:OptionsPerQuestion-1] {
			options = append(options, pool[i].Option())
		}
		options = append(options, correct.Option())
		g.rnd.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })

		answer := correct.Option()
		set.Questions = append(set.Questions, domain.Question{
			ID:         domain.QuestionID(set.ID, n),
			PreviewURL: correct.PreviewURL,
			Options:    options,
			Correct:    &answer,
		})
	}
	return set, nil
}
