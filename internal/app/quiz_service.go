package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"songquiz-service/internal/clock"
	"songquiz-service/internal/domain"
	"songquiz-service/internal/resolver"
	"songquiz-service/internal/scoring"
)

// SessionRepository abstracts where live sessions are kept (in-memory, Redis, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// SessionToucher is implemented by repositories whose session records expire.
// Touch is called as a session moves between phases.
type SessionToucher interface {
	Touch(sessionID string)
}

// Scoreboard records completed sessions.
type Scoreboard interface {
	RecordScore(ctx context.Context, entry domain.ScoreEntry) error
	TopScores(ctx context.Context, selection string, limit int) ([]domain.ScoreEntry, error)
}

// ServiceConfig carries the knobs shared by every session a service hosts.
type ServiceConfig struct {
	Timing Timing
	// NewClock builds one clock per session. Defaults to a 1Hz ticker.
	NewClock func() clock.Clock
	Logger   *slog.Logger
	// RecordTimeout bounds the scoreboard write after completion.
	RecordTimeout time.Duration
}

// QuizService hosts quiz sessions for remote players.
type QuizService struct {
	sessions  SessionRepository
	questions QuestionSource
	resolver  resolver.Resolver
	scores    Scoreboard
	cfg       ServiceConfig
	logger    *slog.Logger
}

func NewQuizService(store SessionRepository, questions QuestionSource, res resolver.Resolver, scores Scoreboard, cfg ServiceConfig) *QuizService {
	if cfg.NewClock == nil {
		cfg.NewClock = func() clock.Clock { return clock.NewTicker() }
	}
	if cfg.Timing == (Timing{}) {
		cfg.Timing = DefaultTiming
	}
	if cfg.RecordTimeout <= 0 {
		cfg.RecordTimeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &QuizService{
		sessions:  store,
		questions: questions,
		resolver:  res,
		scores:    scores,
		cfg:       cfg,
		logger:    logger,
	}
}

// Create registers a not started session for a selection. Audio cues for
// the session go to audio, which may be nil.
func (s *QuizService) Create(_ context.Context, selection string, rule scoring.Rule, audio AudioCue) *Session {
	session := newSession(uuid.NewString(), time.Now)
	session.controller = NewController(session.id, selection, s.questions, s.resolver, audio,
		WithClock(s.cfg.NewClock()),
		WithTiming(s.cfg.Timing),
		WithRule(rule),
		WithLogger(s.logger),
		WithObserver(s.observer(session)),
		WithCompletion(s.record),
	)
	session.last = session.controller.Snapshot()
	s.sessions.Put(session)
	return session
}

// observer fans snapshots out to subscribers and keeps an expiring session
// record alive. Ticks do not refresh the record; phase and question changes do.
func (s *QuizService) observer(session *Session) func(domain.Snapshot) {
	toucher, ok := s.sessions.(SessionToucher)
	if !ok {
		return session.publish
	}
	var (
		phase domain.Phase
		stage domain.FeedbackStage
		index = -1
	)
	return func(snap domain.Snapshot) {
		session.publish(snap)
		if snap.Phase == phase && snap.Stage == stage && snap.Index == index {
			return
		}
		phase, stage, index = snap.Phase, snap.Stage, snap.Index
		go toucher.Touch(session.id)
	}
}

// Start opens the first question of a session.
func (s *QuizService) Start(ctx context.Context, sessionID string, difficulty domain.Difficulty) error {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	return session.controller.Start(ctx, difficulty)
}

// Select forwards a player's choice. The boolean reports whether it was accepted.
func (s *QuizService) Select(_ context.Context, sessionID string, opt domain.Option) (bool, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return false, domain.ErrSessionNotFound
	}
	return session.controller.SelectOption(opt), nil
}

func (s *QuizService) Snapshot(_ context.Context, sessionID string) (domain.Snapshot, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.Snapshot{}, domain.ErrSessionNotFound
	}
	return session.controller.Snapshot(), nil
}

// Subscribe returns a channel that receives a snapshot after every transition.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, sessionID string) (<-chan domain.Snapshot, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Close tears a session down and forgets it.
func (s *QuizService) Close(_ context.Context, sessionID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	session.controller.Close()
	s.sessions.Delete(sessionID)
}

// Scores lists the best completed sessions for a selection.
func (s *QuizService) Scores(ctx context.Context, selection string, limit int) ([]domain.ScoreEntry, error) {
	if s.scores == nil {
		return nil, nil
	}
	return s.scores.TopScores(ctx, selection, limit)
}

func (s *QuizService) record(entry domain.ScoreEntry) {
	if s.scores == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RecordTimeout)
	defer cancel()
	if err := s.scores.RecordScore(ctx, entry); err != nil {
		s.logger.Error("record score", "session", entry.SessionID, "error", err)
	}
}

// Session pairs a controller with the players watching it.
type Session struct {
	id         string
	createdAt  time.Time
	controller *Controller

	mu          sync.RWMutex
	last        domain.Snapshot
	subscribers map[chan domain.Snapshot]struct{}
}

func newSession(id string, now func() time.Time) *Session {
	return &Session{
		id:          id,
		createdAt:   now(),
		subscribers: make(map[chan domain.Snapshot]struct{}),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Controller exposes the session's state machine.
func (s *Session) Controller() *Controller {
	return s.controller
}

// publish is the controller observer. It runs under the controller lock, so
// it never calls back into the controller.
func (s *Session) publish(snap domain.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = snap
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the oldest update so a slow reader never blocks a transition.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *Session) subscribe() (<-chan domain.Snapshot, func()) {
	ch := make(chan domain.Snapshot, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- s.last
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}
