package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"songquiz-service/internal/app"
	"songquiz-service/internal/clock"
	"songquiz-service/internal/domain"
	"songquiz-service/internal/infra/memory"
	"songquiz-service/internal/scoring"
)

func TestSessionPlaysAndRecordsScore(t *testing.T) {
	ctx := context.Background()
	service, clocks, board := newTestService(makeSet(2))

	session := service.Create(ctx, "playlist-1", scoring.Standard, nil)
	if err := service.Start(ctx, session.ID(), domain.DifficultyEasy); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	m := clocks[session.ID()]

	snap, _ := service.Snapshot(ctx, session.ID())
	q := makeSet(2).Questions[snap.Index]
	if ok, err := service.Select(ctx, session.ID(), *q.Correct); err != nil || !ok {
		t.Fatalf("select failed: %v %v", ok, err)
	}
	m.Fire()
	m.Advance(30)
	m.Fire()

	snap, err := service.Snapshot(ctx, session.ID())
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if snap.Phase != domain.PhaseCompleted || snap.Score != 1 {
		t.Fatalf("expected completed with score 1, got %+v", snap)
	}

	scores, err := service.Scores(ctx, "playlist-1", 10)
	if err != nil {
		t.Fatalf("scores failed: %v", err)
	}
	if len(scores) != 1 || scores[0].SessionID != session.ID() || scores[0].Score != 1 || scores[0].Correct != 1 {
		t.Fatalf("unexpected scoreboard %+v", scores)
	}
	if entries, _ := board.TopScores(ctx, "other", 10); len(entries) != 0 {
		t.Fatalf("score recorded under the wrong playlist")
	}
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(makeSet(1))

	session := service.Create(ctx, "playlist-1", scoring.Penalty, nil)
	ch, cancel, err := service.Subscribe(ctx, session.ID())
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()

	initial := <-ch
	if initial.Phase != domain.PhaseNotStarted || initial.SessionID != session.ID() {
		t.Fatalf("unexpected initial snapshot %+v", initial)
	}

	if err := service.Start(ctx, session.ID(), domain.DifficultyHard); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	select {
	case update := <-ch:
		if update.Phase != domain.PhaseAwaitingAnswer || update.TimeRemaining != 5 {
			t.Fatalf("expected first question, got %+v", update)
		}
	case <-time.After(time.Second):
		t.Fatalf("no update after start")
	}
}

func TestSlowSubscriberKeepsLatestSnapshot(t *testing.T) {
	ctx := context.Background()
	service, clocks, _ := newTestService(makeSet(1))

	session := service.Create(ctx, "playlist-1", scoring.Standard, nil)
	ch, cancel, _ := service.Subscribe(ctx, session.ID())
	defer cancel()

	_ = service.Start(ctx, session.ID(), domain.DifficultyEasy)
	// Far more transitions than the subscription buffers.
	clocks[session.ID()].Advance(29)

	var last domain.Snapshot
	for {
		select {
		case snap := <-ch:
			last = snap
			continue
		default:
		}
		break
	}
	if last.TimeRemaining != 1 {
		t.Fatalf("expected the newest tick to survive, got %+v", last)
	}
}

func TestUnknownSessionErrors(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService(makeSet(1))

	if err := service.Start(ctx, "missing", domain.DifficultyEasy); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session error, got %v", err)
	}
	if _, err := service.Select(ctx, "missing", domain.Option{}); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session error, got %v", err)
	}
	if _, err := service.Snapshot(ctx, "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session error, got %v", err)
	}
	if _, _, err := service.Subscribe(ctx, "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session error, got %v", err)
	}
	service.Close(ctx, "missing")
}

func TestCloseStopsSessionAndForgetsIt(t *testing.T) {
	ctx := context.Background()
	service, clocks, _ := newTestService(makeSet(2))

	session := service.Create(ctx, "playlist-1", scoring.Standard, nil)
	_ = service.Start(ctx, session.ID(), domain.DifficultyMedium)
	service.Close(ctx, session.ID())

	if clocks[session.ID()].Active() != 0 {
		t.Fatalf("countdown still armed after close")
	}
	if !session.Controller().Snapshot().Closed {
		t.Fatalf("controller not closed")
	}
	if _, err := service.Snapshot(ctx, session.ID()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected closed session to be forgotten, got %v", err)
	}
}

func TestPhaseChangesTouchExpiringStore(t *testing.T) {
	ctx := context.Background()
	var m *clock.Manual
	store := &touchingStore{SessionStore: memory.NewSessionStore(), touches: make(chan string, 16)}
	service := app.NewQuizService(store, staticSource{set: makeSet(2)}, nil, nil, app.ServiceConfig{
		NewClock: func() clock.Clock {
			m = clock.NewManual()
			return m
		},
	})

	session := service.Create(ctx, "playlist-1", scoring.Standard, nil)
	if err := service.Start(ctx, session.ID(), domain.DifficultyEasy); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	select {
	case id := <-store.touches:
		if id != session.ID() {
			t.Fatalf("touched %q, want %q", id, session.ID())
		}
	case <-time.After(time.Second):
		t.Fatalf("starting a session did not refresh its record")
	}

	// Drain anything queued by the start before checking ticks.
	time.Sleep(20 * time.Millisecond)
	for len(store.touches) > 0 {
		<-store.touches
	}
	m.Tick()
	m.Tick()
	time.Sleep(20 * time.Millisecond)
	if n := len(store.touches); n != 0 {
		t.Fatalf("ticks refreshed the record %d times", n)
	}
}

type touchingStore struct {
	*memory.SessionStore
	touches chan string
}

func (s *touchingStore) Touch(sessionID string) {
	s.touches <- sessionID
}

type staticSource struct {
	set domain.QuestionSet
}

func (s staticSource) LoadQuestions(context.Context, string) (domain.QuestionSet, error) {
	return s.set, nil
}

// newTestService returns a service whose sessions run on manual clocks, keyed
// by session ID once the session exists.
func newTestService(set domain.QuestionSet) (*app.QuizService, map[string]*clock.Manual, *memory.Scoreboard) {
	var pending []*clock.Manual
	clocks := make(map[string]*clock.Manual)
	board := memory.NewScoreboard()
	store := &indexingStore{SessionStore: memory.NewSessionStore(), onPut: func(s *app.Session) {
		clocks[s.ID()] = pending[len(pending)-1]
	}}
	service := app.NewQuizService(store, staticSource{set: set}, nil, board, app.ServiceConfig{
		NewClock: func() clock.Clock {
			m := clock.NewManual()
			pending = append(pending, m)
			return m
		},
	})
	return service, clocks, board
}

type indexingStore struct {
	*memory.SessionStore
	onPut func(*app.Session)
}

func (s *indexingStore) Put(session *app.Session) {
	s.SessionStore.Put(session)
	s.onPut(session)
}
