package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"songquiz-service/internal/domain"
)

func sampleQuestion() domain.Question {
	correct := domain.Option{Name: "Bohemian Rhapsody", Artist: "Queen", AlbumCover: "a.jpg"}
	return domain.Question{
		ID:         "set-1:1",
		PreviewURL: "https://example.com/p.mp3",
		Options: []domain.Option{
			correct,
			{Name: "Under Pressure", Artist: "Queen"},
			correct,
			{Name: "Bohemian Rhapsody", Artist: "Panic! At The Disco"},
		},
		Correct: &correct,
	}
}

func TestLocalIgnoresDisplayFields(t *testing.T) {
	q := sampleQuestion()
	selected := domain.Option{Name: "Bohemian Rhapsody", Artist: "Queen", AlbumCover: "other.jpg"}
	outcome, err := NewLocal().Resolve(context.Background(), q, &selected)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !outcome.Correct {
		t.Fatalf("expected correct when only the cover differs")
	}
}

func TestLocalDuplicatedCorrectOption(t *testing.T) {
	q := sampleQuestion()
	for _, idx := range []int{0, 2} {
		opt := q.Options[idx]
		outcome, err := NewLocal().Resolve(context.Background(), q, &opt)
		if err != nil || !outcome.Correct {
			t.Fatalf("option %d: expected correct, got %+v %v", idx, outcome, err)
		}
	}
	wrongArtist := q.Options[3]
	if outcome, _ := NewLocal().Resolve(context.Background(), q, &wrongArtist); outcome.Correct {
		t.Fatalf("same title by another artist must be incorrect")
	}
}

func TestLocalTimeoutAlwaysIncorrect(t *testing.T) {
	outcome, err := NewLocal().Resolve(context.Background(), sampleQuestion(), nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if outcome.Correct || !outcome.TimedOut {
		t.Fatalf("expected timed out incorrect, got %+v", outcome)
	}
}

func TestLocalWithheldAnswer(t *testing.T) {
	q := sampleQuestion().View()
	opt := q.Options[0]
	outcome, err := NewLocal().Resolve(context.Background(), q, &opt)
	if !errors.Is(err, domain.ErrValidationUnavailable) {
		t.Fatalf("expected ErrValidationUnavailable, got %v", err)
	}
	if outcome.Correct || !outcome.Unverified {
		t.Fatalf("expected unverified incorrect, got %+v", outcome)
	}
}

type validatorFunc func(ctx context.Context, questionID string, selected domain.Option) (bool, error)

func (f validatorFunc) Validate(ctx context.Context, questionID string, selected domain.Option) (bool, error) {
	return f(ctx, questionID, selected)
}

func TestRemoteDelegates(t *testing.T) {
	var seenID string
	r := NewRemote(validatorFunc(func(_ context.Context, id string, opt domain.Option) (bool, error) {
		seenID = id
		return opt.Name == "Bohemian Rhapsody", nil
	}), time.Second)

	q := sampleQuestion().View()
	opt := q.Options[0]
	outcome, err := r.Resolve(context.Background(), q, &opt)
	if err != nil || !outcome.Correct {
		t.Fatalf("expected correct, got %+v %v", outcome, err)
	}
	if seenID != "set-1:1" {
		t.Fatalf("expected question id forwarded, got %q", seenID)
	}
	if !r.Remote() || NewLocal().Remote() {
		t.Fatalf("unexpected Remote() values")
	}
}

func TestRemoteFailureIsUnverified(t *testing.T) {
	r := NewRemote(validatorFunc(func(ctx context.Context, _ string, _ domain.Option) (bool, error) {
		<-ctx.Done()
		return false, ctx.Err()
	}), 10*time.Millisecond)

	q := sampleQuestion()
	opt := q.Options[0]
	outcome, err := r.Resolve(context.Background(), q, &opt)
	if !errors.Is(err, domain.ErrValidationUnavailable) {
		t.Fatalf("expected ErrValidationUnavailable, got %v", err)
	}
	if outcome.Correct || !outcome.Unverified {
		t.Fatalf("expected unverified incorrect, got %+v", outcome)
	}
}

func TestRemoteTimeoutSkipsValidator(t *testing.T) {
	called := false
	r := NewRemote(validatorFunc(func(context.Context, string, domain.Option) (bool, error) {
		called = true
		return true, nil
	}), 0)
	outcome, err := r.Resolve(context.Background(), sampleQuestion(), nil)
	if err != nil || !outcome.TimedOut || called {
		t.Fatalf("expected local timeout without validator call, got %+v %v called=%v", outcome, err, called)
	}
}
