// Package resolver judges answer attempts, either against the answer the
// client already holds or through an external validator.
package resolver

import (
	"context"
	"fmt"
	"time"

	"songquiz-service/internal/domain"
)

// Resolver decides whether a selection answers a question. A nil selection
// is a timeout.
type Resolver interface {
	Resolve(ctx context.Context, q domain.Question, selected *domain.Option) (domain.Outcome, error)
	// Remote reports whether Resolve performs I/O and must not run under a lock.
	Remote() bool
}

// Validator checks a selection for a question the caller has no answer for.
type Validator interface {
	Validate(ctx context.Context, questionID string, selected domain.Option) (bool, error)
}

// Local compares against the question's known correct option.
type Local struct{}

func NewLocal() Local {
	return Local{}
}

func (Local) Remote() bool {
	return false
}

func (Local) Resolve(_ context.Context, q domain.Question, selected *domain.Option) (domain.Outcome, error) {
	if selected == nil {
		return domain.Outcome{TimedOut: true}, nil
	}
	if q.Correct == nil {
		return domain.Outcome{Unverified: true}, fmt.Errorf("%w: question %s carries no answer", domain.ErrValidationUnavailable, q.ID)
	}
	return domain.Outcome{Correct: q.Correct.Same(*selected)}, nil
}

// RemoteResolver delegates to a Validator. Failures resolve as incorrect and
// unverified so the session keeps moving.
type RemoteResolver struct {
	validator Validator
	timeout   time.Duration
}

func NewRemote(validator Validator, timeout time.Duration) *RemoteResolver {
	return &RemoteResolver{validator: validator, timeout: timeout}
}

func (r *RemoteResolver) Remote() bool {
	return true
}

func (r *RemoteResolver) Resolve(ctx context.Context, q domain.Question, selected *domain.Option) (domain.Outcome, error) {
	if selected == nil {
		return domain.Outcome{TimedOut: true}, nil
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	correct, err := r.validator.Validate(ctx, q.ID, *selected)
	if err != nil {
		return domain.Outcome{Unverified: true}, fmt.Errorf("%w: %v", domain.ErrValidationUnavailable, err)
	}
	return domain.Outcome{Correct: correct}, nil
}
