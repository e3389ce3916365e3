package memory

import (
	"context"
	"sync"
	"time"

	"songquiz-service/internal/domain"
)

// AnswerKeys remembers the correct option of every generated question so
// answers can be validated after the questions went out without them.
type AnswerKeys struct {
	ttl   time.Duration
	clock func() time.Time

	mu   sync.RWMutex
	sets map[string]answerKey
}

type answerKey struct {
	answers   map[string]domain.OptionKey
	expiresAt time.Time
}

// NewAnswerKeys keeps keys for ttl; zero keeps them until the process exits.
func NewAnswerKeys(ttl time.Duration) *AnswerKeys {
	return &AnswerKeys{
		ttl:   ttl,
		clock: time.Now,
		sets:  make(map[string]answerKey),
	}
}

func (k *AnswerKeys) PutAnswers(_ context.Context, setID string, answers map[string]domain.Option) error {
	key := answerKey{answers: make(map[string]domain.OptionKey, len(answers))}
	for questionID, opt := range answers {
		key.answers[questionID] = opt.Key()
	}
	now := k.clock()
	if k.ttl > 0 {
		key.expiresAt = now.Add(k.ttl)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.sets[setID] = key
	for id, existing := range k.sets {
		if existing.expired(now) {
			delete(k.sets, id)
		}
	}
	return nil
}

// Validate implements resolver.Validator.
func (k *AnswerKeys) Validate(_ context.Context, questionID string, selected domain.Option) (bool, error) {
	setID, ok := domain.SetIDOf(questionID)
	if !ok {
		return false, domain.ErrQuestionNotFound
	}

	k.mu.RLock()
	defer k.mu.RUnlock()
	key, ok := k.sets[setID]
	if !ok || key.expired(k.clock()) {
		return false, domain.ErrQuestionNotFound
	}
	answer, ok := key.answers[questionID]
	if !ok {
		return false, domain.ErrQuestionNotFound
	}
	return answer == selected.Key(), nil
}

func (a answerKey) expired(now time.Time) bool {
	return !a.expiresAt.IsZero() && !a.expiresAt.After(now)
}
