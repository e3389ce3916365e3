package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"songquiz-service/internal/domain"
)

// AnswerKeys stores the answers of generated sets in Redis so any instance
// can validate them.
// Answers are stored as: HSET questionset:{setID}:answers {questionID} {"name","artist"}
type AnswerKeys struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAnswerKeys(client *redis.Client, ttl time.Duration) *AnswerKeys {
	return &AnswerKeys{client: client, ttl: ttl}
}

type storedAnswer struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
}

func (k *AnswerKeys) PutAnswers(ctx context.Context, setID string, answers map[string]domain.Option) error {
	key := k.key(setID)
	pipe := k.client.TxPipeline()
	for questionID, opt := range answers {
		raw, err := json.Marshal(storedAnswer{Name: opt.Name, Artist: opt.Artist})
		if err != nil {
			return fmt.Errorf("encode answer %s: %w", questionID, err)
		}
		pipe.HSet(ctx, key, questionID, raw)
	}
	if k.ttl > 0 {
		pipe.Expire(ctx, key, k.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store answers for %s: %w", setID, err)
	}
	return nil
}

// Validate implements resolver.Validator.
func (k *AnswerKeys) Validate(ctx context.Context, questionID string, selected domain.Option) (bool, error) {
	setID, ok := domain.SetIDOf(questionID)
	if !ok {
		return false, domain.ErrQuestionNotFound
	}
	raw, err := k.client.HGet(ctx, k.key(setID), questionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, domain.ErrQuestionNotFound
	}
	if err != nil {
		return false, fmt.Errorf("load answer %s: %w", questionID, err)
	}
	var answer storedAnswer
	if err := json.Unmarshal(raw, &answer); err != nil {
		return false, fmt.Errorf("decode answer %s: %w", questionID, err)
	}
	return domain.Option{Name: answer.Name, Artist: answer.Artist}.Same(selected), nil
}

func (k *AnswerKeys) key(setID string) string {
	return "questionset:" + setID + ":answers"
}
