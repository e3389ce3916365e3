package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"songquiz-service/internal/app"
	"songquiz-service/internal/config"
	"songquiz-service/internal/infra/httpsource"
	"songquiz-service/internal/infra/memory"
	"songquiz-service/internal/infra/postgres"
	redisinfra "songquiz-service/internal/infra/redis"
	"songquiz-service/internal/questions"
	"songquiz-service/internal/resolver"
)

// stack is the set of collaborators a quiz service runs on, picked from config.
type stack struct {
	questions app.QuestionSource
	validator resolver.Validator
	resolver  resolver.Resolver
	scores    app.Scoreboard
	sessions  app.SessionRepository
	timing    app.Timing

	closers []func()
}

func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func buildStack(ctx context.Context, cfg config.Config, logger *slog.Logger) (*stack, error) {
	st := &stack{
		timing: app.Timing{
			Dwell:  config.DurationOr(cfg.Quiz.Dwell, app.DefaultTiming.Dwell),
			Banner: config.DurationOr(cfg.Quiz.Banner, 0),
		},
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		st.closers = append(st.closers, func() { _ = redisClient.Close() })
	}
	redisTTL := config.DurationOr(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		st.closers = append(st.closers, pool.Close)
	}

	answerTTL := config.DurationOr(cfg.Quiz.AnswerTTL, 30*time.Minute)
	var keys interface {
		questions.AnswerKeyStore
		resolver.Validator
	}
	if redisClient != nil {
		keys = redisinfra.NewAnswerKeys(redisClient, answerTTL)
	} else {
		keys = memory.NewAnswerKeys(answerTTL)
	}

	validatorTimeout := config.DurationOr(cfg.Quiz.ValidatorTimeout, 3*time.Second)
	httpClient := &http.Client{Timeout: validatorTimeout + time.Second}
	remote := cfg.Quiz.Validation == config.ValidationRemote

	if cfg.Quiz.SourceURL != "" {
		client := httpsource.NewClient(cfg.Quiz.SourceURL, httpClient)
		st.questions = client
		st.validator = client
		logger.Info("questions served by external backend", "url", cfg.Quiz.SourceURL)
	} else {
		var loader memory.TrackLoader = memory.NewStaticTrackLoader(samplePlaylists())
		if pool != nil {
			loader = postgres.NewTrackLoader(pool)
		}
		playlistTTL := config.DurationOr(cfg.Quiz.PlaylistTTL, 10*time.Minute)
		var tracks questions.TrackRepository
		if redisClient != nil {
			tracks = redisinfra.NewPlaylistRepository(redisClient, loader, playlistTTL)
		} else {
			tracks = memory.NewPlaylistRepository(loader, playlistTTL)
		}

		opts := []questions.Option{questions.WithAnswerKeys(keys), questions.WithLogger(logger)}
		if cfg.Quiz.WithholdAnswers || remote {
			opts = append(opts, questions.WithheldAnswers())
		}
		st.questions = questions.NewGenerator(tracks, opts...)
		st.validator = keys
	}
	if cfg.Quiz.ValidatorURL != "" {
		st.validator = httpsource.NewClient(cfg.Quiz.ValidatorURL, httpClient)
	}

	switch cfg.Quiz.Validation {
	case "", config.ValidationLocal:
		st.resolver = resolver.NewLocal()
		if cfg.Quiz.WithholdAnswers {
			logger.Warn("answers are withheld but validation is local; selections will be unverified")
		}
	case config.ValidationRemote:
		st.resolver = resolver.NewRemote(st.validator, validatorTimeout)
	default:
		st.Close()
		return nil, fmt.Errorf("unknown validation mode %q", cfg.Quiz.Validation)
	}

	switch {
	case pool != nil:
		st.scores = postgres.NewScoreboard(pool)
	case redisClient != nil:
		st.scores = redisinfra.NewScoreboard(redisClient)
	default:
		st.scores = memory.NewScoreboard()
	}

	if redisClient != nil {
		st.sessions = redisinfra.NewSessionStore(redisClient, redisTTL)
	} else {
		st.sessions = memory.NewSessionStore()
	}
	return st, nil
}
