package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"songquiz-service/internal/app"
	"songquiz-service/internal/config"
	"songquiz-service/internal/domain"
	"songquiz-service/internal/scoring"
)

type playOptions struct {
	playlist   string
	difficulty string
	scoring    string
}

// NewPlayCmd runs a single quiz session in the terminal.
func NewPlayCmd(configPath *string) *cobra.Command {
	var opts playOptions
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a quiz in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd.Context(), *configPath, opts, os.Stdin, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.playlist, "playlist", "", "playlist to quiz on (defaults to quiz.default_playlist)")
	cmd.Flags().StringVar(&opts.difficulty, "difficulty", "medium", "easy (30s), medium (15s) or hard (5s)")
	cmd.Flags().StringVar(&opts.scoring, "scoring", "", "standard or penalty (defaults to quiz.scoring)")
	return cmd
}

func runPlay(ctx context.Context, configPath string, opts playOptions, in io.Reader, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if opts.playlist == "" {
		opts.playlist = cfg.Quiz.DefaultPlaylist
	}
	if opts.scoring == "" {
		opts.scoring = cfg.Quiz.Scoring
	}

	logger := slog.Default()
	st, err := buildStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	service := app.NewQuizService(st.sessions, st.questions, st.resolver, st.scores, app.ServiceConfig{
		Timing: st.timing,
		Logger: logger,
	})
	return play(ctx, service, opts, in, out, logger)
}

func play(ctx context.Context, service *app.QuizService, opts playOptions, in io.Reader, out io.Writer, logger *slog.Logger) error {
	difficulty, err := domain.ParseDifficulty(opts.difficulty)
	if err != nil {
		return err
	}
	rule, err := scoring.RuleByName(opts.scoring)
	if err != nil {
		return err
	}

	session := service.Create(ctx, opts.playlist, rule, logAudio{logger: logger})
	defer service.Close(context.Background(), session.ID())

	updates, cancel, err := service.Subscribe(ctx, session.ID())
	if err != nil {
		return err
	}
	defer cancel()

	if err := service.Start(ctx, session.ID(), difficulty); err != nil {
		return err
	}

	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-done:
				return
			}
		}
	}()

	var (
		current  domain.Snapshot
		asked    = -1
		revealed = -1
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			current = snap
			switch snap.Phase {
			case domain.PhaseAwaitingAnswer:
				if snap.Index != asked && snap.Question != nil {
					asked = snap.Index
					printQuestion(out, snap)
				}
			case domain.PhaseFeedback:
				if snap.Index != revealed && snap.LastOutcome != nil && !snap.LastOutcome.Pending {
					revealed = snap.Index
					printOutcome(out, snap)
				}
			case domain.PhaseCompleted:
				fmt.Fprintf(out, "\nFinal score: %d (%s scoring, %s)\n", snap.Score, rule.Name, difficulty)
				return nil
			}
		case line := <-lines:
			if current.Phase != domain.PhaseAwaitingAnswer || current.Question == nil {
				continue
			}
			n, err := strconv.Atoi(line)
			if err != nil || n < 1 || n > len(current.Question.Options) {
				fmt.Fprintf(out, "Pick a number between 1 and %d\n", len(current.Question.Options))
				continue
			}
			if _, err := service.Select(ctx, session.ID(), current.Question.Options[n-1]); err != nil {
				return err
			}
		}
	}
}

func printQuestion(out io.Writer, snap domain.Snapshot) {
	fmt.Fprintf(out, "\nSong %d/%d (%ds)\n", snap.Index+1, snap.Total, snap.TimeRemaining)
	for i, opt := range snap.Question.Options {
		fmt.Fprintf(out, "  %d) %s - %s\n", i+1, opt.Name, opt.Artist)
	}
}

func printOutcome(out io.Writer, snap domain.Snapshot) {
	switch o := snap.LastOutcome; {
	case o.TimedOut:
		fmt.Fprintln(out, "Time's up!")
	case o.Unverified:
		fmt.Fprintln(out, "Answer could not be checked.")
	case o.Correct:
		fmt.Fprintln(out, "Correct!")
	default:
		fmt.Fprintln(out, "Wrong.")
	}
	fmt.Fprintf(out, "Score: %d\n", snap.Score)
}

// logAudio stands in for a player: it logs which preview would be playing.
type logAudio struct {
	logger *slog.Logger
}

func (a logAudio) Play(_ context.Context, url string) error {
	a.logger.Info("playing preview", "url", url)
	return nil
}

func (a logAudio) Stop(context.Context) error {
	a.logger.Debug("preview stopped")
	return nil
}
