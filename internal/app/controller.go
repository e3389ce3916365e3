package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"songquiz-service/internal/clock"
	"songquiz-service/internal/domain"
	"songquiz-service/internal/resolver"
	"songquiz-service/internal/scoring"
)

// QuestionSource loads the question set for a selection such as a playlist ID.
type QuestionSource interface {
	LoadQuestions(ctx context.Context, selection string) (domain.QuestionSet, error)
}

// AudioCue plays question previews. Calls happen while the controller holds
// its lock, so implementations must return quickly and must not call back
// into the controller. Errors are logged and otherwise ignored.
type AudioCue interface {
	Play(ctx context.Context, previewURL string) error
	Stop(ctx context.Context) error
}

// Timing configures the pauses of the Feedback phase.
type Timing struct {
	// Dwell is how long the answer stays revealed.
	Dwell time.Duration
	// Banner is the "next song" pause before the following question. Zero skips it.
	Banner time.Duration
}

// DefaultTiming matches the reference quiz pages.
var DefaultTiming = Timing{Dwell: 2 * time.Second}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

func WithClock(c clock.Clock) ControllerOption {
	return func(ctrl *Controller) { ctrl.clock = c }
}

func WithTiming(t Timing) ControllerOption {
	return func(ctrl *Controller) { ctrl.timing = t }
}

func WithRule(r scoring.Rule) ControllerOption {
	return func(ctrl *Controller) { ctrl.rule = r }
}

func WithLogger(l *slog.Logger) ControllerOption {
	return func(ctrl *Controller) { ctrl.logger = l }
}

// WithObserver registers a callback receiving a snapshot after every
// transition. It runs under the controller lock and must not block.
func WithObserver(fn func(domain.Snapshot)) ControllerOption {
	return func(ctrl *Controller) { ctrl.observer = fn }
}

// WithCompletion registers a callback run once when the session completes.
func WithCompletion(fn func(domain.ScoreEntry)) ControllerOption {
	return func(ctrl *Controller) { ctrl.onComplete = fn }
}

// WithQuestionSet supplies an already loaded set; Start will not hit the source.
func WithQuestionSet(set domain.QuestionSet) ControllerOption {
	return func(ctrl *Controller) { ctrl.set = &set }
}

// Controller is the session state machine. Every trigger (start, selection,
// tick, expiry, dwell, remote resolution) takes the same lock and performs
// one complete transition. Countdown events carry the clock handle they were
// armed with and every other deferred event carries the epoch it was
// scheduled in, so an event that outlived its phase is dropped.
type Controller struct {
	id         string
	selection  string
	source     QuestionSource
	resolver   resolver.Resolver
	audio      AudioCue
	clock      clock.Clock
	timing     Timing
	rule       scoring.Rule
	logger     *slog.Logger
	observer   func(domain.Snapshot)
	onComplete func(domain.ScoreEntry)
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	set         *domain.QuestionSet
	loading     bool
	closed      bool
	difficulty  domain.Difficulty
	score       *scoring.Accumulator
	phase       domain.Phase
	stage       domain.FeedbackStage
	index       int
	remaining   int
	attempts    []domain.AnswerAttempt
	lastOutcome *domain.Outcome
	lastErr     string
	inFlight    bool
	pending     bool
	handle      clock.Handle
	epoch       uint64
	stopTimer   func() bool
}

// NewController builds a session in the not started phase.
func NewController(id, selection string, source QuestionSource, res resolver.Resolver, audio AudioCue, opts ...ControllerOption) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		id:        id,
		selection: selection,
		source:    source,
		resolver:  res,
		audio:     audio,
		timing:    DefaultTiming,
		rule:      scoring.Standard,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		phase:     domain.PhaseNotStarted,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.clock == nil {
		c.clock = clock.NewTicker()
	}
	if c.resolver == nil {
		c.resolver = resolver.NewLocal()
	}
	if c.audio == nil {
		c.audio = silentAudio{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("session", id)
	c.score = scoring.NewAccumulator(c.rule, 0)
	return c
}

func (c *Controller) ID() string {
	return c.id
}

// Start loads the question set if needed and opens the first question. It
// returns an error wrapping domain.ErrContentLoad when the set cannot be
// loaded; the session then stays not started and Start may be retried.
// Starting a session that is already running is ignored.
func (c *Controller) Start(ctx context.Context, difficulty domain.Difficulty) error {
	if difficulty.Budget() == 0 {
		return fmt.Errorf("%w: %q", domain.ErrUnknownDifficulty, difficulty)
	}

	c.mu.Lock()
	if c.closed || c.phase != domain.PhaseNotStarted || c.loading {
		c.rejectLocked("start")
		c.mu.Unlock()
		return nil
	}

	if c.set == nil {
		c.loading = true
		c.mu.Unlock()

		set, err := c.load(ctx)

		c.mu.Lock()
		c.loading = false
		if err != nil {
			c.lastErr = err.Error()
			c.logger.Warn("question set load failed", "selection", c.selection, "error", err)
			c.publishLocked()
			c.mu.Unlock()
			return err
		}
		if c.closed || c.phase != domain.PhaseNotStarted {
			c.mu.Unlock()
			return nil
		}
		c.set = &set
	}
	if c.set.Len() == 0 {
		err := fmt.Errorf("%w: %w", domain.ErrContentLoad, domain.ErrEmptyQuestionSet)
		c.lastErr = err.Error()
		c.logger.Warn("question set is empty", "selection", c.selection, "set", c.set.ID)
		c.publishLocked()
		c.mu.Unlock()
		return err
	}

	c.difficulty = difficulty
	c.score = scoring.NewAccumulator(c.rule, 0)
	c.attempts = make([]domain.AnswerAttempt, 0, c.set.Len())
	c.lastErr = ""
	c.logger.Info("session started", "selection", c.selection, "difficulty", difficulty, "questions", c.set.Len(), "scoring", c.rule.Name)
	c.beginQuestionLocked(0, difficulty.Budget())
	c.mu.Unlock()
	return nil
}

func (c *Controller) load(ctx context.Context) (domain.QuestionSet, error) {
	if c.source == nil {
		return domain.QuestionSet{}, fmt.Errorf("%w: no question source", domain.ErrContentLoad)
	}
	set, err := c.source.LoadQuestions(ctx, c.selection)
	if err != nil {
		return domain.QuestionSet{}, fmt.Errorf("%w: %w", domain.ErrContentLoad, err)
	}
	if set.Len() == 0 {
		return domain.QuestionSet{}, fmt.Errorf("%w: %w", domain.ErrContentLoad, domain.ErrEmptyQuestionSet)
	}
	return set, nil
}

// SelectOption submits the player's answer for the current question. It
// reports false when the selection was rejected: outside the answering
// phase, a second submission for the same question, or an option that was
// not offered.
func (c *Controller) SelectOption(opt domain.Option) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.phase != domain.PhaseAwaitingAnswer || c.inFlight {
		c.rejectLocked("select")
		return false
	}
	q := c.set.At(c.index)
	if !q.HasOption(opt) {
		c.rejectLocked("select")
		return false
	}

	c.inFlight = true
	c.leaveAwaitingLocked()
	selected := opt
	c.submitAttemptLocked(&selected)

	if !c.resolver.Remote() {
		outcome, err := c.resolver.Resolve(c.ctx, q, &selected)
		c.noteResolveErrLocked(err)
		c.resolveAttemptLocked(outcome)
		c.enterFeedbackLocked()
		return true
	}

	c.epoch++
	c.phase = domain.PhaseFeedback
	c.stage = domain.StageReveal
	c.pending = true
	c.lastOutcome = &domain.Outcome{Pending: true}
	c.publishLocked()
	go c.resolveRemote(c.epoch, c.index, q, selected)
	return true
}

func (c *Controller) resolveRemote(epoch uint64, index int, q domain.Question, selected domain.Option) {
	outcome, err := c.resolver.Resolve(c.ctx, q, &selected)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.epoch != epoch || c.index != index || !c.pending {
		c.logger.Debug("discarding stale resolution", "index", index)
		return
	}
	c.pending = false
	c.noteResolveErrLocked(err)
	c.resolveAttemptLocked(outcome)
	c.enterFeedbackLocked()
}

func (c *Controller) onTick(h clock.Handle, remaining int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.armedLocked(h) {
		c.logger.Debug("stale tick dropped", "handle", h)
		return
	}
	c.remaining = remaining
	c.publishLocked()
}

func (c *Controller) onExpire(h clock.Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.armedLocked(h) {
		c.logger.Debug("stale expiry dropped", "handle", h)
		return
	}
	c.inFlight = true
	c.leaveAwaitingLocked()
	c.remaining = 0
	c.submitAttemptLocked(nil)
	outcome, err := c.resolver.Resolve(c.ctx, c.set.At(c.index), nil)
	c.noteResolveErrLocked(err)
	outcome.TimedOut = true
	c.resolveAttemptLocked(outcome)
	c.enterFeedbackLocked()
}

func (c *Controller) onDwell(epoch uint64) {
	c.mu.Lock()
	if c.closed || c.epoch != epoch || c.phase != domain.PhaseFeedback {
		c.mu.Unlock()
		return
	}
	c.stopTimer = nil

	next := c.index + 1
	if next >= c.set.Len() {
		entry := c.completeLocked()
		c.mu.Unlock()
		if c.onComplete != nil {
			c.onComplete(entry)
		}
		return
	}
	if c.stage == domain.StageReveal && c.timing.Banner > 0 {
		c.epoch++
		c.stage = domain.StageBanner
		c.scheduleLocked(c.timing.Banner)
		c.publishLocked()
		c.mu.Unlock()
		return
	}
	c.beginQuestionLocked(next, c.difficulty.Budget())
	c.mu.Unlock()
}

// Close tears the session down. Armed countdowns and pending pauses are
// cancelled and an in-flight remote validation is abandoned; its result will
// be discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.epoch++
	c.clock.Cancel(c.handle)
	c.handle = 0
	if c.stopTimer != nil {
		c.stopTimer()
		c.stopTimer = nil
	}
	if c.phase == domain.PhaseAwaitingAnswer || c.phase == domain.PhaseFeedback {
		c.stopAudioLocked()
	}
	c.cancel()
	c.logger.Info("session closed", "phase", c.phase, "index", c.index)
	c.publishLocked()
}

// Snapshot returns the current read-only state.
func (c *Controller) Snapshot() domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Restore resumes a session from a snapshot taken from a session playing the
// same question set. The controller must be not started and hold the set
// (see WithQuestionSet). A countdown is re-armed with the snapshot's
// remaining time.
func (c *Controller) Restore(snap domain.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.closed || c.phase != domain.PhaseNotStarted || c.loading:
		return fmt.Errorf("%w: restore requires a fresh session", domain.ErrInvalidTransition)
	case c.set == nil:
		return fmt.Errorf("%w: restore requires a loaded question set", domain.ErrInvalidTransition)
	case snap.Difficulty.Budget() == 0:
		return fmt.Errorf("%w: %q", domain.ErrUnknownDifficulty, snap.Difficulty)
	case snap.Index < 0 || snap.Index >= c.set.Len():
		return fmt.Errorf("%w: index %d out of range", domain.ErrInvalidTransition, snap.Index)
	}

	c.difficulty = snap.Difficulty
	c.score = scoring.NewAccumulator(c.rule, snap.Score)
	c.attempts = append([]domain.AnswerAttempt(nil), snap.Attempts...)
	c.lastErr = snap.Error
	if snap.LastOutcome != nil {
		outcome := *snap.LastOutcome
		c.lastOutcome = &outcome
	}

	switch snap.Phase {
	case domain.PhaseAwaitingAnswer:
		remaining := snap.TimeRemaining
		if remaining <= 0 {
			remaining = c.difficulty.Budget()
		}
		c.beginQuestionLocked(snap.Index, remaining)
	case domain.PhaseFeedback:
		c.epoch++
		c.index = snap.Index
		c.phase = domain.PhaseFeedback
		c.stage = snap.Stage
		if c.stage == "" {
			c.stage = domain.StageReveal
		}
		c.inFlight = true
		if c.lastOutcome != nil && c.lastOutcome.Pending {
			last := len(c.attempts) - 1
			if last >= 0 && c.attempts[last].Index == snap.Index && c.attempts[last].Selected != nil {
				c.pending = true
				c.publishLocked()
				go c.resolveRemote(c.epoch, c.index, c.set.At(c.index), *c.attempts[last].Selected)
				return nil
			}
			c.lastOutcome = &domain.Outcome{Unverified: true}
		}
		if c.stage == domain.StageBanner {
			c.scheduleLocked(c.timing.Banner)
		} else {
			c.scheduleLocked(c.timing.Dwell)
		}
		c.publishLocked()
	case domain.PhaseCompleted:
		c.epoch++
		c.index = snap.Index
		c.phase = domain.PhaseCompleted
		c.publishLocked()
	default:
		return fmt.Errorf("%w: cannot restore phase %q", domain.ErrInvalidTransition, snap.Phase)
	}
	c.logger.Info("session restored", "phase", snap.Phase, "index", snap.Index, "score", snap.Score)
	return nil
}

func (c *Controller) beginQuestionLocked(index, seconds int) {
	c.epoch++
	c.index = index
	c.phase = domain.PhaseAwaitingAnswer
	c.stage = ""
	c.remaining = seconds
	c.inFlight = false
	c.pending = false
	c.lastOutcome = nil

	h, err := c.clock.Arm(seconds, c.onTick, c.onExpire)
	if err != nil {
		c.logger.Error("arm countdown", "index", index, "error", err)
		c.lastErr = err.Error()
	}
	c.handle = h

	q := c.set.At(index)
	if q.PreviewURL == "" {
		c.logger.Warn("question has no preview", "index", index, "question", q.ID)
	} else if err := c.audio.Play(c.ctx, q.PreviewURL); err != nil {
		c.logger.Warn("audio play failed", "index", index, "error", err)
	}
	c.publishLocked()
}

// leaveAwaitingLocked runs first on every exit from the answering phase.
func (c *Controller) leaveAwaitingLocked() {
	c.clock.Cancel(c.handle)
	c.handle = 0
	c.stopAudioLocked()
}

func (c *Controller) enterFeedbackLocked() {
	c.epoch++
	c.phase = domain.PhaseFeedback
	c.stage = domain.StageReveal
	c.scheduleLocked(c.timing.Dwell)
	c.publishLocked()
}

func (c *Controller) completeLocked() domain.ScoreEntry {
	c.epoch++
	c.phase = domain.PhaseCompleted
	c.stage = ""
	c.remaining = 0
	c.clock.Cancel(c.handle)
	c.handle = 0
	c.stopAudioLocked()

	correct := 0
	for _, a := range c.attempts {
		if a.Correct != nil && *a.Correct {
			correct++
		}
	}
	c.logger.Info("session completed", "score", c.score.Total(), "correct", correct, "questions", c.set.Len())
	c.publishLocked()

	return domain.ScoreEntry{
		SessionID:  c.id,
		Selection:  c.selection,
		Difficulty: c.difficulty,
		Rule:       c.rule.Name,
		Score:      c.score.Total(),
		Correct:    correct,
		Total:      c.set.Len(),
		PlayedAt:   c.now(),
	}
}

func (c *Controller) scheduleLocked(d time.Duration) {
	epoch := c.epoch
	c.stopTimer = c.clock.AfterFunc(d, func() { c.onDwell(epoch) })
}

func (c *Controller) submitAttemptLocked(selected *domain.Option) {
	c.attempts = append(c.attempts, domain.AnswerAttempt{Index: c.index, Selected: selected})
}

// resolveAttemptLocked scores the current question's attempt. It is reached
// exactly once per question: from the selection, from the expiry, or from
// the remote resolution that a selection started.
func (c *Controller) resolveAttemptLocked(outcome domain.Outcome) {
	outcome.Pending = false
	correct := outcome.Correct && !outcome.Unverified
	if last := len(c.attempts) - 1; last >= 0 && c.attempts[last].Index == c.index {
		c.attempts[last].Correct = &correct
	}
	c.score.Apply(outcome)
	c.lastOutcome = &outcome
}

func (c *Controller) noteResolveErrLocked(err error) {
	if err == nil {
		return
	}
	c.lastErr = err.Error()
	c.logger.Warn("answer could not be verified", "index", c.index, "error", err)
}

func (c *Controller) armedLocked(h clock.Handle) bool {
	return !c.closed && c.phase == domain.PhaseAwaitingAnswer && h != 0 && h == c.handle
}

func (c *Controller) stopAudioLocked() {
	if err := c.audio.Stop(c.ctx); err != nil {
		c.logger.Warn("audio stop failed", "error", err)
	}
}

func (c *Controller) rejectLocked(trigger string) {
	c.logger.Debug("transition rejected", "trigger", trigger, "phase", c.phase, "index", c.index, "closed", c.closed, "error", domain.ErrInvalidTransition)
}

func (c *Controller) publishLocked() {
	if c.observer != nil {
		c.observer(c.snapshotLocked())
	}
}

func (c *Controller) snapshotLocked() domain.Snapshot {
	snap := domain.Snapshot{
		SessionID:     c.id,
		Phase:         c.phase,
		Stage:         c.stage,
		Index:         c.index,
		TimeRemaining: c.remaining,
		Score:         c.score.Total(),
		Difficulty:    c.difficulty,
		Error:         c.lastErr,
		Closed:        c.closed,
	}
	if c.set != nil {
		snap.Total = c.set.Len()
		if c.phase == domain.PhaseAwaitingAnswer || c.phase == domain.PhaseFeedback {
			q := c.set.At(c.index).View()
			snap.Question = &q
		}
	}
	if c.lastOutcome != nil {
		outcome := *c.lastOutcome
		snap.LastOutcome = &outcome
	}
	if len(c.attempts) > 0 {
		snap.Attempts = append([]domain.AnswerAttempt(nil), c.attempts...)
	}
	return snap
}

type silentAudio struct{}

func (silentAudio) Play(context.Context, string) error { return nil }
func (silentAudio) Stop(context.Context) error         { return nil }
