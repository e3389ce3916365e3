package domain

import (
	"fmt"
	"strings"
	"time"
)

// Option is one selectable answer. Only Name and Artist identify it; the album
// cover is display data and never takes part in correctness checks.
type Option struct {
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	AlbumCover string `json:"album_cover,omitempty"`
}

// OptionKey is the identity tuple of an Option.
type OptionKey struct {
	Name   string
	Artist string
}

// Key returns the identity tuple of the option.
func (o Option) Key() OptionKey {
	return OptionKey{Name: o.Name, Artist: o.Artist}
}

// Same reports whether both options name the same track.
func (o Option) Same(other Option) bool {
	return o.Key() == other.Key()
}

// Question is a single "name that track" prompt.
type Question struct {
	ID         string   `json:"question_id"`
	PreviewURL string   `json:"audio_preview_url"`
	Options    []Option `json:"options"`
	// Correct is nil when the answer is withheld and checked remotely.
	Correct *Option `json:"correct_option,omitempty"`
}

// HasOption reports whether opt is one of the offered options.
func (q Question) HasOption(opt Option) bool {
	for _, candidate := range q.Options {
		if candidate.Same(opt) {
			return true
		}
	}
	return false
}

// View returns a copy safe to hand to a player: the correct option is removed.
func (q Question) View() Question {
	options := make([]Option, len(q.Options))
	copy(options, q.Options)
	return Question{ID: q.ID, PreviewURL: q.PreviewURL, Options: options}
}

// QuestionSet is the ordered, immutable question list of one session.
type QuestionSet struct {
	ID        string     `json:"id"`
	Selection string     `json:"selection"`
	Questions []Question `json:"questions"`
}

func (s QuestionSet) Len() int {
	return len(s.Questions)
}

func (s QuestionSet) At(i int) Question {
	return s.Questions[i]
}

// QuestionID builds the identifier of the n-th (1-based) question of a set.
func QuestionID(setID string, n int) string {
	return fmt.Sprintf("%s:%d", setID, n)
}

// SetIDOf extracts the set identifier from a question identifier.
func SetIDOf(questionID string) (string, bool) {
	i := strings.LastIndex(questionID, ":")
	if i <= 0 {
		return "", false
	}
	return questionID[:i], true
}

// Difficulty selects the per-question time budget.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty accepts "Easy", "easy", "EASY" and so on.
func ParseDifficulty(raw string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(raw)))
	if d.Budget() == 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownDifficulty, raw)
	}
	return d, nil
}

// Budget returns the countdown length in seconds, or 0 for an unknown value.
func (d Difficulty) Budget() int {
	switch d {
	case DifficultyEasy:
		return 30
	case DifficultyMedium:
		return 15
	case DifficultyHard:
		return 5
	}
	return 0
}

// Phase is the top-level state of a session.
type Phase string

const (
	PhaseNotStarted     Phase = "not_started"
	PhaseAwaitingAnswer Phase = "awaiting_answer"
	PhaseFeedback       Phase = "feedback"
	PhaseCompleted      Phase = "completed"
)

// FeedbackStage splits the Feedback phase into the answer reveal and the
// "next song" banner shown before the following question.
type FeedbackStage string

const (
	StageReveal FeedbackStage = "reveal"
	StageBanner FeedbackStage = "banner"
)

// Outcome is the judged result of one attempt.
type Outcome struct {
	Correct  bool `json:"correct"`
	TimedOut bool `json:"timedOut,omitempty"`
	// Unverified marks a remote validation that could not be completed.
	Unverified bool `json:"unverified,omitempty"`
	// Pending is set while a remote validation is in flight.
	Pending bool `json:"pending,omitempty"`
}

// AnswerAttempt records the answer given for one question. Selected is nil
// for a timeout and Correct is nil until the attempt is resolved.
type AnswerAttempt struct {
	Index    int     `json:"index"`
	Selected *Option `json:"selected,omitempty"`
	Correct  *bool   `json:"correct,omitempty"`
}

// Snapshot is the read-only state exposed after every transition.
type Snapshot struct {
	SessionID     string          `json:"sessionId"`
	Phase         Phase           `json:"phase"`
	Stage         FeedbackStage   `json:"stage,omitempty"`
	Index         int             `json:"index"`
	Total         int             `json:"total"`
	TimeRemaining int             `json:"timeRemaining"`
	Score         int             `json:"score"`
	Difficulty    Difficulty      `json:"difficulty,omitempty"`
	LastOutcome   *Outcome        `json:"lastOutcome,omitempty"`
	Attempts      []AnswerAttempt `json:"attempts,omitempty"`
	Question      *Question       `json:"question,omitempty"`
	Error         string          `json:"error,omitempty"`
	Closed        bool            `json:"closed,omitempty"`
}

// Track is one playlist entry questions are generated from.
type Track struct {
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	AlbumCover string `json:"album_cover"`
	PreviewURL string `json:"preview_url"`
}

// Option converts the track into an answer option.
func (t Track) Option() Option {
	return Option{Name: t.Name, Artist: t.Artist, AlbumCover: t.AlbumCover}
}

// ScoreEntry is the scoreboard record of a completed session.
type ScoreEntry struct {
	SessionID  string     `json:"sessionId"`
	Selection  string     `json:"playlistId"`
	Difficulty Difficulty `json:"difficulty"`
	Rule       string     `json:"scoring"`
	Score      int        `json:"score"`
	Correct    int        `json:"correct"`
	Total      int        `json:"total"`
	PlayedAt   time.Time  `json:"playedAt"`
}
