package scoring

import (
	"fmt"
	"strings"
	"sync"

	"songquiz-service/internal/domain"
)

// Rule maps each kind of outcome to a score delta. It is fixed for a session.
type Rule struct {
	Name      string `yaml:"name" json:"name"`
	Correct   int    `yaml:"correct" json:"correct"`
	Incorrect int    `yaml:"incorrect" json:"incorrect"`
	// Timeout applies when the countdown ran out without a selection.
	Timeout int `yaml:"timeout" json:"timeout"`
}

var (
	// Standard counts correct answers.
	Standard = Rule{Name: "standard", Correct: 1, Incorrect: 0, Timeout: 0}
	// Penalty rewards correct answers and takes points for anything else.
	Penalty = Rule{Name: "penalty", Correct: 10, Incorrect: -10, Timeout: -10}
)

// RuleByName resolves a preset; the empty name selects Standard.
func RuleByName(name string) (Rule, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", Standard.Name:
		return Standard, nil
	case Penalty.Name:
		return Penalty, nil
	}
	return Rule{}, fmt.Errorf("unknown scoring rule %q", name)
}

// Delta returns the score change for an outcome. Unverified answers count as
// incorrect.
func (r Rule) Delta(outcome domain.Outcome) int {
	switch {
	case outcome.TimedOut:
		return r.Timeout
	case outcome.Correct && !outcome.Unverified:
		return r.Correct
	default:
		return r.Incorrect
	}
}

// Accumulator holds the running total of one session.
type Accumulator struct {
	mu    sync.Mutex
	rule  Rule
	total int
}

func NewAccumulator(rule Rule, initial int) *Accumulator {
	return &Accumulator{rule: rule, total: initial}
}

// Apply adds the outcome's delta and returns the new total.
func (a *Accumulator) Apply(outcome domain.Outcome) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total += a.rule.Delta(outcome)
	return a.total
}

func (a *Accumulator) Total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

func (a *Accumulator) Rule() Rule {
	return a.rule
}
