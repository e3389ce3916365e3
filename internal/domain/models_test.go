package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestOptionIdentityIgnoresCover(t *testing.T) {
	a := Option{Name: "Innuendo", Artist: "Queen", AlbumCover: "a.jpg"}
	b := Option{Name: "Innuendo", Artist: "Queen"}
	c := Option{Name: "Innuendo", Artist: "Queen + Paul Rodgers"}
	if !a.Same(b) || a.Same(c) {
		t.Fatalf("identity must be (name, artist)")
	}
	q := Question{Options: []Option{b}}
	if !q.HasOption(a) || q.HasOption(c) {
		t.Fatalf("HasOption must use identity")
	}
}

func TestQuestionViewStripsAnswer(t *testing.T) {
	correct := Option{Name: "Flash", Artist: "Queen"}
	q := Question{ID: "s:1", Options: []Option{correct}, Correct: &correct}
	v := q.View()
	if v.Correct != nil {
		t.Fatalf("view leaks the answer")
	}
	v.Options[0].Name = "changed"
	if q.Options[0].Name != "Flash" {
		t.Fatalf("view shares the options slice")
	}
	raw, _ := json.Marshal(v)
	var decoded map[string]any
	_ = json.Unmarshal(raw, &decoded)
	if _, ok := decoded["correct_option"]; ok {
		t.Fatalf("correct_option serialized for a view: %s", raw)
	}
}

func TestParseDifficulty(t *testing.T) {
	for raw, want := range map[string]int{"Easy": 30, "medium": 15, " HARD ": 5} {
		d, err := ParseDifficulty(raw)
		if err != nil || d.Budget() != want {
			t.Fatalf("%q: got %q %v", raw, d, err)
		}
	}
	if _, err := ParseDifficulty("expert"); !errors.Is(err, ErrUnknownDifficulty) {
		t.Fatalf("expected ErrUnknownDifficulty, got %v", err)
	}
}

func TestQuestionIDRoundTrip(t *testing.T) {
	id := QuestionID("0b1c:set", 3)
	set, ok := SetIDOf(id)
	if !ok || set != "0b1c:set" {
		t.Fatalf("expected set id back, got %q %v", set, ok)
	}
	if _, ok := SetIDOf("plain"); ok {
		t.Fatalf("expected no set id")
	}
}
