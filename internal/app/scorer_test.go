package app

import (
	"testing"

	"video-session-service/internal/domain"
)

func TestScoreMultipleChoiceExactMatch(t *testing.T) {
	m := domain.KeyMoment{Kind: domain.MultipleChoice, Options: []string{"Mars", "Jupiter"}, CorrectAnswer: "Jupiter"}
	if !scoreAnswer(m, "Jupiter") {
		t.Fatalf("exact option should be correct")
	}
	if scoreAnswer(m, "jupiter") {
		t.Fatalf("multiple choice is case-sensitive exact equality")
	}
	if scoreAnswer(m, "Mars") {
		t.Fatalf("wrong option should be incorrect")
	}
}

func TestScoreTrueFalseExactMatch(t *testing.T) {
	m := domain.KeyMoment{Kind: domain.TrueFalse, CorrectAnswer: "true"}
	if !scoreAnswer(m, "true") {
		t.Fatalf("matching answer should be correct")
	}
	if scoreAnswer(m, "false") || scoreAnswer(m, "True") {
		t.Fatalf("true_false requires exact equality")
	}
}

func TestScoreShortAnswerSubstringRule(t *testing.T) {
	m := domain.KeyMoment{Kind: domain.ShortAnswer, CorrectAnswer: "Madrid"}
	cases := []struct {
		answer string
		want   bool
	}{
		{"Madrid", true},
		{"la capital es Madrid", true},
		{"MADRID!", true},
		{"madrí", false},
		{"Barcelona", false},
		{"", false},
	}
	for _, c := range cases {
		if got := scoreAnswer(m, c.answer); got != c.want {
			t.Fatalf("scoreAnswer(%q) = %v, want %v", c.answer, got, c.want)
		}
	}
}
