package app

import (
	"strings"

	"video-session-service/internal/domain"
)

// scoreAnswer applies the correctness rule for the moment's question kind.
// multiple_choice and true_false require exact equality with the expected
// answer. short_answer is correct when the user's answer contains the
// expected answer, case-insensitively — deliberately lenient, so
// "la capital es Madrid" matches an expected "Madrid". Product has signed
// off on keeping the containment rule as-is.
//
// Catalog snapshots reject unknown kinds, so the switch is exhaustive over
// everything that can reach this point.
func scoreAnswer(m domain.KeyMoment, userAnswer string) bool {
	switch m.Kind {
	case domain.MultipleChoice, domain.TrueFalse:
		return userAnswer == m.CorrectAnswer
	case domain.ShortAnswer:
		return strings.Contains(strings.ToLower(userAnswer), strings.ToLower(m.CorrectAnswer))
	}
	return false
}
