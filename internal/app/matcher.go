package app

import (
	"math"

	"video-session-service/internal/domain"
)

// DefaultActivationWindow is the time tolerance, in seconds, used to decide
// that a key moment should fire "now".
const DefaultActivationWindow = 1.0

// nextTriggerable selects at most one moment to activate for the given
// playback clock reading. The catalog is sorted ascending at snapshot time,
// so when several unanswered moments fall inside the window at once the
// smallest timestamp wins; the others stay eligible and fire if their window
// is entered again (including after a backward seek). Already-answered
// moments never re-trigger.
//
// A zero or negative duration, or a negative current time, means the
// playback surface has not reported sane state yet; the matcher must no-op
// rather than trigger spuriously.
func nextTriggerable(catalog domain.Catalog, answered map[string]struct{}, currentTime, duration, window float64) (domain.KeyMoment, bool) {
	if duration <= 0 || currentTime < 0 || math.IsNaN(currentTime) {
		return domain.KeyMoment{}, false
	}
	if window <= 0 {
		window = DefaultActivationWindow
	}
	for _, m := range catalog.Moments {
		if _, done := answered[m.ID]; done {
			continue
		}
		if math.Abs(currentTime-m.TimestampSeconds) < window {
			return m, true
		}
	}
	return domain.KeyMoment{}, false
}
