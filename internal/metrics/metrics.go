// Package metrics exposes Prometheus counters for the session engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	sessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "video_session",
		Name:      "sessions_started_total",
		Help:      "Number of interactive video sessions created.",
	})
	sessionsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "video_session",
		Name:      "sessions_completed_total",
		Help:      "Number of sessions finalized, by pass/fail outcome.",
	}, []string{"outcome"})
	sessionsAbandoned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "video_session",
		Name:      "sessions_abandoned_total",
		Help:      "Number of idle sessions closed by the store sweep.",
	})
	momentsTriggered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "video_session",
		Name:      "moments_triggered_total",
		Help:      "Number of key moments activated by the trigger matcher.",
	})
	answersScored = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "video_session",
		Name:      "answers_scored_total",
		Help:      "Number of answers scored, by correctness.",
	}, []string{"result"})
	finalizeDeduped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "video_session",
		Name:      "finalize_deduplicated_total",
		Help:      "Number of finalize calls that returned an already-committed result.",
	})
)

func RecordSessionStarted() { sessionsStarted.Inc() }

func RecordSessionCompleted(passed bool) {
	if passed {
		sessionsCompleted.WithLabelValues("passed").Inc()
	} else {
		sessionsCompleted.WithLabelValues("failed").Inc()
	}
}

func RecordSessionAbandoned() { sessionsAbandoned.Inc() }

func RecordMomentTriggered() { momentsTriggered.Inc() }

func RecordAnswerScored(correct bool) {
	if correct {
		answersScored.WithLabelValues("correct").Inc()
	} else {
		answersScored.WithLabelValues("incorrect").Inc()
	}
}

func RecordFinalizeDeduped() { finalizeDeduped.Inc() }

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler { return promhttp.Handler() }
