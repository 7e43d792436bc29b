package app

import (
	"testing"

	"video-session-service/internal/domain"
)

func threeMomentCatalog() domain.Catalog {
	return domain.NewCatalog("v", []domain.KeyMoment{
		{ID: "m1", TimestampSeconds: 5, Question: "?", Kind: domain.TrueFalse, CorrectAnswer: "true"},
		{ID: "m2", TimestampSeconds: 15, Question: "?", Kind: domain.TrueFalse, CorrectAnswer: "true"},
		{ID: "m3", TimestampSeconds: 25, Question: "?", Kind: domain.TrueFalse, CorrectAnswer: "true"},
	})
}

func TestFinalizeRoundsDeterministically(t *testing.T) {
	s := NewSession("s1", "t1", "u1", "v", threeMomentCatalog())
	if _, err := s.start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	m, _ := s.catalog.Moment("m1")
	if _, err := s.observeTick(5, 60, DefaultActivationWindow); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if _, _, err := s.resolveAnswer(m, "true"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	result, committed, err := s.finalize(60, 1, DefaultPassingScore)
	if err != nil || !committed {
		t.Fatalf("finalize: committed=%v err=%v", committed, err)
	}
	// 1/3 rounds to 33, not 33.33 truncated oddly elsewhere.
	if result.FinalScore != 33 || result.Passed {
		t.Fatalf("expected 33/fail, got %+v", result)
	}
}

func TestPauseCountedOncePerMoment(t *testing.T) {
	s := NewSession("s1", "t1", "u1", "v", threeMomentCatalog())
	if _, err := s.start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	if m, _ := s.observeTick(5, 60, DefaultActivationWindow); m == nil {
		t.Fatalf("expected m1 activation")
	}
	// Repeated ticks inside the window while awaiting the answer must not
	// re-activate or re-count the pause.
	for i := 0; i < 3; i++ {
		if m, _ := s.observeTick(5.2, 60, DefaultActivationWindow); m != nil {
			t.Fatalf("re-activation while awaiting answer")
		}
	}

	result, committed, err := s.finalize(60, 0, DefaultPassingScore)
	if err != nil || !committed {
		t.Fatalf("finalize: committed=%v err=%v", committed, err)
	}
	if result.TotalPauses != 1 {
		t.Fatalf("pause must be counted once per moment, got %d", result.TotalPauses)
	}
}

func TestAbandonIsTerminal(t *testing.T) {
	s := NewSession("s1", "t1", "u1", "v", threeMomentCatalog())
	if _, err := s.start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !s.Abandon() {
		t.Fatalf("expected abandon to close the session")
	}
	if s.Abandon() {
		t.Fatalf("abandon must be a one-way transition")
	}
	if _, err := s.start(); err != domain.ErrSessionNotActive {
		t.Fatalf("restarting an abandoned session must fail, got %v", err)
	}
	if _, _, err := s.finalize(10, 0, DefaultPassingScore); err != domain.ErrSessionNotActive {
		t.Fatalf("finalizing an abandoned session must fail, got %v", err)
	}
}

func TestWatchTimeMonotonic(t *testing.T) {
	s := NewSession("s1", "t1", "u1", "v", threeMomentCatalog())
	if _, err := s.start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Forward play, then a backward seek: the counter never decreases.
	if _, err := s.observeTick(40, 60, DefaultActivationWindow); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if _, err := s.observeTick(12, 60, DefaultActivationWindow); err != nil {
		t.Fatalf("tick: %v", err)
	}

	result, _, err := s.finalize(0, 0, DefaultPassingScore)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if result.WatchTimeSeconds != 40 {
		t.Fatalf("expected watch time 40, got %v", result.WatchTimeSeconds)
	}
}
