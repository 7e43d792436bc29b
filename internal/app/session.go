package app

import (
	"math"
	"sync"
	"time"

	"video-session-service/internal/domain"
)

// Session is the in-memory state machine for one user's attempt at one
// video's interactive layer. All mutation goes through its methods; the
// scorer and the transport never touch fields directly.
type Session struct {
	id       string
	tenantID string
	userID   string
	videoID  string
	catalog  domain.Catalog
	now      func() time.Time

	mu             sync.RWMutex
	status         domain.SessionStatus
	answered       map[string]struct{}
	attempts       []domain.Attempt
	totalPauses    int
	watchTime      float64
	activeMomentID string
	activatedAt    time.Time
	updatedAt      time.Time
	finalResult    *domain.FinalResult
	subscribers    map[chan domain.Progress]struct{}
}

// NewSession is exported for infrastructure layers that need to seed sessions.
func NewSession(id, tenantID, userID, videoID string, catalog domain.Catalog) *Session {
	return NewSessionWithClock(id, tenantID, userID, videoID, catalog, time.Now)
}

// NewSessionWithClock allows deterministic timestamps in tests.
func NewSessionWithClock(id, tenantID, userID, videoID string, catalog domain.Catalog, now func() time.Time) *Session {
	return &Session{
		id:          id,
		tenantID:    tenantID,
		userID:      userID,
		videoID:     videoID,
		catalog:     catalog,
		now:         now,
		status:      domain.StatusPending,
		answered:    make(map[string]struct{}),
		updatedAt:   now(),
		subscribers: make(map[chan domain.Progress]struct{}),
	}
}

func (s *Session) ID() string       { return s.id }
func (s *Session) TenantID() string { return s.tenantID }
func (s *Session) UserID() string   { return s.userID }
func (s *Session) VideoID() string  { return s.videoID }

// Catalog returns the immutable snapshot taken at session creation. A
// mid-session catalog edit never affects an in-progress session.
func (s *Session) Catalog() domain.Catalog { return s.catalog }

func (s *Session) Status() domain.SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// UpdatedAt reports the last transition time, used by store sweeps.
func (s *Session) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// start moves pending → active. A second call is a no-op so that client
// retries and page reloads resume the same session.
func (s *Session) start() (domain.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case domain.StatusPending:
		s.status = domain.StatusActive
		s.updatedAt = s.now()
	case domain.StatusActive:
		// idempotent re-start
	default:
		return domain.Progress{}, domain.ErrSessionNotActive
	}
	return s.broadcastLocked(), nil
}

// observeTick feeds one playback clock reading through the trigger matcher.
// It returns the moment to activate now, or nil. On activation the session
// enters the awaiting-answer sub-state and counts one pause; the caller is
// responsible for actually pausing playback.
func (s *Session) observeTick(currentTime, duration, window float64) (*domain.KeyMoment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusActive {
		return nil, domain.ErrSessionNotActive
	}
	if s.activeMomentID != "" {
		return nil, nil
	}
	m, ok := nextTriggerable(s.catalog, s.answered, currentTime, duration, window)
	if !ok {
		if currentTime > s.watchTime {
			s.watchTime = currentTime
		}
		return nil, nil
	}

	s.activeMomentID = m.ID
	s.activatedAt = s.now()
	s.totalPauses++
	if currentTime > s.watchTime {
		s.watchTime = currentTime
	}
	s.updatedAt = s.activatedAt
	return &m, nil
}

// resolveAnswer scores and records the answer for the currently active
// moment. Scoring happens exactly once; the stored attempt is authoritative.
func (s *Session) resolveAnswer(moment domain.KeyMoment, userAnswer string) (domain.Attempt, domain.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusActive {
		return domain.Attempt{}, domain.Progress{}, domain.ErrSessionNotActive
	}
	if _, done := s.answered[moment.ID]; done {
		return domain.Attempt{}, domain.Progress{}, domain.ErrMomentAlreadyAnswered
	}
	if s.activeMomentID != moment.ID {
		return domain.Attempt{}, domain.Progress{}, domain.ErrNoActiveMoment
	}

	correct := scoreAnswer(moment, userAnswer)
	attempt := domain.Attempt{
		MomentID:            moment.ID,
		UserAnswer:          userAnswer,
		ExpectedAnswer:      moment.CorrectAnswer,
		IsCorrect:           correct,
		ResponseTimeSeconds: s.now().Sub(s.activatedAt).Seconds(),
	}
	s.attempts = append(s.attempts, attempt)
	s.answered[moment.ID] = struct{}{}
	s.activeMomentID = ""
	s.updatedAt = s.now()
	return attempt, s.broadcastLocked(), nil
}

// skip marks a moment resolved with no attempt recorded. It counts toward
// the scoring denominator but never the correct count. A late skip (after
// the client's own answer timeout) is accepted as long as the moment is
// still unanswered, even if it is no longer the active one.
func (s *Session) skip(momentID string) (domain.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != domain.StatusActive {
		return domain.Progress{}, domain.ErrSessionNotActive
	}
	if _, done := s.answered[momentID]; done {
		return domain.Progress{}, domain.ErrMomentAlreadyAnswered
	}

	s.answered[momentID] = struct{}{}
	if s.activeMomentID == momentID {
		s.activeMomentID = ""
	}
	s.updatedAt = s.now()
	return s.broadcastLocked(), nil
}

// finalize commits the terminal result. The first call computes and stores
// it; every later call returns the stored result unchanged. The bool reports
// whether this call was the committing one.
func (s *Session) finalize(watchTimeSeconds float64, totalPauses, passingScore int) (domain.FinalResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalResult != nil {
		return *s.finalResult, false, nil
	}
	if s.status != domain.StatusActive {
		return domain.FinalResult{}, false, domain.ErrSessionNotActive
	}

	if watchTimeSeconds > s.watchTime {
		s.watchTime = watchTimeSeconds
	}
	if totalPauses > s.totalPauses {
		s.totalPauses = totalPauses
	}

	correct := 0
	for _, a := range s.attempts {
		if a.IsCorrect {
			correct++
		}
	}
	total := s.catalog.Len()
	score := 0
	if total > 0 {
		score = int(math.Round(100 * float64(correct) / float64(total)))
	}

	result := domain.FinalResult{
		SessionID:        s.id,
		FinalScore:       score,
		CorrectCount:     correct,
		TotalCount:       total,
		Passed:           score >= passingScore,
		WatchTimeSeconds: s.watchTime,
		TotalPauses:      s.totalPauses,
	}
	s.finalResult = &result
	s.status = domain.StatusCompleted
	s.activeMomentID = ""
	s.updatedAt = s.now()
	s.broadcastLocked()
	return result, true, nil
}

// abandon terminally closes a session that went idle before finishing.
// No-op once the session is terminal.
func (s *Session) abandon() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Terminal() {
		return false
	}
	s.status = domain.StatusAbandoned
	s.activeMomentID = ""
	s.updatedAt = s.now()
	s.broadcastLocked()
	return true
}

// Abandon is exported for store sweeps; see abandon.
func (s *Session) Abandon() bool { return s.abandon() }

// Attempts returns a copy of the append-only attempt log.
func (s *Session) Attempts() []domain.Attempt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Attempt, len(s.attempts))
	copy(out, s.attempts)
	return out
}

// FinalResult returns the committed result once the session is completed.
func (s *Session) FinalResult() (domain.FinalResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.finalResult == nil {
		return domain.FinalResult{}, false
	}
	return *s.finalResult, true
}

// Progress snapshots the read model for polling callers.
func (s *Session) Progress() domain.Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) subscribe() (<-chan domain.Progress, func()) {
	ch := make(chan domain.Progress, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() domain.Progress {
	p := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- p:
		default:
			// Drop the stale update so a slow client never blocks the session.
			select {
			case <-ch:
			default:
			}
			ch <- p
		}
	}
	return p
}

func (s *Session) snapshotLocked() domain.Progress {
	correct := 0
	for _, a := range s.attempts {
		if a.IsCorrect {
			correct++
		}
	}
	total := s.catalog.Len()
	percent := 0
	if total > 0 {
		percent = int(math.Round(100 * float64(correct) / float64(total)))
	}
	return domain.Progress{
		SessionID:           s.id,
		Status:              s.status,
		TotalQuestions:      total,
		AnsweredQuestions:   len(s.answered),
		CorrectAnswers:      correct,
		CurrentScorePercent: percent,
	}
}
