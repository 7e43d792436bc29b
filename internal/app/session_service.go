package app

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"video-session-service/internal/domain"
	"video-session-service/internal/metrics"
)

// SessionRepository abstracts how sessions are stored (in-memory, Redis, etc).
// OwnerKey lookups serve the idempotent-start path; id lookups serve every
// later call. Sweep enforces the store lifecycle: terminal sessions are
// deleted after a TTL, idle active sessions are abandoned.
type SessionRepository interface {
	Lookup(ownerKey string) (*Session, bool)
	GetOrCreate(ownerKey string, create func() *Session) (*Session, bool)
	Get(sessionID string) (*Session, bool)
	// Sweep abandons active sessions idle past idleTTL and removes terminal
	// sessions older than completedTTL. It returns the sessions abandoned in
	// this pass so the caller can settle quota, and the number removed.
	Sweep(completedTTL, idleTTL time.Duration) (abandoned []*Session, removed int)
}

// CatalogRepository loads key-moment catalogs (from cache/backing store).
type CatalogRepository interface {
	GetCatalog(ctx context.Context, videoID string) (domain.Catalog, error)
}

// QuotaAuthority gates whether a tenant may start another session.
type QuotaAuthority interface {
	Acquire(ctx context.Context, tenantID string) error
	Release(ctx context.Context, tenantID string)
}

// ResultArchive persists committed final results for certificates/analytics.
type ResultArchive interface {
	CommitFinalResult(ctx context.Context, tenantID, userID, videoID string, result domain.FinalResult) error
}

// EngineOptions holds the tunables of the session engine. Zero values fall
// back to defaults; Quota and Archive are optional collaborators.
type EngineOptions struct {
	PassingScore     int     // default 70
	ActivationWindow float64 // seconds, default DefaultActivationWindow
	AllowSkip        bool    // permits explicit user skips
	Quota            QuotaAuthority
	Archive          ResultArchive
}

// DefaultPassingScore is the pass/fail threshold when none is configured.
const DefaultPassingScore = 70

// SessionService contains the interactive video session use cases.
type SessionService struct {
	sessions SessionRepository
	catalogs CatalogRepository
	opts     EngineOptions
}

func NewSessionService(sessions SessionRepository, catalogs CatalogRepository, opts EngineOptions) *SessionService {
	if opts.PassingScore <= 0 {
		opts.PassingScore = DefaultPassingScore
	}
	if opts.ActivationWindow <= 0 {
		opts.ActivationWindow = DefaultActivationWindow
	}
	return &SessionService{sessions: sessions, catalogs: catalogs, opts: opts}
}

// StartedSession is returned from Start.
type StartedSession struct {
	SessionID string          `json:"sessionId"`
	Resumed   bool            `json:"resumed"`
	Progress  domain.Progress `json:"progress"`
}

// Start begins (or resumes) a session for one user on one video. The catalog
// snapshot is taken here and never refreshed for the session's lifetime. A
// retry or page reload lands on the same non-terminal session instead of
// opening a second attempt.
func (s *SessionService) Start(ctx context.Context, tenantID, userID, videoID string) (StartedSession, error) {
	key := ownerKey(tenantID, userID, videoID)
	if existing, ok := s.sessions.Lookup(key); ok {
		progress, err := existing.start()
		if err != nil {
			return StartedSession{}, err
		}
		return StartedSession{SessionID: existing.ID(), Resumed: true, Progress: progress}, nil
	}

	catalog, err := s.catalogs.GetCatalog(ctx, videoID)
	if err != nil {
		return StartedSession{}, err
	}

	if s.opts.Quota != nil {
		if err := s.opts.Quota.Acquire(ctx, tenantID); err != nil {
			return StartedSession{}, err
		}
	}

	session, created := s.sessions.GetOrCreate(key, func() *Session {
		return NewSession(uuid.NewString(), tenantID, userID, videoID, catalog)
	})
	if !created && s.opts.Quota != nil {
		// Lost the create race to a concurrent start; give the slot back.
		s.opts.Quota.Release(ctx, tenantID)
	}

	progress, err := session.start()
	if err != nil {
		return StartedSession{}, err
	}
	if created {
		metrics.RecordSessionStarted()
	}
	return StartedSession{SessionID: session.ID(), Resumed: !created, Progress: progress}, nil
}

// Tick feeds one playback clock reading into the trigger matcher. A non-nil
// view means the moment fired: playback must pause until it is resolved.
func (s *SessionService) Tick(ctx context.Context, sessionID string, currentTime, duration float64) (*domain.MomentView, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrInvalidSession
	}
	moment, err := session.observeTick(currentTime, duration, s.opts.ActivationWindow)
	if err != nil || moment == nil {
		return nil, err
	}
	metrics.RecordMomentTriggered()
	view := moment.View()
	return &view, nil
}

// SubmitAnswer scores and records an answer for the active moment. An
// already-answered moment yields ErrMomentAlreadyAnswered, which retrying
// callers treat as success-equivalent; a rejected answer leaves the moment
// active so the user can retry with a corrected one.
func (s *SessionService) SubmitAnswer(ctx context.Context, sessionID, momentID, userAnswer string) (domain.AnswerResult, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.AnswerResult{}, domain.ErrInvalidSession
	}
	moment, ok := session.Catalog().Moment(momentID)
	if !ok {
		return domain.AnswerResult{}, domain.ErrCatalogMismatch
	}
	attempt, progress, err := session.resolveAnswer(moment, userAnswer)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	metrics.RecordAnswerScored(attempt.IsCorrect)
	return domain.AnswerResult{MomentID: momentID, IsCorrect: attempt.IsCorrect, Progress: progress}, nil
}

// SkipMoment resolves a moment with no attempt recorded. The client's
// answer-timeout auto-skip and the explicit user skip share this single
// entry point; only the latter is gated by configuration.
func (s *SessionService) SkipMoment(ctx context.Context, sessionID, momentID string, auto bool) (domain.Progress, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.Progress{}, domain.ErrInvalidSession
	}
	if !auto && !s.opts.AllowSkip {
		return domain.Progress{}, domain.ErrSkipDisabled
	}
	if _, ok := session.Catalog().Moment(momentID); !ok {
		return domain.Progress{}, domain.ErrCatalogMismatch
	}
	return session.skip(momentID)
}

// Finalize commits the session's terminal result. The first call computes,
// stores, and archives it; duplicate and concurrent calls observe the stored
// result unchanged.
func (s *SessionService) Finalize(ctx context.Context, sessionID string, watchTimeSeconds float64, totalPauses int) (domain.FinalResult, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.FinalResult{}, domain.ErrInvalidSession
	}
	result, committed, err := session.finalize(watchTimeSeconds, totalPauses, s.opts.PassingScore)
	if err != nil {
		return domain.FinalResult{}, err
	}
	if !committed {
		metrics.RecordFinalizeDeduped()
		return result, nil
	}

	metrics.RecordSessionCompleted(result.Passed)
	if s.opts.Quota != nil {
		s.opts.Quota.Release(ctx, session.TenantID())
	}
	if s.opts.Archive != nil {
		if err := s.opts.Archive.CommitFinalResult(ctx, session.TenantID(), session.UserID(), session.VideoID(), result); err != nil {
			// The in-memory result stands either way; archival is retried by ops tooling.
			log.Printf("archive final result for session %s: %v", sessionID, err)
		}
	}
	return result, nil
}

// Progress returns the latest committed read model for a session.
func (s *SessionService) Progress(ctx context.Context, sessionID string) (domain.Progress, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return domain.Progress{}, domain.ErrInvalidSession
	}
	return session.Progress(), nil
}

// Session exposes the underlying state machine for read-only inspection
// (attempt log, final result) by transports and tests.
func (s *SessionService) Session(sessionID string) (*Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrInvalidSession
	}
	return session, nil
}

// Subscribe returns a channel that receives progress updates for a session.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *SessionService) Subscribe(_ context.Context, sessionID string) (<-chan domain.Progress, func(), error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrInvalidSession
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Sweep runs one store lifecycle pass: idle sessions are abandoned (their
// quota slot released), terminal sessions past their retention TTL are
// dropped. Meant to be driven by a ticker in the server wiring.
func (s *SessionService) Sweep(ctx context.Context, completedTTL, idleTTL time.Duration) {
	abandoned, removed := s.sessions.Sweep(completedTTL, idleTTL)
	for _, session := range abandoned {
		metrics.RecordSessionAbandoned()
		if s.opts.Quota != nil {
			s.opts.Quota.Release(ctx, session.TenantID())
		}
	}
	if len(abandoned) > 0 || removed > 0 {
		log.Printf("session sweep: abandoned=%d removed=%d", len(abandoned), removed)
	}
}

// ownerKey identifies "one user's one attempt at one video" for the
// idempotent-start lookup.
func ownerKey(tenantID, userID, videoID string) string {
	return tenantID + "/" + userID + "/" + videoID
}
