package domain

import "sort"

// QuestionKind tags the answer format of a key moment. Scoring switches
// exhaustively on this tag; unknown kinds are rejected at catalog build time.
type QuestionKind string

const (
	MultipleChoice QuestionKind = "multiple_choice"
	TrueFalse      QuestionKind = "true_false"
	ShortAnswer    QuestionKind = "short_answer"
)

// Valid reports whether the kind is one of the known variants.
func (k QuestionKind) Valid() bool {
	switch k {
	case MultipleChoice, TrueFalse, ShortAnswer:
		return true
	}
	return false
}

// KeyMoment is a timestamped question anchored to a position in a video.
type KeyMoment struct {
	ID               string       `json:"id"`
	TimestampSeconds float64      `json:"timestampSeconds"`
	Question         string       `json:"question"`
	Kind             QuestionKind `json:"kind"`
	Options          []string     `json:"options,omitempty"` // multiple_choice only
	CorrectAnswer    string       `json:"correctAnswer"`
}

// Catalog is the immutable-per-session set of key moments for one video.
// Construct it through NewCatalog so moments are sorted and deduped
// regardless of producer ordering.
type Catalog struct {
	VideoID string      `json:"videoId"`
	Moments []KeyMoment `json:"moments"`
}

// NewCatalog snapshots a producer-supplied moment list: sorts ascending by
// timestamp, drops duplicate ids (first occurrence wins), and drops moments
// with negative timestamps or an unknown kind.
func NewCatalog(videoID string, moments []KeyMoment) Catalog {
	seen := make(map[string]struct{}, len(moments))
	clean := make([]KeyMoment, 0, len(moments))
	for _, m := range moments {
		if m.ID == "" || m.TimestampSeconds < 0 || !m.Kind.Valid() {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		clean = append(clean, m)
	}
	sort.SliceStable(clean, func(i, j int) bool {
		return clean[i].TimestampSeconds < clean[j].TimestampSeconds
	})
	return Catalog{VideoID: videoID, Moments: clean}
}

// Moment returns the moment with the given id if it belongs to the catalog.
func (c Catalog) Moment(id string) (KeyMoment, bool) {
	for _, m := range c.Moments {
		if m.ID == id {
			return m, true
		}
	}
	return KeyMoment{}, false
}

// Len is the scoring denominator: every catalog moment counts, answered or not.
func (c Catalog) Len() int { return len(c.Moments) }

// MomentView is the client-facing shape of a key moment. It carries
// everything the UI needs to render the question and nothing it could use
// to cheat; the expected answer stays server-side.
type MomentView struct {
	ID               string       `json:"id"`
	TimestampSeconds float64      `json:"timestampSeconds"`
	Question         string       `json:"question"`
	Kind             QuestionKind `json:"kind"`
	Options          []string     `json:"options,omitempty"`
}

// View strips the moment down to its client-facing shape.
func (m KeyMoment) View() MomentView {
	return MomentView{
		ID:               m.ID,
		TimestampSeconds: m.TimestampSeconds,
		Question:         m.Question,
		Kind:             m.Kind,
		Options:          m.Options,
	}
}

// SessionStatus is the lifecycle state of one viewing session.
type SessionStatus string

const (
	StatusPending   SessionStatus = "pending"
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
	StatusAbandoned SessionStatus = "abandoned"
)

// Terminal reports whether no further transition may leave the status.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// Attempt is one scored answer to one key moment. IsCorrect is computed once
// at submission time and never recomputed afterwards.
type Attempt struct {
	MomentID            string  `json:"momentId"`
	UserAnswer          string  `json:"userAnswer"`
	ExpectedAnswer      string  `json:"expectedAnswer"`
	IsCorrect           bool    `json:"isCorrect"`
	ResponseTimeSeconds float64 `json:"responseTimeSeconds"`
}

// AnswerResult summarizes the outcome of one submission for the caller.
type AnswerResult struct {
	MomentID  string   `json:"momentId"`
	IsCorrect bool     `json:"isCorrect"`
	Progress  Progress `json:"progress"`
}

// Progress is the poll-safe read model of a session, reflecting the latest
// committed state.
type Progress struct {
	SessionID           string        `json:"sessionId"`
	Status              SessionStatus `json:"status"`
	TotalQuestions      int           `json:"totalQuestions"`
	AnsweredQuestions   int           `json:"answeredQuestions"`
	CorrectAnswers      int           `json:"correctAnswers"`
	CurrentScorePercent int           `json:"currentScorePercent"`
}

// FinalResult is the terminal, immutable output of a completed session.
type FinalResult struct {
	SessionID        string  `json:"sessionId"`
	FinalScore       int     `json:"finalScore"`
	CorrectCount     int     `json:"correctCount"`
	TotalCount       int     `json:"totalCount"`
	Passed           bool    `json:"passed"`
	WatchTimeSeconds float64 `json:"watchTimeSeconds"`
	TotalPauses      int     `json:"totalPauses"`
}
