package memory

import (
	"context"
	"sync"

	"video-session-service/internal/domain"
)

// QuotaAuthority caps concurrent active sessions per tenant. A zero or
// negative limit means unlimited.
type QuotaAuthority struct {
	limit  int
	mu     sync.Mutex
	active map[string]int
}

func NewQuotaAuthority(limit int) *QuotaAuthority {
	return &QuotaAuthority{limit: limit, active: make(map[string]int)}
}

func (q *QuotaAuthority) Acquire(_ context.Context, tenantID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.limit > 0 && q.active[tenantID] >= q.limit {
		return domain.ErrQuotaExceeded
	}
	q.active[tenantID]++
	return nil
}

func (q *QuotaAuthority) Release(_ context.Context, tenantID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.active[tenantID] > 0 {
		q.active[tenantID]--
	}
	if q.active[tenantID] == 0 {
		delete(q.active, tenantID)
	}
}

// Active reports the tenant's current slot usage (observability/tests).
func (q *QuotaAuthority) Active(tenantID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active[tenantID]
}
