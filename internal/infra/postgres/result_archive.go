package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"video-session-service/internal/domain"
)

// ResultArchive persists committed final results for certificate issuance
// and analytics. Inserts are keyed by session id and conflict-ignored, so a
// redelivered commit never rewrites an archived result.
type ResultArchive struct {
	pool *pgxpool.Pool
}

func NewResultArchive(pool *pgxpool.Pool) *ResultArchive {
	return &ResultArchive{pool: pool}
}

func (a *ResultArchive) CommitFinalResult(ctx context.Context, tenantID, userID, videoID string, result domain.FinalResult) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO session_results
			(session_id, tenant_id, user_id, video_id, final_score, correct_count, total_count, passed, watch_time_seconds, total_pauses)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (session_id) DO NOTHING`,
		result.SessionID, tenantID, userID, videoID,
		result.FinalScore, result.CorrectCount, result.TotalCount,
		result.Passed, result.WatchTimeSeconds, result.TotalPauses,
	)
	if err != nil {
		return fmt.Errorf("commit final result: %w", err)
	}
	return nil
}
