package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"video-session-service/internal/domain"
)

// CatalogLoader loads key-moment catalogs stored as JSONB by the content
// generation pipeline.
type CatalogLoader struct {
	pool *pgxpool.Pool
}

func NewCatalogLoader(pool *pgxpool.Pool) *CatalogLoader {
	return &CatalogLoader{pool: pool}
}

func (l *CatalogLoader) LoadCatalog(ctx context.Context, videoID string) (domain.Catalog, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM video_catalogs WHERE video_id=$1`, videoID).Scan(&raw)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("load catalog: %w", err)
	}
	var moments []domain.KeyMoment
	if err := json.Unmarshal(raw, &moments); err != nil {
		return domain.Catalog{}, fmt.Errorf("unmarshal catalog: %w", err)
	}
	// NewCatalog sorts and dedupes; producer ordering is not trusted.
	return domain.NewCatalog(videoID, moments), nil
}
