package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"video-session-service/internal/domain"
)

// CatalogLoader fetches key-moment catalogs from a backing store.
type CatalogLoader interface {
	LoadCatalog(ctx context.Context, videoID string) (domain.Catalog, error)
}

// CatalogRepository caches catalogs in Redis (hash per video) and falls back
// to a loader on cache miss. Moments are stored as:
//
//	HSET video:{videoID}:moments {momentID} {moment JSON}
//
// Rebuilding goes through domain.NewCatalog, so hash iteration order does
// not matter.
type CatalogRepository struct {
	client *redis.Client
	loader CatalogLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewCatalogRepository(client *redis.Client, loader CatalogLoader, ttl time.Duration) *CatalogRepository {
	return &CatalogRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *CatalogRepository) GetCatalog(ctx context.Context, videoID string) (domain.Catalog, error) {
	key := r.momentsKey(videoID)

	cached, err := r.client.HGetAll(ctx, key).Result()
	if err == nil && len(cached) > 0 {
		return buildCatalogFromCache(videoID, cached), nil
	}

	result, err, _ := r.sf.Do(videoID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		cached, err := r.client.HGetAll(ctx, key).Result()
		if err == nil && len(cached) > 0 {
			return buildCatalogFromCache(videoID, cached), nil
		}

		catalog, err := r.loader.LoadCatalog(ctx, videoID)
		if err != nil {
			return domain.Catalog{}, err
		}

		ttl := r.ttlWithJitter()
		pipe := r.client.Pipeline()
		for _, m := range catalog.Moments {
			raw, err := json.Marshal(m)
			if err != nil {
				continue
			}
			pipe.HSet(ctx, key, m.ID, raw)
		}
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return catalog, nil
	})
	if err != nil {
		return domain.Catalog{}, err
	}
	return result.(domain.Catalog), nil
}

func (r *CatalogRepository) momentsKey(videoID string) string {
	return "video:" + videoID + ":moments"
}

func buildCatalogFromCache(videoID string, cached map[string]string) domain.Catalog {
	moments := make([]domain.KeyMoment, 0, len(cached))
	for _, raw := range cached {
		var m domain.KeyMoment
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			continue
		}
		moments = append(moments, m)
	}
	return domain.NewCatalog(videoID, moments)
}

func (r *CatalogRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
