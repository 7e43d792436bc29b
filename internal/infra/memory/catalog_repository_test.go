package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"video-session-service/internal/domain"
)

func sampleMoments() []domain.KeyMoment {
	return []domain.KeyMoment{
		{ID: "m2", TimestampSeconds: 40, Question: "?", Kind: domain.TrueFalse, CorrectAnswer: "true"},
		{ID: "m1", TimestampSeconds: 10, Question: "?", Kind: domain.ShortAnswer, CorrectAnswer: "Madrid"},
	}
}

func TestCatalogRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		CatalogLoader: NewStaticCatalogLoader(map[string][]domain.KeyMoment{
			"video-1": sampleMoments(),
		}),
	}
	repo := NewCatalogRepository(loader, time.Minute)

	catalog, err := repo.GetCatalog(context.Background(), "video-1")
	if err != nil {
		t.Fatalf("get catalog: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}
	if catalog.Len() != 2 || catalog.Moments[0].ID != "m1" {
		t.Fatalf("catalog must come back sorted, got %+v", catalog.Moments)
	}

	if _, err := repo.GetCatalog(context.Background(), "video-1"); err != nil {
		t.Fatalf("get catalog 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestCatalogRepositoryUnknownVideo(t *testing.T) {
	repo := NewCatalogRepository(NewStaticCatalogLoader(nil), time.Minute)
	_, err := repo.GetCatalog(context.Background(), "nope")
	if !errors.Is(err, domain.ErrCatalogNotFound) {
		t.Fatalf("expected catalog not found, got %v", err)
	}
}

type countingLoader struct {
	CatalogLoader
	calls int
}

func (l *countingLoader) LoadCatalog(ctx context.Context, videoID string) (domain.Catalog, error) {
	l.calls++
	return l.CatalogLoader.LoadCatalog(ctx, videoID)
}
