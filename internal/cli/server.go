package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"video-session-service/internal/app"
	"video-session-service/internal/config"
	"video-session-service/internal/domain"
	"video-session-service/internal/infra/memory"
	pginfra "video-session-service/internal/infra/postgres"
	redisinfra "video-session-service/internal/infra/redis"
	"video-session-service/internal/metrics"
	transport "video-session-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the video session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.CatalogLoader = memory.NewStaticCatalogLoader(sampleCatalogs())
	if pool != nil {
		loader = pginfra.NewCatalogLoader(pool)
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	var catalogs app.CatalogRepository
	if redisClient != nil {
		catalogs = redisinfra.NewCatalogRepository(redisClient, loader, catalogTTL)
	} else {
		catalogs = memory.NewCatalogRepository(loader, catalogTTL)
	}

	var store app.SessionRepository
	if redisClient != nil {
		store = redisinfra.NewSessionStore(redisClient, redisTTL)
	} else {
		store = memory.NewSessionStore()
	}

	opts := app.EngineOptions{
		PassingScore:     cfg.Session.PassingScore,
		ActivationWindow: cfg.Session.ActivationWindow,
		AllowSkip:        cfg.Session.AllowSkip,
	}
	if cfg.Session.TenantQuota > 0 {
		opts.Quota = memory.NewQuotaAuthority(cfg.Session.TenantQuota)
	}
	if pool != nil {
		opts.Archive = pginfra.NewResultArchive(pool)
	}

	service := app.NewSessionService(store, catalogs, opts)
	wsHandler := transport.NewWSHandler(service)

	completedTTL := config.TTLDuration(cfg.Session.CompletedTTL, 30*time.Minute)
	idleTTL := config.TTLDuration(cfg.Session.IdleTTL, 2*time.Hour)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				service.Sweep(context.Background(), completedTTL, idleTTL)
			case <-ctx.Done():
				return
			}
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting video session service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleCatalogs provides demo key-moment data for running without Postgres.
func sampleCatalogs() map[string][]domain.KeyMoment {
	return map[string][]domain.KeyMoment{
		"video-1": {
			{
				ID:               "m1",
				TimestampSeconds: 12,
				Question:         "What is the capital of Spain?",
				Kind:             domain.ShortAnswer,
				CorrectAnswer:    "Madrid",
			},
			{
				ID:               "m2",
				TimestampSeconds: 45,
				Question:         "The Earth orbits the Sun.",
				Kind:             domain.TrueFalse,
				CorrectAnswer:    "true",
			},
			{
				ID:               "m3",
				TimestampSeconds: 90,
				Question:         "Which planet is largest?",
				Kind:             domain.MultipleChoice,
				Options:          []string{"Mars", "Jupiter", "Venus"},
				CorrectAnswer:    "Jupiter",
			},
		},
	}
}
