// Package bootstrap provides dependency initialization for the API server.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/recastlabs/recast-api/internal/atlas"
	"github.com/recastlabs/recast-api/internal/config"
	"github.com/recastlabs/recast-api/internal/freepik"
	"github.com/recastlabs/recast-api/internal/generate"
	"github.com/recastlabs/recast-api/internal/kling"
	"github.com/recastlabs/recast-api/internal/persist"
	"github.com/recastlabs/recast-api/internal/provider"
	"github.com/recastlabs/recast-api/internal/remux"
	"github.com/recastlabs/recast-api/internal/replicate"
	"github.com/recastlabs/recast-api/internal/resolver"
	"github.com/recastlabs/recast-api/internal/router"
	"github.com/recastlabs/recast-api/internal/storage"
	"github.com/recastlabs/recast-api/internal/task"
	"github.com/recastlabs/recast-api/internal/wavespeed"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Generator *generate.Service
	Resolver  *resolver.Resolver
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	repo := initRepository(cfg, logger)

	adapters, err := initAdapters(cfg, logger)
	if err != nil {
		return nil, err
	}

	rt := router.New(adapters, logger)
	mover := persist.NewMover(store, persist.WithLogger(logger))

	mixer := remux.NewFFmpegMixer(cfg.FFmpegPath, mover,
		remux.WithTempDir(cfg.TempDir),
		remux.WithLogger(logger),
	)

	res := resolver.New(repo, rt, mover,
		resolver.WithMixer(mixer),
		resolver.WithLogger(logger),
	)

	gen := generate.NewService(repo, rt, store, logger)

	return &Dependencies{
		Generator: gen,
		Resolver:  res,
	}, nil
}

// initStore creates the durable artifact store based on configuration.
func initStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	if cfg.S3Enabled() {
		s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			PublicRead:      cfg.S3PublicRead,
			SignTTL:         cfg.SignedURLTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("create S3 store: %w", err)
		}
		logger.Info("S3 store configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.Bool("public_read", cfg.S3PublicRead),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStore(cfg.StoreDir)
	if err != nil {
		return nil, fmt.Errorf("create local store: %w", err)
	}
	logger.Info("local store configured",
		slog.String("root", localStore.Root()),
	)
	return localStore, nil
}

// initRepository creates the task repository based on configuration.
func initRepository(cfg *config.Config, logger *slog.Logger) task.Repository {
	if cfg.RedisEnabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		logger.Info("redis task repository configured",
			slog.String("addr", cfg.RedisAddr),
		)
		return task.NewRedisRepository(client)
	}

	logger.Info("in-memory task repository configured")
	return task.NewMemoryRepository()
}

// initAdapters builds one adapter per configured provider. Unconfigured
// providers are simply absent, which is how the router knows to skip them.
func initAdapters(cfg *config.Config, logger *slog.Logger) ([]provider.Adapter, error) {
	httpClient := &http.Client{Timeout: cfg.ProviderTimeout}
	var adapters []provider.Adapter

	if cfg.WavespeedAPIKey != "" {
		c, err := wavespeed.NewClient(
			wavespeed.WithAPIKey(cfg.WavespeedAPIKey),
			wavespeed.WithHTTPClient(httpClient),
		)
		if err != nil {
			return nil, fmt.Errorf("create wavespeed client: %w", err)
		}
		adapters = append(adapters, provider.NewWavespeedAdapter(c, logger))
	}

	if cfg.AtlasAPIKey != "" {
		c, err := atlas.NewClient(
			atlas.WithAPIKey(cfg.AtlasAPIKey),
			atlas.WithHTTPClient(httpClient),
		)
		if err != nil {
			return nil, fmt.Errorf("create atlas client: %w", err)
		}
		adapters = append(adapters, provider.NewAtlasAdapter(c, logger))
	}

	if cfg.FreepikAPIKey != "" {
		c, err := freepik.NewClient(
			freepik.WithAPIKey(cfg.FreepikAPIKey),
			freepik.WithHTTPClient(httpClient),
		)
		if err != nil {
			return nil, fmt.Errorf("create freepik client: %w", err)
		}
		adapters = append(adapters, provider.NewFreepikAdapter(c, logger))
	}

	if cfg.ReplicateAPIToken != "" {
		c, err := replicate.NewClient(
			replicate.WithToken(cfg.ReplicateAPIToken),
			replicate.WithHTTPClient(httpClient),
		)
		if err != nil {
			return nil, fmt.Errorf("create replicate client: %w", err)
		}
		adapters = append(adapters, provider.NewReplicateAdapter(c, logger))
	}

	if cfg.KlingAccessKey != "" && cfg.KlingSecretKey != "" {
		c, err := kling.NewClient(
			kling.WithCredentials(cfg.KlingAccessKey, cfg.KlingSecretKey),
			kling.WithHTTPClient(httpClient),
		)
		if err != nil {
			return nil, fmt.Errorf("create kling client: %w", err)
		}
		adapters = append(adapters, provider.NewKlingAdapter(c, logger))
	}

	names := make([]string, 0, len(adapters))
	for _, a := range adapters {
		names = append(names, string(a.Name()))
	}
	logger.Info("providers configured", slog.Any("providers", names))

	return adapters, nil
}
