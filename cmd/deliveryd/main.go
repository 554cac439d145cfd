package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"homefoods-delivery/internal/config"
	"homefoods-delivery/internal/delivery"
	"homefoods-delivery/internal/directory"
	"homefoods-delivery/internal/geocode"
	"homefoods-delivery/internal/handler"
	"homefoods-delivery/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	store, closeStore, err := openStore(ctx, g, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	geo, closeCache := openGeocoder(cfg, log)
	defer closeCache()

	server := handler.NewServer(store, geo,
		handler.WithResolver(delivery.NewResolver(cfg.ResolverOptions()...)),
		handler.WithDistancePricing(cfg.DistanceTiers, cfg.Origin),
		handler.WithLogger(log))
	limiter := handler.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.NewRouter(server, handler.RouterOptions{CORSOrigins: cfg.CORSOrigins, Limiter: limiter}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g.Go(func() error {
		limiter.Run(ctx)
		return nil
	})
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("backend", cfg.DirectoryBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openStore connects the configured directory backend. The file backend
// is watched for edits; database backends get a snapshot cache.
func openStore(ctx context.Context, g *errgroup.Group, cfg *config.Config, log *zap.Logger) (directory.Store, func(), error) {
	switch cfg.DirectoryBackend {
	case config.BackendPostgres:
		db, err := directory.OpenPostgres(ctx, cfg.DatabaseURL, cfg.ConnectAttempts, log)
		if err != nil {
			return nil, nil, err
		}
		pg := directory.NewPostgresStore(db)
		if err := pg.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return directory.NewCachedStore(pg, cfg.CacheTTL), func() { db.Close() }, nil

	case config.BackendMongo:
		db, err := directory.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB, cfg.ConnectAttempts, log)
		if err != nil {
			return nil, nil, err
		}
		disconnect := func() { _ = db.Client().Disconnect(context.Background()) }
		ms := directory.NewMongoStore(db)
		if err := ms.Migrate(ctx); err != nil {
			disconnect()
			return nil, nil, err
		}
		return directory.NewCachedStore(ms, cfg.CacheTTL), disconnect, nil

	default:
		fs, err := directory.OpenFile(cfg.DirectoryFile, log)
		if err != nil {
			return nil, nil, err
		}
		g.Go(func() error { return fs.Watch(ctx) })
		return fs, func() {}, nil
	}
}

// openGeocoder builds the Nominatim client behind a Redis cache when one
// is configured and an in-process cache otherwise.
func openGeocoder(cfg *config.Config, log *zap.Logger) (geocode.Client, func()) {
	client := geocode.New(cfg.GeocoderBaseURL, cfg.GeocoderUserAgent,
		&http.Client{Timeout: 8 * time.Second}, geocode.WithRate(cfg.GeocoderRPS, 1))
	if cfg.RedisAddr == "" {
		return geocode.Cached(client, geocode.NewMemoryCache(cfg.CacheTTL)), func() {}
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	log.Info("caching geocoder results in redis", zap.String("addr", cfg.RedisAddr))
	return geocode.Cached(client, geocode.NewRedisCache(rdb, cfg.CacheTTL)), func() { _ = rdb.Close() }
}
