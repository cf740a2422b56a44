// Package app is the composition root shared by the ingest and backfill binaries.
// It turns a loaded config into connected infrastructure and a ready Engine.
package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/rafaeljc/fitbit-ingest/internal/cache"
	"github.com/rafaeljc/fitbit-ingest/internal/config"
	"github.com/rafaeljc/fitbit-ingest/internal/database"
	"github.com/rafaeljc/fitbit-ingest/internal/fitbit"
	"github.com/rafaeljc/fitbit-ingest/internal/ingest"
	"github.com/rafaeljc/fitbit-ingest/internal/logger"
	"github.com/rafaeljc/fitbit-ingest/internal/observability"
	"github.com/rafaeljc/fitbit-ingest/internal/timeseries"
	"github.com/rafaeljc/fitbit-ingest/internal/token"
	"github.com/rafaeljc/fitbit-ingest/internal/validation"
)

const (
	activityCacheCapacity = 1024
	activityCacheTTL      = 7 * 24 * time.Hour
)

// Options tune how the runtime is assembled.
type Options struct {
	// RefreshToken overrides FITBIT_API_INITIAL_REFRESH_TOKEN.
	RefreshToken string
	// Prompt is read for a refresh token when none is stored or supplied.
	// Nil disables the prompt.
	Prompt io.Reader
	// DryRun collects points in memory instead of writing them.
	DryRun bool
}

// Runtime holds every connected component. Close releases them in reverse order.
type Runtime struct {
	Config   *config.Config
	Logger   *slog.Logger
	Tokens   *token.Manager
	Executor *fitbit.Executor
	Location *time.Location
	Sink     timeseries.Sink
	Engine   *ingest.Engine

	// Checkers back the readiness probe.
	Checkers []observability.Checker

	closers []func()
}

// Build connects the credential store and sink, bootstraps the OAuth
// credential, resolves the user timezone and assembles the Engine.
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger, opts Options) (rt *Runtime, err error) {
	validation.AssertNotNil(cfg, "config")
	rt = &Runtime{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	ctx = logger.WithContext(ctx, log)

	// -------------------------------------------------------------------------
	// 1. Optional backends
	// -------------------------------------------------------------------------
	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		redisClient, err = cache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, err
		}
		rt.onClose(func() { _ = redisClient.Close() })
		rt.Checkers = append(rt.Checkers, cache.NewHealthChecker(redisClient))
	}

	var pool *pgxpool.Pool
	if cfg.NeedsDatabase() {
		pool, err = database.NewPostgresPool(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		rt.onClose(pool.Close)
		rt.Checkers = append(rt.Checkers, database.NewHealthChecker(pool))
	}

	// -------------------------------------------------------------------------
	// 2. Credential
	// -------------------------------------------------------------------------
	store, err := newTokenStore(&cfg.TokenStore, redisClient, pool)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.API.RequestTimeout}
	rt.Tokens = token.NewManager(cfg.API.ClientID, cfg.API.ClientSecret, cfg.API.TokenURL, store, httpClient)

	bootstrap := opts.RefreshToken
	if bootstrap == "" {
		bootstrap = cfg.API.InitialRefreshToken
	}
	err = rt.Tokens.Init(ctx, bootstrap)
	if errors.Is(err, token.ErrNoCredential) && opts.Prompt != nil {
		if bootstrap, err = promptRefreshToken(opts.Prompt); err == nil {
			err = rt.Tokens.Init(ctx, bootstrap)
		}
	}
	if err != nil {
		return nil, err
	}
	rt.Checkers = append(rt.Checkers, rt.Tokens)

	// -------------------------------------------------------------------------
	// 3. Upstream API
	// -------------------------------------------------------------------------
	rt.Executor = fitbit.NewExecutor(rt.Tokens, fitbit.PolicyFromConfig(&cfg.Retry),
		fitbit.WithHTTPClient(httpClient),
		fitbit.WithLimiter(fitbit.NewHourlyLimiter(cfg.API.RequestsPerHour)),
		fitbit.WithLanguage(cfg.API.Language),
	)

	rt.Location, err = rt.Executor.ResolveLocation(ctx, fitbit.NewEndpoints(cfg.API.BaseURL), &cfg.API)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve timezone: %w", err)
	}
	log.Info("timezone resolved", slog.String("timezone", rt.Location.String()))

	// -------------------------------------------------------------------------
	// 4. Sink
	// -------------------------------------------------------------------------
	if opts.DryRun {
		rt.Sink = timeseries.NewMemorySink()
	} else {
		influx, err := timeseries.NewInfluxSink(ctx, &cfg.Influx)
		if err != nil {
			return nil, err
		}
		rt.onClose(influx.Close)
		rt.Checkers = append(rt.Checkers, influx)

		rt.Sink = influx
		if cfg.Spool.Enabled {
			rt.Sink = timeseries.NewSpoolingSink(influx, redisClient, cfg.Spool.Key, cfg.Spool.MaxBatches)
		}
	}

	// -------------------------------------------------------------------------
	// 5. Engine
	// -------------------------------------------------------------------------
	activities, err := cache.NewActivityCache(activityCacheCapacity, activityCacheTTL)
	if err != nil {
		return nil, err
	}
	rt.onClose(activities.Close)

	engineCfg, err := ingest.ConfigFrom(cfg, rt.Location)
	if err != nil {
		return nil, err
	}
	rt.Engine = ingest.New(log, engineCfg, rt.Executor, rt.Tokens, rt.Sink, ingest.WithActivityCache(activities))

	return rt, nil
}

// Close releases connections, newest first.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

func (rt *Runtime) onClose(fn func()) {
	rt.closers = append(rt.closers, fn)
}

func newTokenStore(cfg *config.TokenStoreConfig, client *redis.Client, pool *pgxpool.Pool) (token.Store, error) {
	switch cfg.Backend {
	case config.TokenStoreFile:
		return token.NewFileStore(cfg.Path), nil
	case config.TokenStoreRedis:
		if client == nil {
			return nil, fmt.Errorf("redis token store requires a redis connection")
		}
		return token.NewRedisStore(client, cfg.RedisKey), nil
	case config.TokenStorePostgres:
		if pool == nil {
			return nil, fmt.Errorf("postgres token store requires a database connection")
		}
		return token.NewPostgresStore(pool, cfg.Name), nil
	default:
		return nil, fmt.Errorf("unknown token store backend %q", cfg.Backend)
	}
}

func promptRefreshToken(r io.Reader) (string, error) {
	fmt.Fprint(os.Stderr, "No stored credential. Paste a Fitbit refresh token: ")
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read refresh token: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", token.ErrNoCredential
	}
	return line, nil
}

// InteractiveStdin returns os.Stdin when it is a terminal, nil otherwise.
func InteractiveStdin() io.Reader {
	fi, err := os.Stdin.Stat()
	if err != nil || fi.Mode()&os.ModeCharDevice == 0 {
		return nil
	}
	return os.Stdin
}
