// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package app wires configuration into a ready HTTP handler. Both the
// long-running server and the Lambda entry point build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"inkpress/internal/blog"
	"inkpress/internal/cache"
	"inkpress/internal/config"
	"inkpress/internal/database"
	"inkpress/internal/handlers"
	"inkpress/internal/middleware"
	"inkpress/internal/router"
	"inkpress/internal/storage"
	"inkpress/internal/table"
	"inkpress/internal/table/badgerdb"
	"inkpress/internal/table/dynamo"
	"inkpress/internal/table/memory"
	"inkpress/internal/table/postgres"
)

// App is the assembled service.
type App struct {
	Handler http.Handler
	Repo    *blog.Repository

	closers []func() error
}

// NewLogger returns the process logger: JSON outside development, text in
// development, at the configured level.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsDev() {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// New connects every configured backend and builds the router. On error,
// anything already opened is closed again.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	tbl, err := OpenTable(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, tbl.Close)
	a.Repo = blog.NewRepository(tbl)

	verifier, err := middleware.NewTokenVerifier(cfg.AdminToken, cfg.AdminTokenHash)
	if err != nil {
		return nil, fmt.Errorf("admin credential: %w", err)
	}

	store, err := a.responseCache(ctx, cfg)
	if err != nil {
		return nil, err
	}

	media, err := newMedia(cfg)
	if err != nil {
		return nil, err
	}

	var limiter *middleware.RateLimiter
	if cfg.AdminRateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.AdminRateLimit, time.Minute)
		a.closers = append(a.closers, func() error { limiter.Stop(); return nil })
	}

	a.Handler = router.New(handlers.NewPublic(a.Repo), handlers.NewAdmin(a.Repo, media), router.Options{
		Verifier:       verifier,
		Cache:          store,
		CacheTTL:       cfg.Valkey.TTL,
		AllowedOrigins: cfg.CORSOrigins,
		AdminLimiter:   limiter,
	})
	return a, nil
}

// Close releases every backend connection.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OpenTable opens the configured single-table backend.
func OpenTable(ctx context.Context, cfg *config.Config) (table.Table, error) {
	switch cfg.Table.Backend {
	case config.BackendMemory:
		slog.Warn("using in-memory table, data is lost on restart")
		return memory.New(), nil

	case config.BackendBadger:
		if err := os.MkdirAll(cfg.Table.BadgerDir, 0o750); err != nil {
			return nil, fmt.Errorf("create badger dir: %w", err)
		}
		tbl, err := badgerdb.Open(cfg.Table.BadgerDir)
		if err != nil {
			return nil, err
		}
		slog.Info("badger table opened", "dir", cfg.Table.BadgerDir)
		return tbl, nil

	case config.BackendDynamoDB:
		client, err := dynamo.Connect(ctx, dynamo.Options{
			Region:   cfg.Table.DynamoRegion,
			Endpoint: cfg.Table.DynamoEndpoint,
		})
		if err != nil {
			return nil, err
		}
		tbl := dynamo.New(client, cfg.Table.DynamoTable)
		// A local endpoint starts empty; real tables are provisioned outside
		// the application.
		if cfg.Table.DynamoEndpoint != "" {
			if err := tbl.EnsureTable(ctx); err != nil {
				return nil, err
			}
		}
		return tbl, nil

	case config.BackendPostgres:
		db, err := database.Connect(cfg.DSN())
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(db); err != nil {
			db.Close()
			return nil, err
		}
		return postgres.New(db), nil
	}
	return nil, fmt.Errorf("unknown table backend %q", cfg.Table.Backend)
}

// responseCache connects Valkey when configured. Without it, or when it is
// unreachable, responses are cached in process unless CACHE_LOCAL is off.
// An in-process cache is only cleared by writes served by the same process.
func (a *App) responseCache(ctx context.Context, cfg *config.Config) (cache.Store, error) {
	addr := cfg.ValkeyAddr()
	if addr == "" {
		return localCache(cfg, "valkey not configured"), nil
	}

	client, err := cache.ConnectValkey(ctx, addr, cfg.Valkey.Password, cfg.Valkey.DB)
	if err != nil {
		slog.Warn("valkey unreachable", "addr", addr, "error", err)
		return localCache(cfg, "valkey unreachable"), nil
	}
	a.closers = append(a.closers, client.Close)
	slog.Info("valkey connected", "addr", addr, "ttl", cfg.Valkey.TTL)
	return cache.NewResponseCache(client, cfg.Valkey.TTL), nil
}

func localCache(cfg *config.Config, reason string) cache.Store {
	if !cfg.Valkey.Local {
		slog.Info(reason+", public responses are not cached")
		return cache.Nop{}
	}
	slog.Info(reason+", caching public responses in process", "ttl", cfg.Valkey.TTL)
	return cache.NewMemory(cfg.Valkey.TTL)
}

// newMedia returns the upload service, or nil when no bucket is set.
func newMedia(cfg *config.Config) (handlers.MediaSaver, error) {
	client, err := storage.New(storage.Options{
		Endpoint:   cfg.S3.Endpoint,
		Region:     cfg.S3.Region,
		AccessKey:  cfg.S3.AccessKey,
		SecretKey:  cfg.S3.SecretKey,
		Bucket:     cfg.S3.Bucket,
		PublicURL:  cfg.S3.PublicURL,
		PublicRead: cfg.S3.PublicRead,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 storage: %w", err)
	}
	if client == nil {
		slog.Warn("s3 storage not configured, media uploads disabled")
		return nil, nil
	}
	slog.Info("s3 storage configured", "bucket", client.Bucket(), "endpoint", cfg.S3.Endpoint)
	return storage.NewMedia(client), nil
}
