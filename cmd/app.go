package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/memory"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/database/sqlite"
	"github.com/kozaktomas/face-attendance/internal/facedetect"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// app holds the wired attendance pipeline for one command run.
type app struct {
	cfg      *config.Config
	store    database.Store
	registry *gallery.Registry
	coord    *attendance.Coordinator
	redis    *redis.Client
}

// detectors selects which detection paths a command needs.
type detectors struct {
	registration bool
	attendance   bool
}

// openApp opens the configured store and builds the registry, ledger and coordinator.
func openApp(ctx context.Context, cfg *config.Config, need detectors) (*app, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, store: store}

	var regLocator, attLocator facedetect.Locator
	if need.registration {
		d, err := facedetect.LoadDetector(cfg.Detector.CascadePath, facedetect.ParamsFromConfig(cfg.Detector.Registration))
		if err != nil {
			a.Close()
			return nil, err
		}
		regLocator = d
	}
	if need.attendance {
		d, err := facedetect.LoadDetector(cfg.Detector.CascadePath, facedetect.ParamsFromConfig(cfg.Detector.Attendance))
		if err != nil {
			a.Close()
			return nil, err
		}
		attLocator = d
	}

	a.registry, err = gallery.NewRegistry(ctx, store, regLocator, gallery.Options{
		FacesDir:          cfg.Faces.Dir,
		LookalikeDistance: cfg.Match.LookalikeDistance,
		LookalikeLimit:    constants.DefaultLookalikeLimit,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	l := ledger.New(store, a.presence())
	a.coord = attendance.NewCoordinator(a.registry, attLocator, l, nil, attendance.Options{Threshold: cfg.Match.Threshold})
	return a, nil
}

// presence returns the shared Redis cache when configured, else a process-local one.
func (a *app) presence() ledger.PresenceCache {
	if a.cfg.Redis.Addr == "" {
		return ledger.NewMemoryPresence()
	}
	a.redis = redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
	})
	logger.Info("using redis presence cache", zap.String("addr", a.cfg.Redis.Addr))
	return ledger.NewRedisPresence(a.redis)
}

// Close releases the store and the Redis client.
func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warn("failed to close redis client", zap.Error(err))
		}
	}
	if err := a.store.Close(); err != nil {
		logger.Warn("failed to close store", zap.Error(err))
	}
}

// openStore opens the configured attendance store backend.
func openStore(ctx context.Context, cfg *config.Config) (database.Store, error) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		if cfg.Database.URL == "" {
			return nil, errors.New("DATABASE_URL environment variable is required for the postgres store")
		}
		store, err := postgres.Initialize(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		logger.Info("using PostgreSQL store")
		return store, nil
	case config.StoreSQLite:
		store, err := sqlite.Open(cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite store: %w", err)
		}
		logger.Info("using SQLite store", zap.String("path", cfg.Store.SQLitePath))
		return store, nil
	case config.StoreMemory:
		logger.Warn("using in-memory store, nothing will be persisted")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown ATTENDANCE_STORE %q (want postgres, sqlite or memory)", cfg.Store.Backend)
	}
}
