package cli

import (
	"context"
	"fmt"

	"bienestar/auth"
	"bienestar/catalog"
	"bienestar/coach"
	"bienestar/config"
	"bienestar/db"
	"bienestar/logger"
	"bienestar/store"
)

// runtime is the wired set of collaborators shared by the commands.
type runtime struct {
	Store   *store.Store
	Catalog *catalog.Catalog

	closeBackend func() error
}

func (rt *runtime) Close() {
	if rt.closeBackend != nil {
		if err := rt.closeBackend(); err != nil {
			appLog.Warn("closing record backend", "error", err)
		}
	}
	if db.DB != nil {
		db.DB.Close()
	}
}

// openRuntime opens the database, the record backend and the catalog.
// The sqlite database always holds API tokens, whatever backend keeps records.
func openRuntime(ctx context.Context, cfg config.Config, log *logger.Logger) (*runtime, error) {
	if err := db.InitDB(cfg.DBPath); err != nil {
		return nil, err
	}
	auth.InitStore()

	backend, closeBackend, err := openBackend(ctx, cfg)
	if err != nil {
		db.DB.Close()
		return nil, err
	}
	cat, err := loadCatalog(cfg)
	if err != nil {
		closeBackend()
		db.DB.Close()
		return nil, err
	}
	log.Info("records opened", "backend", cfg.Backend, "catalog_entries", cat.Len())

	return &runtime{
		Store:        store.New(backend, log),
		Catalog:      cat,
		closeBackend: closeBackend,
	}, nil
}

func openBackend(ctx context.Context, cfg config.Config) (store.Backend, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case config.BackendRedis:
		rb, err := store.NewRedisBackend(ctx, cfg.RedisAddr, cfg.RedisPrefix)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		return rb, rb.Close, nil
	case config.BackendMemory:
		return store.NewMemoryBackend(), noop, nil
	default:
		return db.NewRecordBackend(db.DB), noop, nil
	}
}

func loadCatalog(cfg config.Config) (*catalog.Catalog, error) {
	if cfg.CatalogPath == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.LoadFile(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", cfg.CatalogPath, err)
	}
	return cat, nil
}

// newCoach returns an online coach when a Gemini key is configured and
// the client can be built, otherwise the offline one.
func newCoach(ctx context.Context, cfg config.Config, log *logger.Logger) *coach.Service {
	if cfg.GeminiAPIKey == "" {
		log.Info("coach running offline")
		return coach.New(nil, cfg.CoachTimeout(), log)
	}
	gen, err := coach.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Warn("gemini client unavailable, coach running offline", "error", err)
		return coach.New(nil, cfg.CoachTimeout(), log)
	}
	log.Info("coach running online", "model", cfg.GeminiModel)
	return coach.New(gen, cfg.CoachTimeout(), log)
}
