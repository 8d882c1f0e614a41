package main

import (
	"context"

	"github.com/gridhound/gridhound/internal/pipeline"
	"github.com/gridhound/gridhound/internal/store"
)

// env bundles the store and runner shared by most commands.
type env struct {
	Store  store.Store
	Runner *pipeline.Runner
}

func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv opens the configured store, applies migrations, and builds the
// pipeline runner.
func initEnv(ctx context.Context) (*env, error) {
	st, err := store.Open(cfg.Store.Driver, cfg.Store.DatabaseURL, cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	runner, err := pipeline.NewRunner(cfg, st)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	return &env{Store: st, Runner: runner}, nil
}
