package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bizmap/internal/explorer"
	"github.com/sells-group/bizmap/internal/fetcher"
	"github.com/sells-group/bizmap/internal/geo"
	"github.com/sells-group/bizmap/internal/store"
)

// appEnv holds the shared state built for every command that touches the
// snapshot.
type appEnv struct {
	Store    store.Store
	Explorer *explorer.Explorer
}

// initExplorer validates cfg for mode, opens the configured store and loads
// the explorer from the persisted snapshot (or the seed).
func initExplorer(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	seed, err := explorer.LoadSeed(cfg.Data.SeedPath)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "load seed")
	}

	ex := explorer.Open(ctx, st, cfg.Store.Key, seed)
	zap.L().Debug("explorer ready",
		zap.String("driver", cfg.Store.Driver),
		zap.Int("records", ex.Len()),
	)

	return &appEnv{Store: st, Explorer: ex}, nil
}

// Close releases the store.
func (e *appEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

// loadBoundaries fetches the configured county and zip layers into b and
// points the explorer's reverse geocoder at the county layer.
func (e *appEnv) loadBoundaries(ctx context.Context, b *geo.Boundaries) {
	timeout := time.Duration(cfg.Boundaries.TimeoutSecs) * time.Second
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent: "bizmap/1.0",
		Timeout:   timeout,
	})

	layers := geo.LoadLayers(ctx, f,
		geo.Source{Layer: geo.LayerCounties, Location: cfg.Boundaries.CountiesURL},
		geo.Source{Layer: geo.LayerZips, Location: cfg.Boundaries.ZipsURL},
		cfg.Boundaries.StateFIPS,
	)
	b.Set(layers)

	// A nil *Collection would still satisfy the interface.
	if layers.Counties != nil {
		e.Explorer.SetLocator(layers.Counties)
	}
}
