package assets

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ironwatch/site/internal/cache"
	"github.com/ironwatch/site/pkg/core"
)

// Preloader loads each model URL at most once. Loaded models are kept for
// the life of the process.
type Preloader struct {
	loader      Loader
	loaded      *cache.KeyedCache[*Model]
	group       singleflight.Group
	concurrency int
	logger      *slog.Logger
}

// NewPreloader wraps loader. concurrency bounds PreloadScene; zero means 4.
func NewPreloader(loader Loader, concurrency int, logger *slog.Logger) *Preloader {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Preloader{
		loader:      loader,
		loaded:      cache.NewKeyedCache[*Model](),
		concurrency: concurrency,
		logger:      logger,
	}
}

// Preload loads url unless it is already loaded. Concurrent calls for the
// same URL share one load. Failed loads are not remembered.
func (p *Preloader) Preload(ctx context.Context, url string) (*Model, error) {
	if m, ok := p.loaded.Get(url); ok {
		return m, nil
	}

	v, err, _ := p.group.Do(url, func() (any, error) {
		if m, ok := p.loaded.Get(url); ok {
			return m, nil
		}
		m, err := p.loader.Load(ctx, url)
		if err != nil {
			return nil, err
		}
		p.loaded.Add(url, m)
		p.logger.Debug("model preloaded", "url", url, "meshes", m.Meshes, "bytes", m.Bytes)
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("preloading %s: %w", url, err)
	}
	return v.(*Model), nil
}

// Loaded reports whether url has been loaded.
func (p *Preloader) Loaded(url string) bool {
	return p.loaded.Has(url)
}

// Count returns the number of distinct models loaded.
func (p *Preloader) Count() int {
	return p.loaded.Len()
}

// URLs lists loaded model URLs.
func (p *Preloader) URLs() []string {
	return p.loaded.Keys()
}

// PreloadScene loads every model the scene references. The first failure
// cancels the remaining loads.
func (p *Preloader) PreloadScene(ctx context.Context, sc *core.Scene) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	seen := make(map[string]struct{}, len(sc.Models))
	for _, ref := range sc.Models {
		if _, dup := seen[ref.URL]; dup {
			continue
		}
		seen[ref.URL] = struct{}{}

		url := ref.URL
		g.Go(func() error {
			_, err := p.Preload(ctx, url)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("scene %s: %w", sc.Slug, err)
	}
	return nil
}
