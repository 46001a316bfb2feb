package scene

import (
	"context"
	"errors"
	"fmt"

	"github.com/ironwatch/site/pkg/core"
)

// ErrNotFound is returned for an unknown scene slug.
var ErrNotFound = errors.New("scene not found")

// Source supplies validated scenes.
type Source interface {
	Scene(ctx context.Context, slug string) (*core.Scene, error)
	Main(ctx context.Context) (*core.Scene, error)
	Slugs(ctx context.Context) ([]string, error)
}

// Fetcher is the part of the CMS client a CMSSource needs.
type Fetcher interface {
	SceneBySlug(ctx context.Context, slug string) (*core.Scene, error)
	MainScene(ctx context.Context) (*core.Scene, error)
	SceneSlugs(ctx context.Context) ([]string, error)
}

// CMSSource reads scenes from the content store.
type CMSSource struct {
	fetcher  Fetcher
	notFound error
}

// NewCMSSource wraps f. notFound is the fetcher's not-found sentinel; it is
// translated to ErrNotFound.
func NewCMSSource(f Fetcher, notFound error) *CMSSource {
	return &CMSSource{fetcher: f, notFound: notFound}
}

func (s *CMSSource) Scene(ctx context.Context, slug string) (*core.Scene, error) {
	sc, err := s.fetcher.SceneBySlug(ctx, slug)
	return sc, s.translate(slug, err)
}

func (s *CMSSource) Main(ctx context.Context) (*core.Scene, error) {
	sc, err := s.fetcher.MainScene(ctx)
	return sc, s.translate("main", err)
}

func (s *CMSSource) Slugs(ctx context.Context) ([]string, error) {
	return s.fetcher.SceneSlugs(ctx)
}

func (s *CMSSource) translate(slug string, err error) error {
	if err == nil {
		return nil
	}
	if s.notFound != nil && errors.Is(err, s.notFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	return err
}
