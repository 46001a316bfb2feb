package cms

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ironwatch/site/pkg/core"
)

// PageBySlug fetches and validates a page.
func (c *Client) PageBySlug(ctx context.Context, slug string) (*core.Page, error) {
	var p core.Page
	if err := c.Query(ctx, pageBySlugQuery, map[string]any{"slug": slug}, &p); err != nil {
		return nil, fmt.Errorf("page %s: %w", slug, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// PageSlugs lists the slugs of every routed page.
func (c *Client) PageSlugs(ctx context.Context) ([]string, error) {
	var slugs []string
	if err := c.Query(ctx, pageSlugsQuery, nil, &slugs); err != nil {
		return nil, fmt.Errorf("page slugs: %w", err)
	}
	return slugs, nil
}

// Settings fetches the site-wide settings document.
func (c *Client) Settings(ctx context.Context) (*core.Settings, error) {
	var s core.Settings
	if err := c.Query(ctx, settingsQuery, nil, &s); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// SceneBySlug fetches and validates a scene.
func (c *Client) SceneBySlug(ctx context.Context, slug string) (*core.Scene, error) {
	var sc core.Scene
	if err := c.Query(ctx, sceneBySlugQuery, map[string]any{"slug": slug}, &sc); err != nil {
		return nil, fmt.Errorf("scene %s: %w", slug, err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// MainScene fetches the town overview scene.
func (c *Client) MainScene(ctx context.Context) (*core.Scene, error) {
	var sc core.Scene
	if err := c.Query(ctx, mainSceneQuery, nil, &sc); err != nil {
		return nil, fmt.Errorf("main scene: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// SceneSlugs lists every scene slug.
func (c *Client) SceneSlugs(ctx context.Context) ([]string, error) {
	var slugs []string
	if err := c.Query(ctx, sceneSlugsQuery, nil, &slugs); err != nil {
		return nil, fmt.Errorf("scene slugs: %w", err)
	}
	return slugs, nil
}

// TeamMembers fetches the team in display order. Members without a name are
// rejected.
func (c *Client) TeamMembers(ctx context.Context) ([]core.TeamMember, error) {
	var members []core.TeamMember
	if err := c.Query(ctx, teamMembersQuery, nil, &members); err != nil {
		return nil, fmt.Errorf("team members: %w", err)
	}
	for i := range members {
		if err := members[i].Validate(); err != nil {
			return nil, fmt.Errorf("team member %d: %w", i, err)
		}
	}
	return members, nil
}

// PageView is everything needed to render one page shell.
type PageView struct {
	Page     *core.Page
	Settings *core.Settings
}

// PageWithSettings fetches a page and the site settings in parallel.
func (c *Client) PageWithSettings(ctx context.Context, slug string) (*PageView, error) {
	var view PageView
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := c.PageBySlug(gctx, slug)
		view.Page = p
		return err
	})
	g.Go(func() error {
		s, err := c.Settings(gctx)
		view.Settings = s
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &view, nil
}
