// Package navigation turns marker clicks into a camera transition followed
// by a route change.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ironwatch/site/internal/camera"
	"github.com/ironwatch/site/pkg/core"
)

// DefaultMainRoute is where Back navigates when no route is configured.
const DefaultMainRoute = "/experience"

// SceneSource resolves scenes by slug.
type SceneSource interface {
	Scene(ctx context.Context, slug string) (*core.Scene, error)
}

// Camera is the part of the coordinator the navigator drives.
type Camera interface {
	StartTransition(ctx context.Context, req camera.Request) (*camera.Transition, error)
	Reverse(ctx context.Context, phase camera.Phase) (*camera.Transition, error)
}

// Router performs the route change once the camera has arrived.
type Router interface {
	Navigate(ctx context.Context, route string) error
}

// RouterFunc adapts a function to Router.
type RouterFunc func(ctx context.Context, route string) error

func (f RouterFunc) Navigate(ctx context.Context, route string) error { return f(ctx, route) }

// Option configures a Navigator.
type Option func(*Navigator)

// WithLogger sets the logger for dropped clicks.
func WithLogger(l *slog.Logger) Option {
	return func(n *Navigator) { n.logger = l }
}

// WithMainRoute sets the route Back navigates to.
func WithMainRoute(route string) Option {
	return func(n *Navigator) { n.mainRoute = route }
}

// WithWarningHandler receives the text of every dropped interaction.
func WithWarningHandler(fn func(msg string)) Option {
	return func(n *Navigator) { n.onWarning = fn }
}

// Navigator coordinates clicks, camera moves and route changes for one
// viewer.
type Navigator struct {
	scenes    SceneSource
	camera    Camera
	router    Router
	logger    *slog.Logger
	mainRoute string
	onWarning func(string)
}

// New creates a Navigator.
func New(scenes SceneSource, cam Camera, router Router, opts ...Option) *Navigator {
	n := &Navigator{
		scenes:    scenes,
		camera:    cam,
		router:    router,
		logger:    slog.Default(),
		mainRoute: DefaultMainRoute,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// MarkerClick moves the camera to the marker's authored viewpoint and, once
// the transition has completed, navigates to the marker's route. It reports
// whether navigation happened. Markers without a complete viewpoint or a
// route are dropped with a warning; that is not an error. A transition that
// is superseded or cancelled does not navigate.
func (n *Navigator) MarkerClick(ctx context.Context, sceneSlug, markerID string) (bool, error) {
	sc, err := n.scenes.Scene(ctx, sceneSlug)
	if err != nil {
		return false, fmt.Errorf("loading scene %q: %w", sceneSlug, err)
	}

	m, ok := sc.Marker(markerID)
	if !ok {
		n.warn("marker not found", "scene", sceneSlug, "marker", markerID)
		return false, nil
	}
	if !m.Camera.Complete() {
		n.warn("marker has no camera position/target", "scene", sceneSlug, "marker", markerID)
		return false, nil
	}
	if m.Route == "" {
		n.warn("marker has no route", "scene", sceneSlug, "marker", markerID)
		return false, nil
	}

	tr, err := n.camera.StartTransition(ctx, camera.Request{
		To: camera.Pose{
			Position: m.Camera.Position.Vec(),
			Target:   m.Camera.Target.Vec(),
		},
		Phase: camera.PhaseSub,
	})
	if err != nil {
		if errors.Is(err, camera.ErrTransitionInProgress) {
			n.warn("camera busy, click ignored", "scene", sceneSlug, "marker", markerID)
			return false, nil
		}
		return false, fmt.Errorf("starting transition: %w", err)
	}

	return n.arrive(ctx, tr, m.Route)
}

// Back reverses the last completed transition and then navigates to the
// main route.
func (n *Navigator) Back(ctx context.Context) (bool, error) {
	tr, err := n.camera.Reverse(ctx, camera.PhaseMain)
	switch {
	case errors.Is(err, camera.ErrNoPrevious):
		n.warn("nothing to go back to")
		return false, nil
	case errors.Is(err, camera.ErrTransitionInProgress):
		n.warn("camera busy, back ignored")
		return false, nil
	case err != nil:
		return false, fmt.Errorf("starting reverse transition: %w", err)
	}

	return n.arrive(ctx, tr, n.mainRoute)
}

func (n *Navigator) arrive(ctx context.Context, tr *camera.Transition, route string) (bool, error) {
	_, err := tr.Wait(ctx)
	switch {
	case errors.Is(err, camera.ErrSuperseded), errors.Is(err, camera.ErrCancelled):
		n.logger.Debug("transition did not complete, navigation skipped",
			"transition", tr.ID(), "route", route, "reason", err)
		return false, nil
	case err != nil:
		return false, err
	}

	if err := n.router.Navigate(ctx, route); err != nil {
		return false, fmt.Errorf("navigating to %s: %w", route, err)
	}
	return true, nil
}

func (n *Navigator) warn(msg string, args ...any) {
	n.logger.Warn(msg, args...)
	if n.onWarning != nil {
		n.onWarning(msg)
	}
}
