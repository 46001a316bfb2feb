package navigation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironwatch/site/internal/camera"
	"github.com/ironwatch/site/pkg/core"
)

type mapScenes map[string]*core.Scene

func (m mapScenes) Scene(_ context.Context, slug string) (*core.Scene, error) {
	s, ok := m[slug]
	if !ok {
		return nil, errors.New("not found")
	}
	return s, nil
}

type recordingRouter struct {
	mu     sync.Mutex
	routes []string
}

func (r *recordingRouter) Navigate(_ context.Context, route string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route)
	return nil
}

func (r *recordingRouter) Routes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.routes...)
}

func vec(x, y, z float64) *core.Vec3 { return &core.Vec3{X: x, Y: y, Z: z} }

func testScenes() mapScenes {
	return mapScenes{
		"town": {
			Slug: "town",
			Kind: core.SceneKindMain,
			DefaultView: core.Viewpoint{
				Position: vec(0, 400, 600), Target: vec(0, 0, 0),
			},
			Markers: []core.Marker{
				{
					ID:     "harbor",
					Title:  "Harbor patrol",
					Camera: &core.Viewpoint{Position: vec(120, 40, -80), Target: vec(100, 0, -100)},
					Route:  "/services/harbor",
				},
				{
					ID:     "bank",
					Title:  "Bank",
					Camera: &core.Viewpoint{Position: vec(-50, 30, 10)},
					Route:  "/services/banking",
				},
				{
					ID:     "depot",
					Title:  "Depot",
					Camera: &core.Viewpoint{Position: vec(10, 30, 10), Target: vec(0, 0, 0)},
				},
			},
		},
	}
}

type fixture struct {
	nav      *Navigator
	coord    *camera.Coordinator
	clock    *camera.ManualClock
	router   *recordingRouter
	warnings []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := camera.NewManualClock(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	coord, err := camera.NewCoordinator(camera.Config{
		Duration: 2 * time.Second,
		Clock:    clk,
	})
	require.NoError(t, err)
	t.Cleanup(coord.Close)

	f := &fixture{coord: coord, clock: clk, router: &recordingRouter{}}
	f.nav = New(testScenes(), coord, f.router,
		WithMainRoute("/experience"),
		WithWarningHandler(func(msg string) { f.warnings = append(f.warnings, msg) }),
	)
	return f
}

type clickResult struct {
	navigated bool
	err       error
}

func TestMarkerClick_NavigatesOnlyAfterCompletion(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan clickResult, 1)
	go func() {
		ok, err := f.nav.MarkerClick(ctx, "town", "harbor")
		done <- clickResult{ok, err}
	}()

	require.Eventually(t, func() bool { return f.coord.Snapshot().Animating },
		2*time.Second, time.Millisecond)

	f.clock.Advance(time.Second)
	select {
	case <-done:
		t.Fatal("navigation returned before the transition finished")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Empty(t, f.router.Routes())

	f.clock.Advance(time.Second)
	res := <-done
	require.NoError(t, res.err)
	assert.True(t, res.navigated)
	assert.Equal(t, []string{"/services/harbor"}, f.router.Routes())

	s := f.coord.Snapshot()
	assert.Equal(t, camera.PhaseSub, s.Phase)
	assert.False(t, s.Animating)
}

func TestMarkerClick_IncompleteViewpointIsDropped(t *testing.T) {
	f := newFixture(t)

	ok, err := f.nav.MarkerClick(context.Background(), "town", "bank")
	require.NoError(t, err)
	assert.False(t, ok)

	s := f.coord.Snapshot()
	assert.False(t, s.Animating)
	assert.False(t, s.HasPrevious)
	assert.Empty(t, f.router.Routes())
	assert.Equal(t, []string{"marker has no camera position/target"}, f.warnings)
}

func TestMarkerClick_MissingRouteIsDropped(t *testing.T) {
	f := newFixture(t)

	ok, err := f.nav.MarkerClick(context.Background(), "town", "depot")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, f.coord.Snapshot().Animating)
	assert.Equal(t, []string{"marker has no route"}, f.warnings)
}

func TestMarkerClick_UnknownMarkerAndScene(t *testing.T) {
	f := newFixture(t)

	ok, err := f.nav.MarkerClick(context.Background(), "town", "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.nav.MarkerClick(context.Background(), "harbor-district", "harbor")
	assert.Error(t, err)
}

func TestMarkerClick_SupersededDoesNotNavigate(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan clickResult, 1)
	go func() {
		ok, err := f.nav.MarkerClick(ctx, "town", "harbor")
		done <- clickResult{ok, err}
	}()
	require.Eventually(t, func() bool { return f.coord.Snapshot().Animating },
		2*time.Second, time.Millisecond)

	_, err := f.coord.StartTransition(ctx, camera.Request{To: camera.Pose{}})
	require.NoError(t, err)

	res := <-done
	require.NoError(t, res.err)
	assert.False(t, res.navigated)
	assert.Empty(t, f.router.Routes())
}

func TestBack_ReversesThenNavigatesToMain(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok, err := f.nav.Back(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	done := make(chan clickResult, 1)
	go func() {
		ok, err := f.nav.MarkerClick(ctx, "town", "harbor")
		done <- clickResult{ok, err}
	}()
	require.Eventually(t, func() bool { return f.coord.Snapshot().Animating },
		2*time.Second, time.Millisecond)
	f.clock.Advance(2 * time.Second)
	require.True(t, (<-done).navigated)

	start := f.coord.Snapshot().Previous

	go func() {
		ok, err := f.nav.Back(ctx)
		done <- clickResult{ok, err}
	}()
	require.Eventually(t, func() bool { return f.coord.Snapshot().Animating },
		2*time.Second, time.Millisecond)
	f.clock.Advance(2 * time.Second)

	res := <-done
	require.NoError(t, res.err)
	assert.True(t, res.navigated)
	assert.Equal(t, []string{"/services/harbor", "/experience"}, f.router.Routes())
	assert.Equal(t, start, f.coord.Snapshot().Pose)
	assert.Equal(t, camera.PhaseMain, f.coord.Snapshot().Phase)
}
