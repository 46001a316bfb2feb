package scene

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironwatch/site/pkg/core"
)

const townYAML = `slug: town
title: Town
kind: main
route: /experience
defaultView:
  position: {x: 0, y: 400, z: 600}
  target: {x: 0, y: 0, z: 0}
models:
  - url: /models/bank.glb
    theme: finance
    instances:
      - position: {x: 10, y: 0, z: 5}
        scale: 1
markers:
  - id: bank
    title: Bank
    position: {x: 10, y: 20, z: 5}
    camera:
      position: {x: 30, y: 40, z: 30}
      target: {x: 10, y: 0, z: 5}
    route: /experience/bank
`

const bankYAML = `slug: bank
title: Bank
kind: sub
defaultView:
  position: {x: 1, y: 2, z: 3}
  target: {x: 0, y: 0, z: 0}
`

func writeScene(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestFileSource_Load(t *testing.T) {
	dir := t.TempDir()
	writeScene(t, dir, "town.yaml", townYAML)
	writeScene(t, dir, "bank.yml", bankYAML)
	writeScene(t, dir, "README.md", "not a scene")

	s, err := NewFileSource(dir, nil)
	require.NoError(t, err)

	main, err := s.Main(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "town", main.Slug)
	require.Len(t, main.Models, 1)
	assert.Equal(t, 10.0, main.Models[0].Instances[0].Position.X)

	m, ok := main.Marker("bank")
	require.True(t, ok)
	assert.True(t, m.Camera.Complete())
	assert.Equal(t, core.Vec3{X: 30, Y: 40, Z: 30}, *m.Camera.Position)

	slugs, err := s.Slugs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"bank", "town"}, slugs)

	_, err = s.Scene(context.Background(), "harbour")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileSource_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	writeScene(t, dir, "broken.yaml", "slug: broken\nkind: sub\n")

	_, err := NewFileSource(dir, nil)
	assert.ErrorIs(t, err, core.ErrInvalidDocument)
}

func TestFileSource_DuplicateMain(t *testing.T) {
	dir := t.TempDir()
	writeScene(t, dir, "a.yaml", townYAML)
	writeScene(t, dir, "b.yaml", `slug: city
kind: main
defaultView:
  position: {x: 0, y: 1, z: 0}
  target: {x: 0, y: 0, z: 0}
`)

	_, err := NewFileSource(dir, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "second main scene")
}

func TestFileSource_ReloadKeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	writeScene(t, dir, "town.yaml", townYAML)

	s, err := NewFileSource(dir, nil)
	require.NoError(t, err)

	writeScene(t, dir, "town.yaml", "slug: [")
	assert.Error(t, s.Reload())

	sc, err := s.Scene(context.Background(), "town")
	require.NoError(t, err)
	assert.Equal(t, "Town", sc.Title)
}

func TestFileSource_Watch(t *testing.T) {
	dir := t.TempDir()
	writeScene(t, dir, "town.yaml", townYAML)

	s, err := NewFileSource(dir, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan error, 1)
	require.NoError(t, s.Watch(ctx, func(err error) {
		select {
		case reloaded <- err:
		default:
		}
	}))

	writeScene(t, dir, "bank.yaml", bankYAML)

	assert.Eventually(t, func() bool {
		_, err := s.Scene(context.Background(), "bank")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, reloaded, 1)
}

type fakeFetcher struct {
	scene *core.Scene
	err   error
}

var errFetcherNotFound = errors.New("document not found")

func (f *fakeFetcher) SceneBySlug(context.Context, string) (*core.Scene, error) {
	return f.scene, f.err
}
func (f *fakeFetcher) MainScene(context.Context) (*core.Scene, error) { return f.scene, f.err }
func (f *fakeFetcher) SceneSlugs(context.Context) ([]string, error) {
	return []string{"town"}, nil
}

func TestCMSSource_TranslatesNotFound(t *testing.T) {
	s := NewCMSSource(&fakeFetcher{err: errFetcherNotFound}, errFetcherNotFound)

	_, err := s.Scene(context.Background(), "harbour")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Main(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCMSSource_PassesThrough(t *testing.T) {
	want := &core.Scene{Slug: "town"}
	s := NewCMSSource(&fakeFetcher{scene: want}, errFetcherNotFound)

	got, err := s.Scene(context.Background(), "town")
	require.NoError(t, err)
	assert.Same(t, want, got)

	other := errors.New("timeout")
	s = NewCMSSource(&fakeFetcher{err: other}, errFetcherNotFound)
	_, err = s.Scene(context.Background(), "town")
	assert.ErrorIs(t, err, other)
	assert.NotErrorIs(t, err, ErrNotFound)
}
