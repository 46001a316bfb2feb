package main

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironwatch/site/internal/camera"
	"github.com/ironwatch/site/internal/config"
	"github.com/ironwatch/site/internal/storage/memory"
	"github.com/ironwatch/site/pkg/core"
)

func TestCMSBaseURL(t *testing.T) {
	assert.Equal(t, "https://abc123.api.sanity.io", cmsBaseURL(config.CMSConfig{ProjectID: "abc123"}))
	assert.Equal(t, "http://localhost:3333", cmsBaseURL(config.CMSConfig{BaseURL: "http://localhost:3333", ProjectID: "abc123"}))
	assert.Equal(t, "", cmsBaseURL(config.CMSConfig{}))
}

func TestCreateStorageBackend(t *testing.T) {
	b, err := createStorageBackend(config.StorageConfig{Type: "memory"}, nil, zerolog.Nop(), "")
	require.NoError(t, err)
	assert.IsType(t, &memory.Backend{}, b)

	b, err = createStorageBackend(config.StorageConfig{}, nil, zerolog.Nop(), "")
	require.NoError(t, err)
	assert.IsType(t, &memory.Backend{}, b)

	_, err = createStorageBackend(config.StorageConfig{Type: "cms"}, nil, zerolog.Nop(), "")
	assert.Error(t, err)

	_, err = createStorageBackend(config.StorageConfig{Type: "mongo"}, nil, zerolog.Nop(), "")
	assert.ErrorContains(t, err, "unknown storage type")
}

func TestCameraConfig(t *testing.T) {
	cfg, err := cameraConfig(config.CameraConfig{
		Duration:        time.Second,
		FrameInterval:   20 * time.Millisecond,
		Policy:          "queue",
		DefaultPosition: [3]float64{0, 400, 600},
	})
	require.NoError(t, err)
	assert.Equal(t, camera.PolicyQueue, cfg.Policy)
	assert.Equal(t, mgl64.Vec3{0, 400, 600}, cfg.DefaultPose.Position)
	assert.Equal(t, camera.ControlMap, cfg.DefaultControl)

	_, err = cameraConfig(config.CameraConfig{Policy: "teleport"})
	assert.Error(t, err)
}

func TestMarkerWarnings(t *testing.T) {
	sc := &core.Scene{Markers: []core.Marker{
		{ID: "bank", Route: "/services/bank", Camera: &core.Viewpoint{Position: &core.Vec3{}, Target: &core.Vec3{}}},
		{ID: "harbor", Route: "/services/harbor"},
		{ID: "tower", Camera: &core.Viewpoint{Position: &core.Vec3{}, Target: &core.Vec3{}}},
	}}

	assert.Equal(t, []string{
		"marker harbor has no camera position/target",
		"marker tower has no route",
	}, markerWarnings(sc))
}
