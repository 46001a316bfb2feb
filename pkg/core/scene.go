// pkg/core/scene.go
package core

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// SceneKind distinguishes the town overview from themed sub-areas.
type SceneKind string

const (
	SceneKindMain SceneKind = "main"
	SceneKindSub  SceneKind = "sub"
)

// Vec3 is a CMS-authored 3-vector.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Vec converts to the math type used by the camera.
func (v Vec3) Vec() mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

// Vec3From converts back from the camera math type.
func Vec3From(v mgl64.Vec3) Vec3 {
	return Vec3{X: v[0], Y: v[1], Z: v[2]}
}

// Viewpoint is a camera eye point and look-at point. Either may be nil when
// the author left the field empty in the CMS.
type Viewpoint struct {
	Position *Vec3 `json:"position,omitempty" yaml:"position,omitempty"`
	Target   *Vec3 `json:"target,omitempty" yaml:"target,omitempty"`
}

// Complete reports whether both halves of the viewpoint are present.
func (v *Viewpoint) Complete() bool {
	return v != nil && v.Position != nil && v.Target != nil
}

// Transform places one instance of a model.
type Transform struct {
	Position Vec3    `json:"position" yaml:"position"`
	Rotation Vec3    `json:"rotation" yaml:"rotation"`
	Scale    float64 `json:"scale" yaml:"scale"`
}

// ModelRef references a binary model file and where to place its instances.
type ModelRef struct {
	URL       string      `json:"url" yaml:"url"`
	Theme     string      `json:"theme,omitempty" yaml:"theme,omitempty"`
	Instances []Transform `json:"instances,omitempty" yaml:"instances,omitempty"`
}

// Marker is a point of interest in a scene.
type Marker struct {
	ID       string     `json:"id" yaml:"id"`
	Title    string     `json:"title" yaml:"title"`
	Body     string     `json:"body,omitempty" yaml:"body,omitempty"`
	Position Vec3       `json:"position" yaml:"position"`
	Camera   *Viewpoint `json:"camera,omitempty" yaml:"camera,omitempty"`
	Route    string     `json:"route,omitempty" yaml:"route,omitempty"`
}

// Scene is a named 3D environment.
type Scene struct {
	Slug        string     `json:"slug" yaml:"slug"`
	Title       string     `json:"title" yaml:"title"`
	Kind        SceneKind  `json:"kind" yaml:"kind"`
	Route       string     `json:"route,omitempty" yaml:"route,omitempty"`
	DefaultView Viewpoint  `json:"defaultView" yaml:"defaultView"`
	Models      []ModelRef `json:"models,omitempty" yaml:"models,omitempty"`
	Markers     []Marker   `json:"markers,omitempty" yaml:"markers,omitempty"`
}

// Marker returns the marker with the given ID.
func (s *Scene) Marker(id string) (Marker, bool) {
	for _, m := range s.Markers {
		if m.ID == id {
			return m, true
		}
	}
	return Marker{}, false
}

// Validate checks the fields every consumer of a scene relies on.
// Marker viewpoints are not checked here: an incomplete marker is dropped
// when clicked, not when the scene loads.
func (s *Scene) Validate() error {
	if s.Slug == "" {
		return invalid("scene", "slug")
	}
	switch s.Kind {
	case SceneKindMain, SceneKindSub:
	default:
		return invalid("scene "+s.Slug, "kind")
	}
	if !s.DefaultView.Complete() {
		return invalid("scene "+s.Slug, "defaultView")
	}
	seen := make(map[string]struct{}, len(s.Markers))
	for i, m := range s.Markers {
		if m.ID == "" {
			return invalid("scene "+s.Slug, fmt.Sprintf("markers[%d].id", i))
		}
		if _, dup := seen[m.ID]; dup {
			return invalid("scene "+s.Slug, fmt.Sprintf("markers[%d].id (duplicate %q)", i, m.ID))
		}
		seen[m.ID] = struct{}{}
	}
	for i, m := range s.Models {
		if m.URL == "" {
			return invalid("scene "+s.Slug, fmt.Sprintf("models[%d].url", i))
		}
	}
	return nil
}
