package assets

import (
	"context"

	"github.com/ironwatch/site/pkg/core"
)

// ManifestEntry describes one model of a scene. Cached is set when the
// model was already in memory before the manifest was built.
type ManifestEntry struct {
	URL       string `json:"url"`
	Theme     string `json:"theme,omitempty"`
	Instances int    `json:"instances"`
	Cached    bool   `json:"cached"`
	Model     *Model `json:"model,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Manifest is the asset listing of a scene.
type Manifest struct {
	Scene          string          `json:"scene"`
	Models         []ManifestEntry `json:"models"`
	TotalBytes     int64           `json:"totalBytes"`
	TotalInstances int             `json:"totalInstances"`
}

// Manifest preloads the scene's models and summarises them. Models that fail
// to load are listed with their error instead of failing the manifest.
func (p *Preloader) Manifest(ctx context.Context, sc *core.Scene) Manifest {
	out := Manifest{Scene: sc.Slug, Models: make([]ManifestEntry, 0, len(sc.Models))}
	for _, ref := range sc.Models {
		instances := len(ref.Instances)
		if instances == 0 {
			instances = 1
		}
		e := ManifestEntry{URL: ref.URL, Theme: ref.Theme, Instances: instances, Cached: p.Loaded(ref.URL)}

		m, err := p.Preload(ctx, ref.URL)
		if err != nil {
			e.Error = err.Error()
		} else {
			e.Model = m
			out.TotalBytes += m.Bytes
		}
		out.TotalInstances += instances
		out.Models = append(out.Models, e)
	}
	return out
}
