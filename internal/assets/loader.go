// Package assets loads the binary 3D model files scenes reference.
package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/qmuntal/gltf"
)

// DefaultMaxBytes caps the size of a single model file.
const DefaultMaxBytes = 64 << 20

// ErrTooLarge is returned for model files over the loader's size cap.
var ErrTooLarge = errors.New("model file too large")

// Model summarises a decoded glTF/GLB document.
type Model struct {
	URL        string `json:"url"`
	Generator  string `json:"generator,omitempty"`
	Version    string `json:"version"`
	Scenes     int    `json:"scenes"`
	Nodes      int    `json:"nodes"`
	Meshes     int    `json:"meshes"`
	Primitives int    `json:"primitives"`
	Materials  int    `json:"materials"`
	Textures   int    `json:"textures"`
	Animations int    `json:"animations"`
	Bytes      int64  `json:"bytes"`
}

// Loader fetches and decodes one model.
type Loader interface {
	Load(ctx context.Context, url string) (*Model, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, url string) (*Model, error)

func (f LoaderFunc) Load(ctx context.Context, url string) (*Model, error) { return f(ctx, url) }

// GLTFLoader loads models over HTTP(S) or, for relative URLs, from a local
// directory.
type GLTFLoader struct {
	baseURL    string
	root       string
	maxBytes   int64
	httpClient *http.Client
}

// NewGLTFLoader creates a loader. Relative URLs resolve against root when
// it is set, otherwise against baseURL.
func NewGLTFLoader(baseURL, root string, maxBytes int64) *GLTFLoader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &GLTFLoader{
		baseURL:    strings.TrimRight(baseURL, "/"),
		root:       root,
		maxBytes:   maxBytes,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (l *GLTFLoader) Load(ctx context.Context, url string) (*Model, error) {
	switch {
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		return l.loadHTTP(ctx, url)
	case l.root != "":
		return l.loadFile(url)
	case l.baseURL != "":
		return l.loadHTTP(ctx, l.baseURL+"/"+strings.TrimLeft(url, "/"))
	}
	return nil, fmt.Errorf("cannot resolve model url %q: no asset root or base URL", url)
}

func (l *GLTFLoader) loadHTTP(ctx context.Context, url string) (*Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model %s returned status %d", url, resp.StatusCode)
	}

	data, err := l.readAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return Decode(url, data, nil)
}

func (l *GLTFLoader) loadFile(url string) (*Model, error) {
	rel := path.Clean("/" + strings.TrimLeft(url, "/"))[1:]
	full := filepath.Join(l.root, filepath.FromSlash(rel))

	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("opening model: %w", err)
	}
	defer f.Close()

	data, err := l.readAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return Decode(url, data, os.DirFS(filepath.Dir(full)))
}

func (l *GLTFLoader) readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > l.maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

// Decode parses glTF JSON or GLB bytes. External buffers resolve through
// fsys; with a nil fsys only self-contained files decode.
func Decode(url string, data []byte, fsys fs.FS) (*Model, error) {
	var dec *gltf.Decoder
	if fsys != nil {
		dec = gltf.NewDecoderFS(bytes.NewReader(data), fsys)
	} else {
		dec = gltf.NewDecoder(bytes.NewReader(data))
	}

	doc := new(gltf.Document)
	if err := dec.Decode(doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", url, err)
	}

	m := &Model{
		URL:        url,
		Generator:  doc.Asset.Generator,
		Version:    doc.Asset.Version,
		Scenes:     len(doc.Scenes),
		Nodes:      len(doc.Nodes),
		Meshes:     len(doc.Meshes),
		Materials:  len(doc.Materials),
		Textures:   len(doc.Textures),
		Animations: len(doc.Animations),
		Bytes:      int64(len(data)),
	}
	for _, mesh := range doc.Meshes {
		m.Primitives += len(mesh.Primitives)
	}
	return m, nil
}
