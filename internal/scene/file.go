package scene

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/ironwatch/site/pkg/core"
)

// FileSource serves scenes defined in YAML files, one scene per file.
type FileSource struct {
	dir    string
	logger *slog.Logger

	mu     sync.RWMutex
	scenes map[string]*core.Scene
	main   string
}

// NewFileSource loads every *.yaml and *.yml file in dir. Any invalid file
// fails the load.
func NewFileSource(dir string, logger *slog.Logger) (*FileSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &FileSource{dir: dir, logger: logger}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadFile decodes and validates one scene file.
func LoadFile(path string) (*core.Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var sc core.Scene
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &sc, nil
}

// Reload re-reads the directory. On error the previous scenes are kept.
func (s *FileSource) Reload() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("reading scenes dir: %w", err)
	}

	scenes := make(map[string]*core.Scene)
	var main string
	for _, e := range entries {
		if e.IsDir() || !isSceneFile(e.Name()) {
			continue
		}
		sc, err := LoadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return err
		}
		if _, dup := scenes[sc.Slug]; dup {
			return fmt.Errorf("%s: duplicate scene slug %q", e.Name(), sc.Slug)
		}
		scenes[sc.Slug] = sc
		if sc.Kind == core.SceneKindMain {
			if main != "" {
				return fmt.Errorf("%s: second main scene %q (already %q)", e.Name(), sc.Slug, main)
			}
			main = sc.Slug
		}
	}

	s.mu.Lock()
	s.scenes = scenes
	s.main = main
	s.mu.Unlock()

	s.logger.Info("scenes loaded", "dir", s.dir, "count", len(scenes), "main", main)
	return nil
}

func (s *FileSource) Scene(_ context.Context, slug string) (*core.Scene, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scenes[slug]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	return sc, nil
}

func (s *FileSource) Main(ctx context.Context) (*core.Scene, error) {
	s.mu.RLock()
	main := s.main
	s.mu.RUnlock()
	if main == "" {
		return nil, fmt.Errorf("%w: no main scene in %s", ErrNotFound, s.dir)
	}
	return s.Scene(ctx, main)
}

func (s *FileSource) Slugs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.scenes))
	for slug := range s.scenes {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out, nil
}

// Watch reloads the source whenever a scene file changes, until ctx is
// done. onReload, if set, is called after every reload attempt.
func (s *FileSource) Watch(ctx context.Context, onReload func(error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Add(s.dir); err != nil {
		w.Close()
		return fmt.Errorf("watching %s: %w", s.dir, err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !isSceneFile(ev.Name) || ev.Op == fsnotify.Chmod {
					continue
				}
				err := s.Reload()
				if err != nil {
					s.logger.Warn("scene reload failed, keeping previous scenes", "file", ev.Name, "error", err)
				}
				if onReload != nil {
					onReload(err)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Error("scene watcher error", "error", err)
			}
		}
	}()
	return nil
}

func isSceneFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
