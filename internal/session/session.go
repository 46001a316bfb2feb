// Package session hosts experience sessions: one camera coordinator and
// navigator per browser WebSocket, driven by marker clicks.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"

	"github.com/ironwatch/site/internal/cache"
	"github.com/ironwatch/site/internal/camera"
	"github.com/ironwatch/site/internal/dispatcher"
	"github.com/ironwatch/site/internal/navigation"
	"github.com/ironwatch/site/internal/scene"
	"github.com/ironwatch/site/internal/util"
	"github.com/ironwatch/site/pkg/core"
	"github.com/ironwatch/site/pkg/streaming"
)

var (
	errClosed       = errors.New("session closed")
	errSlowConsumer = errors.New("send queue full")
	errMalformed    = errors.New("malformed message")
	// ErrUnknownSession is returned for events of a session that has ended.
	ErrUnknownSession = errors.New("unknown session")
)

// Dispatcher commands for client messages.
const (
	CmdMarkerClick = "session:" + streaming.TypeMarkerClick
	CmdBack        = "session:" + streaming.TypeBack
	CmdSetControl  = "session:" + streaming.TypeSetControl
	CmdLoaded      = "session:" + streaming.TypeLoaded
)

var commands = map[string]string{
	streaming.TypeMarkerClick: CmdMarkerClick,
	streaming.TypeBack:        CmdBack,
	streaming.TypeSetControl:  CmdSetControl,
	streaming.TypeLoaded:      CmdLoaded,
}

// Config configures every session of a Manager.
type Config struct {
	Camera         camera.Config
	MainRoute      string
	QueueSize      int
	AllowedOrigins []string
}

// Manager upgrades connections and routes their messages through the
// dispatcher.
type Manager struct {
	cfg      Config
	scenes   scene.Source
	d        *dispatcher.Dispatcher
	logger   *slog.Logger
	upgrader ws.Upgrader

	mu       sync.RWMutex
	sessions map[string]*Session
	active   cache.SafeCounter
	wg       sync.WaitGroup
}

// NewManager creates a Manager and registers its handlers with d.
func NewManager(cfg Config, scenes scene.Source, d *dispatcher.Dispatcher, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.MainRoute == "" {
		cfg.MainRoute = navigation.DefaultMainRoute
	}
	m := &Manager{
		cfg:      cfg,
		scenes:   scenes,
		d:        d,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
	m.upgrader = ws.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096}
	if len(cfg.AllowedOrigins) > 0 {
		m.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(cfg.AllowedOrigins, origin)
		}
	}

	d.Register(CmdMarkerClick, m.handleMarkerClick, dispatcher.Logged())
	d.Register(CmdBack, m.handleBack, dispatcher.Logged())
	d.Register(CmdSetControl, m.handleSetControl, dispatcher.Logged())
	d.Register(CmdLoaded, m.handleLoaded, dispatcher.Logged())
	return m
}

// Active returns the number of connected sessions.
func (m *Manager) Active() int {
	return m.active.Value()
}

// ServeHTTP serves GET /ws/experience?scene=<slug>. An empty slug opens
// the main scene.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	slug := util.NormalizeSlug(r.URL.Query().Get("scene"))
	var (
		sc  *core.Scene
		err error
	)
	if slug == "" {
		sc, err = m.scenes.Main(r.Context())
	} else {
		sc, err = m.scenes.Scene(r.Context(), slug)
	}
	switch {
	case errors.Is(err, scene.ErrNotFound):
		http.Error(w, "scene not found", http.StatusNotFound)
		return
	case err != nil:
		m.logger.Error("loading scene for session", "scene", slug, "error", err)
		http.Error(w, "scene unavailable", http.StatusBadGateway)
		return
	}

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	s, err := m.open(conn, sc)
	if err != nil {
		m.logger.Error("opening session", "error", err)
		_ = conn.WriteControl(ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseInternalServerErr, "session unavailable"), deadline())
		_ = conn.Close()
		return
	}
	m.wg.Add(1)
	defer m.wg.Done()
	defer m.remove(s)

	s.serve(m)
}

// Close ends every session and waits for them to finish.
func (m *Manager) Close() {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		s.close(ws.CloseGoingAway, "server shutting down")
	}
	m.wg.Wait()
}

func (m *Manager) open(conn *ws.Conn, sc *core.Scene) (*Session, error) {
	id := uuid.NewString()
	logger := m.logger.With("session", id)

	camCfg := m.cfg.Camera
	if v := sc.DefaultView.Position; v != nil {
		camCfg.DefaultPose.Position = v.Vec()
	}
	if v := sc.DefaultView.Target; v != nil {
		camCfg.DefaultPose.Target = v.Vec()
	}
	camCfg.Logger = logger
	coord, err := camera.NewCoordinator(camCfg)
	if err != nil {
		return nil, fmt.Errorf("creating camera coordinator: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:       id,
		scene:    sc.Slug,
		conn:     newConnection(conn, m.cfg.QueueSize, logger),
		coord:    coord,
		ctx:      ctx,
		cancel:   cancel,
		finished: make(chan struct{}),
		logger:   logger,
	}
	s.nav = navigation.New(m.scenes, coord, navigation.RouterFunc(s.navigate),
		navigation.WithLogger(logger),
		navigation.WithMainRoute(m.cfg.MainRoute),
		navigation.WithWarningHandler(s.warn),
	)

	frames, unsubscribe := coord.Subscribe(8)
	s.unsubscribe = unsubscribe
	s.wg.Add(1)
	go s.forwardFrames(frames)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	m.active.Inc()
	logger.Info("experience session opened", "scene", sc.Slug)
	return s, nil
}

func (m *Manager) remove(s *Session) {
	s.close(ws.CloseNormalClosure, "")
	<-s.finished

	m.mu.Lock()
	_, ok := m.sessions[s.id]
	delete(m.sessions, s.id)
	m.mu.Unlock()
	if ok {
		m.active.Dec()
	}
	s.logger.Info("experience session closed", "droppedFrames", s.conn.droppedFrames())
}

func (m *Manager) lookup(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return s, nil
}

func decode[T any](e dispatcher.Event) (T, error) {
	var v T
	raw, _ := e.Payload.(json.RawMessage)
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%s: %w: %v", e.Command, errMalformed, err)
	}
	return v, nil
}

func (m *Manager) handleMarkerClick(e dispatcher.Event) (any, error) {
	s, err := m.lookup(e.Session)
	if err != nil {
		return nil, err
	}
	p, err := decode[streaming.MarkerClickPayload](e)
	if err != nil {
		return nil, err
	}
	if p.MarkerID == "" {
		return nil, fmt.Errorf("%s: markerId required", e.Command)
	}
	slug := s.setScene(util.NormalizeSlug(p.Scene))

	s.goNavigate(func(ctx context.Context) (bool, error) {
		return s.nav.MarkerClick(ctx, slug, p.MarkerID)
	})
	return nil, nil
}

func (m *Manager) handleBack(e dispatcher.Event) (any, error) {
	s, err := m.lookup(e.Session)
	if err != nil {
		return nil, err
	}
	s.goNavigate(s.nav.Back)
	return nil, nil
}

func (m *Manager) handleSetControl(e dispatcher.Event) (any, error) {
	s, err := m.lookup(e.Session)
	if err != nil {
		return nil, err
	}
	p, err := decode[streaming.SetControlPayload](e)
	if err != nil {
		return nil, err
	}
	mode, err := camera.ParseControl(p.Mode)
	if err != nil {
		return nil, err
	}
	if mode == camera.ControlDisabled {
		return nil, fmt.Errorf("%s: control cannot be disabled by the client", e.Command)
	}
	if err := s.coord.SetControl(mode); err != nil {
		s.warn("camera is moving, control unchanged")
		return nil, nil
	}
	return nil, s.sendState()
}

func (m *Manager) handleLoaded(e dispatcher.Event) (any, error) {
	s, err := m.lookup(e.Session)
	if err != nil {
		return nil, err
	}
	s.coord.FinishLoading()
	return nil, s.sendState()
}
