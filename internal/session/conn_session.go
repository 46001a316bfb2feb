package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/ironwatch/site/internal/camera"
	"github.com/ironwatch/site/internal/dispatcher"
	"github.com/ironwatch/site/internal/navigation"
	"github.com/ironwatch/site/pkg/core"
	"github.com/ironwatch/site/pkg/streaming"
)

// Session is one connected viewer.
type Session struct {
	id          string
	conn        *connection
	coord       *camera.Coordinator
	nav         *navigation.Navigator
	unsubscribe func()

	mu    sync.Mutex
	scene string

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	finished  chan struct{}
	logger    *slog.Logger
}

// ID returns the session ID used as dispatcher.Event.Session.
func (s *Session) ID() string { return s.id }

func deadline() time.Time { return time.Now().Add(writeWait) }

// serve sends the initial state and reads client envelopes until the
// connection ends.
func (s *Session) serve(m *Manager) {
	if err := s.sendState(); err != nil {
		return
	}
	for {
		env, err := s.conn.read()
		if errors.Is(err, errMalformed) {
			s.sendError(err)
			continue
		}
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
				s.logger.Debug("websocket read error", "error", err)
			}
			return
		}

		cmd, ok := commands[env.Type]
		if !ok {
			s.sendError(errors.New("unknown message type " + env.Type))
			continue
		}
		if _, err := m.d.Dispatch(dispatcher.Event{
			Command: cmd,
			Session: s.id,
			Payload: env.Payload,
		}); err != nil {
			s.sendError(err)
		}
	}
}

func (s *Session) setScene(slug string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slug != "" {
		s.scene = slug
	}
	return s.scene
}

func (s *Session) currentScene() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene
}

// goNavigate runs a click or back action without blocking the read loop.
func (s *Session) goNavigate(fn func(ctx context.Context) (bool, error)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := fn(s.ctx); err != nil && s.ctx.Err() == nil {
			s.logger.Warn("navigation failed", "error", err)
			s.sendError(err)
		}
	}()
}

func (s *Session) navigate(_ context.Context, route string) error {
	return s.conn.send(streaming.TypeNavigate, streaming.NavigatePayload{Route: route})
}

func (s *Session) warn(msg string) {
	_ = s.conn.send(streaming.TypeWarning, streaming.MessagePayload{Message: msg})
}

func (s *Session) sendError(err error) {
	if sendErr := s.conn.send(streaming.TypeError, streaming.MessagePayload{Message: err.Error()}); errors.Is(sendErr, errSlowConsumer) {
		s.close(ws.ClosePolicyViolation, "client too slow")
	}
}

func (s *Session) sendState() error {
	st := s.coord.Snapshot()
	err := s.conn.send(streaming.TypeState, streaming.StatePayload{
		Scene:     s.currentScene(),
		Position:  core.Vec3From(st.Pose.Position),
		Target:    core.Vec3From(st.Pose.Target),
		Control:   st.Control.String(),
		Animating: st.Animating,
		Loading:   st.Loading,
		Phase:     st.Phase.String(),
	})
	if errors.Is(err, errSlowConsumer) {
		s.close(ws.ClosePolicyViolation, "client too slow")
	}
	return err
}

func (s *Session) forwardFrames(frames <-chan camera.Frame) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			_ = s.conn.send(streaming.TypeCameraFrame, streaming.CameraFramePayload{
				Transition: f.Transition,
				Position:   core.Vec3From(f.Pose.Position),
				Target:     core.Vec3From(f.Pose.Target),
				Progress:   f.Progress,
			})
			if f.Progress >= 1 {
				_ = s.sendState()
			}
		}
	}
}

// close stops transitions and background work, then closes the socket.
func (s *Session) close(code int, reason string) {
	s.closeOnce.Do(func() {
		s.cancel()
		s.coord.Close()
		s.unsubscribe()
		go func() {
			defer close(s.finished)
			s.wg.Wait()
			_ = s.conn.close(code, reason)
		}()
		// Unblock the read loop.
		_ = s.conn.conn.SetReadDeadline(time.Now())
	})
}
