package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/ironwatch/site/internal/channel"
	"github.com/ironwatch/site/pkg/streaming"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// connection manages one browser WebSocket with a single write goroutine.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	sendCh channel.Channel[[]byte]
	done   chan struct{} // closed on shutdown
	closed bool
	writer sync.WaitGroup

	dropped int
	logger  *slog.Logger
}

func newConnection(conn *ws.Conn, queueSize int, logger *slog.Logger) *connection {
	c := &connection{
		conn:   conn,
		sendCh: channel.New[[]byte](queueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	c.writer.Add(1)
	go c.writeLoop()
	return c
}

// writeLoop drains sendCh and writes messages to the WebSocket. It also
// keeps the connection alive with pings.
func (c *connection) writeLoop() {
	defer c.writer.Done()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case data, ok := <-c.sendCh.Receive():
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				return
			}
			if err := c.conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Debug("WebSocket write error", "error", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.Debug("WebSocket ping error", "error", err)
				return
			}
		}
	}
}

// read blocks for the next envelope from the browser.
func (c *connection) read() (streaming.Envelope, error) {
	var env streaming.Envelope
	_, message, err := c.conn.ReadMessage()
	if err != nil {
		return env, err
	}
	if err := json.Unmarshal(message, &env); err != nil {
		return env, fmt.Errorf("%w: %v", errMalformed, err)
	}
	return env, nil
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// send queues an envelope without blocking. Camera frames are dropped when
// the browser falls behind; any other message that does not fit is an
// error and the session is closed.
func (c *connection) send(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClosed
	}
	if c.sendCh.TrySend(data) {
		return nil
	}
	if msgType == streaming.TypeCameraFrame {
		c.dropped++
		return nil
	}
	return fmt.Errorf("%w: %s", errSlowConsumer, msgType)
}

// droppedFrames returns how many camera frames were not delivered.
func (c *connection) droppedFrames() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// close sends a WebSocket close frame and shuts down the writer.
func (c *connection) close(code int, reason string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	c.writer.Wait()
	_ = c.conn.WriteControl(
		ws.CloseMessage,
		ws.FormatCloseMessage(code, reason),
		time.Now().Add(writeWait),
	)
	return c.conn.Close()
}
