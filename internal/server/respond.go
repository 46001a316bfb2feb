package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/ironwatch/site/internal/cms"
	"github.com/ironwatch/site/internal/request"
	"github.com/ironwatch/site/internal/scene"
	"github.com/ironwatch/site/pkg/core"
)

type errorBody struct {
	Success bool                 `json:"success"`
	Error   string               `json:"error"`
	Details []request.FieldError `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// contentStatus maps a fetch error to an HTTP status.
func contentStatus(err error) int {
	switch {
	case errors.Is(err, cms.ErrNotFound), errors.Is(err, scene.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidDocument):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

// statusRecorder remembers the response status. It passes Hijack through
// so the WebSocket upgrade still works behind the logging middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
