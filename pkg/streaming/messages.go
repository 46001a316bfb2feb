package streaming

import (
	"encoding/json"

	"github.com/ironwatch/site/pkg/core"
)

// Message type constants for the experience WebSocket protocol.
const (
	// client -> server
	TypeMarkerClick = "marker_click"
	TypeBack        = "back"
	TypeSetControl  = "set_control"
	TypeLoaded      = "loaded"

	// server -> client
	TypeState       = "state"
	TypeCameraFrame = "camera_frame"
	TypeNavigate    = "navigate"
	TypeWarning     = "warning"
	TypeError       = "error"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MarkerClickPayload identifies the clicked point of interest.
type MarkerClickPayload struct {
	Scene    string `json:"scene"`
	MarkerID string `json:"markerId"`
}

// SetControlPayload requests a control mode: "map" or "orbit".
type SetControlPayload struct {
	Mode string `json:"mode"`
}

// StatePayload is a snapshot of the session's camera state.
type StatePayload struct {
	Scene     string    `json:"scene"`
	Position  core.Vec3 `json:"position"`
	Target    core.Vec3 `json:"target"`
	Control   string    `json:"control"`
	Animating bool      `json:"animating"`
	Loading   bool      `json:"loading"`
	Phase     string    `json:"phase"`
}

// CameraFramePayload is one interpolated frame of a transition.
type CameraFramePayload struct {
	Transition uint64    `json:"transition"`
	Position   core.Vec3 `json:"position"`
	Target     core.Vec3 `json:"target"`
	Progress   float64   `json:"progress"`
}

// NavigatePayload tells the client to change route.
type NavigatePayload struct {
	Route string `json:"route"`
}

// MessagePayload carries warning and error text.
type MessagePayload struct {
	Message string `json:"message"`
}
