package models

// WebSocket event types
const (
	EventViolationNew    = "violation.new"
	EventSettingsUpdated = "settings.updated"
	EventPing            = "ping"
	EventPong            = "pong"
	EventError           = "error"
)

type WSMessage struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

type WSErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
