package websocket

import (
	"time"

	"github.com/coder/websocket"
)

// Message types sent to the browser.
const (
	MessageFullReload     = "full_reload"
	MessageArticleUpdated = "article_updated"
	MessageAssetUpdated   = "asset_updated"
)

// Client represents a WebSocket client connection
type Client struct {
	ID          string
	IP          string
	ConnectedAt time.Time

	conn *websocket.Conn
	send chan []byte
}

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type      string    `json:"type"`
	Target    string    `json:"target,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// OriginValidator decides whether a connection's Origin header is allowed.
type OriginValidator interface {
	IsAllowedOrigin(origin string) bool
}

// OriginValidatorFunc adapts a function to OriginValidator.
type OriginValidatorFunc func(origin string) bool

// IsAllowedOrigin implements OriginValidator.
func (f OriginValidatorFunc) IsAllowedOrigin(origin string) bool {
	return f(origin)
}
