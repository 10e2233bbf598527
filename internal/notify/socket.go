// Package notify carries fire-and-forget signals: player restart events over
// the realtime socket server and Slack webhook alerts.
package notify

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"player-watch/internal/types"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// RestartSignaler sends a restart signal to one device. The boolean is the
// entire acknowledgment contract.
type RestartSignaler interface {
	RestartPlayer(licenseID string) bool
}

// Engine.IO / Socket.IO v4 packet framing. The server speaks Socket.IO; we
// only need the handshake and a single event emit, so the frames are inlined
// rather than pulling in a full client.
const (
	engineOpenPacket    = "0"
	socketConnectPacket = "40"
	socketEventPrefix   = "42"

	handshakeTimeout = 10 * time.Second
	ioTimeout        = 15 * time.Second
)

// SocketEmitter emits events to the signage socket server, one short-lived
// connection per emit.
type SocketEmitter struct {
	url string
}

// NewSocketEmitter creates a SocketEmitter from configuration.
func NewSocketEmitter(configManager types.ConfigManager) *SocketEmitter {
	return &SocketEmitter{url: configManager.GetSocketConfig().URL}
}

// RestartPlayer emits a D_player_restart event for the given license.
func (e *SocketEmitter) RestartPlayer(licenseID string) bool {
	if licenseID == "" {
		logrus.Error("RestartPlayer called without licenseID")
		return false
	}
	return e.emit("D_player_restart", map[string]string{"license_id": licenseID})
}

// emit connects, performs the Socket.IO handshake, sends one event and
// disconnects. Returns true only when the event frame was written.
func (e *SocketEmitter) emit(event string, data any) bool {
	log := logrus.WithFields(logrus.Fields{"event": event, "socket_url": e.url})
	if e.url == "" {
		log.Warn("SOCKET_URL not set, dropping event")
		return false
	}

	wsURL, err := websocketURL(e.url)
	if err != nil {
		log.WithError(err).Error("Invalid socket URL")
		return false
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.Dial(wsURL, nil)
	if err != nil {
		log.WithError(err).Error("Socket connect failed")
		return false
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(ioTimeout))
	conn.SetWriteDeadline(time.Now().Add(ioTimeout))

	// Engine.IO open packet, then Socket.IO namespace connect + ack.
	if _, msg, err := conn.ReadMessage(); err != nil || !strings.HasPrefix(string(msg), engineOpenPacket) {
		log.WithError(err).Error("Socket handshake failed")
		return false
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(socketConnectPacket)); err != nil {
		log.WithError(err).Error("Socket namespace connect failed")
		return false
	}
	if _, msg, err := conn.ReadMessage(); err != nil || !strings.HasPrefix(string(msg), socketConnectPacket) {
		log.WithError(err).Error("Socket namespace ack failed")
		return false
	}

	frame, err := EventFrame(event, data)
	if err != nil {
		log.WithError(err).Error("Failed to encode event")
		return false
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		log.WithError(err).Error("Socket emit failed")
		return false
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	log.Info("Socket emit succeeded")
	return true
}

// EventFrame encodes a Socket.IO event packet: 42["event",payload].
func EventFrame(event string, data any) ([]byte, error) {
	payload, err := json.Marshal([]any{event, data})
	if err != nil {
		return nil, err
	}
	return append([]byte(socketEventPrefix), payload...), nil
}

// websocketURL converts the configured http(s) base URL into the Engine.IO
// websocket endpoint.
func websocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/socket.io/"
	u.RawQuery = "EIO=4&transport=websocket"
	return u.String(), nil
}
