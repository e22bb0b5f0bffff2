package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/castscan/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// Snapshot message types sent on /ws
const (
	MessageDevices  = "devices"
	MessageSelected = "selected"
)

// WSMessage is one snapshot pushed to WebSocket clients
type WSMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWS streams device and selection snapshots. Each connection gets the
// current values first and then every change; slow clients skip to the latest.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}

	remoteAddr := r.RemoteAddr
	logging.LogConnection(remoteAddr, "websocket_opened")

	devices, cancelDevices := s.store.SavedDevices().Subscribe()
	selected, cancelSelected := s.store.SelectedDevice().Subscribe()

	closed := make(chan struct{})
	go readPump(conn, closed)

	defer func() {
		cancelDevices()
		cancelSelected()
		_ = conn.Close()
		logging.LogConnection(remoteAddr, "websocket_closed")
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		var msg WSMessage
		select {
		case list, ok := <-devices:
			if !ok {
				return
			}
			msg = WSMessage{Type: MessageDevices, Data: list}
		case d, ok := <-selected:
			if !ok {
				return
			}
			msg = WSMessage{Type: MessageSelected, Data: d}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		case <-closed:
			return
		case <-s.done:
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait),
			)
			return
		}

		payload, err := json.Marshal(msg)
		if err != nil {
			logging.Error("Failed to marshal WebSocket message", zap.Error(err))
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			logging.Debug("WebSocket write failed", zap.String("remote_addr", remoteAddr), zap.Error(err))
			return
		}
	}
}

// readPump discards client messages and signals when the peer goes away
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
