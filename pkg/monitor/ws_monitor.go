package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local ops tool, no origin restrictions
	},
}

// safeConn serializes writes; gorilla connections do not allow concurrent
// WriteMessage calls.
type safeConn struct {
	*websocket.Conn
	mu sync.Mutex
}

func (sc *safeConn) writeJSON(v any) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return sc.Conn.WriteMessage(websocket.TextMessage, data)
}

// WSMonitor mirrors bot traffic to any connected WebSocket client. It exists
// for watching a headless deployment live without tailing logs.
type WSMonitor struct {
	port   int
	server *http.Server

	mu    sync.RWMutex
	conns map[*safeConn]struct{}
}

func NewWSMonitor(port int) *WSMonitor {
	return &WSMonitor{
		port:  port,
		conns: make(map[*safeConn]struct{}),
	}
}

func (m *WSMonitor) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", m.handleWS)

	m.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", m.port),
		Handler: mux,
	}

	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("WS monitor server failed", "error", err)
		}
	}()

	slog.Info("WS monitor listening", "port", m.port)
	return nil
}

func (m *WSMonitor) Stop() error {
	if m.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return m.server.Shutdown(ctx)
}

func (m *WSMonitor) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WS upgrade failed", "error", err)
		return
	}

	sc := &safeConn{Conn: conn}
	m.mu.Lock()
	m.conns[sc] = struct{}{}
	m.mu.Unlock()

	slog.Debug("WS monitor client connected", "remote", r.RemoteAddr)

	// Drain reads so pings/closes are processed; drop the connection on error.
	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.conns, sc)
			m.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// OnMessage broadcasts a mirrored message to every connected client.
func (m *WSMonitor) OnMessage(msg Message) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for sc := range m.conns {
		if err := sc.writeJSON(map[string]any{
			"timestamp": msg.Timestamp.Format(time.RFC3339),
			"direction": msg.Direction,
			"bot":       msg.Bot,
			"user_id":   msg.UserID,
			"username":  msg.Username,
			"content":   msg.Content,
		}); err != nil {
			slog.Debug("WS monitor write failed", "error", err)
		}
	}
}
