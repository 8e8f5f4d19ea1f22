package httpserver

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/peterkaminski/textpile/internal/domain"
)

// Hub fans committed index changes out to websocket viewers. It implements
// domain.IndexNotifier; the coordinator calls IndexChanged after the index
// save lands, so the stream reflects the persisted ledger, not intent.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewHub returns an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// IndexChanged broadcasts one event to every connected viewer. Writes are
// serialized under the hub lock; connections that fail to accept the write
// are dropped.
func (h *Hub) IndexChanged(ev domain.IndexEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns {
		if err := conn.WriteJSON(ev); err != nil {
			h.logger.Debug("dropping slow index stream viewer", "error", err)
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

func (h *Hub) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	n := len(h.conns)
	h.mu.Unlock()
	h.logger.Info("index stream viewer connected", "viewers", n)

	// The stream is one-way; drain the connection until the client goes
	// away so close frames and pings are processed.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	conn.Close()
	h.logger.Info("index stream viewer disconnected")
}
