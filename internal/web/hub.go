package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/voltbench/leakage-simulator/internal/logging"
	"github.com/voltbench/leakage-simulator/model"
)

// wsHub fans chart frames out to every connected browser. Clients are
// registered and removed through channels; the run loop is the only
// goroutine touching the client set or writing to a connection.
type wsHub struct {
	log      logging.Logger
	upgrader websocket.Upgrader

	clients   map[*websocket.Conn]bool
	register  chan *websocket.Conn
	remove    chan *websocket.Conn
	broadcast chan []byte
	stop      chan struct{}
	stopOnce  sync.Once
}

func newHub(log logging.Logger) *wsHub {
	h := &wsHub{
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:   make(map[*websocket.Conn]bool),
		register:  make(chan *websocket.Conn),
		remove:    make(chan *websocket.Conn),
		broadcast: make(chan []byte, 16),
		stop:      make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *wsHub) run() {
	ctx := context.Background()
	// latest is replayed to clients that connect between frames, so a
	// fresh page paints without waiting for the next tick.
	var latest []byte
	for {
		select {
		case conn := <-h.register:
			h.clients[conn] = true
			h.log.Debug(ctx, "websocket client connected", logging.Int("clients", len(h.clients)))
			if latest != nil {
				if err := conn.WriteMessage(websocket.TextMessage, latest); err != nil {
					delete(h.clients, conn)
					conn.Close()
				}
			}
		case conn := <-h.remove:
			if h.clients[conn] {
				delete(h.clients, conn)
				conn.Close()
				h.log.Debug(ctx, "websocket client disconnected", logging.Int("clients", len(h.clients)))
			}
		case data := <-h.broadcast:
			latest = data
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					h.log.Warn(ctx, "dropping websocket client", logging.Err(err))
					delete(h.clients, conn)
					conn.Close()
				}
			}
		case <-h.stop:
			for conn := range h.clients {
				conn.Close()
			}
			return
		}
	}
}

// close stops the run loop and disconnects every client. Safe to call
// more than once.
func (h *wsHub) close() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// broadcastFrame queues a frame for delivery. Frames are dropped when
// the queue is full so a stalled client cannot block the tick loop.
func (h *wsHub) broadcastFrame(frame ChartFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
	}
}

// handle upgrades the request and serves the connection. The reader
// goroutine accepts control commands so the lab can be driven from the
// same socket the chart listens on.
func (h *wsHub) handle(s *Server, w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", logging.Err(err))
		return
	}

	select {
	case h.register <- conn:
	case <-h.stop:
		conn.Close()
		return
	}

	go func() {
		defer func() {
			select {
			case h.remove <- conn:
			case <-h.stop:
			}
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req controlRequest
			if err := json.Unmarshal(data, &req); err != nil {
				continue
			}
			cmd, err := model.ParseCommand(req.Command)
			if err != nil {
				h.log.Warn(context.Background(), "ignoring unknown websocket command",
					logging.String("command", req.Command))
				continue
			}
			// The connection outlives the upgrade request, so the
			// request context cannot scope these commands.
			s.applyAndBroadcast(context.Background(), cmd)
		}
	}()
}
