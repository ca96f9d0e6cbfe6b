// Package watch streams lifecycle events to websocket subscribers. It exists
// because a fire-and-forget caller only learns the eventual outcome of its
// operation by subscribing: the gateway's Accepted response promises nothing
// beyond "enqueued".
package watch

import (
	"net/http"

	"github.com/emporion-io/emporion/internal/infrastructure/logging"
	"github.com/gorilla/websocket"
)

type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	clients    map[*client]struct{}
	upgrader   websocket.Upgrader
	logger     logging.Logger
}

type client struct {
	conn    *websocket.Conn
	message chan []byte // buffered to avoid dead-locks on slow clients
}

func NewHub(logger logging.Logger) *Hub {
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
		clients:    make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case cl := <-h.register:
			h.clients[cl] = struct{}{}

		case cl := <-h.unregister:
			if _, ok := h.clients[cl]; ok {
				delete(h.clients, cl)
				close(cl.message)
			}

		case msg := <-h.broadcast:
			for cl := range h.clients {
				select {
				case cl.message <- msg:
				default:
					// Slow subscriber; drop it rather than block the hub.
					delete(h.clients, cl)
					close(cl.message)
				}
			}
		}
	}
}

// Broadcast fans an event body out to every subscriber.
func (h *Hub) Broadcast(body []byte) {
	h.broadcast <- body
}

// ServeHTTP upgrades the request and streams events until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(logging.RequestResponse, logging.ExternalService, "websocket upgrade failed", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	cl := &client{
		conn:    conn,
		message: make(chan []byte, 64),
	}

	h.register <- cl

	go cl.write()
	go cl.read(h)
}

func (c *client) write() {
	defer c.conn.Close()

	for msg := range c.message {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// read drains and discards client frames so pings and close frames are
// processed.
func (c *client) read(h *Hub) {
	defer func() {
		h.unregister <- c
		_ = c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
