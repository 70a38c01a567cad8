package notify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/sm8ta/webike_rental_nikita/internal/core/domain"
	"github.com/sm8ta/webike_rental_nikita/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const (
	writeWait  = 10 * time.Second
	sendBuffer = 16
)

// client owns one websocket. Only its writer goroutine writes to ws.
type client struct {
	ws   *websocket.Conn
	send chan domain.ChangeEvent
}

func (h *Hub) writer(c *client) {
	for ev := range c.send {
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteJSON(ev); err != nil {
			h.logger.Debug("Dropping websocket client", map[string]interface{}{
				"error": err.Error(),
			})
			h.remove(c)
			return
		}
	}
}

// Hub broadcasts change events to websocket clients and in-process subscribers.
type Hub struct {
	logger ports.LoggerPort

	mu    sync.RWMutex
	conns map[*client]struct{}
	subs  map[chan domain.ChangeEvent]struct{}
}

func NewHub(logger ports.LoggerPort) *Hub {
	return &Hub{
		logger: logger,
		conns:  make(map[*client]struct{}),
		subs:   make(map[chan domain.ChangeEvent]struct{}),
	}
}

// Notify never blocks: a subscriber whose buffer is full misses the event and
// is expected to re-fetch on the next one. A websocket client that falls
// sendBuffer events behind is disconnected.
func (h *Hub) Notify(_ context.Context, ev domain.ChangeEvent) {
	var slow []*client
	h.mu.RLock()
	for c := range h.conns {
		select {
		case c.send <- ev:
		default:
			slow = append(slow, c)
		}
	}
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Debug("Dropping slow websocket client", nil)
		h.remove(c)
	}
}

// Subscribe returns a channel receiving every later event.
func (h *Hub) Subscribe(buffer int) chan domain.ChangeEvent {
	ch := make(chan domain.ChangeEvent, buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan domain.ChangeEvent) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Clients reports the number of connected websocket clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// HandleWS upgrades the request and keeps the client until it disconnects.
func (h *Hub) HandleWS(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	conn := &client{ws: ws, send: make(chan domain.ChangeEvent, sendBuffer)}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
	go h.writer(conn)

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(conn)
}

// remove closes send under the write lock, so Notify never sends on a closed
// channel.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.conns[c]
	if ok {
		delete(h.conns, c)
		close(c.send)
	}
	h.mu.Unlock()
	if ok {
		c.ws.Close()
	}
}
