package telemetry

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/zeusync/btcore/internal/core/btree"
	"github.com/zeusync/btcore/internal/core/observability/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

const (
	writeWait   = 5 * time.Second
	defaultSend = 256
)

// Event is one engine notification as sent to telemetry clients.
type Event struct {
	Kind   string        `json:"kind"`
	Agent  btree.AgentID `json:"agent"`
	Node   uuid.UUID     `json:"node"`
	Target *uuid.UUID    `json:"target,omitempty"`
	Status string        `json:"status,omitempty"`
	Passed *bool         `json:"passed,omitempty"`
}

const (
	KindEnter            = "enter"
	KindExit             = "exit"
	KindSuccess          = "success"
	KindDecoratorChecked = "decorator_checked"
	KindDecoratorReset   = "decorator_reset"
	KindAbort            = "abort"
)

type client struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
}

// Hub is a btree.Observer that streams events to websocket clients. Broadcasting
// never blocks evaluation: a client whose queue is full loses the event.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*client
	buffer  int
	log     log.Log
	dropped uint64
}

var _ btree.Observer = (*Hub)(nil)

func NewHub(logger log.Log) *Hub {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Hub{
		clients: make(map[uuid.UUID]*client),
		buffer:  defaultSend,
		log:     logger,
	}
}

// ServeHTTP upgrades the request and registers a client session.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("telemetry upgrade failed", log.Error(err))
		return
	}

	c := &client{id: uuid.New(), conn: conn, send: make(chan []byte, h.buffer)}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.log.Debug("telemetry client connected", log.Stringer("session", c.id), log.String("remote", conn.RemoteAddr().String()))

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop drains control frames and detects disconnects.
func (h *Hub) readLoop(c *client) {
	defer h.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Debug("telemetry write failed", log.Stringer("session", c.id), log.Error(err))
			h.drop(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	h.mu.Unlock()
}

// Clients reports the number of connected sessions.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped reports how many per-client deliveries were skipped on full queues.
func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
}

func (h *Hub) publish(e Event) {
	h.mu.RLock()
	empty := len(h.clients) == 0
	h.mu.RUnlock()
	if empty {
		return
	}

	msg, err := json.Marshal(e)
	if err != nil {
		h.log.Warn("telemetry encode failed", log.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.dropped++
		}
	}
}

func (h *Hub) OnNodeEnter(a btree.AgentID, n uuid.UUID) {
	h.publish(Event{Kind: KindEnter, Agent: a, Node: n})
}

func (h *Hub) OnNodeExit(a btree.AgentID, n uuid.UUID, s btree.Status) {
	h.publish(Event{Kind: KindExit, Agent: a, Node: n, Status: s.String()})
}

func (h *Hub) OnNodeSuccess(a btree.AgentID, n uuid.UUID) {
	h.publish(Event{Kind: KindSuccess, Agent: a, Node: n})
}

func (h *Hub) OnDecoratorChecked(a btree.AgentID, n uuid.UUID, passed bool) {
	h.publish(Event{Kind: KindDecoratorChecked, Agent: a, Node: n, Passed: &passed})
}

func (h *Hub) OnDecoratorReset(a btree.AgentID, n uuid.UUID) {
	h.publish(Event{Kind: KindDecoratorReset, Agent: a, Node: n})
}

func (h *Hub) OnAbort(a btree.AgentID, src, dst uuid.UUID) {
	h.publish(Event{Kind: KindAbort, Agent: a, Node: src, Target: &dst})
}
