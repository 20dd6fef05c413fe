package api

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"cop-sim/internal/cop"
	"cop-sim/internal/metrics"
	"cop-sim/internal/sim"
)

// Message types pushed to stream clients. Feed kinds are reused as is.
const (
	MessageTypeUnits    = string(sim.KindUnits)
	MessageTypeSpectrum = string(sim.KindSpectrum)
	MessageTypeIncident = string(sim.KindIncident)
	MessageTypeCommand  = string(sim.KindCommand)
	MessageTypePing     = "ping"
	MessageTypePong     = "pong"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 64
	broadcastQueue = 256
)

// Message is one websocket frame.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub fans feed records out to websocket clients. It implements
// sim.FeedWriter and suture.Service.
type Hub struct {
	clients   map[*Client]bool
	broadcast chan Message
	mu        sync.RWMutex
	logger    *slog.Logger
}

// NewHub creates a hub. Call Serve to start delivering messages.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:   make(map[*Client]bool),
		broadcast: make(chan Message, broadcastQueue),
		logger:    logger.With("component", "stream-hub"),
	}
}

// Serve delivers broadcasts until ctx is cancelled, then disconnects every client.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			n := h.ClientCount()
			h.closeAllClients()
			h.logger.Info("stream hub stopped", "clients_closed", n)
			return ctx.Err()
		case msg := <-h.broadcast:
			h.broadcastToClients(msg)
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (h *Hub) String() string { return "stream-hub" }

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	metrics.StreamClients.Set(float64(n))
	h.logger.Info("stream client connected", "client", c.id, "user", c.user, "total_clients", n)
}

// unregister removes c. Safe to call more than once.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		metrics.StreamClients.Set(float64(n))
		h.logger.Info("stream client disconnected", "client", c.id, "total_clients", n)
	}
}

func (h *Hub) broadcastToClients(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// slow consumer
			close(c.send)
			delete(h.clients, c)
			h.logger.Warn("stream client dropped", "client", c.id)
		}
	}
	metrics.StreamClients.Set(float64(len(h.clients)))
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	metrics.StreamClients.Set(0)
}

func (h *Hub) publish(msg Message) error {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("stream queue full, message dropped", "type", msg.Type)
	}
	return nil
}

// WriteUnits implements sim.FeedWriter.
func (h *Hub) WriteUnits(units []cop.Unit) error {
	return h.publish(Message{Type: MessageTypeUnits, Data: units})
}

// WriteSpectrum implements sim.FeedWriter.
func (h *Hub) WriteSpectrum(readings []cop.SpectrumActivity) error {
	return h.publish(Message{Type: MessageTypeSpectrum, Data: readings})
}

// WriteIncident implements sim.FeedWriter.
func (h *Hub) WriteIncident(inc cop.Incident) error {
	return h.publish(Message{Type: MessageTypeIncident, Data: inc})
}

// WriteCommand implements sim.FeedWriter.
func (h *Hub) WriteCommand(cmd cop.Command) error {
	return h.publish(Message{Type: MessageTypeCommand, Data: cmd})
}

// Client is one websocket connection.
type Client struct {
	id   string
	user string
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

func newUpgrader(origins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, o := range origins {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		},
	}
}

// attach registers conn with the hub, queues the initial snapshot and
// starts the pumps.
func (h *Hub) attach(conn *websocket.Conn, user string, snapshot []Message) *Client {
	c := &Client{
		id:   uuid.NewString(),
		user: user,
		hub:  h,
		conn: conn,
		send: make(chan Message, sendBuffer+len(snapshot)),
	}
	for _, m := range snapshot {
		c.send <- m
	}
	h.register(c)
	go c.writePump()
	go c.readPump()
	return c
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("unexpected websocket close", "client", c.id, "err", err)
			}
			return
		}
		if msg.Type == MessageTypePing {
			c.trySend(Message{Type: MessageTypePong})
		}
	}
}

// trySend queues msg unless the client is gone or its buffer is full.
func (c *Client) trySend(msg Message) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.hub.logger.Debug("websocket write failed", "client", c.id, "err", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
