package ws

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/adityaraj-09/faff-assign/internal/metrics"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	sendBuffer   = 64
	pingInterval = 25 * time.Second
	writeTimeout = 10 * time.Second
)

// Broadcaster mengirim event ke semua anggota room.
// Broadcast ke room kosong bukan error.
type Broadcaster interface {
	Broadcast(ctx context.Context, room, eventType string, data interface{}) error
	BroadcastExcept(ctx context.Context, room, eventType string, data interface{}, exceptClientID string) error
}

type Client struct {
	ID       string
	UserID   uint
	UserName string

	conn   *websocket.Conn
	send   chan Event
	rooms  map[string]struct{} // dijaga Hub.mu
	logger *slog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func newClient(userID uint, userName string, conn *websocket.Conn, logger *slog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ID:       uuid.NewString(),
		UserID:   userID,
		UserName: userName,
		conn:     conn,
		send:     make(chan Event, sendBuffer),
		rooms:    map[string]struct{}{},
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// enqueue tidak pernah blocking: kalau buffer penuh event di-drop untuk client ini saja.
func (c *Client) enqueue(ev Event) bool {
	select {
	case c.send <- ev:
		return true
	default:
		metrics.BroadcastDropped.Inc()
		c.logger.Warn("ws send buffer full, event dropped",
			slog.String("client_id", c.ID),
			slog.Uint64("user_id", uint64(c.UserID)),
			slog.String("type", ev.Type),
		)
		return false
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.send:
			writeCtx, cancel := context.WithTimeout(c.ctx, writeTimeout)
			err := wsjson.Write(writeCtx, c.conn, ev)
			cancel()
			if err != nil {
				c.logger.Debug("ws write failed", slog.String("client_id", c.ID), slog.String("error", err.Error()))
				c.close(websocket.StatusInternalError, "write failed")
				return
			}
		}
	}
}

func (c *Client) keepAliveLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
			_ = c.conn.Ping(pingCtx)
			cancel()
		}
	}
}

func (c *Client) close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			_ = c.conn.Close(code, reason)
		}
	})
}

// Hub adalah registry room milik satu proses. Semua mutasi dan fan-out lewat satu mutex,
// jadi urutan event dalam satu room sama untuk semua anggotanya.
type Hub struct {
	mu      sync.Mutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:   map[string]map[*Client]struct{}{},
		clients: map[*Client]struct{}{},
		logger:  logger,
	}
}

// Register membuat client untuk koneksi yang sudah terautentikasi dan
// memasukkannya ke room personal user:<id>.
func (h *Hub) Register(conn *websocket.Conn, userID uint, userName string) *Client {
	c := newClient(userID, userName, conn, h.logger)
	h.attach(c)

	go c.writeLoop()
	go c.keepAliveLoop()

	return c
}

func (h *Hub) attach(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.joinLocked(c, UserRoom(c.UserID))
	h.mu.Unlock()
	metrics.WSConnections.Inc()
}

// Unregister idempotent.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		for room := range c.rooms {
			h.leaveLocked(c, room)
		}
		delete(h.clients, c)
	}
	h.mu.Unlock()

	if ok {
		metrics.WSConnections.Dec()
	}
	c.close(websocket.StatusNormalClosure, "bye")
}

// Join memasukkan client ke room. Untuk room task, semua room task lain yang
// sedang dipegang client ditinggalkan dulu (maksimal satu room task per koneksi).
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	if strings.HasPrefix(room, taskRoomPrefix) {
		for r := range c.rooms {
			if r != room && strings.HasPrefix(r, taskRoomPrefix) {
				h.leaveLocked(c, r)
			}
		}
	}
	h.joinLocked(c, room)
}

func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	h.leaveLocked(c, room)
	h.mu.Unlock()
}

func (h *Hub) joinLocked(c *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = map[*Client]struct{}{}
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leaveLocked(c *Client, room string) {
	delete(c.rooms, room)
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// CurrentTask mengembalikan room task yang sedang diikuti client ("" kalau belum ada).
func (h *Hub) CurrentTask(c *Client) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	for r := range c.rooms {
		if strings.HasPrefix(r, taskRoomPrefix) {
			return r
		}
	}
	return ""
}

func (h *Hub) RoomsOf(c *Client) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(c.rooms))
	for r := range c.rooms {
		out = append(out, r)
	}
	return out
}

func (h *Hub) MemberCount(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}

func (h *Hub) Broadcast(ctx context.Context, room, eventType string, data interface{}) error {
	return h.BroadcastExcept(ctx, room, eventType, data, "")
}

func (h *Hub) BroadcastExcept(_ context.Context, room, eventType string, data interface{}, exceptClientID string) error {
	metrics.BroadcastEvents.WithLabelValues(eventType).Inc()
	h.deliver(room, Event{Type: eventType, Data: data}, exceptClientID)
	return nil
}

func (h *Hub) deliver(room string, ev Event, exceptClientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.rooms[room] {
		if exceptClientID != "" && c.ID == exceptClientID {
			continue
		}
		c.enqueue(ev)
	}
}

// Close memutus semua koneksi (dipakai saat shutdown).
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.Unregister(c)
	}
}
