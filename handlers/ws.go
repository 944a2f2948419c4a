// handlers/ws.go - Room event feed over WebSocket
package handlers

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"trivia/middleware"
	"trivia/services"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 64
)

type client struct {
	userID uint
	send   chan []byte
}

// Hub fans room events out to connected WebSocket clients. It implements
// services.Publisher.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*client]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:  make(map[string]map[*client]struct{}),
		logger: logger,
	}
}

func roomKey(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (h *Hub) register(code string, userID uint) *client {
	c := &client{userID: userID, send: make(chan []byte, sendBufferSize)}

	h.mu.Lock()
	defer h.mu.Unlock()
	key := roomKey(code)
	if h.rooms[key] == nil {
		h.rooms[key] = make(map[*client]struct{})
	}
	h.rooms[key][c] = struct{}{}
	return c
}

// unregister removes c and closes its send channel. Safe to call twice.
func (h *Hub) unregister(code string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := roomKey(code)
	clients, ok := h.rooms[key]
	if !ok {
		return
	}
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.rooms, key)
	}
}

// Publish queues ev for every client in the room. A client whose buffer is
// full misses the event.
func (h *Hub) Publish(roomCode string, ev services.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("ws_event_encode_failed", slog.String("type", ev.Type), slog.Any("error", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[roomKey(roomCode)] {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("ws_send_buffer_full",
				slog.String("room_code", roomKey(roomCode)),
				slog.Uint64("user_id", uint64(c.userID)),
				slog.String("type", ev.Type),
			)
		}
	}
}

// Connections returns the number of clients attached to a room.
func (h *Hub) Connections(roomCode string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomKey(roomCode)])
}

func upgradeOnly(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.NewError(fiber.StatusUpgradeRequired, "WebSocket upgrade required")
}

func (h *Handlers) requireRoom(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return err
	}
	if err := h.Rooms.CanWatch(c.UserContext(), c.Params("code"), userID); err != nil {
		return err
	}
	return c.Next()
}

// RoomFeed streams room events to the client. Incoming messages are ignored
// apart from keeping the connection alive.
func (h *Handlers) RoomFeed() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		code := roomKey(conn.Params("code"))
		userID, _ := conn.Locals("userId").(uint)
		log := h.logger().With(slog.String("room_code", code), slog.Uint64("user_id", uint64(userID)))

		c := h.Hub.register(code, userID)
		log.Info("ws_connected")

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.writePump(conn, c, log)
		}()

		h.readPump(conn, log)

		h.Hub.unregister(code, c)
		wg.Wait()
		log.Info("ws_disconnected")
	})
}

func (h *Handlers) readPump(conn *websocket.Conn, log *slog.Logger) {
	_ = conn.SetReadDeadline(time.Now().Add(h.pingTimeout()))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pingTimeout()))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("ws_read_failed", slog.Any("error", err))
			}
			return
		}
	}
}

// writePump is the only writer on conn.
func (h *Handlers) writePump(conn *websocket.Conn, c *client, log *slog.Logger) {
	ticker := time.NewTicker(h.pingInterval())
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Warn("ws_write_failed", slog.Any("error", err))
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func (h *Handlers) pingInterval() time.Duration {
	if h.PingInterval <= 0 {
		return 25 * time.Second
	}
	return h.PingInterval
}

func (h *Handlers) pingTimeout() time.Duration {
	if h.PingTimeout <= 0 {
		return 2 * time.Minute
	}
	return h.PingTimeout
}
