// Package monitoring pushes live form state to browsers over websockets and
// counts submit outcomes.
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// MessageType 消息类型
type MessageType string

const StateUpdate MessageType = "state"

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 16
)

// Message 推送消息结构
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	ID        string          `json:"id"`
}

// client 一个websocket连接, 订阅单个topic
type client struct {
	conn  *websocket.Conn
	send  chan []byte
	id    string
	topic string
}

type envelope struct {
	topic   string
	payload []byte
}

// Hub fans messages out to the websocket clients of a topic. A topic is a
// form session id.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]map[*client]struct{}
	broadcast  chan envelope
	register   chan *client
	unregister chan *client
	done       chan struct{}
	upgrader   websocket.Upgrader
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[string]map[*client]struct{}),
		broadcast:  make(chan envelope, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

// Run 事件循环, ctx 结束时关闭所有连接
func (h *Hub) Run(ctx context.Context) {
	defer h.logger.Debug("websocket hub stopped")
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			if h.clients[c.topic] == nil {
				h.clients[c.topic] = make(map[*client]struct{})
			}
			h.clients[c.topic][c] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("websocket client connected", zap.String("client", c.id), zap.String("topic", c.topic))

		case c := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(c)
			h.mu.Unlock()
			h.logger.Debug("websocket client disconnected", zap.String("client", c.id), zap.String("topic", c.topic))

		case env := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients[env.topic] {
				select {
				case c.send <- env.payload:
				default:
					// too slow, drop it
					h.removeLocked(c)
				}
			}
			h.mu.Unlock()

		case <-ctx.Done():
			h.mu.Lock()
			for _, set := range h.clients {
				for c := range set {
					h.removeLocked(c)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) removeLocked(c *client) {
	set, ok := h.clients[c.topic]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.topic)
	}
}

// Serve upgrades the request and subscribes the connection to topic.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, topic string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade: %w", err)
	}

	c := &client{
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		id:    uuid.NewString(),
		topic: topic,
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return fmt.Errorf("websocket hub stopped")
	}

	go c.writePump(h.logger)
	go c.readPump(h)
	return nil
}

// Publish sends v to every client subscribed to topic. It never blocks; when
// the queue is full the message is dropped.
func (h *Hub) Publish(topic string, msgType MessageType, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msgType, err)
	}
	payload, err := json.Marshal(Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
		ID:        uuid.NewString(),
	})
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- envelope{topic: topic, payload: payload}:
	default:
		h.logger.Warn("websocket broadcast queue is full, dropping message", zap.String("topic", topic))
	}
	return nil
}

// Clients returns the number of connections subscribed to topic.
func (h *Hub) Clients(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// writePump 写入泵
func (c *client) writePump(logger *zap.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Debug("websocket write failed", zap.String("client", c.id), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取泵. Clients only listen; anything they send is discarded.
func (c *client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", zap.String("client", c.id), zap.Error(err))
			}
			return
		}
	}
}
