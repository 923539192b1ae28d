package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/gorilla/websocket"
)

// Topics
const (
	TopicIssues = "issues"
)

// WizardTopic is the topic carrying one wizard session's snapshots.
func WizardTopic(sessionID string) string {
	return "wizard:" + sessionID
}

// Event is the message pushed to subscribers.
type Event struct {
	Type      string      `json:"type"`
	Topic     string      `json:"topic"`
	Seq       uint64      `json:"seq"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

type broadcast struct {
	topic string
	event Event
}

// Hub manages websocket connections grouped by topic
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan broadcast
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex
	seq        uint64
}

// Client is one websocket connection subscribed to a topic
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	topic string
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan broadcast, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves register, unregister and broadcast requests until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.stop()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			log.Debugf("Websocket client subscribed to %s", client.topic)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			log.Debugf("Websocket client left %s", client.topic)

		case b := <-h.broadcast:
			h.mutex.Lock()
			h.seq++
			b.event.Seq = h.seq
			data := serialize(b.event)
			for client := range h.clients {
				if client.topic != b.topic {
					continue
				}
				select {
				case client.send <- data:
				default:
					// Slow consumer
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mutex.Unlock()
		}
	}
}

func (h *Hub) stop() {
	close(h.done)
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// Subscribe attaches an upgraded connection to a topic and starts its pumps.
func (h *Hub) Subscribe(conn *websocket.Conn, topic string) {
	client := &Client{
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, 256),
		topic: topic,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// Broadcast queues an event for every subscriber of topic. It never blocks
// the caller for long; events are dropped when the hub is saturated.
func (h *Hub) Broadcast(topic, eventType string, data interface{}) {
	b := broadcast{
		topic: topic,
		event: Event{Type: eventType, Topic: topic, Timestamp: time.Now().UTC(), Data: data},
	}
	select {
	case h.broadcast <- b:
	case <-h.done:
	case <-time.After(time.Second):
		log.Warnf("Dropping %s event for %s, hub is busy", eventType, topic)
	}
}

// ClientCount returns the number of subscribers of topic, or of all topics
// when topic is empty.
func (h *Hub) ClientCount(topic string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if topic == "" {
		return len(h.clients)
	}
	n := 0
	for c := range h.clients {
		if c.topic == topic {
			n++
		}
	}
	return n
}

func (h *Hub) LastSeq() uint64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.seq
}

func serialize(event Event) []byte {
	data, err := json.Marshal(event)
	if err != nil {
		log.Errorf("Failed to serialize %s event: %v", event.Type, err)
		return []byte("{}")
	}
	return data
}

// readPump drains the connection so that pongs and close frames are handled
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warnf("Websocket read error on %s: %v", c.topic, err)
			}
			break
		}
	}
}

// writePump pumps messages from the hub to the connection
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
