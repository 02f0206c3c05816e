package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/penne-app/penne/internal/logger"
	"github.com/penne-app/penne/internal/models"
)

// Message types sent to clients
const (
	MsgDishVotes   = "dish_votes"
	MsgLeaderboard = "leaderboard"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // mobile clients send no Origin
	},
}

// LeaderboardSource provides the snapshot sent to newly connected clients
type LeaderboardSource interface {
	Leaderboard(ctx context.Context) ([]models.AggregatedRanking, error)
}

// Relay forwards locally originated messages to other instances
type Relay interface {
	Publish(ctx context.Context, msg models.WSMessage) error
}

// Hub maintains the set of active clients and broadcasts messages to the clients
type Hub struct {
	log         logger.Logger
	clients     map[*Client]bool
	broadcast   chan models.WSMessage
	outbound    chan models.WSMessage
	register    chan *Client
	unregister  chan *Client
	done        chan struct{}
	stopOnce    sync.Once
	mutex       sync.RWMutex
	leaderboard LeaderboardSource
	relay       Relay
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan models.WSMessage
}

// New creates a new Hub instance. leaderboard may be nil.
func New(log logger.Logger, leaderboard LeaderboardSource) *Hub {
	return &Hub{
		log:         log,
		clients:     make(map[*Client]bool),
		broadcast:   make(chan models.WSMessage, sendBuffer),
		outbound:    make(chan models.WSMessage, sendBuffer),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		done:        make(chan struct{}),
		leaderboard: leaderboard,
	}
}

// SetRelay makes the hub publish every locally originated broadcast
func (h *Hub) SetRelay(r Relay) {
	h.mutex.Lock()
	h.relay = r
	h.mutex.Unlock()
}

// Start begins the hub's main loop and the relay publisher in goroutines
func (h *Hub) Start() {
	go h.run()
	go h.publish()
}

// Stop ends the main loop and closes every client connection
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// run handles client registration/unregistration and message broadcasting
func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			h.mutex.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug("Client connected", "total_clients", total)

			if h.leaderboard != nil {
				go h.sendSnapshot(client)
			}

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug("Client disconnected", "total_clients", total)

		case message := <-h.broadcast:
			h.mutex.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client's send channel is full, unregister
					go func(c *Client) {
						select {
						case h.unregister <- c:
						case <-h.done:
						}
					}(client)
				}
			}
			h.mutex.RUnlock()
		}
	}
}

// publish hands queued messages to the relay, one at a time in order
func (h *Hub) publish() {
	for {
		select {
		case <-h.done:
			return
		case msg := <-h.outbound:
			h.mutex.RLock()
			relay := h.relay
			h.mutex.RUnlock()
			if relay == nil {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			if err := relay.Publish(ctx, msg); err != nil {
				h.log.Warn("Relay publish failed", "type", msg.Type, "error", err)
			}
			cancel()
		}
	}
}

// sendSnapshot sends the current leaderboard to a newly registered client
func (h *Hub) sendSnapshot(client *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	board, err := h.leaderboard.Leaderboard(ctx)
	if err != nil {
		h.log.Warn("Leaderboard snapshot failed", "error", err)
		return
	}
	msg := models.WSMessage{Type: MsgLeaderboard, Payload: board}

	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if !h.clients[client] {
		return
	}
	select {
	case client.send <- msg:
	default:
	}
}

// Deliver fans a message out to this instance's clients only. Messages
// received from other instances come in here.
func (h *Hub) Deliver(msg models.WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("Broadcast queue full, dropping message", "type", msg.Type)
	}
}

// BroadcastMessage sends a message to all connected clients, here and on
// other instances when a relay is set. It never blocks.
func (h *Hub) BroadcastMessage(msgType string, payload interface{}) {
	msg := models.WSMessage{Type: msgType, Payload: payload}
	h.Deliver(msg)

	h.mutex.RLock()
	relay := h.relay
	h.mutex.RUnlock()
	if relay == nil {
		return
	}
	select {
	case h.outbound <- msg:
	default:
		h.log.Warn("Relay queue full, dropping message", "type", msgType)
	}
}

// BroadcastDishVotes sends a dish's counters. It is registered as the vote
// tracker's change hook.
func (h *Hub) BroadcastDishVotes(c models.DishVoteCounter) {
	h.BroadcastMessage(MsgDishVotes, c)
}

// BroadcastLeaderboard implements services.Broadcaster
func (h *Hub) BroadcastLeaderboard(rankings []models.AggregatedRanking) {
	h.BroadcastMessage(MsgLeaderboard, rankings)
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("WebSocket error", "error", err)
			}
			break
		}

		// Clients only listen; anything they send is logged and dropped.
		var msg models.WSMessage
		if err := json.Unmarshal(message, &msg); err == nil {
			c.hub.log.Debug("Received message", "type", msg.Type)
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}

			msgBytes, _ := json.Marshal(message)
			w.Write(msgBytes)

			if err := w.Close(); err != nil {
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

// ServeWs handles websocket requests from clients
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("WebSocket upgrade error", "error", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan models.WSMessage, sendBuffer),
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	// Allow collection of memory referenced by the caller by doing all work in new goroutines
	go client.writePump()
	go client.readPump()
}
