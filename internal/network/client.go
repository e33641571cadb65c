package network

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/monyverse/cyberpunk/internal/platform/metrics"
	"github.com/monyverse/cyberpunk/internal/protocol"
	"github.com/monyverse/cyberpunk/internal/world"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard is served from another origin during development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one websocket subscriber.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
}

// NewClient creates a client with its own command limiter.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	limit := rate.Inf
	if hub.opts.CommandInterval > 0 {
		limit = rate.Every(hub.opts.CommandInterval)
	}
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, hub.opts.ClientSendBuffer),
		limiter: rate.NewLimiter(limit, 1),
	}
}

// ServeWS upgrades the request and starts the client pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.Full() {
		http.Error(w, "too many clients", http.StatusServiceUnavailable)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("websocket upgrade failed: %v", err)
		metrics.Get().RecordWSError()
		return
	}
	c := NewClient(h, conn)
	if !h.join(c) {
		conn.Close()
		return
	}
	go c.WritePump()
	go c.ReadPump()
}

// ReadPump reads commands until the connection drops.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warnf("websocket read: %v", err)
				metrics.Get().RecordWSError()
			}
			break
		}
		metrics.Get().RecordWSMessage(true)
		c.handleCommand(message)
	}
}

func (c *Client) handleCommand(message []byte) {
	if !c.limiter.Allow() {
		c.reply(protocol.ErrRateLimit, "too many commands")
		return
	}
	if err := protocol.Validate(protocol.SchemaWSCommand, message); err != nil {
		c.reply(protocol.ErrBadRequest, err.Error())
		return
	}
	var cmd protocol.Command
	if err := json.Unmarshal(message, &cmd); err != nil {
		c.reply(protocol.ErrBadRequest, err.Error())
		return
	}
	if c.hub.exec == nil {
		return
	}
	if err := c.hub.exec.Execute(cmd); err != nil {
		c.reply(commandCode(err), err.Error())
	}
}

func commandCode(err error) string {
	switch {
	case errors.Is(err, world.ErrAgentNotFound), errors.Is(err, world.ErrMissionNotFound),
		errors.Is(err, world.ErrDroneNotFound):
		return protocol.ErrNotFound
	case errors.Is(err, world.ErrDroneBusy), errors.Is(err, world.ErrMissionNotPending):
		return protocol.ErrConflict
	default:
		return protocol.ErrBadRequest
	}
}

// reply queues an error frame for this client only. A full queue drops it.
func (c *Client) reply(code, message string) {
	b, err := json.Marshal(protocol.ErrorMsg{Type: protocol.TypeError, Code: code, Message: message})
	if err != nil {
		return
	}
	// The hub closes send under mu after removing the client.
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}

// WritePump pumps messages from the hub to the websocket connection.
// Each frame carries exactly one JSON message.
func (c *Client) WritePump() {
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
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
