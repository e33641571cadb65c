// Package network serves the fleet over HTTP and websockets.
package network

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/monyverse/cyberpunk/internal/engine"
	"github.com/monyverse/cyberpunk/internal/events"
	"github.com/monyverse/cyberpunk/internal/platform/logger"
	"github.com/monyverse/cyberpunk/internal/platform/metrics"
	"github.com/monyverse/cyberpunk/internal/protocol"
	"github.com/monyverse/cyberpunk/internal/world"
)

// CommandExecutor runs websocket commands against the simulation.
type CommandExecutor interface {
	Execute(cmd protocol.Command) error
}

// HubOptions sizes the hub. Zero values pick the defaults.
type HubOptions struct {
	BroadcastBuffer  int
	ClientSendBuffer int
	MaxClients       int
	FleetFrameEvery  int // ticks between fleet frames
	CommandInterval  time.Duration
	PollInterval     time.Duration
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex
	logger     *logger.Logger
	opts       HubOptions
	exec       CommandExecutor
}

// NewHub initializes a new WebSocket Hub.
func NewHub(log *logger.Logger, exec CommandExecutor, opts HubOptions) *Hub {
	if opts.BroadcastBuffer <= 0 {
		opts.BroadcastBuffer = 256
	}
	if opts.ClientSendBuffer <= 0 {
		opts.ClientSendBuffer = 64
	}
	if opts.FleetFrameEvery <= 0 {
		opts.FleetFrameEvery = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 200 * time.Millisecond
	}
	return &Hub{
		broadcast:  make(chan []byte, opts.BroadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		logger:     log,
		opts:       opts,
		exec:       exec,
	}
}

// Run starts the Hub's main loop to handle client connections and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("WebSocket Hub shutting down.")
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.Get().RecordWSConnection(1)
			h.logger.Info("New WebSocket client connected")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.Get().RecordWSConnection(-1)
				h.logger.Info("WebSocket client disconnected")
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
					metrics.Get().RecordWSMessage(false)
				default:
					// Slow consumer: drop it rather than stall everyone.
					close(client.send)
					delete(h.clients, client)
					metrics.Get().RecordWSConnection(-1)
					metrics.Get().RecordWSError()
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Full reports whether MaxClients is reached.
func (h *Hub) Full() bool {
	return h.opts.MaxClients > 0 && h.ClientCount() >= h.opts.MaxClients
}

// Broadcast serializes v and queues it for every client.
func (h *Hub) Broadcast(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Errorf("Failed to serialize websocket frame: %v", err)
		return
	}
	select {
	case h.broadcast <- payload:
	case <-h.done:
	}
}

// BroadcastEvent wraps a log event in an event envelope.
func (h *Hub) BroadcastEvent(event events.SimEvent) {
	h.Broadcast(protocol.EventMsg{Type: protocol.TypeEvent, Event: event})
}

// BroadcastFleet sends the full drone list.
func (h *Hub) BroadcastFleet(w *world.World, tick int64) {
	h.Broadcast(protocol.FleetMsg{Type: protocol.TypeFleet, Tick: tick, Drones: w.Drones()})
}

// StartEventPoller spawns a goroutine that polls the EventLog and pushes new events to the Hub.
// A fleet frame follows every FleetFrameEvery-th SIM_TICK.
func (h *Hub) StartEventPoller(ctx context.Context, eventLog *events.EventLog, w *world.World) {
	go func() {
		pollInterval := time.NewTicker(h.opts.PollInterval)
		defer pollInterval.Stop()

		lastSeq := eventLog.LastSeq()

		for {
			select {
			case <-ctx.Done():
				return
			case <-pollInterval.C:
				for _, event := range eventLog.Since(lastSeq) {
					lastSeq = event.Seq
					h.BroadcastEvent(event)
					if event.Type != events.EventTypeSimTick {
						continue
					}
					if tp, ok := event.Payload.(engine.TickPayload); ok && tp.TickNumber%int64(h.opts.FleetFrameEvery) == 0 {
						h.BroadcastFleet(w, tp.TickNumber)
					}
				}
			}
		}
	}()
}
