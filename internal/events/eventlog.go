// Package events provides the event sourcing log for the simulation.
// Every state change in the world is recorded here before anyone else sees it.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a simulation event.
type EventType string

const (
	EventTypeSimTick         EventType = "SIM_TICK"
	EventTypeSimStateChanged EventType = "SIM_STATE_CHANGED"

	EventTypeDroneRegistered EventType = "DRONE_REGISTERED"
	EventTypeDroneReturning  EventType = "DRONE_RETURNING"
	EventTypeDroneCharged    EventType = "DRONE_CHARGED"
	EventTypeCollisionAvoid  EventType = "COLLISION_AVOIDED"

	EventTypeMissionCreated   EventType = "MISSION_CREATED"
	EventTypeMissionUpdated   EventType = "MISSION_UPDATED"
	EventTypeMissionAssigned  EventType = "MISSION_ASSIGNED"
	EventTypeMissionCompleted EventType = "MISSION_COMPLETED"
	EventTypeMissionFailed    EventType = "MISSION_FAILED"

	EventTypeAgentCreated     EventType = "AGENT_CREATED"
	EventTypeAgentUpdated     EventType = "AGENT_UPDATED"
	EventTypeAgentRemoved     EventType = "AGENT_REMOVED"
	EventTypeAgentInteraction EventType = "AGENT_INTERACTION"

	EventTypeProofSealed  EventType = "PROOF_SEALED"
	EventTypeNotification EventType = "NOTIFICATION"
	EventTypeDemoSeeded   EventType = "DEMO_SEEDED"
	EventTypeDemoReset    EventType = "DEMO_RESET"
	EventTypeChainTx      EventType = "CHAIN_TX"
)

// ActorSystem is the actor id used for events emitted by the simulation itself.
const ActorSystem = "SYSTEM"

// DefaultRetain is how many events the in-memory log keeps.
const DefaultRetain = 10000

// Severity of a notification.
const (
	SeverityInfo    = "info"
	SeveritySuccess = "success"
	SeverityError   = "error"
)

// NotificationPayload is the body of a NOTIFICATION event.
type NotificationPayload struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// SimEvent represents an immutable record of something that happened in the world.
type SimEvent struct {
	ID        string      `json:"id"`
	Seq       uint64      `json:"seq"`
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	ActorID   string      `json:"actor_id"`            // Who performed the action
	TargetID  string      `json:"target_id,omitempty"` // Who was affected (optional)
	Payload   interface{} `json:"payload"`             // Event-specific data
	Tick      int64       `json:"tick"`
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event SimEvent) error
}

// EventLog is the in-memory append-only log of simulation events.
// Only the newest retain events are held; Seq keeps growing across drops.
type EventLog struct {
	mu      sync.RWMutex
	events  []SimEvent
	nextSeq uint64
	retain  int

	persister EventPersister
	persistCh chan SimEvent
	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Int64
	onPersist func(latency time.Duration, err error)
}

// Option tunes an EventLog.
type Option func(*EventLog)

// WithRetain bounds the number of events kept in memory.
func WithRetain(n int) Option {
	return func(el *EventLog) {
		if n > 0 {
			el.retain = n
		}
	}
}

// WithBuffer sizes the write-through queue.
func WithBuffer(n int) Option {
	return func(el *EventLog) {
		if n > 0 {
			el.persistCh = make(chan SimEvent, n)
		}
	}
}

// WithPersistHook is called after every persister write.
func WithPersistHook(fn func(latency time.Duration, err error)) Option {
	return func(el *EventLog) {
		el.onPersist = fn
	}
}

// NewEventLog creates a new event log with an optional persister.
func NewEventLog(persister EventPersister, opts ...Option) *EventLog {
	el := &EventLog{
		events:    make([]SimEvent, 0, 256),
		nextSeq:   1,
		retain:    DefaultRetain,
		persister: persister,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(el)
	}
	if persister == nil {
		close(el.done)
		return el
	}
	if el.persistCh == nil {
		el.persistCh = make(chan SimEvent, 1024)
	}
	go el.writeLoop(el.persistCh)
	return el
}

// Append adds a new event to the log and returns it with Seq, ID and Timestamp filled in.
// Events are immutable once appended.
func (el *EventLog) Append(event SimEvent) SimEvent {
	if event.ID == "" {
		event.ID = GenerateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	el.mu.Lock()
	event.Seq = el.nextSeq
	el.nextSeq++
	el.events = append(el.events, event)
	if len(el.events) > el.retain {
		// Drop the oldest quarter at once so trimming is amortised.
		cut := len(el.events) - el.retain + el.retain/4
		el.events = append(el.events[:0:0], el.events[cut:]...)
	}
	if el.persistCh != nil {
		select {
		case el.persistCh <- event:
		default:
			el.dropped.Add(1)
		}
	}
	el.mu.Unlock()
	return event
}

// Since returns every retained event with Seq greater than after, oldest first.
func (el *EventLog) Since(after uint64) []SimEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	if len(el.events) == 0 {
		return nil
	}
	first := el.events[0].Seq
	idx := 0
	if after >= first {
		idx = int(after - first + 1)
	}
	if idx >= len(el.events) {
		return nil
	}
	out := make([]SimEvent, len(el.events)-idx)
	copy(out, el.events[idx:])
	return out
}

// LastSeq is the Seq of the newest event, or zero for an empty log.
func (el *EventLog) LastSeq() uint64 {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return el.nextSeq - 1
}

// GetByActor returns all retained events performed by a specific actor.
func (el *EventLog) GetByActor(actorID string) []SimEvent {
	return el.filter(func(e SimEvent) bool { return e.ActorID == actorID })
}

// GetByType returns all retained events of one type.
func (el *EventLog) GetByType(t EventType) []SimEvent {
	return el.filter(func(e SimEvent) bool { return e.Type == t })
}

// Replay returns a copy of the retained history for state inspection.
func (el *EventLog) Replay() []SimEvent {
	return el.Since(0)
}

// Dropped counts events that could not be queued for persistence.
func (el *EventLog) Dropped() int64 {
	return el.dropped.Load()
}

// Close stops accepting persistence work and waits for the queue to drain.
func (el *EventLog) Close() {
	el.closeOnce.Do(func() {
		el.mu.Lock()
		if el.persistCh != nil {
			close(el.persistCh)
			el.persistCh = nil
		}
		el.mu.Unlock()
	})
	<-el.done
}

func (el *EventLog) filter(keep func(SimEvent) bool) []SimEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []SimEvent
	for _, e := range el.events {
		if keep(e) {
			result = append(result, e)
		}
	}
	return result
}

func (el *EventLog) writeLoop(queue <-chan SimEvent) {
	defer close(el.done)
	for e := range queue {
		start := time.Now()
		err := el.persister.Append(e)
		if el.onPersist != nil {
			el.onPersist(time.Since(start), err)
		}
	}
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return uuid.NewString()
}

// Notify builds a NOTIFICATION event.
func Notify(actorID, message, severity string, tick int64) SimEvent {
	return SimEvent{
		Type:    EventTypeNotification,
		ActorID: actorID,
		Payload: NotificationPayload{Message: message, Severity: severity},
		Tick:    tick,
	}
}
