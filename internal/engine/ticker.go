package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/monyverse/cyberpunk/internal/events"
	"github.com/monyverse/cyberpunk/internal/platform/logger"
)

// DefaultTickRate is the wall-clock period of one simulation step.
const DefaultTickRate = 1 * time.Second

// TickPayload is the data attached to each SIM_TICK event.
type TickPayload struct {
	TickNumber int64 `json:"tick_number"`
	AgentPhase bool  `json:"agent_phase"` // agents act on this tick
}

// Ticker manages the simulation heartbeat.
// It does NOT know about drones or agents - only time progression.
type Ticker struct {
	eventLog   *events.EventLog
	logger     *logger.Logger
	interval   time.Duration
	agentEvery int64
	tickNumber atomic.Int64
	running    atomic.Bool
	stopChan   chan struct{}
	stopOnce   sync.Once
}

// NewTicker creates a paused ticker.
func NewTicker(eventLog *events.EventLog, log *logger.Logger, interval time.Duration, agentEvery int) *Ticker {
	if interval <= 0 {
		interval = DefaultTickRate
	}
	if agentEvery <= 0 {
		agentEvery = 1
	}
	return &Ticker{
		eventLog:   eventLog,
		logger:     log,
		interval:   interval,
		agentEvery: int64(agentEvery),
		stopChan:   make(chan struct{}),
	}
}

// Start begins the loop. Call in a goroutine. Ticks are only emitted while running.
func (t *Ticker) Start(ctx context.Context) {
	t.logger.Info(fmt.Sprintf("Ticker started (interval %v, agents every %d ticks)", t.interval, t.agentEvery))

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("Ticker stopped by context.")
			return
		case <-t.stopChan:
			t.logger.Info("Ticker stopped manually.")
			return
		case <-ticker.C:
			if t.running.Load() {
				t.Tick()
			}
		}
	}
}

// Stop ends the loop. Safe to call more than once.
func (t *Ticker) Stop() {
	t.stopOnce.Do(func() { close(t.stopChan) })
}

// Resume sets the running flag. It reports whether the flag changed.
func (t *Ticker) Resume() bool {
	return t.running.CompareAndSwap(false, true)
}

// Pause clears the running flag. It reports whether the flag changed.
func (t *Ticker) Pause() bool {
	return t.running.CompareAndSwap(true, false)
}

// Running reports the flag.
func (t *Ticker) Running() bool {
	return t.running.Load()
}

// Tick emits one SIM_TICK regardless of the running flag.
func (t *Ticker) Tick() events.SimEvent {
	n := t.tickNumber.Add(1)
	payload := TickPayload{
		TickNumber: n,
		AgentPhase: n%t.agentEvery == 0,
	}

	event := t.eventLog.Append(events.SimEvent{
		Type:    events.EventTypeSimTick,
		ActorID: events.ActorSystem,
		Payload: payload,
		Tick:    n,
	})
	if n%60 == 0 {
		t.logger.Event(string(events.EventTypeSimTick), events.ActorSystem, fmt.Sprintf("tick %d", n))
	}
	return event
}

// CurrentTick returns the last emitted tick number.
func (t *Ticker) CurrentTick() int64 {
	return t.tickNumber.Load()
}

// SetTick restores the clock after a restart.
func (t *Ticker) SetTick(n int64) {
	t.tickNumber.Store(n)
}
