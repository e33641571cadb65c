package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/monyverse/cyberpunk/internal/config"
	"github.com/monyverse/cyberpunk/internal/domain/agent"
	"github.com/monyverse/cyberpunk/internal/domain/drone"
	"github.com/monyverse/cyberpunk/internal/domain/mission"
	"github.com/monyverse/cyberpunk/internal/events"
	"github.com/monyverse/cyberpunk/internal/platform/logger"
	"github.com/monyverse/cyberpunk/internal/platform/metrics"
	"github.com/monyverse/cyberpunk/internal/world"
)

// pollInterval is how often the engine drains new events from the log.
const pollInterval = 100 * time.Millisecond

// Option configures an Engine.
type Option func(*Engine)

// WithChainRelay forwards on-chain agent actions to relay.
func WithChainRelay(relay ChainRelay) Option {
	return func(e *Engine) { e.agentSystem.relay = relay }
}

// Engine is the central orchestrator that wires the event log to the simulation rules.
type Engine struct {
	eventLog *events.EventLog
	logger   *logger.Logger
	world    *world.World
	ticker   *Ticker

	// Sub-systems, run in this order on every tick
	flightSystem    *FlightSystem
	chargingSystem  *ChargingSystem
	collisionSystem *CollisionSystem
	agentSystem     *AgentSystem

	mu        sync.Mutex // serialises dispatch between the poll loop and TickOnce
	lastSeq   uint64
	listeners []func(TickPayload)
}

// NewEngine initializes the simulation systems over w.
func NewEngine(eventLog *events.EventLog, w *world.World, cfg config.Simulation, log *logger.Logger, opts ...Option) *Engine {
	log = log.With("engine")
	e := &Engine{
		eventLog: eventLog,
		logger:   log,
		world:    w,
		ticker:   NewTicker(eventLog, log, time.Duration(cfg.TickMs)*time.Millisecond, cfg.AgentEveryTicks),

		flightSystem:    NewFlightSystem(eventLog, w, cfg, log),
		chargingSystem:  NewChargingSystem(eventLog, w, cfg, log),
		collisionSystem: NewCollisionSystem(eventLog, w, cfg, log),
		agentSystem:     NewAgentSystem(eventLog, w, cfg, log),

		lastSeq: eventLog.LastSeq(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OnTick registers fn to run after every dispatched tick. Register before Start.
func (e *Engine) OnTick(fn func(TickPayload)) {
	e.listeners = append(e.listeners, fn)
}

// Start spawns the Ticker and the event processor loop.
func (e *Engine) Start(ctx context.Context) {
	e.logger.Info("Starting simulation engine...")

	go e.ticker.Start(ctx)
	go e.processEvents(ctx)
}

// Resume starts ticking. SIM_STATE_CHANGED is emitted only on a real change.
func (e *Engine) Resume() bool {
	if !e.ticker.Resume() {
		return false
	}
	e.emitState(true)
	return true
}

// Pause stops ticking. In-flight work of the current tick completes.
func (e *Engine) Pause() bool {
	if !e.ticker.Pause() {
		return false
	}
	e.emitState(false)
	return true
}

// Running reports whether the simulation is ticking.
func (e *Engine) Running() bool {
	return e.ticker.Running()
}

// CurrentTick returns the last emitted tick number.
func (e *Engine) CurrentTick() int64 {
	return e.ticker.CurrentTick()
}

// RestoreClock continues numbering after a restart.
func (e *Engine) RestoreClock(tick int64) {
	e.ticker.SetTick(tick)
	e.logger.Info(fmt.Sprintf("Clock restored to tick %d", tick))
}

// TickOnce emits and fully processes a single tick, whatever the running flag says.
func (e *Engine) TickOnce() TickPayload {
	event := e.ticker.Tick()
	e.drain()
	payload, _ := event.Payload.(TickPayload)
	return payload
}

// World exposes the state the engine mutates.
func (e *Engine) World() *world.World {
	return e.world
}

// GetEventLog exposes the event log for handlers that inject operator actions.
func (e *Engine) GetEventLog() *events.EventLog {
	return e.eventLog
}

func (e *Engine) emitState(running bool) {
	e.eventLog.Append(events.SimEvent{
		Type:    events.EventTypeSimStateChanged,
		ActorID: events.ActorSystem,
		Payload: events.SimStatePayload{Running: running, Tick: e.ticker.CurrentTick()},
		Tick:    e.ticker.CurrentTick(),
	})
	e.logger.Event(string(events.EventTypeSimStateChanged), events.ActorSystem, fmt.Sprintf("running=%t", running))
}

// processEvents polls the EventLog and dispatches new items to sub-systems.
func (e *Engine) processEvents(ctx context.Context) {
	poll := time.NewTicker(pollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("EventProcessor stopped.")
			return
		case <-poll.C:
			e.drain()
		}
	}
}

func (e *Engine) drain() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, event := range e.eventLog.Since(e.lastSeq) {
		e.lastSeq = event.Seq
		e.dispatch(event)
	}
}

// dispatch routes an event to the sub-systems interested in its type.
func (e *Engine) dispatch(event events.SimEvent) {
	switch event.Type {
	case events.EventTypeSimTick:
		payload, ok := event.Payload.(TickPayload)
		if !ok {
			e.logger.Warn(fmt.Sprintf("SIM_TICK %s carried %T, skipping", event.ID, event.Payload))
			return
		}
		start := time.Now()
		e.flightSystem.OnTimeTick(payload)
		e.chargingSystem.OnTimeTick(payload)
		e.collisionSystem.OnTimeTick(payload)
		e.agentSystem.OnTimeTick(payload)
		metrics.Get().RecordTick(time.Since(start))
		e.publishGauges()

		for _, fn := range e.listeners {
			fn(payload)
		}
	}
}

func (e *Engine) publishGauges() {
	var g metrics.FleetGauges
	e.world.View(func(s *world.State) {
		g.Drones = len(s.Drones)
		for _, d := range s.Drones {
			switch d.Status {
			case drone.StatusInMission:
				g.Flying++
			case drone.StatusCharging:
				g.Charging++
			}
		}
		for _, m := range s.Missions {
			switch {
			case m.IsPending():
				g.Pending++
			case m.IsFlying():
				g.Active++
			case m.Status == mission.StatusCompleted:
				g.Done++
			}
		}
		for _, a := range s.Agents {
			if a.Status != agent.StatusOffline {
				g.Online++
			}
		}
	})
	metrics.Get().SetFleet(g)
	metrics.Get().SetEventsDropped(e.eventLog.Dropped())
}
