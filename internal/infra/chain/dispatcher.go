package chain

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/monyverse/cyberpunk/internal/events"
	"github.com/monyverse/cyberpunk/internal/platform/logger"
	"github.com/monyverse/cyberpunk/internal/platform/metrics"
)

// Kinds of relayed actions.
const (
	KindAssign   = "assign"
	KindInteract = "interact"
)

type job struct {
	kind    string
	agentID string
	ref     string // mission id or target agent id
	address string // drone or target address
	message string
	tick    int64
}

// Dispatcher feeds a Client from a bounded queue on a single worker.
// Submit never blocks; outcomes come back as CHAIN_TX or error NOTIFICATION events.
type Dispatcher struct {
	client   Client
	eventLog *events.EventLog
	logger   *logger.Logger
	limiter  *rate.Limiter
	timeout  time.Duration
	resolve  func(agentID string) string
	queue    chan job
	dropped  atomic.Int64
}

// NewDispatcher builds a dispatcher. perSecond <= 0 disables throttling.
// resolve maps an agent id to its on-chain address; nil uses the id itself.
func NewDispatcher(client Client, eventLog *events.EventLog, log *logger.Logger, perSecond float64, queueSize int, timeout time.Duration, resolve func(string) string) *Dispatcher {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	if resolve == nil {
		resolve = func(id string) string { return id }
	}
	return &Dispatcher{
		client:   client,
		eventLog: eventLog,
		logger:   log.With("chain"),
		limiter:  rate.NewLimiter(limit, 1),
		timeout:  timeout,
		resolve:  resolve,
		queue:    make(chan job, queueSize),
	}
}

// SubmitAssignment queues an assignMission call.
func (d *Dispatcher) SubmitAssignment(agentID, droneID, missionID string, tick int64) {
	d.enqueue(job{kind: KindAssign, agentID: agentID, ref: missionID, address: droneID, tick: tick})
}

// SubmitInteraction queues an interact call.
func (d *Dispatcher) SubmitInteraction(agentID, targetID, message string, tick int64) {
	d.enqueue(job{kind: KindInteract, agentID: agentID, ref: targetID, address: d.resolve(targetID), message: message, tick: tick})
}

// Dropped is how many jobs were rejected because the queue was full.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

func (d *Dispatcher) enqueue(j job) {
	select {
	case d.queue <- j:
	default:
		d.dropped.Add(1)
		d.eventLog.Append(events.Notify(j.agentID, fmt.Sprintf("chain %s for %s skipped: relay queue full", j.kind, j.ref), events.SeverityError, j.tick))
	}
}

// Run processes the queue until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("Chain dispatcher started via " + d.client.Name())
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Chain dispatcher stopped.")
			return
		case j := <-d.queue:
			if err := d.limiter.Wait(ctx); err != nil {
				return
			}
			d.process(ctx, j)
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, j job) {
	callCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	var txID string
	var err error
	switch j.kind {
	case KindAssign:
		txID, err = d.client.AssignMission(callCtx, j.address, j.ref)
	default:
		txID, err = d.client.Interact(callCtx, j.address, j.message)
	}
	metrics.Get().RecordChainCall(time.Since(start), err)

	if err != nil {
		d.logger.Warn(fmt.Sprintf("%s for %s failed: %v", j.kind, j.agentID, err))
		d.eventLog.Append(events.Notify(j.agentID, fmt.Sprintf("chain %s for %s failed: %v", j.kind, j.ref, err), events.SeverityError, j.tick))
		return
	}

	d.eventLog.Append(events.SimEvent{
		Type:     events.EventTypeChainTx,
		ActorID:  j.agentID,
		TargetID: j.ref,
		Payload:  events.ChainTxPayload{Kind: j.kind, TxID: txID, AgentID: j.agentID, Ref: j.ref},
		Tick:     j.tick,
	})
	d.logger.Event(string(events.EventTypeChainTx), j.agentID, j.kind+" "+txID)
}
