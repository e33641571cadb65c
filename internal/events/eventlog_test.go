package events

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingPersister struct {
	mu     sync.Mutex
	events []SimEvent
	fail   bool
}

func (p *recordingPersister) Append(e SimEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("disk full")
	}
	p.events = append(p.events, e)
	return nil
}

func TestAppendAssignsSequence(t *testing.T) {
	el := NewEventLog(nil)

	first := el.Append(SimEvent{Type: EventTypeSimTick, ActorID: ActorSystem})
	second := el.Append(SimEvent{Type: EventTypeSimTick, ActorID: ActorSystem})

	if first.Seq != 1 || second.Seq != 2 {
		t.Errorf("Expected sequences 1 and 2, got %d and %d", first.Seq, second.Seq)
	}
	if first.ID == "" || first.ID == second.ID {
		t.Errorf("Expected unique generated ids, got %q and %q", first.ID, second.ID)
	}
	if first.Timestamp.IsZero() {
		t.Errorf("Expected timestamp to be stamped")
	}
	if el.LastSeq() != 2 {
		t.Errorf("Expected LastSeq 2, got %d", el.LastSeq())
	}
}

func TestSinceReturnsOnlyNewer(t *testing.T) {
	el := NewEventLog(nil)
	for i := 0; i < 5; i++ {
		el.Append(SimEvent{Type: EventTypeSimTick, Tick: int64(i + 1)})
	}

	newer := el.Since(3)
	if len(newer) != 2 || newer[0].Seq != 4 || newer[1].Seq != 5 {
		t.Errorf("Expected seq 4 and 5, got %+v", newer)
	}
	if got := el.Since(5); len(got) != 0 {
		t.Errorf("Expected nothing after the last event, got %d", len(got))
	}
}

func TestRetainDropsOldest(t *testing.T) {
	el := NewEventLog(nil, WithRetain(4))
	for i := 0; i < 10; i++ {
		el.Append(SimEvent{Type: EventTypeSimTick})
	}

	all := el.Replay()
	if len(all) > 4 {
		t.Fatalf("Expected at most 4 retained events, got %d", len(all))
	}
	if all[len(all)-1].Seq != 10 {
		t.Errorf("Expected newest event to survive, got seq %d", all[len(all)-1].Seq)
	}
	if got := el.Since(0); got[0].Seq != all[0].Seq {
		t.Errorf("Since(0) should start at the oldest retained event")
	}
}

func TestFilters(t *testing.T) {
	el := NewEventLog(nil)
	el.Append(SimEvent{Type: EventTypeMissionAssigned, ActorID: "agent-1"})
	el.Append(SimEvent{Type: EventTypeAgentInteraction, ActorID: "agent-2"})
	el.Append(SimEvent{Type: EventTypeMissionAssigned, ActorID: "agent-2"})

	if got := el.GetByActor("agent-2"); len(got) != 2 {
		t.Errorf("Expected 2 events by agent-2, got %d", len(got))
	}
	if got := el.GetByType(EventTypeMissionAssigned); len(got) != 2 {
		t.Errorf("Expected 2 assignment events, got %d", len(got))
	}
}

func TestPersisterReceivesEverything(t *testing.T) {
	p := &recordingPersister{}
	var hooked int
	var mu sync.Mutex
	el := NewEventLog(p, WithPersistHook(func(time.Duration, error) {
		mu.Lock()
		hooked++
		mu.Unlock()
	}))

	for i := 0; i < 20; i++ {
		el.Append(SimEvent{Type: EventTypeSimTick})
	}
	el.Close()

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) != 20 {
		t.Errorf("Expected 20 persisted events, got %d", len(p.events))
	}
	if hooked != 20 {
		t.Errorf("Expected hook to fire 20 times, got %d", hooked)
	}
	if p.events[19].Seq != 20 {
		t.Errorf("Expected persistence in order, last seq %d", p.events[19].Seq)
	}
}

func TestAppendAfterCloseDoesNotPanic(t *testing.T) {
	el := NewEventLog(&recordingPersister{})
	el.Close()
	el.Append(SimEvent{Type: EventTypeSimTick})
	el.Close()
}
