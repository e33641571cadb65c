package network

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/monyverse/cyberpunk/internal/platform/logger"
	"github.com/monyverse/cyberpunk/internal/protocol"
)

type wsFixture struct {
	api  *API
	hub  *Hub
	conn *websocket.Conn
}

func newWSFixture(t *testing.T, opts HubOptions) *wsFixture {
	t.Helper()
	api, _ := newTestAPI(t)
	if opts.PollInterval == 0 {
		opts.PollInterval = 10 * time.Millisecond
	}
	hub := NewHub(logger.NewLogger(), api, opts)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	hub.StartEventPoller(ctx, api.eventLog, api.world)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	waitFor(t, func() bool { return hub.ClientCount() == 1 })
	return &wsFixture{api: api, hub: hub, conn: conn}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// next reads frames until one of type typ arrives.
func (f *wsFixture) next(t *testing.T, typ string) []byte {
	t.Helper()
	f.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, raw, err := f.conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s frame: %v", typ, err)
		}
		base, err := protocol.DecodeBase(raw)
		if err != nil {
			t.Fatalf("frame is not JSON: %q", raw)
		}
		if base.Type == typ {
			return raw
		}
	}
}

func (f *wsFixture) send(t *testing.T, v interface{}) {
	t.Helper()
	if err := f.conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestHubStreamsEventsAndFleet(t *testing.T) {
	f := newWSFixture(t, HubOptions{})

	f.api.engine.TickOnce()

	var ev protocol.EventMsg
	if err := json.Unmarshal(f.next(t, protocol.TypeEvent), &ev); err != nil {
		t.Fatalf("decode event frame: %v", err)
	}
	if ev.Event.Seq == 0 {
		t.Errorf("event frame without sequence: %+v", ev.Event)
	}

	var fleet protocol.FleetMsg
	if err := json.Unmarshal(f.next(t, protocol.TypeFleet), &fleet); err != nil {
		t.Fatalf("decode fleet frame: %v", err)
	}
	if fleet.Tick != 1 || len(fleet.Drones) != 3 {
		t.Errorf("unexpected fleet frame tick %d drones %d", fleet.Tick, len(fleet.Drones))
	}
}

func TestHubExecutesCommands(t *testing.T) {
	f := newWSFixture(t, HubOptions{})

	f.send(t, protocol.Command{Type: protocol.CmdSimStart})
	waitFor(t, f.api.engine.Running)

	f.send(t, map[string]string{"type": "FLY"})
	var e protocol.ErrorMsg
	if err := json.Unmarshal(f.next(t, protocol.TypeError), &e); err != nil {
		t.Fatalf("decode error frame: %v", err)
	}
	if e.Code != protocol.ErrBadRequest {
		t.Errorf("expected %s, got %s", protocol.ErrBadRequest, e.Code)
	}

	f.send(t, protocol.Command{Type: protocol.CmdAssign, DroneID: "drone-3", MissionID: "mission-4"})
	if err := json.Unmarshal(f.next(t, protocol.TypeError), &e); err != nil {
		t.Fatalf("decode error frame: %v", err)
	}
	if e.Code != protocol.ErrConflict {
		t.Errorf("busy drone: expected %s, got %s", protocol.ErrConflict, e.Code)
	}
}

func TestHubRateLimitsCommands(t *testing.T) {
	f := newWSFixture(t, HubOptions{CommandInterval: time.Hour})

	f.send(t, protocol.Command{Type: protocol.CmdSimStart})
	f.send(t, protocol.Command{Type: protocol.CmdSimStop})

	var e protocol.ErrorMsg
	if err := json.Unmarshal(f.next(t, protocol.TypeError), &e); err != nil {
		t.Fatalf("decode error frame: %v", err)
	}
	if e.Code != protocol.ErrRateLimit {
		t.Errorf("expected %s, got %s", protocol.ErrRateLimit, e.Code)
	}
	if !f.api.engine.Running() {
		t.Error("the throttled SIM_STOP must not run")
	}
}

func TestHubRejectsWhenFull(t *testing.T) {
	f := newWSFixture(t, HubOptions{MaxClients: 1})

	rec := httptest.NewRecorder()
	f.hub.ServeWS(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when full, got %d", rec.Code)
	}
}
