package network

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/monyverse/cyberpunk/internal/config"
	"github.com/monyverse/cyberpunk/internal/domain/agent"
	"github.com/monyverse/cyberpunk/internal/domain/drone"
	"github.com/monyverse/cyberpunk/internal/domain/geo"
	"github.com/monyverse/cyberpunk/internal/domain/mission"
	"github.com/monyverse/cyberpunk/internal/domain/proofset"
	"github.com/monyverse/cyberpunk/internal/engine"
	"github.com/monyverse/cyberpunk/internal/events"
	"github.com/monyverse/cyberpunk/internal/platform/logger"
	"github.com/monyverse/cyberpunk/internal/protocol"
	"github.com/monyverse/cyberpunk/internal/world"
)

const (
	testStorageURL = "https://your-storage.com"
	testPublicURL  = "https://yourapp.com"
)

type recordingRelay struct {
	assigns []string
}

func (r *recordingRelay) SubmitAssignment(agentID, droneID, missionID string, tick int64) {
	r.assigns = append(r.assigns, agentID+":"+droneID+":"+missionID)
}

func (r *recordingRelay) SubmitInteraction(agentID, targetID, message string, tick int64) {}

func newTestAPI(t *testing.T, opts ...APIOption) (*API, *http.ServeMux) {
	t.Helper()
	cfg := config.Default().Simulation
	cfg.AgentActionProbability = 0
	w := world.New(geo.NewArena(500, nil))
	w.Seed(world.ScenarioDefault)
	el := events.NewEventLog(nil)
	eng := engine.NewEngine(el, w, cfg, logger.NewLogger())
	api := NewAPI(eng, logger.NewLogger(), URLs{ProofStorage: testStorageURL, Public: testPublicURL}, opts...)
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	return api, mux
}

func do(mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decode(t, rec, &body)
	return body.Error
}

func countType(el *events.EventLog, typ events.EventType) int {
	return len(el.GetByType(typ))
}

func TestAgentsLifecycle(t *testing.T) {
	api, mux := newTestAPI(t)

	rec := do(mux, http.MethodGet, "/api/agents", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET agents: %d", rec.Code)
	}
	var list struct {
		Agents []agent.Agent `json:"agents"`
	}
	decode(t, rec, &list)
	if len(list.Agents) != 3 {
		t.Fatalf("expected 3 seeded agents, got %d", len(list.Agents))
	}

	rec = do(mux, http.MethodPost, "/api/agents", `{"name":"Delta","type":"offchain","strategy":"social"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST agent: %d %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Agent agent.Agent `json:"agent"`
	}
	decode(t, rec, &created)
	if created.Agent.Name != "Delta" || created.Agent.Level != 1 || created.Agent.ID == "" {
		t.Errorf("unexpected agent %+v", created.Agent)
	}
	if countType(api.eventLog, events.EventTypeAgentCreated) != 1 {
		t.Error("AGENT_CREATED not emitted")
	}

	rec = do(mux, http.MethodPatch, "/api/agents", `{"id":"agent-1","name":"Alpha Prime"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PATCH agent: %d %s", rec.Code, rec.Body.String())
	}
	var patched struct {
		Agent agent.Agent `json:"agent"`
	}
	decode(t, rec, &patched)
	if patched.Agent.Name != "Alpha Prime" {
		t.Errorf("name not patched: %q", patched.Agent.Name)
	}

	rec = do(mux, http.MethodPatch, "/api/agents", `{"id":"agent-404","name":"Ghost"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("PATCH unknown agent: expected 404, got %d", rec.Code)
	}
	if msg := errorOf(t, rec); msg != "Agent not found" {
		t.Errorf("unexpected error %q", msg)
	}

	rec = do(mux, http.MethodDelete, "/api/agents?id=agent-2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("DELETE agent: %d", rec.Code)
	}
	var removed struct {
		Agent agent.Agent `json:"agent"`
	}
	decode(t, rec, &removed)
	if removed.Agent.Status != agent.StatusOffline {
		t.Errorf("expected offline, got %s", removed.Agent.Status)
	}
}

func TestAgentValidation(t *testing.T) {
	_, mux := newTestAPI(t)

	rec := do(mux, http.MethodPost, "/api/agents", `{"type":"offchain"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing name: expected 400, got %d", rec.Code)
	}
	rec = do(mux, http.MethodPost, "/api/agents", `{"name":"X","type":"robot"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad type: expected 400, got %d", rec.Code)
	}
	rec = do(mux, http.MethodPost, "/api/agents", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: expected 400, got %d", rec.Code)
	}
	rec = do(mux, http.MethodPut, "/api/agents", `{}`)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("PUT: expected 405, got %d", rec.Code)
	}
}

func TestMissionCreateAndValidate(t *testing.T) {
	api, mux := newTestAPI(t)

	rec := do(mux, http.MethodPost, "/api/missions", `{"description":"Scan roof","type":"surveillance","reward":30,"xpReward":4,"target":{"x":10,"z":-10}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST mission: %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"missionLog":[]`) {
		t.Errorf("new mission should carry an empty log array: %s", rec.Body.String())
	}
	if body := do(mux, http.MethodGet, "/api/missions", "").Body.String(); strings.Contains(body, `"missionLog":null`) {
		t.Errorf("mission list has a null log: %s", body)
	}
	var created struct {
		Mission mission.Mission `json:"mission"`
	}
	decode(t, rec, &created)
	if created.Mission.Status != mission.StatusPending || created.Mission.Type != mission.TypeSurveillance {
		t.Errorf("unexpected mission %+v", created.Mission)
	}
	if countType(api.eventLog, events.EventTypeMissionCreated) != 1 {
		t.Error("MISSION_CREATED not emitted")
	}

	rec = do(mux, http.MethodPost, "/api/missions", `{"target":{"x":9999,"z":0}}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("target outside arena: expected 400, got %d", rec.Code)
	}
	rec = do(mux, http.MethodPost, "/api/missions", `{"target":{"x":1}}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("target missing z: expected 400, got %d", rec.Code)
	}

	rec = do(mux, http.MethodPatch, "/api/missions", `{"id":"mission-404","status":"failed"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("PATCH unknown mission: expected 404, got %d", rec.Code)
	}
	if msg := errorOf(t, rec); msg != "Mission not found" {
		t.Errorf("unexpected error %q", msg)
	}
}

func TestAssignThenCompleteCreditsAgent(t *testing.T) {
	relay := &recordingRelay{}
	api, mux := newTestAPI(t, WithRelay(relay))

	rec := do(mux, http.MethodPost, "/api/missions/assign", `{"droneId":"drone-1","missionId":"mission-4","agentId":"agent-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("assign: %d %s", rec.Code, rec.Body.String())
	}
	var assigned struct {
		Mission mission.Mission `json:"mission"`
		Drone   drone.Drone     `json:"drone"`
	}
	decode(t, rec, &assigned)
	if assigned.Drone.Status != drone.StatusInMission || assigned.Mission.DroneID != "drone-1" {
		t.Errorf("assignment not applied: %+v", assigned)
	}
	if len(relay.assigns) != 1 || relay.assigns[0] != "agent-1:drone-1:mission-4" {
		t.Errorf("on-chain agent assignment not relayed: %v", relay.assigns)
	}

	before, _ := api.world.Agent("agent-1")

	rec = do(mux, http.MethodPatch, "/api/missions", `{"id":"mission-4","status":"completed"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete: %d %s", rec.Code, rec.Body.String())
	}
	var patched struct {
		Mission mission.Mission `json:"mission"`
	}
	decode(t, rec, &patched)
	if patched.Mission.Status != mission.StatusCompleted {
		t.Errorf("expected completed, got %s", patched.Mission.Status)
	}

	after, _ := api.world.Agent("agent-1")
	if after.Experience != before.Experience+5 {
		t.Errorf("agent not credited: %d -> %d", before.Experience, after.Experience)
	}
	d, _ := api.world.Drone("drone-1")
	if d.Status != drone.StatusIdle {
		t.Errorf("drone not released: %s", d.Status)
	}

	rec = do(mux, http.MethodGet, "/api/proofsets/"+proofset.IDFor("mission-4"), "")
	if rec.Code != http.StatusOK {
		t.Errorf("proof set not sealed: %d", rec.Code)
	}
	for _, typ := range []events.EventType{events.EventTypeMissionAssigned, events.EventTypeMissionCompleted, events.EventTypeProofSealed} {
		if countType(api.eventLog, typ) != 1 {
			t.Errorf("expected one %s event", typ)
		}
	}
}

func TestAssignConflicts(t *testing.T) {
	_, mux := newTestAPI(t)

	rec := do(mux, http.MethodPost, "/api/missions/assign", `{"droneId":"drone-3","missionId":"mission-4"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("busy drone: expected 409, got %d", rec.Code)
	}
	rec = do(mux, http.MethodPost, "/api/missions/assign", `{"droneId":"drone-1","missionId":"mission-1"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("completed mission: expected 409, got %d", rec.Code)
	}
	rec = do(mux, http.MethodPost, "/api/missions/assign", `{"droneId":"drone-9","missionId":"mission-4"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown drone: expected 404, got %d", rec.Code)
	}
	rec = do(mux, http.MethodPost, "/api/missions/assign", `{"droneId":"drone-1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing mission id: expected 400, got %d", rec.Code)
	}
}

func TestPatchPendingAllowsSingleReassign(t *testing.T) {
	api, mux := newTestAPI(t)

	rec := do(mux, http.MethodPatch, "/api/missions", `{"id":"mission-3","status":"pending"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("requeue mission: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(mux, http.MethodPost, "/api/missions/assign", `{"droneId":"drone-1","missionId":"mission-3"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("reassign: %d %s", rec.Code, rec.Body.String())
	}

	flying := 0
	for _, d := range api.world.Drones() {
		if d.Status == drone.StatusInMission && d.LastMissionID == "mission-3" {
			flying++
		}
	}
	if flying != 1 {
		t.Errorf("expected one drone on mission-3, got %d", flying)
	}
}

func TestPatchFailedReleasesDrone(t *testing.T) {
	api, mux := newTestAPI(t)

	rec := do(mux, http.MethodPatch, "/api/missions", `{"id":"mission-3","status":"failed"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("fail mission: %d %s", rec.Code, rec.Body.String())
	}
	d, _ := api.world.Drone("drone-3")
	if d.Status != drone.StatusIdle {
		t.Errorf("drone-3 should be idle, got %s", d.Status)
	}
	if countType(api.eventLog, events.EventTypeMissionFailed) != 1 {
		t.Error("MISSION_FAILED not emitted")
	}
}

func TestDrones(t *testing.T) {
	api, mux := newTestAPI(t)

	rec := do(mux, http.MethodPost, "/api/drones", `{"id":"drone-x","battery":50,"location":{"x":1,"z":2}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST drone: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(mux, http.MethodPost, "/api/drones", `{"battery":150}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("battery over 100: expected 400, got %d", rec.Code)
	}

	rec = do(mux, http.MethodGet, "/api/drones", "")
	var list struct {
		Drones []drone.Drone `json:"drones"`
	}
	decode(t, rec, &list)
	if len(list.Drones) != 4 {
		t.Errorf("expected 4 drones, got %d", len(list.Drones))
	}
	if countType(api.eventLog, events.EventTypeDroneRegistered) != 1 {
		t.Error("DRONE_REGISTERED not emitted")
	}
}

func TestDemoSeed(t *testing.T) {
	api, mux := newTestAPI(t)

	if rec := do(mux, http.MethodGet, "/api/demo-seed", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET demo-seed: expected 405, got %d", rec.Code)
	}

	rec := do(mux, http.MethodPost, "/api/demo-seed?reset=1", "")
	var reset struct {
		OK    bool `json:"ok"`
		Reset bool `json:"reset"`
	}
	decode(t, rec, &reset)
	if !reset.OK || !reset.Reset {
		t.Errorf("unexpected reset body %s", rec.Body.String())
	}
	if c := api.world.Counts(); c.Drones != 0 || c.Missions != 0 || c.Agents != 0 {
		t.Errorf("reset left entities: %+v", c)
	}

	rec = do(mux, http.MethodPost, "/api/demo-seed?scenario=busy", "")
	var seeded struct {
		OK       bool   `json:"ok"`
		Scenario string `json:"scenario"`
	}
	decode(t, rec, &seeded)
	if !seeded.OK || seeded.Scenario != "busy" {
		t.Errorf("unexpected seed body %s", rec.Body.String())
	}
	if c := api.world.Counts(); c.DronesByState[string(drone.StatusInMission)] != 2 {
		t.Errorf("busy scenario not applied: %+v", c)
	}

	rec = do(mux, http.MethodPost, "/api/demo-seed", "")
	decode(t, rec, &seeded)
	if seeded.Scenario != world.ScenarioDefault {
		t.Errorf("expected default scenario, got %q", seeded.Scenario)
	}
	if countType(api.eventLog, events.EventTypeDemoSeeded) != 2 || countType(api.eventLog, events.EventTypeDemoReset) != 1 {
		t.Error("seed events not emitted")
	}
}

func TestProofSetRoutes(t *testing.T) {
	_, mux := newTestAPI(t)

	rec := do(mux, http.MethodGet, "/api/proofsets/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET genesis: %d", rec.Code)
	}
	var p proofset.ProofSet
	decode(t, rec, &p)
	if p.ID != "1" {
		t.Errorf("unexpected proof set %+v", p)
	}

	rec = do(mux, http.MethodGet, "/api/proofsets/nope", "")
	if rec.Code != http.StatusNotFound || errorOf(t, rec) != "Proof set not found" {
		t.Errorf("unknown proof set: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(mux, http.MethodPost, "/api/proofsets/1", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST proof set: expected 405, got %d", rec.Code)
	}
	if rec.Header().Get("Allow") != "GET" {
		t.Errorf("expected Allow: GET, got %q", rec.Header().Get("Allow"))
	}
	if rec.Body.String() != "Method POST Not Allowed" {
		t.Errorf("unexpected 405 body %q", rec.Body.String())
	}

	rec = do(mux, http.MethodGet, "/api/proofsets/abc/download", "")
	var dl struct {
		URL string `json:"url"`
	}
	decode(t, rec, &dl)
	if dl.URL != testStorageURL+"/proofs/abc.pdf" {
		t.Errorf("unexpected download url %q", dl.URL)
	}

	rec = do(mux, http.MethodGet, "/api/proofsets/abc/share", "")
	var share struct {
		ShareURL string `json:"shareUrl"`
	}
	decode(t, rec, &share)
	if share.ShareURL != testPublicURL+"/proofsets/abc/share" {
		t.Errorf("unexpected share url %q", share.ShareURL)
	}

	if rec := do(mux, http.MethodDelete, "/api/proofsets/abc/share", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE share: expected 405, got %d", rec.Code)
	}

	rec = do(mux, http.MethodGet, "/api/proofsets", "")
	var list struct {
		ProofSets []proofset.ProofSet `json:"proofSets"`
	}
	decode(t, rec, &list)
	if len(list.ProofSets) == 0 {
		t.Error("proof set list is empty")
	}
}

func TestProofVerifyRoute(t *testing.T) {
	_, mux := newTestAPI(t)

	verify := func(id string) (int, bool) {
		rec := do(mux, http.MethodGet, "/api/proofsets/"+id+"/verify", "")
		var body struct {
			Verified bool `json:"verified"`
		}
		if rec.Code == http.StatusOK {
			decode(t, rec, &body)
		}
		return rec.Code, body.Verified
	}

	if rec := do(mux, http.MethodPatch, "/api/missions", `{"id":"mission-3","status":"completed"}`); rec.Code != http.StatusOK {
		t.Fatalf("complete mission-3: %d %s", rec.Code, rec.Body.String())
	}
	id := proofset.IDFor("mission-3")
	if code, ok := verify(id); code != http.StatusOK || !ok {
		t.Errorf("sealed mission should verify, got %d/%v", code, ok)
	}

	if rec := do(mux, http.MethodPatch, "/api/missions", `{"id":"mission-3","pilot":"user-9"}`); rec.Code != http.StatusOK {
		t.Fatalf("edit mission-3: %d", rec.Code)
	}
	if _, ok := verify(id); ok {
		t.Error("edited mission should no longer verify")
	}

	if code, ok := verify("1"); code != http.StatusOK || ok {
		t.Errorf("genesis proof has no mission to verify, got %d/%v", code, ok)
	}
	if code, _ := verify("nope"); code != http.StatusNotFound {
		t.Errorf("unknown proof: expected 404, got %d", code)
	}
}

func TestSimControl(t *testing.T) {
	api, mux := newTestAPI(t)

	rec := do(mux, http.MethodPost, "/api/sim/start", "")
	var st SimStatus
	decode(t, rec, &st)
	if !st.Running {
		t.Error("expected running after start")
	}
	rec = do(mux, http.MethodPost, "/api/sim/stop", "")
	decode(t, rec, &st)
	if st.Running {
		t.Error("expected stopped after stop")
	}
	if countType(api.eventLog, events.EventTypeSimStateChanged) != 2 {
		t.Error("expected two SIM_STATE_CHANGED events")
	}
	rec = do(mux, http.MethodGet, "/api/sim/status", "")
	decode(t, rec, &st)
	if st.Counts.Drones != 3 {
		t.Errorf("expected 3 drones in status, got %d", st.Counts.Drones)
	}
	if rec := do(mux, http.MethodGet, "/api/sim/start", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET start: expected 405, got %d", rec.Code)
	}
}

func TestHistoryWithoutReconstructor(t *testing.T) {
	_, mux := newTestAPI(t)
	rec := do(mux, http.MethodGet, "/api/history/missions?id=mission-1", "")
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("expected 501, got %d", rec.Code)
	}
}

func TestExecuteCommands(t *testing.T) {
	api, _ := newTestAPI(t)

	if err := api.Execute(protocol.Command{Type: protocol.CmdSimStart}); err != nil {
		t.Fatalf("SIM_START: %v", err)
	}
	if !api.engine.Running() {
		t.Error("engine not running after SIM_START")
	}
	if err := api.Execute(protocol.Command{Type: protocol.CmdAssign, DroneID: "drone-1", MissionID: "mission-4", AgentID: "agent-2"}); err != nil {
		t.Fatalf("ASSIGN: %v", err)
	}
	if err := api.Execute(protocol.Command{Type: protocol.CmdAssign, DroneID: "drone-1", MissionID: "mission-4"}); err == nil {
		t.Error("second assign of the same drone should fail")
	}
	if err := api.Execute(protocol.Command{Type: protocol.CmdSimStop}); err != nil {
		t.Fatalf("SIM_STOP: %v", err)
	}
	if api.engine.Running() {
		t.Error("engine still running after SIM_STOP")
	}
}
