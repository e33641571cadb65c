package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/monyverse/cyberpunk/internal/domain/proofset"
	"github.com/monyverse/cyberpunk/internal/engine"
	"github.com/monyverse/cyberpunk/internal/events"
	"github.com/monyverse/cyberpunk/internal/infra/storage"
	"github.com/monyverse/cyberpunk/internal/platform/logger"
	"github.com/monyverse/cyberpunk/internal/protocol"
	"github.com/monyverse/cyberpunk/internal/world"
)

// ActorOperator is the actor id of events caused by REST or websocket requests.
const ActorOperator = "OPERATOR"

const maxBodyBytes = 1 << 20

// URLs are the public bases used to build proof set links.
type URLs struct {
	ProofStorage string // download base
	Public       string // share base
}

// API serves the fleet collections over JSON.
type API struct {
	engine   *engine.Engine
	world    *world.World
	eventLog *events.EventLog
	logger   *logger.Logger
	urls     URLs
	history  *storage.Reconstructor
	relay    engine.ChainRelay
}

// APIOption configures optional API collaborators.
type APIOption func(*API)

// WithHistory enables the timeline and recap endpoints.
func WithHistory(r *storage.Reconstructor) APIOption {
	return func(a *API) { a.history = r }
}

// WithRelay mirrors manual assignments by on-chain agents to relay.
func WithRelay(relay engine.ChainRelay) APIOption {
	return func(a *API) { a.relay = relay }
}

// NewAPI creates the REST handlers over the engine's world and log.
func NewAPI(eng *engine.Engine, log *logger.Logger, urls URLs, opts ...APIOption) *API {
	a := &API{
		engine:   eng,
		world:    eng.World(),
		eventLog: eng.GetEventLog(),
		logger:   log,
		urls:     urls,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RegisterRoutes sets up the fleet API routes.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/agents", a.HandleAgents)
	mux.HandleFunc("/api/missions", a.HandleMissions)
	mux.HandleFunc("/api/missions/assign", a.HandleAssign)
	mux.HandleFunc("/api/drones", a.HandleDrones)
	mux.HandleFunc("/api/fleet.geojson", a.HandleFleetGeoJSON)
	mux.HandleFunc("/api/demo-seed", a.HandleDemoSeed)
	mux.HandleFunc("/api/proofsets", a.HandleProofSets)
	mux.HandleFunc("/api/proofsets/", a.HandleProofSet)
	mux.HandleFunc("/api/sim/start", a.HandleSimStart)
	mux.HandleFunc("/api/sim/stop", a.HandleSimStop)
	mux.HandleFunc("/api/sim/status", a.HandleSimStatus)
	mux.HandleFunc("/api/history/missions", a.HandleMissionTimeline)
	mux.HandleFunc("/api/history/agents", a.HandleAgentRecap)
}

// HandleAgents serves GET, POST, PATCH and DELETE on /api/agents.
func (a *API) HandleAgents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		jsonSuccess(w, map[string]interface{}{"agents": a.world.Agents()})

	case http.MethodPost:
		var in world.AgentInput
		if !decodeBody(w, r, protocol.SchemaAgentCreate, &in) {
			return
		}
		ag, err := a.world.CreateAgent(in)
		if err != nil {
			jsonFail(w, err)
			return
		}
		a.emit(events.SimEvent{
			Type:     events.EventTypeAgentCreated,
			ActorID:  ActorOperator,
			TargetID: ag.ID,
			Payload:  events.AgentPayload{AgentID: ag.ID, Name: ag.Name, Status: string(ag.Status), Level: ag.Level},
		})
		a.logger.Event(string(events.EventTypeAgentCreated), ag.ID, ag.Name)
		jsonSuccess(w, map[string]interface{}{"agent": ag})

	case http.MethodPatch:
		var p world.AgentPatch
		if !decodeBody(w, r, protocol.SchemaAgentPatch, &p) {
			return
		}
		ag, err := a.world.PatchAgent(p)
		if err != nil {
			jsonFail(w, err)
			return
		}
		a.emit(events.SimEvent{
			Type:     events.EventTypeAgentUpdated,
			ActorID:  ActorOperator,
			TargetID: ag.ID,
			Payload:  events.AgentPayload{AgentID: ag.ID, Name: ag.Name, Status: string(ag.Status), Level: ag.Level},
		})
		jsonSuccess(w, map[string]interface{}{"agent": ag})

	case http.MethodDelete:
		id := r.URL.Query().Get("id")
		if id == "" {
			jsonError(w, "Missing id", http.StatusBadRequest)
			return
		}
		ag, err := a.world.RemoveAgent(id)
		if err != nil {
			jsonFail(w, err)
			return
		}
		a.emit(events.SimEvent{
			Type:     events.EventTypeAgentRemoved,
			ActorID:  ActorOperator,
			TargetID: ag.ID,
			Payload:  events.AgentPayload{AgentID: ag.ID, Name: ag.Name, Status: string(ag.Status), Level: ag.Level},
		})
		jsonSuccess(w, map[string]interface{}{"agent": ag})

	default:
		methodNotAllowed(w, r, "GET, POST, PATCH, DELETE")
	}
}

// HandleMissions serves GET, POST and PATCH on /api/missions.
func (a *API) HandleMissions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		jsonSuccess(w, map[string]interface{}{"missions": a.world.Missions()})

	case http.MethodPost:
		var in world.MissionInput
		if !decodeBody(w, r, protocol.SchemaMissionCreate, &in) {
			return
		}
		m, err := a.world.CreateMission(in)
		if err != nil {
			jsonFail(w, err)
			return
		}
		a.emit(events.SimEvent{
			Type:     events.EventTypeMissionCreated,
			ActorID:  ActorOperator,
			TargetID: m.ID,
			Payload:  events.MissionPayload{MissionID: m.ID, DroneID: m.DroneID, Status: string(m.Status), Reward: m.Reward, XP: m.XPReward},
		})
		jsonSuccess(w, map[string]interface{}{"mission": m})

	case http.MethodPatch:
		var p world.MissionPatch
		if !decodeBody(w, r, protocol.SchemaMissionPatch, &p) {
			return
		}
		res, err := a.world.PatchMission(p)
		if err != nil {
			jsonFail(w, err)
			return
		}
		m := res.Mission
		a.emit(events.SimEvent{
			Type:     events.EventTypeMissionUpdated,
			ActorID:  ActorOperator,
			TargetID: m.ID,
			Payload:  events.MissionPayload{MissionID: m.ID, DroneID: m.DroneID, AgentID: m.AssignedAgentID, Status: string(m.Status)},
		})
		if res.Completed {
			a.emit(events.SimEvent{
				Type:     events.EventTypeMissionCompleted,
				ActorID:  ActorOperator,
				TargetID: m.ID,
				Payload: events.MissionPayload{
					MissionID: m.ID,
					DroneID:   m.DroneID,
					AgentID:   m.AssignedAgentID,
					Status:    string(m.Status),
					Reward:    m.Reward,
					XP:        m.XPReward,
				},
			})
			if res.Proof != nil {
				a.emit(events.SimEvent{
					Type:     events.EventTypeProofSealed,
					ActorID:  events.ActorSystem,
					TargetID: res.Proof.ID,
					Payload:  events.ProofPayload{ProofID: res.Proof.ID, MissionID: m.ID, Hash: res.Proof.Hash},
				})
			}
			notify := m.AssignedAgentID
			if notify == "" {
				notify = ActorOperator
			}
			a.emit(events.Notify(notify, fmt.Sprintf("Mission %q completed", m.Description), events.SeveritySuccess, 0))
			a.logger.Event(string(events.EventTypeMissionCompleted), ActorOperator, m.ID)
		}
		if res.Failed {
			a.emit(events.SimEvent{
				Type:     events.EventTypeMissionFailed,
				ActorID:  ActorOperator,
				TargetID: m.ID,
				Payload:  events.MissionPayload{MissionID: m.ID, DroneID: m.DroneID, AgentID: m.AssignedAgentID, Status: string(m.Status), Reason: "cancelled"},
			})
		}
		jsonSuccess(w, map[string]interface{}{"mission": m})

	default:
		methodNotAllowed(w, r, "GET, POST, PATCH")
	}
}

// AssignRequest is the body of POST /api/missions/assign.
type AssignRequest struct {
	DroneID   string `json:"droneId"`
	MissionID string `json:"missionId"`
	AgentID   string `json:"agentId"`
}

// HandleAssign binds a pending mission to an idle drone.
// POST /api/missions/assign
func (a *API) HandleAssign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}
	var req AssignRequest
	if !decodeBody(w, r, protocol.SchemaMissionAssign, &req) {
		return
	}
	res, err := a.assign(req.DroneID, req.MissionID, req.AgentID)
	if err != nil {
		jsonFail(w, err)
		return
	}
	jsonSuccess(w, map[string]interface{}{"mission": res.Mission, "drone": res.Drone})
}

func (a *API) assign(droneID, missionID, agentID string) (world.Assignment, error) {
	res, err := a.world.AssignMission(droneID, missionID, agentID)
	if err != nil {
		return res, err
	}
	actor := agentID
	if actor == "" {
		actor = ActorOperator
	}
	m := res.Mission
	a.emit(events.SimEvent{
		Type:     events.EventTypeMissionAssigned,
		ActorID:  actor,
		TargetID: m.ID,
		Payload:  events.MissionPayload{MissionID: m.ID, DroneID: res.Drone.ID, AgentID: agentID, Status: string(m.Status)},
	})
	a.emit(events.Notify(actor, fmt.Sprintf("Mission %q assigned to %s", m.Description, res.Drone.ID), events.SeverityInfo, 0))
	a.logger.Event(string(events.EventTypeMissionAssigned), actor, m.ID+" -> "+res.Drone.ID)

	if a.relay != nil && agentID != "" {
		if ag, err := a.world.Agent(agentID); err == nil && ag.SettlesOnChain() {
			a.relay.SubmitAssignment(agentID, res.Drone.ID, m.ID, a.engine.CurrentTick())
		}
	}
	return res, nil
}

// HandleDrones serves GET and POST on /api/drones.
func (a *API) HandleDrones(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		jsonSuccess(w, map[string]interface{}{"drones": a.world.Drones()})

	case http.MethodPost:
		var in world.DroneInput
		if !decodeBody(w, r, protocol.SchemaDroneCreate, &in) {
			return
		}
		d, err := a.world.AddDrone(in)
		if err != nil {
			jsonFail(w, err)
			return
		}
		a.emit(events.SimEvent{
			Type:     events.EventTypeDroneRegistered,
			ActorID:  ActorOperator,
			TargetID: d.ID,
			Payload:  events.DronePayload{DroneID: d.ID, Status: string(d.Status), Location: d.Location, Battery: d.Battery},
		})
		jsonSuccess(w, map[string]interface{}{"drone": d})

	default:
		methodNotAllowed(w, r, "GET, POST")
	}
}

// HandleDemoSeed loads a demo scenario or clears the fleet.
// POST /api/demo-seed?scenario=busy | POST /api/demo-seed?reset=1
func (a *API) HandleDemoSeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}
	q := r.URL.Query()
	if q.Get("reset") == "1" {
		a.world.Reset()
		a.emit(events.SimEvent{
			Type:    events.EventTypeDemoReset,
			ActorID: ActorOperator,
			Payload: events.SeedPayload{Reset: true},
		})
		a.logger.Event(string(events.EventTypeDemoReset), ActorOperator, "fleet cleared")
		jsonSuccess(w, map[string]interface{}{"ok": true, "reset": true})
		return
	}

	scenario := q.Get("scenario")
	if scenario == "" {
		scenario = world.ScenarioDefault
	}
	applied := a.world.Seed(scenario)
	a.emit(events.SimEvent{
		Type:    events.EventTypeDemoSeeded,
		ActorID: ActorOperator,
		Payload: events.SeedPayload{Scenario: applied},
	})
	a.logger.Event(string(events.EventTypeDemoSeeded), ActorOperator, applied)
	jsonSuccess(w, map[string]interface{}{"ok": true, "scenario": scenario})
}

// HandleProofSets lists every proof set.
// GET /api/proofsets
func (a *API) HandleProofSets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		proofMethodNotAllowed(w, r)
		return
	}
	jsonSuccess(w, map[string]interface{}{"proofSets": a.world.Proofs()})
}

// HandleProofSet serves /api/proofsets/{id}, /{id}/download, /{id}/share and /{id}/verify.
func (a *API) HandleProofSet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		proofMethodNotAllowed(w, r)
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/proofsets/"), "/")
	parts := strings.Split(rest, "/")
	if rest == "" || len(parts) > 2 {
		jsonError(w, "Proof set not found", http.StatusNotFound)
		return
	}
	id := parts[0]

	if len(parts) == 2 {
		switch parts[1] {
		case "download":
			jsonSuccess(w, map[string]string{"url": proofset.DownloadURL(a.urls.ProofStorage, id)})
		case "share":
			jsonSuccess(w, map[string]string{"shareUrl": proofset.ShareURL(a.urls.Public, id)})
		case "verify":
			a.verifyProof(w, id)
		default:
			jsonError(w, "Proof set not found", http.StatusNotFound)
		}
		return
	}

	p, err := a.world.Proof(id)
	if err != nil {
		jsonFail(w, err)
		return
	}
	jsonSuccess(w, p)
}

// verifyProof re-hashes the sealed mission. A mission edited after sealing no longer verifies.
func (a *API) verifyProof(w http.ResponseWriter, id string) {
	p, err := a.world.Proof(id)
	if err != nil {
		jsonFail(w, err)
		return
	}
	verified := false
	if p.MissionID != "" {
		if m, err := a.world.Mission(p.MissionID); err == nil {
			verified = proofset.Verify(p, m)
		}
	}
	jsonSuccess(w, map[string]interface{}{
		"id":        p.ID,
		"missionId": p.MissionID,
		"verified":  verified,
	})
}

// SimStatus is the body of the simulation control endpoints.
type SimStatus struct {
	Running bool         `json:"running"`
	Tick    int64        `json:"tick"`
	Counts  world.Counts `json:"counts"`
}

func (a *API) status() SimStatus {
	return SimStatus{Running: a.engine.Running(), Tick: a.engine.CurrentTick(), Counts: a.world.Counts()}
}

// HandleSimStart sets the running flag. POST /api/sim/start
func (a *API) HandleSimStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}
	a.engine.Resume()
	jsonSuccess(w, a.status())
}

// HandleSimStop clears the running flag. POST /api/sim/stop
func (a *API) HandleSimStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}
	a.engine.Pause()
	jsonSuccess(w, a.status())
}

// HandleSimStatus reports the flag, tick and fleet counts. GET /api/sim/status
func (a *API) HandleSimStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}
	jsonSuccess(w, a.status())
}

// HandleMissionTimeline rebuilds one mission's history from persisted events.
// GET /api/history/missions?id=mission-3
func (a *API) HandleMissionTimeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}
	if a.history == nil {
		jsonError(w, "History not available", http.StatusNotImplemented)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		jsonError(w, "Missing id", http.StatusBadRequest)
		return
	}
	tl, err := a.history.MissionTimeline(r.Context(), id)
	if err != nil {
		jsonFail(w, err)
		return
	}
	jsonSuccess(w, tl)
}

// HandleAgentRecap summarizes an agent since a tick.
// GET /api/history/agents?id=agent-1&since=120
func (a *API) HandleAgentRecap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}
	if a.history == nil {
		jsonError(w, "History not available", http.StatusNotImplemented)
		return
	}
	q := r.URL.Query()
	id := q.Get("id")
	if id == "" {
		jsonError(w, "Missing id", http.StatusBadRequest)
		return
	}
	var since int64
	if s := q.Get("since"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 0 {
			jsonError(w, "Invalid since", http.StatusBadRequest)
			return
		}
		since = n
	}
	recap, err := a.history.AgentRecap(r.Context(), id, since)
	if err != nil {
		jsonFail(w, err)
		return
	}
	jsonSuccess(w, recap)
}

// Execute runs a websocket command. It satisfies CommandExecutor.
func (a *API) Execute(cmd protocol.Command) error {
	switch cmd.Type {
	case protocol.CmdSimStart:
		a.engine.Resume()
	case protocol.CmdSimStop:
		a.engine.Pause()
	case protocol.CmdAssign:
		_, err := a.assign(cmd.DroneID, cmd.MissionID, cmd.AgentID)
		return err
	default:
		return fmt.Errorf("%w: unknown command %q", protocol.ErrInvalid, cmd.Type)
	}
	return nil
}

func (a *API) emit(e events.SimEvent) {
	e.Tick = a.engine.CurrentTick()
	a.eventLog.Append(e)
}

// decodeBody validates the request body against schema and decodes it into v.
// On failure the 400 response is already written.
func decodeBody(w http.ResponseWriter, r *http.Request, schema string, v interface{}) bool {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	if err := protocol.Validate(schema, raw); err != nil {
		jsonFail(w, err)
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, world.ErrAgentNotFound), errors.Is(err, world.ErrMissionNotFound),
		errors.Is(err, world.ErrDroneNotFound), errors.Is(err, world.ErrProofNotFound):
		return http.StatusNotFound
	case errors.Is(err, world.ErrDroneBusy), errors.Is(err, world.ErrMissionNotPending):
		return http.StatusConflict
	case errors.Is(err, world.ErrInvalidInput), errors.Is(err, protocol.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func jsonFail(w http.ResponseWriter, err error) {
	jsonError(w, err.Error(), statusFor(err))
}

// jsonError sends an error response.
func jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// jsonSuccess sends a success response.
func jsonSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(data)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allow string) {
	w.Header().Set("Allow", allow)
	jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
}

// proofMethodNotAllowed keeps the plain-text 405 the proof set routes have always returned.
func proofMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "GET")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusMethodNotAllowed)
	fmt.Fprintf(w, "Method %s Not Allowed", r.Method)
}
