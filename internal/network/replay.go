package network

import (
	"net/http"
	"strconv"
	"time"

	"github.com/monyverse/cyberpunk/internal/events"
	"github.com/monyverse/cyberpunk/internal/platform/logger"
)

// ReplayHandler exposes the in-memory event log.
type ReplayHandler struct {
	eventLog *events.EventLog
	logger   *logger.Logger
}

// NewReplayHandler creates a new replay handler.
func NewReplayHandler(el *events.EventLog, log *logger.Logger) *ReplayHandler {
	return &ReplayHandler{
		eventLog: el,
		logger:   log,
	}
}

// ReplayEvent is one event with a readable summary.
type ReplayEvent struct {
	events.SimEvent
	Summary string `json:"summary"`
	Impact  string `json:"impact"`
}

// ReplayResponse is the body of GET /api/events.
type ReplayResponse struct {
	TotalEvents int           `json:"total_events"`
	LastSeq     uint64        `json:"last_seq"`
	GeneratedAt string        `json:"generated_at"`
	Events      []ReplayEvent `json:"events"`
}

// HandleReplay returns retained events, oldest first.
// GET /api/events?type=MISSION_COMPLETED&actor=drone-1&since=120
// since is a sequence number: only events after it are returned.
func (rh *ReplayHandler) HandleReplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}

	q := r.URL.Query()
	eventType := q.Get("type")
	actor := q.Get("actor")
	var since uint64
	if s := q.Get("since"); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			jsonError(w, "Invalid since", http.StatusBadRequest)
			return
		}
		since = n
	}

	out := []ReplayEvent{}
	for _, e := range rh.eventLog.Since(since) {
		if eventType != "" && string(e.Type) != eventType {
			continue
		}
		if actor != "" && e.ActorID != actor {
			continue
		}
		out = append(out, convertToReplayEvent(e))
	}

	jsonSuccess(w, ReplayResponse{
		TotalEvents: len(out),
		LastSeq:     rh.eventLog.LastSeq(),
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      out,
	})
}

// HandleEventDetail returns one retained event.
// GET /api/events/detail?id=XXX
func (rh *ReplayHandler) HandleEventDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		jsonError(w, "Missing id", http.StatusBadRequest)
		return
	}
	for _, e := range rh.eventLog.Replay() {
		if e.ID == id {
			jsonSuccess(w, convertToReplayEvent(e))
			return
		}
	}
	jsonError(w, "Event not found", http.StatusNotFound)
}

// HandleStats counts retained events by type.
// GET /api/events/stats
func (rh *ReplayHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}

	all := rh.eventLog.Replay()
	byType := make(map[string]int)
	for _, e := range all {
		byType[string(e.Type)]++
	}
	jsonSuccess(w, map[string]interface{}{
		"generated_at": time.Now().Format(time.RFC3339),
		"total_events": len(all),
		"dropped":      rh.eventLog.Dropped(),
		"by_type":      byType,
	})
}

// RegisterRoutes sets up the replay routes.
func (rh *ReplayHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/events", rh.HandleReplay)
	mux.HandleFunc("/api/events/detail", rh.HandleEventDetail)
	mux.HandleFunc("/api/events/stats", rh.HandleStats)
}

func convertToReplayEvent(e events.SimEvent) ReplayEvent {
	return ReplayEvent{SimEvent: e, Summary: summarizeEvent(e), Impact: determineImpact(e)}
}

// summarizeEvent creates a human-readable summary.
func summarizeEvent(e events.SimEvent) string {
	switch e.Type {
	case events.EventTypeSimTick:
		return "Simulation advanced one tick."
	case events.EventTypeSimStateChanged:
		if p, ok := e.Payload.(events.SimStatePayload); ok && !p.Running {
			return "Simulation paused."
		}
		return "Simulation running."
	case events.EventTypeDroneRegistered:
		return "Drone " + e.TargetID + " joined the fleet."
	case events.EventTypeDroneReturning:
		return "Drone " + e.ActorID + " is returning to charge."
	case events.EventTypeDroneCharged:
		return "Drone " + e.ActorID + " is fully charged."
	case events.EventTypeCollisionAvoid:
		return "Drone " + e.ActorID + " swerved to avoid a collision."
	case events.EventTypeMissionCreated:
		return "Mission " + e.TargetID + " was created."
	case events.EventTypeMissionAssigned:
		return "Mission " + e.TargetID + " was assigned by " + e.ActorID + "."
	case events.EventTypeMissionCompleted:
		return "Mission " + e.TargetID + " was completed."
	case events.EventTypeMissionFailed:
		return "Mission " + e.TargetID + " failed."
	case events.EventTypeAgentInteraction:
		return e.ActorID + " interacted with " + e.TargetID + "."
	case events.EventTypeProofSealed:
		return "Proof set " + e.TargetID + " was sealed."
	case events.EventTypeChainTx:
		return "Settled on chain for " + e.ActorID + "."
	case events.EventTypeNotification:
		if p, ok := e.Payload.(events.NotificationPayload); ok {
			return p.Message
		}
	}
	return string(e.Type)
}

// determineImpact classifies the event impact.
func determineImpact(e events.SimEvent) string {
	switch e.Type {
	case events.EventTypeMissionFailed, events.EventTypeDroneReturning:
		return "NEGATIVE"
	case events.EventTypeMissionCompleted, events.EventTypeProofSealed, events.EventTypeDroneCharged, events.EventTypeChainTx:
		return "POSITIVE"
	case events.EventTypeNotification:
		if p, ok := e.Payload.(events.NotificationPayload); ok {
			switch p.Severity {
			case events.SeverityError:
				return "NEGATIVE"
			case events.SeveritySuccess:
				return "POSITIVE"
			}
		}
	}
	return "NEUTRAL"
}
