// Package mission defines flight tasks assigned to drones.
// This package is PURE and must NOT import any infrastructure packages.
package mission

import (
	"fmt"
	"time"

	"github.com/monyverse/cyberpunk/internal/domain/geo"
)

// Type selects the flight profile used while the mission is flown.
type Type string

const (
	TypeMapping      Type = "mapping"
	TypeDelivery     Type = "delivery"
	TypeSurveillance Type = "surveillance"
	TypeCustom       Type = "custom"
)

// Status is the lifecycle stage of a mission.
type Status string

const (
	StatusPending    Status = "pending"
	StatusActive     Status = "active"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Difficulty is informational only.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// LogEntry is one line of the mission's audit trail.
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Event     string                 `json:"event"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Mission is a task flown by one drone toward a target.
type Mission struct {
	ID               string                 `json:"id"`
	DroneID          string                 `json:"droneId"`
	Pilot            string                 `json:"pilot"`
	Description      string                 `json:"description"`
	Type             Type                   `json:"type"`
	Status           Status                 `json:"status"`
	Reward           float64                `json:"reward"`
	Difficulty       Difficulty             `json:"difficulty,omitempty"`
	XPReward         int                    `json:"xpReward"`
	ReputationReward int                    `json:"reputationReward"`
	Log              []LogEntry             `json:"missionLog"`
	Metadata         map[string]interface{} `json:"metadata"`
	Target           *geo.Vector3           `json:"target,omitempty"`
	StartTime        *time.Time             `json:"startTime,omitempty"`
	EndTime          *time.Time             `json:"endTime,omitempty"`
	AssignedAgentID  string                 `json:"assignedAgentId,omitempty"`
}

// ParseType validates a wire mission type.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeMapping, TypeDelivery, TypeSurveillance, TypeCustom:
		return Type(s), nil
	}
	return "", fmt.Errorf("unknown mission type %q", s)
}

// ParseStatus validates a wire mission status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusActive, StatusInProgress, StatusCompleted, StatusFailed:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown mission status %q", s)
}

// IsPending reports whether the mission is waiting for a drone.
func (m *Mission) IsPending() bool {
	return m.Status == StatusPending
}

// IsFlying reports whether a drone is currently working the mission.
func (m *Mission) IsFlying() bool {
	return m.Status == StatusActive || m.Status == StatusInProgress
}

// IsTerminal reports whether the mission has finished, successfully or not.
func (m *Mission) IsTerminal() bool {
	return m.Status == StatusCompleted || m.Status == StatusFailed
}

// AppendLog records an audit line.
func (m *Mission) AppendLog(now time.Time, event string, details map[string]interface{}) {
	m.Log = append(m.Log, LogEntry{Timestamp: now, Event: event, Details: details})
}

// Finish moves the mission into a terminal status and stamps the end time.
func (m *Mission) Finish(status Status, now time.Time) {
	m.Status = status
	end := now
	m.EndTime = &end
}

// Start marks the mission as taken by a drone.
func (m *Mission) Start(droneID, agentID string, now time.Time) {
	m.DroneID = droneID
	m.AssignedAgentID = agentID
	m.Status = StatusActive
	start := now
	m.StartTime = &start
}

// Clone returns a deep copy safe to hand outside the world lock.
func (m *Mission) Clone() Mission {
	c := *m
	c.Log = append([]LogEntry{}, m.Log...)
	if m.Metadata != nil {
		c.Metadata = make(map[string]interface{}, len(m.Metadata))
		for k, v := range m.Metadata {
			c.Metadata[k] = v
		}
	}
	if m.Target != nil {
		t := *m.Target
		c.Target = &t
	}
	if m.StartTime != nil {
		t := *m.StartTime
		c.StartTime = &t
	}
	if m.EndTime != nil {
		t := *m.EndTime
		c.EndTime = &t
	}
	return c
}
