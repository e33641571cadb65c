// Package proofset models storage proofs attached to completed missions.
package proofset

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"lukechampine.com/blake3"

	"github.com/monyverse/cyberpunk/internal/domain/mission"
)

// Status of a proof set.
type Status string

const (
	StatusVerified Status = "verified"
	StatusPending  Status = "pending"
	StatusFailed   Status = "failed"
)

// CreatedAtLayout is the wire format of CreatedAt.
const CreatedAtLayout = "2006-01-02 15:04"

// ProofSet is a sealed record proving a piece of work happened.
type ProofSet struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Status      Status `json:"status"`
	CreatedAt   string `json:"createdAt"`
	Size        string `json:"size"`
	Hash        string `json:"hash"`
	Description string `json:"description"`
	MissionID   string `json:"missionId,omitempty"`
}

// Genesis is the record every registry starts with.
func Genesis() ProofSet {
	return ProofSet{
		ID:          "1",
		Name:        "Drone Mission Proof",
		Type:        "Mission Verification",
		Status:      StatusVerified,
		CreatedAt:   "2024-01-15 14:30",
		Size:        "2.5 MB",
		Hash:        "0x1234567890abcdef...",
		Description: "Proof of successful drone mission completion",
	}
}

// IDFor is the proof set id derived from a mission id.
func IDFor(missionID string) string {
	return "proof-" + missionID
}

// Seal hashes the mission's JSON form into a verified proof set.
func Seal(m mission.Mission, now time.Time) (ProofSet, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return ProofSet{}, fmt.Errorf("failed to encode mission %s: %w", m.ID, err)
	}
	sum := blake3.Sum256(body)
	return ProofSet{
		ID:          IDFor(m.ID),
		Name:        "Mission " + m.ID,
		Type:        "Mission Verification",
		Status:      StatusVerified,
		CreatedAt:   now.UTC().Format(CreatedAtLayout),
		Size:        humanize.Bytes(uint64(len(body))),
		Hash:        "0x" + hex.EncodeToString(sum[:]),
		Description: "Proof of " + string(m.Type) + " mission completion: " + m.Description,
		MissionID:   m.ID,
	}, nil
}

// Verify recomputes the digest of m and compares it with the sealed hash.
func Verify(p ProofSet, m mission.Mission) bool {
	body, err := json.Marshal(m)
	if err != nil {
		return false
	}
	sum := blake3.Sum256(body)
	return p.Hash == "0x"+hex.EncodeToString(sum[:])
}

// DownloadURL is where the proof document can be fetched.
func DownloadURL(base, id string) string {
	return fmt.Sprintf("%s/proofs/%s.pdf", base, id)
}

// ShareURL is the public link for a proof set.
func ShareURL(base, id string) string {
	return fmt.Sprintf("%s/proofsets/%s/share", base, id)
}
