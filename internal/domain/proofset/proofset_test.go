package proofset

import (
	"strings"
	"testing"
	"time"

	"github.com/monyverse/cyberpunk/internal/domain/mission"
)

func TestSealAndVerify(t *testing.T) {
	m := mission.Mission{
		ID:          "mission-3",
		Type:        mission.TypeSurveillance,
		Status:      mission.StatusCompleted,
		Description: "Surveillance C",
		Reward:      120,
	}

	p, err := Seal(m, time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if p.ID != "proof-mission-3" || p.Status != StatusVerified {
		t.Errorf("Unexpected proof set: %+v", p)
	}
	if p.CreatedAt != "2024-01-15 14:30" {
		t.Errorf("Unexpected createdAt %q", p.CreatedAt)
	}
	if !strings.HasPrefix(p.Hash, "0x") || len(p.Hash) != 66 {
		t.Errorf("Expected 32-byte hex digest, got %q", p.Hash)
	}
	if !Verify(p, m) {
		t.Errorf("Expected proof to verify against its mission")
	}

	m.Reward = 121
	if Verify(p, m) {
		t.Errorf("Expected tampered mission to fail verification")
	}
}

func TestURLs(t *testing.T) {
	if got := DownloadURL("https://storage.example", "1"); got != "https://storage.example/proofs/1.pdf" {
		t.Errorf("Unexpected download url %q", got)
	}
	if got := ShareURL("https://app.example", "1"); got != "https://app.example/proofsets/1/share" {
		t.Errorf("Unexpected share url %q", got)
	}
}
