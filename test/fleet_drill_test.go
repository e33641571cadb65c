package test

import (
	"context"
	"testing"

	"github.com/monyverse/cyberpunk/internal/platform/logger"
)

func TestFleetSuite(t *testing.T) {
	suite := NewFleetSuite(logger.NewLogger())
	suite.RunAll(context.Background())

	results := suite.GetResults()
	if len(results) != suite.Len() {
		t.Fatalf("expected %d drills, got %d", suite.Len(), len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("%s: %s", r.ScenarioName, r.Reason)
		}
	}
}

func TestRunAllStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	suite := NewFleetSuite(logger.NewLogger())
	suite.RunAll(ctx)
	if n := len(suite.GetResults()); n != 0 {
		t.Errorf("cancelled suite ran %d drills", n)
	}
}
