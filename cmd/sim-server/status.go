package main

import (
	"github.com/monyverse/cyberpunk/internal/infra/chain"
	"github.com/monyverse/cyberpunk/internal/platform/optimization"
)

// metricsExtra adds process details to /metrics.json. When the analyzer has notes, the
// preset it would grow into is reported under suggested_tuning.
func metricsExtra(profile string, tuning *optimization.Config, clients func() int, relay *chain.RelayClient) func(map[string]interface{}) map[string]interface{} {
	return func(snapshot map[string]interface{}) map[string]interface{} {
		rec := optimization.Analyze(snapshot)
		out := map[string]interface{}{
			"profile":         profile,
			"clients":         clients(),
			"recommendations": rec,
		}
		if len(rec.Notes) > 0 {
			next := *tuning
			out["suggested_tuning"] = optimization.ApplyRecommendations(&next, rec)
		}
		if relay != nil {
			out["relay"] = relay.GetStats()
		}
		return out
	}
}
