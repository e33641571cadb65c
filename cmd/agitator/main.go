// Package main - agitator
// Load generator for the fleet server: websocket subscribers sending commands
// plus REST clients hammering /api.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/monyverse/cyberpunk/internal/protocol"
)

// Config for the agitator
type Config struct {
	ServerURL      string
	APIURL         string
	NumClients     int
	NumRESTClients int
	ActionInterval time.Duration
	TestDuration   time.Duration
	Seed           int64
}

// Stats tracks performance metrics
type Stats struct {
	MessagesSent     int64
	MessagesReceived int64
	FleetFrames      int64
	CommandErrors    int64
	RESTRequests     int64
	RESTThrottled    int64
	Errors           int64
	Latencies        []time.Duration
	mu               sync.Mutex
}

func (s *Stats) observe(d time.Duration) {
	s.mu.Lock()
	s.Latencies = append(s.Latencies, d)
	s.mu.Unlock()
}

var missionTypes = []string{"surveillance", "delivery", "mapping", "custom"}

func main() {
	serverURL := flag.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	apiURL := flag.String("api", "http://localhost:8080/api", "REST API base URL")
	numClients := flag.Int("clients", 50, "Number of concurrent websocket clients")
	numREST := flag.Int("rest", 5, "Number of concurrent REST clients")
	interval := flag.Duration("interval", 100*time.Millisecond, "Action interval per client")
	duration := flag.Duration("duration", 60*time.Second, "Test duration")
	seed := flag.Int64("seed", time.Now().UnixNano(), "RNG seed")
	flag.Parse()

	config := Config{
		ServerURL:      *serverURL,
		APIURL:         strings.TrimRight(*apiURL, "/"),
		NumClients:     *numClients,
		NumRESTClients: *numREST,
		ActionInterval: *interval,
		TestDuration:   *duration,
		Seed:           *seed,
	}

	fmt.Println("=========================================")
	fmt.Println("AGITATOR - fleet load generator")
	fmt.Println("=========================================")
	fmt.Printf("Server:   %s\n", config.ServerURL)
	fmt.Printf("API:      %s\n", config.APIURL)
	fmt.Printf("Clients:  %d ws + %d rest\n", config.NumClients, config.NumRESTClients)
	fmt.Printf("Interval: %v\n", config.ActionInterval)
	fmt.Printf("Duration: %v\n", config.TestDuration)
	fmt.Println("=========================================")

	ctx, cancel := context.WithTimeout(context.Background(), config.TestDuration)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	stats := runStressTest(ctx, config)
	printResults(stats, config)
}

func runStressTest(ctx context.Context, config Config) *Stats {
	stats := &Stats{
		Latencies: make([]time.Duration, 0, 10000),
	}

	var wg sync.WaitGroup

	fmt.Println("\nStarting clients...")

	for i := 0; i < config.NumClients; i++ {
		wg.Add(1)
		go func(clientID int) {
			defer wg.Done()
			runClient(ctx, clientID, config, stats)
		}(i)

		// Stagger client starts to avoid thundering herd
		time.Sleep(10 * time.Millisecond)
	}
	for i := 0; i < config.NumRESTClients; i++ {
		wg.Add(1)
		go func(clientID int) {
			defer wg.Done()
			runRESTClient(ctx, clientID, config, stats)
		}(i)
	}

	fmt.Printf("All %d clients started\n\n", config.NumClients+config.NumRESTClients)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Printf("Progress: Sent=%d Recv=%d Frames=%d REST=%d Throttled=%d Errors=%d\n",
					atomic.LoadInt64(&stats.MessagesSent),
					atomic.LoadInt64(&stats.MessagesReceived),
					atomic.LoadInt64(&stats.FleetFrames),
					atomic.LoadInt64(&stats.RESTRequests),
					atomic.LoadInt64(&stats.RESTThrottled),
					atomic.LoadInt64(&stats.Errors))
			}
		}
	}()

	wg.Wait()
	return stats
}

func runClient(ctx context.Context, clientID int, config Config, stats *Stats) {
	rng := rand.New(rand.NewSource(config.Seed + int64(clientID)))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.ServerURL, nil)
	if err != nil {
		log.Printf("Client %d: Connection failed: %v", clientID, err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	defer conn.Close()

	go func() {
		for {
			var env struct {
				Type string `json:"type"`
			}
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			atomic.AddInt64(&stats.MessagesReceived, 1)
			switch env.Type {
			case protocol.TypeFleet:
				atomic.AddInt64(&stats.FleetFrames, 1)
			case protocol.TypeError:
				atomic.AddInt64(&stats.CommandErrors, 1)
			}
		}
	}()

	ticker := time.NewTicker(config.ActionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			cmd := generateRandomCommand(rng)
			start := time.Now()
			if err := conn.WriteJSON(cmd); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				return
			}
			atomic.AddInt64(&stats.MessagesSent, 1)
			stats.observe(time.Since(start))
		}
	}
}

// generateRandomCommand mostly assigns seeded ids and occasionally toggles the clock.
func generateRandomCommand(rng *rand.Rand) protocol.Command {
	switch n := rng.Intn(20); {
	case n == 0:
		return protocol.Command{Type: protocol.CmdSimStop}
	case n < 3:
		return protocol.Command{Type: protocol.CmdSimStart}
	default:
		return protocol.Command{
			Type:      protocol.CmdAssign,
			DroneID:   fmt.Sprintf("drone-%d", 1+rng.Intn(3)),
			MissionID: fmt.Sprintf("mission-%d", 1+rng.Intn(4)),
			AgentID:   fmt.Sprintf("agent-%d", 1+rng.Intn(3)),
		}
	}
}

func runRESTClient(ctx context.Context, clientID int, config Config, stats *Stats) {
	rng := rand.New(rand.NewSource(config.Seed - int64(clientID) - 1))
	client := &http.Client{Timeout: 5 * time.Second}

	ticker := time.NewTicker(config.ActionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			req, err := generateRESTRequest(ctx, rng, config.APIURL)
			if err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				continue
			}
			start := time.Now()
			resp, err := client.Do(req)
			if err != nil {
				if ctx.Err() == nil {
					atomic.AddInt64(&stats.Errors, 1)
				}
				continue
			}
			resp.Body.Close()
			stats.observe(time.Since(start))
			atomic.AddInt64(&stats.RESTRequests, 1)
			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				atomic.AddInt64(&stats.RESTThrottled, 1)
			case resp.StatusCode >= 500:
				atomic.AddInt64(&stats.Errors, 1)
			}
		}
	}
}

func generateRESTRequest(ctx context.Context, rng *rand.Rand, base string) (*http.Request, error) {
	switch rng.Intn(5) {
	case 0:
		body, _ := json.Marshal(map[string]interface{}{
			"description": fmt.Sprintf("Agitator sweep %d", rng.Intn(10000)),
			"type":        missionTypes[rng.Intn(len(missionTypes))],
			"reward":      float64(10 + rng.Intn(90)),
			"xpReward":    1 + rng.Intn(20),
			"target": map[string]float64{
				"x": float64(rng.Intn(400) - 200),
				"y": 0,
				"z": float64(rng.Intn(400) - 200),
			},
		})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/missions", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	case 1:
		return http.NewRequestWithContext(ctx, http.MethodGet, base+"/agents", nil)
	case 2:
		return http.NewRequestWithContext(ctx, http.MethodGet, base+"/fleet.geojson", nil)
	case 3:
		return http.NewRequestWithContext(ctx, http.MethodGet, base+"/sim/status", nil)
	default:
		return http.NewRequestWithContext(ctx, http.MethodGet, base+"/drones", nil)
	}
}

func printResults(stats *Stats, config Config) {
	fmt.Println("\n=========================================")
	fmt.Println("STRESS TEST RESULTS")
	fmt.Println("=========================================")

	sent := atomic.LoadInt64(&stats.MessagesSent)
	recv := atomic.LoadInt64(&stats.MessagesReceived)
	rest := atomic.LoadInt64(&stats.RESTRequests)
	throttled := atomic.LoadInt64(&stats.RESTThrottled)
	errs := atomic.LoadInt64(&stats.Errors)

	fmt.Printf("WS Sent:         %d\n", sent)
	fmt.Printf("WS Received:     %d\n", recv)
	fmt.Printf("Fleet Frames:    %d\n", atomic.LoadInt64(&stats.FleetFrames))
	fmt.Printf("Command Errors:  %d\n", atomic.LoadInt64(&stats.CommandErrors))
	fmt.Printf("REST Requests:   %d\n", rest)
	fmt.Printf("REST Throttled:  %d\n", throttled)
	fmt.Printf("Errors:          %d\n", errs)
	fmt.Printf("Error Rate:      %.2f%%\n", float64(errs)/float64(sent+rest+1)*100)

	throughput := float64(sent+rest) / config.TestDuration.Seconds()
	fmt.Printf("Throughput:      %.2f req/sec\n", throughput)

	stats.mu.Lock()
	latencies := stats.Latencies
	stats.mu.Unlock()
	if len(latencies) > 0 {
		var total time.Duration
		min, max := latencies[0], latencies[0]
		for _, l := range latencies {
			total += l
			if l < min {
				min = l
			}
			if l > max {
				max = l
			}
		}
		fmt.Printf("\nLatency:\n")
		fmt.Printf("  Min: %v\n", min)
		fmt.Printf("  Avg: %v\n", total/time.Duration(len(latencies)))
		fmt.Printf("  Max: %v\n", max)
	}

	fmt.Println("\n-----------------------------------------")
	switch rate := float64(errs) / float64(sent+rest+1); {
	case errs == 0 && recv > 0:
		fmt.Println("TEST PASSED: System handled the load")
	case rate < 0.05:
		fmt.Println("TEST WARNING: Some errors detected")
	default:
		fmt.Println("TEST FAILED: High error rate")
	}
	fmt.Println("=========================================")

	results := map[string]interface{}{
		"ws_sent":            sent,
		"ws_received":        recv,
		"rest_requests":      rest,
		"rest_throttled":     throttled,
		"errors":             errs,
		"throughput_per_sec": throughput,
		"config": map[string]interface{}{
			"clients":      config.NumClients,
			"rest_clients": config.NumRESTClients,
			"interval":     config.ActionInterval.String(),
			"duration":     config.TestDuration.String(),
			"seed":         config.Seed,
		},
	}

	jsonData, _ := json.MarshalIndent(results, "", "  ")
	if err := os.WriteFile("stress_test_results.json", jsonData, 0644); err != nil {
		log.Printf("Writing results: %v", err)
		return
	}
	fmt.Println("\nResults saved to stress_test_results.json")
}
