package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrNotConfigured is returned when no relayer URL is set.
var ErrNotConfigured = errors.New("chain relayer not configured")

// TokenEnv names the environment variable holding the relayer bearer token.
const TokenEnv = "CHAIN_RELAY_TOKEN"

// RelayClient implements Client over a JSON HTTP relayer.
type RelayClient struct {
	baseURL    string
	token      string
	httpClient *http.Client

	mu    sync.Mutex
	stats Stats
}

type relayRequest struct {
	Method string            `json:"method"`
	Params map[string]string `json:"params"`
}

type relayResponse struct {
	TxHash string `json:"txHash"`
	Error  string `json:"error,omitempty"`
}

// NewRelayClient creates a relayer adapter. The token is read from CHAIN_RELAY_TOKEN.
func NewRelayClient(baseURL string, timeout time.Duration) *RelayClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RelayClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      os.Getenv(TokenEnv),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name returns the backend name.
func (c *RelayClient) Name() string {
	return "HTTP relayer " + c.baseURL
}

// IsAvailable checks if a relayer URL is configured.
func (c *RelayClient) IsAvailable() bool {
	return c.baseURL != ""
}

// AssignMission submits an assignMission transaction.
func (c *RelayClient) AssignMission(ctx context.Context, droneAddress, missionID string) (string, error) {
	return c.call(ctx, relayRequest{
		Method: "assignMission",
		Params: map[string]string{"drone": droneAddress, "missionId": missionID},
	})
}

// Interact submits an interact transaction.
func (c *RelayClient) Interact(ctx context.Context, targetAddress, message string) (string, error) {
	return c.call(ctx, relayRequest{
		Method: "interact",
		Params: map[string]string{"target": targetAddress, "message": message},
	})
}

// GetStats returns a copy of the usage counters.
func (c *RelayClient) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *RelayClient) call(ctx context.Context, req relayRequest) (txID string, err error) {
	if !c.IsAvailable() {
		return "", ErrNotConfigured
	}

	start := time.Now()
	defer func() {
		c.mu.Lock()
		c.stats.TotalRequests++
		c.stats.TotalLatency += time.Since(start)
		if err != nil {
			c.stats.Failures++
		} else {
			c.stats.LastTxID = txID
		}
		c.mu.Unlock()
	}()

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transactions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var out relayResponse
	if resp.StatusCode != http.StatusOK {
		if json.Unmarshal(respBody, &out) == nil && out.Error != "" {
			return "", fmt.Errorf("relayer error (status %d): %s", resp.StatusCode, out.Error)
		}
		return "", fmt.Errorf("relayer error (status %d): %s", resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if out.TxHash == "" {
		return "", errors.New("relayer returned no transaction hash")
	}
	return out.TxHash, nil
}
