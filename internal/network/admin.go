package network

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/monyverse/cyberpunk/internal/engine"
)

// SnapshotFunc persists the world now and returns the tick it captured.
type SnapshotFunc func(ctx context.Context) (int64, error)

// Admin serves local-only maintenance endpoints.
type Admin struct {
	engine   *engine.Engine
	snapshot SnapshotFunc
}

func NewAdmin(eng *engine.Engine, snapshot SnapshotFunc) *Admin {
	return &Admin{engine: eng, snapshot: snapshot}
}

// RegisterRoutes sets up the admin routes.
func (ad *Admin) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/admin/v1/state", ad.HandleState)
	mux.HandleFunc("/admin/v1/snapshot", ad.HandleSnapshot)
}

// HandleState reports the tick and fleet counts.
// GET /admin/v1/state
func (ad *Admin) HandleState(rw http.ResponseWriter, r *http.Request) {
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(map[string]any{
		"tick":    ad.engine.CurrentTick(),
		"running": ad.engine.Running(),
		"counts":  ad.engine.World().Counts(),
		"events":  ad.engine.GetEventLog().LastSeq(),
	})
}

// HandleSnapshot writes a snapshot immediately.
// POST /admin/v1/snapshot
func (ad *Admin) HandleSnapshot(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	tick, err := ad.snapshot(ctx)
	rw.Header().Set("Content-Type", "application/json")
	if err != nil {
		rw.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "tick": tick, "error": err.Error()})
		return
	}
	_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": tick})
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
