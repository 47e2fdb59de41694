package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/Sumatoshi-tech/codepulse/internal/analysis"
	"github.com/Sumatoshi-tech/codepulse/internal/resultcache"
	"github.com/Sumatoshi-tech/codepulse/internal/worker"
	"github.com/Sumatoshi-tech/codepulse/pkg/version"
)

// MemoryStats is the process memory block of the status payload.
type MemoryStats struct {
	AllocBytes      uint64 `json:"allocBytes"`
	TotalAllocBytes uint64 `json:"totalAllocBytes"`
	SysBytes        uint64 `json:"sysBytes"`
	HeapInuseBytes  uint64 `json:"heapInuseBytes"`
	NumGC           uint32 `json:"numGC"`
	Goroutines      int    `json:"goroutines"`
}

// StatusPayload is the /api/status response body.
type StatusPayload struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptimeSeconds"`
	Pool          worker.PoolStatus `json:"pool"`
	Cache         resultcache.Stats `json:"cache"`
	Memory        MemoryStats       `json:"memory"`
}

// AgentStatus is one worker's entry in the /api/agents/status response.
type AgentStatus struct {
	Name      string           `json:"name"`
	Kind      analysis.Kind    `json:"kind"`
	Status    worker.Status    `json:"status"`
	LastRunAt string           `json:"lastRunAt,omitempty"`
	Stats     worker.PerfStats `json:"stats"`
}

// handleStatus serves the aggregate service snapshot.
func (s *Server) handleStatus(rw http.ResponseWriter, hr *http.Request) {
	if hr.Method != http.MethodGet {
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)

		return
	}

	writeJSON(rw, s.logger, s.statusSnapshot())
}

// statusSnapshot assembles the current pool, cache, and memory state.
func (s *Server) statusSnapshot() StatusPayload {
	var mem runtime.MemStats

	runtime.ReadMemStats(&mem)

	return StatusPayload{
		Status:        "ok",
		Version:       version.Version,
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Pool:          s.pool.Status(),
		Cache:         s.cache.Stats(),
		Memory: MemoryStats{
			AllocBytes:      mem.Alloc,
			TotalAllocBytes: mem.TotalAlloc,
			SysBytes:        mem.Sys,
			HeapInuseBytes:  mem.HeapInuse,
			NumGC:           mem.NumGC,
			Goroutines:      runtime.NumGoroutine(),
		},
	}
}

// handleAgentStatus serves per-worker detail keyed by kind.
func (s *Server) handleAgentStatus(rw http.ResponseWriter, hr *http.Request) {
	if hr.Method != http.MethodGet {
		http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)

		return
	}

	pool := s.pool.Status()

	agents := make(map[analysis.Kind]AgentStatus, len(pool.Workers))
	for kind, snap := range pool.Workers {
		agent := AgentStatus{
			Name:   snap.Name,
			Kind:   kind,
			Status: snap.Status,
			Stats:  snap.Stats,
		}

		if !snap.LastRunAt.IsZero() {
			agent.LastRunAt = snap.LastRunAt.UTC().Format(time.RFC3339)
		}

		agents[kind] = agent
	}

	writeJSON(rw, s.logger, map[string]any{
		"agents":      agents,
		"initialized": pool.Initialized,
	})
}

func writeJSON(rw http.ResponseWriter, logger *slog.Logger, payload any) {
	rw.Header().Set("Content-Type", "application/json")

	err := json.NewEncoder(rw).Encode(payload)
	if err != nil {
		logger.Warn("encode response failed", "error", err)
	}
}
