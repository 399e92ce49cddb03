package server

import (
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/wildside/ghillie/internal/database"
)

// SystemHandlers handles health and system status endpoints
type SystemHandlers struct {
	log       zerolog.Logger
	dataDir   string
	databases map[string]*database.DB
	startTime time.Time
}

// NewSystemHandlers creates system handlers
func NewSystemHandlers(log zerolog.Logger, dataDir string, databases map[string]*database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("component", "system_handlers").Logger(),
		dataDir:   dataDir,
		databases: databases,
		startTime: time.Now(),
	}
}

// HandleHealth reports liveness plus a per-database integrity check.
// Any failing database degrades the whole response to 503.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.databases))
	healthy := true
	for name, db := range h.databases {
		if err := db.HealthCheck(r.Context()); err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Database health check failed")
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, h.log, code, map[string]interface{}{
		"status":    status,
		"service":   "ghillie",
		"databases": checks,
	})
}

// DatabaseStatus summarises one database's on-disk footprint
type DatabaseStatus struct {
	SizeBytes    int64 `json:"size_bytes"`
	WALSizeBytes int64 `json:"wal_size_bytes"`
	PageCount    int64 `json:"page_count"`
}

// SystemStatus is the response body for GET /api/system/status
type SystemStatus struct {
	UptimeSeconds int64                     `json:"uptime_seconds"`
	CPUPercent    float64                   `json:"cpu_percent"`
	MemoryPercent float64                   `json:"memory_percent"`
	Goroutines    int                       `json:"goroutines"`
	DataDir       string                    `json:"data_dir"`
	Databases     map[string]DatabaseStatus `json:"databases"`
}

// HandleSystemStatus returns process and database statistics
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	status := SystemStatus{
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		DataDir:       h.dataDir,
		Databases:     make(map[string]DatabaseStatus, len(h.databases)),
	}

	if percentages, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(percentages) > 0 {
		status.CPUPercent = percentages[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		status.MemoryPercent = vm.UsedPercent
	}

	for _, name := range sortedDatabaseNames(h.databases) {
		stats, err := h.databases[name].GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Failed to read database stats")
			continue
		}
		status.Databases[name] = DatabaseStatus{
			SizeBytes:    stats.SizeBytes,
			WALSizeBytes: stats.WALSizeBytes,
			PageCount:    stats.PageCount,
		}
	}

	writeJSON(w, h.log, http.StatusOK, status)
}

func sortedDatabaseNames(databases map[string]*database.DB) []string {
	names := make([]string, 0, len(databases))
	for name := range databases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
