package server

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/divtrack/internal/database"
	"github.com/aristath/divtrack/internal/scheduler"
)

// JobRunner reports and triggers registered jobs
type JobRunner interface {
	Status() []scheduler.JobStatus
	RunByName(name string) error
}

// SystemHandlers serves process, host and database status
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	startupTime time.Time
	databases   map[string]*database.DB
	jobs        JobRunner
}

// NewSystemHandlers creates a new system handlers instance. jobs may be nil.
func NewSystemHandlers(log zerolog.Logger, dataDir string, databases map[string]*database.DB, jobs JobRunner) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("handler", "system").Logger(),
		dataDir:     dataDir,
		startupTime: time.Now(),
		databases:   databases,
		jobs:        jobs,
	}
}

// DatabaseStatus is the status of one database
type DatabaseStatus struct {
	Name    string          `json:"name"`
	Healthy bool            `json:"healthy"`
	Error   string          `json:"error,omitempty"`
	Stats   *database.Stats `json:"stats,omitempty"`
}

// SystemStatusResponse is returned by GET /api/system/status
type SystemStatusResponse struct {
	Status        string           `json:"status"` // "healthy" or "degraded"
	UptimeSeconds int64            `json:"uptime_seconds"`
	CPUPercent    float64          `json:"cpu_percent"`
	MemoryPercent float64          `json:"memory_percent"`
	DiskFreeBytes uint64           `json:"disk_free_bytes"`
	DiskPercent   float64          `json:"disk_percent"`
	Databases     []DatabaseStatus `json:"databases"`
	Timestamp     time.Time        `json:"timestamp"`
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	resp := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startupTime).Seconds()),
		Timestamp:     time.Now().UTC(),
	}

	resp.CPUPercent, resp.MemoryPercent = h.getSystemStats()

	if usage, err := disk.Usage(h.dataDir); err == nil {
		resp.DiskFreeBytes = usage.Free
		resp.DiskPercent = usage.UsedPercent
	} else {
		h.log.Warn().Err(err).Msg("Failed to get disk usage")
	}

	names := make([]string, 0, len(h.databases))
	for name := range h.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		status := DatabaseStatus{Name: name, Healthy: true}
		db := h.databases[name]
		if err := db.QuickCheck(r.Context()); err != nil {
			status.Healthy = false
			status.Error = err.Error()
			resp.Status = "degraded"
		} else if stats, err := db.GetStats(); err == nil {
			status.Stats = stats
		}
		resp.Databases = append(resp.Databases, status)
	}

	writeJSON(w, http.StatusOK, resp, h.log)
}

// HandleListJobs handles GET /api/system/jobs
func (h *SystemHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := []scheduler.JobStatus{}
	if h.jobs != nil {
		jobs = h.jobs.Status()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs}, h.log)
}

// HandleRunJob handles POST /api/system/jobs/{name}. The job runs
// synchronously and its error is reported in the response.
func (h *SystemHandlers) HandleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if h.jobs == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no jobs registered"}, h.log)
		return
	}

	start := time.Now()
	err := h.jobs.RunByName(name)
	switch {
	case errors.Is(err, scheduler.ErrUnknownJob):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()}, h.log)
	case err != nil:
		h.log.Error().Err(err).Str("job", name).Msg("Manually triggered job failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"job": name, "error": err.Error()}, h.log)
	default:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"job":         name,
			"status":      "completed",
			"duration_ms": time.Since(start).Milliseconds(),
		}, h.log)
	}
}

// getSystemStats samples CPU over 100ms and reads memory usage
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(cpuPercent) == 0 {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuPercent[0], 0
	}

	return cpuPercent[0], memStat.UsedPercent
}
