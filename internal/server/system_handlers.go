package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/openlend/keel/internal/scheduler"
)

// SystemHandlers serves process health data and manual job triggers
type SystemHandlers struct {
	log       zerolog.Logger
	dataDir   string
	startedAt time.Time

	reviewJob      scheduler.Job
	warningScanJob scheduler.Job
	backupJob      scheduler.Job
}

// SystemInfoResponse describes the running process and its host
type SystemInfoResponse struct {
	UptimeSeconds int64   `json:"uptime_seconds"`
	GoVersion     string  `json:"go_version"`
	NumGoroutines int     `json:"num_goroutines"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	DataDirSizeMB float64 `json:"data_dir_size_mb"`
}

// NewSystemHandlers creates system handlers
func NewSystemHandlers(log zerolog.Logger, dataDir string) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		dataDir:   dataDir,
		startedAt: time.Now(),
	}
}

// SetJobs registers job instances for manual triggering
func (h *SystemHandlers) SetJobs(review, warningScan, backup scheduler.Job) {
	h.reviewJob = review
	h.warningScanJob = warningScan
	h.backupJob = backup
}

// HandleSystemInfo reports process and host statistics
// GET /api/system/info
func (h *SystemHandlers) HandleSystemInfo(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.systemStats()

	h.writeJSON(w, SystemInfoResponse{
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		DataDirSizeMB: h.dirSize(h.dataDir),
	})
}

// HandleTriggerReview runs the portfolio review immediately
// POST /api/system/jobs/portfolio-review
func (h *SystemHandlers) HandleTriggerReview(w http.ResponseWriter, r *http.Request) {
	h.triggerJob(w, h.reviewJob, "portfolio review")
}

// HandleTriggerWarningScan runs the early warning scan immediately
// POST /api/system/jobs/early-warning-scan
func (h *SystemHandlers) HandleTriggerWarningScan(w http.ResponseWriter, r *http.Request) {
	h.triggerJob(w, h.warningScanJob, "early warning scan")
}

// HandleTriggerBackup runs the backup job immediately
// POST /api/system/jobs/backup
func (h *SystemHandlers) HandleTriggerBackup(w http.ResponseWriter, r *http.Request) {
	h.triggerJob(w, h.backupJob, "backup")
}

func (h *SystemHandlers) triggerJob(w http.ResponseWriter, job scheduler.Job, name string) {
	if job == nil {
		h.log.Warn().Str("job", name).Msg("Job not registered")
		h.writeJSON(w, map[string]string{
			"status":  "error",
			"message": name + " job not registered",
		})
		return
	}

	h.log.Info().Str("job", name).Msg("Manual job trigger")

	if err := job.Run(); err != nil {
		h.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]string{
		"status":  "success",
		"message": name + " completed",
	})
}

// systemStats calculates CPU and RAM usage percentages. Uses a 100ms
// sampling interval so the endpoint stays fast.
func (h *SystemHandlers) systemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// dirSize calculates total size of a directory in MB
func (h *SystemHandlers) dirSize(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})

	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
