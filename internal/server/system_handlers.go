package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/qumatch/internal/database"
	"github.com/aristath/qumatch/internal/database/repositories"
)

// SystemHandlers serves process and storage diagnostics
type SystemHandlers struct {
	log       zerolog.Logger
	runsDB    *database.DB
	repo      *repositories.RunRepository
	startedAt time.Time
}

// NewSystemHandlers creates system handlers
func NewSystemHandlers(log zerolog.Logger, runsDB *database.DB, repo *repositories.RunRepository) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("component", "system_handlers").Logger(),
		runsDB:    runsDB,
		repo:      repo,
		startedAt: time.Now(),
	}
}

// handleStatus handles GET /api/system/status
func (h *SystemHandlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	cpuAvg, ramPercent := h.resourceUsage()

	status := map[string]interface{}{
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"cpu_percent":    cpuAvg,
		"ram_percent":    ramPercent,
	}

	if stats, err := h.runsDB.GetStats(); err == nil {
		status["database"] = map[string]interface{}{
			"size_bytes":     stats.SizeBytes,
			"wal_size_bytes": stats.WALSizeBytes,
			"page_count":     stats.PageCount,
		}
	} else {
		h.log.Warn().Err(err).Msg("Failed to get database stats")
	}

	if counts, err := h.repo.CountByStatus(); err == nil {
		status["runs"] = counts
	} else {
		h.log.Warn().Err(err).Msg("Failed to count runs")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode status response")
	}
}

// resourceUsage samples CPU and memory usage
func (h *SystemHandlers) resourceUsage() (float64, float64) {
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
