package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/mem"

	"image-pipeline-server/internal/platform/logging"
	"image-pipeline-server/internal/platform/observability"
	httptransport "image-pipeline-server/internal/transport/http"
)

// InFlightCounter reports how many images are being processed right now.
type InFlightCounter interface {
	InFlight() int64
}

// StatsSource reports storage statistics.
type StatsSource interface {
	Stats(ctx context.Context) (map[string]any, error)
}

type Options struct {
	Pipeline  InFlightCounter
	Manifests StatsSource
	Storage   string
	Logger    *logging.Logger
}

// Service serves the liveness endpoint.
type Service struct {
	pipeline  InFlightCounter
	manifests StatsSource
	storage   string
	logger    *logging.Logger
	started   time.Time
}

func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = logging.DefaultLogger
	}
	return &Service{
		pipeline:  opts.Pipeline,
		manifests: opts.Manifests,
		storage:   opts.Storage,
		logger:    logger,
		started:   time.Now(),
	}
}

// Register mounts GET /health.
func (s *Service) Register(_ context.Context, router *gin.RouterGroup) error {
	router.GET("/health", s.handleHealth)
	return nil
}

// Status is the body of GET /api/health.
type Status struct {
	Status     string             `json:"status"`
	Uptime     string             `json:"uptime"`
	InFlight   int64              `json:"in_flight"`
	Storage    string             `json:"storage,omitempty"`
	Goroutines int                `json:"goroutines"`
	Memory     *MemoryStatus      `json:"memory,omitempty"`
	Manifests  map[string]any     `json:"manifests,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// MemoryStatus is host memory as seen by gopsutil.
type MemoryStatus struct {
	TotalMB     uint64  `json:"total_mb"`
	UsedMB      uint64  `json:"used_mb"`
	UsedPercent float64 `json:"used_percent"`
}

// @Summary Service health
// @Tags Health
// @Produce json
// @Success 200 {object} httptransport.APIResponse{data=Status}
// @Router /api/health [get]
func (s *Service) handleHealth(c *gin.Context) {
	ctx := c.Request.Context()
	status := Status{
		Status:     "ok",
		Uptime:     time.Since(s.started).Truncate(time.Second).String(),
		Storage:    s.storage,
		Goroutines: runtime.NumGoroutine(),
		Metrics:    observability.Snapshot("pipeline."),
	}
	if s.pipeline != nil {
		status.InFlight = s.pipeline.InFlight()
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		status.Memory = &MemoryStatus{
			TotalMB:     vm.Total >> 20,
			UsedMB:      vm.Used >> 20,
			UsedPercent: vm.UsedPercent,
		}
	} else {
		s.logger.DebugTag("HEALTH", "memory stats unavailable: %v", err)
	}

	if s.manifests != nil {
		stats, err := s.manifests.Stats(ctx)
		if err != nil {
			s.logger.WarnTag("HEALTH", "manifest stats failed: %v", err)
			status.Status = "degraded"
		} else {
			status.Manifests = stats
		}
	}

	httptransport.RespondSuccess(c, http.StatusOK, status, status.Status)
}
