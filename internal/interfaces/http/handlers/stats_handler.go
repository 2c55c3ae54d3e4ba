package handlers

import (
	"runtime"
	"time"

	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/monitoring"
	domainErrors "github.com/eben2468/srcwebsite-sub012/pkg/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dashboard 监控数据源
type Dashboard interface {
	GetDashboardData() *monitoring.DashboardData
}

// ConnCounter reports live push connections.
type ConnCounter interface {
	ClientCount() int
}

// StatsHandler 运营统计
type StatsHandler struct {
	monitor Dashboard
	hub     ConnCounter
	logger  *zap.Logger
}

// NewStatsHandler 创建统计处理器; hub 可为 nil
func NewStatsHandler(monitor Dashboard, hub ConnCounter, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{
		monitor: monitor,
		hub:     hub,
		logger:  logger,
	}
}

// GetStats 仪表盘 JSON (staff only)
// GET /api/v1/stats
func (h *StatsHandler) GetStats(c *gin.Context) {
	if !PrincipalFrom(c).IsElevated() {
		Fail(c, h.logger, domainErrors.NewForbiddenError("staff access required"))
		return
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	body := gin.H{
		"dashboard": h.monitor.GetDashboardData(),
		"runtime": gin.H{
			"go_version":    runtime.Version(),
			"num_goroutine": runtime.NumGoroutine(),
			"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
			"num_gc":        memStats.NumGC,
		},
		"timestamp": time.Now().Unix(),
	}
	if h.hub != nil {
		body["ws_clients"] = h.hub.ClientCount()
	}
	OK(c, body)
}
