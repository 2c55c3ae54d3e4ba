package monitoring

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Metrics 指标收集器
type Metrics struct {
	// HTTP 请求
	RequestsTotal       uint64
	RequestsFailed      uint64
	RequestLatencySum   uint64
	RequestLatencyCount uint64

	// 会话
	SessionsStarted      uint64
	SessionsReused       uint64
	SessionsAutoAssigned uint64
	SessionsQueued       uint64
	SessionsAssigned     uint64
	SessionsEnded        uint64

	// 消息
	MessagesSent uint64
	MessagesRead uint64

	// 容量冲突 (CAS 失败)
	SlotConflicts uint64

	// 推送
	WSConnections int64
	WSDropped     uint64

	EventsDropped uint64
	RateLimited   uint64
	ErrorsTotal   uint64

	// 启动时间
	StartTime time.Time
}

// Monitor 性能监控器
type Monitor struct {
	metrics *Metrics
	logger  *zap.Logger
	mu      sync.RWMutex

	history      []MetricsSnapshot
	historyLimit int
}

// MetricsSnapshot 指标快照
type MetricsSnapshot struct {
	Timestamp      time.Time `json:"timestamp"`
	MessagesSent   uint64    `json:"messages_sent"`
	SessionsQueued uint64    `json:"sessions_queued"`
	WSConnections  int64     `json:"ws_connections"`
	AvgLatencyMs   float64   `json:"avg_latency_ms"`
	Goroutines     int       `json:"goroutines"`
}

// NewMonitor 创建监控器
func NewMonitor(logger *zap.Logger) *Monitor {
	return &Monitor{
		metrics: &Metrics{
			StartTime: time.Now(),
		},
		logger:       logger.With(zap.String("component", "monitor")),
		history:      make([]MetricsSnapshot, 0, 60),
		historyLimit: 60,
	}
}

// 计数方法
func (m *Monitor) IncRequestTotal()        { atomic.AddUint64(&m.metrics.RequestsTotal, 1) }
func (m *Monitor) IncRequestFailed()       { atomic.AddUint64(&m.metrics.RequestsFailed, 1) }
func (m *Monitor) IncSessionStarted()      { atomic.AddUint64(&m.metrics.SessionsStarted, 1) }
func (m *Monitor) IncSessionReused()       { atomic.AddUint64(&m.metrics.SessionsReused, 1) }
func (m *Monitor) IncSessionAutoAssigned() { atomic.AddUint64(&m.metrics.SessionsAutoAssigned, 1) }
func (m *Monitor) IncSessionQueued()       { atomic.AddUint64(&m.metrics.SessionsQueued, 1) }
func (m *Monitor) IncSessionAssigned()     { atomic.AddUint64(&m.metrics.SessionsAssigned, 1) }
func (m *Monitor) IncSessionEnded()        { atomic.AddUint64(&m.metrics.SessionsEnded, 1) }
func (m *Monitor) IncMessageSent()         { atomic.AddUint64(&m.metrics.MessagesSent, 1) }
func (m *Monitor) IncSlotConflict()        { atomic.AddUint64(&m.metrics.SlotConflicts, 1) }
func (m *Monitor) IncWSDropped()           { atomic.AddUint64(&m.metrics.WSDropped, 1) }
func (m *Monitor) IncEventDropped()        { atomic.AddUint64(&m.metrics.EventsDropped, 1) }
func (m *Monitor) IncRateLimited()         { atomic.AddUint64(&m.metrics.RateLimited, 1) }
func (m *Monitor) IncError()               { atomic.AddUint64(&m.metrics.ErrorsTotal, 1) }

func (m *Monitor) AddMessagesRead(n int64) {
	if n > 0 {
		atomic.AddUint64(&m.metrics.MessagesRead, uint64(n))
	}
}

func (m *Monitor) AddWSConnections(delta int64) {
	atomic.AddInt64(&m.metrics.WSConnections, delta)
}

func (m *Monitor) RecordRequestLatency(d time.Duration) {
	atomic.AddUint64(&m.metrics.RequestLatencySum, uint64(d.Nanoseconds()))
	atomic.AddUint64(&m.metrics.RequestLatencyCount, 1)
}

func (m *Monitor) avgLatencyMs() float64 {
	if count := atomic.LoadUint64(&m.metrics.RequestLatencyCount); count > 0 {
		return float64(atomic.LoadUint64(&m.metrics.RequestLatencySum)) / float64(count) / 1e6
	}
	return 0
}

// GetStats 获取当前统计
func (m *Monitor) GetStats() map[string]interface{} {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return map[string]interface{}{
		"uptime_seconds":         time.Since(m.metrics.StartTime).Seconds(),
		"requests_total":         atomic.LoadUint64(&m.metrics.RequestsTotal),
		"requests_failed":        atomic.LoadUint64(&m.metrics.RequestsFailed),
		"sessions_started":       atomic.LoadUint64(&m.metrics.SessionsStarted),
		"sessions_reused":        atomic.LoadUint64(&m.metrics.SessionsReused),
		"sessions_auto_assigned": atomic.LoadUint64(&m.metrics.SessionsAutoAssigned),
		"sessions_queued":        atomic.LoadUint64(&m.metrics.SessionsQueued),
		"sessions_assigned":      atomic.LoadUint64(&m.metrics.SessionsAssigned),
		"sessions_ended":         atomic.LoadUint64(&m.metrics.SessionsEnded),
		"messages_sent":          atomic.LoadUint64(&m.metrics.MessagesSent),
		"messages_read":          atomic.LoadUint64(&m.metrics.MessagesRead),
		"slot_conflicts":         atomic.LoadUint64(&m.metrics.SlotConflicts),
		"ws_connections":         atomic.LoadInt64(&m.metrics.WSConnections),
		"ws_dropped":             atomic.LoadUint64(&m.metrics.WSDropped),
		"events_dropped":         atomic.LoadUint64(&m.metrics.EventsDropped),
		"rate_limited":           atomic.LoadUint64(&m.metrics.RateLimited),
		"errors_total":           atomic.LoadUint64(&m.metrics.ErrorsTotal),
		"avg_latency_ms":         m.avgLatencyMs(),
		"memory_mb":              float64(memStats.Alloc) / 1024 / 1024,
		"goroutines":             runtime.NumGoroutine(),
	}
}

// Snapshot 创建快照并保存
func (m *Monitor) Snapshot() MetricsSnapshot {
	snapshot := MetricsSnapshot{
		Timestamp:      time.Now(),
		MessagesSent:   atomic.LoadUint64(&m.metrics.MessagesSent),
		SessionsQueued: atomic.LoadUint64(&m.metrics.SessionsQueued),
		WSConnections:  atomic.LoadInt64(&m.metrics.WSConnections),
		AvgLatencyMs:   m.avgLatencyMs(),
		Goroutines:     runtime.NumGoroutine(),
	}

	m.mu.Lock()
	m.history = append(m.history, snapshot)
	if len(m.history) > m.historyLimit {
		m.history = m.history[1:]
	}
	m.mu.Unlock()

	return snapshot
}

// GetHistory 获取历史快照
func (m *Monitor) GetHistory() []MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]MetricsSnapshot, len(m.history))
	copy(result, m.history)
	return result
}

// StartCollector 启动定期收集
func (m *Monitor) StartCollector(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Snapshot()
		}
	}
}

// DashboardData 仪表盘数据
type DashboardData struct {
	Stats   map[string]interface{} `json:"stats"`
	History []MetricsSnapshot      `json:"history"`
}

// GetDashboardData 获取仪表盘数据
func (m *Monitor) GetDashboardData() *DashboardData {
	return &DashboardData{
		Stats:   m.GetStats(),
		History: m.GetHistory(),
	}
}
