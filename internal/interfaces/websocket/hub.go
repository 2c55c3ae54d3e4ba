package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/eben2468/srcwebsite-sub012/internal/infrastructure/eventbus"
	"go.uber.org/zap"
)

// SendBuffer is the per-client queue length. A client that falls this far
// behind is disconnected and resyncs with its message watermark.
const SendBuffer = 256

// Relay carries encoded frames between gateway instances.
type Relay interface {
	Publish(ctx context.Context, payload []byte) error
}

// Metrics receives connection counters.
type Metrics interface {
	AddWSConnections(delta int64)
	IncWSDropped()
}

type delivery struct {
	sessionID uint
	data      []byte
}

// Hub WebSocket 连接中心, 按会话分组
type Hub struct {
	sessions   map[uint]map[*Client]struct{}
	broadcast  chan delivery
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     *zap.Logger
	mu         sync.RWMutex

	relay   Relay
	metrics Metrics
}

// NewHub 创建连接中心
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		sessions:   make(map[uint]map[*Client]struct{}),
		broadcast:  make(chan delivery, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With(zap.String("component", "ws-hub")),
	}
}

// SetRelay routes frames through another transport (Redis pub/sub) so
// every instance sees them. The relay's subscriber must call DeliverRaw.
func (h *Hub) SetRelay(r Relay) {
	h.relay = r
}

// SetMetrics 设置指标回调
func (h *Hub) SetMetrics(m Metrics) {
	h.metrics = m
}

// Attach subscribes the hub to every event on bus.
func (h *Hub) Attach(bus eventbus.Bus) func() {
	return bus.Subscribe(eventbus.Wildcard, h.HandleEvent)
}

// Run 运行连接中心, 直到 ctx 结束
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case c := <-h.register:
			h.mu.Lock()
			set, ok := h.sessions[c.SessionID]
			if !ok {
				set = make(map[*Client]struct{})
				h.sessions[c.SessionID] = set
			}
			set[c] = struct{}{}
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.AddWSConnections(1)
			}
			h.logger.Debug("Client connected",
				zap.Uint("session_id", c.SessionID),
				zap.Uint("user_id", c.UserID),
			)

		case c := <-h.unregister:
			h.remove(c)

		case d := <-h.broadcast:
			h.fanOut(d)
		}
	}
}

// fanOut 投递到会话内所有客户端; 缓冲已满的客户端被断开
func (h *Hub) fanOut(d delivery) {
	h.mu.RLock()
	var slow []*Client
	for c := range h.sessions[d.sessionID] {
		select {
		case c.send <- d.data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("Dropping slow client",
			zap.Uint("session_id", c.SessionID),
			zap.Uint("user_id", c.UserID),
		)
		if h.metrics != nil {
			h.metrics.IncWSDropped()
		}
		h.remove(c)
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	set, ok := h.sessions[c.SessionID]
	if ok {
		if _, present := set[c]; present {
			delete(set, c)
			close(c.send)
			if len(set) == 0 {
				delete(h.sessions, c.SessionID)
			}
		} else {
			ok = false
		}
	}
	h.mu.Unlock()

	if ok {
		if h.metrics != nil {
			h.metrics.AddWSConnections(-1)
		}
		h.logger.Debug("Client disconnected", zap.Uint("session_id", c.SessionID), zap.Uint("user_id", c.UserID))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, set := range h.sessions {
		for c := range set {
			close(c.send)
			if h.metrics != nil {
				h.metrics.AddWSConnections(-1)
			}
		}
		delete(h.sessions, id)
	}
}

// HandleEvent pushes a chat event to the session's subscribers, through
// the relay when one is configured.
func (h *Hub) HandleEvent(ctx context.Context, ev eventbus.Event) {
	f, ok, err := FrameFromEvent(ev)
	if err != nil {
		h.logger.Error("Failed to encode frame", zap.String("event", ev.Type()), zap.Error(err))
		return
	}
	if !ok {
		return
	}
	data, err := json.Marshal(f)
	if err != nil {
		h.logger.Error("Failed to encode frame", zap.String("event", ev.Type()), zap.Error(err))
		return
	}

	if h.relay != nil {
		if err := h.relay.Publish(ctx, data); err == nil {
			return
		} else {
			// 中继不可用时至少保证本实例的客户端收到
			h.logger.Warn("Relay publish failed, delivering locally", zap.Error(err))
		}
	}
	h.Deliver(f.SessionID, data)
}

// DeliverRaw accepts an encoded frame from the relay.
func (h *Hub) DeliverRaw(data []byte) {
	var head struct {
		SessionID uint `json:"session_id"`
	}
	if err := json.Unmarshal(data, &head); err != nil || head.SessionID == 0 {
		h.logger.Warn("Ignoring malformed relay frame", zap.Error(err))
		return
	}
	h.Deliver(head.SessionID, data)
}

// Deliver queues data for every client of sessionID. It returns without
// delivering once the hub has stopped.
func (h *Hub) Deliver(sessionID uint, data []byte) {
	select {
	case h.broadcast <- delivery{sessionID: sessionID, data: data}:
	case <-h.done:
	}
}

// ClientCount 获取客户端数量
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.sessions {
		n += len(set)
	}
	return n
}

// SessionClientCount returns the subscribers of one session.
func (h *Hub) SessionClientCount(sessionID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}
