package websocket

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/eben2468/srcwebsite-sub012/pkg/safego"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	maxInbound = 4096
)

// Client 会话订阅者
type Client struct {
	UserID    uint
	SessionID uint
	conn      *websocket.Conn
	send      chan []byte
	pong      chan struct{}
	hub       *Hub
	logger    *zap.Logger
}

// Upgrader upgrades authorized requests and attaches them to the hub.
type Upgrader struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewUpgrader builds an upgrader. An empty origin list or "*" accepts any
// origin.
func NewUpgrader(hub *Hub, allowedOrigins []string, logger *zap.Logger) *Upgrader {
	return &Upgrader{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger.With(zap.String("component", "ws")),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(origin, "/")]
		return ok
	}
}

// Serve upgrades the connection and subscribes it to sessionID. Callers
// must have checked the user's access to the session already.
func (u *Upgrader) Serve(w http.ResponseWriter, r *http.Request, userID, sessionID uint) error {
	conn, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &Client{
		UserID:    userID,
		SessionID: sessionID,
		conn:      conn,
		send:      make(chan []byte, SendBuffer),
		pong:      make(chan struct{}, 1),
		hub:       u.hub,
		logger:    u.logger,
	}

	select {
	case u.hub.register <- c:
	case <-u.hub.done:
		conn.Close()
		return nil
	}

	safego.Go(u.logger, "ws-write", c.writePump)
	safego.Go(u.logger, "ws-read", c.readPump)
	return nil
}

// readPump 读取客户端帧, 仅处理 ping
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInbound)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("WebSocket read error", zap.Uint("session_id", c.SessionID), zap.Error(err))
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var in Frame
		if err := json.Unmarshal(data, &in); err != nil {
			continue
		}
		if in.Type == FramePing {
			select {
			case c.pong <- struct{}{}:
			default:
			}
		}
	}
}

// writePump 写出队列中的帧并定期发送 ping
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-c.pong:
			data, _ := json.Marshal(Frame{Type: FramePong, SessionID: c.SessionID, Timestamp: time.Now().Unix()})
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
