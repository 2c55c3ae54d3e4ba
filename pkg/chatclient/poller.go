package chatclient

import (
	"context"
	"sync"
	"time"
)

// Default polling cadence.
const (
	DefaultMessageInterval = 3 * time.Second
	DefaultUnreadInterval  = 5 * time.Second
)

// Poller polls one session for new messages and the caller's unread total.
// Polling is fixed-interval with no backoff; errors are reported and the
// next tick retries.
type Poller struct {
	client    *Client
	sessionID uint

	messageEvery time.Duration
	unreadEvery  time.Duration

	onMessages func([]Message)
	onUnread   func(int64)
	onError    func(error)

	mu        sync.Mutex
	watermark uint

	ended    chan struct{}
	stopOnce sync.Once
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithIntervals overrides the message and unread poll periods.
func WithIntervals(messages, unread time.Duration) PollerOption {
	return func(p *Poller) {
		if messages > 0 {
			p.messageEvery = messages
		}
		if unread > 0 {
			p.unreadEvery = unread
		}
	}
}

// WithWatermark starts polling after the given message id.
func WithWatermark(lastID uint) PollerOption {
	return func(p *Poller) {
		p.watermark = lastID
	}
}

// OnMessages is called with each non-empty batch, oldest first.
func OnMessages(fn func([]Message)) PollerOption {
	return func(p *Poller) { p.onMessages = fn }
}

// OnUnread is called with every unread total.
func OnUnread(fn func(int64)) PollerOption {
	return func(p *Poller) { p.onUnread = fn }
}

// OnError is called when a poll fails.
func OnError(fn func(error)) PollerOption {
	return func(p *Poller) { p.onError = fn }
}

// NewPoller creates a poller for sessionID. Call Run to start it.
func (c *Client) NewPoller(sessionID uint, opts ...PollerOption) *Poller {
	p := &Poller{
		client:       c,
		sessionID:    sessionID,
		messageEvery: DefaultMessageInterval,
		unreadEvery:  DefaultUnreadInterval,
		ended:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Watermark returns the highest message id delivered so far.
func (p *Poller) Watermark() uint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watermark
}

func (p *Poller) stop() {
	p.stopOnce.Do(func() { close(p.ended) })
}

// Run polls until ctx is cancelled and returns ctx.Err(). Message polling
// stops once EndSession is called for this session through the same client;
// unread polling keeps going regardless of chat state.
func (p *Poller) Run(ctx context.Context) error {
	p.client.register(p)
	defer p.client.unregister(p)

	messages := time.NewTicker(p.messageEvery)
	defer messages.Stop()
	unread := time.NewTicker(p.unreadEvery)
	defer unread.Stop()

	open := p.pollMessages(ctx)
	p.pollUnread(ctx)

	ended := p.ended
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ended:
			// nil channel: never selected again
			ended = nil
			open = false
			messages.Stop()
		case <-messages.C:
			if open {
				open = p.pollMessages(ctx)
			}
		case <-unread.C:
			p.pollUnread(ctx)
		}
	}
}

// pollMessages fetches past the watermark. It returns false once the
// session can no longer be read.
func (p *Poller) pollMessages(ctx context.Context) bool {
	after := p.Watermark()
	msgs, err := p.client.GetMessages(ctx, p.sessionID, after)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		p.report(err)
		return !IsCode(err, "NOT_FOUND") && !IsCode(err, "FORBIDDEN")
	}
	if len(msgs) == 0 {
		return true
	}

	p.mu.Lock()
	for _, m := range msgs {
		if m.ID > p.watermark {
			p.watermark = m.ID
		}
	}
	p.mu.Unlock()

	if p.onMessages != nil {
		p.onMessages(msgs)
	}
	return true
}

func (p *Poller) pollUnread(ctx context.Context) {
	n, err := p.client.GetUnreadCount(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.report(err)
		}
		return
	}
	if p.onUnread != nil {
		p.onUnread(n)
	}
}

func (p *Poller) report(err error) {
	if p.onError != nil {
		p.onError(err)
	}
}
