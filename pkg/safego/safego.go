// Package safego runs background goroutines that log panics instead of
// taking the process down.
package safego

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Go 启动带 panic 恢复的 goroutine
//
//	safego.Go(logger, "ws-hub", func() {
//	    hub.Run(ctx)
//	})
func Go(logger *zap.Logger, name string, fn func()) {
	go func() {
		defer recoverPanic(logger, name)
		fn()
	}()
}

// Loop keeps fn running until ctx is done. When fn returns an error or
// panics it is restarted after backoff; a nil return ends the loop.
func Loop(ctx context.Context, logger *zap.Logger, name string, backoff time.Duration, fn func(ctx context.Context) error) {
	if backoff <= 0 {
		backoff = time.Second
	}
	go func() {
		for {
			err := runOnce(ctx, logger, name, fn)
			if ctx.Err() != nil || err == nil {
				return
			}
			logger.Warn("Background worker stopped, restarting",
				zap.String("goroutine", name),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
		}
	}()
}

func runOnce(ctx context.Context, logger *zap.Logger, name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Goroutine panicked",
				zap.String("goroutine", name),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			err = errPanicked
		}
	}()
	return fn(ctx)
}

type panicError struct{}

func (panicError) Error() string { return "panicked" }

var errPanicked error = panicError{}

func recoverPanic(logger *zap.Logger, name string) {
	if r := recover(); r != nil {
		logger.Error("Goroutine panicked",
			zap.String("goroutine", name),
			zap.Any("panic", r),
			zap.Stack("stack"),
		)
	}
}
