package quickresponse

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/eben2468/srcwebsite-sub012/internal/domain/repository"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads the catalog whenever the file changes on disk.
type Watcher struct {
	path     string
	repo     repository.QuickResponseRepository
	logger   *zap.Logger
	debounce time.Duration
	onReload func(n int, err error)
}

// NewWatcher 创建快捷回复热加载器
func NewWatcher(path string, repo repository.QuickResponseRepository, logger *zap.Logger) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		repo:     repo,
		logger:   logger.With(zap.String("component", "quick-responses")),
		debounce: 250 * time.Millisecond,
	}
}

// OnReload registers a callback run after every reload attempt.
func (w *Watcher) OnReload(fn func(n int, err error)) {
	w.onReload = fn
}

// Run watches the catalog's directory until ctx is done. Editors often
// replace the file instead of writing it, so the directory is watched and
// events are filtered by name.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.Info("Watching quick responses", zap.String("path", w.path))

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			// 合并编辑器的连续写入
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload(ctx)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	n, err := Sync(ctx, w.repo, w.path)
	if err != nil {
		// 保留旧数据, 等下一次修改
		w.logger.Warn("Quick response reload failed", zap.Error(err))
	} else {
		w.logger.Info("Quick responses reloaded", zap.Int("count", n))
	}
	if w.onReload != nil {
		w.onReload(n, err)
	}
}
