package wizard

import (
	"context"
	"sync"
	"time"

	"course-builder/internal/models"

	"go.uber.org/zap"
)

// saveFunc flushes one snapshot to the draft store.
type saveFunc func(ctx context.Context, snapshot models.DraftSnapshot) error

// autosaver coalesces rapid mutations into one debounced save per quiet
// interval. Every Mutated call resets the pending timer, so only the
// latest snapshot is flushed. Save failures are logged and retried on the
// next tick. Stop is the cancellation handle; it is called on session
// teardown so no save fires after close.
type autosaver struct {
	interval time.Duration
	save     saveFunc
	snapshot func() models.DraftSnapshot
	logger   *zap.Logger

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func newAutosaver(interval time.Duration, snapshot func() models.DraftSnapshot, save saveFunc, logger *zap.Logger) *autosaver {
	return &autosaver{
		interval: interval,
		save:     save,
		snapshot: snapshot,
		logger:   logger.Named("Autosave"),
	}
}

// Mutated schedules a save one debounce interval from now, replacing any
// pending timer.
func (a *autosaver) Mutated() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.interval, a.tick)
}

func (a *autosaver) tick() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.timer = nil
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snap := a.snapshot()
	if err := a.save(ctx, snap); err != nil {
		a.logger.Warn("Auto-save failed, will retry on next tick", zap.Error(err))
		a.mu.Lock()
		if !a.stopped && a.timer == nil {
			a.timer = time.AfterFunc(a.interval, a.tick)
		}
		a.mu.Unlock()
		return
	}
	a.logger.Debug("Draft auto-saved", zap.String("phase", string(snap.Phase)))
}

// Flush saves the current snapshot immediately, cancelling any pending
// timer first.
func (a *autosaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()
	return a.save(ctx, a.snapshot())
}

// Stop cancels any pending save permanently.
func (a *autosaver) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
