// internal/messaging/sync.go
// Polls the conversation log while a conversation view is focused

package messaging

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/imadgeboyega/kiekky-client/internal/api"
	"github.com/imadgeboyega/kiekky-client/internal/metrics"
)

// DefaultSyncInterval matches the reference client's cadence
const DefaultSyncInterval = 7 * time.Second

// LogSource fetches the full message log of the local user
type LogSource interface {
	ConversationLog(ctx context.Context) ([]api.Message, error)
}

// Snapshot is the result of one successful fetch
type Snapshot struct {
	Messages  []api.Message `json:"messages"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// SyncLoop refetches the log on focus and then every interval until blurred.
// Every successful fetch replaces the snapshot wholesale.
type SyncLoop struct {
	source   LogSource
	interval time.Duration
	paused   atomic.Bool

	// loop lifecycle
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// snapshot
	snapMu      sync.RWMutex
	snapshot    Snapshot
	subscribers []func(Snapshot)
}

func NewSyncLoop(source LogSource, interval time.Duration) *SyncLoop {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	return &SyncLoop{
		source:   source,
		interval: interval,
	}
}

// Focus starts the loop. Calling it while already running does nothing.
func (l *SyncLoop) Focus() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(ctx, l.done)
}

// Blur stops the loop and waits for it to exit, so no fetch starts afterwards
func (l *SyncLoop) Blur() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Close is Blur for owners tearing the view down
func (l *SyncLoop) Close() {
	l.Blur()
}

// Running reports whether the loop is scheduled
func (l *SyncLoop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}

// Pause suspends periodic fetches without stopping the timer
func (l *SyncLoop) Pause() {
	l.paused.Store(true)
}

// Resume lets the next tick fetch again. Missed ticks are not replayed.
func (l *SyncLoop) Resume() {
	l.paused.Store(false)
}

func (l *SyncLoop) Paused() bool {
	return l.paused.Load()
}

// Refresh fetches immediately, independent of the timer, and reports failures
func (l *SyncLoop) Refresh(ctx context.Context) error {
	return l.poll(ctx, "manual")
}

// Subscribe registers fn to be called after every successful fetch
func (l *SyncLoop) Subscribe(fn func(Snapshot)) {
	l.snapMu.Lock()
	defer l.snapMu.Unlock()
	l.subscribers = append(l.subscribers, fn)
}

// Snapshot returns a copy of the latest fetched log
func (l *SyncLoop) Snapshot() Snapshot {
	l.snapMu.RLock()
	defer l.snapMu.RUnlock()

	messages := make([]api.Message, len(l.snapshot.Messages))
	copy(messages, l.snapshot.Messages)
	return Snapshot{Messages: messages, FetchedAt: l.snapshot.FetchedAt}
}

// Messages is shorthand for Snapshot().Messages
func (l *SyncLoop) Messages() []api.Message {
	return l.Snapshot().Messages
}

func (l *SyncLoop) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	// Background failures are logged only; the next tick tries again
	_ = l.poll(ctx, "focus")

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if l.paused.Load() {
				continue
			}
			_ = l.poll(ctx, "tick")
		}
	}
}

func (l *SyncLoop) poll(ctx context.Context, trigger string) error {
	messages, err := l.source.ConversationLog(ctx)
	if err != nil {
		if trigger != "manual" {
			log.Printf("conversation sync (%s) failed: %v", trigger, err)
		}
		metrics.RecordSyncPoll(trigger, "error")
		return err
	}

	// A fetch that outlived its loop must not publish
	if trigger != "manual" && ctx.Err() != nil {
		return ctx.Err()
	}

	snap := Snapshot{Messages: messages, FetchedAt: time.Now()}

	l.snapMu.Lock()
	l.snapshot = snap
	subscribers := make([]func(Snapshot), len(l.subscribers))
	copy(subscribers, l.subscribers)
	l.snapMu.Unlock()

	metrics.RecordSyncPoll(trigger, "ok")
	for _, fn := range subscribers {
		fn(snap)
	}
	return nil
}
