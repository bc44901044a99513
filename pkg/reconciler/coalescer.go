package reconciler

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Coalescer collapses bursts of change notifications into at most one pending
// reconciliation trigger and runs passes on a single consumer goroutine, so
// at most one pass is ever active. A trigger arriving while a pass runs
// cancels that pass cooperatively and starts a fresh one; a trigger arriving
// while one is already pending is dropped, since the pending pass will fetch
// fully fresh state anyway.
type Coalescer struct {
	reconciler *Reconciler
	pending    chan struct{}

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewCoalescer(r *Reconciler) *Coalescer {
	return &Coalescer{
		reconciler: r,
		pending:    make(chan struct{}, 1),
	}
}

// Notify requests a reconciliation pass. It never blocks.
func (c *Coalescer) Notify(reason string) {
	select {
	case c.pending <- struct{}{}:
		log.Debugf("reconciliation trigger accepted (%s)", reason)
	default:
		log.Debugf("reconciliation trigger dropped, one already pending (%s)", reason)
	}
}

// NotifySelectionChanged updates the selected-calendar set and triggers a
// pass, unless the new set equals the current one.
func (c *Coalescer) NotifySelectionChanged(ids []string) {
	if equalAsSets(ids, c.reconciler.SelectedCalendars()) {
		log.Debug("selection change is a no-op, skipping trigger")
		return
	}
	c.reconciler.SetSelectedCalendars(ids)
	c.Notify("selection changed")
}

// Start launches the consumer goroutine. It returns immediately.
func (c *Coalescer) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return
	}
	consumerCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.consume(consumerCtx)
}

// Stop cancels the consumer and waits for any in-flight pass to finish a
// per-id operation and stop.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Coalescer) consume(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.pending:
		}
		if !c.runPass(ctx) {
			return
		}
	}
}

// runPass runs one reconciliation pass, restarting it if a fresher trigger
// arrives mid-flight. It returns false when ctx is done.
func (c *Coalescer) runPass(ctx context.Context) bool {
	for {
		passID := uuid.NewString()
		log.Debugf("reconciliation pass %s starting", passID)

		passCtx, cancelPass := context.WithCancel(ctx)
		result := make(chan error, 1)
		go func() {
			result <- c.reconciler.Reconcile(passCtx)
		}()

		select {
		case <-ctx.Done():
			cancelPass()
			<-result
			return false

		case err := <-result:
			cancelPass()
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Errorf("reconciliation pass %s failed: %v", passID, err)
			} else {
				log.Debugf("reconciliation pass %s finished", passID)
			}
			return true

		case <-c.pending:
			// A fresher trigger supersedes the in-flight pass: stop it at the
			// next per-id boundary, then start over with fresh inputs.
			cancelPass()
			if err := <-result; err != nil && !errors.Is(err, context.Canceled) {
				log.Errorf("superseded reconciliation pass %s failed: %v", passID, err)
			}
			log.Debugf("reconciliation pass %s superseded, restarting", passID)
		}
	}
}

func equalAsSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := make([]string, len(a))
	bs := make([]string, len(b))
	copy(as, a)
	copy(bs, b)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
