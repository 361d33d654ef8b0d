// Package refresh re-runs the evaluation pipeline on upstream change
// notifications, with a polling fallback for when notifications are
// unavailable or delayed.
package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/crescendoapp/crescendo/internal/model"
	"github.com/crescendoapp/crescendo/internal/service"
)

// DefaultPollInterval is the fallback polling cadence.
const DefaultPollInterval = 5 * time.Second

// SubjectSnapshot pairs a refreshed snapshot with its subject.
type SubjectSnapshot struct {
	TenantID string
	UserID   string
	Snapshot model.Snapshot
}

// Coordinator schedules evaluations per watched subject. Each subject runs
// its own loop, so a notification for one subject never blocks evaluation
// for another. Tearing a subject down cancels its polling timer and discards
// any in-flight result.
type Coordinator struct {
	evaluator service.Evaluator
	source    service.ChangeSource
	snapshots chan SubjectSnapshot
	subjects  map[string]*subjectLoop
	interval  time.Duration
	mu        sync.Mutex
	wg        sync.WaitGroup
}

type subjectLoop struct {
	cancel     context.CancelFunc
	trigger    chan struct{}
	generation uint64
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPollInterval overrides the fallback polling interval.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Coordinator) { c.interval = interval }
}

// WithChangeSource attaches an upstream change notification source.
func WithChangeSource(source service.ChangeSource) Option {
	return func(c *Coordinator) { c.source = source }
}

// NewCoordinator creates a coordinator around the given evaluator.
func NewCoordinator(evaluator service.Evaluator, opts ...Option) *Coordinator {
	c := &Coordinator{
		evaluator: evaluator,
		snapshots: make(chan SubjectSnapshot, 64),
		subjects:  make(map[string]*subjectLoop),
		interval:  DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshots returns the stream of refreshed snapshots for watched subjects.
func (c *Coordinator) Snapshots() <-chan SubjectSnapshot {
	return c.snapshots
}

// Run consumes change notifications and routes them to watched subjects.
// It blocks until ctx is cancelled, then waits for subject loops to finish.
// Running without a change source is valid; polling carries the load alone.
func (c *Coordinator) Run(ctx context.Context) {
	if c.source != nil {
		for {
			select {
			case <-ctx.Done():
				c.teardown()
				return
			case change, ok := <-c.source.Changes():
				if !ok {
					<-ctx.Done()
					c.teardown()
					return
				}
				c.notify(change)
			}
		}
	}

	<-ctx.Done()
	c.teardown()
}

// Watch starts (or restarts) the evaluation loop for a subject. Calling
// Watch again for the same subject replaces the existing loop; the stale
// loop's in-flight result is discarded because its generation no longer
// matches.
func (c *Coordinator) Watch(ctx context.Context, tenantID, userID string) {
	key := subjectKey(tenantID, userID)

	c.mu.Lock()
	var generation uint64 = 1
	if existing, ok := c.subjects[key]; ok {
		existing.cancel()
		generation = existing.generation + 1
	}

	loopCtx, cancel := context.WithCancel(ctx)
	loop := &subjectLoop{
		cancel:     cancel,
		trigger:    make(chan struct{}, 1),
		generation: generation,
	}
	c.subjects[key] = loop
	c.mu.Unlock()

	c.wg.Add(1)
	go c.runSubject(loopCtx, tenantID, userID, loop)
}

// Unwatch tears the subject down, cancelling its polling timer.
func (c *Coordinator) Unwatch(tenantID, userID string) {
	key := subjectKey(tenantID, userID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if loop, ok := c.subjects[key]; ok {
		loop.cancel()
		delete(c.subjects, key)
	}
}

func (c *Coordinator) runSubject(ctx context.Context, tenantID, userID string, loop *subjectLoop) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.evaluate(ctx, tenantID, userID, loop)

	for {
		select {
		case <-ctx.Done():
			return
		case <-loop.trigger:
			c.evaluate(ctx, tenantID, userID, loop)
		case <-ticker.C:
			c.evaluate(ctx, tenantID, userID, loop)
		}
	}
}

func (c *Coordinator) evaluate(ctx context.Context, tenantID, userID string, loop *subjectLoop) {
	snapshot, err := c.evaluator.Evaluate(ctx, tenantID, userID)
	if err != nil {
		// Data-source errors still carry a last-known snapshot; anything
		// else is logged and retried on the next trigger.
		slog.Warn("evaluation failed",
			"tenant", tenantID,
			"user", userID,
			"error", err)
	}
	if snapshot == nil {
		return
	}

	if !c.isCurrent(tenantID, userID, loop.generation) {
		slog.Debug("discarding stale evaluation result", "tenant", tenantID, "user", userID)
		return
	}

	select {
	case c.snapshots <- SubjectSnapshot{TenantID: tenantID, UserID: userID, Snapshot: *snapshot}:
	default:
		slog.Warn("snapshot channel full, dropping refresh", "tenant", tenantID, "user", userID)
	}
}

// notify coalesces a change signal into the matching subject's trigger.
// Changes for unwatched subjects are ignored.
func (c *Coordinator) notify(change service.Change) {
	c.mu.Lock()
	loop, ok := c.subjects[subjectKey(change.TenantID, change.UserID)]
	c.mu.Unlock()
	if !ok {
		return
	}

	select {
	case loop.trigger <- struct{}{}:
	default:
		// A trigger is already pending; the pipeline is pure, so one
		// re-evaluation covers both signals.
	}
}

func (c *Coordinator) isCurrent(tenantID, userID string, generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	loop, ok := c.subjects[subjectKey(tenantID, userID)]
	return ok && loop.generation == generation
}

func (c *Coordinator) teardown() {
	c.mu.Lock()
	for key, loop := range c.subjects {
		loop.cancel()
		delete(c.subjects, key)
	}
	c.mu.Unlock()
	c.wg.Wait()
}

func subjectKey(tenantID, userID string) string {
	return tenantID + "\x00" + userID
}
