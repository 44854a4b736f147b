package events

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Handler consumes one event type. Handlers are registered once at startup
// so the full handler set is auditable in main.
type Handler interface {
	Name() string
	Handle(ctx context.Context, ev Event) error
}

type Options struct {
	// DrainInterval is how often the pending-event queue is drained.
	DrainInterval time.Duration
	// SweepInterval is how often Sweep runs. Zero disables the loop.
	SweepInterval time.Duration
	// Sweep is the periodic consistency job (set from main; the dispatcher
	// has no knowledge of what it does).
	Sweep func(ctx context.Context)
}

// Dispatcher is a small in-process pub/sub with a buffered FIFO queue.
// Publish fans out synchronously; Enqueue defers dispatch to the next drain
// tick, trading immediacy for batching on the write path.
type Dispatcher struct {
	log  *logrus.Logger
	opts Options

	mu       sync.Mutex
	handlers map[string][]Handler
	queue    []Event

	started  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewDispatcher(log *logrus.Logger, opts Options) *Dispatcher {
	if opts.DrainInterval <= 0 {
		opts.DrainInterval = 5 * time.Second
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Hour
	}
	return &Dispatcher{
		log:      log,
		opts:     opts,
		handlers: map[string][]Handler{},
		stopCh:   make(chan struct{}),
	}
}

func (d *Dispatcher) Register(eventType string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], h)
}

// Publish dispatches to every handler registered for the event type, in
// registration order. A failing or panicking handler is logged and does not
// stop the remaining handlers.
func (d *Dispatcher) Publish(ctx context.Context, ev Event) {
	d.mu.Lock()
	hs := append([]Handler(nil), d.handlers[ev.Type]...)
	d.mu.Unlock()

	for _, h := range hs {
		d.dispatchOne(ctx, h, ev)
	}
}

func (d *Dispatcher) dispatchOne(ctx context.Context, h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.WithFields(logrus.Fields{
				"handler": h.Name(),
				"event":   ev.Type,
				"panic":   r,
			}).Error("event handler panicked")
		}
	}()

	if err := h.Handle(ctx, ev); err != nil {
		d.log.WithFields(logrus.Fields{
			"handler": h.Name(),
			"event":   ev.Type,
		}).WithError(err).Error("event handler failed")
	}
}

// Enqueue appends to the pending queue; the event is dispatched on the next
// drain tick, FIFO within a batch.
func (d *Dispatcher) Enqueue(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	d.mu.Lock()
	d.queue = append(d.queue, ev)
	d.mu.Unlock()
}

// Start launches the drain loop and, when configured, the sweep loop.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.mu.Unlock()

	d.wg.Add(1)
	go d.drainLoop(ctx)

	if d.opts.Sweep != nil {
		d.wg.Add(1)
		go d.sweepLoop(ctx)
	}
}

// Stop signals both loops and waits for any in-flight iteration to finish.
// No new iteration starts after Stop returns.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
	d.wg.Wait()
}

// Drain dispatches everything currently queued, in arrival order. Exposed
// for on-demand flushing and tests; the drain loop calls it on every tick.
func (d *Dispatcher) Drain(ctx context.Context) int {
	d.mu.Lock()
	batch := d.queue
	d.queue = nil
	d.mu.Unlock()

	for _, ev := range batch {
		d.Publish(ctx, ev)
	}
	return len(batch)
}

func (d *Dispatcher) drainLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.opts.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := d.Drain(ctx); n > 0 {
				d.log.WithField("events", n).Debug("drained event queue")
			}
		}
	}
}

func (d *Dispatcher) sweepLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.opts.Sweep(ctx)
		}
	}
}
