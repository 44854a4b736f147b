package events

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu   sync.Mutex
	name string
	seen []Event
	err  error
	boom bool
}

func (h *recordingHandler) Name() string { return h.name }

func (h *recordingHandler) Handle(_ context.Context, ev Event) error {
	if h.boom {
		panic("handler exploded")
	}
	h.mu.Lock()
	h.seen = append(h.seen, ev)
	h.mu.Unlock()
	return h.err
}

func (h *recordingHandler) events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Event(nil), h.seen...)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestPublishFansOutToAllHandlers(t *testing.T) {
	d := NewDispatcher(quietLogger(), Options{})

	a := &recordingHandler{name: "a"}
	b := &recordingHandler{name: "b"}
	d.Register("thing.happened", a)
	d.Register("thing.happened", b)
	d.Register("other.event", &recordingHandler{name: "c"})

	d.Publish(context.Background(), Event{Type: "thing.happened", Payload: 42})

	require.Len(t, a.events(), 1)
	require.Len(t, b.events(), 1)
	assert.Equal(t, 42, a.events()[0].Payload)
}

func TestPublishIsolatesFailingHandlers(t *testing.T) {
	d := NewDispatcher(quietLogger(), Options{})

	failing := &recordingHandler{name: "failing", err: errors.New("nope")}
	panicking := &recordingHandler{name: "panicking", boom: true}
	ok := &recordingHandler{name: "ok"}
	d.Register("ev", failing)
	d.Register("ev", panicking)
	d.Register("ev", ok)

	d.Publish(context.Background(), Event{Type: "ev"})

	assert.Len(t, ok.events(), 1, "handler after a failure must still run")
}

func TestDrainDispatchesFIFO(t *testing.T) {
	d := NewDispatcher(quietLogger(), Options{})

	h := &recordingHandler{name: "h"}
	d.Register("ev", h)

	for i := 0; i < 5; i++ {
		d.Enqueue(Event{Type: "ev", Payload: i})
	}

	n := d.Drain(context.Background())
	assert.Equal(t, 5, n)

	seen := h.events()
	require.Len(t, seen, 5)
	for i, ev := range seen {
		assert.Equal(t, i, ev.Payload)
	}

	assert.Zero(t, d.Drain(context.Background()), "queue must be empty after a drain")
}

func TestEnqueueStampsTimestamp(t *testing.T) {
	d := NewDispatcher(quietLogger(), Options{})

	h := &recordingHandler{name: "h"}
	d.Register("ev", h)

	d.Enqueue(Event{Type: "ev"})
	d.Drain(context.Background())

	require.Len(t, h.events(), 1)
	assert.False(t, h.events()[0].At.IsZero())
}

func TestDrainLoopDeliversQueuedEvents(t *testing.T) {
	d := NewDispatcher(quietLogger(), Options{DrainInterval: 10 * time.Millisecond})

	h := &recordingHandler{name: "h"}
	d.Register("ev", h)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)
	defer d.Stop()

	d.Enqueue(Event{Type: "ev"})

	assert.Eventually(t, func() bool {
		return len(h.events()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestSweepLoopRunsOnTicker(t *testing.T) {
	var mu sync.Mutex
	runs := 0

	d := NewDispatcher(quietLogger(), Options{
		DrainInterval: time.Hour,
		SweepInterval: 10 * time.Millisecond,
		Sweep: func(context.Context) {
			mu.Lock()
			runs++
			mu.Unlock()
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return runs >= 2
	}, time.Second, 5*time.Millisecond)

	d.Stop()
	mu.Lock()
	after := runs
	mu.Unlock()

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, after, runs, "no sweep may start after Stop returns")
	mu.Unlock()
}

func TestStopIsIdempotent(t *testing.T) {
	d := NewDispatcher(quietLogger(), Options{DrainInterval: 10 * time.Millisecond})
	d.Start(context.Background())

	d.Stop()
	d.Stop()
}
