package kb

import (
	"sync"

	"github.com/signalsfoundry/scanhead-simulator/core"
	"github.com/signalsfoundry/scanhead-simulator/model"
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventAxesUpdated EventType = iota
	EventScanUpdated
	EventReset
)

func (t EventType) String() string {
	switch t {
	case EventAxesUpdated:
		return "axes_updated"
	case EventScanUpdated:
		return "scan_updated"
	case EventReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Event is emitted to subscribers after every published change.
type Event struct {
	Type     EventType
	Seq      uint64
	Axes     model.Axes
	Acquired int
}

// Snapshot is a consistent copy of the store. Scan is owned by the caller.
type Snapshot struct {
	Seq  uint64
	Axes model.Axes
	Scan *core.ScanState
}

// KnowledgeBase is an in-memory, thread-safe store for the machine axes and
// the acquired scan set of one session. Axes and scan are always read and
// replaced together, so no reader observes a half-applied reset.
type KnowledgeBase struct {
	mu sync.RWMutex

	axes model.Axes
	scan *core.ScanState
	seq  uint64

	subs    map[int]func(Event)
	nextSub int
}

// NewKnowledgeBase constructs a store at axes with an empty scan set sized
// for a cloud of cloudSize points.
func NewKnowledgeBase(axes model.Axes, cloudSize int) *KnowledgeBase {
	return &KnowledgeBase{
		axes: axes,
		scan: core.NewScanState(cloudSize),
		subs: make(map[int]func(Event)),
	}
}

// Axes returns the current axis values.
func (kb *KnowledgeBase) Axes() model.Axes {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.axes
}

// Acquired returns the number of acquired points.
func (kb *KnowledgeBase) Acquired() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.scan.Len()
}

// Snapshot returns a copy of axes and scan taken under one lock.
func (kb *KnowledgeBase) Snapshot() Snapshot {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return Snapshot{Seq: kb.seq, Axes: kb.axes, Scan: kb.scan.Clone()}
}

// SetAxes replaces the axis values and notifies subscribers if they changed.
func (kb *KnowledgeBase) SetAxes(axes model.Axes) {
	kb.Update(func(a *model.Axes, _ *core.ScanState) bool {
		*a = axes
		return false
	})
}

// Update runs fn against the live state under the write lock. fn reports
// whether it grew the scan set. At most one event is published: a scan
// update when the set grew, otherwise an axes update when the axes changed.
func (kb *KnowledgeBase) Update(fn func(axes *model.Axes, scan *core.ScanState) (scanChanged bool)) {
	kb.mu.Lock()
	before := kb.axes
	scanChanged := fn(&kb.axes, kb.scan)

	var typ EventType
	switch {
	case scanChanged:
		typ = EventScanUpdated
	case kb.axes != before:
		typ = EventAxesUpdated
	default:
		kb.mu.Unlock()
		return
	}
	event, subs := kb.publishLocked(typ)
	kb.mu.Unlock()

	notify(subs, event)
}

// Reset moves the axes to home and clears the scan set in one step.
func (kb *KnowledgeBase) Reset(home model.Axes) {
	kb.mu.Lock()
	kb.axes = home
	kb.scan.Reset()
	event, subs := kb.publishLocked(EventReset)
	kb.mu.Unlock()

	notify(subs, event)
}

func (kb *KnowledgeBase) publishLocked(typ EventType) (Event, []func(Event)) {
	kb.seq++
	event := Event{
		Type:     typ,
		Seq:      kb.seq,
		Axes:     kb.axes,
		Acquired: kb.scan.Len(),
	}
	subs := make([]func(Event), 0, len(kb.subs))
	for _, fn := range kb.subs {
		subs = append(subs, fn)
	}
	return event, subs
}

// Notify subscribers outside the lock to avoid deadlocks.
func notify(subs []func(Event), event Event) {
	for _, sub := range subs {
		sub(event)
	}
}

// Subscribe registers a callback for KB events. It returns an unsubscribe
// function that is safe to call more than once.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	id := kb.nextSub
	kb.nextSub++
	kb.subs[id] = fn

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		delete(kb.subs, id)
	}
}
