package observe

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/entrhq/widescreen/pkg/logging"
)

// Kind classifies a change record.
type Kind string

const (
	KindChildList  Kind = "childList"
	KindAttributes Kind = "attributes"
	KindResize     Kind = "resize"
	KindFullscreen Kind = "fullscreenchange"
	KindKeyDown    Kind = "keydown"
	KindClick      Kind = "click"
)

// Well-known record targets.
const (
	TargetRoot     = "html"
	TargetHead     = "head"
	TargetBody     = "body"
	TargetSidebar  = "sidebar"
	TargetDocument = "document"
)

// Record is one observed change of the host page or platform.
type Record struct {
	Kind Kind `json:"kind"`

	// Target identifies the changed node: an element id, a selector the
	// watcher was registered for, or "document"/"html"/"head"/"body".
	Target string `json:"target,omitempty"`

	// Attribute is set for KindAttributes
	Attribute string `json:"attribute,omitempty"`

	// Key is set for KindKeyDown
	Key string `json:"key,omitempty"`

	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

func (r Record) same(o Record) bool {
	if r.Kind != o.Kind || r.Target != o.Target || r.Attribute != o.Attribute || r.Key != o.Key {
		return false
	}
	return equalStrings(r.Added, o.Added) && equalStrings(r.Removed, o.Removed)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Predicate selects the records a subscriber cares about.
type Predicate func(Record) bool

// Handler receives the matching records of one batch, in publish order.
type Handler func(batch []Record)

// Any matches every record.
func Any(Record) bool { return true }

// OfKind matches records of the given kinds.
func OfKind(kinds ...Kind) Predicate {
	return func(r Record) bool {
		for _, k := range kinds {
			if r.Kind == k {
				return true
			}
		}
		return false
	}
}

// Subscription is the cancelable handle returned by Subscribe.
type Subscription struct {
	feed     *Feed
	id       int
	pred     Predicate
	handler  Handler
	canceled atomic.Bool
}

// Cancel stops delivery. Safe to call more than once and from a handler.
func (s *Subscription) Cancel() {
	if s.canceled.Swap(true) {
		return
	}
	s.feed.mu.Lock()
	delete(s.feed.subs, s.id)
	s.feed.mu.Unlock()
}

// Feed is a push-based change feed. Published batches are delivered on a
// single goroutine in publish order, so handlers never run concurrently with
// each other and may freely call back into the engine.
type Feed struct {
	mu     sync.Mutex
	subs   map[int]*Subscription
	nextID int

	queue   [][]Record
	wake    chan struct{}
	pending atomic.Int64
	closed  chan struct{}
	once    sync.Once

	logger *logging.Logger
}

// NewFeed starts a feed. Close stops its delivery goroutine.
func NewFeed(logger *logging.Logger) *Feed {
	if logger == nil {
		logger = logging.Discard()
	}
	f := &Feed{
		subs:   make(map[int]*Subscription),
		wake:   make(chan struct{}, 1),
		closed: make(chan struct{}),
		logger: logger,
	}
	go f.run()
	return f
}

// Subscribe registers handler for records matching pred.
func (f *Feed) Subscribe(pred Predicate, handler Handler) *Subscription {
	if pred == nil {
		pred = Any
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	sub := &Subscription{feed: f, id: f.nextID, pred: pred, handler: handler}
	f.nextID++
	f.subs[sub.id] = sub
	return sub
}

// Publish enqueues one batch. Identical records inside the batch are
// collapsed. Publish never blocks on handlers.
func (f *Feed) Publish(records ...Record) {
	if len(records) == 0 {
		return
	}
	select {
	case <-f.closed:
		return
	default:
	}

	batch := make([]Record, 0, len(records))
	for _, r := range records {
		dup := false
		for _, seen := range batch {
			if seen.same(r) {
				dup = true
				break
			}
		}
		if !dup {
			batch = append(batch, r)
		}
	}

	f.pending.Add(1)
	f.mu.Lock()
	f.queue = append(f.queue, batch)
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *Feed) run() {
	for {
		select {
		case <-f.closed:
			return
		case <-f.wake:
		}

		for {
			f.mu.Lock()
			if len(f.queue) == 0 {
				f.mu.Unlock()
				break
			}
			batch := f.queue[0]
			f.queue = f.queue[1:]
			subs := make([]*Subscription, 0, len(f.subs))
			for _, s := range f.subs {
				subs = append(subs, s)
			}
			f.mu.Unlock()

			f.deliver(batch, subs)
			f.pending.Add(-1)
		}
	}
}

func (f *Feed) deliver(batch []Record, subs []*Subscription) {
	for _, sub := range subs {
		if sub.canceled.Load() {
			continue
		}
		var matched []Record
		for _, r := range batch {
			if sub.pred(r) {
				matched = append(matched, r)
			}
		}
		if len(matched) == 0 {
			continue
		}
		f.safeCall(sub, matched)
	}
}

func (f *Feed) safeCall(sub *Subscription, matched []Record) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Errorf("change feed handler panicked: %v", r)
		}
	}()
	sub.handler(matched)
}

// Settle waits until every published batch, including batches published by
// handlers while settling, has been delivered. It reports false on timeout.
func (f *Feed) Settle(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if f.pending.Load() == 0 {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return f.pending.Load() == 0
}

// Close stops delivery. Pending batches are dropped.
func (f *Feed) Close() {
	f.once.Do(func() { close(f.closed) })
}
