package chat

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/onnwee/jackbot/telemetry"
)

// logEvery controls how often Append reports the store size.
const logEvery = 100

// Store is an append-only, receipt-ordered in-memory log of chat events.
//
// Events are never evicted: the log grows for the lifetime of the process.
// Receipt times are monotonically non-decreasing, so the arena doubles as its
// own time index and windowed reads are bounded by binary search.
type Store struct {
	mu     sync.RWMutex
	events []Event
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used to stamp and window events.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Append stamps ev with the current receipt time and adds it to the tail.
// The returned time is the receipt time actually stored; if the clock went
// backwards it is clamped to the previous event's receipt time.
func (s *Store) Append(ev Event) time.Time {
	ev = ev.Normalize()
	if !ev.SourceTime.IsZero() {
		ev.SourceTime = ev.SourceTime.UTC()
	}

	s.mu.Lock()
	t := s.now().UTC()
	if n := len(s.events); n > 0 && t.Before(s.events[n-1].ReceiptTime) {
		t = s.events[n-1].ReceiptTime
	}
	ev.ReceiptTime = t
	s.events = append(s.events, ev)
	size := len(s.events)
	// Gauge updates stay ordered with appends.
	telemetry.RecordChatAppend(size)
	s.mu.Unlock()

	if size%logEvery == 0 {
		slog.Info("chat store size", slog.Int("events", size), slog.String("last_channel", ev.Channel), slog.String("component", "chat_store"))
	}
	return t
}

// Query returns events matching q in arrival order. The result never aliases
// the store's internal storage.
func (s *Store) Query(q Query) []Event {
	var want map[string]struct{}
	if len(q.Channels) > 0 {
		want = make(map[string]struct{}, len(q.Channels))
		for _, c := range q.Channels {
			want[c] = struct{}{}
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if q.Window > 0 {
		cutoff := s.now().UTC().Add(-q.Window)
		start = sort.Search(len(s.events), func(i int) bool {
			return !s.events[i].ReceiptTime.Before(cutoff)
		})
	}
	tail := s.events[start:]

	out := make([]Event, 0, len(tail))
	for _, ev := range tail {
		if want != nil {
			if _, ok := want[ev.Channel]; !ok {
				continue
			}
		}
		out = append(out, ev)
	}
	return out
}

// Len reports the number of stored events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
