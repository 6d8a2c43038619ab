package events

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultBuffer = 16

// Event is one payload pushed to subscribers. Name is the optional SSE event
// name; Data is encoded as JSON.
type Event struct {
	ID   string
	Name string
	Data any
}

// Popup asks clients to surface a web popup pointing at URL.
type Popup struct {
	URL string `json:"url"`
}

func NewPopupEvent(url string) Event {
	return Event{ID: uuid.NewString(), Data: Popup{URL: url}}
}

// Subscription is the handle of one open subscriber. It moves from open to
// closed exactly once.
type Subscription struct {
	id     string
	ch     chan Event
	done   chan struct{}
	closed sync.Once
}

func (s *Subscription) ID() string            { return s.id }
func (s *Subscription) Events() <-chan Event  { return s.ch }
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) close() { s.closed.Do(func() { close(s.done) }) }

func (s *Subscription) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Broadcaster fans events out to the current set of subscribers. Each
// subscriber has a bounded buffer; a full buffer drops the event for that
// subscriber only.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	buffer int
	closed bool

	log     *zap.Logger
	metrics *Metrics
}

func NewBroadcaster(buffer int, log *zap.Logger, m *Metrics) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Broadcaster{
		subs:    make(map[string]*Subscription),
		buffer:  buffer,
		log:     log,
		metrics: m,
	}
}

func (b *Broadcaster) Subscribe() *Subscription {
	s := &Subscription{
		id:   uuid.NewString(),
		ch:   make(chan Event, b.buffer),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		s.close()
		return s
	}
	b.subs[s.id] = s
	b.metrics.setSubscribers(len(b.subs))
	return s
}

// Unsubscribe closes s and removes it from future broadcasts. Repeated calls
// are no-ops.
func (b *Broadcaster) Unsubscribe(s *Subscription) {
	if s == nil {
		return
	}
	s.close()

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[s.id]; ok {
		delete(b.subs, s.id)
		b.metrics.setSubscribers(len(b.subs))
	}
}

// Broadcast hands ev to every subscriber registered at call time and returns
// how many accepted it. It never blocks on a slow subscriber.
func (b *Broadcaster) Broadcast(ev Event) int {
	b.mu.RLock()
	targets := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	delivered := 0
	for _, s := range targets {
		switch b.deliver(s, ev) {
		case resultDelivered:
			delivered++
		case resultClosed:
			b.log.Debug("subscriber closed during broadcast", zap.String("subscriber_id", s.id))
		case resultDropped:
			b.log.Warn("subscriber buffer full, event dropped",
				zap.String("subscriber_id", s.id),
				zap.String("event_id", ev.ID),
			)
		}
	}
	return delivered
}

func (b *Broadcaster) deliver(s *Subscription, ev Event) string {
	result := resultDropped
	if s.isClosed() {
		result = resultClosed
	} else {
		select {
		case s.ch <- ev:
			result = resultDelivered
		case <-s.done:
			result = resultClosed
		default:
		}
	}
	b.metrics.delivery(result)
	return result
}

func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscription and rejects new ones.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, s := range b.subs {
		s.close()
		delete(b.subs, id)
	}
	b.metrics.setSubscribers(0)
}
