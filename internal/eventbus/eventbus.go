// Package eventbus implements the multi-topic pub/sub EventBus (C10):
// lifecycle and milestone fan-out with Once/Unsubscribe and an error
// topic. Dispatch runs on a dedicated per-topic goroutine so a slow
// subscriber never stalls a driver — an explicit strengthening over the
// teacher's synchronous internal/order.Manager callbacks, whose
// panic-recovery idiom (safeInvoke) this package reuses.
package eventbus

import (
	"sync"

	"github.com/google/uuid"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/logger"
)

// Well-known topics, per spec.md §4.10.
const (
	TopicSignal                 = "signal"
	TopicSignalLive             = "signalLive"
	TopicSignalBacktest         = "signalBacktest"
	TopicBreakevenAvailable     = "breakevenAvailable"
	TopicPartialProfitAvailable = "partialProfitAvailable"
	TopicPartialLossAvailable   = "partialLossAvailable"
	TopicSchedulePing           = "schedulePing"
	TopicActivePing             = "activePing"
	TopicRisk                   = "risk"
	TopicDoneBacktest           = "doneBacktest"
	TopicDoneLive               = "doneLive"
	TopicError                  = "error"
)

// Event is the envelope delivered to every subscriber; Payload carries
// the topic-specific data (an engine.Result, a risk rejection reason, an
// error, etc).
type Event struct {
	ID      string
	Topic   string
	Payload any
}

// Handler receives one Event. Panics are recovered and re-emitted on the
// error topic rather than propagated or allowed to kill the dispatch
// goroutine.
type Handler func(Event)

// Predicate filters events for Once subscriptions.
type Predicate func(Event) bool

// Unsubscribe removes a subscription; idempotent, safe to call more than
// once.
type Unsubscribe func()

type subscription struct {
	id        string
	handler   Handler
	predicate Predicate // nil for On; non-nil, once-firing for Once
	once      bool
}

type topicQueue struct {
	mu   sync.Mutex
	subs []*subscription
	ch   chan Event
}

// Bus is the process-wide EventBus. Zero value is not usable; construct
// with New.
type Bus struct {
	mu     sync.Mutex
	topics map[string]*topicQueue
}

// New creates an empty Bus. Each topic gets its dispatch goroutine lazily,
// on first subscription or first emission.
func New() *Bus {
	return &Bus{topics: make(map[string]*topicQueue)}
}

func (b *Bus) queueFor(topic string) *topicQueue {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.topics[topic]
	if !ok {
		q = &topicQueue{ch: make(chan Event, 256)}
		b.topics[topic] = q
		go b.dispatch(topic, q)
	}
	return q
}

func (b *Bus) dispatch(topic string, q *topicQueue) {
	log := logger.Component("eventbus")
	for evt := range q.ch {
		q.mu.Lock()
		subs := make([]*subscription, len(q.subs))
		copy(subs, q.subs)
		q.mu.Unlock()

		for _, sub := range subs {
			sub := sub
			if sub.predicate != nil && !sub.predicate(evt) {
				continue
			}
			b.safeInvoke(log, topic, sub.handler, evt)
			if sub.once {
				b.unsubscribe(topic, sub.id)
			}
		}
	}
}

func (b *Bus) safeInvoke(log *logger.Logger, topic string, h Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("subscriber panic", "topic", topic, "recovered", r)
			if topic != TopicError {
				b.Emit(TopicError, r)
			}
		}
	}()
	h(evt)
}

// On subscribes fn to every event published on topic until unsubscribed.
func (b *Bus) On(topic string, fn Handler) Unsubscribe {
	q := b.queueFor(topic)
	sub := &subscription{id: uuid.New().String(), handler: fn}
	q.mu.Lock()
	q.subs = append(q.subs, sub)
	q.mu.Unlock()
	return func() { b.unsubscribe(topic, sub.id) }
}

// Once subscribes fn to fire at most once, the first time pred matches an
// event on topic (pred may be nil to match unconditionally).
func (b *Bus) Once(topic string, pred Predicate, fn Handler) Unsubscribe {
	q := b.queueFor(topic)
	sub := &subscription{id: uuid.New().String(), handler: fn, predicate: pred, once: true}
	q.mu.Lock()
	q.subs = append(q.subs, sub)
	q.mu.Unlock()
	return func() { b.unsubscribe(topic, sub.id) }
}

func (b *Bus) unsubscribe(topic, id string) {
	b.mu.Lock()
	q, ok := b.topics[topic]
	b.mu.Unlock()
	if !ok {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, s := range q.subs {
		if s.id == id {
			q.subs = append(q.subs[:i], q.subs[i+1:]...)
			return
		}
	}
}

// Emit publishes payload on topic, fire-and-forget. Never blocks the
// caller beyond the buffered channel's capacity.
func (b *Bus) Emit(topic string, payload any) {
	q := b.queueFor(topic)
	q.ch <- Event{ID: uuid.New().String(), Topic: topic, Payload: payload}
}
