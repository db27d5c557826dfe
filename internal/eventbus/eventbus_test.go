package eventbus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOn_ReceivesEveryEvent(t *testing.T) {
	b := New()
	var mu sync.Mutex
	var got []int

	b.On(TopicSignal, func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Payload.(int))
	})

	for i := 0; i < 3; i++ {
		b.Emit(TopicSignal, i)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	b := New()
	var mu sync.Mutex
	count := 0

	unsub := b.On(TopicRisk, func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		count++
	})
	b.Emit(TopicRisk, "first")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	}, time.Second, 5*time.Millisecond)

	unsub()
	b.Emit(TopicRisk, "second")
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestOnce_FiresAtMostOnce(t *testing.T) {
	b := New()
	var mu sync.Mutex
	count := 0

	b.Once(TopicSignal, nil, func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		count++
	})

	b.Emit(TopicSignal, 1)
	b.Emit(TopicSignal, 2)
	b.Emit(TopicSignal, 3)

	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestOnce_PredicateGatesFirstMatch(t *testing.T) {
	b := New()
	var mu sync.Mutex
	var fired int

	b.Once(TopicSignal, func(e Event) bool {
		return e.Payload.(int) >= 5
	}, func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		fired = e.Payload.(int)
	})

	for i := 0; i < 10; i++ {
		b.Emit(TopicSignal, i)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fired != 0
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, fired)
}

func TestSubscriberPanic_IsCaughtAndReemittedOnErrorTopic(t *testing.T) {
	b := New()
	var mu sync.Mutex
	var errEvents []any

	b.On(TopicError, func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		errEvents = append(errEvents, e.Payload)
	})
	b.On(TopicSignal, func(e Event) {
		panic("boom")
	})

	b.Emit(TopicSignal, "x")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(errEvents) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestTopics_AreIndependent(t *testing.T) {
	b := New()
	var mu sync.Mutex
	riskCount, signalCount := 0, 0

	b.On(TopicRisk, func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		riskCount++
	})
	b.On(TopicSignal, func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		signalCount++
	})

	b.Emit(TopicRisk, nil)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return riskCount == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, signalCount)
}
