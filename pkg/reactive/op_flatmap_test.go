package reactive

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlatMap_MergesAllInnerValues(t *testing.T) {
	values, completion := Collect[int](FlatMap[int, int](Sequence(1, 2, 3), 2, func(v int) Publisher[int] {
		return Sequence(v, v*10)
	}))
	sort.Ints(values)
	assert.Equal(t, []int{1, 2, 3, 10, 20, 30}, values)
	assert.True(t, completion.IsFinished())
}

func TestFlatMap_RejectsNonPositiveMaxPublishers(t *testing.T) {
	assert.Panics(t, func() {
		FlatMap[int, int](Sequence(1), 0, func(int) Publisher[int] { return Empty[int]() })
	})
}

func TestFlatMap_QueuesOuterValuesBeyondMaxPublishers(t *testing.T) {
	var innerSubs []*controllableFlatMapInner
	src := PublisherFunc[int](func(sub Subscriber[int]) {
		sub.OnSubscribe(&noopOuterSubscription{})
		sub.OnNext(1)
		sub.OnNext(2)
		sub.OnNext(3)
	})

	rec := NewRecordingSubscriber[int]()
	FlatMap[int, int](src, 1, func(v int) Publisher[int] {
		inner := &controllableFlatMapInner{}
		innerSubs = append(innerSubs, inner)
		return inner
	}).Subscribe(rec)
	rec.Subscription.Request(Unlimited)

	// Only the first outer value should have been admitted; the rest wait
	// on the semaphore until a slot frees up.
	assert.Len(t, innerSubs, 1)

	innerSubs[0].complete(FinishedCompletion())
	assert.Len(t, innerSubs, 2)

	innerSubs[1].complete(FinishedCompletion())
	assert.Len(t, innerSubs, 3)
}

func TestFlatMap_HonorsDownstreamDemandAcrossConcurrentInners(t *testing.T) {
	var sub Subscription
	var delivered []int
	downstream := &selfRequestingSubscriber{
		onSubscribe: func(s Subscription) { sub = s },
		onNext: func(v int) Demand {
			delivered = append(delivered, v)
			return None
		},
	}
	outer := PublisherFunc[int](func(s Subscriber[int]) {
		s.OnSubscribe(&noopOuterSubscription{})
		// No downstream demand exists yet, so both inners' eager deliveries
		// land in the shared buffer instead of reaching downstream.
		s.OnNext(1)
		s.OnNext(2)
	})

	FlatMap[int, int](outer, 2, func(v int) Publisher[int] {
		return &onceValueInner{value: v}
	}).Subscribe(downstream)

	sub.Request(NewDemand(1))
	assert.Equal(t, []int{1}, delivered)

	sub.Request(NewDemand(1))
	assert.Equal(t, []int{1, 2}, delivered)
}

func TestFlatMap_PullsExactlyOneValueAtATimeFromEachInner(t *testing.T) {
	var requestCounts []int
	var sub Subscription
	var delivered []int
	downstream := &selfRequestingSubscriber{
		onSubscribe: func(s Subscription) { sub = s },
		onNext: func(v int) Demand {
			delivered = append(delivered, v)
			return None
		},
	}
	src := PublisherFunc[int](func(s Subscriber[int]) {
		s.OnSubscribe(&noopOuterSubscription{})
		s.OnNext(1)
	})
	FlatMap[int, int](src, 1, func(v int) Publisher[int] {
		return &countingRequestInner{values: []int{10, 20, 30}, counts: &requestCounts}
	}).Subscribe(downstream)

	// Subscribing alone pulls exactly one value from the inner (the eager
	// first request); nothing is delivered until downstream asks.
	assert.Empty(t, delivered)
	assert.Len(t, requestCounts, 1)

	sub.Request(NewDemand(1))
	assert.Equal(t, []int{10}, delivered)
	// Delivering 10 pulls exactly one more (20) into the buffer, never all
	// three values at once.
	assert.Len(t, requestCounts, 2)

	sub.Request(NewDemand(1))
	assert.Equal(t, []int{10, 20}, delivered)
	assert.Len(t, requestCounts, 3)
}

func TestFlatMap_InnerFailureCancelsOuterAndPropagates(t *testing.T) {
	boom := errors.New("boom")
	failingInner := PublisherFunc[int](func(sub Subscriber[int]) {
		sub.OnSubscribe(Noop)
		sub.OnComplete(FailedCompletion(boom))
	})
	_, completion := Collect[int](FlatMap[int, int](Sequence(1), 1, func(int) Publisher[int] {
		return failingInner
	}))
	assert.True(t, completion.IsFailed())
	assert.Equal(t, boom, completion.Err)
}

// controllableFlatMapInner is a hand-driven inner publisher used to observe
// exactly when FlatMap admits a queued outer value.
type controllableFlatMapInner struct {
	sub Subscriber[int]
}

func (c *controllableFlatMapInner) Subscribe(sub Subscriber[int]) {
	c.sub = sub
	sub.OnSubscribe(Noop)
}

func (c *controllableFlatMapInner) complete(comp Completion) { c.sub.OnComplete(comp) }

// onceValueInner delivers its single value and completes the first time its
// subscription is asked for anything, simulating an inner that is ready to
// emit as soon as it is subscribed but still honors the request-before-emit
// protocol.
type onceValueInner struct{ value int }

func (o *onceValueInner) Subscribe(sub Subscriber[int]) {
	sub.OnSubscribe(&onceValueInnerSub{sub: sub, value: o.value})
}

type onceValueInnerSub struct {
	sub       Subscriber[int]
	value     int
	requested bool
}

func (s *onceValueInnerSub) Request(Demand) {
	if s.requested {
		return
	}
	s.requested = true
	s.sub.OnNext(s.value)
	s.sub.OnComplete(FinishedCompletion())
}

func (s *onceValueInnerSub) Cancel() {}

// countingRequestInner hands out values one at a time, strictly in response
// to Request calls, recording how many times it was asked so tests can
// assert an operator never pulls further ahead than it needs to.
type countingRequestInner struct {
	values []int
	counts *[]int
}

func (c *countingRequestInner) Subscribe(sub Subscriber[int]) {
	sub.OnSubscribe(&countingRequestInnerSub{sub: sub, values: c.values, counts: c.counts})
}

type countingRequestInnerSub struct {
	sub    Subscriber[int]
	values []int
	idx    int
	counts *[]int
}

func (s *countingRequestInnerSub) Request(Demand) {
	*s.counts = append(*s.counts, 1)
	if s.idx >= len(s.values) {
		return
	}
	v := s.values[s.idx]
	s.idx++
	s.sub.OnNext(v)
}

func (s *countingRequestInnerSub) Cancel() {}
