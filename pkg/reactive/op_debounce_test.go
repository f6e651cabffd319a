package reactive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebounce_NewerValueCancelsPreviousEmission(t *testing.T) {
	sched := NewVirtualScheduler(time.Unix(0, 0))
	var up Subscriber[int]
	src := PublisherFunc[int](func(sub Subscriber[int]) {
		up = sub
		sub.OnSubscribe(Noop)
	})

	rec := NewRecordingSubscriber[int]()
	Debounce[int](src, 10*time.Millisecond, sched).Subscribe(rec)
	rec.Subscription.Request(Unlimited)

	up.OnNext(1)
	sched.Advance(5 * time.Millisecond)
	up.OnNext(2)
	sched.Advance(10 * time.Millisecond)

	values, _ := rec.Snapshot()
	assert.Equal(t, []int{2}, values)
}

func TestDebounce_DeliversValueAfterIntervalElapsesUndisturbed(t *testing.T) {
	sched := NewVirtualScheduler(time.Unix(0, 0))
	var up Subscriber[int]
	src := PublisherFunc[int](func(sub Subscriber[int]) {
		up = sub
		sub.OnSubscribe(Noop)
	})

	rec := NewRecordingSubscriber[int]()
	Debounce[int](src, 10*time.Millisecond, sched).Subscribe(rec)
	rec.Subscription.Request(Unlimited)

	up.OnNext(1)
	sched.Advance(10 * time.Millisecond)

	values, _ := rec.Snapshot()
	assert.Equal(t, []int{1}, values)
}

func TestDebounce_OnCompleteFlushesPendingValueImmediately(t *testing.T) {
	sched := NewVirtualScheduler(time.Unix(0, 0))
	var up Subscriber[int]
	src := PublisherFunc[int](func(sub Subscriber[int]) {
		up = sub
		sub.OnSubscribe(Noop)
	})

	rec := NewRecordingSubscriber[int]()
	Debounce[int](src, time.Hour, sched).Subscribe(rec)
	rec.Subscription.Request(Unlimited)

	up.OnNext(1)
	// Upstream finishes well before the debounce interval would have
	// elapsed on its own; the pending value must still be flushed.
	up.OnComplete(FinishedCompletion())

	values, completion := rec.Snapshot()
	assert.Equal(t, []int{1}, values)
	require.NotNil(t, completion)
	assert.True(t, completion.IsFinished())
}

func TestDebounce_OnCompleteWithNoPendingValueFinishesImmediately(t *testing.T) {
	sched := NewVirtualScheduler(time.Unix(0, 0))
	var up Subscriber[int]
	src := PublisherFunc[int](func(sub Subscriber[int]) {
		up = sub
		sub.OnSubscribe(Noop)
	})

	rec := NewRecordingSubscriber[int]()
	Debounce[int](src, time.Hour, sched).Subscribe(rec)
	rec.Subscription.Request(Unlimited)

	up.OnComplete(FinishedCompletion())

	values, completion := rec.Snapshot()
	assert.Empty(t, values)
	require.NotNil(t, completion)
	assert.True(t, completion.IsFinished())
}

func TestDebounce_FireWithZeroDemandIsDeliveredOnNextRequest(t *testing.T) {
	sched := NewVirtualScheduler(time.Unix(0, 0))
	var up Subscriber[int]
	var sub Subscription
	src := PublisherFunc[int](func(s Subscriber[int]) {
		up = s
		s.OnSubscribe(Noop)
	})

	var delivered []int
	downstream := &selfRequestingSubscriber{
		onSubscribe: func(s Subscription) { sub = s },
		onNext: func(v int) Demand {
			delivered = append(delivered, v)
			return None
		},
	}
	Debounce[int](src, 10*time.Millisecond, sched).Subscribe(downstream)

	// No demand requested yet: the scheduled fire happens with zero
	// outstanding demand and must be held back as awaitingEmit.
	up.OnNext(1)
	sched.Advance(10 * time.Millisecond)
	assert.Empty(t, delivered)

	sub.Request(NewDemand(1))
	assert.Equal(t, []int{1}, delivered)
}

func TestDebounce_CancelStopsScheduledEmission(t *testing.T) {
	sched := NewVirtualScheduler(time.Unix(0, 0))
	var up Subscriber[int]
	src := PublisherFunc[int](func(sub Subscriber[int]) {
		up = sub
		sub.OnSubscribe(Noop)
	})

	rec := NewRecordingSubscriber[int]()
	Debounce[int](src, 10*time.Millisecond, sched).Subscribe(rec)
	rec.Subscription.Request(Unlimited)

	up.OnNext(1)
	rec.Subscription.Cancel()
	sched.Advance(10 * time.Millisecond)

	values, _ := rec.Snapshot()
	assert.Empty(t, values)
}
