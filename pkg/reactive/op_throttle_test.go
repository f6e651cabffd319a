package reactive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThrottle_FirstValueInWindowIsDeliveredImmediately(t *testing.T) {
	sched := NewVirtualScheduler(time.Unix(0, 0))
	var up Subscriber[int]
	src := PublisherFunc[int](func(sub Subscriber[int]) {
		up = sub
		sub.OnSubscribe(Noop)
	})

	rec := NewRecordingSubscriber[int]()
	Throttle[int](src, 10*time.Millisecond, true, sched).Subscribe(rec)
	rec.Subscription.Request(Unlimited)

	up.OnNext(1)
	values, _ := rec.Snapshot()
	assert.Equal(t, []int{1}, values)
}

func TestThrottle_LatestCoalescesToNewestWithinWindow(t *testing.T) {
	sched := NewVirtualScheduler(time.Unix(0, 0))
	var up Subscriber[int]
	src := PublisherFunc[int](func(sub Subscriber[int]) {
		up = sub
		sub.OnSubscribe(Noop)
	})

	rec := NewRecordingSubscriber[int]()
	Throttle[int](src, 10*time.Millisecond, true, sched).Subscribe(rec)
	rec.Subscription.Request(Unlimited)

	up.OnNext(1)
	up.OnNext(2)
	up.OnNext(3)
	sched.Advance(10 * time.Millisecond)

	values, _ := rec.Snapshot()
	assert.Equal(t, []int{1, 3}, values)
}

func TestThrottle_FirstKeepsTheEarlierPendingValue(t *testing.T) {
	sched := NewVirtualScheduler(time.Unix(0, 0))
	var up Subscriber[int]
	src := PublisherFunc[int](func(sub Subscriber[int]) {
		up = sub
		sub.OnSubscribe(Noop)
	})

	rec := NewRecordingSubscriber[int]()
	Throttle[int](src, 10*time.Millisecond, false, sched).Subscribe(rec)
	rec.Subscription.Request(Unlimited)

	up.OnNext(1)
	up.OnNext(2)
	up.OnNext(3)
	sched.Advance(10 * time.Millisecond)

	values, _ := rec.Snapshot()
	assert.Equal(t, []int{1, 2}, values)
}

func TestThrottle_FlushWithNoPendingValueDoesNotEmit(t *testing.T) {
	sched := NewVirtualScheduler(time.Unix(0, 0))
	var up Subscriber[int]
	src := PublisherFunc[int](func(sub Subscriber[int]) {
		up = sub
		sub.OnSubscribe(Noop)
	})

	rec := NewRecordingSubscriber[int]()
	Throttle[int](src, 10*time.Millisecond, true, sched).Subscribe(rec)
	rec.Subscription.Request(Unlimited)

	up.OnNext(1)
	sched.Advance(10 * time.Millisecond)

	values, _ := rec.Snapshot()
	assert.Equal(t, []int{1}, values)
}

func TestThrottle_OpensNewWindowAfterPreviousFlush(t *testing.T) {
	sched := NewVirtualScheduler(time.Unix(0, 0))
	var up Subscriber[int]
	src := PublisherFunc[int](func(sub Subscriber[int]) {
		up = sub
		sub.OnSubscribe(Noop)
	})

	rec := NewRecordingSubscriber[int]()
	Throttle[int](src, 10*time.Millisecond, true, sched).Subscribe(rec)
	rec.Subscription.Request(Unlimited)

	up.OnNext(1)
	sched.Advance(10 * time.Millisecond)
	up.OnNext(2)

	values, _ := rec.Snapshot()
	assert.Equal(t, []int{1, 2}, values)
}

func TestThrottle_CompletesOnceWindowClosesAndNoPendingRemains(t *testing.T) {
	sched := NewVirtualScheduler(time.Unix(0, 0))
	var up Subscriber[int]
	src := PublisherFunc[int](func(sub Subscriber[int]) {
		up = sub
		sub.OnSubscribe(Noop)
	})

	rec := NewRecordingSubscriber[int]()
	Throttle[int](src, 10*time.Millisecond, true, sched).Subscribe(rec)
	rec.Subscription.Request(Unlimited)

	up.OnNext(1)
	up.OnComplete(FinishedCompletion())

	_, completion := rec.Snapshot()
	assert.Nil(t, completion)

	sched.Advance(10 * time.Millisecond)
	_, completion = rec.Snapshot()
	assert.NotNil(t, completion)
	assert.True(t, completion.IsFinished())
}

func TestThrottle_FailurePropagatesImmediately(t *testing.T) {
	boom := assertableErr("boom")
	src := PublisherFunc[int](func(sub Subscriber[int]) {
		sub.OnSubscribe(Noop)
		sub.OnComplete(FailedCompletion(boom))
	})
	_, completion := Collect[int](Throttle[int](src, time.Hour, true, NewVirtualScheduler(time.Unix(0, 0))))
	assert.True(t, completion.IsFailed())
	assert.Equal(t, boom, completion.Err)
}

func TestThrottle_ZeroDemandHoldsEmissionUntilNextRequest(t *testing.T) {
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
	Throttle[int](src, 10*time.Millisecond, true, sched).Subscribe(downstream)

	// No demand yet: the immediate delivery attempt for the first value
	// must be held back as awaitingEmit.
	up.OnNext(1)
	assert.Empty(t, delivered)

	sub.Request(NewDemand(1))
	assert.Equal(t, []int{1}, delivered)
}

type assertableErr string

func (e assertableErr) Error() string { return string(e) }
