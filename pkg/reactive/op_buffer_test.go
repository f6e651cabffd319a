package reactive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuffer_RejectsNonPositiveSize(t *testing.T) {
	assert.Panics(t, func() {
		Buffer[int](Sequence(1), 0, BufferPrefetchKeepFull, BufferWhenFullDropNewest, nil)
	})
}

func TestBuffer_DeliversQueuedValuesOnceDemandArrives(t *testing.T) {
	values, completion := Collect[int](Buffer[int](Sequence(1, 2, 3), 2, BufferPrefetchKeepFull, BufferWhenFullDropNewest, nil))
	assert.Equal(t, []int{1, 2, 3}, values)
	assert.True(t, completion.IsFinished())
}

func TestBuffer_DropNewestDiscardsArrivalsOnceFull(t *testing.T) {
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
	Buffer[int](src, 2, BufferPrefetchKeepFull, BufferWhenFullDropNewest, nil).Subscribe(downstream)

	// No downstream demand yet: everything queues up instead of draining.
	up.OnNext(1)
	up.OnNext(2)
	up.OnNext(3) // buffer already holds 2; this one must be dropped.

	sub.Request(NewDemand(1))
	assert.Equal(t, []int{1}, delivered)
	sub.Request(NewDemand(1))
	assert.Equal(t, []int{1, 2}, delivered)
}

func TestBuffer_DropOldestEvictsTheFrontOfTheQueue(t *testing.T) {
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
	Buffer[int](src, 2, BufferPrefetchKeepFull, BufferWhenFullDropOldest, nil).Subscribe(downstream)

	up.OnNext(1)
	up.OnNext(2)
	up.OnNext(3) // evicts 1, leaving [2, 3]

	sub.Request(NewDemand(1))
	assert.Equal(t, []int{2}, delivered)
	sub.Request(NewDemand(1))
	assert.Equal(t, []int{2, 3}, delivered)
}

func TestBuffer_CustomErrorFailsAndCancelsUpstreamOnceFull(t *testing.T) {
	boom := assertableErr("buffer overflow")
	cancelled := false
	src := PublisherFunc[int](func(sub Subscriber[int]) {
		sub.OnSubscribe(&cancelFlagSubscription{flag: &cancelled})
		sub.OnNext(1)
		sub.OnNext(2)
		sub.OnNext(3) // overflows a size-2 buffer
	})

	rec := NewRecordingSubscriber[int]()
	Buffer[int](src, 2, BufferPrefetchKeepFull, BufferWhenFullCustomError, boom).Subscribe(rec)

	_, completion := rec.Snapshot()
	assert.True(t, completion.IsFailed())
	assert.Equal(t, boom, completion.Err)
	assert.True(t, cancelled)
}

func TestBuffer_CompletesOnceQueueDrainsAfterUpstreamFinishes(t *testing.T) {
	var up Subscriber[int]
	var sub Subscription
	src := PublisherFunc[int](func(s Subscriber[int]) {
		up = s
		s.OnSubscribe(Noop)
	})

	var delivered []int
	var completion *Completion
	downstream := &selfRequestingSubscriber{
		onSubscribe: func(s Subscription) { sub = s },
		onNext: func(v int) Demand {
			delivered = append(delivered, v)
			return None
		},
		onComplete: func(c Completion) { completion = &c },
	}
	Buffer[int](src, 5, BufferPrefetchKeepFull, BufferWhenFullDropNewest, nil).Subscribe(downstream)

	up.OnNext(1)
	up.OnComplete(FinishedCompletion())
	assert.Nil(t, completion)

	sub.Request(NewDemand(1))
	assert.Equal(t, []int{1}, delivered)
	assert.NotNil(t, completion)
	assert.True(t, completion.IsFinished())
}
