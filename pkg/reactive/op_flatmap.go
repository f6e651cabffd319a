package reactive

import (
	"sync"

	"golang.org/x/sync/semaphore"
)

// FlatMap subscribes to up to maxPublishers inner publishers concurrently,
// admission-controlled by a weighted semaphore, merging their values into a
// single downstream in arrival order. Outer values received while every
// slot is occupied are queued and admitted as slots free up. A shared
// buffer holds values arriving while downstream demand is zero; the buffer
// is drained one value at a time, pulling one more from the value's
// originating inner only after that delivery succeeds, so downstream
// demand is honored end to end (§4.7).
func FlatMap[T, R any](source Publisher[T], maxPublishers int, f func(T) Publisher[R]) Publisher[R] {
	if maxPublishers <= 0 {
		protocolViolation("FlatMap: maxPublishers must be positive")
	}
	return PublisherFunc[R](func(sub Subscriber[R]) {
		s := &flatMapSubscriber[T, R]{
			downstream: sub,
			f:          f,
			sem:        semaphore.NewWeighted(int64(maxPublishers)),
		}
		source.Subscribe(s)
	})
}

// flatMapQueued is one value buffered downstream of a slower subscriber,
// paired with the subscription of the inner that produced it so the next
// value can be pulled from that same inner once this one is delivered.
type flatMapQueued[R any] struct {
	sub   Subscription
	value R
}

type flatMapSubscriber[T, R any] struct {
	mu             sync.Mutex
	downstream     Subscriber[R]
	f              func(T) Publisher[R]
	sem            *semaphore.Weighted
	outer          Subscription
	outerRequested bool
	active         int
	pendingOuter   []T
	queue          []flatMapQueued[R]
	demand         Demand
	outerDone      bool
	terminal       bool
	delivered      bool
	draining       bool // reentrancy guard while draining the value queue
}

func (s *flatMapSubscriber[T, R]) OnSubscribe(outer Subscription) {
	s.mu.Lock()
	s.outer = outer
	first := !s.delivered
	s.delivered = true
	s.mu.Unlock()
	if first {
		s.downstream.OnSubscribe(s)
	}
}

func (s *flatMapSubscriber[T, R]) OnNext(v T) Demand {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return None
	}
	if !s.sem.TryAcquire(1) {
		s.pendingOuter = append(s.pendingOuter, v)
		s.mu.Unlock()
		return NewDemand(1)
	}
	s.active++
	s.mu.Unlock()

	s.subscribeInner(v)
	return NewDemand(1)
}

func (s *flatMapSubscriber[T, R]) subscribeInner(v T) {
	inner := s.f(v)
	inner.Subscribe(&flatMapInnerSubscriber[T, R]{parent: s})
}

func (s *flatMapSubscriber[T, R]) OnComplete(c Completion) {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	if c.IsFailed() {
		s.terminal = true
		s.mu.Unlock()
		s.downstream.OnComplete(c)
		return
	}
	s.outerDone = true
	s.mu.Unlock()
	s.checkFinish()
}

// enqueue buffers a value produced by an inner's subscription and attempts
// to drain it straight through if downstream demand already permits.
func (s *flatMapSubscriber[T, R]) enqueue(sub Subscription, v R) {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, flatMapQueued[R]{sub: sub, value: v})
	s.mu.Unlock()
	s.drain()
}

// drain delivers buffered values one at a time while downstream demand
// remains, pulling exactly one more value from the originating inner after
// each delivery (§4.7). Reentrant calls (drain invoked again while already
// draining, e.g. from within a downstream OnNext that requests more) are
// coalesced into the running loop via the draining flag.
func (s *flatMapSubscriber[T, R]) drain() {
	s.mu.Lock()
	if s.terminal || s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.mu.Unlock()

	for {
		s.mu.Lock()
		if s.terminal || len(s.queue) == 0 || s.demand.IsZero() {
			s.draining = false
			s.mu.Unlock()
			s.checkFinish()
			return
		}
		item := s.queue[0]
		s.queue = s.queue[1:]
		s.demand = s.demand.Sub(NewDemand(1))
		s.mu.Unlock()

		extra := s.downstream.OnNext(item.value)
		recordDelivered("flatmap")

		s.mu.Lock()
		s.demand = s.demand.Add(extra)
		s.mu.Unlock()

		item.sub.Request(NewDemand(1))
	}
}

// innerFinished admits queued outer values into the freed slot and checks
// for overall completion; it never delivers buffered values itself since
// that is drain's job, kept separate so admission and delivery don't
// contend for the same reentrancy guard.
func (s *flatMapSubscriber[T, R]) innerFinished() {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	s.active--
	s.sem.Release(1)

	var admitted []T
	for len(s.pendingOuter) > 0 && s.sem.TryAcquire(1) {
		admitted = append(admitted, s.pendingOuter[0])
		s.pendingOuter = s.pendingOuter[1:]
		s.active++
	}
	s.mu.Unlock()

	for _, v := range admitted {
		s.subscribeInner(v)
	}
	s.checkFinish()
}

func (s *flatMapSubscriber[T, R]) checkFinish() {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	done := s.outerDone && s.active == 0 && len(s.pendingOuter) == 0 && len(s.queue) == 0
	if done {
		s.terminal = true
	}
	s.mu.Unlock()
	if done {
		s.downstream.OnComplete(FinishedCompletion())
	}
}

func (s *flatMapSubscriber[T, R]) innerFailed(c Completion) {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	s.terminal = true
	outer := s.outer
	s.mu.Unlock()
	if outer != nil {
		outer.Cancel()
	}
	s.downstream.OnComplete(c)
}

func (s *flatMapSubscriber[T, R]) Request(d Demand) {
	requireNonZeroDemand(d)
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	s.demand = s.demand.Add(d)
	first := !s.outerRequested
	s.outerRequested = true
	outer := s.outer
	s.mu.Unlock()
	if first {
		outer.Request(Unlimited)
	}
	s.drain()
}

func (s *flatMapSubscriber[T, R]) Cancel() {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	s.terminal = true
	outer := s.outer
	s.mu.Unlock()
	if outer != nil {
		outer.Cancel()
	}
}

// flatMapInnerSubscriber is one of up to maxPublishers concurrently active
// inner subscribers. It requests exactly one value at a time from its own
// subscription rather than Unlimited, so a slow downstream throttles every
// inner transitively instead of each inner racing ahead into the buffer.
type flatMapInnerSubscriber[T, R any] struct {
	parent *flatMapSubscriber[T, R]
	sub    Subscription
}

func (i *flatMapInnerSubscriber[T, R]) OnSubscribe(sub Subscription) {
	i.sub = sub
	sub.Request(NewDemand(1))
}

func (i *flatMapInnerSubscriber[T, R]) OnNext(v R) Demand {
	i.parent.enqueue(i.sub, v)
	return None
}

func (i *flatMapInnerSubscriber[T, R]) OnComplete(c Completion) {
	if c.IsFailed() {
		i.parent.innerFailed(c)
		return
	}
	i.parent.innerFinished()
}
