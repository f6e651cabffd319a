package reactive

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Debounce emits only the most recent value once interval has elapsed
// without a newer one arriving, via scheduler. Every new value bumps a
// monotonic generation counter and cancels whatever was scheduled for the
// previous one; the generation→Cancellable association is kept in a
// small bounded LRU rather than a single field, since a cancellation and a
// fresh schedule can momentarily overlap across the lock boundary (§4.9).
func Debounce[T any](source Publisher[T], interval time.Duration, scheduler Scheduler) Publisher[T] {
	cache, _ := lru.New[int64, Cancellable](2)
	return PublisherFunc[T](func(sub Subscriber[T]) {
		s := &debounceSubscriber[T]{
			downstream:   sub,
			interval:     interval,
			scheduler:    scheduler,
			cancellables: cache,
		}
		source.Subscribe(s)
	})
}

type debounceSubscriber[T any] struct {
	mu               sync.Mutex
	downstream       Subscriber[T]
	interval         time.Duration
	scheduler        Scheduler
	upstream         Subscription
	upstreamRequested bool
	generation       int64
	cancellables     *lru.Cache[int64, Cancellable]
	have             bool
	latest           T
	awaitingEmit     bool
	demand           Demand
	upstreamDone     bool
	terminal         bool
}

func (s *debounceSubscriber[T]) OnSubscribe(sub Subscription) {
	s.mu.Lock()
	s.upstream = sub
	s.mu.Unlock()
	s.downstream.OnSubscribe(s)
}

func (s *debounceSubscriber[T]) OnNext(v T) Demand {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return None
	}
	s.generation++
	gen := s.generation
	prevGen := gen - 1
	s.have = true
	s.awaitingEmit = false
	s.latest = v
	if prev, ok := s.cancellables.Get(prevGen); ok {
		prev.Cancel()
		s.cancellables.Remove(prevGen)
	}
	s.mu.Unlock()

	c := s.scheduler.ScheduleAfter(s.scheduler.Now().Add(s.interval), s.scheduler.MinimumTolerance(), func() {
		s.fire(gen)
	})

	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		c.Cancel()
		return None
	}
	s.cancellables.Add(gen, c)
	s.mu.Unlock()
	return NewDemand(1)
}

func (s *debounceSubscriber[T]) fire(gen int64) {
	s.mu.Lock()
	if s.terminal || gen != s.generation || !s.have {
		s.mu.Unlock()
		return
	}
	if s.demand.IsZero() {
		s.awaitingEmit = true
		s.mu.Unlock()
		return
	}
	v := s.latest
	s.have = false
	s.demand = s.demand.Sub(NewDemand(1))
	s.mu.Unlock()

	extra := s.downstream.OnNext(v)
	recordDelivered("debounce")
	if !extra.IsZero() {
		s.mu.Lock()
		s.demand = s.demand.Add(extra)
		s.mu.Unlock()
	}
	s.checkFinish()
}

func (s *debounceSubscriber[T]) deliverAwaiting() {
	s.mu.Lock()
	if s.terminal || !s.awaitingEmit || s.demand.IsZero() {
		s.mu.Unlock()
		return
	}
	v := s.latest
	s.have = false
	s.awaitingEmit = false
	s.demand = s.demand.Sub(NewDemand(1))
	s.mu.Unlock()

	extra := s.downstream.OnNext(v)
	recordDelivered("debounce")
	if !extra.IsZero() {
		s.mu.Lock()
		s.demand = s.demand.Add(extra)
		s.mu.Unlock()
	}
	s.checkFinish()
}

func (s *debounceSubscriber[T]) checkFinish() {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	if s.upstreamDone && !s.have && !s.awaitingEmit {
		s.terminal = true
		s.mu.Unlock()
		recordCompletion("debounce", FinishedCompletion())
		s.downstream.OnComplete(FinishedCompletion())
		return
	}
	s.mu.Unlock()
}

func (s *debounceSubscriber[T]) OnComplete(c Completion) {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	if c.IsFailed() {
		s.terminal = true
		s.mu.Unlock()
		recordCompletion("debounce", c)
		s.downstream.OnComplete(c)
		return
	}
	s.upstreamDone = true
	hadPending := s.have
	gen := s.generation
	s.mu.Unlock()

	if !hadPending {
		s.mu.Lock()
		s.terminal = true
		s.mu.Unlock()
		recordCompletion("debounce", FinishedCompletion())
		s.downstream.OnComplete(FinishedCompletion())
		return
	}
	if cancellable, ok := s.cancellables.Get(gen); ok {
		cancellable.Cancel()
		s.cancellables.Remove(gen)
	}
	s.fire(gen)
}

func (s *debounceSubscriber[T]) Request(d Demand) {
	requireNonZeroDemand(d)
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	s.demand = s.demand.Add(d)
	first := !s.upstreamRequested
	s.upstreamRequested = true
	up := s.upstream
	awaiting := s.awaitingEmit
	s.mu.Unlock()

	if first {
		up.Request(Unlimited)
	}
	if awaiting {
		s.deliverAwaiting()
	}
}

func (s *debounceSubscriber[T]) Cancel() {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	s.terminal = true
	up := s.upstream
	keys := s.cancellables.Keys()
	s.mu.Unlock()

	for _, k := range keys {
		if c, ok := s.cancellables.Get(k); ok {
			c.Cancel()
		}
	}
	recordCancelled("debounce")
	if up != nil {
		up.Cancel()
	}
}
