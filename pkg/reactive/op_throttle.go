package reactive

import (
	"sync"
	"time"
)

// Throttle limits delivery to at most two values per interval window. The
// first value of a window is delivered immediately and opens the window; later
// values arriving before the window closes are coalesced according to
// latest (keep the newest) or first (keep the one already held), and the
// survivor is delivered when the window's scheduled flush fires (§4.10).
func Throttle[T any](source Publisher[T], interval time.Duration, latest bool, scheduler Scheduler) Publisher[T] {
	return PublisherFunc[T](func(sub Subscriber[T]) {
		s := &throttleSubscriber[T]{downstream: sub, interval: interval, latest: latest, scheduler: scheduler}
		source.Subscribe(s)
	})
}

type throttleSubscriber[T any] struct {
	mu                sync.Mutex
	downstream        Subscriber[T]
	interval          time.Duration
	latest            bool
	scheduler         Scheduler
	upstream          Subscription
	upstreamRequested bool
	demand            Demand
	windowActive      bool
	havePending       bool
	pendingValue      T
	awaitingEmit      bool
	awaitingValue     T
	upstreamDone      bool
	terminal          bool
}

func (s *throttleSubscriber[T]) OnSubscribe(sub Subscription) {
	s.mu.Lock()
	s.upstream = sub
	s.mu.Unlock()
	s.downstream.OnSubscribe(s)
}

func (s *throttleSubscriber[T]) OnNext(v T) Demand {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return None
	}
	if !s.windowActive {
		s.windowActive = true
		s.mu.Unlock()
		s.scheduler.ScheduleAfter(s.scheduler.Now().Add(s.interval), s.scheduler.MinimumTolerance(), func() {
			s.flush()
		})
		s.emit(v)
		return NewDemand(1)
	}
	if s.latest || !s.havePending {
		s.pendingValue = v
		s.havePending = true
	}
	s.mu.Unlock()
	return NewDemand(1)
}

func (s *throttleSubscriber[T]) emit(v T) {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	if s.demand.IsZero() {
		s.awaitingEmit = true
		s.awaitingValue = v
		s.mu.Unlock()
		return
	}
	s.demand = s.demand.Sub(NewDemand(1))
	s.mu.Unlock()

	extra := s.downstream.OnNext(v)
	recordDelivered("throttle")
	if !extra.IsZero() {
		s.mu.Lock()
		s.demand = s.demand.Add(extra)
		s.mu.Unlock()
	}
	s.checkFinish()
}

func (s *throttleSubscriber[T]) flush() {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	s.windowActive = false
	if !s.havePending {
		s.mu.Unlock()
		s.checkFinish()
		return
	}
	v := s.pendingValue
	s.havePending = false
	s.mu.Unlock()
	s.emit(v)
}

func (s *throttleSubscriber[T]) checkFinish() {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	if s.upstreamDone && !s.havePending && !s.windowActive && !s.awaitingEmit {
		s.terminal = true
		s.mu.Unlock()
		recordCompletion("throttle", FinishedCompletion())
		s.downstream.OnComplete(FinishedCompletion())
		return
	}
	s.mu.Unlock()
}

func (s *throttleSubscriber[T]) OnComplete(c Completion) {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	if c.IsFailed() {
		s.terminal = true
		s.mu.Unlock()
		recordCompletion("throttle", c)
		s.downstream.OnComplete(c)
		return
	}
	s.upstreamDone = true
	s.mu.Unlock()
	s.checkFinish()
}

func (s *throttleSubscriber[T]) Request(d Demand) {
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
	var av T
	if awaiting {
		av = s.awaitingValue
		s.awaitingEmit = false
	}
	s.mu.Unlock()

	if first {
		up.Request(Unlimited)
	}
	if awaiting {
		s.emit(av)
	}
}

func (s *throttleSubscriber[T]) Cancel() {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	s.terminal = true
	up := s.upstream
	s.mu.Unlock()
	recordCancelled("throttle")
	if up != nil {
		up.Cancel()
	}
}
