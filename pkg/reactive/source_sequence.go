package reactive

import "sync"

// sequenceSubscription drains an iterator while demand remains, guarding
// re-entrant Request calls (a downstream that requests more from inside
// OnNext) behind a draining flag so delivery loops instead of recursing
// (§4.13, §9).
type sequenceSubscription[T any] struct {
	mu         sync.Mutex
	downstream Subscriber[T]
	values     []T
	idx        int
	next       func() (T, bool)
	demand     Demand
	draining   bool
	cancelled  bool
	finished   bool
}

func (s *sequenceSubscription[T]) Request(d Demand) {
	requireNonZeroDemand(d)
	s.mu.Lock()
	if s.cancelled || s.finished {
		s.mu.Unlock()
		return
	}
	s.demand = s.demand.Add(d)
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.mu.Unlock()
	s.drain()
}

func (s *sequenceSubscription[T]) Cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
}

func (s *sequenceSubscription[T]) drain() {
	for {
		s.mu.Lock()
		if s.cancelled || s.finished {
			s.draining = false
			s.mu.Unlock()
			return
		}
		if s.demand.IsZero() {
			s.draining = false
			s.mu.Unlock()
			return
		}
		v, ok := s.pull()
		if !ok {
			s.finished = true
			s.draining = false
			s.mu.Unlock()
			s.downstream.OnComplete(FinishedCompletion())
			return
		}
		s.demand = s.demand.Sub(NewDemand(1))
		s.mu.Unlock()

		extra := s.downstream.OnNext(v)

		s.mu.Lock()
		s.demand = s.demand.Add(extra)
		s.mu.Unlock()
	}
}

// pull must be called with s.mu held.
func (s *sequenceSubscription[T]) pull() (T, bool) {
	if s.next != nil {
		return s.next()
	}
	if s.idx < len(s.values) {
		v := s.values[s.idx]
		s.idx++
		return v, true
	}
	var zero T
	return zero, false
}

// Sequence emits each element of values in order, then finishes.
func Sequence[T any](values ...T) Publisher[T] {
	return PublisherFunc[T](func(sub Subscriber[T]) {
		sub.OnSubscribe(&sequenceSubscription[T]{downstream: sub, values: values})
	})
}

// GenerateSequence emits whatever next produces until it returns ok=false,
// which lets it model an unbounded source the same way a finite Sequence
// models a fixed slice.
func GenerateSequence[T any](next func() (T, bool)) Publisher[T] {
	return PublisherFunc[T](func(sub Subscriber[T]) {
		sub.OnSubscribe(&sequenceSubscription[T]{downstream: sub, next: next})
	})
}
