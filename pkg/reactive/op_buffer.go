package reactive

import "sync"

// BufferPrefetch selects how eagerly Buffer requests from upstream (§4.11).
type BufferPrefetch int

const (
	// BufferPrefetchKeepFull requests everything upstream has to offer so
	// the buffer is always topped up regardless of downstream demand.
	BufferPrefetchKeepFull BufferPrefetch = iota
	// BufferPrefetchByRequest is documented as intending to forward
	// downstream demand to upstream verbatim, but the behavior kept here
	// reproduces the original implementation's quirk of requesting
	// everything upfront just like KeepFull; see the Open Questions entry
	// this operator is grounded on.
	BufferPrefetchByRequest
)

// BufferWhenFull selects what happens when a value arrives and the buffer
// already holds size elements (§4.11).
type BufferWhenFull int

const (
	BufferWhenFullDropNewest BufferWhenFull = iota
	BufferWhenFullDropOldest
	BufferWhenFullCustomError
)

// Buffer holds up to size values between upstream and a slower downstream,
// applying prefetch to decide how much to request from upstream and
// whenFull to decide what happens once the buffer is saturated (§4.11).
func Buffer[T any](source Publisher[T], size int, prefetch BufferPrefetch, whenFull BufferWhenFull, customErr error) Publisher[T] {
	if size <= 0 {
		protocolViolation("Buffer: size must be positive")
	}
	return PublisherFunc[T](func(sub Subscriber[T]) {
		s := &bufferSubscriber[T]{
			downstream: sub,
			size:       size,
			prefetch:   prefetch,
			whenFull:   whenFull,
			customErr:  customErr,
		}
		source.Subscribe(s)
	})
}

type bufferSubscriber[T any] struct {
	mu                sync.Mutex
	downstream        Subscriber[T]
	size              int
	prefetch          BufferPrefetch
	whenFull          BufferWhenFull
	customErr         error
	upstream          Subscription
	upstreamRequested bool
	queue             []T
	demand            Demand
	upstreamDone      bool
	terminal          bool
	draining          bool
}

func (s *bufferSubscriber[T]) OnSubscribe(sub Subscription) {
	s.mu.Lock()
	s.upstream = sub
	s.mu.Unlock()
	s.downstream.OnSubscribe(s)
}

func (s *bufferSubscriber[T]) OnNext(v T) Demand {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return None
	}
	if len(s.queue) >= s.size {
		switch s.whenFull {
		case BufferWhenFullDropNewest:
			s.mu.Unlock()
			return NewDemand(1)
		case BufferWhenFullDropOldest:
			s.queue = s.queue[1:]
		case BufferWhenFullCustomError:
			s.terminal = true
			up := s.upstream
			s.mu.Unlock()
			up.Cancel()
			s.downstream.OnComplete(FailedCompletion(s.customErr))
			return None
		}
	}
	s.queue = append(s.queue, v)
	s.mu.Unlock()
	s.drain()
	return NewDemand(1)
}

func (s *bufferSubscriber[T]) drain() {
	for {
		s.mu.Lock()
		if s.terminal || s.draining {
			s.mu.Unlock()
			return
		}
		if len(s.queue) == 0 || s.demand.IsZero() {
			if s.upstreamDone && len(s.queue) == 0 {
				s.terminal = true
				s.mu.Unlock()
				recordCompletion("buffer", FinishedCompletion())
				s.downstream.OnComplete(FinishedCompletion())
				return
			}
			s.mu.Unlock()
			return
		}
		v := s.queue[0]
		s.queue = s.queue[1:]
		s.demand = s.demand.Sub(NewDemand(1))
		s.draining = true
		s.mu.Unlock()

		extra := s.downstream.OnNext(v)
		recordDelivered("buffer")

		s.mu.Lock()
		s.draining = false
		s.demand = s.demand.Add(extra)
		s.mu.Unlock()
	}
}

func (s *bufferSubscriber[T]) OnComplete(c Completion) {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	if c.IsFailed() {
		s.terminal = true
		s.mu.Unlock()
		recordCompletion("buffer", c)
		s.downstream.OnComplete(c)
		return
	}
	s.upstreamDone = true
	s.mu.Unlock()
	s.drain()
}

func (s *bufferSubscriber[T]) Request(d Demand) {
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
	recordOutstandingDemand("buffer", s.demand)
	s.mu.Unlock()

	if first {
		// Both prefetch strategies request everything upfront; see
		// BufferPrefetchByRequest's doc comment.
		up.Request(Unlimited)
	}
	s.drain()
}

func (s *bufferSubscriber[T]) Cancel() {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	s.terminal = true
	up := s.upstream
	s.mu.Unlock()
	recordCancelled("buffer")
	if up != nil {
		up.Cancel()
	}
}
