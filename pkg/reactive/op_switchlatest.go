package reactive

import "sync"

// SwitchToLatest flattens a publisher of publishers, always forwarding from
// the most recently received inner publisher and discarding signals from
// any superseded one by comparing against a monotonically increasing index
// (§4.6).
func SwitchToLatest[T any](source Publisher[Publisher[T]]) Publisher[T] {
	return PublisherFunc[T](func(sub Subscriber[T]) {
		s := &switchToLatestSubscriber[T]{downstream: sub}
		source.Subscribe(s)
	})
}

type switchToLatestSubscriber[T any] struct {
	mu              sync.Mutex
	downstream      Subscriber[T]
	outer           Subscription
	inner           Subscription
	currentIndex    int64
	innerOutstanding bool
	outerDone       bool
	terminal        bool
	pendingDemand   Demand
	delivered       bool
}

func (s *switchToLatestSubscriber[T]) OnSubscribe(outer Subscription) {
	s.mu.Lock()
	s.outer = outer
	first := !s.delivered
	s.delivered = true
	s.mu.Unlock()
	if first {
		s.downstream.OnSubscribe(s)
	}
	outer.Request(Unlimited)
}

func (s *switchToLatestSubscriber[T]) OnNext(inner Publisher[T]) Demand {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return None
	}
	s.currentIndex++
	idx := s.currentIndex
	prevInner := s.inner
	s.inner = nil
	s.innerOutstanding = true
	s.mu.Unlock()

	if prevInner != nil {
		prevInner.Cancel()
	}
	inner.Subscribe(&switchInnerSubscriber[T]{parent: s, index: idx})
	return None
}

func (s *switchToLatestSubscriber[T]) OnComplete(c Completion) {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	if c.IsFailed() {
		s.terminal = true
		inner := s.inner
		s.mu.Unlock()
		if inner != nil {
			inner.Cancel()
		}
		s.downstream.OnComplete(c)
		return
	}
	s.outerDone = true
	if !s.innerOutstanding {
		s.terminal = true
		s.mu.Unlock()
		s.downstream.OnComplete(FinishedCompletion())
		return
	}
	s.mu.Unlock()
}

func (s *switchToLatestSubscriber[T]) Request(d Demand) {
	requireNonZeroDemand(d)
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	inner := s.inner
	if inner == nil {
		s.pendingDemand = s.pendingDemand.Add(d)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	inner.Request(d)
}

func (s *switchToLatestSubscriber[T]) Cancel() {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	s.terminal = true
	outer := s.outer
	inner := s.inner
	s.mu.Unlock()
	if inner != nil {
		inner.Cancel()
	}
	if outer != nil {
		outer.Cancel()
	}
}

// switchInnerSubscriber is keyed to the index its publisher was assigned;
// any signal arriving once a newer inner has superseded it is dropped.
type switchInnerSubscriber[T any] struct {
	parent *switchToLatestSubscriber[T]
	index  int64
}

func (i *switchInnerSubscriber[T]) OnSubscribe(sub Subscription) {
	p := i.parent
	p.mu.Lock()
	if p.terminal || i.index != p.currentIndex {
		p.mu.Unlock()
		sub.Cancel()
		return
	}
	p.inner = sub
	d := p.pendingDemand
	p.pendingDemand = Demand{}
	p.mu.Unlock()
	if !d.IsZero() {
		sub.Request(d)
	}
}

func (i *switchInnerSubscriber[T]) OnNext(v T) Demand {
	p := i.parent
	p.mu.Lock()
	if p.terminal || i.index != p.currentIndex {
		p.mu.Unlock()
		return None
	}
	p.mu.Unlock()
	return p.downstream.OnNext(v)
}

func (i *switchInnerSubscriber[T]) OnComplete(c Completion) {
	p := i.parent
	p.mu.Lock()
	if p.terminal || i.index != p.currentIndex {
		p.mu.Unlock()
		return
	}
	if c.IsFailed() {
		p.terminal = true
		outer := p.outer
		p.mu.Unlock()
		if outer != nil {
			outer.Cancel()
		}
		p.downstream.OnComplete(c)
		return
	}
	p.innerOutstanding = false
	p.inner = nil
	if p.outerDone {
		p.terminal = true
		p.mu.Unlock()
		p.downstream.OnComplete(FinishedCompletion())
		return
	}
	p.mu.Unlock()
}
