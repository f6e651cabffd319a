package reactive

import "sync"

// concatStage identifies which of the two publishers owns the subscription
// edge right now (§4.5).
type concatStage int

const (
	concatPrefix concatStage = iota
	concatSuffix
	concatDone
)

// Concatenate subscribes to prefix, exhausts it, then subscribes to suffix
// and replays whatever demand remains outstanding. A prefix failure
// short-circuits suffix entirely (§4.5).
func Concatenate[T any](prefix, suffix Publisher[T]) Publisher[T] {
	return PublisherFunc[T](func(sub Subscriber[T]) {
		c := &concatenateSubscriber[T]{downstream: sub, suffix: suffix}
		prefix.Subscribe(c)
	})
}

type concatenateSubscriber[T any] struct {
	mu         sync.Mutex
	downstream Subscriber[T]
	suffix     Publisher[T]
	stage      concatStage
	current    Subscription
	demand     Demand
	delivered  bool
}

func (s *concatenateSubscriber[T]) OnSubscribe(sub Subscription) {
	s.mu.Lock()
	if s.stage == concatDone {
		s.mu.Unlock()
		sub.Cancel()
		return
	}
	s.current = sub
	first := !s.delivered
	s.delivered = true
	s.mu.Unlock()
	if first {
		s.downstream.OnSubscribe(s)
	}
}

func (s *concatenateSubscriber[T]) OnNext(v T) Demand {
	s.mu.Lock()
	if s.stage == concatDone {
		s.mu.Unlock()
		return None
	}
	s.demand = s.demand.Sub(NewDemand(1))
	s.mu.Unlock()

	extra := s.downstream.OnNext(v)

	s.mu.Lock()
	s.demand = s.demand.Add(extra)
	s.mu.Unlock()
	return extra
}

func (s *concatenateSubscriber[T]) OnComplete(c Completion) {
	s.mu.Lock()
	if s.stage == concatDone {
		s.mu.Unlock()
		return
	}
	if c.IsFailed() {
		s.stage = concatDone
		s.mu.Unlock()
		s.downstream.OnComplete(c)
		return
	}
	if s.stage == concatSuffix {
		s.stage = concatDone
		s.mu.Unlock()
		s.downstream.OnComplete(c)
		return
	}
	s.stage = concatSuffix
	s.mu.Unlock()
	s.suffix.Subscribe(&concatenateSuffixSubscriber[T]{parent: s})
}

func (s *concatenateSubscriber[T]) Request(d Demand) {
	requireNonZeroDemand(d)
	s.mu.Lock()
	if s.stage == concatDone {
		s.mu.Unlock()
		return
	}
	s.demand = s.demand.Add(d)
	cur := s.current
	s.mu.Unlock()
	if cur != nil {
		cur.Request(d)
	}
}

func (s *concatenateSubscriber[T]) Cancel() {
	s.mu.Lock()
	if s.stage == concatDone {
		s.mu.Unlock()
		return
	}
	s.stage = concatDone
	cur := s.current
	s.mu.Unlock()
	if cur != nil {
		cur.Cancel()
	}
}

// concatenateSuffixSubscriber is the dedicated subscriber for suffix, kept
// distinct from concatenateSubscriber for the same reason as catch's
// post-subscriber: a straggler from a cancelled prefix can never be
// mistaken for a suffix signal.
type concatenateSuffixSubscriber[T any] struct {
	parent *concatenateSubscriber[T]
}

func (c *concatenateSuffixSubscriber[T]) OnSubscribe(sub Subscription) {
	s := c.parent
	s.mu.Lock()
	if s.stage == concatDone {
		s.mu.Unlock()
		sub.Cancel()
		return
	}
	s.current = sub
	d := s.demand
	s.mu.Unlock()
	if !d.IsZero() {
		sub.Request(d)
	}
}

func (c *concatenateSuffixSubscriber[T]) OnNext(v T) Demand {
	s := c.parent
	s.mu.Lock()
	if s.stage != concatSuffix {
		s.mu.Unlock()
		return None
	}
	s.mu.Unlock()
	return s.downstream.OnNext(v)
}

func (c *concatenateSuffixSubscriber[T]) OnComplete(comp Completion) {
	s := c.parent
	s.mu.Lock()
	if s.stage != concatSuffix {
		s.mu.Unlock()
		return
	}
	s.stage = concatDone
	s.mu.Unlock()
	s.downstream.OnComplete(comp)
}
