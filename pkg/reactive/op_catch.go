package reactive

import "sync"

// catchState is the four-state machine for catch/tryCatch. There is no
// separate state before the first upstream subscription: catchPre, the
// zero value, covers it.
type catchState int

const (
	catchPre catchState = iota
	catchPendingPost
	catchPost
	catchCancelled
)

// Catch replaces an upstream failure with a fallback publisher built by
// handler, without the downstream ever seeing more than one
// deliver-subscription (§4.4).
func Catch[T any](source Publisher[T], handler func(error) Publisher[T]) Publisher[T] {
	return TryCatch(source, func(err error) (Publisher[T], error) { return handler(err), nil })
}

// TryCatch is Catch whose handler may itself fail; if it does, the error it
// returns is delivered downstream directly.
func TryCatch[T any](source Publisher[T], handler func(error) (Publisher[T], error)) Publisher[T] {
	return PublisherFunc[T](func(sub Subscriber[T]) {
		c := &catchSubscriber[T]{downstream: sub, handler: handler}
		source.Subscribe(c)
	})
}

type catchSubscriber[T any] struct {
	mu         sync.Mutex
	downstream Subscriber[T]
	handler    func(error) (Publisher[T], error)
	state      catchState
	pre        Subscription
	post       Subscription
	demand     Demand
	delivered  bool
}

func (s *catchSubscriber[T]) OnSubscribe(sub Subscription) {
	s.mu.Lock()
	if s.state == catchCancelled {
		s.mu.Unlock()
		sub.Cancel()
		return
	}
	s.state = catchPre
	s.pre = sub
	first := !s.delivered
	s.delivered = true
	s.mu.Unlock()
	if first {
		s.downstream.OnSubscribe(s)
	}
}

func (s *catchSubscriber[T]) OnNext(v T) Demand {
	s.mu.Lock()
	if s.state != catchPre {
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

func (s *catchSubscriber[T]) OnComplete(c Completion) {
	s.mu.Lock()
	if s.state != catchPre {
		s.mu.Unlock()
		return
	}
	if c.IsFinished() {
		s.state = catchCancelled
		s.mu.Unlock()
		s.downstream.OnComplete(c)
		return
	}
	s.state = catchPendingPost
	s.mu.Unlock()

	replacement, err := s.handler(c.Err)
	if err != nil {
		s.mu.Lock()
		s.state = catchCancelled
		s.mu.Unlock()
		s.downstream.OnComplete(FailedCompletion(err))
		return
	}
	replacement.Subscribe(&catchPostSubscriber[T]{parent: s})
}

func (s *catchSubscriber[T]) Request(d Demand) {
	requireNonZeroDemand(d)
	s.mu.Lock()
	switch s.state {
	case catchPre:
		s.demand = s.demand.Add(d)
		pre := s.pre
		s.mu.Unlock()
		pre.Request(d)
	case catchPendingPost:
		s.demand = s.demand.Add(d)
		s.mu.Unlock()
	case catchPost:
		s.demand = s.demand.Add(d)
		post := s.post
		s.mu.Unlock()
		post.Request(d)
	default:
		s.mu.Unlock()
	}
}

func (s *catchSubscriber[T]) Cancel() {
	s.mu.Lock()
	switch s.state {
	case catchPre:
		pre := s.pre
		s.state = catchCancelled
		s.mu.Unlock()
		pre.Cancel()
	case catchPost:
		post := s.post
		s.state = catchCancelled
		s.mu.Unlock()
		post.Cancel()
	default:
		s.state = catchCancelled
		s.mu.Unlock()
	}
}

// catchPostSubscriber is the "dedicated post-subscriber" §4.4 calls for:
// kept distinct from catchSubscriber itself so that a straggling signal
// from a cancelled pre can never be mistaken for a post signal.
type catchPostSubscriber[T any] struct {
	parent *catchSubscriber[T]
}

func (p *catchPostSubscriber[T]) OnSubscribe(sub Subscription) {
	s := p.parent
	s.mu.Lock()
	if s.state == catchCancelled {
		s.mu.Unlock()
		sub.Cancel()
		return
	}
	s.state = catchPost
	s.post = sub
	d := s.demand
	s.mu.Unlock()
	if !d.IsZero() {
		sub.Request(d)
	}
}

func (p *catchPostSubscriber[T]) OnNext(v T) Demand {
	s := p.parent
	s.mu.Lock()
	if s.state != catchPost {
		s.mu.Unlock()
		return None
	}
	s.mu.Unlock()
	return s.downstream.OnNext(v)
}

func (p *catchPostSubscriber[T]) OnComplete(c Completion) {
	s := p.parent
	s.mu.Lock()
	if s.state != catchPost {
		s.mu.Unlock()
		return
	}
	s.state = catchCancelled
	s.mu.Unlock()
	s.downstream.OnComplete(c)
}
