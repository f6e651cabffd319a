package reactive

import "sync"

// justSubscription backs Just, Empty, Optional and a successful Result: each
// is a single value-or-nothing decision made once, delivered only once the
// subscriber issues its first request (§4.13). A failing Result does not use
// it; it fails at subscribe time.
type justSubscription[T any] struct {
	mu         sync.Mutex
	downstream Subscriber[T]
	value      T
	has        bool
	err        error
	delivered  bool
	cancelled  bool
}

func (s *justSubscription[T]) Request(d Demand) {
	requireNonZeroDemand(d)
	s.mu.Lock()
	if s.delivered || s.cancelled {
		s.mu.Unlock()
		return
	}
	s.delivered = true
	s.mu.Unlock()

	if s.err != nil {
		s.downstream.OnComplete(FailedCompletion(s.err))
		return
	}
	if s.has {
		s.downstream.OnNext(s.value)
	}
	s.downstream.OnComplete(FinishedCompletion())
}

func (s *justSubscription[T]) Cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
}

// Just emits a single value then finishes.
func Just[T any](value T) Publisher[T] {
	return PublisherFunc[T](func(sub Subscriber[T]) {
		sub.OnSubscribe(&justSubscription[T]{downstream: sub, value: value, has: true})
	})
}

// Empty finishes without ever emitting a value.
func Empty[T any]() Publisher[T] {
	return PublisherFunc[T](func(sub Subscriber[T]) {
		sub.OnSubscribe(&justSubscription[T]{downstream: sub})
	})
}

// Optional emits the pointee if value is non-nil, otherwise behaves like
// Empty.
func Optional[T any](value *T) Publisher[T] {
	return PublisherFunc[T](func(sub Subscriber[T]) {
		if value == nil {
			sub.OnSubscribe(&justSubscription[T]{downstream: sub})
			return
		}
		sub.OnSubscribe(&justSubscription[T]{downstream: sub, value: *value, has: true})
	})
}

// Result emits value and finishes if err is nil, otherwise fails
// immediately with err.
func Result[T any](value T, err error) Publisher[T] {
	return PublisherFunc[T](func(sub Subscriber[T]) {
		if err != nil {
			sub.OnSubscribe(Noop)
			sub.OnComplete(FailedCompletion(err))
			return
		}
		sub.OnSubscribe(&justSubscription[T]{downstream: sub, value: value, has: true})
	})
}
