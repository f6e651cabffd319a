package reactive

// This file holds the operators that forward the upstream subscription
// object directly to the downstream (§4.2): no self-interposition, no
// local demand arithmetic, no ability to cancel or fail the upstream from
// inside a value delivery. Because these operators never own the
// subscription edge, the downstream's Request/Cancel bypass them entirely.

// Map applies f to every value.
func Map[T, R any](source Publisher[T], f func(T) R) Publisher[R] {
	return PublisherFunc[R](func(sub Subscriber[R]) {
		source.Subscribe(&mapSubscriber[T, R]{downstream: sub, f: f})
	})
}

type mapSubscriber[T, R any] struct {
	downstream Subscriber[R]
	f          func(T) R
}

func (s *mapSubscriber[T, R]) OnSubscribe(sub Subscription) { s.downstream.OnSubscribe(sub) }
func (s *mapSubscriber[T, R]) OnNext(v T) Demand            { return s.downstream.OnNext(s.f(v)) }
func (s *mapSubscriber[T, R]) OnComplete(c Completion)      { s.downstream.OnComplete(c) }

// Filter keeps only values for which pred returns true. A rejected value
// returns a demand of one to pull a replacement from upstream, preserving
// effective demand semantics (§4.2).
func Filter[T any](source Publisher[T], pred func(T) bool) Publisher[T] {
	return CompactMap(source, func(v T) (T, bool) { return v, pred(v) })
}

// CompactMap projects T to R, dropping values for which ok is false.
func CompactMap[T, R any](source Publisher[T], f func(T) (R, bool)) Publisher[R] {
	return PublisherFunc[R](func(sub Subscriber[R]) {
		source.Subscribe(&compactMapSubscriber[T, R]{downstream: sub, f: f})
	})
}

type compactMapSubscriber[T, R any] struct {
	downstream Subscriber[R]
	f          func(T) (R, bool)
}

func (s *compactMapSubscriber[T, R]) OnSubscribe(sub Subscription) { s.downstream.OnSubscribe(sub) }
func (s *compactMapSubscriber[T, R]) OnNext(v T) Demand {
	if r, ok := s.f(v); ok {
		return s.downstream.OnNext(r)
	}
	return NewDemand(1)
}
func (s *compactMapSubscriber[T, R]) OnComplete(c Completion) { s.downstream.OnComplete(c) }

// MapKeyPath projects each value through three independent field accessors,
// delivering the tuple of results. Matches the "map-key-path" passthrough
// operator (§4.2) and Scenario 3 in §8.
func MapKeyPath[T, A, B, C any](source Publisher[T], a func(T) A, b func(T) B, c func(T) C) Publisher[[3]any] {
	return Map(source, func(v T) [3]any { return [3]any{a(v), b(v), c(v)} })
}

// Scan maintains an accumulator seeded by seed, delivering f(acc, x) and
// updating acc after every value (§4.2).
func Scan[T, R any](source Publisher[T], seed R, f func(R, T) R) Publisher[R] {
	return PublisherFunc[R](func(sub Subscriber[R]) {
		source.Subscribe(&scanSubscriber[T, R]{downstream: sub, acc: seed, f: f})
	})
}

type scanSubscriber[T, R any] struct {
	downstream Subscriber[R]
	acc        R
	f          func(R, T) R
}

func (s *scanSubscriber[T, R]) OnSubscribe(sub Subscription) { s.downstream.OnSubscribe(sub) }
func (s *scanSubscriber[T, R]) OnNext(v T) Demand {
	s.acc = s.f(s.acc, v)
	return s.downstream.OnNext(s.acc)
}
func (s *scanSubscriber[T, R]) OnComplete(c Completion) { s.downstream.OnComplete(c) }

// MapError transforms a failure's error with g; values pass through
// unchanged (§4.2).
func MapError[T any](source Publisher[T], g func(error) error) Publisher[T] {
	return PublisherFunc[T](func(sub Subscriber[T]) {
		source.Subscribe(&mapErrorSubscriber[T]{downstream: sub, g: g})
	})
}

type mapErrorSubscriber[T any] struct {
	downstream Subscriber[T]
	g          func(error) error
}

func (s *mapErrorSubscriber[T]) OnSubscribe(sub Subscription) { s.downstream.OnSubscribe(sub) }
func (s *mapErrorSubscriber[T]) OnNext(v T) Demand            { return s.downstream.OnNext(v) }
func (s *mapErrorSubscriber[T]) OnComplete(c Completion) {
	if c.IsFailed() {
		s.downstream.OnComplete(FailedCompletion(s.g(c.Err)))
		return
	}
	s.downstream.OnComplete(c)
}

// Events holds the callbacks HandleEvents invokes around each signal.
type Events[T any] struct {
	OnSubscribe func()
	OnValue     func(T)
	OnComplete  func(Completion)
	OnCancel    func()
	OnRequest   func(Demand)
}

// HandleEvents invokes the matching Events callback around every signal,
// then forwards unchanged. Callbacks are cleared once the stage goes
// terminal (§4.2). It forwards a thin subscription wrapper (to observe
// Request/Cancel) rather than the raw upstream subscription; this wrapper
// carries no demand-arithmetic state of its own, so it is still a
// passthrough operator in the sense §4.2 intends (no interposed state
// machine), unlike the self-interposing operators in op_selfinterposing.go.
func HandleEvents[T any](source Publisher[T], events Events[T]) Publisher[T] {
	return PublisherFunc[T](func(sub Subscriber[T]) {
		source.Subscribe(&handleEventsSubscriber[T]{downstream: sub, events: events})
	})
}

type handleEventsSubscriber[T any] struct {
	downstream Subscriber[T]
	events     Events[T]
}

func (s *handleEventsSubscriber[T]) OnSubscribe(sub Subscription) {
	if s.events.OnSubscribe != nil {
		s.events.OnSubscribe()
	}
	s.downstream.OnSubscribe(&eventsSubscription[T]{upstream: sub, events: &s.events})
}

func (s *handleEventsSubscriber[T]) OnNext(v T) Demand {
	if s.events.OnValue != nil {
		s.events.OnValue(v)
	}
	return s.downstream.OnNext(v)
}

func (s *handleEventsSubscriber[T]) OnComplete(c Completion) {
	if s.events.OnComplete != nil {
		s.events.OnComplete(c)
	}
	s.downstream.OnComplete(c)
	s.events = Events[T]{}
}

type eventsSubscription[T any] struct {
	upstream Subscription
	events   *Events[T]
}

func (s *eventsSubscription[T]) Request(d Demand) {
	requireNonZeroDemand(d)
	if s.events.OnRequest != nil {
		s.events.OnRequest(d)
	}
	s.upstream.Request(d)
}

func (s *eventsSubscription[T]) Cancel() {
	if s.events.OnCancel != nil {
		s.events.OnCancel()
	}
	s.upstream.Cancel()
	*s.events = Events[T]{}
}

// AssertNoFailure forwards values verbatim and aborts the process with a
// diagnostic if the upstream ever fails; the error type it carries is
// statically known never to occur (§4.2).
func AssertNoFailure[T any](source Publisher[T]) Publisher[T] {
	return PublisherFunc[T](func(sub Subscriber[T]) {
		source.Subscribe(&assertNoFailureSubscriber[T]{downstream: sub})
	})
}

type assertNoFailureSubscriber[T any] struct {
	downstream Subscriber[T]
}

func (s *assertNoFailureSubscriber[T]) OnSubscribe(sub Subscription) { s.downstream.OnSubscribe(sub) }
func (s *assertNoFailureSubscriber[T]) OnNext(v T) Demand            { return s.downstream.OnNext(v) }
func (s *assertNoFailureSubscriber[T]) OnComplete(c Completion) {
	if c.IsFailed() {
		panic("reactive: AssertNoFailure: upstream failed: " + c.Err.Error())
	}
	s.downstream.OnComplete(c)
}
