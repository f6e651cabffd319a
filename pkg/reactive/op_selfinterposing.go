package reactive

import "sync"

// This file holds the operators that present themselves as the
// downstream's subscription (§4.3): they hold a lock to serialize state
// transitions, and mediate Request/Cancel rather than letting the
// downstream reach straight through to the upstream.

// forwardingSubscription is the common shape shared by every
// self-interposing operator below: it owns the upstream Subscription and
// forwards Request/Cancel to it, guarded by a mutex, until terminal.
type forwardingSubscription struct {
	mu       sync.Mutex
	upstream Subscription
	terminal bool
}

func (s *forwardingSubscription) setUpstream(u Subscription) {
	s.mu.Lock()
	s.upstream = u
	s.mu.Unlock()
}

func (s *forwardingSubscription) Request(d Demand) {
	requireNonZeroDemand(d)
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	u := s.upstream
	s.mu.Unlock()
	if u != nil {
		u.Request(d)
	}
}

func (s *forwardingSubscription) Cancel() {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	s.terminal = true
	u := s.upstream
	s.mu.Unlock()
	if u != nil {
		u.Cancel()
	}
}

func (s *forwardingSubscription) isTerminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminal
}

func (s *forwardingSubscription) markTerminal() (already bool) {
	s.mu.Lock()
	already = s.terminal
	s.terminal = true
	s.mu.Unlock()
	return already
}

// TryMap applies f, which may fail. A failure cancels the upstream and
// delivers failed(err) downstream; the error type widens to error (§4.3).
func TryMap[T, R any](source Publisher[T], f func(T) (R, error)) Publisher[R] {
	return PublisherFunc[R](func(sub Subscriber[R]) {
		s := &tryMapSubscriber[T, R]{downstream: sub, f: f}
		source.Subscribe(s)
	})
}

type tryMapSubscriber[T, R any] struct {
	forwardingSubscription
	downstream Subscriber[R]
	f          func(T) (R, error)
}

func (s *tryMapSubscriber[T, R]) OnSubscribe(sub Subscription) {
	s.setUpstream(sub)
	s.downstream.OnSubscribe(s)
}

func (s *tryMapSubscriber[T, R]) OnNext(v T) Demand {
	out, err := s.f(v)
	if err != nil {
		s.fail(err)
		return None
	}
	return s.downstream.OnNext(out)
}

func (s *tryMapSubscriber[T, R]) fail(err error) {
	if s.markTerminal() {
		return
	}
	s.forwardingSubscription.mu.Lock()
	u := s.upstream
	s.forwardingSubscription.mu.Unlock()
	if u != nil {
		u.Cancel()
	}
	s.downstream.OnComplete(FailedCompletion(err))
}

func (s *tryMapSubscriber[T, R]) OnComplete(c Completion) {
	if s.markTerminal() {
		return
	}
	s.downstream.OnComplete(c)
}

// TryFilter keeps values for which pred returns true; a predicate error
// behaves like TryMap's.
func TryFilter[T any](source Publisher[T], pred func(T) (bool, error)) Publisher[T] {
	return PublisherFunc[T](func(sub Subscriber[T]) {
		s := &tryFilterSubscriber[T]{downstream: sub, pred: pred}
		source.Subscribe(s)
	})
}

type tryFilterSubscriber[T any] struct {
	forwardingSubscription
	downstream Subscriber[T]
	pred       func(T) (bool, error)
}

func (s *tryFilterSubscriber[T]) OnSubscribe(sub Subscription) {
	s.setUpstream(sub)
	s.downstream.OnSubscribe(s)
}

func (s *tryFilterSubscriber[T]) OnNext(v T) Demand {
	ok, err := s.pred(v)
	if err != nil {
		s.fail(err)
		return None
	}
	if ok {
		return s.downstream.OnNext(v)
	}
	return NewDemand(1)
}

func (s *tryFilterSubscriber[T]) fail(err error) {
	if s.markTerminal() {
		return
	}
	s.forwardingSubscription.mu.Lock()
	u := s.upstream
	s.forwardingSubscription.mu.Unlock()
	if u != nil {
		u.Cancel()
	}
	s.downstream.OnComplete(FailedCompletion(err))
}

func (s *tryFilterSubscriber[T]) OnComplete(c Completion) {
	if s.markTerminal() {
		return
	}
	s.downstream.OnComplete(c)
}

// TryScan is Scan with a failable accumulator function.
func TryScan[T, R any](source Publisher[T], seed R, f func(R, T) (R, error)) Publisher[R] {
	return PublisherFunc[R](func(sub Subscriber[R]) {
		s := &tryScanSubscriber[T, R]{downstream: sub, acc: seed, f: f}
		source.Subscribe(s)
	})
}

type tryScanSubscriber[T, R any] struct {
	forwardingSubscription
	downstream Subscriber[R]
	acc        R
	f          func(R, T) (R, error)
}

func (s *tryScanSubscriber[T, R]) OnSubscribe(sub Subscription) {
	s.setUpstream(sub)
	s.downstream.OnSubscribe(s)
}

func (s *tryScanSubscriber[T, R]) OnNext(v T) Demand {
	out, err := s.f(s.acc, v)
	if err != nil {
		if s.markTerminal() {
			return None
		}
		s.forwardingSubscription.mu.Lock()
		u := s.upstream
		s.forwardingSubscription.mu.Unlock()
		if u != nil {
			u.Cancel()
		}
		s.downstream.OnComplete(FailedCompletion(err))
		return None
	}
	s.acc = out
	return s.downstream.OnNext(out)
}

func (s *tryScanSubscriber[T, R]) OnComplete(c Completion) {
	if s.markTerminal() {
		return
	}
	s.downstream.OnComplete(c)
}

// ReplaceError substitutes a replacement value for an upstream failure,
// followed by finished, instead of propagating the failure (§4.3). If
// downstream demand is already exhausted when the failure arrives, the
// substitution is deferred until the next Request.
func ReplaceError[T any](source Publisher[T], replacement func(error) T) Publisher[T] {
	return PublisherFunc[T](func(sub Subscriber[T]) {
		s := &replaceErrorSubscriber[T]{downstream: sub, replacement: replacement}
		source.Subscribe(s)
	})
}

type replaceErrorSubscriber[T any] struct {
	mu          sync.Mutex
	downstream  Subscriber[T]
	replacement func(error) T
	upstream    Subscription
	pending     Demand
	failedWait  bool
	failedErr   error
	terminal    bool
}

func (s *replaceErrorSubscriber[T]) OnSubscribe(sub Subscription) {
	s.mu.Lock()
	s.upstream = sub
	s.mu.Unlock()
	s.downstream.OnSubscribe(s)
}

func (s *replaceErrorSubscriber[T]) Request(d Demand) {
	requireNonZeroDemand(d)
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	if s.failedWait {
		s.terminal = true
		err := s.failedErr
		s.mu.Unlock()
		s.downstream.OnNext(s.replacement(err))
		s.downstream.OnComplete(FinishedCompletion())
		return
	}
	s.pending = s.pending.Add(d)
	u := s.upstream
	s.mu.Unlock()
	u.Request(d)
}

func (s *replaceErrorSubscriber[T]) Cancel() {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	s.terminal = true
	u := s.upstream
	s.mu.Unlock()
	if u != nil {
		u.Cancel()
	}
}

func (s *replaceErrorSubscriber[T]) OnNext(v T) Demand {
	s.mu.Lock()
	s.pending = s.pending.Sub(NewDemand(1))
	s.mu.Unlock()
	return s.downstream.OnNext(v)
}

func (s *replaceErrorSubscriber[T]) OnComplete(c Completion) {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	if c.IsFinished() {
		s.terminal = true
		s.mu.Unlock()
		s.downstream.OnComplete(c)
		return
	}
	if !s.pending.IsZero() {
		s.terminal = true
		s.mu.Unlock()
		s.downstream.OnNext(s.replacement(c.Err))
		s.downstream.OnComplete(FinishedCompletion())
		return
	}
	s.failedWait = true
	s.failedErr = c.Err
	s.mu.Unlock()
}

// CollectByCount buffers values and emits them as a []T batch once the
// buffer reaches n, clearing it afterwards. A non-empty buffer is flushed
// as a final partial batch on finished; a failure discards the buffer
// (§4.3). Upstream demand is requested at n times the downstream's demand.
func CollectByCount[T any](source Publisher[T], n int64) Publisher[[]T] {
	if n <= 0 {
		panic("reactive: CollectByCount requires n > 0")
	}
	return PublisherFunc[[]T](func(sub Subscriber[[]T]) {
		s := &collectByCountSubscriber[T]{downstream: sub, n: n}
		source.Subscribe(s)
	})
}

type collectByCountSubscriber[T any] struct {
	forwardingSubscription
	downstream Subscriber[[]T]
	n          int64
	buf        []T
}

func (s *collectByCountSubscriber[T]) OnSubscribe(sub Subscription) {
	s.setUpstream(sub)
	s.downstream.OnSubscribe(s)
}

func (s *collectByCountSubscriber[T]) Request(d Demand) {
	requireNonZeroDemand(d)
	s.forwardingSubscription.mu.Lock()
	if s.terminal {
		s.forwardingSubscription.mu.Unlock()
		return
	}
	u := s.upstream
	s.forwardingSubscription.mu.Unlock()
	u.Request(d.Mul(s.n))
}

func (s *collectByCountSubscriber[T]) OnNext(v T) Demand {
	s.forwardingSubscription.mu.Lock()
	s.buf = append(s.buf, v)
	var batch []T
	if int64(len(s.buf)) >= s.n {
		batch = s.buf
		s.buf = nil
	}
	s.forwardingSubscription.mu.Unlock()
	if batch == nil {
		return None
	}
	extra := s.downstream.OnNext(batch)
	return extra.Mul(s.n)
}

func (s *collectByCountSubscriber[T]) OnComplete(c Completion) {
	if s.markTerminal() {
		return
	}
	if c.IsFailed() {
		s.forwardingSubscription.mu.Lock()
		s.buf = nil
		s.forwardingSubscription.mu.Unlock()
		s.downstream.OnComplete(c)
		return
	}
	s.forwardingSubscription.mu.Lock()
	batch := s.buf
	s.buf = nil
	s.forwardingSubscription.mu.Unlock()
	if len(batch) > 0 {
		s.downstream.OnNext(batch)
	}
	s.downstream.OnComplete(c)
}

// LastWhere requests everything from upstream and, on clean completion,
// delivers the last value that satisfied pred (if any) followed by
// finished; a failure is forwarded without emitting a buffered value.
func LastWhere[T any](source Publisher[T], pred func(T) bool) Publisher[T] {
	return TryLastWhere(source, func(v T) (bool, error) { return pred(v), nil })
}

// TryLastWhere is LastWhere with a failable predicate (§8 Scenario 1).
func TryLastWhere[T any](source Publisher[T], pred func(T) (bool, error)) Publisher[T] {
	return PublisherFunc[T](func(sub Subscriber[T]) {
		s := &lastWhereSubscriber[T]{downstream: sub, pred: pred}
		source.Subscribe(s)
	})
}

type lastWhereSubscriber[T any] struct {
	mu        sync.Mutex
	downstream Subscriber[T]
	pred       func(T) (bool, error)
	upstream   Subscription
	have       bool
	last       T
	pending    Demand
	doneWait   bool
	terminal   bool
}

func (s *lastWhereSubscriber[T]) OnSubscribe(sub Subscription) {
	s.mu.Lock()
	s.upstream = sub
	s.mu.Unlock()
	s.downstream.OnSubscribe(s)
	sub.Request(Unlimited)
}

func (s *lastWhereSubscriber[T]) Request(d Demand) {
	requireNonZeroDemand(d)
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	s.pending = s.pending.Add(d)
	if s.doneWait {
		s.terminal = true
		have, last := s.have, s.last
		s.mu.Unlock()
		if have {
			s.downstream.OnNext(last)
		}
		s.downstream.OnComplete(FinishedCompletion())
		return
	}
	s.mu.Unlock()
}

func (s *lastWhereSubscriber[T]) Cancel() {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	s.terminal = true
	u := s.upstream
	s.mu.Unlock()
	if u != nil {
		u.Cancel()
	}
}

func (s *lastWhereSubscriber[T]) OnNext(v T) Demand {
	ok, err := s.pred(v)
	if err != nil {
		s.mu.Lock()
		if s.terminal {
			s.mu.Unlock()
			return None
		}
		s.terminal = true
		u := s.upstream
		s.mu.Unlock()
		if u != nil {
			u.Cancel()
		}
		s.downstream.OnComplete(FailedCompletion(err))
		return None
	}
	if ok {
		s.mu.Lock()
		s.have = true
		s.last = v
		s.mu.Unlock()
	}
	return None
}

func (s *lastWhereSubscriber[T]) OnComplete(c Completion) {
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
	if !s.pending.IsZero() {
		s.terminal = true
		have, last := s.have, s.last
		s.mu.Unlock()
		if have {
			s.downstream.OnNext(last)
		}
		s.downstream.OnComplete(FinishedCompletion())
		return
	}
	s.doneWait = true
	s.mu.Unlock()
}
