package reactive

import "sync"

// Collect drains source to completion, requesting Unlimited immediately,
// and returns every value observed along with the terminal Completion.
// Intended for tests and short-lived scripts over finite publishers, not
// as a building block for pipelines.
func Collect[T any](source Publisher[T]) ([]T, Completion) {
	var values []T
	var completion Completion
	done := make(chan struct{})
	source.Subscribe(&collectSubscriber[T]{
		onNext: func(v T) { values = append(values, v) },
		onComplete: func(c Completion) {
			completion = c
			close(done)
		},
	})
	<-done
	return values, completion
}

type collectSubscriber[T any] struct {
	onNext     func(T)
	onComplete func(Completion)
}

func (s *collectSubscriber[T]) OnSubscribe(sub Subscription) { sub.Request(Unlimited) }
func (s *collectSubscriber[T]) OnNext(v T) Demand            { s.onNext(v); return Unlimited }
func (s *collectSubscriber[T]) OnComplete(c Completion)      { s.onComplete(c) }

// RecordingSubscriber is a test double that records every signal it
// receives and exposes the upstream Subscription so a test can drive
// demand explicitly instead of requesting Unlimited up front.
type RecordingSubscriber[T any] struct {
	mu           sync.Mutex
	Values       []T
	Completion   *Completion
	Subscription Subscription
	subscribed   chan struct{}
	once         sync.Once
}

// NewRecordingSubscriber returns a RecordingSubscriber ready to pass to
// Publisher.Subscribe.
func NewRecordingSubscriber[T any]() *RecordingSubscriber[T] {
	return &RecordingSubscriber[T]{subscribed: make(chan struct{})}
}

func (r *RecordingSubscriber[T]) OnSubscribe(sub Subscription) {
	r.mu.Lock()
	r.Subscription = sub
	r.mu.Unlock()
	r.once.Do(func() { close(r.subscribed) })
}

func (r *RecordingSubscriber[T]) OnNext(v T) Demand {
	r.mu.Lock()
	r.Values = append(r.Values, v)
	r.mu.Unlock()
	return NewDemand(1)
}

func (r *RecordingSubscriber[T]) OnComplete(c Completion) {
	r.mu.Lock()
	r.Completion = &c
	r.mu.Unlock()
}

// Request is a convenience wrapper around Subscription.Request(NewDemand(n)).
func (r *RecordingSubscriber[T]) Request(n int64) {
	r.mu.Lock()
	sub := r.Subscription
	r.mu.Unlock()
	sub.Request(NewDemand(n))
}

// Snapshot returns a copy of the values recorded so far and the terminal
// completion, if any has arrived.
func (r *RecordingSubscriber[T]) Snapshot() ([]T, *Completion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.Values))
	copy(out, r.Values)
	return out, r.Completion
}
