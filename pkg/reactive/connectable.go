package reactive

import "sync"

// Connectable wraps a single upstream subscription and fans its values out
// to every currently registered subscriber. This is deliberately narrow:
// there is no replay of values emitted before a subscriber joined and no
// per-subscriber backpressure bookkeeping beyond "has it requested at
// least once" — a general hot event bus / Subject is out of scope, this
// exists only to let several downstreams share one upstream subscription
// (§8 Scenario 2).
type Connectable[T any] struct {
	mu        sync.Mutex
	source    Publisher[T]
	slots     []*connectableSlot[T]
	connected bool
	upstream  Subscription
}

type connectableSlot[T any] struct {
	mu        sync.Mutex
	sub       Subscriber[T]
	ready     bool
	cancelled bool
}

// MakeConnectable builds a Connectable that will not subscribe to source
// until Connect is called.
func MakeConnectable[T any](source Publisher[T]) *Connectable[T] {
	return &Connectable[T]{source: source}
}

// Subscribe registers sub to receive every value broadcast after it joins.
// It does not itself trigger a connection.
func (c *Connectable[T]) Subscribe(sub Subscriber[T]) {
	slot := &connectableSlot[T]{sub: sub}
	c.mu.Lock()
	c.slots = append(c.slots, slot)
	c.mu.Unlock()
	sub.OnSubscribe(&connectableSubscription[T]{slot: slot})
}

// Connect subscribes to the underlying source exactly once; calling it
// again is a no-op. The returned Cancellable tears down the shared
// upstream subscription.
func (c *Connectable[T]) Connect() Cancellable {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return noopCancellable{}
	}
	c.connected = true
	c.mu.Unlock()

	up := &connectableUpstream[T]{parent: c}
	c.source.Subscribe(up)
	return up
}

func (c *Connectable[T]) snapshot() []*connectableSlot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*connectableSlot[T], 0, len(c.slots))
	for _, s := range c.slots {
		s.mu.Lock()
		ready := s.ready && !s.cancelled
		s.mu.Unlock()
		if ready {
			out = append(out, s)
		}
	}
	return out
}

func (c *Connectable[T]) broadcast(v T) {
	for _, slot := range c.snapshot() {
		slot.sub.OnNext(v)
	}
}

func (c *Connectable[T]) broadcastComplete(comp Completion) {
	c.mu.Lock()
	slots := c.slots
	c.slots = nil
	c.mu.Unlock()
	for _, slot := range slots {
		slot.mu.Lock()
		cancelled := slot.cancelled
		slot.mu.Unlock()
		if !cancelled {
			slot.sub.OnComplete(comp)
		}
	}
}

type connectableSubscription[T any] struct {
	slot *connectableSlot[T]
}

func (s *connectableSubscription[T]) Request(d Demand) {
	requireNonZeroDemand(d)
	s.slot.mu.Lock()
	s.slot.ready = true
	s.slot.mu.Unlock()
}

func (s *connectableSubscription[T]) Cancel() {
	s.slot.mu.Lock()
	s.slot.cancelled = true
	s.slot.mu.Unlock()
}

type connectableUpstream[T any] struct {
	parent   *Connectable[T]
	upstream Subscription
}

func (u *connectableUpstream[T]) OnSubscribe(sub Subscription) {
	u.upstream = sub
	sub.Request(Unlimited)
}

func (u *connectableUpstream[T]) OnNext(v T) Demand {
	u.parent.broadcast(v)
	return Unlimited
}

func (u *connectableUpstream[T]) OnComplete(c Completion) {
	u.parent.broadcastComplete(c)
}

func (u *connectableUpstream[T]) Cancel() {
	if u.upstream != nil {
		u.upstream.Cancel()
	}
}

type noopCancellable struct{}

func (noopCancellable) Cancel() {}

// Share returns a publisher that subscribes to source once, on the first
// downstream subscription, and multicasts to every downstream that joins
// after that point.
func Share[T any](source Publisher[T]) Publisher[T] {
	c := MakeConnectable(source)
	var once sync.Once
	return PublisherFunc[T](func(sub Subscriber[T]) {
		c.Subscribe(sub)
		once.Do(func() { c.Connect() })
	})
}
