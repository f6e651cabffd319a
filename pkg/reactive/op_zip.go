package reactive

import "sync"

// Pair, Triple and Quad are the tuple shapes the n-ary Zip operators
// deliver (§4.8).
type Pair[A, B any] struct {
	First  A
	Second B
}

type Triple[A, B, C any] struct {
	First  A
	Second B
	Third  C
}

type Quad[A, B, C, D any] struct {
	First  A
	Second B
	Third  C
	Fourth D
}

// zipCore coordinates an arbitrary arity of children: each holds its own
// FIFO, a tuple is delivered only once every child has a queued value, a
// child failure propagates immediately and cancels the rest, and a child
// finishing with an empty queue ends the zip (§4.8). Demand is forwarded
// verbatim to every child rather than split or multiplied.
type zipCore[Out any] struct {
	mu              sync.Mutex
	downstream      Subscriber[Out]
	arity           int
	queues          [][]any
	subs            []Subscription
	subscribedCount int
	finished        []bool
	terminal        bool
	delivered       bool
	combine         func([]any) Out
}

func newZipCore[Out any](arity int, combine func([]any) Out, downstream Subscriber[Out]) *zipCore[Out] {
	return &zipCore[Out]{
		arity:      arity,
		combine:    combine,
		downstream: downstream,
		queues:     make([][]any, arity),
		subs:       make([]Subscription, arity),
		finished:   make([]bool, arity),
	}
}

func (c *zipCore[Out]) onChildSubscribe(index int, sub Subscription) {
	c.mu.Lock()
	c.subs[index] = sub
	c.subscribedCount++
	ready := c.subscribedCount == c.arity && !c.delivered
	if ready {
		c.delivered = true
	}
	c.mu.Unlock()
	if ready {
		c.downstream.OnSubscribe(c)
	}
}

func (c *zipCore[Out]) onChildNext(index int, v any) Demand {
	c.mu.Lock()
	if c.terminal {
		c.mu.Unlock()
		return None
	}
	c.queues[index] = append(c.queues[index], v)

	var tuples []Out
	for {
		ready := true
		for _, q := range c.queues {
			if len(q) == 0 {
				ready = false
				break
			}
		}
		if !ready {
			break
		}
		vals := make([]any, c.arity)
		for i := range c.queues {
			vals[i] = c.queues[i][0]
			c.queues[i] = c.queues[i][1:]
		}
		tuples = append(tuples, c.combine(vals))
	}

	finishNow := false
	for i, fin := range c.finished {
		if fin && len(c.queues[i]) == 0 {
			finishNow = true
		}
	}
	if finishNow {
		c.terminal = true
	}
	c.mu.Unlock()

	total := Demand{}
	for _, t := range tuples {
		extra := c.downstream.OnNext(t)
		total = total.Add(extra)
	}
	if finishNow {
		c.downstream.OnComplete(FinishedCompletion())
		return None
	}
	if !total.IsZero() {
		c.requestAll(total)
	}
	return None
}

func (c *zipCore[Out]) onChildComplete(index int, comp Completion) {
	c.mu.Lock()
	if c.terminal {
		c.mu.Unlock()
		return
	}
	if comp.IsFailed() {
		c.terminal = true
		subs := append([]Subscription(nil), c.subs...)
		c.mu.Unlock()
		for i, s := range subs {
			if i != index && s != nil {
				s.Cancel()
			}
		}
		c.downstream.OnComplete(comp)
		return
	}
	c.finished[index] = true
	emptyNow := len(c.queues[index]) == 0
	if emptyNow {
		c.terminal = true
	}
	c.mu.Unlock()
	if !emptyNow {
		return
	}
	c.mu.Lock()
	subs := append([]Subscription(nil), c.subs...)
	c.mu.Unlock()
	for i, s := range subs {
		if i != index && s != nil {
			s.Cancel()
		}
	}
	c.downstream.OnComplete(FinishedCompletion())
}

func (c *zipCore[Out]) requestAll(d Demand) {
	c.mu.Lock()
	if c.terminal {
		c.mu.Unlock()
		return
	}
	subs := append([]Subscription(nil), c.subs...)
	c.mu.Unlock()
	for _, s := range subs {
		if s != nil {
			s.Request(d)
		}
	}
}

func (c *zipCore[Out]) Request(d Demand) {
	requireNonZeroDemand(d)
	c.requestAll(d)
}

func (c *zipCore[Out]) Cancel() {
	c.mu.Lock()
	if c.terminal {
		c.mu.Unlock()
		return
	}
	c.terminal = true
	subs := append([]Subscription(nil), c.subs...)
	c.mu.Unlock()
	for _, s := range subs {
		if s != nil {
			s.Cancel()
		}
	}
}

type zipChildSubscriber[V, Out any] struct {
	core  *zipCore[Out]
	index int
}

func (z *zipChildSubscriber[V, Out]) OnSubscribe(sub Subscription) { z.core.onChildSubscribe(z.index, sub) }
func (z *zipChildSubscriber[V, Out]) OnNext(v V) Demand            { return z.core.onChildNext(z.index, v) }
func (z *zipChildSubscriber[V, Out]) OnComplete(c Completion)      { z.core.onChildComplete(z.index, c) }

// Zip2 pairs values from two publishers positionally.
func Zip2[A, B any](pa Publisher[A], pb Publisher[B]) Publisher[Pair[A, B]] {
	return PublisherFunc[Pair[A, B]](func(sub Subscriber[Pair[A, B]]) {
		core := newZipCore(2, func(vals []any) Pair[A, B] {
			return Pair[A, B]{First: vals[0].(A), Second: vals[1].(B)}
		}, sub)
		pa.Subscribe(&zipChildSubscriber[A, Pair[A, B]]{core: core, index: 0})
		pb.Subscribe(&zipChildSubscriber[B, Pair[A, B]]{core: core, index: 1})
	})
}

// Zip3 pairs values from three publishers positionally.
func Zip3[A, B, C any](pa Publisher[A], pb Publisher[B], pc Publisher[C]) Publisher[Triple[A, B, C]] {
	return PublisherFunc[Triple[A, B, C]](func(sub Subscriber[Triple[A, B, C]]) {
		core := newZipCore(3, func(vals []any) Triple[A, B, C] {
			return Triple[A, B, C]{First: vals[0].(A), Second: vals[1].(B), Third: vals[2].(C)}
		}, sub)
		pa.Subscribe(&zipChildSubscriber[A, Triple[A, B, C]]{core: core, index: 0})
		pb.Subscribe(&zipChildSubscriber[B, Triple[A, B, C]]{core: core, index: 1})
		pc.Subscribe(&zipChildSubscriber[C, Triple[A, B, C]]{core: core, index: 2})
	})
}

// Zip4 pairs values from four publishers positionally.
func Zip4[A, B, C, D any](pa Publisher[A], pb Publisher[B], pc Publisher[C], pd Publisher[D]) Publisher[Quad[A, B, C, D]] {
	return PublisherFunc[Quad[A, B, C, D]](func(sub Subscriber[Quad[A, B, C, D]]) {
		core := newZipCore(4, func(vals []any) Quad[A, B, C, D] {
			return Quad[A, B, C, D]{First: vals[0].(A), Second: vals[1].(B), Third: vals[2].(C), Fourth: vals[3].(D)}
		}, sub)
		pa.Subscribe(&zipChildSubscriber[A, Quad[A, B, C, D]]{core: core, index: 0})
		pb.Subscribe(&zipChildSubscriber[B, Quad[A, B, C, D]]{core: core, index: 1})
		pc.Subscribe(&zipChildSubscriber[C, Quad[A, B, C, D]]{core: core, index: 2})
		pd.Subscribe(&zipChildSubscriber[D, Quad[A, B, C, D]]{core: core, index: 3})
	})
}
