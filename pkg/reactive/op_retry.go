package reactive

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/code-100-precent/reactorflow/pkg/logger"
)

// Retry resubscribes to source up to maxAttempts additional times after a
// failure; a negative maxAttempts retries without limit. The downstream
// sees exactly one OnSubscribe regardless of how many attempts run, and
// outstanding demand is replayed onto each fresh attempt's subscription.
// A retry triggered from inside another attempt's completion is coalesced
// into the driving loop rather than recursing, so an attempt that fails
// immediately on every resubscription cannot grow the call stack (§4.3,
// §4.12).
func Retry[T any](source Publisher[T], maxAttempts int64) Publisher[T] {
	return PublisherFunc[T](func(sub Subscriber[T]) {
		s := &retrySubscriber[T]{
			downstream: sub,
			source:     source,
			remaining:  maxAttempts,
			unlimited:  maxAttempts < 0,
			id:         uuid.NewString(),
		}
		s.looping = true
		s.driveLoop()
	})
}

type retrySubscriber[T any] struct {
	mu         sync.Mutex
	downstream Subscriber[T]
	source     Publisher[T]
	remaining  int64
	unlimited  bool
	current    Subscription
	demand     Demand
	delivered  bool
	terminal   bool
	looping    bool
	needRetry  bool
	id         string
}

func (s *retrySubscriber[T]) driveLoop() {
	for {
		s.mu.Lock()
		s.needRetry = false
		s.mu.Unlock()

		s.source.Subscribe(s)

		s.mu.Lock()
		retry := s.needRetry
		term := s.terminal
		if !retry || term {
			s.looping = false
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
	}
}

func (s *retrySubscriber[T]) OnSubscribe(sub Subscription) {
	s.mu.Lock()
	s.current = sub
	first := !s.delivered
	s.delivered = true
	d := s.demand
	s.mu.Unlock()

	if first {
		s.downstream.OnSubscribe(s)
		return
	}
	if !d.IsZero() {
		sub.Request(d)
	}
}

func (s *retrySubscriber[T]) OnNext(v T) Demand {
	s.mu.Lock()
	if s.terminal {
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

func (s *retrySubscriber[T]) OnComplete(c Completion) {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	if c.IsFinished() {
		s.terminal = true
		s.mu.Unlock()
		recordCompletion("retry", c)
		s.downstream.OnComplete(c)
		return
	}
	if !s.unlimited && s.remaining <= 0 {
		s.terminal = true
		s.mu.Unlock()
		recordRetryAttempt("exhausted")
		recordCompletion("retry", c)
		logger.Warn("retry attempts exhausted", zap.String("stage_id", s.id), zap.Error(c.Err))
		s.downstream.OnComplete(c)
		return
	}
	if !s.unlimited {
		s.remaining--
	}
	// When this failure arrives inside a source.Subscribe call that
	// driveLoop made, the running loop picks up needRetry on its next
	// iteration instead of this call recursing into another attempt. A
	// failure that arrives later (for example from a Request after
	// Subscribe returned) finds no loop running and starts one here.
	s.needRetry = true
	startLoop := !s.looping
	if startLoop {
		s.looping = true
	}
	s.mu.Unlock()
	recordRetryAttempt("retrying")
	logger.Warn("retrying after failure", zap.String("stage_id", s.id), zap.Error(c.Err))
	if startLoop {
		s.driveLoop()
	}
}

func (s *retrySubscriber[T]) Request(d Demand) {
	requireNonZeroDemand(d)
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	s.demand = s.demand.Add(d)
	cur := s.current
	recordOutstandingDemand("retry", s.demand)
	s.mu.Unlock()
	if cur != nil {
		cur.Request(d)
	}
}

func (s *retrySubscriber[T]) Cancel() {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	s.terminal = true
	cur := s.current
	s.mu.Unlock()
	if cur != nil {
		cur.Cancel()
	}
}
