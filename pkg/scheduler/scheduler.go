// Package scheduler bridges wall-clock cron schedules into the reactive
// publisher protocol: CronPublisher is a reactive.Publisher[time.Time]
// whose values are firing times, one per matching cron tick.
package scheduler

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/code-100-precent/reactorflow/pkg/logger"
	"github.com/code-100-precent/reactorflow/pkg/reactive"
)

// CronPublisher emits the current time each time its cron expression
// matches. It supports both the standard 5-field format and the 6-field
// (with seconds) format.
type CronPublisher struct {
	spec     string
	schedule cron.Schedule
}

// NewCronPublisher parses spec and returns a publisher that will emit on
// every subsequent match. The expression is validated eagerly so a
// malformed schedule fails at construction rather than on first
// subscription.
func NewCronPublisher(spec string) (*CronPublisher, error) {
	schedule, err := parseCronSchedule(spec)
	if err != nil {
		return nil, err
	}
	return &CronPublisher{spec: spec, schedule: schedule}, nil
}

func parseCronSchedule(spec string) (cron.Schedule, error) {
	if schedule, err := cron.ParseStandard(spec); err == nil {
		return schedule, nil
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return parser.Parse(spec)
}

func (c *CronPublisher) Subscribe(sub reactive.Subscriber[time.Time]) {
	s := &cronSubscription{downstream: sub, schedule: c.schedule, spec: c.spec}
	sub.OnSubscribe(s)
}

type cronSubscription struct {
	mu         sync.Mutex
	downstream reactive.Subscriber[time.Time]
	schedule   cron.Schedule
	spec       string
	timer      *time.Timer
	demand     reactive.Demand
	requested  bool
	cancelled  bool
}

func (s *cronSubscription) Request(d reactive.Demand) {
	reactive.RequireNonZeroDemand(d)
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.demand = s.demand.Add(d)
	first := !s.requested
	s.requested = true
	s.mu.Unlock()
	if first {
		s.scheduleNext()
	}
}

func (s *cronSubscription) Cancel() {
	s.mu.Lock()
	s.cancelled = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
}

func (s *cronSubscription) scheduleNext() {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	next := s.schedule.Next(time.Now())
	s.timer = time.AfterFunc(time.Until(next), s.fire)
	s.mu.Unlock()
}

func (s *cronSubscription) fire() {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	if s.demand.IsZero() {
		// No outstanding demand: this tick is simply missed, there is no
		// "replay a cron tick" concept.
		s.mu.Unlock()
		logger.Debug("cron tick skipped, no outstanding demand", zap.String("spec", s.spec))
		s.scheduleNext()
		return
	}
	now := time.Now()
	s.demand = s.demand.Sub(reactive.NewDemand(1))
	s.mu.Unlock()

	extra := s.downstream.OnNext(now)

	s.mu.Lock()
	s.demand = s.demand.Add(extra)
	s.mu.Unlock()
	s.scheduleNext()
}
