package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Seklfreak/robyul-automod/cache"
	"github.com/Seklfreak/robyul-automod/helpers"
	"github.com/getsentry/raven-go"
	"github.com/sirupsen/logrus"
)

// TaskFunc is called with the time of the tick which found the task due
type TaskFunc func(now time.Time)

type task struct {
	name     string
	interval time.Duration
	run      TaskFunc
	next     time.Time
}

// Scheduler runs named periodic tasks from a single loop.
// Tests drive it by calling Tick with fake times instead of Start.
type Scheduler struct {
	sync.Mutex
	tasks      []*task
	resolution time.Duration
	now        func() time.Time
}

// New returns a scheduler checking for due tasks every $resolution
func New(resolution time.Duration) *Scheduler {
	if resolution <= 0 {
		resolution = 100 * time.Millisecond
	}
	return &Scheduler{
		resolution: resolution,
		now:        time.Now,
	}
}

func logger() *logrus.Entry {
	return cache.GetLogger().WithField("module", "scheduler")
}

// Register adds a task, it first runs one $interval after the first tick
func (s *Scheduler) Register(name string, interval time.Duration, fn TaskFunc) {
	s.Lock()
	defer s.Unlock()

	s.tasks = append(s.tasks, &task{
		name:     name,
		interval: interval,
		run:      fn,
	})
}

// Names returns the registered task names in registration order
func (s *Scheduler) Names() []string {
	s.Lock()
	defer s.Unlock()

	names := make([]string, 0, len(s.tasks))
	for _, t := range s.tasks {
		names = append(names, t.name)
	}
	return names
}

// Tick runs every task due at $now and returns the names of the tasks it ran
func (s *Scheduler) Tick(now time.Time) []string {
	s.Lock()
	due := make([]*task, 0)
	for _, t := range s.tasks {
		if t.next.IsZero() {
			t.next = now.Add(t.interval)
			continue
		}
		if now.Before(t.next) {
			continue
		}
		t.next = t.next.Add(t.interval)
		if t.next.Before(now) {
			// skip missed runs instead of catching up
			t.next = now.Add(t.interval)
		}
		due = append(due, t)
	}
	s.Unlock()

	ran := make([]string, 0, len(due))
	for _, t := range due {
		s.runTask(t, now)
		ran = append(ran, t.name)
	}
	return ran
}

func (s *Scheduler) runTask(t *task, now time.Time) {
	defer func() {
		if err := recover(); err != nil {
			logger().Errorf("task %s panicked: %#v", t.name, err)
			raven.CaptureError(fmt.Errorf("%#v", err), map[string]string{"task": t.name})
		}
	}()
	t.run(now)
}

// Start ticks until $ctx is done
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		defer helpers.Recover()

		ticker := time.NewTicker(s.resolution)
		defer ticker.Stop()

		logger().Infof("started scheduler with %d tasks (%s)", len(s.Names()), s.resolution.String())
		s.Tick(s.now())
		for {
			select {
			case <-ctx.Done():
				logger().Info("stopped scheduler")
				return
			case <-ticker.C:
				s.Tick(s.now())
			}
		}
	}()
}
