// Package worker runs fire-and-forget background jobs such as report
// generation and market-context prefetch, outside the request lifecycle.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrStopped is returned by Submit after Shutdown began.
var ErrStopped = errors.New("scheduler stopped")

// Job is one unit of background work.
type Job func(ctx context.Context) error

// Scheduler launches jobs on goroutines bounded by a per-job timeout and
// tracks them so shutdown can drain in-flight work.
type Scheduler struct {
	base    context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	log     *logrus.Entry

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler whose jobs each get at most timeout.
func NewScheduler(timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	base, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		base:    base,
		cancel:  cancel,
		timeout: timeout,
		log:     logrus.WithField("component", "worker"),
	}
}

// Submit starts job in the background. The job's context is detached from
// any request and cancelled on timeout or forced shutdown.
func (s *Scheduler) Submit(name string, fields logrus.Fields, job Job) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	s.wg.Add(1)
	s.mu.Unlock()

	entry := s.log.WithField("job", name).WithFields(fields)
	go s.run(entry, job)
	return nil
}

func (s *Scheduler) run(entry *logrus.Entry, job Job) {
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(s.base, s.timeout)
	defer cancel()

	started := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return job(ctx)
	}()

	entry = entry.WithField("elapsed", time.Since(started).Round(time.Millisecond))
	if err != nil {
		entry.WithError(err).Warn("background job failed")
		return
	}
	entry.Debug("background job finished")
}

// Wait blocks until every submitted job returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Shutdown stops accepting jobs and waits for in-flight ones. When ctx
// expires first, running jobs are cancelled and ctx's error is returned.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}
