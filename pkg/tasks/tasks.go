// Package tasks implements the background scheduler described in
// SPEC_FULL.md §5: debounced index flushes, a periodic compaction timer,
// and a periodic snapshot timer, one instance owned per scope by the
// MemoryManager. The ticker/stop-channel shape follows the teacher's
// pkg/reconciler.Reconciler.
package tasks

import (
	"sync"
	"time"

	"github.com/llm-memory/engine/pkg/log"
)

// Scheduler runs named periodic jobs plus one debounced job, all on their
// own goroutines, stoppable together.
type Scheduler struct {
	mu      sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool

	debounceMu      sync.Mutex
	debouncePending bool
	debounceTimer   *time.Timer
}

// New returns a Scheduler with no jobs registered yet.
func New() *Scheduler {
	return &Scheduler{stopCh: make(chan struct{})}
}

// Every registers fn to run on a fixed interval until Stop is called. fn
// errors are logged and do not stop the ticker. Every must be called
// before Start.
func (s *Scheduler) Every(name string, interval time.Duration, fn func() error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := fn(); err != nil {
					log.Logger.Error().Err(err).Str("task", name).Msg("scheduled task failed")
				}
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Start marks the scheduler as running; jobs registered via Every are
// already active goroutines, so Start is mainly a readiness marker kept
// for symmetry with Stop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
}

// Stop halts every registered ticker job and waits for their goroutines to
// exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	s.debounceMu.Lock()
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.debounceMu.Unlock()
}

// Debounce schedules fn to run after delay, coalescing repeated calls
// within the same window into a single execution (the index-flush and
// config-apply triggers in SPEC_FULL.md §5 both want this: many rapid
// writes should produce one flush, not one per write).
func (s *Scheduler) Debounce(delay time.Duration, fn func() error) {
	s.debounceMu.Lock()
	defer s.debounceMu.Unlock()

	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.debounceTimer = time.AfterFunc(delay, func() {
		if err := fn(); err != nil {
			log.Logger.Error().Err(err).Msg("debounced task failed")
		}
	})
}
