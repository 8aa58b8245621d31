/*
 * VentoAgent - Copyright (C) 2024 Vento LexOps
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 2, and only
 * version 2 as published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program; if not, write to the Free Software
 * Foundation, Inc., 59 Temple Place, Suite 330, Boston, MA  02111-1307  USA
 */

package scheduler

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// IntervalScheduler fires a callback on a fixed delay. It is fixed-delay,
// not fixed-rate: the next cycle is computed after the callback returns,
// so callback duration adds to the effective period.
type IntervalScheduler struct {
	callback Callback

	mu       sync.Mutex
	interval time.Duration
	running  bool
	nextRun  time.Time
	haveNext bool
	stopCh   chan struct{}
	doneCh   chan struct{}

	// pollInterval is how often the wait loop checks the clock and the
	// stop flag. Overridden in tests.
	pollInterval time.Duration
}

func NewIntervalScheduler(intervalMinutes int, callback Callback) *IntervalScheduler {
	return &IntervalScheduler{
		callback:     callback,
		interval:     time.Duration(ClampInterval(intervalMinutes)) * time.Minute,
		pollInterval: defaultPollInterval,
	}
}

// Start begins the timer loop and returns immediately. Calling Start on
// a running scheduler is a logged no-op.
func (s *IntervalScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Warn("scheduler_already_running")
		return
	}

	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	interval := s.interval
	s.mu.Unlock()

	go s.loop(s.stopCh, s.doneCh)
	log.WithField("interval", interval).Info("scheduler_started")
}

// Stop signals the loop to exit and waits for it, bounded by a grace
// period. Safe to call when not running.
func (s *IntervalScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.haveNext = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
		log.Info("scheduler_stopped")
	case <-time.After(stopGracePeriod):
		log.Warn("scheduler_stop_timeout")
	}
}

// SetInterval changes the period, clamped into range. It takes effect on
// the next cycle computation; an in-flight wait is not interrupted.
func (s *IntervalScheduler) SetInterval(minutes int) {
	clamped := ClampInterval(minutes)

	s.mu.Lock()
	s.interval = time.Duration(clamped) * time.Minute
	s.mu.Unlock()

	log.WithField("interval_minutes", clamped).Info("scheduler_interval_updated")
}

// TriggerNow runs the callback once on its own goroutine, independent of
// the timer loop. The loop's current cycle is not reset.
func (s *IntervalScheduler) TriggerNow() {
	go s.invoke()
}

// NextRun returns the currently scheduled wake time. ok is false if the
// loop has not computed one: not started, or between cycles.
func (s *IntervalScheduler) NextRun() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRun, s.haveNext
}

func (s *IntervalScheduler) TimeUntilNextRun() (time.Duration, bool) {
	next, ok := s.NextRun()
	if !ok {
		return 0, false
	}
	return time.Until(next), true
}

func (s *IntervalScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *IntervalScheduler) loop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	for {
		s.mu.Lock()
		// Stop may have cleared haveNext while the previous cycle was
		// still winding down; never republish a wake time after that.
		if !s.running {
			s.mu.Unlock()
			return
		}
		interval := s.interval
		s.nextRun = time.Now().Add(interval)
		s.haveNext = true
		next := s.nextRun
		s.mu.Unlock()

		log.WithField("next_run", next).Trace("scheduler_cycle_start")

		for time.Now().Before(next) {
			select {
			case <-stopCh:
				return
			case <-time.After(s.pollInterval):
			}
		}

		select {
		case <-stopCh:
			return
		default:
		}

		s.mu.Lock()
		s.haveNext = false
		s.mu.Unlock()

		s.invoke()
	}
}

func (s *IntervalScheduler) invoke() {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("scheduler_callback_panic")
		}
	}()

	log.Trace("scheduler_callback_start")
	s.callback()
	log.Trace("scheduler_callback_end")
}
