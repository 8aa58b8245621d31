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
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ScheduleTime is a wall-clock time of day.
type ScheduleTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

func (t ScheduleTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// NextOccurrence returns the next time this time-of-day comes around:
// today if it has not yet passed, otherwise tomorrow.
func (t ScheduleTime) NextOccurrence(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), t.Hour, t.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// DailyScheduler fires a callback at fixed times of day. After each
// firing it sleeps a cooldown of at least a minute so two configured
// times never collapse into duplicate firings within one wall-clock
// minute.
type DailyScheduler struct {
	times    []ScheduleTime
	callback Callback

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	pollInterval time.Duration
	cooldown     time.Duration
}

func NewDailyScheduler(times []ScheduleTime, callback Callback) *DailyScheduler {
	return &DailyScheduler{
		times:        dedupeTimes(times),
		callback:     callback,
		pollInterval: defaultDailyPollInterval,
		cooldown:     defaultDailyCooldown,
	}
}

func dedupeTimes(times []ScheduleTime) []ScheduleTime {
	seen := map[ScheduleTime]struct{}{}
	out := make([]ScheduleTime, 0, len(times))
	for _, t := range times {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Hour != out[j].Hour {
			return out[i].Hour < out[j].Hour
		}
		return out[i].Minute < out[j].Minute
	})

	return out
}

func (s *DailyScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Warn("daily_scheduler_already_running")
		return
	}
	if len(s.times) == 0 {
		s.mu.Unlock()
		log.Warn("daily_scheduler_no_times")
		return
	}

	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.loop(s.stopCh, s.doneCh)

	names := make([]string, 0, len(s.times))
	for _, t := range s.times {
		names = append(names, t.String())
	}
	log.WithField("times", strings.Join(names, ", ")).Info("daily_scheduler_started")
}

func (s *DailyScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
		log.Info("daily_scheduler_stopped")
	case <-time.After(stopGracePeriod):
		log.Warn("daily_scheduler_stop_timeout")
	}
}

func (s *DailyScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextFiring returns the earliest upcoming occurrence across all
// configured times.
func (s *DailyScheduler) NextFiring(now time.Time) time.Time {
	var next time.Time
	for _, t := range s.times {
		occ := t.NextOccurrence(now)
		if next.IsZero() || occ.Before(next) {
			next = occ
		}
	}
	return next
}

func (s *DailyScheduler) loop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	for {
		next := s.NextFiring(time.Now())
		log.WithField("next_run", next).Trace("daily_scheduler_cycle_start")

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

		s.invoke()

		// Cooldown before recomputing, otherwise the minute we just
		// fired in is still "now" and would fire again.
		select {
		case <-stopCh:
			return
		case <-time.After(s.cooldown):
		}
	}
}

func (s *DailyScheduler) invoke() {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("daily_scheduler_callback_panic")
		}
	}()

	s.callback()
}
