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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClampInterval(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{2, 5},
		{5, 5},
		{30, 30},
		{1440, 1440},
		{2000, 1440},
		{-1, 5},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, ClampInterval(tc.in))
	}
}

func TestSetIntervalClamps(t *testing.T) {
	s := NewIntervalScheduler(30, func() {})

	s.SetInterval(2)
	assert.Equal(t, 5*time.Minute, s.interval)

	s.SetInterval(2000)
	assert.Equal(t, 1440*time.Minute, s.interval)
}

func TestNextRunUnknownBeforeStart(t *testing.T) {
	s := NewIntervalScheduler(30, func() {})

	_, ok := s.NextRun()
	assert.False(t, ok)

	_, ok = s.TimeUntilNextRun()
	assert.False(t, ok)
}

func TestStartIsIdempotent(t *testing.T) {
	s := NewIntervalScheduler(30, func() {})
	s.pollInterval = time.Millisecond

	s.Start()
	s.Start()
	assert.True(t, s.IsRunning())

	s.Stop()
	assert.False(t, s.IsRunning())
}

func TestStopWhenNotRunning(t *testing.T) {
	s := NewIntervalScheduler(30, func() {})
	s.Stop()
	s.Stop()
	assert.False(t, s.IsRunning())
}

func TestNextRunIsSetWhileWaiting(t *testing.T) {
	s := NewIntervalScheduler(30, func() {})
	s.pollInterval = time.Millisecond

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool {
		next, ok := s.NextRun()
		return ok && next.After(time.Now())
	}, time.Second, time.Millisecond)
}

func TestTriggerNowRunsCallbackWithoutStart(t *testing.T) {
	ch := make(chan struct{}, 1)
	s := NewIntervalScheduler(30, func() { ch <- struct{}{} })

	s.TriggerNow()

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("callback was not invoked")
	}
}

func TestTriggerNowRecoversPanic(t *testing.T) {
	done := make(chan struct{}, 2)
	s := NewIntervalScheduler(30, func() {
		done <- struct{}{}
		panic("boom")
	})

	s.TriggerNow()
	s.TriggerNow()

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("callback did not run")
		}
	}
}

// The scheduler is fixed-delay: callback duration adds to the effective
// period, so two consecutive firings are at least interval+duration
// apart.
func TestFixedDelaySemantics(t *testing.T) {
	const (
		interval = 50 * time.Millisecond
		workTime = 30 * time.Millisecond
	)

	fired := make(chan time.Time, 4)
	s := NewIntervalScheduler(30, func() {
		fired <- time.Now()
		time.Sleep(workTime)
	})
	s.interval = interval
	s.pollInterval = 2 * time.Millisecond

	s.Start()
	defer s.Stop()

	var first, second time.Time
	select {
	case first = <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("first firing never happened")
	}
	select {
	case second = <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("second firing never happened")
	}

	assert.GreaterOrEqual(t, second.Sub(first), interval+workTime)
}

// Once Stop returns, NextRun must not report a stale wake time, even if
// the loop was about to start a new cycle when it was stopped.
func TestNextRunClearedAfterStop(t *testing.T) {
	s := NewIntervalScheduler(30, func() {})
	s.interval = 5 * time.Millisecond
	s.pollInterval = time.Millisecond

	for i := 0; i < 20; i++ {
		s.Start()
		time.Sleep(time.Duration(i%7) * time.Millisecond)
		s.Stop()

		_, ok := s.NextRun()
		assert.False(t, ok)
	}
}

// A panicking callback never kills the loop.
func TestCallbackPanicKeepsLoopAlive(t *testing.T) {
	fired := make(chan struct{}, 4)
	s := NewIntervalScheduler(30, func() {
		fired <- struct{}{}
		panic("boom")
	})
	s.interval = 20 * time.Millisecond
	s.pollInterval = 2 * time.Millisecond

	s.Start()
	defer s.Stop()

	for i := 0; i < 2; i++ {
		select {
		case <-fired:
		case <-time.After(5 * time.Second):
			t.Fatalf("firing %d never happened", i)
		}
	}
}
