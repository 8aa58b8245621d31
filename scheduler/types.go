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

import "time"

// Callback is invoked by a scheduler when it fires. Callbacks run
// synchronously inside the scheduler's own goroutine; a panic is
// recovered and logged and never stops the loop.
type Callback func()

const (
	// MinIntervalMinutes and MaxIntervalMinutes bound the interval
	// scheduler's period. Out-of-range requests are clamped, not
	// rejected.
	MinIntervalMinutes = 5
	MaxIntervalMinutes = 1440

	defaultPollInterval      = time.Second
	defaultDailyPollInterval = 30 * time.Second
	defaultDailyCooldown     = time.Minute
	stopGracePeriod          = 5 * time.Second
)

// ClampInterval clamps a requested interval into the allowed range.
func ClampInterval(minutes int) int {
	if minutes < MinIntervalMinutes {
		return MinIntervalMinutes
	}
	if minutes > MaxIntervalMinutes {
		return MaxIntervalMinutes
	}
	return minutes
}
