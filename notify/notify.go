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

package notify

import (
	log "github.com/sirupsen/logrus"
)

// Notifier is a best-effort sink for human-readable status messages.
// Implementations may fail; callers log and continue, a notification is
// never a correctness dependency.
type Notifier interface {
	Notify(title, message string) error
}

// LogNotifier surfaces notifications through the log, for console mode.
type LogNotifier struct{}

func (LogNotifier) Notify(title, message string) error {
	log.WithFields(log.Fields{
		"title":   title,
		"message": message,
	}).Info("notification")
	return nil
}

// Func adapts a plain function to the Notifier interface.
type Func func(title, message string) error

func (f Func) Notify(title, message string) error {
	return f(title, message)
}
