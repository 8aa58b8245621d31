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

package lexnet

import (
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	ErrAuthFailed       = errors.New("authentication failed")
	ErrSessionClosed    = errors.New("session closed")
	ErrStoreIdentity    = errors.New("store-backed identities require the platform certificate store")
	ErrUnknownItem      = errors.New("unknown notification id")
	ErrNotAuthenticated = errors.New("session not authenticated")
)

// Account is one configured identity against the notification source.
// Accounts are owned by the configuration store and are read-only to
// a sync pass.
type Account struct {
	Name     string   `json:"name"`
	Enabled  bool     `json:"enabled"`
	Identity Identity `json:"identity"`
}

// Notification is one discovered, not-yet-retrieved item. The owning
// account's name and identity are captured at discovery time so a later
// retrieve pass never needs to re-resolve the account.
type Notification struct {
	ID         string    `json:"notification_id"`
	Court      string    `json:"court"`
	Procedure  string    `json:"procedure_number"`
	Type       string    `json:"notification_type"`
	ReceivedAt time.Time `json:"received_date"`
	Urgent     bool      `json:"is_urgent"`

	Retrieved     bool   `json:"-"`
	RetrievedPath string `json:"-"`

	AccountName string   `json:"account"`
	Identity    Identity `json:"-"`
}

// ItemResult is the per-item outcome of a Retrieve call.
type ItemResult struct {
	ID  string
	Err error
}

// Session is a short-lived, single-pass authenticated connection to the
// notification source for one account. One session is opened per pass per
// account and discarded afterwards, never reused.
type Session interface {
	// Authenticate establishes the authenticated session.
	Authenticate() error

	// ListPending lists outstanding notifications without retrieving
	// their content.
	ListPending() ([]*Notification, error)

	// Retrieve fetches content for the given subset of previously
	// listed notifications. A per-item failure is reported in the
	// result slice; the call itself only errors when nothing could
	// be attempted at all.
	Retrieve(items []*Notification) ([]ItemResult, error)

	// Close releases the session's resources. Idempotent, safe to
	// call even if Authenticate was never called.
	Close()
}

type SessionConfig struct {
	Identity     Identity
	DownloadRoot string
	Headless     bool
	Logger       *log.Entry
}

type SessionFactory interface {
	NewSession(cfg *SessionConfig) (Session, error)
}
