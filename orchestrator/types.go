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

package orchestrator

import (
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vento-lexops/ventoagent/lexnet"
	"github.com/vento-lexops/ventoagent/notify"
	"github.com/vento-lexops/ventoagent/registry"
	"github.com/vento-lexops/ventoagent/store"
)

// ErrPassInProgress is returned when a check or retrieve pass is
// requested while another pass is still running. Passes are strictly
// serialized; overlapping requests are rejected, not queued.
var ErrPassInProgress = errors.New("a sync pass is already in progress")

type Config struct {
	// Accounts is read at the start of every pass so configuration
	// edits made while the agent runs are picked up.
	Accounts func() []lexnet.Account

	Factory  lexnet.SessionFactory
	Store    *store.Store
	Notifier notify.Notifier
	Headless bool
	Logger   *log.Entry
}

// SyncState is the orchestrator's per-process bookkeeping. It is copied
// out under the lock for display and never persisted.
type SyncState struct {
	LastCheck     time.Time
	LastRetrieved int
	Paused        bool
}

type Orchestrator struct {
	cfg    Config
	reg    *registry.Registry
	logger *log.Entry

	mu    sync.Mutex
	state SyncState
	busy  bool
}
