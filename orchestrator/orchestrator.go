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
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vento-lexops/ventoagent/lexnet"
	"github.com/vento-lexops/ventoagent/registry"
)

func New(cfg *Config, reg *registry.Registry) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}

	return &Orchestrator{
		cfg:    *cfg,
		reg:    reg,
		logger: logger,
	}
}

func (o *Orchestrator) Registry() *registry.Registry {
	return o.reg
}

// Pending returns a snapshot of the outstanding notifications for a
// selection surface. The caller gets copies and cannot corrupt the
// registry.
func (o *Orchestrator) Pending() []lexnet.Notification {
	return o.reg.Snapshot()
}

func (o *Orchestrator) State() SyncState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) SetPaused(paused bool) {
	o.mu.Lock()
	o.state.Paused = paused
	o.mu.Unlock()

	o.logger.WithField("paused", paused).Info("orchestrator_paused_changed")
}

// beginPass acquires the single-pass guard. Passes are serialized so two
// concurrent passes can never corrupt SyncState or issue overlapping
// session authentications.
func (o *Orchestrator) beginPass(kind string) (*log.Entry, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.busy {
		return nil, ErrPassInProgress
	}
	o.busy = true

	return o.logger.WithFields(log.Fields{
		"pass":    kind,
		"pass_id": uuid.NewString(),
	}), nil
}

func (o *Orchestrator) endPass() {
	o.mu.Lock()
	o.busy = false
	o.mu.Unlock()
}

// ScheduledCheck is the scheduler callback. It skips the pass entirely
// while the agent is paused.
func (o *Orchestrator) ScheduledCheck() {
	if o.State().Paused {
		o.logger.Info("scheduled_check_skipped_paused")
		return
	}

	if _, err := o.CheckAllAccounts(); err != nil {
		o.logger.WithError(err).Warn("scheduled_check_rejected")
	}
}

// CheckAllAccounts runs one discovery pass over every enabled account.
// A failing account contributes zero items and never aborts the others.
// The discovery result replaces the registry wholesale. Returns the
// number of pending notifications discovered.
func (o *Orchestrator) CheckAllAccounts() (int, error) {
	l, err := o.beginPass("check")
	if err != nil {
		return 0, err
	}
	defer o.endPass()

	accounts := o.cfg.Accounts()
	l.WithField("accounts", len(accounts)).Info("check_pass_start")

	var discovered []*lexnet.Notification
	for i := range accounts {
		acct := &accounts[i]
		if !acct.Enabled {
			l.WithField("account", acct.Name).Trace("check_account_disabled")
			continue
		}

		items, err := o.checkAccount(l, acct)
		if err != nil {
			l.WithError(err).WithField("account", acct.Name).Error("check_account_failed")
			continue
		}

		l.WithFields(log.Fields{
			"account": acct.Name,
			"count":   len(items),
		}).Info("check_account_done")
		discovered = append(discovered, items...)
	}

	o.reg.Replace(discovered)

	o.mu.Lock()
	o.state.LastCheck = time.Now()
	o.mu.Unlock()

	urgent := 0
	for _, n := range discovered {
		if n.Urgent {
			urgent++
		}
	}

	if len(discovered) == 0 {
		o.notify(l, "Vento LexOps", "No new notifications")
	} else {
		o.notify(l, "Vento LexOps",
			fmt.Sprintf("%d notifications pending, %d urgent", len(discovered), urgent))
	}

	l.WithFields(log.Fields{
		"pending": len(discovered),
		"urgent":  urgent,
	}).Info("check_pass_done")

	return len(discovered), nil
}

// checkAccount opens one session for the account, lists its pending
// notifications and tags them with the account's name and identity.
// The session is always closed before returning.
func (o *Orchestrator) checkAccount(l *log.Entry, acct *lexnet.Account) ([]*lexnet.Notification, error) {
	sess, err := o.cfg.Factory.NewSession(&lexnet.SessionConfig{
		Identity:     acct.Identity,
		DownloadRoot: o.cfg.Store.Root,
		Headless:     o.cfg.Headless,
		Logger:       l.WithField("account", acct.Name),
	})
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	if err := sess.Authenticate(); err != nil {
		return nil, err
	}

	items, err := sess.ListPending()
	if err != nil {
		return nil, err
	}

	for _, n := range items {
		n.AccountName = acct.Name
		n.Identity = acct.Identity
	}

	return items, nil
}

// RetrieveSelected downloads the given notifications, grouped by the
// identity captured at discovery time. A group whose authentication
// fails is counted as not-downloaded in full; a single failing item only
// costs that item. Successfully retrieved items are removed from the
// registry, failures stay pending. Returns the number retrieved.
func (o *Orchestrator) RetrieveSelected(items []lexnet.Notification) (int, error) {
	l, err := o.beginPass("retrieve")
	if err != nil {
		return 0, err
	}
	defer o.endPass()

	// Only items still outstanding are eligible; anything already
	// retrieved (or dropped by a later check pass) is skipped.
	var groupOrder []string
	groups := map[string][]*lexnet.Notification{}
	for i := range items {
		current, ok := o.reg.Get(items[i].ID)
		if !ok {
			l.WithField("id", items[i].ID).Trace("retrieve_item_not_pending")
			continue
		}

		key := current.Identity.Key()
		if _, ok := groups[key]; !ok {
			groupOrder = append(groupOrder, key)
		}
		n := current
		groups[key] = append(groups[key], &n)
	}

	l.WithFields(log.Fields{
		"selected": len(items),
		"eligible": func() int {
			n := 0
			for _, g := range groups {
				n += len(g)
			}
			return n
		}(),
		"groups": len(groups),
	}).Info("retrieve_pass_start")

	retrieved := 0
	for _, key := range groupOrder {
		retrieved += o.retrieveGroup(l, groups[key])
	}

	o.mu.Lock()
	o.state.LastRetrieved = retrieved
	o.mu.Unlock()

	o.notify(l, "Vento LexOps", fmt.Sprintf("Downloaded %d notifications", retrieved))
	l.WithField("retrieved", retrieved).Info("retrieve_pass_done")

	return retrieved, nil
}

// retrieveGroup authenticates once for the group's shared identity and
// retrieves its items. The session is always closed before returning.
func (o *Orchestrator) retrieveGroup(l *log.Entry, group []*lexnet.Notification) int {
	gl := l.WithFields(log.Fields{
		"identity": group[0].Identity.String(),
		"items":    len(group),
	})

	sess, err := o.cfg.Factory.NewSession(&lexnet.SessionConfig{
		Identity:     group[0].Identity,
		DownloadRoot: o.cfg.Store.Root,
		Headless:     o.cfg.Headless,
		Logger:       gl,
	})
	if err != nil {
		gl.WithError(err).Error("retrieve_group_session_failed")
		return 0
	}
	defer sess.Close()

	if err := sess.Authenticate(); err != nil {
		gl.WithError(err).Error("retrieve_group_auth_failed")
		return 0
	}

	results, err := sess.Retrieve(group)
	if err != nil {
		gl.WithError(err).Error("retrieve_group_failed")
		return 0
	}

	byID := map[string]*lexnet.Notification{}
	for _, n := range group {
		byID[n.ID] = n
	}

	retrieved := 0
	for _, res := range results {
		n, ok := byID[res.ID]
		if !ok {
			gl.WithField("id", res.ID).Warn("retrieve_unknown_result")
			continue
		}

		if res.Err != nil {
			gl.WithError(res.Err).WithField("id", res.ID).Warn("retrieve_item_failed")
			continue
		}

		dir, err := o.cfg.Store.WriteNotification(n)
		if err != nil {
			// A persistence failure keeps the item pending.
			gl.WithError(err).WithField("id", res.ID).Error("retrieve_item_persist_failed")
			continue
		}

		n.Retrieved = true
		n.RetrievedPath = dir
		o.reg.Remove(n.ID)
		retrieved++

		gl.WithFields(log.Fields{"id": n.ID, "path": dir}).Info("retrieve_item_done")
	}

	return retrieved
}

// notify pushes a best-effort status message. Notifier failures are
// logged and swallowed.
func (o *Orchestrator) notify(l *log.Entry, title, message string) {
	if o.cfg.Notifier == nil {
		return
	}

	if err := o.cfg.Notifier.Notify(title, message); err != nil {
		l.WithError(err).Warn("notify_failed")
	}
}
