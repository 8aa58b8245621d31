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

package run

import (
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"

	"github.com/vento-lexops/ventoagent/internal"
	"github.com/vento-lexops/ventoagent/lexnet"
	"github.com/vento-lexops/ventoagent/orchestrator"
	"github.com/vento-lexops/ventoagent/registry"
	"github.com/vento-lexops/ventoagent/store"
)

func TestAcquireLockExcludesSecondInstance(t *testing.T) {
	root := t.TempDir()

	lock, err := acquireLock(root)
	assert.NoError(t, err)

	// A second instance on the same tree must be turned away.
	_, err = acquireLock(root)
	assert.Error(t, err)

	other := flock.New(filepath.Join(root, lockFileName))
	locked, err := other.TryLock()
	assert.NoError(t, err)
	assert.False(t, locked)

	assert.NoError(t, lock.Unlock())

	relock, err := acquireLock(root)
	assert.NoError(t, err)
	assert.NoError(t, relock.Unlock())
}

func TestAcquireLockDistinctTrees(t *testing.T) {
	first, err := acquireLock(t.TempDir())
	assert.NoError(t, err)
	defer func() { _ = first.Unlock() }()

	second, err := acquireLock(t.TempDir())
	assert.NoError(t, err)
	assert.NoError(t, second.Unlock())
}

// A reloaded account set takes effect on the next pass without
// rebuilding the orchestrator.
func TestAccountReloadAffectsNextPass(t *testing.T) {
	idFirst := lexnet.Identity{Thumbprint: "FIRST"}
	idSecond := lexnet.Identity{Thumbprint: "SECOND"}

	src := &accountSource{accounts: []lexnet.Account{
		{Name: "first", Enabled: true, Identity: idFirst},
	}}

	factory := &internal.FakeFactory{Sessions: map[string]*internal.FakeSession{}}
	orch := orchestrator.New(&orchestrator.Config{
		Accounts: src.get,
		Factory:  factory,
		Store:    store.New(t.TempDir()),
	}, registry.New())

	_, err := orch.CheckAllAccounts()
	assert.NoError(t, err)
	assert.Len(t, factory.Opened, 1)
	assert.Equal(t, idFirst.Key(), factory.Opened[0].Identity.Key())

	src.set([]lexnet.Account{{Name: "second", Enabled: true, Identity: idSecond}})

	_, err = orch.CheckAllAccounts()
	assert.NoError(t, err)
	assert.Len(t, factory.Opened, 2)
	assert.Equal(t, idSecond.Key(), factory.Opened[1].Identity.Key())
}
