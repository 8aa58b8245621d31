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
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"

	"github.com/vento-lexops/ventoagent/internal"
	"github.com/vento-lexops/ventoagent/lexnet"
	mock_lexnet "github.com/vento-lexops/ventoagent/lexnet/mocks"
	"github.com/vento-lexops/ventoagent/notify"
	"github.com/vento-lexops/ventoagent/registry"
	"github.com/vento-lexops/ventoagent/store"
)

var (
	identityA = lexnet.Identity{Thumbprint: "AAAA"}
	identityB = lexnet.Identity{Thumbprint: "BBBB"}
)

func account(name string, id lexnet.Identity) lexnet.Account {
	return lexnet.Account{Name: name, Enabled: true, Identity: id}
}

func notif(id string, identity lexnet.Identity, urgent bool) *lexnet.Notification {
	return &lexnet.Notification{
		ID:         id,
		Court:      "Juzgado de lo Social 3",
		Procedure:  id + "/2024",
		Type:       "Sentencia",
		ReceivedAt: time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC),
		Urgent:     urgent,
		Identity:   identity,
	}
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingNotifier) Notify(_, message string) error {
	r.mu.Lock()
	r.messages = append(r.messages, message)
	r.mu.Unlock()
	return nil
}

func (r *recordingNotifier) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return ""
	}
	return r.messages[len(r.messages)-1]
}

func newTestOrchestrator(t *testing.T, factory lexnet.SessionFactory, accounts ...lexnet.Account) (*Orchestrator, *recordingNotifier, string) {
	root := t.TempDir()
	notifier := &recordingNotifier{}

	orch := New(&Config{
		Accounts: func() []lexnet.Account { return accounts },
		Factory:  factory,
		Store:    store.New(root),
		Notifier: notifier,
	}, registry.New())

	return orch, notifier, root
}

// One account failing authentication contributes zero items; the others
// proceed unaffected and no error escapes the pass.
func TestCheckAllAccountsAuthFailureIsolation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	bad := mock_lexnet.NewMockSession(ctrl)
	bad.EXPECT().Authenticate().Return(lexnet.ErrAuthFailed)
	bad.EXPECT().Close()

	good := mock_lexnet.NewMockSession(ctrl)
	good.EXPECT().Authenticate().Return(nil)
	good.EXPECT().ListPending().Return([]*lexnet.Notification{
		notif("n1", lexnet.Identity{}, false),
		notif("n2", lexnet.Identity{}, true),
	}, nil)
	good.EXPECT().Close()

	factory := mock_lexnet.NewMockSessionFactory(ctrl)
	factory.EXPECT().NewSession(gomock.Any()).DoAndReturn(func(cfg *lexnet.SessionConfig) (lexnet.Session, error) {
		if cfg.Identity.Key() == identityA.Key() {
			return bad, nil
		}
		return good, nil
	}).Times(2)

	orch, notifier, _ := newTestOrchestrator(t, factory,
		account("failing", identityA), account("working", identityB))

	count, err := orch.CheckAllAccounts()
	assert.NoError(t, err)
	assert.Equal(t, 2, count)

	pending := orch.Pending()
	assert.Len(t, pending, 2)
	for _, n := range pending {
		assert.Equal(t, "working", n.AccountName)
		assert.Equal(t, identityB.Key(), n.Identity.Key())
	}

	assert.Equal(t, "2 notifications pending, 1 urgent", notifier.last())
	assert.False(t, orch.State().LastCheck.IsZero())
}

func TestCheckAllAccountsSkipsDisabled(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// The factory must never be asked for the disabled account.
	factory := mock_lexnet.NewMockSessionFactory(ctrl)

	disabled := account("off", identityA)
	disabled.Enabled = false

	orch, notifier, _ := newTestOrchestrator(t, factory, disabled)

	count, err := orch.CheckAllAccounts()
	assert.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, "No new notifications", notifier.last())
}

// Discovery supersedes memory: items absent from the new pass are
// dropped even if a previously contributing account failed this time.
func TestCheckAllAccountsReplacesRegistry(t *testing.T) {
	sessA := &internal.FakeSession{ListItems: []*lexnet.Notification{notif("old", lexnet.Identity{}, false)}}
	factory := &internal.FakeFactory{Sessions: map[string]*internal.FakeSession{
		identityA.Key(): sessA,
	}}

	orch, _, _ := newTestOrchestrator(t, factory, account("acct", identityA))

	_, err := orch.CheckAllAccounts()
	assert.NoError(t, err)
	_, ok := orch.Registry().Get("old")
	assert.True(t, ok)

	// Next pass finds a different item; "old" is gone.
	sessA.ListItems = []*lexnet.Notification{notif("new", lexnet.Identity{}, false)}
	_, err = orch.CheckAllAccounts()
	assert.NoError(t, err)

	_, ok = orch.Registry().Get("old")
	assert.False(t, ok)
	_, ok = orch.Registry().Get("new")
	assert.True(t, ok)
}

// Sessions opened by a pass are always released, including when the
// pass fails partway through.
func TestCheckAllAccountsClosesSessionsOnFailure(t *testing.T) {
	sessions := map[string]*internal.FakeSession{
		identityA.Key(): {ListErr: errors.New("listing blew up")},
		identityB.Key(): {ListItems: []*lexnet.Notification{notif("n1", lexnet.Identity{}, false)}},
	}
	factory := &internal.FakeFactory{Sessions: sessions}

	orch, _, _ := newTestOrchestrator(t, factory,
		account("broken", identityA), account("fine", identityB))

	count, err := orch.CheckAllAccounts()
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.True(t, factory.AllClosed())
}

// Two identity groups, one failing wholesale: the success count is the
// surviving group's size and only the failed group's items stay pending.
func TestRetrieveSelectedGroupFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	a1 := notif("a1", identityA, false)
	a2 := notif("a2", identityA, false)
	b1 := notif("b1", identityB, false)

	badGroup := mock_lexnet.NewMockSession(ctrl)
	badGroup.EXPECT().Authenticate().Return(lexnet.ErrAuthFailed)
	badGroup.EXPECT().Close()

	goodGroup := mock_lexnet.NewMockSession(ctrl)
	goodGroup.EXPECT().Authenticate().Return(nil)
	goodGroup.EXPECT().Retrieve(gomock.Any()).DoAndReturn(func(items []*lexnet.Notification) ([]lexnet.ItemResult, error) {
		assert.Len(t, items, 1)
		return []lexnet.ItemResult{{ID: "b1"}}, nil
	})
	goodGroup.EXPECT().Close()

	factory := mock_lexnet.NewMockSessionFactory(ctrl)
	factory.EXPECT().NewSession(gomock.Any()).DoAndReturn(func(cfg *lexnet.SessionConfig) (lexnet.Session, error) {
		if cfg.Identity.Key() == identityA.Key() {
			return badGroup, nil
		}
		return goodGroup, nil
	}).Times(2)

	orch, notifier, _ := newTestOrchestrator(t, factory)
	orch.Registry().Replace([]*lexnet.Notification{a1, a2, b1})

	retrieved, err := orch.RetrieveSelected([]lexnet.Notification{*a1, *a2, *b1})
	assert.NoError(t, err)
	assert.Equal(t, 1, retrieved)

	_, ok := orch.Registry().Get("a1")
	assert.True(t, ok)
	_, ok = orch.Registry().Get("a2")
	assert.True(t, ok)
	_, ok = orch.Registry().Get("b1")
	assert.False(t, ok)

	assert.Equal(t, "Downloaded 1 notifications", notifier.last())
}

// User selects only the urgent item: the other one stays pending, a
// metadata file appears under the date-derived path for the retrieved
// item and nothing is written for the other.
func TestRetrieveSelectedSubset(t *testing.T) {
	a := notif("urgent-a", identityA, true)
	b := notif("plain-b", identityA, false)

	factory := &internal.FakeFactory{Sessions: map[string]*internal.FakeSession{
		identityA.Key(): {},
	}}

	orch, _, root := newTestOrchestrator(t, factory)
	orch.Registry().Replace([]*lexnet.Notification{a, b})

	retrieved, err := orch.RetrieveSelected([]lexnet.Notification{*a})
	assert.NoError(t, err)
	assert.Equal(t, 1, retrieved)

	pending := orch.Pending()
	assert.Len(t, pending, 1)
	assert.Equal(t, "plain-b", pending[0].ID)

	st := store.New(root)
	_, err = os.Stat(filepath.Join(st.ItemDir(a), store.MetadataFileName))
	assert.NoError(t, err)
	_, err = os.Stat(st.ItemDir(b))
	assert.True(t, os.IsNotExist(err))

	assert.True(t, factory.AllClosed())
}

// Retrieving an already-retrieved set again is a no-op, not an error:
// the items are no longer pending, so no session is even opened.
func TestRetrieveSelectedIdempotent(t *testing.T) {
	a := notif("only", identityA, false)

	factory := &internal.FakeFactory{Sessions: map[string]*internal.FakeSession{
		identityA.Key(): {},
	}}

	orch, _, _ := newTestOrchestrator(t, factory)
	orch.Registry().Replace([]*lexnet.Notification{a})

	retrieved, err := orch.RetrieveSelected([]lexnet.Notification{*a})
	assert.NoError(t, err)
	assert.Equal(t, 1, retrieved)

	opened := len(factory.Opened)

	retrieved, err = orch.RetrieveSelected([]lexnet.Notification{*a})
	assert.NoError(t, err)
	assert.Equal(t, 0, retrieved)
	assert.Len(t, factory.Opened, opened)
}

// A single failing item costs only that item; the rest of its group is
// still retrieved and the failure stays pending for a later retry.
func TestRetrieveSelectedItemFailure(t *testing.T) {
	a := notif("works", identityA, false)
	b := notif("fails", identityA, false)

	sess := &internal.FakeSession{
		RetrieveFn: func(items []*lexnet.Notification) ([]lexnet.ItemResult, error) {
			results := make([]lexnet.ItemResult, 0, len(items))
			for _, n := range items {
				res := lexnet.ItemResult{ID: n.ID}
				if n.ID == "fails" {
					res.Err = errors.New("download truncated")
				}
				results = append(results, res)
			}
			return results, nil
		},
	}
	factory := &internal.FakeFactory{Sessions: map[string]*internal.FakeSession{
		identityA.Key(): sess,
	}}

	orch, _, _ := newTestOrchestrator(t, factory)
	orch.Registry().Replace([]*lexnet.Notification{a, b})

	retrieved, err := orch.RetrieveSelected([]lexnet.Notification{*a, *b})
	assert.NoError(t, err)
	assert.Equal(t, 1, retrieved)

	_, ok := orch.Registry().Get("fails")
	assert.True(t, ok)
	_, ok = orch.Registry().Get("works")
	assert.False(t, ok)
}

// Overlapping passes are rejected, never interleaved.
func TestPassGuardRejectsOverlap(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	inList := make(chan struct{})
	release := make(chan struct{})

	sess := mock_lexnet.NewMockSession(ctrl)
	sess.EXPECT().Authenticate().Return(nil)
	sess.EXPECT().ListPending().DoAndReturn(func() ([]*lexnet.Notification, error) {
		close(inList)
		<-release
		return nil, nil
	})
	sess.EXPECT().Close()

	factory := mock_lexnet.NewMockSessionFactory(ctrl)
	factory.EXPECT().NewSession(gomock.Any()).Return(sess, nil)

	orch, _, _ := newTestOrchestrator(t, factory, account("slow", identityA))

	done := make(chan error, 1)
	go func() {
		_, err := orch.CheckAllAccounts()
		done <- err
	}()

	<-inList

	_, err := orch.CheckAllAccounts()
	assert.ErrorIs(t, err, ErrPassInProgress)
	_, err = orch.RetrieveSelected(nil)
	assert.ErrorIs(t, err, ErrPassInProgress)

	close(release)
	assert.NoError(t, <-done)

	// Guard is released once the pass finishes.
	_, err = orch.RetrieveSelected(nil)
	assert.NoError(t, err)
}

// Notifier failures degrade to a log line; the pass itself succeeds.
func TestNotifierFailureIsSwallowed(t *testing.T) {
	factory := &internal.FakeFactory{Sessions: map[string]*internal.FakeSession{}}

	root := t.TempDir()
	orch := New(&Config{
		Accounts: func() []lexnet.Account { return nil },
		Factory:  factory,
		Store:    store.New(root),
		Notifier: notify.Func(func(_, _ string) error {
			return errors.New("toast service unavailable")
		}),
	}, registry.New())

	_, err := orch.CheckAllAccounts()
	assert.NoError(t, err)
}

func TestScheduledCheckSkipsWhenPaused(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No factory calls may happen while paused.
	factory := mock_lexnet.NewMockSessionFactory(ctrl)

	orch, _, _ := newTestOrchestrator(t, factory, account("acct", identityA))
	orch.SetPaused(true)
	orch.ScheduledCheck()

	assert.True(t, orch.State().Paused)
	assert.True(t, orch.State().LastCheck.IsZero())
}
