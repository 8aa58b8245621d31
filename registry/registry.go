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

package registry

import (
	"sort"
	"sync"

	"github.com/vento-lexops/ventoagent/lexnet"
)

// Registry holds notifications that have been discovered but not yet
// retrieved. It is shared between the scheduler goroutine, user-triggered
// pass goroutines and whatever surface lets the user pick items, so all
// access goes through the lock.
type Registry struct {
	mu    sync.RWMutex
	items map[string]*lexnet.Notification
}

func New() *Registry {
	return &Registry{items: map[string]*lexnet.Notification{}}
}

// Replace swaps the registry's contents for the given discovery result.
// Discovery is authoritative: anything not in items is dropped. Duplicate
// IDs keep the first occurrence.
func (r *Registry) Replace(items []*lexnet.Notification) {
	next := make(map[string]*lexnet.Notification, len(items))
	for _, n := range items {
		if _, ok := next[n.ID]; ok {
			continue
		}
		next[n.ID] = n
	}

	r.mu.Lock()
	r.items = next
	r.mu.Unlock()
}

// Snapshot returns a copy of the current contents, ordered by received
// time then ID. Callers get values, never the registry's own pointers.
func (r *Registry) Snapshot() []lexnet.Notification {
	r.mu.RLock()
	out := make([]lexnet.Notification, 0, len(r.items))
	for _, n := range r.items {
		out = append(out, *n)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].ReceivedAt.Before(out[j].ReceivedAt)
		}
		return out[i].ID < out[j].ID
	})

	return out
}

func (r *Registry) Get(id string) (lexnet.Notification, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.items[id]
	if !ok {
		return lexnet.Notification{}, false
	}
	return *n, true
}

// Remove drops a retrieved item. The registry tracks outstanding work
// only, so retrieval success removes rather than flags.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.items, id)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
