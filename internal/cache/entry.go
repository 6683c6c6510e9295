// Copyright © 2025 Attestant Limited.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cache holds the latest known status and uptime of each tracked validator.
package cache

import (
	"sync"

	"github.com/watcheth/stakewatch/internal/stake"
)

type record struct {
	status stake.Status
	uptime stake.Uptime
	fresh  bool
}

// Entry is the cached state of one validator. It is safe for concurrent use.
type Entry struct {
	identity stake.IdentityKey

	mu     sync.RWMutex
	record *record
}

func New(identity stake.IdentityKey) *Entry {
	return &Entry{identity: identity}
}

// NewSet creates one entry per identity, in the given order.
func NewSet(identities []stake.IdentityKey) []*Entry {
	entries := make([]*Entry, len(identities))
	for i, id := range identities {
		entries[i] = New(id)
	}
	return entries
}

func (e *Entry) Identity() stake.IdentityKey {
	return e.identity
}

// Reset marks the entry as not yet updated in the current round.
func (e *Entry) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.record != nil {
		e.record.fresh = false
	}
}

// Update stores the observation unless it is older than the stored one, so state
// only moves forward in height. It reports whether the observation was kept.
func (e *Entry) Update(status stake.Status, uptime stake.Uptime) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.record != nil && uptime.AsOfHeight < e.record.uptime.AsOfHeight {
		return false
	}
	e.record = &record{
		status: status,
		uptime: uptime.Clone(),
		fresh:  true,
	}
	return true
}

// IsFresh reports whether the entry was updated this round. An entry that has
// never been written counts as fresh.
func (e *Entry) IsFresh() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.record == nil || e.record.fresh
}

func (e *Entry) IsStale() bool {
	return !e.IsFresh()
}

// HasData reports whether any observation has been stored yet.
func (e *Entry) HasData() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.record != nil
}

func (e *Entry) Status() (stake.Status, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.record == nil {
		return stake.Status{}, false
	}
	return e.record.status, true
}

func (e *Entry) State() (stake.State, bool) {
	status, ok := e.Status()
	return status.State, ok
}

func (e *Entry) BondingState() (stake.BondingState, bool) {
	status, ok := e.Status()
	return status.BondingState, ok
}

func (e *Entry) VotingPower() (uint64, bool) {
	status, ok := e.Status()
	return status.VotingPower, ok
}

func (e *Entry) Uptime() (stake.Uptime, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.record == nil {
		return stake.Uptime{}, false
	}
	return e.record.uptime.Clone(), true
}

// Height returns the height of the stored uptime.
func (e *Entry) Height() (uint64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.record == nil {
		return 0, false
	}
	return e.record.uptime.AsOfHeight, true
}

// Snapshot is a consistent copy of an entry.
type Snapshot struct {
	Identity stake.IdentityKey
	Status   stake.Status
	Uptime   stake.Uptime
	Fresh    bool
	HasData  bool
}

// Snapshot copies every field under a single lock.
func (e *Entry) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.record == nil {
		return Snapshot{Identity: e.identity, Fresh: true}
	}
	return Snapshot{
		Identity: e.identity,
		Status:   e.record.status,
		Uptime:   e.record.uptime.Clone(),
		Fresh:    e.record.fresh,
		HasData:  true,
	}
}

// Stale returns the entries that were not updated this round.
func Stale(entries []*Entry) []*Entry {
	var stale []*Entry
	for _, e := range entries {
		if e.IsStale() {
			stale = append(stale, e)
		}
	}
	return stale
}

// Identities returns the identities of the given entries.
func Identities(entries []*Entry) []stake.IdentityKey {
	ids := make([]stake.IdentityKey, len(entries))
	for i, e := range entries {
		ids[i] = e.identity
	}
	return ids
}
