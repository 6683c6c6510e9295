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

package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watcheth/stakewatch/internal/cache"
	"github.com/watcheth/stakewatch/internal/node"
	"github.com/watcheth/stakewatch/internal/stake"
	"github.com/watcheth/stakewatch/internal/update"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingUpdater records how often a round runs and returns a fixed result.
type countingUpdater struct {
	runs   atomic.Int32
	result atomic.Bool
	delay  time.Duration
	opts   update.Options
	ctxErr error
}

func (u *countingUpdater) Run(ctx context.Context, _ [][]*node.Client, entries []*cache.Entry, opts update.Options) bool {
	u.runs.Add(1)
	u.opts = opts
	if u.delay > 0 {
		time.Sleep(u.delay)
	}
	u.ctxErr = ctx.Err()
	for _, e := range entries {
		e.Update(stake.Status{State: stake.StateActive}, stake.Uptime{AsOfHeight: uint64(u.runs.Load()), WindowLen: 10})
	}
	return u.result.Load()
}

func newTestMonitor(clock *fakeClock, u *countingUpdater, interval time.Duration) *Monitor {
	entries := cache.NewSet([]stake.IdentityKey{"penumbravalid1a", "penumbravalid1b"})
	return NewMonitor(nil, entries, Options{
		PollInterval:   interval,
		ConnectTimeout: time.Second,
	}, WithUpdater(u.Run), WithClock(clock.Now))
}

func TestNewMonitor(t *testing.T) {
	m := NewMonitor(nil, nil, Options{PollInterval: time.Second, ConnectTimeout: 3 * time.Second})

	require.NotNil(t, m)
	assert.Equal(t, time.Second, m.GetPollInterval())
	assert.Equal(t, 3*time.Second, m.opts.RequestTimeout, "request timeout defaults to connect timeout")
	assert.Nil(t, m.lastUpdate)
	assert.True(t, m.lastSuccess.Load())
}

func TestMonitor_InitialSnapshot(t *testing.T) {
	clock := newFakeClock()
	u := &countingUpdater{}
	m := newTestMonitor(clock, u, time.Hour)

	// Before any scrape the gate reports success.
	snap := m.snapshot()
	assert.True(t, snap.Success)
	assert.Zero(t, snap.Staleness)
	require.Len(t, snap.Entries, 2)
	assert.False(t, snap.Entries[0].HasData)
}

func TestMonitor_GateDedup(t *testing.T) {
	clock := newFakeClock()
	u := &countingUpdater{}
	u.result.Store(true)
	m := newTestMonitor(clock, u, time.Second)
	ctx := context.Background()

	m.Scrape(ctx)
	clock.Advance(400 * time.Millisecond)
	snap := m.Scrape(ctx)

	assert.Equal(t, int32(1), u.runs.Load(), "second scrape inside the interval must not refresh")
	assert.Equal(t, 400*time.Millisecond, snap.Staleness)

	clock.Advance(600 * time.Millisecond)
	snap = m.Scrape(ctx)

	assert.Equal(t, int32(2), u.runs.Load())
	assert.Zero(t, snap.Staleness)
	assert.Equal(t, uint64(2), snap.Entries[0].Uptime.AsOfHeight)
}

func TestMonitor_StoresSuccess(t *testing.T) {
	clock := newFakeClock()
	u := &countingUpdater{}
	m := newTestMonitor(clock, u, time.Second)
	ctx := context.Background()

	u.result.Store(false)
	assert.False(t, m.Scrape(ctx).Success)

	// A gated scrape reports the previous result.
	u.result.Store(true)
	assert.False(t, m.Scrape(ctx).Success)

	clock.Advance(time.Second)
	assert.True(t, m.Scrape(ctx).Success)
}

func TestMonitor_PassesTimeouts(t *testing.T) {
	clock := newFakeClock()
	u := &countingUpdater{}
	entries := cache.NewSet([]stake.IdentityKey{"penumbravalid1a"})
	m := NewMonitor(nil, entries, Options{
		PollInterval:   time.Second,
		ConnectTimeout: 2 * time.Second,
		RequestTimeout: 500 * time.Millisecond,
	}, WithUpdater(u.Run), WithClock(clock.Now))

	m.Scrape(context.Background())

	assert.Equal(t, update.Options{ConnectTimeout: 2 * time.Second, RequestTimeout: 500 * time.Millisecond}, u.opts)
}

func TestMonitor_RoundSurvivesCallerCancel(t *testing.T) {
	clock := newFakeClock()
	u := &countingUpdater{}
	u.result.Store(true)
	m := newTestMonitor(clock, u, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	snap := m.Scrape(ctx)

	assert.NoError(t, u.ctxErr)
	assert.True(t, snap.Success)
}

func TestMonitor_ConcurrentScrapes(t *testing.T) {
	clock := newFakeClock()
	u := &countingUpdater{delay: 50 * time.Millisecond}
	u.result.Store(true)
	m := newTestMonitor(clock, u, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap := m.Scrape(context.Background())
			assert.Len(t, snap.Entries, 2)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), u.runs.Load())
}

func TestMonitor_Start(t *testing.T) {
	clock := newFakeClock()
	u := &countingUpdater{}
	u.result.Store(true)
	m := newTestMonitor(clock, u, time.Second)

	m.Start(context.Background())
	assert.Equal(t, int32(1), u.runs.Load())

	// The warm-up counts as the interval's round.
	m.Scrape(context.Background())
	assert.Equal(t, int32(1), u.runs.Load())
	assert.True(t, m.Entries()[0].HasData())
}
