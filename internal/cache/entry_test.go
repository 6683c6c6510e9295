package cache

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watcheth/stakewatch/internal/stake"
)

const validator = stake.IdentityKey("penumbravalid1test")

func uptimeAt(height uint64) stake.Uptime {
	return stake.Uptime{AsOfHeight: height, WindowLen: 100}
}

func activeStatus(power uint64) stake.Status {
	return stake.Status{
		State:        stake.StateActive,
		BondingState: stake.BondingState{Kind: stake.Bonded},
		VotingPower:  power,
	}
}

func TestEntry_Bootstrap(t *testing.T) {
	e := New(validator)

	assert.Equal(t, validator, e.Identity())
	assert.True(t, e.IsFresh())
	assert.False(t, e.IsStale())
	assert.False(t, e.HasData())

	// Reset leaves an empty entry empty, and therefore fresh.
	e.Reset()
	assert.True(t, e.IsFresh())

	_, ok := e.State()
	assert.False(t, ok)
	_, ok = e.BondingState()
	assert.False(t, ok)
	_, ok = e.VotingPower()
	assert.False(t, ok)
	_, ok = e.Uptime()
	assert.False(t, ok)
	_, ok = e.Height()
	assert.False(t, ok)

	snap := e.Snapshot()
	assert.True(t, snap.Fresh)
	assert.False(t, snap.HasData)
}

func TestEntry_UpdateAndReset(t *testing.T) {
	e := New(validator)

	assert.True(t, e.Update(activeStatus(10), uptimeAt(100)))
	assert.True(t, e.IsFresh())
	assert.True(t, e.HasData())

	state, ok := e.State()
	require.True(t, ok)
	assert.Equal(t, stake.StateActive, state)
	power, ok := e.VotingPower()
	require.True(t, ok)
	assert.Equal(t, uint64(10), power)
	bonding, ok := e.BondingState()
	require.True(t, ok)
	assert.Equal(t, stake.Bonded, bonding.Kind)

	e.Reset()
	assert.False(t, e.IsFresh())
	assert.True(t, e.IsStale())
	// Data survives a reset.
	height, ok := e.Height()
	require.True(t, ok)
	assert.Equal(t, uint64(100), height)

	// Same height is accepted and refreshes the entry.
	assert.True(t, e.Update(activeStatus(11), uptimeAt(100)))
	assert.True(t, e.IsFresh())
	power, _ = e.VotingPower()
	assert.Equal(t, uint64(11), power)
}

func TestEntry_RejectsOlderHeight(t *testing.T) {
	e := New(validator)

	require.True(t, e.Update(activeStatus(1), uptimeAt(100)))
	e.Reset()

	// A late answer from a lagging node does not regress the state.
	assert.False(t, e.Update(activeStatus(2), uptimeAt(90)))

	height, _ := e.Height()
	assert.Equal(t, uint64(100), height)
	power, _ := e.VotingPower()
	assert.Equal(t, uint64(1), power)
	assert.True(t, e.IsStale(), "a rejected update must not mark the entry fresh")
}

func TestEntry_MonotonicUnderAnyOrder(t *testing.T) {
	heights := []uint64{5, 17, 3, 42, 42, 8, 30, 1}
	rng := rand.New(rand.NewSource(1))

	for round := 0; round < 20; round++ {
		shuffled := append([]uint64(nil), heights...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		e := New(validator)
		for _, h := range shuffled {
			e.Update(activeStatus(h), uptimeAt(h))
		}

		height, ok := e.Height()
		require.True(t, ok)
		assert.Equal(t, uint64(42), height, "order %v", shuffled)
	}
}

func TestEntry_ConcurrentUpdates(t *testing.T) {
	e := New(validator)

	var wg sync.WaitGroup
	for h := uint64(1); h <= 200; h++ {
		wg.Add(2)
		go func(h uint64) {
			defer wg.Done()
			e.Update(activeStatus(h), uptimeAt(h))
		}(h)
		go func() {
			defer wg.Done()
			snap := e.Snapshot()
			if snap.HasData {
				// Status and uptime are always written together.
				assert.Equal(t, snap.Uptime.AsOfHeight, snap.Status.VotingPower)
			}
		}()
	}
	wg.Wait()

	height, _ := e.Height()
	assert.Equal(t, uint64(200), height)
	power, _ := e.VotingPower()
	assert.Equal(t, uint64(200), power)
}

func TestEntry_UptimeIsCopied(t *testing.T) {
	e := New(validator)
	uptime := stake.Uptime{AsOfHeight: 10, WindowLen: 10, MissedBlocks: []uint64{9}}
	e.Update(activeStatus(1), uptime)

	uptime.MissedBlocks[0] = 1
	stored, _ := e.Uptime()
	assert.Equal(t, []uint64{9}, stored.MissedBlocks)

	stored.MissedBlocks[0] = 2
	again, _ := e.Uptime()
	assert.Equal(t, []uint64{9}, again.MissedBlocks)
}

func TestStale(t *testing.T) {
	entries := NewSet([]stake.IdentityKey{"a", "b", "c"})
	for _, e := range entries {
		e.Update(activeStatus(1), uptimeAt(1))
		e.Reset()
	}
	entries[1].Update(activeStatus(1), uptimeAt(2))

	stale := Stale(entries)
	assert.Equal(t, []stake.IdentityKey{"a", "c"}, Identities(stale))
	assert.Empty(t, Stale(entries[1:2]))
}
