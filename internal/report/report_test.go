package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watcheth/stakewatch/internal/cache"
	"github.com/watcheth/stakewatch/internal/monitor"
	"github.com/watcheth/stakewatch/internal/stake"
)

func TestUptimePercent(t *testing.T) {
	tests := []struct {
		name   string
		uptime stake.Uptime
		want   float64
	}{
		{
			name:   "no misses",
			uptime: stake.Uptime{AsOfHeight: 100, WindowLen: 100},
			want:   100,
		},
		{
			name:   "quarter missed",
			uptime: stake.Uptime{AsOfHeight: 100, WindowLen: 4, MissedBlocks: []uint64{100}},
			want:   75,
		},
		{
			name:   "all missed",
			uptime: stake.Uptime{AsOfHeight: 2, WindowLen: 2, MissedBlocks: []uint64{1, 2}},
			want:   0,
		},
		{
			name:   "zero window",
			uptime: stake.Uptime{AsOfHeight: 2},
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, UptimePercent(tt.uptime), 1e-9)
		})
	}
}

func TestConsecutiveMissed(t *testing.T) {
	tests := []struct {
		name   string
		height uint64
		missed []uint64
		want   int
	}{
		{
			name:   "none missed",
			height: 100,
			want:   0,
		},
		{
			name:   "tip signed",
			height: 100,
			missed: []uint64{99, 98},
			want:   0,
		},
		{
			name:   "streak at tip",
			height: 100,
			missed: []uint64{100, 99, 97},
			want:   2,
		},
		{
			name:   "unordered input",
			height: 100,
			missed: []uint64{97, 100, 98, 99},
			want:   4,
		},
		{
			name:   "single miss at tip",
			height: 10,
			missed: []uint64{10, 5},
			want:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := stake.Uptime{AsOfHeight: tt.height, WindowLen: 1000, MissedBlocks: tt.missed}
			assert.Equal(t, tt.want, ConsecutiveMissed(u))
		})
	}
}

func TestProject(t *testing.T) {
	withData := cache.New("penumbravalid1a")
	withData.Update(stake.Status{
		State:        stake.StateJailed,
		BondingState: stake.BondingState{Kind: stake.Unbonding, UnbondsAtHeight: 5000},
		VotingPower:  42,
	}, stake.Uptime{AsOfHeight: 100, WindowLen: 10, MissedBlocks: []uint64{100, 99}})
	empty := cache.New("penumbravalid1b")

	snap := monitor.Snapshot{
		Success:   false,
		Staleness: 3 * time.Second,
		Entries:   []cache.Snapshot{withData.Snapshot(), empty.Snapshot()},
	}

	r := Project(snap)

	assert.False(t, r.Success)
	assert.Equal(t, 3*time.Second, r.Staleness)
	require.Len(t, r.Validators, 1, "validators without data are skipped")

	v := r.Validators[0]
	assert.Equal(t, stake.IdentityKey("penumbravalid1a"), v.Identity)
	assert.Equal(t, stake.StateJailed, v.State)
	assert.InDelta(t, 80.0, v.UptimePercent, 1e-9)
	assert.Equal(t, 2, v.ConsecutiveMissed)
	assert.Equal(t, uint64(42), v.VotingPower)
	assert.Equal(t, stake.Unbonding, v.BondingState)
}

func TestProject_Empty(t *testing.T) {
	r := Project(monitor.Snapshot{Success: true})

	assert.True(t, r.Success)
	assert.Empty(t, r.Validators)
}
