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

// Package report turns cache snapshots into validator metrics.
package report

import (
	"time"

	"github.com/watcheth/stakewatch/internal/cache"
	"github.com/watcheth/stakewatch/internal/logger"
	"github.com/watcheth/stakewatch/internal/monitor"
	"github.com/watcheth/stakewatch/internal/stake"
)

// ValidatorMetrics are the values reported for one validator.
type ValidatorMetrics struct {
	Identity          stake.IdentityKey
	State             stake.State
	UptimePercent     float64
	ConsecutiveMissed int
	VotingPower       uint64
	BondingState      stake.BondingKind
}

type Report struct {
	Success   bool
	Staleness time.Duration
	// Validators holds one element per validator with data, in configured order.
	Validators []ValidatorMetrics
}

// Project computes the report for a snapshot. Validators without data are
// left out rather than reported as zero.
func Project(snap monitor.Snapshot) Report {
	log := logger.WithComponent("report")

	r := Report{
		Success:    snap.Success,
		Staleness:  snap.Staleness,
		Validators: make([]ValidatorMetrics, 0, len(snap.Entries)),
	}
	for _, entry := range snap.Entries {
		if !entry.HasData {
			log.Warn().Str("validator", entry.Identity.String()).Msg("missing information")
			continue
		}
		r.Validators = append(r.Validators, project(entry))
	}
	return r
}

func project(entry cache.Snapshot) ValidatorMetrics {
	return ValidatorMetrics{
		Identity:          entry.Identity,
		State:             entry.Status.State,
		UptimePercent:     UptimePercent(entry.Uptime),
		ConsecutiveMissed: ConsecutiveMissed(entry.Uptime),
		VotingPower:       entry.Status.VotingPower,
		BondingState:      entry.Status.BondingState.Kind,
	}
}

// UptimePercent is the share of signed blocks in the uptime window.
func UptimePercent(u stake.Uptime) float64 {
	if u.WindowLen == 0 {
		return 0
	}
	downtime := float64(u.NumMissedBlocks()) / float64(u.WindowLen)
	return (1 - downtime) * 100
}

// ConsecutiveMissed counts the blocks missed in a row up to and including the
// uptime's height. A signed block at the tip gives zero.
func ConsecutiveMissed(u stake.Uptime) int {
	next := u.AsOfHeight + 1
	count := 0
	for _, height := range u.MissedDescending() {
		if height+1 != next {
			break
		}
		count++
		next = height
	}
	return count
}
