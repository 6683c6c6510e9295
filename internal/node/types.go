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

package node

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/watcheth/stakewatch/internal/stake"
)

// Uint is a uint64 that nodes may encode either as a JSON number or as a
// decimal string.
type Uint uint64

func (u *Uint) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*u = 0
		return nil
	}
	v, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid unsigned integer %q", data)
	}
	*u = Uint(v)
	return nil
}

type StatusResponse struct {
	Status *struct {
		State        string `json:"state"`
		BondingState *struct {
			State           string `json:"state"`
			UnbondsAtHeight Uint   `json:"unbonds_at_height"`
		} `json:"bonding_state"`
		VotingPower Uint `json:"voting_power"`
	} `json:"status"`
}

type UptimeResponse struct {
	Uptime *struct {
		AsOfBlockHeight Uint   `json:"as_of_block_height"`
		WindowLen       Uint   `json:"window_len"`
		MissedBlocks    []Uint `json:"missed_blocks"`
	} `json:"uptime"`
}

func (r *StatusResponse) toStatus() (*stake.Status, error) {
	if r.Status == nil {
		return nil, fmt.Errorf("%w: no status data", ErrNoData)
	}
	if r.Status.BondingState == nil {
		return nil, fmt.Errorf("%w: status has no bonding state", ErrInvalidData)
	}

	state, err := stake.ParseState(r.Status.State)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	kind, err := stake.ParseBondingKind(r.Status.BondingState.State)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}

	bonding := stake.BondingState{Kind: kind}
	if kind == stake.Unbonding {
		bonding.UnbondsAtHeight = uint64(r.Status.BondingState.UnbondsAtHeight)
	}

	return &stake.Status{
		State:        state,
		BondingState: bonding,
		VotingPower:  uint64(r.Status.VotingPower),
	}, nil
}

func (r *UptimeResponse) toUptime() (*stake.Uptime, error) {
	if r.Uptime == nil {
		return nil, fmt.Errorf("%w: no uptime data", ErrNoData)
	}

	uptime := &stake.Uptime{
		AsOfHeight:   uint64(r.Uptime.AsOfBlockHeight),
		WindowLen:    uint64(r.Uptime.WindowLen),
		MissedBlocks: make([]uint64, len(r.Uptime.MissedBlocks)),
	}
	for i, h := range r.Uptime.MissedBlocks {
		uptime.MissedBlocks[i] = uint64(h)
	}

	if err := uptime.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	return uptime, nil
}
