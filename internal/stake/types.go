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

// Package stake holds the validator status and uptime types reported by a node's
// stake query service.
package stake

import (
	"fmt"
	"sort"
	"strings"
)

// IdentityKey identifies a validator. It is treated as opaque.
type IdentityKey string

// ParseIdentityKey trims the key and rejects empty input.
func ParseIdentityKey(s string) (IdentityKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty validator identity key")
	}
	return IdentityKey(s), nil
}

func (k IdentityKey) String() string {
	return string(k)
}

// State is the validator state as reported by the chain.
type State int

const (
	StateDefined State = iota
	StateDisabled
	StateInactive
	StateActive
	StateJailed
	StateTombstoned
)

var stateNames = map[State]string{
	StateDefined:    "Defined",
	StateDisabled:   "Disabled",
	StateInactive:   "Inactive",
	StateActive:     "Active",
	StateJailed:     "Jailed",
	StateTombstoned: "Tombstoned",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ParseState accepts the node's enum spelling ("ACTIVE", "VALIDATOR_STATE_ENUM_ACTIVE")
// as well as the plain name in any case.
func ParseState(s string) (State, error) {
	name := strings.TrimPrefix(strings.ToUpper(s), "VALIDATOR_STATE_ENUM_")
	for state, n := range stateNames {
		if strings.ToUpper(n) == name {
			return state, nil
		}
	}
	return 0, fmt.Errorf("unknown validator state %q", s)
}

// BondingKind is the bonding state of a validator's delegation pool.
type BondingKind int

const (
	Bonded BondingKind = iota
	Unbonding
	Unbonded
)

func (k BondingKind) String() string {
	switch k {
	case Bonded:
		return "Bonded"
	case Unbonding:
		return "Unbonding"
	case Unbonded:
		return "Unbonded"
	default:
		return fmt.Sprintf("BondingKind(%d)", int(k))
	}
}

// ParseBondingKind accepts "BONDED", "BONDING_STATE_ENUM_BONDED" and friends.
func ParseBondingKind(s string) (BondingKind, error) {
	switch strings.TrimPrefix(strings.ToUpper(s), "BONDING_STATE_ENUM_") {
	case "BONDED":
		return Bonded, nil
	case "UNBONDING":
		return Unbonding, nil
	case "UNBONDED":
		return Unbonded, nil
	default:
		return 0, fmt.Errorf("unknown bonding state %q", s)
	}
}

type BondingState struct {
	Kind BondingKind
	// UnbondsAtHeight is only set when Kind is Unbonding.
	UnbondsAtHeight uint64
}

func (b BondingState) String() string {
	if b.Kind == Unbonding {
		return fmt.Sprintf("Unbonding(%d)", b.UnbondsAtHeight)
	}
	return b.Kind.String()
}

type Status struct {
	State        State
	BondingState BondingState
	VotingPower  uint64
}

// Uptime describes which blocks a validator missed in the trailing signing window.
type Uptime struct {
	AsOfHeight   uint64
	WindowLen    uint64
	MissedBlocks []uint64
}

// NumMissedBlocks returns the number of blocks missed within the window.
func (u Uptime) NumMissedBlocks() int {
	return len(u.MissedBlocks)
}

// MissedDescending returns a copy of the missed heights, most recent first.
func (u Uptime) MissedDescending() []uint64 {
	out := make([]uint64, len(u.MissedBlocks))
	copy(out, u.MissedBlocks)
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	return out
}

// Validate checks the invariants a node must uphold for the uptime to be usable.
func (u Uptime) Validate() error {
	if u.WindowLen == 0 {
		return fmt.Errorf("missed blocks window is zero")
	}
	if uint64(len(u.MissedBlocks)) > u.WindowLen {
		return fmt.Errorf("%d missed blocks exceed window of %d", len(u.MissedBlocks), u.WindowLen)
	}
	seen := make(map[uint64]struct{}, len(u.MissedBlocks))
	for _, h := range u.MissedBlocks {
		if h > u.AsOfHeight {
			return fmt.Errorf("missed block %d is after height %d", h, u.AsOfHeight)
		}
		if _, ok := seen[h]; ok {
			return fmt.Errorf("missed block %d is listed more than once", h)
		}
		seen[h] = struct{}{}
	}
	return nil
}

// Clone returns a deep copy so callers cannot alias cached slices.
func (u Uptime) Clone() Uptime {
	c := u
	c.MissedBlocks = append([]uint64(nil), u.MissedBlocks...)
	return c
}
