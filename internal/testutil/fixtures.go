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

package testutil

import (
	"fmt"
	"net/http"
)

// Validator identities used across tests
const (
	ValidatorA = "penumbravalid1aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	ValidatorB = "penumbravalid1bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

// Stake API response fixtures
var (
	HealthResponse = `{"status": "ok"}`

	ActiveStatusResponse = `{
		"status": {
			"state": "VALIDATOR_STATE_ENUM_ACTIVE",
			"bonding_state": {
				"state": "BONDING_STATE_ENUM_BONDED"
			},
			"voting_power": "1200000"
		}
	}`

	UnbondingStatusResponse = `{
		"status": {
			"state": "JAILED",
			"bonding_state": {
				"state": "UNBONDING",
				"unbonds_at_height": "5000"
			},
			"voting_power": 0
		}
	}`

	EmptyStatusResponse = `{}`

	UptimeResponse = `{
		"uptime": {
			"as_of_block_height": "100",
			"window_len": 8640,
			"missed_blocks": ["100", "99", "97"]
		}
	}`

	EmptyUptimeResponse = `{"uptime": null}`

	InvalidUptimeResponse = `{
		"uptime": {
			"as_of_block_height": "100",
			"window_len": 0,
			"missed_blocks": []
		}
	}`
)

// Endpoint is a canned response for MockHTTPEndpoints
type Endpoint struct {
	Status int
	Body   string
}

// StakeEndpoints returns a full set of healthy stake API endpoints for one validator
func StakeEndpoints(validator string) map[string]Endpoint {
	return map[string]Endpoint{
		"/health": {Status: http.StatusOK, Body: HealthResponse},
		StatusPath(validator): {Status: http.StatusOK, Body: ActiveStatusResponse},
		UptimePath(validator): {Status: http.StatusOK, Body: UptimeResponse},
	}
}

// StatusPath is the status endpoint for a validator
func StatusPath(validator string) string {
	return fmt.Sprintf("/stake/v1/validators/%s/status", validator)
}

// UptimePath is the uptime endpoint for a validator
func UptimePath(validator string) string {
	return fmt.Sprintf("/stake/v1/validators/%s/uptime", validator)
}

// UptimeAt renders an uptime response at the given height
func UptimeAt(height uint64, window uint64, missed ...uint64) string {
	blocks := ""
	for i, h := range missed {
		if i > 0 {
			blocks += ", "
		}
		blocks += fmt.Sprintf(`"%d"`, h)
	}
	return fmt.Sprintf(`{"uptime": {"as_of_block_height": "%d", "window_len": %d, "missed_blocks": [%s]}}`, height, window, blocks)
}
