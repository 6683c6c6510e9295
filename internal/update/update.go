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

// Package update runs refresh rounds over ordered tiers of nodes.
package update

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/watcheth/stakewatch/internal/cache"
	"github.com/watcheth/stakewatch/internal/logger"
	"github.com/watcheth/stakewatch/internal/node"
	"github.com/watcheth/stakewatch/internal/stake"
)

// ErrTimeout is returned when a node does not answer within the request timeout.
var ErrTimeout = errors.New("timed out waiting for node")

type Options struct {
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// Run refreshes every entry from the tiers of nodes in order. All nodes in a
// tier are queried concurrently; later tiers are only tried for the entries that
// are still stale. It returns true if every entry was updated.
func Run(ctx context.Context, tiers [][]*node.Client, entries []*cache.Entry, opts Options) bool {
	log := logger.WithComponent("update")

	stale := entries
	var failed []string

	for _, tier := range tiers {
		if len(stale) == 0 {
			break
		}

		fallback := node.URIs(tier)
		if failed != nil {
			log.Warn().
				Strs("failed", failed).
				Strs("fallback", fallback).
				Msg("error in previous connection attempt, trying fallback node(s)")
		}
		failed = fallback

		stale = runTier(ctx, tier, stale, opts)
	}

	if len(stale) > 0 {
		ids := cache.Identities(stale)
		validators := make([]string, len(ids))
		for i, id := range ids {
			validators[i] = id.String()
		}
		log.Error().Strs("validators", validators).Msg("failed to update from any data source")
	}

	return len(stale) == 0
}

// runTier queries every (node, entry) pair of the tier and returns the entries
// that are still stale afterwards.
func runTier(ctx context.Context, tier []*node.Client, entries []*cache.Entry, opts Options) []*cache.Entry {
	log := logger.WithComponent("update")

	for _, e := range entries {
		e.Reset()
	}

	for _, client := range tier {
		if err := client.Connect(ctx, opts.ConnectTimeout); err != nil {
			log.Warn().Str("node", client.URI()).Err(err).Msg("failed to connect")
		}
	}

	var wg sync.WaitGroup
	for _, client := range tier {
		for _, e := range entries {
			wg.Add(1)
			go func(client *node.Client, e *cache.Entry) {
				defer wg.Done()
				fetch(ctx, client, e, opts.RequestTimeout)
			}(client, e)
		}
	}
	wg.Wait()

	return cache.Stale(entries)
}

type result struct {
	status *stake.Status
	uptime *stake.Uptime
	err    error
}

// fetch updates one entry from one node. Any failure drops the node's session
// so that the next round dials it again.
func fetch(ctx context.Context, client *node.Client, e *cache.Entry, timeout time.Duration) {
	session, ok := client.Session()
	if !ok {
		return
	}

	validator := e.Identity()
	log := logger.WithComponent("update")

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		done <- query(reqCtx, session, validator)
	}()

	var res result
	select {
	case res = <-done:
	case <-reqCtx.Done():
		res.err = fmt.Errorf("%w after %s: %w", ErrTimeout, timeout, reqCtx.Err())
	}

	if res.err != nil {
		client.Disconnect()
		log.Warn().
			Str("node", client.URI()).
			Str("validator", validator.String()).
			Err(res.err).
			Msg("failed to update validator info")
		return
	}

	if e.Update(*res.status, *res.uptime) {
		log.Debug().
			Str("node", client.URI()).
			Str("validator", validator.String()).
			Uint64("height", res.uptime.AsOfHeight).
			Msg("updated validator info")
	} else {
		log.Debug().
			Str("node", client.URI()).
			Str("validator", validator.String()).
			Uint64("height", res.uptime.AsOfHeight).
			Msg("discarded older validator info")
	}
}

// query asks for status and uptime concurrently; both must succeed.
func query(ctx context.Context, session node.Session, validator stake.IdentityKey) result {
	var (
		wg        sync.WaitGroup
		status    *stake.Status
		uptime    *stake.Uptime
		statusErr error
		uptimeErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		status, statusErr = session.ValidatorStatus(ctx, validator)
		if statusErr == nil && status == nil {
			statusErr = fmt.Errorf("%w: no status data", node.ErrNoData)
		}
	}()
	go func() {
		defer wg.Done()
		uptime, uptimeErr = session.ValidatorUptime(ctx, validator)
		if uptimeErr == nil && uptime == nil {
			uptimeErr = fmt.Errorf("%w: no uptime data", node.ErrNoData)
		}
	}()
	wg.Wait()

	if err := errors.Join(uptimeErr, statusErr); err != nil {
		return result{err: err}
	}
	return result{status: status, uptime: uptime}
}
