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
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/watcheth/stakewatch/internal/stake"
)

// Session is an open connection to a node's stake query service.
type Session interface {
	ValidatorStatus(ctx context.Context, id stake.IdentityKey) (*stake.Status, error)
	ValidatorUptime(ctx context.Context, id stake.IdentityKey) (*stake.Uptime, error)
}

// Dialer opens sessions against a node URI.
type Dialer interface {
	Dial(ctx context.Context, uri string) (Session, error)
}

// Client is a connection to one node which can be dropped and re-established
// after failures. It starts disconnected.
type Client struct {
	uri    string
	dialer Dialer

	mu      sync.RWMutex
	session Session
}

func NewClient(uri string, dialer Dialer) *Client {
	return &Client{
		uri:    uri,
		dialer: dialer,
	}
}

func (c *Client) URI() string {
	return c.uri
}

// Connect dials the node unless a session is already open. Concurrent callers
// may each dial; the last successful one wins.
func (c *Client) Connect(ctx context.Context, timeout time.Duration) error {
	if c.IsConnected() {
		return nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	session, err := c.dialer.Dial(dialCtx, c.uri)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", c.uri, err)
	}

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
	return nil
}

// Session returns the open session, if any. It never dials.
func (c *Client) Session() (Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session, c.session != nil
}

// Disconnect drops the session so the next round dials again.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session != nil
}

// NewTiers builds one Client per URI, preserving the tier layout.
func NewTiers(uris [][]string, dialer Dialer) [][]*Client {
	tiers := make([][]*Client, 0, len(uris))
	for _, tier := range uris {
		clients := make([]*Client, 0, len(tier))
		for _, uri := range tier {
			clients = append(clients, NewClient(uri, dialer))
		}
		tiers = append(tiers, clients)
	}
	return tiers
}

// URIs returns the URIs of the given clients.
func URIs(clients []*Client) []string {
	uris := make([]string, len(clients))
	for i, c := range clients {
		uris[i] = c.uri
	}
	return uris
}
