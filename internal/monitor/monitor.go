package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/watcheth/stakewatch/internal/cache"
	"github.com/watcheth/stakewatch/internal/node"
	"github.com/watcheth/stakewatch/internal/update"
)

// Snapshot is the state reported to a scrape.
type Snapshot struct {
	// Success is the result of the last refresh round.
	Success bool
	// Staleness is the time since the last refresh attempt.
	Staleness time.Duration
	Entries   []cache.Snapshot
}

type Options struct {
	PollInterval   time.Duration
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// Updater runs one refresh round.
type Updater func(ctx context.Context, tiers [][]*node.Client, entries []*cache.Entry, opts update.Options) bool

type Option func(*Monitor)

// WithUpdater replaces the refresh round implementation.
func WithUpdater(u Updater) Option {
	return func(m *Monitor) { m.updater = u }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// Monitor refreshes the cache at most once per poll interval, however many
// scrapes arrive, and always reports the current cache.
type Monitor struct {
	tiers   [][]*node.Client
	entries []*cache.Entry
	opts    Options
	updater Updater
	now     func() time.Time

	mu          sync.Mutex
	lastUpdate  *time.Time
	lastSuccess atomic.Bool
}

func NewMonitor(tiers [][]*node.Client, entries []*cache.Entry, opts Options, options ...Option) *Monitor {
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = opts.ConnectTimeout
	}
	m := &Monitor{
		tiers:   tiers,
		entries: entries,
		opts:    opts,
		updater: update.Run,
		now:     time.Now,
	}
	m.lastSuccess.Store(true)
	for _, o := range options {
		o(m)
	}
	return m
}

// Start runs an initial refresh so the first scrape does not see an empty cache.
func (m *Monitor) Start(ctx context.Context) {
	m.Scrape(ctx)
}

// Scrape refreshes the cache if the poll interval has elapsed, then reports it.
// Concurrent callers inside one interval do not wait for the refresh.
func (m *Monitor) Scrape(ctx context.Context) Snapshot {
	if m.claimRefresh() {
		// The round outlives the request that triggered it.
		ok := m.updater(context.WithoutCancel(ctx), m.tiers, m.entries, update.Options{
			ConnectTimeout: m.opts.ConnectTimeout,
			RequestTimeout: m.opts.RequestTimeout,
		})
		m.lastSuccess.Store(ok)
	}
	return m.snapshot()
}

// claimRefresh atomically decides whether this caller runs the next round.
func (m *Monitor) claimRefresh() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.lastUpdate != nil && now.Sub(*m.lastUpdate) < m.opts.PollInterval {
		return false
	}
	m.lastUpdate = &now
	return true
}

func (m *Monitor) snapshot() Snapshot {
	m.mu.Lock()
	var staleness time.Duration
	if m.lastUpdate != nil {
		staleness = m.now().Sub(*m.lastUpdate)
	}
	m.mu.Unlock()

	entries := make([]cache.Snapshot, len(m.entries))
	for i, e := range m.entries {
		entries[i] = e.Snapshot()
	}

	return Snapshot{
		Success:   m.lastSuccess.Load(),
		Staleness: staleness,
		Entries:   entries,
	}
}

func (m *Monitor) GetPollInterval() time.Duration {
	return m.opts.PollInterval
}

// Entries returns the cache entries in configured order.
func (m *Monitor) Entries() []*cache.Entry {
	return m.entries
}
