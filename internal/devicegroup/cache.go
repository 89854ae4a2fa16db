// Package devicegroup holds the device-group collection: a stale-while-revalidate
// cache over the persisted allData blob, refreshed from the data endpoint.
package devicegroup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"github.com/equiptrack/maintsync/internal/api"
	"github.com/equiptrack/maintsync/internal/auth"
	"github.com/equiptrack/maintsync/internal/kvstore"
	"github.com/equiptrack/maintsync/internal/model"
)

var (
	// ErrSyncInProgress is returned when a refresh of the same kind is already
	// running.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrInvalidEntry wraps local validation failures of a history entry.
	ErrInvalidEntry = errors.New("invalid history entry")
)

const (
	defaultHistoryMemoSize = 128
	defaultHistoryMemoTTL  = 2 * time.Minute
)

// Fetcher performs GET requests against the data endpoint.
type Fetcher interface {
	GetAction(ctx context.Context, action string, params url.Values, out any) error
}

// AuthedCaller performs authenticated POST requests.
type AuthedCaller interface {
	AuthedFetchJSON(ctx context.Context, action string, payload map[string]any, mode auth.ExpiredMode, out any) error
}

// Cache owns the process-wide device-group collection.
type Cache struct {
	fetcher Fetcher
	authed  AuthedCaller
	store   kvstore.Store
	sheetID string
	logger  zerolog.Logger
	now     func() time.Time
	history *expirable.LRU[string, []model.HistoryRow]

	memoSize int
	memoTTL  time.Duration

	mu        sync.RWMutex
	groups    []model.DeviceGroup
	status    Status
	freshness Freshness
	lastErr   error
	syncedAt  time.Time
	committed uint64
	// dirty is set while the in-memory groups are newer than the blob.
	dirty bool

	gen      atomic.Uint64
	syncing  atomic.Bool
	fetching atomic.Bool

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Snapshot)
}

// Option configures a Cache.
type Option func(*Cache)

// WithSheetID sends sheetId with every data request.
func WithSheetID(id string) Option {
	return func(c *Cache) { c.sheetID = strings.TrimSpace(id) }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Cache) { c.logger = l.With().Str("component", "devicegroup").Logger() }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithHistoryMemo sizes the per-device history memo. A ttl of zero disables
// expiry.
func WithHistoryMemo(size int, ttl time.Duration) Option {
	return func(c *Cache) {
		c.memoSize = size
		c.memoTTL = ttl
	}
}

// New creates a cache. fetcher serves the read actions, authed serves
// appendHistory, store holds the allData blob.
func New(fetcher Fetcher, authed AuthedCaller, store kvstore.Store, opts ...Option) *Cache {
	c := &Cache{
		fetcher:  fetcher,
		authed:   authed,
		store:    store,
		logger:   zerolog.Nop(),
		now:      time.Now,
		memoSize: defaultHistoryMemoSize,
		memoTTL:  defaultHistoryMemoTTL,
		subs:     make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.history = expirable.NewLRU[string, []model.HistoryRow](c.memoSize, nil, c.memoTTL)
	return c
}

// Boot adopts the persisted blob when it holds at least one group, without
// touching the network. Otherwise it fetches from the network and reports the
// failure, if any.
func (c *Cache) Boot(ctx context.Context) error {
	c.setStatus(StatusChecking)

	groups, err := c.loadPersisted()
	if err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		c.logger.Warn().Err(err).Msg("ignoring unreadable cached data")
	}
	if len(groups) > 0 {
		c.mu.Lock()
		c.groups = groups
		c.status = StatusReady
		c.freshness = FreshnessStale
		c.mu.Unlock()
		c.broadcast()
		c.logger.Debug().Int("groups", len(groups)).Msg("booted from cache")
		return nil
	}

	return c.RefreshAllData(ctx)
}

// RefreshAllData fetches the whole collection and replaces both the in-memory
// groups and the persisted blob. A failure leaves the current groups in place.
func (c *Cache) RefreshAllData(ctx context.Context) error {
	if !c.syncing.CompareAndSwap(false, true) {
		return ErrSyncInProgress
	}
	defer c.syncing.Store(false)

	gen := c.gen.Add(1)
	c.mu.Lock()
	if len(c.groups) == 0 {
		c.status = StatusLoadingNew
	}
	c.mu.Unlock()
	c.broadcast()

	groups, err := c.fetchAll(ctx)
	if err != nil {
		c.fail(err)
		return fmt.Errorf("failed to refresh device groups: %w", err)
	}

	c.commit(gen, groups, true)
	return nil
}

// FetchDeviceGroups fetches the collection into memory only. It has its own
// in-flight guard, independent of RefreshAllData.
func (c *Cache) FetchDeviceGroups(ctx context.Context) ([]model.DeviceGroup, error) {
	if !c.fetching.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer c.fetching.Store(false)

	gen := c.gen.Add(1)
	groups, err := c.fetchAll(ctx)
	if err != nil {
		c.fail(err)
		return nil, fmt.Errorf("failed to fetch device groups: %w", err)
	}

	c.commit(gen, groups, false)
	return c.Groups(), nil
}

// ListTables returns the group names known to the backend.
func (c *Cache) ListTables(ctx context.Context) ([]string, error) {
	var raw json.RawMessage
	if err := c.fetcher.GetAction(ctx, api.ActionGetAllTables, c.params(nil), &raw); err != nil {
		return nil, err
	}
	var tables []string
	if err := decodeList(raw, &tables, "tables", "data"); err != nil {
		return nil, &api.Error{Kind: api.KindInvalidJSON, Action: api.ActionGetAllTables, Code: api.CodeInvalidJSONResponse, Err: err}
	}
	return tables, nil
}

// Groups returns a copy of the in-memory groups.
func (c *Cache) Groups() []model.DeviceGroup {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyGroups(c.groups)
}

// Snapshot returns the current state.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Cache) snapshotLocked() Snapshot {
	return Snapshot{
		Status:    c.status,
		Freshness: c.freshness,
		Groups:    copyGroups(c.groups),
		Err:       c.lastErr,
		SyncedAt:  c.syncedAt,
	}
}

// Subscribe registers fn for every state change.
func (c *Cache) Subscribe(fn func(Snapshot)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Cache) broadcast() {
	snap := c.Snapshot()

	c.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (c *Cache) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
	c.broadcast()
}

// commit installs groups fetched under gen unless a newer fetch already
// committed. A persisting commit that loses to a newer memory-only one still
// writes the newer groups to the blob.
func (c *Cache) commit(gen uint64, groups []model.DeviceGroup, persist bool) {
	c.mu.Lock()
	if gen < c.committed {
		c.logger.Debug().Uint64("generation", gen).Uint64("committed", c.committed).Msg("discarding out-of-date response")
		if persist && c.dirty {
			if err := c.persistLocked(); err != nil {
				c.logger.Warn().Err(err).Msg("failed to persist device groups")
			}
		}
		c.mu.Unlock()
		return
	}
	c.committed = gen
	c.groups = groups
	c.status = StatusReady
	c.freshness = FreshnessFresh
	c.lastErr = nil
	c.syncedAt = c.now()
	c.dirty = true

	if persist {
		if err := c.persistLocked(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to persist device groups")
		}
	}
	c.mu.Unlock()

	c.history.Purge()
	c.broadcast()
	c.logger.Info().Int("groups", len(groups)).Bool("persisted", persist).Msg("device groups updated")
}

func (c *Cache) fail(err error) {
	c.mu.Lock()
	c.lastErr = err
	if len(c.groups) == 0 {
		c.status = StatusError
	}
	c.mu.Unlock()
	c.broadcast()
	c.logger.Warn().Err(err).Msg("device group refresh failed")
}

func (c *Cache) fetchAll(ctx context.Context) ([]model.DeviceGroup, error) {
	var raw json.RawMessage
	if err := c.fetcher.GetAction(ctx, api.ActionGetAllData, c.params(nil), &raw); err != nil {
		return nil, err
	}
	groups, err := decodeGroups(raw)
	if err != nil {
		return nil, &api.Error{Kind: api.KindInvalidJSON, Action: api.ActionGetAllData, Code: api.CodeInvalidJSONResponse, Err: err}
	}
	return groups, nil
}

func (c *Cache) params(extra url.Values) url.Values {
	v := url.Values{}
	if c.sheetID != "" {
		v.Set("sheetId", c.sheetID)
	}
	for k, vs := range extra {
		v[k] = vs
	}
	return v
}

func (c *Cache) persistLocked() error {
	data, err := json.Marshal(c.groups)
	if err != nil {
		return fmt.Errorf("failed to marshal device groups: %w", err)
	}
	if err := c.store.Set(kvstore.KeyAllData, string(data)); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

func (c *Cache) loadPersisted() ([]model.DeviceGroup, error) {
	raw, err := c.store.GetString(kvstore.KeyAllData)
	if err != nil {
		return nil, err
	}
	var groups []model.DeviceGroup
	if err := json.Unmarshal([]byte(raw), &groups); err != nil {
		return nil, fmt.Errorf("failed to parse cached device groups: %w", err)
	}
	return groups, nil
}

// decodeGroups accepts a bare array or an object carrying it under data.
func decodeGroups(raw json.RawMessage) ([]model.DeviceGroup, error) {
	var groups []model.DeviceGroup
	if err := decodeList(raw, &groups, "data", "groups"); err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []model.DeviceGroup{}
	}
	return groups, nil
}

// decodeList unmarshals raw into out when it is an array, otherwise from the
// first of keys present in the object.
func decodeList(raw json.RawMessage, out any, keys ...string) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return json.Unmarshal(trimmed, out)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return err
	}
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			return json.Unmarshal(v, out)
		}
	}
	return fmt.Errorf("response has none of %s", strings.Join(keys, ", "))
}

func copyGroups(in []model.DeviceGroup) []model.DeviceGroup {
	if in == nil {
		return nil
	}
	out := make([]model.DeviceGroup, len(in))
	for i, g := range in {
		g.Devices.Rows = append([]model.DeviceRow(nil), g.Devices.Rows...)
		g.History.Rows = append([]model.HistoryRow(nil), g.History.Rows...)
		out[i] = g
	}
	return out
}
