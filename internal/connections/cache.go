// internal/connections/cache.go
// The three connection lists are fetched, cached and invalidated
// independently; readers always see one consistent set.

package connections

import (
	"context"
	"fmt"
	"sync"

	"github.com/imadgeboyega/kiekky-client/internal/api"
)

// ListKey names one of the cached lists
type ListKey string

const (
	KeySent     ListKey = "sent"
	KeyReceived ListKey = "received"
	KeyApproved ListKey = "approved"
)

// AllKeys lists every cache key in commit order
var AllKeys = []ListKey{KeySent, KeyReceived, KeyApproved}

// ListSource fetches the server-side connection lists
type ListSource interface {
	PendingSent(ctx context.Context) ([]api.ConnectionRequest, error)
	PendingReceived(ctx context.Context) ([]api.ConnectionRequest, error)
	Approved(ctx context.Context) ([]api.ConnectionRequest, error)
}

// Lists is one consistent view of the three lists
type Lists struct {
	Sent     []api.ConnectionRequest `json:"sent"`
	Received []api.ConnectionRequest `json:"received"`
	Approved []api.ConnectionRequest `json:"approved"`

	// version of the invalidation each list was fetched under
	sentVersion uint64
}

type entry struct {
	list  []api.ConnectionRequest
	stale bool
	// bumped by every Invalidate; a fetch only clears stale if it started at the current version
	version   uint64
	committed uint64
}

// ListCache holds the lists and refetches stale ones on read
type ListCache struct {
	source  ListSource
	mu      sync.Mutex
	entries map[ListKey]*entry
}

func NewListCache(source ListSource) *ListCache {
	entries := make(map[ListKey]*entry, len(AllKeys))
	for _, key := range AllKeys {
		entries[key] = &entry{stale: true}
	}
	return &ListCache{source: source, entries: entries}
}

// Invalidate marks keys stale; with no keys every list is marked
func (c *ListCache) Invalidate(keys ...ListKey) {
	if len(keys) == 0 {
		keys = AllKeys
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		if e, ok := c.entries[key]; ok {
			e.stale = true
			e.version++
		}
	}
}

// Version is the current invalidation version of key
func (c *ListCache) Version(key ListKey) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.version
	}
	return 0
}

// Stale reports whether key will be refetched on the next Snapshot
func (c *ListCache) Stale(key ListKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.stale
	}
	return false
}

// Snapshot refetches every stale list and commits them together. If any
// fetch fails nothing is committed and the error is returned.
func (c *ListCache) Snapshot(ctx context.Context) (Lists, error) {
	c.mu.Lock()
	pending := make(map[ListKey]uint64)
	for key, e := range c.entries {
		if e.stale {
			pending[key] = e.version
		}
	}
	c.mu.Unlock()

	fetched := make(map[ListKey][]api.ConnectionRequest, len(pending))
	for _, key := range AllKeys {
		if _, ok := pending[key]; !ok {
			continue
		}
		list, err := c.fetch(ctx, key)
		if err != nil {
			return Lists{}, fmt.Errorf("failed to load %s connections: %w", key, err)
		}
		fetched[key] = list
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, list := range fetched {
		e := c.entries[key]
		startedAt := pending[key]
		// An older fetch must not overwrite a newer commit
		if startedAt < e.committed {
			continue
		}
		e.list = list
		e.committed = startedAt
		if e.version == startedAt {
			e.stale = false
		}
	}

	return Lists{
		Sent:        clone(c.entries[KeySent].list),
		Received:    clone(c.entries[KeyReceived].list),
		Approved:    clone(c.entries[KeyApproved].list),
		sentVersion: c.entries[KeySent].committed,
	}, nil
}

func (c *ListCache) fetch(ctx context.Context, key ListKey) ([]api.ConnectionRequest, error) {
	switch key {
	case KeySent:
		return c.source.PendingSent(ctx)
	case KeyReceived:
		return c.source.PendingReceived(ctx)
	case KeyApproved:
		return c.source.Approved(ctx)
	default:
		return nil, fmt.Errorf("unknown connection list %q", key)
	}
}

func clone(list []api.ConnectionRequest) []api.ConnectionRequest {
	out := make([]api.ConnectionRequest, len(list))
	copy(out, list)
	return out
}
