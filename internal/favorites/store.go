// internal/favorites/store.go
// Starred counterparts are owned by this device only; the backend never
// sees them.

package favorites

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/imadgeboyega/kiekky-client/internal/api"
	"github.com/imadgeboyega/kiekky-client/internal/metrics"
	"github.com/imadgeboyega/kiekky-client/internal/storage"
)

// DefaultKey is where the set is persisted as a JSON array of ids
const DefaultKey = "favorites"

var ErrInvalidUserID = api.Validation("A valid user is required")

type Store struct {
	kv  storage.Store
	key string

	mu  sync.RWMutex
	ids map[int64]struct{}
}

func NewStore(kv storage.Store, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{kv: kv, key: key, ids: make(map[int64]struct{})}
}

// Load replaces the in-memory set with the persisted one. A missing or
// unreadable value yields an empty set.
func (s *Store) Load(ctx context.Context) error {
	raw, err := s.kv.Get(ctx, s.key)
	if err != nil && !errors.Is(err, storage.ErrKeyNotFound) {
		return fmt.Errorf("failed to load favorites: %w", err)
	}

	ids := make(map[int64]struct{})
	if raw != "" {
		var list []int64
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			log.Printf("Ignoring corrupt favorites value: %v", err)
		} else {
			for _, id := range list {
				ids[id] = struct{}{}
			}
		}
	}

	s.mu.Lock()
	s.ids = ids
	s.mu.Unlock()
	return nil
}

// Toggle flips userID and returns whether it is now a favorite. The new
// set is written before memory changes, so a failed write changes nothing.
func (s *Store) Toggle(ctx context.Context, userID int64) (bool, error) {
	if userID <= 0 {
		return false, ErrInvalidUserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[int64]struct{}, len(s.ids)+1)
	for id := range s.ids {
		next[id] = struct{}{}
	}
	_, favorite := next[userID]
	if favorite {
		delete(next, userID)
	} else {
		next[userID] = struct{}{}
	}

	payload, err := json.Marshal(sortedIDs(next))
	if err != nil {
		return favorite, err
	}
	if err := s.kv.Set(ctx, s.key, string(payload)); err != nil {
		return favorite, fmt.Errorf("failed to save favorites: %w", err)
	}

	s.ids = next
	metrics.RecordFavoriteToggle(!favorite)
	return !favorite, nil
}

func (s *Store) IsFavorite(userID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[userID]
	return ok
}

// IDs returns the set in ascending order
func (s *Store) IDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedIDs(s.ids)
}

func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
