package repo

import (
	"context"
	"sync"
)

// FavoritesRepo maps an identity scope to its set of favourite item ids
type FavoritesRepo interface {
	List(ctx context.Context, scope string) ([]string, error)
	Add(ctx context.Context, scope, itemID string) error
	Remove(ctx context.Context, scope, itemID string) error
	Contains(ctx context.Context, scope, itemID string) (bool, error)
	// Toggle removes itemID if present and adds it otherwise, reporting
	// whether it was added.
	Toggle(ctx context.Context, scope, itemID string) (added bool, err error)
}

type favoriteSet struct {
	ids   []string
	index map[string]struct{}
}

type memoryFavoritesRepo struct {
	mu     sync.RWMutex
	scopes map[string]*favoriteSet
}

// NewMemoryFavoritesRepo creates a non-persistent FavoritesRepo. List keeps
// insertion order; a scope is dropped once its set is empty.
func NewMemoryFavoritesRepo() FavoritesRepo {
	return &memoryFavoritesRepo{scopes: make(map[string]*favoriteSet)}
}

func (r *memoryFavoritesRepo) List(_ context.Context, scope string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.scopes[scope]
	if !ok {
		return []string{}, nil
	}
	out := make([]string, len(set.ids))
	copy(out, set.ids)
	return out, nil
}

func (r *memoryFavoritesRepo) Add(_ context.Context, scope, itemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.addLocked(scope, itemID)
	return nil
}

func (r *memoryFavoritesRepo) Remove(_ context.Context, scope, itemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(scope, itemID)
	return nil
}

func (r *memoryFavoritesRepo) Contains(_ context.Context, scope, itemID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.containsLocked(scope, itemID), nil
}

func (r *memoryFavoritesRepo) Toggle(_ context.Context, scope, itemID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.containsLocked(scope, itemID) {
		r.removeLocked(scope, itemID)
		return false, nil
	}
	r.addLocked(scope, itemID)
	return true, nil
}

func (r *memoryFavoritesRepo) containsLocked(scope, itemID string) bool {
	set, ok := r.scopes[scope]
	if !ok {
		return false
	}
	_, ok = set.index[itemID]
	return ok
}

func (r *memoryFavoritesRepo) addLocked(scope, itemID string) {
	set, ok := r.scopes[scope]
	if !ok {
		set = &favoriteSet{index: make(map[string]struct{})}
		r.scopes[scope] = set
	}
	if _, ok := set.index[itemID]; ok {
		return
	}
	set.index[itemID] = struct{}{}
	set.ids = append(set.ids, itemID)
}

func (r *memoryFavoritesRepo) removeLocked(scope, itemID string) {
	set, ok := r.scopes[scope]
	if !ok {
		return
	}
	if _, ok := set.index[itemID]; !ok {
		return
	}
	delete(set.index, itemID)
	for i, id := range set.ids {
		if id == itemID {
			set.ids = append(set.ids[:i], set.ids[i+1:]...)
			break
		}
	}
	if len(set.ids) == 0 {
		delete(r.scopes, scope)
	}
}
