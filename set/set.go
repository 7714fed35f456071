package set

import (
	"errors"
	"sort"
	"sync"
)

// Returned when an added key already exists in the set.
var ErrCollision = errors.New("key already exists")

// Returned when a requested item does not exist in the set.
var ErrMissing = errors.New("item does not exist")

// Returned when a nil item is added.
var ErrNil = errors.New("item value must not be nil")

type IterFunc func(key string, item Item) error

// Set is a collection of items keyed by their exact, case-sensitive key.
type Set struct {
	sync.RWMutex
	lookup map[string]Item
}

// New creates a new empty set.
func New() *Set {
	return &Set{
		lookup: map[string]Item{},
	}
}

// Clear removes all items and returns the number removed.
func (s *Set) Clear() int {
	s.Lock()
	n := len(s.lookup)
	s.lookup = map[string]Item{}
	s.Unlock()
	return n
}

// Len returns the size of the set right now.
func (s *Set) Len() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.lookup)
}

// In checks if an item exists in this set.
func (s *Set) In(key string) bool {
	s.RLock()
	_, ok := s.lookup[key]
	s.RUnlock()
	return ok
}

// Get returns an item with the given key.
func (s *Set) Get(key string) (Item, error) {
	s.RLock()
	item, ok := s.lookup[key]
	s.RUnlock()

	if !ok {
		return nil, ErrMissing
	}
	return item, nil
}

// AddNew adds item to this set if its key does not exist already.
func (s *Set) AddNew(item Item) error {
	if item.Value() == nil {
		return ErrNil
	}
	key := item.Key()

	s.Lock()
	defer s.Unlock()

	if _, found := s.lookup[key]; found {
		return ErrCollision
	}
	s.lookup[key] = item
	return nil
}

// Add to set, replacing if item already exists.
func (s *Set) Add(item Item) error {
	if item.Value() == nil {
		return ErrNil
	}

	s.Lock()
	s.lookup[item.Key()] = item
	s.Unlock()
	return nil
}

// Remove item from this set.
func (s *Set) Remove(key string) error {
	s.Lock()
	defer s.Unlock()

	if _, found := s.lookup[key]; !found {
		return ErrMissing
	}
	delete(s.lookup, key)
	return nil
}

// Each loops over every item while holding a read lock and applies fn to each
// element. Iteration stops at the first error, which is returned.
func (s *Set) Each(fn IterFunc) error {
	s.RLock()
	defer s.RUnlock()
	for key, item := range s.lookup {
		if err := fn(key, item); err != nil {
			return err
		}
	}
	return nil
}

// Keys returns every key in ascending order.
func (s *Set) Keys() []string {
	s.RLock()
	keys := make([]string, 0, len(s.lookup))
	for key := range s.lookup {
		keys = append(keys, key)
	}
	s.RUnlock()

	sort.Strings(keys)
	return keys
}
