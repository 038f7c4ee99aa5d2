package submap

import (
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/midgardmaps/midgard/voxel"
)

// Collection is the sole owner of a set of submaps. Submaps live in dense
// storage; a side table maps each live id to its storage position so lookup
// stays O(1) and removal keeps the storage gap-free.
type Collection[V voxel.Variant] struct {
	mutex     sync.RWMutex
	ids       SequentialIDGenerator
	submaps   []*Submap[V]
	idToIndex map[uint32]int
}

func NewCollection[V voxel.Variant]() *Collection[V] {
	return &Collection[V]{
		idToIndex: make(map[uint32]int),
	}
}

// CreateSubmap allocates a submap with a fresh id and takes ownership of it.
// The returned submap stays valid until it is removed from the collection.
func (c *Collection[V]) CreateSubmap(config Config) *Submap[V] {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	s := NewSubmap[V](c.ids.New(), config)
	c.idToIndex[s.ID] = len(c.submaps)
	c.submaps = append(c.submaps, s)

	instrumentIncreaseSubmapGauge()
	instrumentCountSubmap()
	return s
}

// AddSubmap adopts an externally constructed submap. Its id is reserved so
// later CreateSubmap calls cannot collide with it.
func (c *Collection[V]) AddSubmap(s *Submap[V]) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.ids.Reserve(s.ID)
	c.idToIndex[s.ID] = len(c.submaps)
	c.submaps = append(c.submaps, s)

	instrumentIncreaseSubmapGauge()
	instrumentCountSubmap()
}

// RemoveSubmap destroys the submap with the given id and reports whether it
// existed. Storage positions of the submaps behind it shift down by one to
// keep the storage dense, making removal O(n) in the number of live submaps.
func (c *Collection[V]) RemoveSubmap(id uint32) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	removed, ok := c.idToIndex[id]
	if !ok {
		return false
	}

	c.submaps = append(c.submaps[:removed], c.submaps[removed+1:]...)
	delete(c.idToIndex, id)
	for otherID, idx := range c.idToIndex {
		if idx > removed {
			c.idToIndex[otherID] = idx - 1
		}
	}

	instrumentDecreaseSubmapGauge()
	return true
}

func (c *Collection[V]) SubmapIDExists(id uint32) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	_, ok := c.idToIndex[id]
	return ok
}

// GetSubmap returns the submap with the given id.
func (c *Collection[V]) GetSubmap(id uint32) (*Submap[V], error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	idx, ok := c.idToIndex[id]
	if !ok {
		return nil, errors.New("submap not found").
			WithType(ErrTypeSubmapNotFound).
			WithTag("submap_id", id)
	}
	return c.submaps[idx], nil
}

func (c *Collection[V]) Count() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.submaps)
}

// Submaps returns the owned submaps in storage order.
func (c *Collection[V]) Submaps() []*Submap[V] {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	submaps := make([]*Submap[V], len(c.submaps))
	copy(submaps, c.submaps)
	return submaps
}

// Clear destroys all owned submaps and empties the index. The id sequence is
// not reset, so ids stay unique across a clear.
func (c *Collection[V]) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for range c.submaps {
		instrumentDecreaseSubmapGauge()
	}
	c.submaps = nil
	c.idToIndex = make(map[uint32]int)
}
