package submap

import "sync"

// A sequential id generator. Ids are never handed out twice, so an id stays
// unambiguous after its submap is removed.
type SequentialIDGenerator struct {
	mutex     sync.Mutex
	currentID uint32
}

// New returns a fresh sequential id.
func (g *SequentialIDGenerator) New() uint32 {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.currentID++
	return g.currentID
}

// Reserve marks all ids up to and including id as used. It is called when a
// submap with an externally assigned id is adopted.
func (g *SequentialIDGenerator) Reserve(id uint32) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if id > g.currentID {
		g.currentID = id
	}
}
