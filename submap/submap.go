// Package submap manages midgard submaps: block grids of class voxels owned
// by a collection that keys them by a stable integer id.
package submap

import (
	"sort"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/google/uuid"
	"github.com/midgardmaps/midgard/voxel"
)

// Config describes the grid of a submap.
type Config struct {
	// VoxelSize is the edge length of one voxel in meters.
	VoxelSize float64

	// VoxelsPerSide is the edge length of one block in voxels.
	VoxelsPerSide int
}

func (c Config) withDefaults() Config {
	if c.VoxelSize <= 0 {
		c.VoxelSize = 0.1
	}
	if c.VoxelsPerSide <= 0 {
		c.VoxelsPerSide = 16
	}
	return c
}

// Submap is a self-contained map instance, typically covering one tracked
// object or region. Its id is assigned at creation and never changes.
type Submap[V voxel.Variant] struct {
	ID         uint32
	SubmapUUID string
	Config     Config

	blockMutex sync.RWMutex
	blocks     map[BlockIndex]*Block[V]
}

// NewSubmap returns a submap without blocks. Blocks are allocated on demand
// with AllocateBlock.
func NewSubmap[V voxel.Variant](id uint32, config Config) *Submap[V] {
	return &Submap[V]{
		ID:         id,
		SubmapUUID: uuid.New().String(),
		Config:     config.withDefaults(),
		blocks:     make(map[BlockIndex]*Block[V]),
	}
}

// AllocateBlock returns the block at idx, creating it when absent.
func (s *Submap[V]) AllocateBlock(idx BlockIndex) *Block[V] {
	s.blockMutex.Lock()
	defer s.blockMutex.Unlock()

	b, ok := s.blocks[idx]
	if !ok {
		b = NewBlock[V](s.Config.VoxelsPerSide)
		s.blocks[idx] = b
	}
	return b
}

func (s *Submap[V]) Block(idx BlockIndex) (*Block[V], bool) {
	s.blockMutex.RLock()
	defer s.blockMutex.RUnlock()

	b, ok := s.blocks[idx]
	return b, ok
}

func (s *Submap[V]) NumBlocks() int {
	s.blockMutex.RLock()
	defer s.blockMutex.RUnlock()

	return len(s.blocks)
}

// BlockIndices returns the allocated block indices in a deterministic
// order, which is also the serialization order of the submap.
func (s *Submap[V]) BlockIndices() []BlockIndex {
	s.blockMutex.RLock()
	defer s.blockMutex.RUnlock()

	indices := make([]BlockIndex, 0, len(s.blocks))
	for idx := range s.blocks {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool {
		a, b := indices[i], indices[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
	return indices
}

// Merge fuses every block of src into this submap. Blocks covering the same
// index are fused voxel by voxel; blocks present only in src are copied in
// by fusing into fresh zero blocks. Both submaps must share the same grid
// configuration.
func (s *Submap[V]) Merge(src *Submap[V]) error {
	if src.Config != s.Config {
		return errors.New("merging submaps with different grid configurations").
			WithType(ErrTypeConfigMismatch).
			WithTag("submap_id", s.ID).
			WithTag("source_submap_id", src.ID)
	}

	for _, idx := range src.BlockIndices() {
		b, _ := src.Block(idx)
		if err := b.MergeInto(s.AllocateBlock(idx)); err != nil {
			return errors.New("merging submap block failed").
				Wrap(err).
				WithTag("submap_id", s.ID).
				WithTag("source_submap_id", src.ID).
				WithTag("block_index", idx)
		}
	}
	return nil
}
