package submap

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/midgardmaps/midgard/voxel"
)

// Error types surfaced by block and submap operations.
const (
	ErrTypeBlockSizeMismatch = "block_size_mismatch"
	ErrTypeConfigMismatch    = "submap_config_mismatch"
	ErrTypeSubmapNotFound    = "submap_not_found"
)

// BlockIndex addresses a block within its submap's grid.
type BlockIndex struct {
	X, Y, Z int
}

// Block is a fixed-capacity cubic grid of voxels covering one spatial
// region. The voxel order is fixed at construction and is also the
// serialization order.
type Block[V voxel.Variant] struct {
	voxelsPerSide int
	voxels        []V
}

// NewBlock returns a block with voxelsPerSide^3 zero voxels.
func NewBlock[V voxel.Variant](voxelsPerSide int) *Block[V] {
	if voxelsPerSide <= 0 {
		voxelsPerSide = 1
	}

	return &Block[V]{
		voxelsPerSide: voxelsPerSide,
		voxels:        make([]V, voxelsPerSide*voxelsPerSide*voxelsPerSide),
	}
}

func (b *Block[V]) VoxelsPerSide() int {
	return b.voxelsPerSide
}

func (b *Block[V]) NumVoxels() int {
	return len(b.voxels)
}

// Voxel returns the voxel at linear index i for mutation in place.
func (b *Block[V]) Voxel(i int) *V {
	return &b.voxels[i]
}

// Serialize packs every voxel in storage order into one word sequence. The
// per-voxel payload length varies, so the result has no static size.
func (b *Block[V]) Serialize() ([]uint32, error) {
	words := make([]uint32, 0, len(b.voxels)*3)
	for i := range b.voxels {
		var err error
		words, _, err = voxel.Append(words, &b.voxels[i])
		if err != nil {
			return nil, errors.New("serializing block failed").
				Wrap(err).
				WithTag("voxel_index", i)
		}
	}
	return words, nil
}

// Deserialize restores the block from words, which must hold exactly the
// block's voxels. A stream that ends early or leaves words unread is a
// corruption signal and fails the whole block.
func (b *Block[V]) Deserialize(words []uint32) error {
	var voxelIdx, off int
	for ; voxelIdx < len(b.voxels) && off < len(words); voxelIdx++ {
		var err error
		off, _, err = voxel.Read(words, off, &b.voxels[voxelIdx])
		if err != nil {
			return errors.New("decoding block failed").
				Wrap(err).
				WithTag("voxel_index", voxelIdx)
		}
	}
	if voxelIdx != len(b.voxels) || off != len(words) {
		return errors.New("block stream length mismatch").
			WithType(voxel.ErrTypeStreamLengthMismatch).
			WithTag("voxels_decoded", voxelIdx).
			WithTag("num_voxels", len(b.voxels)).
			WithTag("words_consumed", off).
			WithTag("num_words", len(words))
	}
	return nil
}

// MergeInto fuses every voxel of b into the voxel at the same position in
// dst. Both blocks must have the same dimensions.
func (b *Block[V]) MergeInto(dst *Block[V]) error {
	if dst.voxelsPerSide != b.voxelsPerSide {
		return errors.New("merging blocks of different sizes").
			WithType(ErrTypeBlockSizeMismatch).
			WithTag("voxels_per_side", b.voxelsPerSide).
			WithTag("target_voxels_per_side", dst.voxelsPerSide)
	}
	for i := range b.voxels {
		voxel.Merge(&b.voxels[i], &dst.voxels[i])
	}
	return nil
}
