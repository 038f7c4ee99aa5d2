package submap

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/midgardmaps/midgard/voxel"
	"github.com/stretchr/testify/require"
)

func TestBlockRoundTrip(t *testing.T) {
	block := NewBlock[voxel.ClassVoxel](2)
	require.Equal(t, 8, block.NumVoxels())

	*block.Voxel(0) = voxel.ClassVoxel{
		Counts:       []uint32{5, 0, 9, 3},
		BelongsCount: 10,
		ForeignCount: 2,
		CurrentIndex: 2,
	}
	*block.Voxel(3) = voxel.ClassVoxel{
		BelongsCount: 1,
		CurrentIndex: voxel.UnsetIndex,
		IsGT:         true,
	}
	*block.Voxel(7) = voxel.ClassVoxel{
		Counts:       []uint32{4},
		CurrentIndex: 0,
	}

	words, err := block.Serialize()
	require.NoError(t, err)

	decoded := NewBlock[voxel.ClassVoxel](2)
	require.NoError(t, decoded.Deserialize(words))

	require.Equal(t, []uint32{5, 0, 9, 3}, decoded.Voxel(0).Counts)
	require.Equal(t, int32(2), decoded.Voxel(0).CurrentIndex)
	require.True(t, decoded.Voxel(3).IsGT)
	require.Equal(t, uint16(1), decoded.Voxel(3).BelongsCount)
	require.Equal(t, []uint32{4}, decoded.Voxel(7).Counts)
	require.Equal(t, int32(voxel.UnsetIndex), decoded.Voxel(1).CurrentIndex)
}

func TestBlockUncertaintyRoundTrip(t *testing.T) {
	block := NewBlock[voxel.ClassUncertaintyVoxel](1)
	*block.Voxel(0) = voxel.ClassUncertaintyVoxel{
		ClassVoxel: voxel.ClassVoxel{
			Counts:       []uint32{2, 8},
			BelongsCount: 3,
			CurrentIndex: 1,
		},
		UncertaintyValue: 17,
	}

	words, err := block.Serialize()
	require.NoError(t, err)

	decoded := NewBlock[voxel.ClassUncertaintyVoxel](1)
	require.NoError(t, decoded.Deserialize(words))
	require.Equal(t, float32(17), decoded.Voxel(0).UncertaintyValue)
}

func TestBlockDeserializeMismatch(t *testing.T) {
	block := NewBlock[voxel.ClassVoxel](2)
	words, err := block.Serialize()
	require.NoError(t, err)

	t.Run("trailing words fail", func(t *testing.T) {
		decoded := NewBlock[voxel.ClassVoxel](2)
		err := decoded.Deserialize(append(append([]uint32(nil), words...), 0))
		require.Error(t, err)
		require.True(t, errors.IsType(err, voxel.ErrTypeStreamLengthMismatch))
	})

	t.Run("short stream fails", func(t *testing.T) {
		decoded := NewBlock[voxel.ClassVoxel](2)
		err := decoded.Deserialize(words[:len(words)-3])
		require.Error(t, err)
		require.True(t, errors.IsType(err, voxel.ErrTypeStreamLengthMismatch))
	})

	t.Run("empty stream for a non-empty block fails", func(t *testing.T) {
		decoded := NewBlock[voxel.ClassVoxel](2)
		err := decoded.Deserialize(nil)
		require.Error(t, err)
		require.True(t, errors.IsType(err, voxel.ErrTypeStreamLengthMismatch))
	})
}

func TestBlockMergeInto(t *testing.T) {
	src := NewBlock[voxel.ClassVoxel](1)
	*src.Voxel(0) = voxel.ClassVoxel{
		Counts:       []uint32{9},
		BelongsCount: 9,
		ForeignCount: 1,
		CurrentIndex: 0,
	}

	dst := NewBlock[voxel.ClassVoxel](1)
	*dst.Voxel(0) = voxel.ClassVoxel{
		Counts:       []uint32{1, 1},
		BelongsCount: 1,
		ForeignCount: 9,
		CurrentIndex: 1,
	}

	require.NoError(t, src.MergeInto(dst))
	require.Equal(t, []uint32{9}, dst.Voxel(0).Counts)
	require.Equal(t, int32(0), dst.Voxel(0).CurrentIndex)

	t.Run("size mismatch fails", func(t *testing.T) {
		err := src.MergeInto(NewBlock[voxel.ClassVoxel](2))
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeBlockSizeMismatch))
	})
}
