package voxel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMerge(t *testing.T) {
	t.Run("ground-truth source always wins", func(t *testing.T) {
		src := ClassVoxel{
			Counts:       []uint32{1, 2},
			BelongsCount: 1,
			ForeignCount: 9,
			CurrentIndex: 1,
			IsGT:         true,
		}
		dst := ClassVoxel{
			Counts:       []uint32{7},
			BelongsCount: 9,
			ForeignCount: 1,
			CurrentIndex: 0,
		}

		Merge(&src, &dst)
		require.Equal(t, []uint32{1, 2}, dst.Counts)
		require.Equal(t, uint16(1), dst.BelongsCount)
		require.Equal(t, uint16(9), dst.ForeignCount)
		require.Equal(t, int32(1), dst.CurrentIndex)
		require.True(t, dst.IsGT)
	})

	t.Run("higher belonging probability wins", func(t *testing.T) {
		src := ClassVoxel{
			Counts:       []uint32{0, 5},
			BelongsCount: 10,
			ForeignCount: 2,
			CurrentIndex: 1,
		}
		dst := ClassVoxel{
			Counts:       []uint32{3},
			BelongsCount: 1,
			ForeignCount: 1,
			CurrentIndex: 0,
		}

		Merge(&src, &dst)
		require.Equal(t, []uint32{0, 5}, dst.Counts)
		require.Equal(t, int32(1), dst.CurrentIndex)
		require.False(t, dst.IsGT)
	})

	t.Run("equal probability leaves the target unchanged", func(t *testing.T) {
		src := ClassVoxel{BelongsCount: 2, ForeignCount: 2, CurrentIndex: 1}
		dst := ClassVoxel{Counts: []uint32{3}, BelongsCount: 1, ForeignCount: 1, CurrentIndex: 0}

		Merge(&src, &dst)
		require.Equal(t, []uint32{3}, dst.Counts)
		require.Equal(t, int32(0), dst.CurrentIndex)
	})

	t.Run("ground-truth target resists a more probable source", func(t *testing.T) {
		src := ClassVoxel{BelongsCount: 10, CurrentIndex: 1}
		dst := ClassVoxel{Counts: []uint32{3}, BelongsCount: 1, ForeignCount: 9, CurrentIndex: 0, IsGT: true}

		Merge(&src, &dst)
		require.Equal(t, []uint32{3}, dst.Counts)
		require.Equal(t, int32(0), dst.CurrentIndex)
		require.True(t, dst.IsGT)
	})

	t.Run("voteless voxels merge without dividing by zero", func(t *testing.T) {
		src := ClassVoxel{CurrentIndex: 1}
		dst := ClassVoxel{CurrentIndex: 0}

		Merge(&src, &dst)
		require.Equal(t, int32(0), dst.CurrentIndex)
	})

	t.Run("ground truth is sticky", func(t *testing.T) {
		gt := ClassVoxel{BelongsCount: 1, IsGT: true}
		dst := ClassVoxel{}
		Merge(&gt, &dst)
		require.True(t, dst.IsGT)

		probable := ClassVoxel{BelongsCount: 100}
		Merge(&probable, &dst)
		require.True(t, dst.IsGT)
	})

	t.Run("adopted counts do not alias the source", func(t *testing.T) {
		src := ClassVoxel{Counts: []uint32{1}, BelongsCount: 1}
		dst := ClassVoxel{}

		Merge(&src, &dst)
		src.Counts[0] = 99
		require.Equal(t, []uint32{1}, dst.Counts)
	})
}

func TestMergeUncertainty(t *testing.T) {
	t.Run("uncertainty is averaged", func(t *testing.T) {
		src := ClassUncertaintyVoxel{
			ClassVoxel:       ClassVoxel{BelongsCount: 1},
			UncertaintyValue: 4,
		}
		dst := ClassUncertaintyVoxel{UncertaintyValue: 2}

		Merge(&src, &dst)
		require.Equal(t, float32(3), dst.UncertaintyValue)
	})

	t.Run("averaging is order dependent", func(t *testing.T) {
		src := ClassUncertaintyVoxel{
			ClassVoxel:       ClassVoxel{BelongsCount: 1},
			UncertaintyValue: 4,
		}
		dst := ClassUncertaintyVoxel{UncertaintyValue: 2}

		Merge(&src, &dst)
		first := dst.UncertaintyValue
		Merge(&src, &dst)
		require.NotEqual(t, first, dst.UncertaintyValue)
		require.Equal(t, float32(3.5), dst.UncertaintyValue)
	})

	t.Run("ground-truth target keeps its uncertainty", func(t *testing.T) {
		src := ClassUncertaintyVoxel{
			ClassVoxel:       ClassVoxel{BelongsCount: 1, IsGT: true},
			UncertaintyValue: 4,
		}
		dst := ClassUncertaintyVoxel{UncertaintyValue: 2}

		// The sticky ground-truth flag lands on dst before the
		// uncertainty step, so no averaging happens.
		Merge(&src, &dst)
		require.True(t, dst.IsGT)
		require.Equal(t, float32(2), dst.UncertaintyValue)
	})
}
