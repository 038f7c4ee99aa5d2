// Package voxel holds the per-voxel semantic state of a midgard map and the
// packed word codec and fusion rule that operate on it.
package voxel

const (
	// TopNCounts is the number of class counts kept when a voxel is packed.
	// Counts outside the top N are dropped, their classes decode to zero.
	TopNCounts = 3

	// CounterBits is the packed width of one class count. Must divide 32.
	CounterBits = 16

	// MaxClassCount is the largest number of classes a single voxel can
	// carry. Packed class indices are 8 bits wide, so counts can name at
	// most 256 classes.
	MaxClassCount = 256

	// UnsetIndex marks a voxel without a current class assignment.
	UnsetIndex = -1

	// MaxWordsPerVoxel is the largest number of words one encoded voxel
	// can occupy, uncertainty word included.
	MaxWordsPerVoxel = headerWords + indexWords + countWords + 1

	maxCounter      = 1<<CounterBits - 1
	countersPerWord = 32 / CounterBits
	indicesPerWord  = 4

	headerWords = 3
	indexWords  = (TopNCounts + indicesPerWord - 1) / indicesPerWord
	countWords  = (TopNCounts + countersPerWord - 1) / countersPerWord
)

// Variant enumerates the voxel types the codec and the fusion rule accept.
type Variant interface {
	ClassVoxel | ClassUncertaintyVoxel
}

// ClassVoxel carries the class observation counts of one voxel together
// with its instance assignment votes.
type ClassVoxel struct {
	// Counts holds one observation count per known class, indexed by
	// class id. An empty slice means no class has been observed yet.
	Counts []uint32

	// BelongsCount and ForeignCount are the votes for and against the
	// voxel belonging to its submap's instance.
	BelongsCount uint16
	ForeignCount uint16

	// CurrentIndex is the index into Counts of the currently most likely
	// class, or UnsetIndex.
	CurrentIndex int32

	// IsGT marks the voxel as ground-truth labeled. Ground truth is
	// sticky: fusion never clears it.
	IsGT bool
}

// ClassUncertaintyVoxel is a ClassVoxel with an uncertainty estimate that is
// averaged, not summed, on fusion.
type ClassUncertaintyVoxel struct {
	ClassVoxel

	UncertaintyValue float32
}

// Initialized reports whether the voxel carries any information. A voxel
// without classes is initialized iff it holds at least one vote.
func (v *ClassVoxel) Initialized() bool {
	return len(v.Counts) > 0 || v.BelongsCount != 0 || v.ForeignCount != 0
}

// BelongingProbability is the ratio of belongs votes to total votes. It is
// zero when the voxel holds no votes at all.
func (v *ClassVoxel) BelongingProbability() float64 {
	total := uint32(v.BelongsCount) + uint32(v.ForeignCount)
	if total == 0 {
		return 0
	}
	return float64(v.BelongsCount) / float64(total)
}

func base[V Variant](v *V) *ClassVoxel {
	switch t := any(v).(type) {
	case *ClassVoxel:
		return t
	case *ClassUncertaintyVoxel:
		return &t.ClassVoxel
	}
	return nil
}
