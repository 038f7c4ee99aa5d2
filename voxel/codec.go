package voxel

import (
	"math"
	"sort"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Error types surfaced by the codec.
const (
	ErrTypeClassCountOutOfRange = "class_count_out_of_range"
	ErrTypeClassIndexOutOfRange = "class_index_out_of_range"
	ErrTypeStreamLengthMismatch = "stream_length_mismatch"
)

// Append encodes v and appends its words to words.
//
// Layout, one voxel:
//
//	[class count][belongs | foreign<<16][is_gt | current_index<<16]
//
// followed, iff the class count is non-zero, by the top-N class indices
// packed 8 bits each (least significant byte first) and the top-N counts
// packed CounterBits each. The uncertainty variant appends one extra word
// holding the uncertainty value clamped to the unsigned 32-bit range and
// truncated, iff the voxel is initialized.
//
// Counts wider than CounterBits are saturated to the largest encodable
// value; saturations are counted by the voxel_count_saturations_total
// metric. The returned flag reports whether the voxel is initialized.
func Append[V Variant](words []uint32, v *V) ([]uint32, bool, error) {
	switch t := any(v).(type) {
	case *ClassVoxel:
		return appendClassVoxel(words, t)
	case *ClassUncertaintyVoxel:
		words, initialized, err := appendClassVoxel(words, &t.ClassVoxel)
		if err != nil || !initialized {
			return words, initialized, err
		}
		// Converting out of the uint32 range is implementation-defined,
		// so clamp before truncating.
		u := float64(t.UncertaintyValue)
		if math.IsNaN(u) || u < 0 {
			u = 0
		} else if u > math.MaxUint32 {
			u = math.MaxUint32
		}
		return append(words, uint32(u)), true, nil
	}
	return words, false, nil
}

// Read decodes one voxel from words starting at off, mirroring Append. It
// returns the offset past the consumed words and the initialized flag.
//
// A decoded class index outside the voxel's class count is a corruption
// signal and fails the read.
func Read[V Variant](words []uint32, off int, v *V) (int, bool, error) {
	switch t := any(v).(type) {
	case *ClassVoxel:
		return readClassVoxel(words, off, t)
	case *ClassUncertaintyVoxel:
		off, initialized, err := readClassVoxel(words, off, &t.ClassVoxel)
		if err != nil || !initialized {
			return off, initialized, err
		}
		if off >= len(words) {
			return off, false, errors.New("voxel stream ends before uncertainty word").
				WithType(ErrTypeStreamLengthMismatch).
				WithTag("word_offset", off)
		}
		t.UncertaintyValue = float32(words[off])
		return off + 1, true, nil
	}
	return off, false, nil
}

func appendClassVoxel(words []uint32, v *ClassVoxel) ([]uint32, bool, error) {
	classCount := len(v.Counts)
	if classCount > MaxClassCount {
		return words, false, errors.New("voxel class count out of range").
			WithType(ErrTypeClassCountOutOfRange).
			WithTag("class_count", classCount).
			WithTag("max_class_count", MaxClassCount)
	}

	words = append(words, uint32(classCount))
	words = append(words, uint32(v.BelongsCount)|uint32(v.ForeignCount)<<16)

	var gt uint32
	if v.IsGT {
		gt = 1
	}
	words = append(words, gt|uint32(uint16(v.CurrentIndex))<<16)

	if classCount == 0 {
		return words, v.BelongsCount != 0 || v.ForeignCount != 0, nil
	}

	indices, counts := topCounts(v.Counts)

	for i := 0; i < TopNCounts; i += indicesPerWord {
		var w uint32
		for j := 0; j < indicesPerWord && i+j < TopNCounts; j++ {
			w |= uint32(indices[i+j]) << (8 * j)
		}
		words = append(words, w)
	}
	for i := 0; i < TopNCounts; i += countersPerWord {
		var w uint32
		for j := 0; j < countersPerWord && i+j < TopNCounts; j++ {
			w |= counts[i+j] << (CounterBits * j)
		}
		words = append(words, w)
	}
	return words, true, nil
}

func readClassVoxel(words []uint32, off int, v *ClassVoxel) (int, bool, error) {
	if off+headerWords > len(words) {
		return off, false, errors.New("voxel stream ends inside header").
			WithType(ErrTypeStreamLengthMismatch).
			WithTag("word_offset", off).
			WithTag("num_words", len(words))
	}

	classCount := words[off]
	votes := words[off+1]
	assignment := words[off+2]
	off += headerWords

	v.BelongsCount = uint16(votes)
	v.ForeignCount = uint16(votes >> 16)
	v.IsGT = assignment&0xFFFF != 0
	v.CurrentIndex = decodeIndex(uint16(assignment >> 16))

	if classCount == 0 {
		v.Counts = nil
		v.CurrentIndex = UnsetIndex
		return off, v.BelongsCount != 0 || v.ForeignCount != 0, nil
	}
	if classCount > MaxClassCount {
		return off, false, errors.New("decoded class count out of range").
			WithType(ErrTypeClassCountOutOfRange).
			WithTag("class_count", classCount).
			WithTag("max_class_count", MaxClassCount)
	}
	if off+indexWords+countWords > len(words) {
		return off, false, errors.New("voxel stream ends inside packed counts").
			WithType(ErrTypeStreamLengthMismatch).
			WithTag("word_offset", off).
			WithTag("num_words", len(words))
	}

	var indices [TopNCounts]uint8
	for i := range indices {
		indices[i] = uint8(words[off+i/indicesPerWord] >> (8 * (i % indicesPerWord)))
	}
	off += indexWords

	var counts [TopNCounts]uint32
	for i := range counts {
		counts[i] = words[off+i/countersPerWord] >> (CounterBits * (i % countersPerWord)) & maxCounter
	}
	off += countWords

	v.Counts = make([]uint32, classCount)
	for i := 0; i < TopNCounts; i++ {
		// Zero-count slots are either padding or carry no information.
		if counts[i] == 0 {
			continue
		}
		if uint32(indices[i]) >= classCount {
			return off, false, errors.New("decoded class index out of range").
				WithType(ErrTypeClassIndexOutOfRange).
				WithTag("class_index", indices[i]).
				WithTag("class_count", classCount)
		}
		v.Counts[indices[i]] = counts[i]
	}
	return off, true, nil
}

// topCounts selects the TopNCounts most observed classes. Ties resolve to
// the higher class index. Slots beyond the number of known classes stay
// zero. Counts are saturated to the packed counter width.
func topCounts(all []uint32) ([TopNCounts]uint8, [TopNCounts]uint32) {
	type entry struct {
		count uint32
		index uint8
	}
	entries := make([]entry, len(all))
	for i, c := range all {
		entries[i] = entry{count: c, index: uint8(i)}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].index > entries[j].index
	})

	var indices [TopNCounts]uint8
	var counts [TopNCounts]uint32
	for i := 0; i < TopNCounts && i < len(entries); i++ {
		indices[i] = entries[i].index
		c := entries[i].count
		if c > maxCounter {
			c = maxCounter
			instrumentCountSaturation()
		}
		counts[i] = c
	}
	return indices, counts
}

func decodeIndex(raw uint16) int32 {
	if raw == 0xFFFF {
		return UnsetIndex
	}
	return int32(raw)
}
