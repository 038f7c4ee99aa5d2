package voxel

// Merge fuses src into dst, mutating dst in place.
//
// dst adopts src's assignment fields (current index, votes and counts) when
// src is ground truth, or when src's belonging probability strictly exceeds
// dst's and dst is not ground truth. A ground-truth src makes dst ground
// truth permanently.
//
// For the uncertainty variant the uncertainty values are averaged after the
// base merge unless dst ended up ground truth. The averaging makes repeated
// fusion order-dependent: merging the same src twice changes the result.
//
// Merge must not be called concurrently with the same dst.
func Merge[V Variant](src, dst *V) {
	s, d := base(src), base(dst)

	if s.IsGT || (s.BelongingProbability() > d.BelongingProbability() && !d.IsGT) {
		d.CurrentIndex = s.CurrentIndex
		d.ForeignCount = s.ForeignCount
		d.BelongsCount = s.BelongsCount
		d.Counts = append([]uint32(nil), s.Counts...)
	}
	if s.IsGT {
		d.IsGT = true
	}

	if su, ok := any(src).(*ClassUncertaintyVoxel); ok {
		du := any(dst).(*ClassUncertaintyVoxel)
		if !du.IsGT {
			du.UncertaintyValue = (du.UncertaintyValue + su.UncertaintyValue) / 2
		}
	}
}
