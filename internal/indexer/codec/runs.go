package codec

import (
	apperrors "github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/errors"
)

// Run groups the delta-encoded postings of one document. DocMarker is the
// absolute doc id for the first run of a term and the doc id gap for every
// later run. Positions holds the first position (absolute within the
// document) followed by the in-document gaps. The occurrence count is
// len(Positions).
type Run struct {
	DocMarker int
	Positions []int
}

func (r Run) Count() int {
	return len(r.Positions)
}

// Pack collapses a delta list into per-document runs. A run opens at the
// first element and at every element with a non-zero doc gap. Values are
// copied unchanged.
func Pack(deltas DeltaList) []Run {
	var runs []Run
	for i, d := range deltas {
		if i == 0 || d.DocDelta != 0 {
			runs = append(runs, Run{DocMarker: d.DocDelta})
		}
		last := &runs[len(runs)-1]
		last.Positions = append(last.Positions, d.Value)
	}
	return runs
}

// Unpack re-emits one delta element per occurrence.
func Unpack(runs []Run) DeltaList {
	n := 0
	for _, r := range runs {
		n += r.Count()
	}
	if n == 0 {
		return nil
	}
	out := make(DeltaList, 0, n)
	for _, r := range runs {
		for j, v := range r.Positions {
			d := Delta{Value: v}
			if j == 0 {
				d.DocDelta = r.DocMarker
			}
			out = append(out, d)
		}
	}
	return out
}

// Flatten lays runs out as the integer sequence
// [marker, count, v1..vCount, marker, count, ...].
func Flatten(runs []Run) []uint64 {
	n := 0
	for _, r := range runs {
		n += 2 + r.Count()
	}
	out := make([]uint64, 0, n)
	for _, r := range runs {
		out = append(out, uint64(r.DocMarker), uint64(r.Count()))
		for _, v := range r.Positions {
			out = append(out, uint64(v))
		}
	}
	return out
}

// maxValue bounds every decoded field so it converts to int without wrapping.
const maxValue = uint64(^uint(0) >> 1)

// ParseRuns is the checked inverse of Flatten. It fails with ErrCorruptStore
// when a run header is cut short, a count is zero or overruns the sequence,
// a run after the first carries a zero doc gap (Pack never emits one), or a
// decoded doc id or position would not fit in an int.
func ParseRuns(seq []uint64) ([]Run, error) {
	var runs []Run
	// Decoded doc ids and positions are running sums; both must stay in int range.
	var docID uint64
	for i := 0; i < len(seq); {
		if len(seq)-i < 2 {
			return nil, apperrors.Newf(apperrors.ErrCorruptStore,
				"run header truncated at element %d of %d", i, len(seq))
		}
		marker, count := seq[i], seq[i+1]
		i += 2
		if count == 0 {
			return nil, apperrors.Newf(apperrors.ErrCorruptStore, "run %d has zero count", len(runs))
		}
		if count > uint64(len(seq)-i) {
			return nil, apperrors.Newf(apperrors.ErrCorruptStore,
				"run %d declares %d positions but only %d values remain", len(runs), count, len(seq)-i)
		}
		if len(runs) > 0 && marker == 0 {
			return nil, apperrors.Newf(apperrors.ErrCorruptStore, "run %d repeats the previous document", len(runs))
		}
		if marker > maxValue-docID {
			return nil, apperrors.Newf(apperrors.ErrCorruptStore, "run %d doc marker %d out of range", len(runs), marker)
		}
		docID += marker
		var pos uint64
		positions := make([]int, count)
		for j := range positions {
			v := seq[i+j]
			if v > maxValue-pos {
				return nil, apperrors.Newf(apperrors.ErrCorruptStore, "run %d position value %d out of range", len(runs), v)
			}
			pos += v
			positions[j] = int(v)
		}
		i += int(count)
		runs = append(runs, Run{DocMarker: int(marker), Positions: positions})
	}
	return runs, nil
}
