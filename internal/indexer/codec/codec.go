package codec

import (
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/errors"
)

// RunSequence runs the uncompressed half of the pipeline: delta encode, then
// pack into runs.
func RunSequence(postings index.PostingList) []Run {
	return Pack(DeltaEncode(postings))
}

// Compress encodes a postings list into the block stored for one term.
func Compress(postings index.PostingList) []byte {
	return EncodeVByte(Flatten(RunSequence(postings)))
}

// FromRuns rebuilds the postings list from a run sequence.
func FromRuns(runs []Run) index.PostingList {
	return DeltaDecode(Unpack(runs))
}

// Decompress is the inverse of Compress. An empty block is corrupt: stored
// terms always have at least one posting.
func Decompress(block []byte) (index.PostingList, error) {
	if len(block) == 0 {
		return nil, apperrors.New(apperrors.ErrCorruptStore, "empty postings block")
	}
	seq, err := DecodeVByte(block)
	if err != nil {
		return nil, err
	}
	runs, err := ParseRuns(seq)
	if err != nil {
		return nil, err
	}
	return FromRuns(runs), nil
}
