// Package codec implements the postings compression pipeline: delta encoding
// with a document-boundary reset, run-length grouping per document and a
// variable-byte integer codec, together with the exact inverse of each stage.
package codec

import "github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/indexer/index"

// Delta is one delta-encoded posting. The first element of a list holds the
// absolute (docID, position). Later elements hold the doc id gap and, when the
// gap is zero, the position gap; when the gap is non-zero Value is the
// absolute position in the new document.
type Delta struct {
	DocDelta int
	Value    int
}

type DeltaList []Delta

// DeltaEncode transforms a sorted postings list in a single pass.
func DeltaEncode(postings index.PostingList) DeltaList {
	if len(postings) == 0 {
		return nil
	}
	out := make(DeltaList, len(postings))
	out[0] = Delta{DocDelta: postings[0].DocID, Value: postings[0].Position}
	prev := postings[0]
	for i := 1; i < len(postings); i++ {
		cur := postings[i]
		d := Delta{DocDelta: cur.DocID - prev.DocID}
		if d.DocDelta == 0 {
			d.Value = cur.Position - prev.Position
		} else {
			// Positions restart in a new document; the gap to the previous
			// document's last position carries nothing.
			d.Value = cur.Position
		}
		out[i] = d
		prev = cur
	}
	return out
}

// DeltaDecode is the exact left inverse of DeltaEncode.
func DeltaDecode(deltas DeltaList) index.PostingList {
	if len(deltas) == 0 {
		return nil
	}
	out := make(index.PostingList, len(deltas))
	docID, pos := deltas[0].DocDelta, deltas[0].Value
	out[0] = index.Posting{DocID: docID, Position: pos}
	for i := 1; i < len(deltas); i++ {
		d := deltas[i]
		if d.DocDelta == 0 {
			pos += d.Value
		} else {
			docID += d.DocDelta
			pos = d.Value
		}
		out[i] = index.Posting{DocID: docID, Position: pos}
	}
	return out
}
