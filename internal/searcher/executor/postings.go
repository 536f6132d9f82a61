package executor

import "github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/indexer/index"

// countDocs counts distinct document ids in a sorted postings list.
func countDocs(list index.PostingList) int {
	n := 0
	for i, p := range list {
		if i == 0 || p.DocID != list[i-1].DocID {
			n++
		}
	}
	return n
}

// GroupByDoc splits a sorted postings list into per-document position lists,
// keeping document order.
func GroupByDoc(list index.PostingList) []DocPositions {
	var out []DocPositions
	for i, p := range list {
		if i == 0 || p.DocID != list[i-1].DocID {
			out = append(out, DocPositions{DocID: p.DocID})
		}
		last := &out[len(out)-1]
		last.Positions = append(last.Positions, p.Position)
	}
	return out
}

// DocPositions lists where a term occurs in one document.
type DocPositions struct {
	DocID     int    `json:"docId"`
	Name      string `json:"name,omitempty"`
	Positions []int  `json:"positions"`
}
