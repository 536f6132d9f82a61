package index

import (
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/errors"
)

// Builder accumulates the postings list of every term from documents fed in
// corpus order. Terms are remembered in first-seen order, which is the order
// Entries returns and the order the store writes them in.
type Builder struct {
	mu       sync.RWMutex
	postings map[string]PostingList
	terms    []string
	docs     []DocStats
	lengths  map[int]int
	size     int64
}

func NewBuilder() *Builder {
	return &Builder{
		postings: make(map[string]PostingList),
		lengths:  make(map[int]int),
	}
}

// Add appends one posting per token of doc. Document ids must be non-negative
// and strictly increasing across calls so that every postings list comes out
// sorted by construction.
func (b *Builder) Add(doc Document) error {
	if doc.ID < 0 {
		return apperrors.Newf(apperrors.ErrInvalidInput, "document id %d is negative", doc.ID)
	}
	if doc.Tokens == nil {
		return apperrors.Newf(apperrors.ErrInvalidInput, "document %d has no token sequence", doc.ID)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if n := len(b.docs); n > 0 && doc.ID <= b.docs[n-1].DocID {
		return apperrors.Newf(apperrors.ErrInvalidInput,
			"document id %d out of order: previous id %d", doc.ID, b.docs[n-1].DocID)
	}
	for i, term := range doc.Tokens {
		list, exists := b.postings[term]
		if !exists {
			b.terms = append(b.terms, term)
			b.size += int64(len(term))
		}
		b.postings[term] = append(list, Posting{DocID: doc.ID, Position: i})
	}
	b.size += int64(len(doc.Tokens)) * 16
	b.docs = append(b.docs, DocStats{DocID: doc.ID, Name: doc.Name, DocLen: len(doc.Tokens)})
	b.lengths[doc.ID] = len(doc.Tokens)
	return nil
}

// AddAll feeds docs in order and stops at the first invalid document.
func (b *Builder) AddAll(docs []Document) error {
	for _, doc := range docs {
		if err := b.Add(doc); err != nil {
			return err
		}
	}
	return nil
}

// Postings returns the list accumulated for term. The slice is shared with
// the builder and must not be modified.
func (b *Builder) Postings(term string) (PostingList, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	list, ok := b.postings[term]
	return list, ok
}

// Entries returns every term with its postings in first-seen order.
func (b *Builder) Entries() []TermEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entries := make([]TermEntry, 0, len(b.terms))
	for _, term := range b.terms {
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: b.postings[term],
		})
	}
	return entries
}

func (b *Builder) Documents() []DocStats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]DocStats, len(b.docs))
	copy(out, b.docs)
	return out
}

// DocLength returns the token count of docID, or 0 for unknown documents.
func (b *Builder) DocLength(docID int) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lengths[docID]
}

func (b *Builder) DocCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.docs)
}

func (b *Builder) TermCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.terms)
}

// Size is a rough estimate of the builder's memory footprint in bytes.
func (b *Builder) Size() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}
