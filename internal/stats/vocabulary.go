// Package stats computes per-term document statistics over the corpus: a
// dense term-frequency matrix, the document-frequency vector, and the Dice
// coefficient between terms, either scanned per query or precomputed for the
// whole vocabulary.
package stats

import (
	apperrors "github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/errors"
)

// Vocabulary assigns dense term ids from 0 in first-seen order.
type Vocabulary struct {
	ids   map[string]int
	terms []string
}

func NewVocabulary() *Vocabulary {
	return &Vocabulary{ids: make(map[string]int)}
}

// Add returns the id of term, assigning the next id if it is new.
func (v *Vocabulary) Add(term string) (int, bool) {
	if id, ok := v.ids[term]; ok {
		return id, false
	}
	id := len(v.terms)
	v.ids[term] = id
	v.terms = append(v.terms, term)
	return id, true
}

// ID looks up the id of term.
func (v *Vocabulary) ID(term string) (int, error) {
	id, ok := v.ids[term]
	if !ok {
		return 0, apperrors.Newf(apperrors.ErrNotFound, "term %q not in vocabulary", term)
	}
	return id, nil
}

// Term looks up the term with the given id.
func (v *Vocabulary) Term(id int) (string, error) {
	if id < 0 || id >= len(v.terms) {
		return "", apperrors.Newf(apperrors.ErrNotFound, "term id %d outside vocabulary of %d", id, len(v.terms))
	}
	return v.terms[id], nil
}

func (v *Vocabulary) Len() int {
	return len(v.terms)
}

// Terms returns the id → term table.
func (v *Vocabulary) Terms() []string {
	out := make([]string, len(v.terms))
	copy(out, v.terms)
	return out
}
