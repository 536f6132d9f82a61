package stats

import (
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/errors"
)

// Stats holds TF and DF for one corpus snapshot. Columns of the TF matrix
// are document ordinals; DocID maps an ordinal back to the document id.
type Stats struct {
	vocab  *Vocabulary
	docIDs []int
	tf     [][]uint32
	df     []uint32
}

// Compute builds the TF matrix and DF vector in one pass over docs.
func Compute(docs []index.Document) (*Stats, error) {
	s := &Stats{
		vocab:  NewVocabulary(),
		docIDs: make([]int, len(docs)),
	}
	for col, doc := range docs {
		if doc.Tokens == nil {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, "document %d has no token sequence", doc.ID)
		}
		if col > 0 && doc.ID <= docs[col-1].ID {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput,
				"document id %d out of order: previous id %d", doc.ID, docs[col-1].ID)
		}
		s.docIDs[col] = doc.ID
		for _, term := range doc.Tokens {
			id, added := s.vocab.Add(term)
			if added {
				s.tf = append(s.tf, make([]uint32, len(docs)))
				s.df = append(s.df, 0)
			}
			if s.tf[id][col] == 0 {
				s.df[id]++
			}
			s.tf[id][col]++
		}
	}
	return s, nil
}

func (s *Stats) Vocabulary() *Vocabulary {
	return s.vocab
}

func (s *Stats) TermCount() int {
	return s.vocab.Len()
}

func (s *Stats) DocCount() int {
	return len(s.docIDs)
}

// DocID returns the document id of TF column col.
func (s *Stats) DocID(col int) int {
	return s.docIDs[col]
}

func (s *Stats) checkID(id int) error {
	if id < 0 || id >= len(s.df) {
		return apperrors.Newf(apperrors.ErrNotFound, "term id %d outside vocabulary of %d", id, len(s.df))
	}
	return nil
}

// TF returns the occurrences of term id in TF column col.
func (s *Stats) TF(id, col int) (uint32, error) {
	if err := s.checkID(id); err != nil {
		return 0, err
	}
	if col < 0 || col >= len(s.docIDs) {
		return 0, apperrors.Newf(apperrors.ErrNotFound, "document column %d outside %d documents", col, len(s.docIDs))
	}
	return s.tf[id][col], nil
}

// DF returns the number of documents containing term id.
func (s *Stats) DF(id int) (uint32, error) {
	if err := s.checkID(id); err != nil {
		return 0, err
	}
	return s.df[id], nil
}

// CollectionFrequency is the total number of occurrences of term id.
func (s *Stats) CollectionFrequency(id int) (uint64, error) {
	if err := s.checkID(id); err != nil {
		return 0, err
	}
	var total uint64
	for _, n := range s.tf[id] {
		total += uint64(n)
	}
	return total, nil
}

// CoOccurrence counts the documents where both terms occur.
func (s *Stats) CoOccurrence(a, b int) (int, error) {
	if err := s.checkID(a); err != nil {
		return 0, err
	}
	if err := s.checkID(b); err != nil {
		return 0, err
	}
	return s.coOccurrence(a, b), nil
}

func (s *Stats) coOccurrence(a, b int) int {
	ra, rb := s.tf[a], s.tf[b]
	co := 0
	for col := range ra {
		if ra[col] != 0 && rb[col] != 0 {
			co++
		}
	}
	return co
}

// dice is shared by the naive and matrix paths so both produce bit-identical
// scores.
func dice(co uint64, dfA, dfB uint32) float64 {
	return 2 * float64(co) / float64(uint64(dfA)+uint64(dfB))
}

// Dice computes the coefficient of two distinct terms by scanning their TF
// rows. A term is never compared with itself.
func (s *Stats) Dice(a, b int) (float64, error) {
	if err := s.checkID(a); err != nil {
		return 0, err
	}
	if err := s.checkID(b); err != nil {
		return 0, err
	}
	if a == b {
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, "dice of term id %d with itself", a)
	}
	return dice(uint64(s.coOccurrence(a, b)), s.df[a], s.df[b]), nil
}

// BestMatch scans the whole vocabulary for the term with the highest Dice
// coefficient against id. Cost is O(vocabulary × documents).
func (s *Stats) BestMatch(id int) (int, float64, error) {
	if err := s.checkID(id); err != nil {
		return 0, 0, err
	}
	return bestOf(len(s.df), id, func(other int) float64 {
		return dice(uint64(s.coOccurrence(id, other)), s.df[id], s.df[other])
	})
}

// bestOf returns the candidate with the strictly highest score, visiting ids
// in ascending order so ties go to the lowest id. id itself is skipped.
func bestOf(n, id int, score func(other int) float64) (int, float64, error) {
	best, bestScore := -1, 0.0
	for other := 0; other < n; other++ {
		if other == id {
			continue
		}
		sc := score(other)
		if best < 0 || sc > bestScore {
			best, bestScore = other, sc
		}
	}
	if best < 0 {
		return 0, 0, apperrors.Newf(apperrors.ErrNotFound, "no other term to match term id %d against", id)
	}
	return best, bestScore, nil
}
