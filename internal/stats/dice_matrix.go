package stats

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/errors"
)

// DiceMatrix holds the coefficient of every term pair. Diagonal cells are
// left at zero and never read.
type DiceMatrix struct {
	n     int
	cells []float64
}

// Precompute builds the full Dice matrix. Each term's TF row is reduced to a
// bitmap of the columns it occurs in; co-occurrence is then the intersection
// cardinality of two bitmaps. Rows are spread over workers, and row a owns
// cells (a,b) and (b,a) for every b > a.
func (s *Stats) Precompute(ctx context.Context, workers int) (*DiceMatrix, error) {
	n := len(s.df)
	if workers < 1 {
		workers = 1
	}
	bitmaps := make([]*roaring.Bitmap, n)
	for id, row := range s.tf {
		bm := roaring.New()
		for col, count := range row {
			if count != 0 {
				bm.Add(uint32(col))
			}
		}
		bm.RunOptimize()
		bitmaps[id] = bm
	}

	m := &DiceMatrix{n: n, cells: make([]float64, n*n)}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for a := 0; a < n; a++ {
		if err := ctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for b := a + 1; b < n; b++ {
				co := bitmaps[a].AndCardinality(bitmaps[b])
				score := dice(co, s.df[a], s.df[b])
				m.cells[a*n+b] = score
				m.cells[b*n+a] = score
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *DiceMatrix) Len() int {
	return m.n
}

func (m *DiceMatrix) checkID(id int) error {
	if id < 0 || id >= m.n {
		return apperrors.Newf(apperrors.ErrNotFound, "term id %d outside vocabulary of %d", id, m.n)
	}
	return nil
}

// Score returns the precomputed coefficient of two distinct terms.
func (m *DiceMatrix) Score(a, b int) (float64, error) {
	if err := m.checkID(a); err != nil {
		return 0, err
	}
	if err := m.checkID(b); err != nil {
		return 0, err
	}
	if a == b {
		return 0, apperrors.Newf(apperrors.ErrInvalidInput, "dice of term id %d with itself", a)
	}
	return m.cells[a*m.n+b], nil
}

// BestMatch reads row id of the matrix. Selection rules are the same as
// Stats.BestMatch.
func (m *DiceMatrix) BestMatch(id int) (int, float64, error) {
	if err := m.checkID(id); err != nil {
		return 0, 0, err
	}
	row := m.cells[id*m.n : (id+1)*m.n]
	return bestOf(m.n, id, func(other int) float64 {
		return row[other]
	})
}
