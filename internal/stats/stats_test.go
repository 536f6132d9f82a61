package stats

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/fileutil"
)

func sampleDocs() []index.Document {
	return []index.Document{
		{ID: 1, Tokens: []string{"the", "king", "is", "dead"}},
		{ID: 2, Tokens: []string{"long", "live", "the", "king"}},
		{ID: 3, Tokens: []string{"the", "queen", "the", "queen"}},
		{ID: 5, Tokens: []string{"dead", "men", "tell", "no", "tales"}},
	}
}

func randomDocs(seed int64, docs, vocab, maxLen int) []index.Document {
	rng := rand.New(rand.NewSource(seed))
	out := make([]index.Document, docs)
	for d := range out {
		tokens := make([]string, 1+rng.Intn(maxLen))
		for i := range tokens {
			tokens[i] = fmt.Sprintf("w%d", rng.Intn(vocab))
		}
		out[d] = index.Document{ID: d * 2, Tokens: tokens}
	}
	return out
}

func mustCompute(t *testing.T, docs []index.Document) *Stats {
	t.Helper()
	s, err := Compute(docs)
	require.NoError(t, err)
	return s
}

func termID(t *testing.T, s *Stats, term string) int {
	t.Helper()
	id, err := s.Vocabulary().ID(term)
	require.NoError(t, err)
	return id
}

func TestComputeAssignsFirstSeenIDs(t *testing.T) {
	s := mustCompute(t, sampleDocs())
	want := []string{"the", "king", "is", "dead", "long", "live", "queen", "men", "tell", "no", "tales"}
	assert.Equal(t, want, s.Vocabulary().Terms())
	assert.Equal(t, 4, s.DocCount())
	assert.Equal(t, 5, s.DocID(3))

	the := termID(t, s, "the")
	tf, err := s.TF(the, 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), tf)
	df, err := s.DF(the)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), df)
	cf, err := s.CollectionFrequency(the)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), cf)
}

func TestDocumentFrequencyMatchesTFRows(t *testing.T) {
	s := mustCompute(t, randomDocs(7, 60, 40, 30))
	for id := 0; id < s.TermCount(); id++ {
		df, err := s.DF(id)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, df, uint32(1))
		assert.LessOrEqual(t, int(df), s.DocCount())

		var present uint32
		for col := 0; col < s.DocCount(); col++ {
			tf, err := s.TF(id, col)
			require.NoError(t, err)
			if tf > 0 {
				present++
			}
		}
		assert.Equal(t, present, df)
	}
}

func TestComputeRejectsOutOfOrderIDs(t *testing.T) {
	_, err := Compute([]index.Document{
		{ID: 2, Tokens: []string{"a"}},
		{ID: 2, Tokens: []string{"b"}},
	})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestDice(t *testing.T) {
	s := mustCompute(t, sampleDocs())
	the, king, dead := termID(t, s, "the"), termID(t, s, "king"), termID(t, s, "dead")

	score, err := s.Dice(the, king)
	require.NoError(t, err)
	assert.InDelta(t, 2.0*2/(3+2), score, 1e-12)

	score, err = s.Dice(king, dead)
	require.NoError(t, err)
	assert.InDelta(t, 2.0*1/(2+2), score, 1e-12)

	_, err = s.Dice(the, the)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))

	_, err = s.Dice(the, 999)
	assert.True(t, apperrors.IsNotFound(err))
	_, err = s.Dice(-1, the)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestBestMatchTieBreaksToLowestID(t *testing.T) {
	s := mustCompute(t, []index.Document{
		{ID: 0, Tokens: []string{"x", "b", "a"}},
		{ID: 1, Tokens: []string{"y"}},
	})
	x := termID(t, s, "x")
	best, score, err := s.BestMatch(x)
	require.NoError(t, err)
	assert.Equal(t, termID(t, s, "b"), best)
	assert.InDelta(t, 1.0, score, 1e-12)
}

func TestBestMatchSingleTermVocabulary(t *testing.T) {
	s := mustCompute(t, []index.Document{{ID: 0, Tokens: []string{"alone", "alone"}}})
	_, _, err := s.BestMatch(0)
	assert.True(t, apperrors.IsNotFound(err))

	m, err := s.Precompute(context.Background(), 2)
	require.NoError(t, err)
	_, _, err = m.BestMatch(0)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestNaiveAndMatrixAgree(t *testing.T) {
	for _, seed := range []int64{1, 2, 3} {
		t.Run(fmt.Sprintf("seed-%d", seed), func(t *testing.T) {
			s := mustCompute(t, randomDocs(seed, 80, 120, 25))
			m, err := s.Precompute(context.Background(), 4)
			require.NoError(t, err)
			require.Equal(t, s.TermCount(), m.Len())

			for id := 0; id < s.TermCount(); id++ {
				nb, ns, err := s.BestMatch(id)
				require.NoError(t, err)
				mb, ms, err := m.BestMatch(id)
				require.NoError(t, err)
				assert.Equal(t, nb, mb, "term %d", id)
				assert.Equal(t, ns, ms, "term %d", id)
			}
			for a := 0; a < 10; a++ {
				for b := 0; b < s.TermCount(); b++ {
					if a == b {
						continue
					}
					naive, err := s.Dice(a, b)
					require.NoError(t, err)
					pre, err := m.Score(a, b)
					require.NoError(t, err)
					assert.Equal(t, naive, pre)
				}
			}
		})
	}
}

func TestPrecomputeCancelled(t *testing.T) {
	s := mustCompute(t, randomDocs(4, 20, 30, 10))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Precompute(ctx, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := mustCompute(t, randomDocs(9, 40, 50, 20))
	for _, c := range []string{CompressionNone, CompressionZstd, CompressionLZ4} {
		t.Run(c, func(t *testing.T) {
			dir := t.TempDir()
			meta, err := s.Save(dir, c)
			require.NoError(t, err)
			assert.Equal(t, s.TermCount(), meta.TermCount)
			assert.Equal(t, c, meta.Compression)

			loaded, err := Load(dir)
			require.NoError(t, err)
			assert.Equal(t, s.Vocabulary().Terms(), loaded.Vocabulary().Terms())
			assert.Equal(t, s.docIDs, loaded.docIDs)
			assert.Equal(t, s.tf, loaded.tf)
			assert.Equal(t, s.df, loaded.df)
		})
	}
}

func TestSaveRejectsUnknownCompression(t *testing.T) {
	s := mustCompute(t, sampleDocs())
	_, err := s.Save(t.TempDir(), "brotli")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestLoadDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	s := mustCompute(t, sampleDocs())
	_, err := s.Save(dir, CompressionNone)
	require.NoError(t, err)

	tf := filepath.Join(dir, TFFile)
	data, err := os.ReadFile(tf)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(tf, data[:len(data)-4], 0644))

	_, err = Load(dir)
	assert.True(t, errors.Is(err, apperrors.ErrDimensionMismatch))
	assert.True(t, apperrors.IsCorrupt(err))
}

func TestLoadInconsistentTermTables(t *testing.T) {
	dir := t.TempDir()
	s := mustCompute(t, sampleDocs())
	_, err := s.Save(dir, CompressionZstd)
	require.NoError(t, err)

	var tables termTables
	require.NoError(t, fileutil.ReadJSON(filepath.Join(dir, TermsFile), &tables))
	tables.TermToID["the"] = 1
	tables.TermToID["king"] = 0
	require.NoError(t, fileutil.WriteJSONAtomic(filepath.Join(dir, TermsFile), tables))

	_, err = Load(dir)
	assert.True(t, errors.Is(err, apperrors.ErrCorruptStore))
}

func TestLoadDFDisagreesWithTF(t *testing.T) {
	dir := t.TempDir()
	s := mustCompute(t, sampleDocs())
	_, err := s.Save(dir, CompressionNone)
	require.NoError(t, err)

	df := filepath.Join(dir, DFFile)
	data, err := os.ReadFile(df)
	require.NoError(t, err)
	data[0]++
	require.NoError(t, os.WriteFile(df, data, 0644))

	_, err = Load(dir)
	assert.True(t, errors.Is(err, apperrors.ErrCorruptStore))
}

func BenchmarkNaiveBestMatch(b *testing.B) {
	s, _ := Compute(randomDocs(11, 200, 500, 40))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.BestMatch(i % s.TermCount())
	}
}

func BenchmarkPrecompute(b *testing.B) {
	s, _ := Compute(randomDocs(11, 200, 500, 40))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Precompute(context.Background(), 4)
	}
}
