package executor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/metrics"
)

func randomDocs(seed int64, n int) []index.Document {
	rng := rand.New(rand.NewSource(seed))
	docs := make([]index.Document, n)
	id := 0
	for d := range docs {
		id += 1 + rng.Intn(3)
		tokens := make([]string, 5+rng.Intn(60))
		for i := range tokens {
			tokens[i] = fmt.Sprintf("t%d", rng.Intn(80))
		}
		docs[d] = index.Document{ID: id, Name: fmt.Sprintf("scene-%d", id), Tokens: tokens}
	}
	return docs
}

func buildIndex(t *testing.T, docs []index.Document, mutate func(*config.Config)) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Index.DataDir = t.TempDir()
	if mutate != nil {
		mutate(cfg)
	}
	_, err = indexer.NewEngine(cfg, nil).Build(context.Background(), docs)
	require.NoError(t, err)
	return cfg
}

func open(t *testing.T, cfg *config.Config, opts Options) *Executor {
	t.Helper()
	e, err := Open(context.Background(), cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestRetrieveMatchesBuilderInBothModes(t *testing.T) {
	docs := randomDocs(1, 50)
	cfg := buildIndex(t, docs, nil)
	e := open(t, cfg, Options{Metrics: metrics.New(nil)})

	b := index.NewBuilder()
	require.NoError(t, b.AddAll(docs))
	for _, entry := range b.Entries() {
		for _, mode := range []Mode{ModeCompressed, ModeUncompressed} {
			got, err := e.Retrieve(context.Background(), entry.Term, mode)
			require.NoError(t, err)
			assert.Equal(t, entry.Postings, got, "%s/%s", mode, entry.Term)
		}
	}

	got, err := e.Retrieve(context.Background(), b.Entries()[0].Term, "")
	require.NoError(t, err)
	assert.Equal(t, b.Entries()[0].Postings, got)
}

func TestRetrieveErrors(t *testing.T) {
	cfg := buildIndex(t, randomDocs(2, 10), nil)
	e := open(t, cfg, Options{})
	ctx := context.Background()

	_, err := e.Retrieve(ctx, "yorick", ModeCompressed)
	assert.True(t, apperrors.IsNotFound(err))
	_, err = e.Retrieve(ctx, "yorick", ModeUncompressed)
	assert.True(t, apperrors.IsNotFound(err))
	_, err = e.Retrieve(ctx, "", ModeCompressed)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	_, err = e.Retrieve(ctx, "t1", Mode("gzip"))
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestRetrieveUncompressedUnavailable(t *testing.T) {
	cfg := buildIndex(t, randomDocs(3, 10), func(c *config.Config) {
		c.Index.WriteUncompressed = false
	})
	e := open(t, cfg, Options{})
	_, err := e.Retrieve(context.Background(), "t1", ModeUncompressed)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestWorkedExampleRecord(t *testing.T) {
	docs := []index.Document{
		{ID: 0, Tokens: []string{"x", "a", "y", "z", "w", "a"}},
		{ID: 1, Tokens: []string{"q"}},
		{ID: 2, Tokens: []string{"a", "r", "s", "a", "u", "v", "m", "n", "o", "a"}},
	}
	cfg := buildIndex(t, docs, nil)
	e := open(t, cfg, Options{})

	got, err := e.Retrieve(context.Background(), "a", ModeCompressed)
	require.NoError(t, err)
	assert.Equal(t, index.PostingList{
		{DocID: 0, Position: 1}, {DocID: 0, Position: 5},
		{DocID: 2, Position: 0}, {DocID: 2, Position: 3}, {DocID: 2, Position: 9},
	}, got)

	r, err := segment.OpenPlainReader(cfg.Index.DataDir)
	require.NoError(t, err)
	defer r.Close()
	seq, err := r.ReadRecord(1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 2, 1, 4, 2, 3, 0, 3, 6}, seq)
}

type countingCache struct {
	mu    sync.Mutex
	data  map[string]index.PostingList
	loads int
}

func (c *countingCache) GetOrLoad(_ context.Context, mode, term string, load func() (index.PostingList, error)) (index.PostingList, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if list, ok := c.data[mode+"/"+term]; ok {
		return list, true, nil
	}
	list, err := load()
	if err != nil {
		return nil, false, err
	}
	c.loads++
	c.data[mode+"/"+term] = list
	return list, false, nil
}

func TestRetrieveThroughCache(t *testing.T) {
	docs := randomDocs(4, 20)
	cfg := buildIndex(t, docs, nil)
	c := &countingCache{data: make(map[string]index.PostingList)}
	e := open(t, cfg, Options{Cache: c, Metrics: metrics.New(nil)})
	ctx := context.Background()
	term := docs[0].Tokens[0]

	first, err := e.Retrieve(ctx, term, ModeCompressed)
	require.NoError(t, err)
	second, err := e.Retrieve(ctx, term, ModeCompressed)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	_, err = e.Retrieve(ctx, term, ModeUncompressed)
	require.NoError(t, err)
	assert.Equal(t, 2, c.loads)
}

func TestRetrieveResultLabels(t *testing.T) {
	docs := randomDocs(6, 10)
	cfg := buildIndex(t, docs, nil)
	m := metrics.New(nil)
	c := &countingCache{data: make(map[string]index.PostingList)}
	e := open(t, cfg, Options{Cache: c, Metrics: m})
	ctx := context.Background()
	term := docs[0].Tokens[0]

	for i := 0; i < 2; i++ {
		_, err := e.Retrieve(ctx, term, ModeCompressed)
		require.NoError(t, err)
	}
	_, err := e.Retrieve(ctx, "absent-term", ModeCompressed)
	require.True(t, apperrors.IsNotFound(err))

	path := filepath.Join(t.TempDir(), "searcher.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `index_retrievals_total{mode="compressed",result="ok"} 2`)
	assert.Contains(t, text, `index_retrievals_total{mode="compressed",result="not_found"} 1`)
	assert.NotContains(t, text, `result="hit"`)
	assert.Contains(t, text, `index_retrieval_latency_seconds_count{cache_status="hit",mode="compressed"} 1`)
}

func TestBestMatchNaiveAndMatrixAgree(t *testing.T) {
	docs := randomDocs(5, 60)
	cfg := buildIndex(t, docs, nil)

	matrixCfg := *cfg
	matrixCfg.Stats.Precompute = true
	withMatrix := open(t, &matrixCfg, Options{})
	require.True(t, withMatrix.HasMatrix())

	naiveCfg := *cfg
	naiveCfg.Stats.Precompute = false
	naive := open(t, &naiveCfg, Options{})
	require.False(t, naive.HasMatrix())

	limitedCfg := *cfg
	limitedCfg.Stats.MaxPrecomputeTerms = 3
	limited := open(t, &limitedCfg, Options{})
	require.False(t, limited.HasMatrix())

	b := index.NewBuilder()
	require.NoError(t, b.AddAll(docs))
	ctx := context.Background()
	for _, entry := range b.Entries() {
		m1, err := withMatrix.BestMatch(ctx, entry.Term)
		require.NoError(t, err)
		m2, err := naive.BestMatch(ctx, entry.Term)
		require.NoError(t, err)
		assert.Equal(t, MethodMatrix, m1.Method)
		assert.Equal(t, MethodNaive, m2.Method)
		assert.Equal(t, m2.Match, m1.Match, entry.Term)
		assert.Equal(t, m2.Score, m1.Score, entry.Term)
		assert.NotEqual(t, entry.Term, m1.Match)

		d1, err := withMatrix.Dice(entry.Term, m1.Match)
		require.NoError(t, err)
		d2, err := naive.Dice(entry.Term, m1.Match)
		require.NoError(t, err)
		assert.Equal(t, d1, d2)
		assert.Equal(t, m1.Score, d1)
	}
}

func TestDiceAndStats(t *testing.T) {
	docs := []index.Document{
		{ID: 0, Tokens: []string{"the", "king", "the"}},
		{ID: 1, Tokens: []string{"the", "queen"}},
		{ID: 2, Tokens: []string{"king", "queen"}},
	}
	cfg := buildIndex(t, docs, nil)
	e := open(t, cfg, Options{})

	score, err := e.Dice("the", "king")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, score, 1e-12)

	_, err = e.Dice("the", "the")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	_, err = e.Dice("the", "jester")
	assert.True(t, apperrors.IsNotFound(err))

	st, err := e.Stats("the")
	require.NoError(t, err)
	assert.Equal(t, TermStats{Term: "the", ID: 0, DocFreq: 2, CollectionFrequency: 3}, *st)

	_, err = e.BestMatch(context.Background(), "jester")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestStatsDisabled(t *testing.T) {
	cfg := buildIndex(t, randomDocs(6, 10), func(c *config.Config) {
		c.Stats.Enabled = false
	})
	e := open(t, cfg, Options{})
	_, err := e.BestMatch(context.Background(), "t1")
	assert.True(t, apperrors.IsNotFound(err))

	report := e.Verify(context.Background())
	assert.Equal(t, health.StatusOK, report.Status)
	assert.Equal(t, health.StatusSkipped, report.Components["stats"].Status)
}

func TestVerifyHealthyIndex(t *testing.T) {
	cfg := buildIndex(t, randomDocs(7, 30), nil)
	m := metrics.New(nil)
	e := open(t, cfg, Options{Metrics: m})

	report := e.Verify(context.Background())
	require.NoError(t, report.Err())
	assert.Equal(t, health.StatusOK, report.Status)
	for _, name := range []string{"compressed", "uncompressed", "stats", "documents"} {
		assert.Equal(t, health.StatusOK, report.Components[name].Status, name)
	}
}

func TestVerifyDetectsCorruptBlob(t *testing.T) {
	cfg := buildIndex(t, randomDocs(8, 30), nil)
	blob := filepath.Join(cfg.Index.DataDir, segment.BlobFile)
	data, err := os.ReadFile(blob)
	require.NoError(t, err)
	data[len(data)/2] ^= 0x40
	require.NoError(t, os.WriteFile(blob, data, 0644))

	e := open(t, cfg, Options{})
	report := e.Verify(context.Background())
	assert.Equal(t, health.StatusFailed, report.Status)
	assert.True(t, apperrors.IsCorrupt(report.Err()))
	assert.Equal(t, apperrors.ExitCorrupt, apperrors.ExitCode(report.Err()))
}

func TestOpenDetectsDimensionMismatch(t *testing.T) {
	cfg := buildIndex(t, randomDocs(9, 20), nil)
	table, err := indexer.LoadDocuments(cfg.Index.DataDir)
	require.NoError(t, err)
	require.Len(t, table, 20)
	data := []byte(`[{"id":1,"length":1}]`)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Index.DataDir, indexer.DocsFile), data, 0644))

	_, err = Open(context.Background(), cfg, Options{})
	assert.True(t, errors.Is(err, apperrors.ErrDimensionMismatch))
}

func TestOpenMissingIndex(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Index.DataDir = t.TempDir()
	_, err = Open(context.Background(), cfg, Options{})
	assert.Error(t, err)
	assert.False(t, apperrors.IsNotFound(err))
}

func TestGroupByDoc(t *testing.T) {
	groups := GroupByDoc(index.PostingList{
		{DocID: 0, Position: 1}, {DocID: 0, Position: 5}, {DocID: 2, Position: 0},
	})
	assert.Equal(t, []DocPositions{
		{DocID: 0, Positions: []int{1, 5}},
		{DocID: 2, Positions: []int{0}},
	}, groups)
	assert.Nil(t, GroupByDoc(nil))
	assert.Equal(t, 2, countDocs(index.PostingList{{DocID: 0}, {DocID: 0, Position: 1}, {DocID: 3}}))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("uncompressed")
	require.NoError(t, err)
	assert.Equal(t, ModeUncompressed, m)
	_, err = ParseMode("raw")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}
