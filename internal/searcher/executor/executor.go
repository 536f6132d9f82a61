// Package executor answers queries against a built index: postings
// retrieval from either store, Dice scores and best matches from the term
// statistics, and cross-store integrity verification.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/stats"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/fileutil"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/metrics"
)

type Mode string

const (
	ModeCompressed   Mode = "compressed"
	ModeUncompressed Mode = "uncompressed"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeCompressed, ModeUncompressed:
		return Mode(s), nil
	}
	return "", apperrors.Newf(apperrors.ErrInvalidInput, "unknown retrieval mode %q", s)
}

// Best match methods.
const (
	MethodNaive  = "naive"
	MethodMatrix = "matrix"
)

// PostingsCache fronts store reads. load is called on a miss.
type PostingsCache interface {
	GetOrLoad(ctx context.Context, mode, term string, load func() (index.PostingList, error)) (index.PostingList, bool, error)
}

type Options struct {
	Cache   PostingsCache
	Metrics *metrics.Metrics
}

// Match is the result of a best match query.
type Match struct {
	Term   string  `json:"term"`
	Match  string  `json:"match"`
	Score  float64 `json:"score"`
	Method string  `json:"method"`
}

// TermStats describes one vocabulary entry.
type TermStats struct {
	Term                string `json:"term"`
	ID                  int    `json:"id"`
	DocFreq             uint32 `json:"docFreq"`
	CollectionFrequency uint64 `json:"collectionFrequency"`
}

// Executor holds every store of one index open for reading. All methods are
// safe for concurrent use.
type Executor struct {
	dataDir     string
	defaultMode Mode
	compressed  *segment.Reader
	plain       *segment.PlainReader
	stats       *stats.Stats
	matrix      *stats.DiceMatrix
	docs        []index.DocStats
	docNames    map[int]string
	cache       PostingsCache
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// Open loads the index under cfg.Index.DataDir. The compressed store and the
// document table are required; the uncompressed store and the statistics
// are opened when present.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*Executor, error) {
	dataDir := cfg.Index.DataDir
	e := &Executor{
		dataDir:     dataDir,
		defaultMode: Mode(cfg.Index.DefaultMode),
		cache:       opts.Cache,
		metrics:     opts.Metrics,
		logger:      logger.WithComponent("query-executor"),
	}
	if e.defaultMode == "" {
		e.defaultMode = ModeCompressed
	}

	var err error
	if e.compressed, err = segment.OpenReader(dataDir); err != nil {
		return nil, fmt.Errorf("opening compressed store: %w", err)
	}
	if fileutil.FileExists(filepath.Join(dataDir, segment.LinesFile)) {
		if e.plain, err = segment.OpenPlainReader(dataDir); err != nil {
			e.Close()
			return nil, fmt.Errorf("opening uncompressed store: %w", err)
		}
		if e.plain.Terms() != e.compressed.Terms() {
			e.Close()
			return nil, apperrors.Newf(apperrors.ErrCorruptStore,
				"uncompressed store has %d terms, compressed store %d", e.plain.Terms(), e.compressed.Terms())
		}
	}
	if e.docs, err = indexer.LoadDocuments(dataDir); err != nil {
		e.Close()
		return nil, fmt.Errorf("loading document table: %w", err)
	}
	e.docNames = make(map[int]string, len(e.docs))
	for _, d := range e.docs {
		e.docNames[d.DocID] = d.Name
	}

	if cfg.Stats.Enabled && fileutil.FileExists(filepath.Join(dataDir, stats.MetaFile)) {
		if err := e.openStats(ctx, cfg.Stats); err != nil {
			e.Close()
			return nil, err
		}
	}

	e.logger.Info("index opened",
		"data_dir", dataDir,
		"terms", e.compressed.Terms(),
		"docs", len(e.docs),
		"uncompressed", e.plain != nil,
		"stats", e.stats != nil,
		"dice_matrix", e.matrix != nil,
	)
	return e, nil
}

func (e *Executor) openStats(ctx context.Context, cfg config.StatsConfig) error {
	s, err := stats.Load(e.dataDir)
	if err != nil {
		return fmt.Errorf("loading term statistics: %w", err)
	}
	if s.DocCount() != len(e.docs) {
		return apperrors.Newf(apperrors.ErrDimensionMismatch,
			"statistics cover %d documents, document table has %d", s.DocCount(), len(e.docs))
	}
	if s.TermCount() != e.compressed.Terms() {
		return apperrors.Newf(apperrors.ErrDimensionMismatch,
			"statistics cover %d terms, compressed store has %d", s.TermCount(), e.compressed.Terms())
	}
	e.stats = s

	if !cfg.Precompute {
		return nil
	}
	if s.TermCount() > cfg.MaxPrecomputeTerms {
		e.logger.Warn("vocabulary too large for dice matrix, using naive scan",
			"terms", s.TermCount(),
			"limit", cfg.MaxPrecomputeTerms,
		)
		return nil
	}
	start := time.Now()
	m, err := s.Precompute(ctx, cfg.Workers)
	if err != nil {
		return fmt.Errorf("precomputing dice matrix: %w", err)
	}
	e.matrix = m
	e.logger.Info("dice matrix precomputed",
		"terms", m.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Retrieve returns the postings list of term from the store selected by
// mode. An empty mode uses the configured default.
func (e *Executor) Retrieve(ctx context.Context, term string, mode Mode) (index.PostingList, error) {
	if mode == "" {
		mode = e.defaultMode
	}
	start := time.Now()
	list, cacheStatus, err := e.retrieve(ctx, term, mode)
	e.observeRetrieval(mode, cacheStatus, start, list, err)
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (e *Executor) retrieve(ctx context.Context, term string, mode Mode) (index.PostingList, string, error) {
	if term == "" {
		return nil, "none", apperrors.New(apperrors.ErrInvalidInput, "term must not be empty")
	}
	var load func() (index.PostingList, error)
	switch mode {
	case ModeCompressed:
		load = func() (index.PostingList, error) { return e.compressed.Search(term) }
	case ModeUncompressed:
		if e.plain == nil {
			return nil, "none", apperrors.New(apperrors.ErrInvalidInput, "index was built without the uncompressed store")
		}
		load = func() (index.PostingList, error) { return e.plain.Search(term) }
	default:
		return nil, "none", apperrors.Newf(apperrors.ErrInvalidInput, "unknown retrieval mode %q", mode)
	}
	if e.cache == nil {
		list, err := load()
		return list, "none", err
	}
	list, hit, err := e.cache.GetOrLoad(ctx, string(mode), term, load)
	if hit {
		return list, "hit", err
	}
	return list, "miss", err
}

func (e *Executor) observeRetrieval(mode Mode, cacheStatus string, start time.Time, list index.PostingList, err error) {
	if e.metrics == nil {
		return
	}
	result := "ok"
	switch {
	case err == nil:
		e.metrics.PostingsReturned.Observe(float64(len(list)))
	case apperrors.IsNotFound(err):
		result = "not_found"
	case apperrors.IsCorrupt(err):
		result = "corrupt"
	default:
		result = "error"
	}
	e.metrics.RetrievalsTotal.WithLabelValues(string(mode), result).Inc()
	e.metrics.RetrievalLatency.WithLabelValues(string(mode), cacheStatus).Observe(time.Since(start).Seconds())
	switch cacheStatus {
	case "hit":
		e.metrics.CacheHitsTotal.Inc()
	case "miss":
		e.metrics.CacheMissesTotal.Inc()
	}
}

func (e *Executor) requireStats() error {
	if e.stats == nil {
		return apperrors.New(apperrors.ErrNotFound, "term statistics are not available for this index")
	}
	return nil
}

func (e *Executor) termID(term string) (int, error) {
	if err := e.requireStats(); err != nil {
		return 0, err
	}
	return e.stats.Vocabulary().ID(term)
}

// Dice returns the Dice coefficient of two distinct terms.
func (e *Executor) Dice(termA, termB string) (float64, error) {
	a, err := e.termID(termA)
	if err != nil {
		return 0, err
	}
	b, err := e.termID(termB)
	if err != nil {
		return 0, err
	}
	if e.matrix != nil {
		return e.matrix.Score(a, b)
	}
	return e.stats.Dice(a, b)
}

// BestMatch finds the term with the highest Dice coefficient against term,
// reading the precomputed matrix when one was built.
func (e *Executor) BestMatch(ctx context.Context, term string) (*Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id, err := e.termID(term)
	if err != nil {
		return nil, err
	}
	method := MethodNaive
	var best int
	var score float64
	if e.matrix != nil {
		method = MethodMatrix
		best, score, err = e.matrix.BestMatch(id)
	} else {
		best, score, err = e.stats.BestMatch(id)
	}
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.BestMatchTotal.WithLabelValues(method).Inc()
	}
	match, err := e.stats.Vocabulary().Term(best)
	if err != nil {
		return nil, err
	}
	return &Match{Term: term, Match: match, Score: score, Method: method}, nil
}

// Stats describes term in the vocabulary.
func (e *Executor) Stats(term string) (*TermStats, error) {
	id, err := e.termID(term)
	if err != nil {
		return nil, err
	}
	df, err := e.stats.DF(id)
	if err != nil {
		return nil, err
	}
	cf, err := e.stats.CollectionFrequency(id)
	if err != nil {
		return nil, err
	}
	return &TermStats{Term: term, ID: id, DocFreq: df, CollectionFrequency: cf}, nil
}

// DocName returns the name a document was loaded under.
func (e *Executor) DocName(docID int) (string, bool) {
	name, ok := e.docNames[docID]
	return name, ok
}

func (e *Executor) Documents() []index.DocStats {
	out := make([]index.DocStats, len(e.docs))
	copy(out, e.docs)
	return out
}

func (e *Executor) HasMatrix() bool {
	return e.matrix != nil
}

// Close releases the store files.
func (e *Executor) Close() error {
	var errs []error
	if e.compressed != nil {
		errs = append(errs, e.compressed.Close())
	}
	if e.plain != nil {
		errs = append(errs, e.plain.Close())
	}
	return errors.Join(errs...)
}
