// Package indexer runs the write path: documents go through the postings
// builder, every term is encoded concurrently, and the blocks are appended to
// the compressed store by a single writer in first-seen term order. The
// optional uncompressed store, the term statistics and the document table
// are written next to it.
package indexer

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/stats"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/fileutil"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/tracing"
)

// DocsFile maps TF columns to document ids, names and lengths.
const DocsFile = "docs.json"

var storeFiles = []string{
	segment.BlobFile, segment.DictFile,
	segment.PlainFile, segment.LinesFile,
	stats.MetaFile, stats.TermsFile, stats.TFFile, stats.DFFile,
	DocsFile,
}

type Engine struct {
	index   config.IndexConfig
	stats   config.StatsConfig
	metrics *metrics.Metrics
}

// BuildResult summarises one completed build.
type BuildResult struct {
	BuildID           string
	Docs              int
	Terms             int
	CompressedBytes   int64
	UncompressedBytes int64
	Stats             *stats.Meta
	Duration          time.Duration
}

// CompressionRatio is uncompressed bytes per compressed byte, or 0 when the
// uncompressed store was not written.
func (r *BuildResult) CompressionRatio() float64 {
	if r.CompressedBytes == 0 || r.UncompressedBytes == 0 {
		return 0
	}
	return float64(r.UncompressedBytes) / float64(r.CompressedBytes)
}

// NewEngine creates a build engine. m may be nil. A worker count below one
// encodes on a single worker.
func NewEngine(cfg *config.Config, m *metrics.Metrics) *Engine {
	e := &Engine{index: cfg.Index, stats: cfg.Stats, metrics: m}
	if e.index.Workers < 1 {
		e.index.Workers = 1
	}
	return e
}

// Build indexes docs into the configured data directory, replacing whatever
// index was there.
func (e *Engine) Build(ctx context.Context, docs []index.Document) (res *BuildResult, err error) {
	buildID := newBuildID()
	ctx = logger.WithBuildID(ctx, buildID)
	log := logger.FromContext(ctx).With("component", "indexer")
	ctx, root := tracing.Start(ctx, "build", buildID)
	start := time.Now()
	defer func() {
		root.End(err)
		root.Log(log)
		e.observe(root, err)
	}()

	log.Info("index build started",
		"docs", len(docs),
		"data_dir", e.index.DataDir,
		"workers", e.index.Workers,
	)

	builder, err := e.buildPostings(ctx, docs)
	if err != nil {
		return nil, err
	}
	entries := builder.Entries()
	if len(entries) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "corpus contains no tokens")
	}
	root.SetAttr("terms", len(entries))

	blocks, docFreqs, err := e.encode(ctx, entries)
	if err != nil {
		return nil, err
	}
	dict, err := e.writeCompressed(ctx, entries, blocks, docFreqs)
	if err != nil {
		return nil, err
	}
	// The compressed store of this build is in place; if a later stage fails
	// no file of either build may remain for a reader to mix.
	defer func() {
		if err == nil {
			return
		}
		if rmErr := removeFiles(e.index.DataDir, storeFiles...); rmErr != nil {
			log.Error("failed to remove partial index", "error", rmErr)
			return
		}
		log.Warn("partial index removed after failed build", "error", err)
	}()
	res = &BuildResult{
		BuildID:         buildID,
		Docs:            builder.DocCount(),
		Terms:           len(entries),
		CompressedBytes: dict.BlobSize,
	}

	if e.index.WriteUncompressed {
		written, err := e.writePlain(ctx, entries)
		if err != nil {
			return nil, err
		}
		res.UncompressedBytes = written
	} else if err := removeFiles(e.index.DataDir, segment.PlainFile, segment.LinesFile); err != nil {
		return nil, err
	}

	if e.stats.Enabled {
		meta, err := e.writeStats(ctx, docs)
		if err != nil {
			return nil, err
		}
		res.Stats = meta
	} else if err := removeFiles(e.index.DataDir, stats.MetaFile, stats.TermsFile, stats.TFFile, stats.DFFile); err != nil {
		return nil, err
	}

	if err := fileutil.WriteJSONAtomic(filepath.Join(e.index.DataDir, DocsFile), builder.Documents()); err != nil {
		return nil, fmt.Errorf("writing document table: %w", err)
	}

	res.Duration = time.Since(start)
	log.Info("index build finished",
		"docs", res.Docs,
		"terms", res.Terms,
		"compressed_bytes", res.CompressedBytes,
		"uncompressed_bytes", res.UncompressedBytes,
		"compression_ratio", res.CompressionRatio(),
		"duration_ms", res.Duration.Milliseconds(),
	)
	e.record(res)
	return res, nil
}

func (e *Engine) buildPostings(ctx context.Context, docs []index.Document) (*index.Builder, error) {
	_, span := tracing.StartChild(ctx, "postings")
	builder := index.NewBuilder()
	err := builder.AddAll(docs)
	span.SetAttr("docs", builder.DocCount())
	span.SetAttr("approx_bytes", builder.Size())
	span.End(err)
	if err != nil {
		return nil, err
	}
	return builder, nil
}

// encode runs the codec pipeline for every term on a bounded worker pool.
// Each task owns one slot of the output slices.
func (e *Engine) encode(ctx context.Context, entries []index.TermEntry) ([][]byte, []int, error) {
	ctx, span := tracing.StartChild(ctx, "encode")
	blocks := make([][]byte, len(entries))
	docFreqs := make([]int, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.index.Workers)
	for i := range entries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			runs := codec.RunSequence(entries[i].Postings)
			blocks[i] = codec.EncodeVByte(codec.Flatten(runs))
			docFreqs[i] = len(runs)
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	span.SetAttr("terms", len(entries))
	span.End(err)
	if err != nil {
		return nil, nil, err
	}
	return blocks, docFreqs, nil
}

func (e *Engine) writeCompressed(ctx context.Context, entries []index.TermEntry, blocks [][]byte, docFreqs []int) (*segment.Dictionary, error) {
	_, span := tracing.StartChild(ctx, "write_compressed")
	dict, err := func() (*segment.Dictionary, error) {
		w, err := segment.NewWriter(e.index.DataDir)
		if err != nil {
			return nil, err
		}
		for i, entry := range entries {
			if _, err := w.Append(entry.Term, blocks[i], docFreqs[i]); err != nil {
				w.Abort()
				return nil, err
			}
		}
		return w.Commit()
	}()
	if dict != nil {
		span.SetAttr("bytes", dict.BlobSize)
	}
	span.End(err)
	if err != nil {
		return nil, fmt.Errorf("writing compressed store: %w", err)
	}
	return dict, nil
}

func (e *Engine) writePlain(ctx context.Context, entries []index.TermEntry) (int64, error) {
	_, span := tracing.StartChild(ctx, "write_uncompressed")
	_, written, err := segment.WritePlain(e.index.DataDir, entries)
	span.SetAttr("bytes", written)
	span.End(err)
	if err != nil {
		return 0, fmt.Errorf("writing uncompressed store: %w", err)
	}
	return written, nil
}

func (e *Engine) writeStats(ctx context.Context, docs []index.Document) (*stats.Meta, error) {
	_, span := tracing.StartChild(ctx, "stats")
	meta, err := func() (*stats.Meta, error) {
		s, err := stats.Compute(docs)
		if err != nil {
			return nil, err
		}
		return s.Save(e.index.DataDir, e.stats.Compression)
	}()
	span.SetAttr("compression", e.stats.Compression)
	span.End(err)
	if err != nil {
		return nil, fmt.Errorf("writing term statistics: %w", err)
	}
	return meta, nil
}

// LoadDocuments reads the document table written by Build.
func LoadDocuments(dataDir string) ([]index.DocStats, error) {
	var docs []index.DocStats
	if err := fileutil.ReadJSON(filepath.Join(dataDir, DocsFile), &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// removeFiles deletes leftovers of a previous build whose store is disabled
// in this one.
func removeFiles(dir string, names ...string) error {
	for _, name := range names {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing stale %s: %w", name, err)
		}
	}
	return nil
}

func (e *Engine) observe(root *tracing.Span, err error) {
	if e.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	e.metrics.BuildsTotal.WithLabelValues(status).Inc()
	root.Walk(func(span *tracing.Span, _ int) {
		e.metrics.BuildStageDuration.WithLabelValues(span.Name).Observe(span.Duration.Seconds())
	})
}

func (e *Engine) record(res *BuildResult) {
	if e.metrics == nil {
		return
	}
	e.metrics.DocsIndexedTotal.Add(float64(res.Docs))
	e.metrics.TermsIndexed.Set(float64(res.Terms))
	e.metrics.StoreBytes.WithLabelValues("compressed").Set(float64(res.CompressedBytes))
	e.metrics.StoreBytes.WithLabelValues("uncompressed").Set(float64(res.UncompressedBytes))
	e.metrics.CompressionRatio.Set(res.CompressionRatio())
}

func newBuildID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
