package executor

import (
	"context"
	"fmt"
	"slices"

	apperrors "github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/health"
)

// Verify runs every integrity check over the open stores concurrently.
func (e *Executor) Verify(ctx context.Context) health.Report {
	checker := health.NewChecker()
	checker.Register("compressed", e.checkCompressed)
	checker.Register("uncompressed", e.checkUncompressed)
	checker.Register("stats", e.checkStats)
	checker.Register("documents", e.checkDocuments)

	report := checker.Run(ctx)
	if e.metrics != nil {
		for name, res := range report.Components {
			e.metrics.IntegrityChecksTotal.WithLabelValues(name, string(res.Status)).Inc()
		}
	}
	return report
}

// checkCompressed validates the blob checksum and that every block decodes.
func (e *Executor) checkCompressed(ctx context.Context) error {
	if err := e.compressed.Verify(); err != nil {
		return err
	}
	for _, entry := range e.compressed.Entries() {
		if err := ctx.Err(); err != nil {
			return err
		}
		list, err := e.compressed.Search(entry.Term)
		if err != nil {
			return err
		}
		if docs := countDocs(list); docs != entry.DocFreq {
			return apperrors.Newf(apperrors.ErrCorruptStore,
				"term %q decodes to %d documents, dictionary says %d", entry.Term, docs, entry.DocFreq)
		}
	}
	return nil
}

// checkUncompressed requires both stores to return identical lists for every
// term.
func (e *Executor) checkUncompressed(ctx context.Context) error {
	if e.plain == nil {
		return fmt.Errorf("no uncompressed store: %w", health.ErrSkipped)
	}
	for _, entry := range e.compressed.Entries() {
		if err := ctx.Err(); err != nil {
			return err
		}
		want, err := e.compressed.Search(entry.Term)
		if err != nil {
			return err
		}
		got, err := e.plain.Search(entry.Term)
		if err != nil {
			return err
		}
		if !slices.Equal(want, got) {
			return apperrors.Newf(apperrors.ErrCorruptStore, "stores disagree on term %q", entry.Term)
		}
	}
	return nil
}

// checkStats compares DF against the per-term document counts of the
// compressed store.
func (e *Executor) checkStats(ctx context.Context) error {
	if e.stats == nil {
		return fmt.Errorf("no term statistics: %w", health.ErrSkipped)
	}
	vocab := e.stats.Vocabulary()
	for _, entry := range e.compressed.Entries() {
		if err := ctx.Err(); err != nil {
			return err
		}
		id, err := vocab.ID(entry.Term)
		if err != nil {
			return apperrors.Newf(apperrors.ErrCorruptStore, "term %q missing from statistics", entry.Term)
		}
		df, err := e.stats.DF(id)
		if err != nil {
			return err
		}
		if int(df) != entry.DocFreq {
			return apperrors.Newf(apperrors.ErrDimensionMismatch,
				"term %q has df %d, compressed store has %d documents", entry.Term, df, entry.DocFreq)
		}
	}
	return nil
}

func (e *Executor) checkDocuments(context.Context) error {
	for i := 1; i < len(e.docs); i++ {
		if e.docs[i].DocID <= e.docs[i-1].DocID {
			return apperrors.Newf(apperrors.ErrCorruptStore,
				"document table out of order at %d: %d after %d", i, e.docs[i].DocID, e.docs[i-1].DocID)
		}
	}
	if e.stats == nil {
		return nil
	}
	for col, d := range e.docs {
		if e.stats.DocID(col) != d.DocID {
			return apperrors.Newf(apperrors.ErrCorruptStore,
				"statistics column %d is document %d, document table says %d", col, e.stats.DocID(col), d.DocID)
		}
	}
	return nil
}
