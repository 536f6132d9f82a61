package segment

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/fileutil"
)

// Uncompressed store files. Each line of PlainFile is the JSON array of one
// term's flattened run sequence; LinesFile maps terms to line numbers.
const (
	PlainFile = "postings.txt"
	LinesFile = "postings.lines.json"
)

// LineEntry maps a term to its zero-based line in PlainFile.
type LineEntry struct {
	Term string `json:"t"`
	Line int    `json:"n"`
}

type LineTable struct {
	Version int         `json:"version"`
	Lines   int         `json:"lines"`
	Entries []LineEntry `json:"entries"`
}

// WritePlain writes the uncompressed store for entries, one record per term
// in entry order.
func WritePlain(dataDir string, entries []index.TermEntry) (*LineTable, int64, error) {
	if err := os.MkdirAll(dataDir, fileutil.DirPerm); err != nil {
		return nil, 0, fmt.Errorf("creating index directory: %w", err)
	}
	finalPath := filepath.Join(dataDir, PlainFile)
	tmpPath := finalPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, 0, fmt.Errorf("creating temp plain store: %w", err)
	}
	fail := func(err error) (*LineTable, int64, error) {
		f.Close()
		os.Remove(tmpPath)
		return nil, 0, err
	}

	bw := bufio.NewWriterSize(f, 1<<16)
	table := &LineTable{Version: FormatVersion, Entries: make([]LineEntry, 0, len(entries))}
	seen := make(map[string]struct{}, len(entries))
	var written int64
	for i, entry := range entries {
		if _, dup := seen[entry.Term]; dup {
			return fail(apperrors.Newf(apperrors.ErrInvalidInput, "term %q written twice", entry.Term))
		}
		seen[entry.Term] = struct{}{}
		record, err := json.Marshal(codec.Flatten(codec.RunSequence(entry.Postings)))
		if err != nil {
			return fail(fmt.Errorf("marshaling record for term %q: %w", entry.Term, err))
		}
		record = append(record, '\n')
		if _, err := bw.Write(record); err != nil {
			return fail(fmt.Errorf("writing record for term %q: %w", entry.Term, err))
		}
		written += int64(len(record))
		table.Entries = append(table.Entries, LineEntry{Term: entry.Term, Line: i})
	}
	table.Lines = len(entries)
	if err := bw.Flush(); err != nil {
		return fail(fmt.Errorf("flushing plain store: %w", err))
	}
	if err := f.Sync(); err != nil {
		return fail(fmt.Errorf("syncing plain store: %w", err))
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, 0, fmt.Errorf("closing plain store: %w", err)
	}
	if err := fileutil.WriteJSONAtomic(filepath.Join(dataDir, LinesFile), table); err != nil {
		os.Remove(tmpPath)
		return nil, 0, err
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return nil, 0, fmt.Errorf("renaming plain store: %w", err)
	}
	return table, written, nil
}

// PlainReader retrieves records by line number. Line start offsets are
// indexed once at open; each lookup is a single ReadAt.
type PlainReader struct {
	file   *os.File
	starts []int64
	byTerm map[string]int
}

func OpenPlainReader(dataDir string) (*PlainReader, error) {
	tableBytes, err := os.ReadFile(filepath.Join(dataDir, LinesFile))
	if err != nil {
		return nil, fmt.Errorf("reading line table: %w", err)
	}
	var table LineTable
	if err := json.Unmarshal(tableBytes, &table); err != nil {
		return nil, apperrors.Newf(apperrors.ErrCorruptStore, "parsing line table: %v", err)
	}
	f, err := os.Open(filepath.Join(dataDir, PlainFile))
	if err != nil {
		return nil, fmt.Errorf("opening plain store: %w", err)
	}
	starts, err := indexLines(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	if len(starts)-1 != table.Lines {
		f.Close()
		return nil, apperrors.Newf(apperrors.ErrCorruptStore,
			"plain store has %d lines, table declares %d", len(starts)-1, table.Lines)
	}
	byTerm := make(map[string]int, len(table.Entries))
	for _, e := range table.Entries {
		byTerm[e.Term] = e.Line
	}
	return &PlainReader{file: f, starts: starts, byTerm: byTerm}, nil
}

// indexLines returns the byte offset of every line start plus the end of file.
func indexLines(f *os.File) ([]int64, error) {
	starts := []int64{0}
	r := bufio.NewReaderSize(f, 1<<16)
	var offset int64
	for {
		line, err := r.ReadSlice('\n')
		offset += int64(len(line))
		if err == bufio.ErrBufferFull {
			continue
		}
		if err == io.EOF {
			if len(line) > 0 {
				return nil, apperrors.New(apperrors.ErrCorruptStore, "plain store ends without newline")
			}
			return starts, nil
		}
		if err != nil {
			return nil, fmt.Errorf("indexing plain store: %w", err)
		}
		starts = append(starts, offset)
	}
}

// ReadRecord returns the flattened run sequence stored on line n.
func (r *PlainReader) ReadRecord(n int) ([]uint64, error) {
	if n < 0 || n >= len(r.starts)-1 {
		return nil, apperrors.Newf(apperrors.ErrCorruptStore, "line %d outside store of %d lines", n, len(r.starts)-1)
	}
	start, end := r.starts[n], r.starts[n+1]
	buf := make([]byte, end-start)
	if _, err := r.file.ReadAt(buf, start); err != nil {
		return nil, fmt.Errorf("reading line %d: %w", n, err)
	}
	var seq []uint64
	if err := json.Unmarshal(buf, &seq); err != nil {
		return nil, apperrors.Newf(apperrors.ErrCorruptStore, "parsing line %d: %v", n, err)
	}
	return seq, nil
}

// Search reconstructs the postings list of term from its record.
func (r *PlainReader) Search(term string) (index.PostingList, error) {
	n, ok := r.byTerm[term]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "term %q not in line table", term)
	}
	seq, err := r.ReadRecord(n)
	if err != nil {
		return nil, err
	}
	runs, err := codec.ParseRuns(seq)
	if err != nil {
		return nil, fmt.Errorf("decoding term %q: %w", term, err)
	}
	if len(runs) == 0 {
		return nil, apperrors.Newf(apperrors.ErrCorruptStore, "term %q has an empty record", term)
	}
	return codec.FromRuns(runs), nil
}

func (r *PlainReader) Terms() int {
	return len(r.byTerm)
}

func (r *PlainReader) Close() error {
	return r.file.Close()
}
