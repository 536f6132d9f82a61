package segment

import (
	"bufio"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/fileutil"
)

// File names inside an index data directory.
const (
	BlobFile      = "postings.bin"
	DictFile      = "postings.dict.json"
	FormatVersion = 1
)

// DictEntry maps a term to the byte range of its block in the blob and the
// number of documents it occurs in.
type DictEntry struct {
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
}

// End is the offset one past the entry's last byte.
func (e DictEntry) End() int64 {
	return e.PostOffset + int64(e.PostLen)
}

// Dictionary is the side table persisted next to the blob. Entries are kept
// in write order, so offsets are ascending and contiguous.
type Dictionary struct {
	Version  int         `json:"version"`
	BlobSize int64       `json:"blobSize"`
	Checksum uint32      `json:"crc32"`
	Entries  []DictEntry `json:"entries"`
}

// Writer appends per-term blocks to a single blob. It is the only writer of
// the append cursor; Append calls are serialised.
type Writer struct {
	mu       sync.Mutex
	dataDir  string
	file     *os.File
	buf      *bufio.Writer
	crc      hash.Hash32
	out      io.Writer
	tmpPath  string
	offset   int64
	dict     []DictEntry
	seen     map[string]struct{}
	finished bool
}

// NewWriter starts a new compressed store in dataDir. Nothing is visible
// under the final names until Commit succeeds.
func NewWriter(dataDir string) (*Writer, error) {
	if err := os.MkdirAll(dataDir, fileutil.DirPerm); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	tmpPath := filepath.Join(dataDir, BlobFile+".tmp")
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("creating temp blob file: %w", err)
	}
	w := &Writer{
		dataDir: dataDir,
		file:    f,
		buf:     bufio.NewWriterSize(f, 1<<16),
		crc:     crc32.NewIEEE(),
		tmpPath: tmpPath,
		seen:    make(map[string]struct{}),
	}
	w.out = io.MultiWriter(w.buf, w.crc)
	return w, nil
}

// Append writes block at the current cursor and records its entry.
func (w *Writer) Append(term string, block []byte, docFreq int) (DictEntry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finished {
		return DictEntry{}, fmt.Errorf("append to finished segment writer")
	}
	if _, dup := w.seen[term]; dup {
		return DictEntry{}, apperrors.Newf(apperrors.ErrInvalidInput, "term %q written twice", term)
	}
	if len(block) == 0 {
		return DictEntry{}, apperrors.Newf(apperrors.ErrInvalidInput, "term %q has an empty block", term)
	}
	if _, err := w.out.Write(block); err != nil {
		return DictEntry{}, fmt.Errorf("writing postings for term %q: %w", term, err)
	}
	entry := DictEntry{
		Term:       term,
		PostOffset: w.offset,
		PostLen:    len(block),
		DocFreq:    docFreq,
	}
	w.offset += int64(len(block))
	w.dict = append(w.dict, entry)
	w.seen[term] = struct{}{}
	return entry, nil
}

// Size is the number of blob bytes written so far.
func (w *Writer) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.offset
}

// Commit flushes and syncs the blob, writes the dictionary, and renames both
// into place.
func (w *Writer) Commit() (*Dictionary, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finished {
		return nil, fmt.Errorf("segment writer already finished")
	}
	w.finished = true

	if err := w.buf.Flush(); err != nil {
		w.discard()
		return nil, fmt.Errorf("flushing blob: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		w.discard()
		return nil, fmt.Errorf("syncing blob file: %w", err)
	}
	if err := w.file.Close(); err != nil {
		os.Remove(w.tmpPath)
		return nil, fmt.Errorf("closing blob file: %w", err)
	}
	dict := &Dictionary{
		Version:  FormatVersion,
		BlobSize: w.offset,
		Checksum: w.crc.Sum32(),
		Entries:  w.dict,
	}
	if err := fileutil.WriteJSONAtomic(filepath.Join(w.dataDir, DictFile), dict); err != nil {
		os.Remove(w.tmpPath)
		return nil, err
	}
	if err := os.Rename(w.tmpPath, filepath.Join(w.dataDir, BlobFile)); err != nil {
		return nil, fmt.Errorf("renaming blob file: %w", err)
	}
	return dict, nil
}

// Abort drops everything written so far.
func (w *Writer) Abort() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finished {
		return
	}
	w.finished = true
	w.discard()
}

func (w *Writer) discard() {
	w.file.Close()
	os.Remove(w.tmpPath)
}

// WriteAll compresses and appends every entry in order, then commits.
func WriteAll(dataDir string, entries []index.TermEntry) (*Dictionary, error) {
	if len(entries) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "cannot write an empty store")
	}
	w, err := NewWriter(dataDir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		runs := codec.RunSequence(entry.Postings)
		block := codec.EncodeVByte(codec.Flatten(runs))
		if _, err := w.Append(entry.Term, block, len(runs)); err != nil {
			w.Abort()
			return nil, err
		}
	}
	return w.Commit()
}
