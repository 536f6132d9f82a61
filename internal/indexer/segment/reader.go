package segment

import (
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/errors"
)

// Reader serves random-access lookups against a committed compressed store.
// It never mutates after OpenReader returns and is safe for concurrent use.
type Reader struct {
	file     *os.File
	filePath string
	dict     Dictionary
	byTerm   map[string]DictEntry
}

func OpenReader(dataDir string) (*Reader, error) {
	dictBytes, err := os.ReadFile(filepath.Join(dataDir, DictFile))
	if err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	var dict Dictionary
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, apperrors.Newf(apperrors.ErrCorruptStore, "parsing dictionary: %v", err)
	}
	if dict.Version != FormatVersion {
		return nil, apperrors.Newf(apperrors.ErrCorruptStore, "unsupported store version %d", dict.Version)
	}

	path := filepath.Join(dataDir, BlobFile)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening blob file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat blob file: %w", err)
	}
	if info.Size() != dict.BlobSize {
		f.Close()
		return nil, apperrors.Newf(apperrors.ErrCorruptStore,
			"blob is %d bytes, dictionary declares %d", info.Size(), dict.BlobSize)
	}

	byTerm := make(map[string]DictEntry, len(dict.Entries))
	for _, e := range dict.Entries {
		if _, dup := byTerm[e.Term]; dup {
			f.Close()
			return nil, apperrors.Newf(apperrors.ErrCorruptStore, "term %q listed twice", e.Term)
		}
		byTerm[e.Term] = e
	}
	return &Reader{
		file:     f,
		filePath: path,
		dict:     dict,
		byTerm:   byTerm,
	}, nil
}

// Lookup returns the offset entry for term.
func (r *Reader) Lookup(term string) (DictEntry, error) {
	entry, ok := r.byTerm[term]
	if !ok {
		return DictEntry{}, apperrors.Newf(apperrors.ErrNotFound, "term %q not in offset table", term)
	}
	return entry, nil
}

// ReadBlock reads exactly the encoded block of term.
func (r *Reader) ReadBlock(term string) ([]byte, error) {
	entry, err := r.Lookup(term)
	if err != nil {
		return nil, err
	}
	if entry.PostOffset < 0 || entry.PostLen <= 0 || entry.End() > r.dict.BlobSize {
		return nil, apperrors.Newf(apperrors.ErrCorruptStore,
			"term %q range [%d,%d) outside blob of %d bytes", term, entry.PostOffset, entry.End(), r.dict.BlobSize)
	}
	block := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(block, entry.PostOffset); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, apperrors.Newf(apperrors.ErrCorruptStore, "short read for term %q", term)
		}
		return nil, fmt.Errorf("reading postings: %w", err)
	}
	return block, nil
}

// Search reconstructs the postings list of term.
func (r *Reader) Search(term string) (index.PostingList, error) {
	block, err := r.ReadBlock(term)
	if err != nil {
		return nil, err
	}
	postings, err := codec.Decompress(block)
	if err != nil {
		return nil, fmt.Errorf("decoding term %q: %w", term, err)
	}
	return postings, nil
}

// Verify recomputes the blob checksum and checks that entries tile the blob
// without gaps or overlaps.
func (r *Reader) Verify() error {
	var next int64
	for _, e := range r.dict.Entries {
		if e.PostOffset != next || e.PostLen <= 0 {
			return apperrors.Newf(apperrors.ErrCorruptStore,
				"term %q at [%d,%d), expected start %d", e.Term, e.PostOffset, e.End(), next)
		}
		next = e.End()
	}
	if next != r.dict.BlobSize {
		return apperrors.Newf(apperrors.ErrCorruptStore, "entries cover %d of %d blob bytes", next, r.dict.BlobSize)
	}
	h := crc32.NewIEEE()
	if _, err := io.Copy(h, io.NewSectionReader(r.file, 0, r.dict.BlobSize)); err != nil {
		return fmt.Errorf("checksumming blob: %w", err)
	}
	if sum := h.Sum32(); sum != r.dict.Checksum {
		return apperrors.Newf(apperrors.ErrCorruptStore, "blob checksum %08x, dictionary has %08x", sum, r.dict.Checksum)
	}
	return nil
}

// Entries returns the offset table in write order.
func (r *Reader) Entries() []DictEntry {
	out := make([]DictEntry, len(r.dict.Entries))
	copy(out, r.dict.Entries)
	return out
}

func (r *Reader) Terms() int {
	return len(r.dict.Entries)
}

func (r *Reader) BlobSize() int64 {
	return r.dict.BlobSize
}

func (r *Reader) Close() error {
	return r.file.Close()
}
