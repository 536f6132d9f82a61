package segment

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/indexer/codec"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntries(t *testing.T) []index.TermEntry {
	t.Helper()
	b := index.NewBuilder()
	long := make([]string, 0, 40000)
	for i := 0; i < 40000; i++ {
		if i%19999 == 0 {
			long = append(long, "rare")
		} else {
			long = append(long, "filler")
		}
	}
	require.NoError(t, b.AddAll([]index.Document{
		{ID: 0, Tokens: []string{"to", "be", "or", "not", "to", "be"}},
		{ID: 1, Tokens: []string{"enter", "hamlet"}},
		{ID: 2, Tokens: []string{"to", "sleep"}},
		{ID: 300, Tokens: long},
	}))
	return b.Entries()
}

func TestCompressedStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	entries := testEntries(t)

	dict, err := WriteAll(dir, entries)
	require.NoError(t, err)
	require.Len(t, dict.Entries, len(entries))

	r, err := OpenReader(dir)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Verify())
	assert.Equal(t, len(entries), r.Terms())
	for _, e := range entries {
		got, err := r.Search(e.Term)
		require.NoError(t, err, e.Term)
		assert.Equal(t, e.Postings, got, e.Term)
	}

	to, err := r.Lookup("to")
	require.NoError(t, err)
	assert.Equal(t, 2, to.DocFreq)
	assert.Equal(t, int64(0), to.PostOffset)

	_, err = os.Stat(filepath.Join(dir, BlobFile+".tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestOffsetsNeverOverlap(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteAll(dir, testEntries(t))
	require.NoError(t, err)
	r, err := OpenReader(dir)
	require.NoError(t, err)
	defer r.Close()

	entries := r.Entries()
	for i := range entries {
		for j := i + 1; j < len(entries); j++ {
			a, b := entries[i], entries[j]
			disjoint := a.End() <= b.PostOffset || b.End() <= a.PostOffset
			assert.True(t, disjoint, "%s and %s overlap", a.Term, b.Term)
		}
	}
	assert.Equal(t, entries[len(entries)-1].End(), r.BlobSize())
}

func TestSearchUnknownTerm(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteAll(dir, testEntries(t))
	require.NoError(t, err)
	r, err := OpenReader(dir)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Search("yorick")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.False(t, apperrors.IsCorrupt(err))
}

func TestTruncatedBlobIsCorrupt(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteAll(dir, testEntries(t))
	require.NoError(t, err)

	blob := filepath.Join(dir, BlobFile)
	info, err := os.Stat(blob)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(blob, info.Size()-1))

	_, err = OpenReader(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrCorruptStore))
}

func TestFlippedByteFailsVerify(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteAll(dir, testEntries(t))
	require.NoError(t, err)

	blob := filepath.Join(dir, BlobFile)
	data, err := os.ReadFile(blob)
	require.NoError(t, err)
	data[0] ^= 0x01
	require.NoError(t, os.WriteFile(blob, data, 0644))

	r, err := OpenReader(dir)
	require.NoError(t, err)
	defer r.Close()
	assert.True(t, apperrors.IsCorrupt(r.Verify()))
}

func TestWriterRejectsDuplicateTerm(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)
	defer w.Abort()

	block := codec.Compress(index.PostingList{{DocID: 0, Position: 0}})
	_, err = w.Append("a", block, 1)
	require.NoError(t, err)
	_, err = w.Append("a", block, 1)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestAbortLeavesNoStore(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)
	_, err = w.Append("a", codec.Compress(index.PostingList{{DocID: 1, Position: 2}}), 1)
	require.NoError(t, err)
	w.Abort()

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, files)
	_, err = OpenReader(dir)
	assert.Error(t, err)
}

func TestConcurrentReads(t *testing.T) {
	dir := t.TempDir()
	entries := testEntries(t)
	_, err := WriteAll(dir, entries)
	require.NoError(t, err)
	r, err := OpenReader(dir)
	require.NoError(t, err)
	defer r.Close()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, e := range entries {
				got, err := r.Search(e.Term)
				assert.NoError(t, err)
				assert.Equal(t, e.Postings, got)
			}
		}()
	}
	wg.Wait()
}

func TestPlainStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	entries := testEntries(t)

	table, written, err := WritePlain(dir, entries)
	require.NoError(t, err)
	assert.Equal(t, len(entries), table.Lines)
	assert.Positive(t, written)

	r, err := OpenPlainReader(dir)
	require.NoError(t, err)
	defer r.Close()

	for _, e := range entries {
		got, err := r.Search(e.Term)
		require.NoError(t, err, e.Term)
		assert.Equal(t, e.Postings, got)
	}

	seq, err := r.ReadRecord(0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 2, 0, 4, 2, 1, 0}, seq)

	_, err = r.Search("yorick")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestPlainStoreLineCountMismatch(t *testing.T) {
	dir := t.TempDir()
	_, _, err := WritePlain(dir, testEntries(t))
	require.NoError(t, err)

	f, err := os.OpenFile(filepath.Join(dir, PlainFile), os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("[0,1,0]\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = OpenPlainReader(dir)
	assert.True(t, errors.Is(err, apperrors.ErrCorruptStore))
}
