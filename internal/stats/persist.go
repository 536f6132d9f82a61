package stats

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	apperrors "github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/fileutil"
)

// Statistics files inside an index data directory.
const (
	TermsFile = "terms.json"
	TFFile    = "tf.bin"
	DFFile    = "df.bin"
	MetaFile  = "stats.meta.json"

	metaVersion = 1
)

type termTables struct {
	TermToID map[string]int `json:"termToId"`
	IDToTerm []string       `json:"idToTerm"`
}

// Meta records the dimensions the blobs were written with.
type Meta struct {
	Version     int    `json:"version"`
	TermCount   int    `json:"termCount"`
	DocCount    int    `json:"docCount"`
	Compression string `json:"compression"`
	DocIDs      []int  `json:"docIds"`
}

// Save writes the vocabulary, TF and DF to dataDir. TF is flattened
// row-major as little-endian uint32, one row per term id.
func (s *Stats) Save(dataDir, compression string) (*Meta, error) {
	if !ValidCompression(compression) {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "unknown compression %q", compression)
	}
	if err := os.MkdirAll(dataDir, fileutil.DirPerm); err != nil {
		return nil, fmt.Errorf("creating stats directory: %w", err)
	}
	terms := s.vocab.Terms()
	tables := termTables{TermToID: make(map[string]int, len(terms)), IDToTerm: terms}
	for id, term := range terms {
		tables.TermToID[term] = id
	}
	if err := fileutil.WriteJSONAtomic(filepath.Join(dataDir, TermsFile), tables); err != nil {
		return nil, err
	}

	docs := len(s.docIDs)
	tf := make([]byte, 0, len(terms)*docs*4)
	for _, row := range s.tf {
		for _, n := range row {
			tf = binary.LittleEndian.AppendUint32(tf, n)
		}
	}
	df := make([]byte, 0, len(s.df)*4)
	for _, n := range s.df {
		df = binary.LittleEndian.AppendUint32(df, n)
	}
	if err := writeBlob(filepath.Join(dataDir, TFFile), compression, tf); err != nil {
		return nil, err
	}
	if err := writeBlob(filepath.Join(dataDir, DFFile), compression, df); err != nil {
		return nil, err
	}

	meta := &Meta{
		Version:     metaVersion,
		TermCount:   len(terms),
		DocCount:    docs,
		Compression: compression,
		DocIDs:      append([]int(nil), s.docIDs...),
	}
	if err := fileutil.WriteJSONAtomic(filepath.Join(dataDir, MetaFile), meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func writeBlob(path, compression string, raw []byte) error {
	data, err := compressBlob(compression, raw)
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, data)
}

func readBlob(path, compression string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return decompressBlob(compression, data)
}

// Load reads statistics written by Save. Blob sizes are checked against the
// recorded dimensions before anything is decoded.
func Load(dataDir string) (*Stats, error) {
	var meta Meta
	if err := fileutil.ReadJSON(filepath.Join(dataDir, MetaFile), &meta); err != nil {
		return nil, err
	}
	if meta.Version != metaVersion {
		return nil, apperrors.Newf(apperrors.ErrCorruptStore, "unsupported stats version %d", meta.Version)
	}
	if meta.TermCount < 0 || meta.DocCount < 0 {
		return nil, apperrors.Newf(apperrors.ErrDimensionMismatch,
			"negative dimensions %dx%d", meta.TermCount, meta.DocCount)
	}
	if len(meta.DocIDs) != meta.DocCount {
		return nil, apperrors.Newf(apperrors.ErrDimensionMismatch,
			"%d document ids recorded for %d documents", len(meta.DocIDs), meta.DocCount)
	}

	var tables termTables
	if err := fileutil.ReadJSON(filepath.Join(dataDir, TermsFile), &tables); err != nil {
		return nil, err
	}
	if len(tables.IDToTerm) != meta.TermCount {
		return nil, apperrors.Newf(apperrors.ErrDimensionMismatch,
			"vocabulary has %d terms, meta declares %d", len(tables.IDToTerm), meta.TermCount)
	}
	if len(tables.TermToID) != len(tables.IDToTerm) {
		return nil, apperrors.Newf(apperrors.ErrCorruptStore,
			"term tables disagree: %d forward, %d reverse", len(tables.TermToID), len(tables.IDToTerm))
	}
	vocab := NewVocabulary()
	for id, term := range tables.IDToTerm {
		if got, ok := tables.TermToID[term]; !ok || got != id {
			return nil, apperrors.Newf(apperrors.ErrCorruptStore, "term %q maps to %d, expected %d", term, got, id)
		}
		if _, added := vocab.Add(term); !added {
			return nil, apperrors.Newf(apperrors.ErrCorruptStore, "term %q listed twice", term)
		}
	}

	tfRaw, err := readBlob(filepath.Join(dataDir, TFFile), meta.Compression)
	if err != nil {
		return nil, err
	}
	if want := meta.TermCount * meta.DocCount * 4; len(tfRaw) != want {
		return nil, apperrors.Newf(apperrors.ErrDimensionMismatch,
			"tf has %d bytes, want %d for %dx%d", len(tfRaw), want, meta.TermCount, meta.DocCount)
	}
	dfRaw, err := readBlob(filepath.Join(dataDir, DFFile), meta.Compression)
	if err != nil {
		return nil, err
	}
	if want := meta.TermCount * 4; len(dfRaw) != want {
		return nil, apperrors.Newf(apperrors.ErrDimensionMismatch,
			"df has %d bytes, want %d for %d terms", len(dfRaw), want, meta.TermCount)
	}

	s := &Stats{
		vocab:  vocab,
		docIDs: meta.DocIDs,
		tf:     make([][]uint32, meta.TermCount),
		df:     make([]uint32, meta.TermCount),
	}
	for id := range s.tf {
		row := make([]uint32, meta.DocCount)
		base := id * meta.DocCount * 4
		var present uint32
		for col := range row {
			row[col] = binary.LittleEndian.Uint32(tfRaw[base+col*4:])
			if row[col] != 0 {
				present++
			}
		}
		s.tf[id] = row
		s.df[id] = binary.LittleEndian.Uint32(dfRaw[id*4:])
		if s.df[id] != present {
			return nil, apperrors.Newf(apperrors.ErrCorruptStore,
				"df of term %q is %d but tf row has %d documents", tables.IDToTerm[id], s.df[id], present)
		}
	}
	return s, nil
}
