// Package corpus loads the scene corpus the index is built from and turns
// each scene into an index.Document.
package corpus

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/errors"
)

// Scene is one corpus record. SceneNum becomes the document id and SceneID
// the document name.
type Scene struct {
	SceneNum int    `json:"sceneNum"`
	SceneID  string `json:"sceneId"`
	PlayID   string `json:"playId,omitempty"`
	Text     string `json:"text"`
}

// File is the top-level JSON object of a corpus file.
type File struct {
	Corpus []Scene `json:"corpus"`
}

// Load reads and decodes the corpus file at path.
func Load(path string) ([]index.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a corpus, validates every scene and tokenizes its text.
func Decode(r io.Reader) ([]index.Document, error) {
	var file File
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "parsing corpus: %v", err)
	}
	if file.Corpus == nil {
		return nil, apperrors.New(apperrors.ErrInvalidInput, `corpus has no "corpus" array`)
	}
	return Documents(file.Corpus)
}

// Documents converts scenes to documents in order.
func Documents(scenes []Scene) ([]index.Document, error) {
	docs := make([]index.Document, 0, len(scenes))
	prev := -1
	for i := range scenes {
		sc := &scenes[i]
		if err := ValidateScene(sc, prev); err != nil {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, "scene %d: %v", i, err)
		}
		prev = sc.SceneNum
		docs = append(docs, index.Document{
			ID:     sc.SceneNum,
			Name:   sc.SceneID,
			Tokens: tokenizer.Split(sc.Text),
		})
	}
	return docs, nil
}
