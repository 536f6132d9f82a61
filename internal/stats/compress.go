package stats

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	apperrors "github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/errors"
)

// Compression names accepted for the TF and DF blobs.
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
	CompressionLZ4  = "lz4"
)

// ValidCompression reports whether name is a supported blob compression.
func ValidCompression(name string) bool {
	switch name {
	case CompressionNone, CompressionZstd, CompressionLZ4:
		return true
	}
	return false
}

func compressBlob(name string, raw []byte) ([]byte, error) {
	switch name {
	case CompressionNone:
		return raw, nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
	case CompressionLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("lz4 close: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, apperrors.Newf(apperrors.ErrInvalidInput, "unknown compression %q", name)
}

func decompressBlob(name string, data []byte) ([]byte, error) {
	switch name {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		defer dec.Close()
		raw, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrCorruptStore, "zstd decompress: %v", err)
		}
		return raw, nil
	case CompressionLZ4:
		raw, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrCorruptStore, "lz4 decompress: %v", err)
		}
		return raw, nil
	}
	return nil, apperrors.Newf(apperrors.ErrCorruptStore, "unknown compression %q", name)
}
