package codec

import (
	apperrors "github.com/Adithya-Monish-Kumar-K/compressed-inverted-index/pkg/errors"
)

// The vbyte layout is little-endian base-128. Every byte but the last of an
// integer has the high bit clear; the last byte has it set. This is the
// reverse of the usual continuation-bit convention and matches the legacy
// index files.
const (
	payloadMask = 0x7f
	stopBit     = 0x80
)

// MaxVByteLen is the longest encoding of a uint64.
const MaxVByteLen = 10

// AppendUvarint appends the vbyte encoding of v to buf.
func AppendUvarint(buf []byte, v uint64) []byte {
	for v >= stopBit {
		buf = append(buf, byte(v&payloadMask))
		v >>= 7
	}
	return append(buf, byte(v)|stopBit)
}

// VByteLen returns the number of bytes AppendUvarint emits for v.
func VByteLen(v uint64) int {
	n := 1
	for v >= stopBit {
		v >>= 7
		n++
	}
	return n
}

// EncodeVByte encodes values back to back.
func EncodeVByte(values []uint64) []byte {
	size := 0
	for _, v := range values {
		size += VByteLen(v)
	}
	buf := make([]byte, 0, size)
	for _, v := range values {
		buf = AppendUvarint(buf, v)
	}
	return buf
}

// Uvarint decodes one integer from the front of buf and returns it with the
// number of bytes consumed. It fails if buf ends before a terminal byte or
// the value does not fit in 64 bits.
func Uvarint(buf []byte) (uint64, int, error) {
	var v uint64
	var shift uint
	for i, b := range buf {
		if i == MaxVByteLen || (i == MaxVByteLen-1 && b&payloadMask > 1) {
			return 0, 0, apperrors.Newf(apperrors.ErrCorruptStore, "vbyte integer overflows 64 bits")
		}
		v |= uint64(b&payloadMask) << shift
		if b&stopBit != 0 {
			return v, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, apperrors.Newf(apperrors.ErrCorruptStore,
		"vbyte integer truncated after %d bytes", len(buf))
}

// DecodeVByte decodes every integer in buf. A single cursor advances by
// exactly the bytes each integer consumed.
func DecodeVByte(buf []byte) ([]uint64, error) {
	out := make([]uint64, 0, len(buf))
	for cursor := 0; cursor < len(buf); {
		v, n, err := Uvarint(buf[cursor:])
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrCorruptStore,
				"decoding integer %d at byte %d: %v", len(out), cursor, err)
		}
		out = append(out, v)
		cursor += n
	}
	return out, nil
}
