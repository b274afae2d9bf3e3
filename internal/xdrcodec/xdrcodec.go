// Package xdrcodec implements the canonical binary encoding used to derive
// cache keys and content hashes across the ledger application core. It
// follows the XDR idiom stellar-core's generated bindings use — fixed-width
// big-endian integers, four-byte-aligned length-prefixed opaque data — without
// depending on a full XDR code generator.
package xdrcodec

import (
	"bytes"
	"encoding/binary"

	"github.com/stellar/go/support/errors"
)

// Hash is a 32-byte SHA-256 digest.
type Hash [32]byte

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Encoder accumulates a canonical byte stream. The zero value is ready to
// use.
type Encoder struct {
	buf bytes.Buffer
}

// Bytes returns the accumulated byte stream.
func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

// Uint32 writes a big-endian uint32.
func (e *Encoder) Uint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

// Int32 writes a big-endian int32.
func (e *Encoder) Int32(v int32) {
	e.Uint32(uint32(v))
}

// Uint64 writes a big-endian uint64.
func (e *Encoder) Uint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
}

// Int64 writes a big-endian int64.
func (e *Encoder) Int64(v int64) {
	e.Uint64(uint64(v))
}

// Bool writes a one-word boolean, XDR style (0 or 1, widened to 4 bytes).
func (e *Encoder) Bool(v bool) {
	if v {
		e.Uint32(1)
	} else {
		e.Uint32(0)
	}
}

// Fixed writes opaque data of a known, unpadded fixed length (e.g. a 32-byte
// public key). Callers are responsible for choosing a length that does not
// require padding, mirroring XDR's fixed-length opaque arrays.
func (e *Encoder) Fixed(b []byte) {
	e.buf.Write(b)
}

// Opaque writes a length-prefixed variable-length byte string, padded to a
// four-byte boundary with zero bytes the way XDR requires.
func (e *Encoder) Opaque(b []byte) {
	e.Uint32(uint32(len(b)))
	e.buf.Write(b)
	if pad := (4 - len(b)%4) % 4; pad != 0 {
		var zeros [4]byte
		e.buf.Write(zeros[:pad])
	}
}

// String writes a length-prefixed string using the same padding rule as
// Opaque.
func (e *Encoder) String(s string) {
	e.Opaque([]byte(s))
}

// ErrBadEncoding is returned by decoders when the byte stream is truncated
// or otherwise malformed.
var ErrBadEncoding = errors.New("xdrcodec: truncated or malformed encoding")

// Decoder reads values written by Encoder, in the same order.
type Decoder struct {
	b   []byte
	pos int
}

// NewDecoder wraps b for sequential decoding.
func NewDecoder(b []byte) *Decoder {
	return &Decoder{b: b}
}

func (d *Decoder) take(n int) ([]byte, error) {
	if d.pos+n > len(d.b) {
		return nil, ErrBadEncoding
	}
	out := d.b[d.pos : d.pos+n]
	d.pos += n
	return out, nil
}

// Uint32 reads a big-endian uint32.
func (d *Decoder) Uint32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// Int32 reads a big-endian int32.
func (d *Decoder) Int32() (int32, error) {
	v, err := d.Uint32()
	return int32(v), err
}

// Uint64 reads a big-endian uint64.
func (d *Decoder) Uint64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// Int64 reads a big-endian int64.
func (d *Decoder) Int64() (int64, error) {
	v, err := d.Uint64()
	return int64(v), err
}

// Bool reads a one-word boolean.
func (d *Decoder) Bool() (bool, error) {
	v, err := d.Uint32()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// Fixed reads n raw bytes.
func (d *Decoder) Fixed(n int) ([]byte, error) {
	return d.take(n)
}

// Opaque reads a length-prefixed, padded byte string.
func (d *Decoder) Opaque() ([]byte, error) {
	n, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	b, err := d.take(int(n))
	if err != nil {
		return nil, err
	}
	if pad := (4 - int(n)%4) % 4; pad != 0 {
		if _, err := d.take(pad); err != nil {
			return nil, err
		}
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// String reads a length-prefixed, padded string.
func (d *Decoder) String() (string, error) {
	b, err := d.Opaque()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Done reports whether the decoder has consumed the entire stream.
func (d *Decoder) Done() bool {
	return d.pos == len(d.b)
}
