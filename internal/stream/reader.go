// Package stream provides the positioned binary reader shared by every
// stage of the metadata parser.
package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Errors returned by Reader
var (
	ErrUnexpectedEOF  = errors.New("stream: unexpected end of data")
	ErrNegativeOffset = errors.New("stream: negative offset")
	ErrInvalidWidth   = errors.New("stream: invalid index width")
)

// maxCString bounds ReadCString so a heap without terminator cannot make the
// reader scan the whole file.
const maxCString = 1 << 16

// Reader is a cursor over a random-access byte source.
// All multi-byte values are read in little-endian order.
//
// A Reader is not safe for concurrent use. Nested reads that must not disturb
// the caller's position go through At.
type Reader struct {
	src    io.ReaderAt
	size   int64
	offset int64
	buf    [8]byte
}

// NewReader creates a Reader over src, which holds size bytes.
func NewReader(src io.ReaderAt, size int64) *Reader {
	return &Reader{src: src, size: size}
}

// Offset returns the current read position.
func (r *Reader) Offset() int64 {
	return r.offset
}

// Size returns the size of the underlying source.
func (r *Reader) Size() int64 {
	return r.size
}

// SetOffset sets the read position.
func (r *Reader) SetOffset(offset int64) error {
	if offset < 0 {
		return ErrNegativeOffset
	}
	r.offset = offset
	return nil
}

// Has reports whether n bytes can be read at off.
func (r *Reader) Has(off, n int64) bool {
	return off >= 0 && n >= 0 && off <= r.size && n <= r.size-off
}

// At runs fn with the cursor moved to offset and restores the previous
// position afterwards, whatever fn returns.
func (r *Reader) At(offset int64, fn func() error) error {
	if offset < 0 {
		return ErrNegativeOffset
	}
	saved := r.offset
	r.offset = offset
	defer func() { r.offset = saved }()
	return fn()
}

// Skip advances the read position by n bytes.
func (r *Reader) Skip(n int64) error {
	if !r.Has(r.offset, n) {
		return ErrUnexpectedEOF
	}
	r.offset += n
	return nil
}

// readAt fills p from the current offset without moving it. A ReaderAt may
// report io.EOF together with a complete read at the end of the source.
func (r *Reader) readAt(p []byte) error {
	n, err := r.src.ReadAt(p, r.offset)
	if n == len(p) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return ErrUnexpectedEOF
	}
	return fmt.Errorf("stream: read at 0x%x: %w", r.offset, err)
}

func (r *Reader) fill(n int) ([]byte, error) {
	if !r.Has(r.offset, int64(n)) {
		return nil, ErrUnexpectedEOF
	}
	p := r.buf[:n]
	if err := r.readAt(p); err != nil {
		return nil, err
	}
	r.offset += int64(n)
	return p, nil
}

// ReadU8 reads an unsigned 8-bit integer.
func (r *Reader) ReadU8() (uint8, error) {
	p, err := r.fill(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

// ReadU16 reads an unsigned 16-bit integer.
func (r *Reader) ReadU16() (uint16, error) {
	p, err := r.fill(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(p), nil
}

// ReadU32 reads an unsigned 32-bit integer.
func (r *Reader) ReadU32() (uint32, error) {
	p, err := r.fill(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p), nil
}

// ReadIndex reads a 2- or 4-byte index field and widens it to 32 bits.
func (r *Reader) ReadIndex(width int) (uint32, error) {
	switch width {
	case 2:
		v, err := r.ReadU16()
		return uint32(v), err
	case 4:
		return r.ReadU32()
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidWidth, width)
	}
}

// ReadBytes reads n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || !r.Has(r.offset, int64(n)) {
		return nil, ErrUnexpectedEOF
	}
	v := make([]byte, n)
	if err := r.readAt(v); err != nil {
		return nil, err
	}
	r.offset += int64(n)
	return v, nil
}

// ReadCString reads a null-terminated string of raw bytes.
func (r *Reader) ReadCString() ([]byte, error) {
	var out []byte
	for len(out) < maxCString {
		b, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		if b == 0 {
			return out, nil
		}
		out = append(out, b)
	}
	return nil, fmt.Errorf("stream: string at 0x%x exceeds %d bytes", r.offset-int64(len(out)), maxCString)
}

// ReadFixedString reads a fixed-length string, trimming any null padding.
func (r *Reader) ReadFixedString(n int) (string, error) {
	data, err := r.ReadBytes(n)
	if err != nil {
		return "", err
	}

	// Trim at the first null byte
	end := 0
	for end < len(data) && data[end] != 0 {
		end++
	}
	return string(data[:end]), nil
}

// ReadGUID reads a 16-byte GUID.
func (r *Reader) ReadGUID() ([16]byte, error) {
	var guid [16]byte
	data, err := r.ReadBytes(16)
	if err != nil {
		return guid, err
	}
	copy(guid[:], data)
	return guid, nil
}
