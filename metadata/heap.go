package metadata

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/skdltmxn/clrrefs/internal/stream"
)

// GUIDSize is the size of one #GUID heap record.
const GUIDSize = 16

// ErrHeapIndex is returned for an index that points outside its heap.
var ErrHeapIndex = errors.New("metadata: heap index out of range")

// GUID is a 16-byte record of the #GUID heap, in on-disk byte order.
type GUID [GUIDSize]byte

// String formats the GUID in the registry form {XXXXXXXX-XXXX-...}.
func (g GUID) String() string {
	return fmt.Sprintf("{%08X-%04X-%04X-%02X%02X-%02X%02X%02X%02X%02X%02X}",
		uint32(g[0])|uint32(g[1])<<8|uint32(g[2])<<16|uint32(g[3])<<24,
		uint16(g[4])|uint16(g[5])<<8,
		uint16(g[6])|uint16(g[7])<<8,
		g[8], g[9],
		g[10], g[11], g[12], g[13], g[14], g[15])
}

// StringHeap reads NUL-terminated identifiers from the #Strings heap.
type StringHeap struct {
	stream *Stream
}

// NewStringHeap wraps the #Strings stream.
func NewStringHeap(s *Stream) *StringHeap {
	return &StringHeap{stream: s}
}

// String returns the identifier at heap offset index. The cursor of r is
// restored before returning. Index 0 is the empty string.
//
// Identifiers are UTF-8; byte sequences that are not are decoded as
// Windows-1252 so callers always get valid text.
func (h *StringHeap) String(r *stream.Reader, index uint32) (string, error) {
	off, err := h.stream.Span(uint64(index), 1)
	if err != nil {
		return "", fmt.Errorf("%w: #Strings[0x%x]", ErrHeapIndex, index)
	}

	var raw []byte
	err = r.At(off, func() error {
		var err error
		raw, err = r.ReadCString()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("metadata: #Strings[0x%x]: %w", index, err)
	}
	if int64(len(raw)) >= h.stream.End()-off {
		return "", fmt.Errorf("%w: #Strings[0x%x] is not terminated inside the heap", ErrHeapIndex, index)
	}

	if utf8.Valid(raw) {
		return string(raw), nil
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("metadata: #Strings[0x%x]: %w", index, err)
	}
	return string(decoded), nil
}

// GUIDHeap reads 16-byte records from the #GUID heap.
type GUIDHeap struct {
	stream *Stream
}

// NewGUIDHeap wraps the #GUID stream.
func NewGUIDHeap(s *Stream) *GUIDHeap {
	return &GUIDHeap{stream: s}
}

// Len returns the number of records in the heap.
func (h *GUIDHeap) Len() int {
	return int(h.stream.Size / GUIDSize)
}

// GUID returns the record at the 1-based index. Index 0 is the null GUID.
// The cursor of r is restored before returning.
func (h *GUIDHeap) GUID(r *stream.Reader, index uint32) (GUID, error) {
	var g GUID
	if index == 0 {
		return g, nil
	}

	off, err := h.stream.Span(uint64(index-1)*GUIDSize, GUIDSize)
	if err != nil {
		return g, fmt.Errorf("%w: #GUID[%d]", ErrHeapIndex, index)
	}

	err = r.At(off, func() error {
		var err error
		g, err = r.ReadGUID()
		return err
	})
	if err != nil {
		return g, fmt.Errorf("metadata: #GUID[%d]: %w", index, err)
	}
	return g, nil
}
