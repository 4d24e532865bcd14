package tables

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"

	"github.com/skdltmxn/clrrefs/internal/stream"
	"github.com/skdltmxn/clrrefs/metadata"
)

// HeaderSize is the size of the fixed part of the #~ header, before the
// row counts.
const HeaderSize = 24

// HeapSizes bits
const (
	HeapStringWide uint8 = 0x01
	HeapGUIDWide   uint8 = 0x02
	HeapBlobWide   uint8 = 0x04
)

// Errors
var (
	ErrTruncatedHeader = errors.New("tables: truncated #~ header")
	ErrUnknownTable    = errors.New("tables: unknown table in catalog")
	ErrTableOverflow   = errors.New("tables: table data exceeds stream")
	ErrRowOutOfRange   = errors.New("tables: row index out of range")
)

// Header is the #~ stream header.
type Header struct {
	Reserved     uint32
	MajorVersion uint8
	MinorVersion uint8

	// HeapSizes selects 4-byte heap indexes, see HeapStringWide etc.
	HeapSizes uint8
	Reserved2 uint8

	// Valid has bit k set when table k is present.
	Valid uint64

	// Sorted has bit k set when table k is sorted.
	Sorted uint64

	// Rows holds the row counts of present tables in ascending kind order.
	Rows []uint32

	// TablesOffset is the file offset of the first table row, immediately
	// after the row counts.
	TablesOffset int64
}

// ReadHeader reads the #~ header from the start of s.
func ReadHeader(r *stream.Reader, s *metadata.Stream) (*Header, error) {
	if _, err := s.Span(0, HeaderSize); err != nil {
		return nil, fmt.Errorf("%w: %d-byte stream", ErrTruncatedHeader, s.Size)
	}
	if err := r.SetOffset(s.Offset); err != nil {
		return nil, err
	}

	raw, err := r.ReadBytes(HeaderSize)
	if err != nil {
		return nil, ErrTruncatedHeader
	}

	h := &Header{
		Reserved:     binary.LittleEndian.Uint32(raw[0:4]),
		MajorVersion: raw[4],
		MinorVersion: raw[5],
		HeapSizes:    raw[6],
		Reserved2:    raw[7],
		Valid:        binary.LittleEndian.Uint64(raw[8:16]),
		Sorted:       binary.LittleEndian.Uint64(raw[16:24]),
	}

	count := bits.OnesCount64(h.Valid)
	if _, err := s.Span(HeaderSize, uint64(count)*4); err != nil {
		return nil, fmt.Errorf("%w: %d row counts do not fit", ErrTruncatedHeader, count)
	}

	h.Rows = make([]uint32, count)
	for i := range h.Rows {
		if h.Rows[i], err = r.ReadU32(); err != nil {
			return nil, ErrTruncatedHeader
		}
	}
	h.TablesOffset = r.Offset()

	return h, nil
}

// Present reports whether table k is in the catalog.
func (h *Header) Present(k Kind) bool {
	return k < MaxKinds && h.Valid&(1<<k) != 0
}

// CompactIndex maps a table kind to its position in Rows. The position is
// the number of present tables with a lower kind.
func (h *Header) CompactIndex(k Kind) (int, bool) {
	if !h.Present(k) {
		return 0, false
	}
	return bits.OnesCount64(h.Valid & (1<<k - 1)), true
}

// RowCount returns the number of rows of table k, zero when absent.
func (h *Header) RowCount(k Kind) uint32 {
	i, ok := h.CompactIndex(k)
	if !ok {
		return 0
	}
	return h.Rows[i]
}

// Kinds returns the present table kinds in ascending order.
func (h *Header) Kinds() []Kind {
	out := make([]Kind, 0, len(h.Rows))
	for v := h.Valid; v != 0; v &= v - 1 {
		out = append(out, Kind(bits.TrailingZeros64(v)))
	}
	return out
}
