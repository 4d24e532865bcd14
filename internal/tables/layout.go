package tables

import (
	"fmt"

	"github.com/skdltmxn/clrrefs/internal/stream"
	"github.com/skdltmxn/clrrefs/metadata"
)

// Table is the position of one table inside the #~ stream.
type Table struct {
	Kind    Kind
	Rows    uint32
	RowSize int

	// Offset is the file offset of row 0.
	Offset int64
}

// Size returns the byte size of the whole table.
func (t Table) Size() int64 {
	return int64(t.Rows) * int64(t.RowSize)
}

// Layout locates every present table of a #~ stream.
type Layout struct {
	Header *Header
	Widths *Widths

	tables [MaxKinds]Table
	kinds  []Kind
}

// NewLayout places the tables of h back to back from h.TablesOffset in
// ascending kind order. Every table must end at or before end.
//
// Returns ErrUnknownTable if the catalog names a table without a schema and
// ErrTableOverflow if a table runs past end.
func NewLayout(h *Header, end int64) (*Layout, error) {
	l := &Layout{
		Header: h,
		Widths: NewWidths(h),
		kinds:  h.Kinds(),
	}

	offset := h.TablesOffset
	for i, k := range l.kinds {
		if !k.Known() {
			return nil, fmt.Errorf("%w: bit %d", ErrUnknownTable, uint8(k))
		}
		t := Table{
			Kind:    k,
			Rows:    h.Rows[i],
			RowSize: RowSize(k, l.Widths),
			Offset:  offset,
		}
		if offset > end || t.Size() > end-offset {
			return nil, fmt.Errorf("%w: %s with %d rows of %d bytes at 0x%x (stream ends at 0x%x)",
				ErrTableOverflow, k, t.Rows, t.RowSize, offset, end)
		}
		l.tables[k] = t
		offset += t.Size()
	}

	return l, nil
}

// Load reads the #~ header of s and lays out its tables.
func Load(r *stream.Reader, s *metadata.Stream) (*Layout, error) {
	h, err := ReadHeader(r, s)
	if err != nil {
		return nil, err
	}
	return NewLayout(h, s.End())
}

// Kinds returns the present tables in ascending kind order.
func (l *Layout) Kinds() []Kind {
	return l.kinds
}

// Table returns the placement of table k. Absent tables have zero rows.
func (l *Layout) Table(k Kind) Table {
	if k >= MaxKinds {
		return Table{Kind: k}
	}
	t := l.tables[k]
	t.Kind = k
	return t
}

// Rows returns the row count of table k.
func (l *Layout) Rows(k Kind) uint32 {
	return l.Table(k).Rows
}

// RowOffset returns the file offset of the zero-based row of table k.
// Returns ErrRowOutOfRange when the table has no such row.
func (l *Layout) RowOffset(k Kind, row int64) (int64, error) {
	t := l.Table(k)
	if row < 0 || row >= int64(t.Rows) {
		return 0, fmt.Errorf("%w: %s row %d of %d", ErrRowOutOfRange, k, row, t.Rows)
	}
	return t.Offset + row*int64(t.RowSize), nil
}

// RowAt is the inverse of RowOffset: it returns the zero-based row that
// starts at offset.
func (l *Layout) RowAt(k Kind, offset int64) (int64, error) {
	t := l.Table(k)
	if t.Rows == 0 || t.RowSize == 0 || offset < t.Offset {
		return 0, fmt.Errorf("%w: %s offset 0x%x", ErrRowOutOfRange, k, offset)
	}
	rel := offset - t.Offset
	row := rel / int64(t.RowSize)
	if rel%int64(t.RowSize) != 0 || row >= int64(t.Rows) {
		return 0, fmt.Errorf("%w: %s offset 0x%x", ErrRowOutOfRange, k, offset)
	}
	return row, nil
}
