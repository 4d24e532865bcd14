package tables

// IndexWidth returns the on-disk width of an index into a table with the
// given row count when tagBits low bits are reserved for a coded index tag.
// The boundary is inclusive: a table whose row count reaches the largest
// value the short form can carry already gets the long form.
func IndexWidth(rows uint32, tagBits uint) int {
	if uint64(rows) >= uint64(1)<<(16-tagBits)-1 {
		return 4
	}
	return 2
}

// CodedWidth returns the width of a coded index of family c. It is 4 when
// any target table is large enough to need it, 2 otherwise.
func CodedWidth(c CodedKind, rowCount func(Kind) uint32) int {
	spec := c.Spec()
	width := 2
	for _, k := range spec.Tags {
		if k == noTable {
			continue
		}
		if w := IndexWidth(rowCount(k), spec.Bits); w > width {
			width = w
		}
	}
	return width
}

// Widths holds every index width derived from a #~ header.
type Widths struct {
	String int
	GUID   int
	Blob   int

	// Coded holds the width of each coded index family.
	Coded [NumCoded]int

	// Table holds the width of a plain index into each table.
	Table [MaxKinds]int
}

// NewWidths computes the widths for h.
func NewWidths(h *Header) *Widths {
	w := &Widths{
		String: heapWidth(h.HeapSizes, HeapStringWide),
		GUID:   heapWidth(h.HeapSizes, HeapGUIDWide),
		Blob:   heapWidth(h.HeapSizes, HeapBlobWide),
	}
	for k := range w.Table {
		w.Table[k] = IndexWidth(h.RowCount(Kind(k)), 0)
	}
	for c := range w.Coded {
		w.Coded[c] = CodedWidth(CodedKind(c), h.RowCount)
	}
	return w
}

func heapWidth(sizes, bit uint8) int {
	if sizes&bit != 0 {
		return 4
	}
	return 2
}
