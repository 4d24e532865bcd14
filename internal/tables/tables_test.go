package tables

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skdltmxn/clrrefs/internal/stream"
	"github.com/skdltmxn/clrrefs/internal/testutil"
	"github.com/skdltmxn/clrrefs/metadata"
)

func load(t *testing.T, b *testutil.Builder) (*Layout, *stream.Reader) {
	t.Helper()
	data := b.Tables()
	r := stream.NewReader(bytes.NewReader(data), int64(len(data)))
	l, err := Load(r, metadata.NewStream(metadata.StreamTables, 0, uint32(len(data))))
	require.NoError(t, err)
	return l, r
}

func headerWith(rows map[Kind]uint32) *Header {
	h := &Header{}
	for k := Kind(0); k < MaxKinds; k++ {
		if n, ok := rows[k]; ok {
			h.Valid |= 1 << k
			h.Rows = append(h.Rows, n)
		}
	}
	return h
}

func TestIndexWidthBoundary(t *testing.T) {
	require.Equal(t, 2, IndexWidth(0, 0))
	require.Equal(t, 2, IndexWidth(0xFFFE, 0))
	require.Equal(t, 4, IndexWidth(0xFFFF, 0))
	require.Equal(t, 4, IndexWidth(0x10000, 0))

	// Two tag bits leave 14 bits for the row.
	require.Equal(t, 2, IndexWidth(0x3FFE, 2))
	require.Equal(t, 4, IndexWidth(0x3FFF, 2))

	// HasCustomAttribute uses five.
	require.Equal(t, 2, IndexWidth(0x07FE, 5))
	require.Equal(t, 4, IndexWidth(0x07FF, 5))
}

func TestCodedWidth(t *testing.T) {
	empty := headerWith(nil)
	for c := CodedKind(0); c < NumCoded; c++ {
		require.Equal(t, 2, CodedWidth(c, empty.RowCount), c.String())
	}

	h := headerWith(map[Kind]uint32{AssemblyRef: 0x3FFF, TypeDef: 10})
	w := NewWidths(h)
	require.Equal(t, 4, w.Coded[ResolutionScope])
	require.Equal(t, 2, w.Coded[TypeDefOrRef])
	require.Equal(t, 4, w.Coded[Implementation])
	require.Equal(t, 2, w.Table[AssemblyRef])
}

func TestHeapWidths(t *testing.T) {
	h := headerWith(nil)
	h.HeapSizes = HeapStringWide | HeapBlobWide
	w := NewWidths(h)
	require.Equal(t, 4, w.String)
	require.Equal(t, 2, w.GUID)
	require.Equal(t, 4, w.Blob)
}

func TestCodedBits(t *testing.T) {
	want := map[CodedKind]uint{
		CustomAttributeType: 3,
		HasConstant:         2,
		HasCustomAttribute:  5,
		HasDeclSecurity:     2,
		HasFieldMarshal:     1,
		HasSemantics:        1,
		Implementation:      2,
		MemberForwarded:     1,
		MemberRefParent:     3,
		MethodDefOrRef:      1,
		ResolutionScope:     2,
		TypeDefOrRef:        2,
		TypeOrMethodDef:     1,
	}
	for c, bits := range want {
		require.Equal(t, bits, c.Spec().Bits, c.String())
	}
	require.Equal(t, DeclSecurity, HasCustomAttribute.Spec().Tags[8])
}

func TestCodedRoundTrip(t *testing.T) {
	for c := CodedKind(0); c < NumCoded; c++ {
		for _, target := range c.Targets() {
			for _, row := range []int64{-1, 0, 1, 1000} {
				raw, err := Encode(c, target, row)
				require.NoError(t, err)

				k, got, err := Decode(c, raw)
				require.NoError(t, err)
				require.Equal(t, target, k, "%s -> %s", c, target)
				require.Equal(t, row, got)
			}
		}
	}
}

func TestDecodeResolutionScope(t *testing.T) {
	k, row, err := Decode(ResolutionScope, 0x0006)
	require.NoError(t, err)
	require.Equal(t, AssemblyRef, k)
	require.EqualValues(t, 0, row)

	k, row, err = Decode(ResolutionScope, 0x0002)
	require.NoError(t, err)
	require.Equal(t, AssemblyRef, k)
	require.EqualValues(t, -1, row)
}

func TestDecodeInvalidTag(t *testing.T) {
	for _, raw := range []uint32{0x08, 0x09, 0x0C, 0x0D, 0x0E, 0x0F} {
		_, _, err := Decode(CustomAttributeType, raw)
		require.ErrorIs(t, err, ErrInvalidCodedIndex, "raw 0x%x", raw)
	}

	_, _, err := Decode(TypeDefOrRef, 0x03)
	require.ErrorIs(t, err, ErrInvalidCodedIndex)

	_, err = Encode(TypeDefOrRef, AssemblyRef, 0)
	require.ErrorIs(t, err, ErrInvalidCodedIndex)
}

func TestRowSizes(t *testing.T) {
	narrow := NewWidths(headerWith(nil))
	require.Equal(t, 10, RowSize(Module, narrow))
	require.Equal(t, 6, RowSize(TypeRef, narrow))
	require.Equal(t, 14, RowSize(TypeDef, narrow))
	require.Equal(t, 2, RowSize(ModuleRef, narrow))
	require.Equal(t, 22, RowSize(Assembly, narrow))
	require.Equal(t, 20, RowSize(AssemblyRef, narrow))
	require.Equal(t, 2, RowSize(StandAloneSig, narrow))
	require.Equal(t, 4, RowSize(InterfaceImpl, narrow))
	require.Equal(t, 6, RowSize(Constant, narrow))
	require.Equal(t, 8, RowSize(File, narrow))

	h := headerWith(nil)
	h.HeapSizes = HeapStringWide | HeapGUIDWide | HeapBlobWide
	wide := NewWidths(h)
	require.Equal(t, 18, RowSize(Module, wide))
	require.Equal(t, 10, RowSize(TypeRef, wide))
}

func TestCompactIndex(t *testing.T) {
	h := headerWith(map[Kind]uint32{Module: 1, TypeRef: 3, AssemblyRef: 2})

	i, ok := h.CompactIndex(AssemblyRef)
	require.True(t, ok)
	require.Equal(t, 2, i)

	_, ok = h.CompactIndex(TypeDef)
	require.False(t, ok)

	require.EqualValues(t, 3, h.RowCount(TypeRef))
	require.EqualValues(t, 0, h.RowCount(TypeDef))
	require.Equal(t, []Kind{Module, TypeRef, AssemblyRef}, h.Kinds())
}

func TestLayoutOffsets(t *testing.T) {
	b := testutil.New()
	b.Module("app.dll", [16]byte{1})
	asm := b.AssemblyRef("Lib")
	b.TypeRef(testutil.Scope(testutil.ScopeAssemblyRef, asm), "N", "A")
	b.TypeRef(testutil.Scope(testutil.ScopeAssemblyRef, asm), "N", "B")
	b.ModuleRef("native.dll")

	l, _ := load(t, b)
	require.Equal(t, []Kind{Module, TypeRef, ModuleRef, AssemblyRef}, l.Kinds())

	// 24-byte header plus four row counts.
	require.EqualValues(t, 40, l.Header.TablesOffset)
	require.EqualValues(t, 40, l.Table(Module).Offset)

	kinds := l.Kinds()
	for i := 1; i < len(kinds); i++ {
		prev, cur := l.Table(kinds[i-1]), l.Table(kinds[i])
		require.Equal(t, prev.Offset+prev.Size(), cur.Offset)
	}

	off, err := l.RowOffset(TypeRef, 1)
	require.NoError(t, err)
	require.Equal(t, l.Table(TypeRef).Offset+6, off)

	row, err := l.RowAt(TypeRef, off)
	require.NoError(t, err)
	require.EqualValues(t, 1, row)

	_, err = l.RowOffset(TypeRef, 2)
	require.ErrorIs(t, err, ErrRowOutOfRange)
	_, err = l.RowOffset(TypeDef, 0)
	require.ErrorIs(t, err, ErrRowOutOfRange)
	_, err = l.RowAt(TypeRef, off+1)
	require.ErrorIs(t, err, ErrRowOutOfRange)
}

func TestRowDecoders(t *testing.T) {
	b := testutil.New()
	b.Module("app.dll", [16]byte{1})
	b.Assembly("app", 1, 2, 3, 4)
	asm := b.AssemblyRef("Lib")
	b.TypeRef(testutil.Scope(testutil.ScopeAssemblyRef, asm), "N", "Outer")
	b.ModuleRef("native.dll")

	l, r := load(t, b)

	off, err := l.RowOffset(TypeRef, 0)
	require.NoError(t, err)
	tr, err := l.TypeRefAt(r, off)
	require.NoError(t, err)
	require.Equal(t, TypeRefRow{
		ResolutionScope: 0x0006,
		TypeName:        b.String("Outer"),
		TypeNamespace:   b.String("N"),
	}, tr)

	off, err = l.RowOffset(AssemblyRef, 0)
	require.NoError(t, err)
	ar, err := l.AssemblyRefAt(r, off)
	require.NoError(t, err)
	require.Equal(t, b.String("Lib"), ar.Name)
	require.EqualValues(t, 4, ar.MajorVersion)

	off, err = l.RowOffset(Assembly, 0)
	require.NoError(t, err)
	a, err := l.AssemblyAt(r, off)
	require.NoError(t, err)
	require.Equal(t, b.String("app"), a.Name)
	require.EqualValues(t, 0x8004, a.HashAlgID)
	require.EqualValues(t, 4, a.RevisionNumber)

	off, err = l.RowOffset(Module, 0)
	require.NoError(t, err)
	m, err := l.ModuleAt(r, off)
	require.NoError(t, err)
	require.Equal(t, b.String("app.dll"), m.Name)
	require.EqualValues(t, 1, m.Mvid)

	off, err = l.RowOffset(ModuleRef, 0)
	require.NoError(t, err)
	mr, err := l.ModuleRefAt(r, off)
	require.NoError(t, err)
	require.Equal(t, b.String("native.dll"), mr.Name)
}

// wideIndexes builds N.Outer.Inner scoped to AssemblyRef "Lib" with every
// heap index and the ResolutionScope index at 4 bytes. Names and the scope
// value land above 0xFFFF so a 2-byte read would truncate them.
func wideIndexes() (*testutil.Builder, uint32) {
	b := testutil.New()
	b.HeapSizes = HeapStringWide | HeapGUIDWide | HeapBlobWide
	b.RawString(bytes.Repeat([]byte{'x'}, 0x10000))
	b.Pad(testutil.TableAssemblyRef, 0x3FFF, 28)
	lib := b.AssemblyRef("Lib")
	outer := b.TypeRef(testutil.Scope(testutil.ScopeAssemblyRef, lib), "N", "Outer")
	b.TypeRef(testutil.Scope(testutil.ScopeTypeRef, outer), "", "Inner")
	return b, lib
}

func TestRowDecodersWideIndexes(t *testing.T) {
	b, lib := wideIndexes()
	l, r := load(t, b)

	require.Equal(t, 4, l.Widths.String)
	require.Equal(t, 4, l.Widths.Coded[ResolutionScope])
	require.Equal(t, 12, l.Table(TypeRef).RowSize)
	require.Equal(t, 28, l.Table(AssemblyRef).RowSize)

	off, err := l.RowOffset(TypeRef, 0)
	require.NoError(t, err)
	tr, err := l.TypeRefAt(r, off)
	require.NoError(t, err)
	require.Equal(t, TypeRefRow{
		ResolutionScope: testutil.Scope(testutil.ScopeAssemblyRef, lib),
		TypeName:        b.String("Outer"),
		TypeNamespace:   b.String("N"),
	}, tr)
	require.Greater(t, tr.ResolutionScope, uint32(0xFFFF))
	require.Greater(t, tr.TypeName, uint32(0xFFFF))

	kind, row, err := Decode(ResolutionScope, tr.ResolutionScope)
	require.NoError(t, err)
	require.Equal(t, AssemblyRef, kind)
	require.EqualValues(t, lib-1, row)

	off, err = l.RowOffset(AssemblyRef, row)
	require.NoError(t, err)
	ar, err := l.AssemblyRefAt(r, off)
	require.NoError(t, err)
	require.Equal(t, b.String("Lib"), ar.Name)
	require.EqualValues(t, 4, ar.MajorVersion)

	off, err = l.RowOffset(TypeRef, 1)
	require.NoError(t, err)
	inner, err := l.TypeRefAt(r, off)
	require.NoError(t, err)
	require.Equal(t, testutil.Scope(testutil.ScopeTypeRef, 1), inner.ResolutionScope)
	require.Equal(t, b.String("Inner"), inner.TypeName)
	require.Zero(t, inner.TypeNamespace)
}

func TestReadRowRestoresCursor(t *testing.T) {
	b := testutil.New()
	b.TypeRef(0, "", "X")
	l, r := load(t, b)

	require.NoError(t, r.SetOffset(3))
	_, err := l.ReadRowIndex(r, TypeRef, 0)
	require.NoError(t, err)
	require.EqualValues(t, 3, r.Offset())
}

func TestLayoutOverflow(t *testing.T) {
	b := testutil.New()
	b.Declare(testutil.TableTypeRef, 100)

	data := b.Tables()
	r := stream.NewReader(bytes.NewReader(data), int64(len(data)))
	_, err := Load(r, metadata.NewStream(metadata.StreamTables, 0, uint32(len(data))))
	require.ErrorIs(t, err, ErrTableOverflow)
}

func TestLayoutUnknownTable(t *testing.T) {
	b := testutil.New()
	b.Declare(0x30, 0)

	data := b.Tables()
	r := stream.NewReader(bytes.NewReader(data), int64(len(data)))
	_, err := Load(r, metadata.NewStream(metadata.StreamTables, 0, uint32(len(data))))
	require.ErrorIs(t, err, ErrUnknownTable)
}

func TestReadHeaderTruncated(t *testing.T) {
	data := testutil.New().Tables()[:10]
	r := stream.NewReader(bytes.NewReader(data), int64(len(data)))
	_, err := ReadHeader(r, metadata.NewStream(metadata.StreamTables, 0, uint32(len(data))))
	require.ErrorIs(t, err, ErrTruncatedHeader)

	// Catalog claims a table whose row count lies past the stream.
	b := testutil.New()
	b.Declare(testutil.TableModule, 0)
	data = b.Tables()[:HeaderSize]
	r = stream.NewReader(bytes.NewReader(data), int64(len(data)))
	_, err = ReadHeader(r, metadata.NewStream(metadata.StreamTables, 0, uint32(len(data))))
	require.ErrorIs(t, err, ErrTruncatedHeader)
}

func TestKindString(t *testing.T) {
	require.Equal(t, "AssemblyRef", AssemblyRef.String())
	require.Equal(t, "Table(0x30)", Kind(0x30).String())
	require.Equal(t, "ResolutionScope", ResolutionScope.String())
}
