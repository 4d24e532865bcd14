// Package testutil builds small managed PE images in memory for tests.
package testutil

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// Table numbers used by the fixture helpers.
const (
	TableModule      uint8 = 0x00
	TableTypeRef     uint8 = 0x01
	TableTypeDef     uint8 = 0x02
	TableModuleRef   uint8 = 0x1A
	TableAssembly    uint8 = 0x20
	TableAssemblyRef uint8 = 0x23
)

// ResolutionScope tags.
const (
	ScopeModule uint32 = iota
	ScopeModuleRef
	ScopeAssemblyRef
	ScopeTypeRef
)

// Scope encodes a ResolutionScope coded index. Row is 1-based; 0 is null.
func Scope(tag, row uint32) uint32 {
	return row<<2 | tag
}

// Field is one column value with its on-disk width.
type Field struct {
	Size  int
	Value uint32
}

func U8(v uint8) Field   { return Field{1, uint32(v)} }
func U16(v uint16) Field { return Field{2, uint32(v)} }
func U32(v uint32) Field { return Field{4, v} }

// Idx is a 2-byte heap, table or coded index.
func Idx(v uint32) Field { return Field{2, v} }

// Rows at which a ResolutionScope index no longer fits in 2 bytes.
const wideScopeRows = 0x3FFF

type table struct {
	rows uint32
	data []byte
}

// Fixture layout
const (
	peOffset      = 0x80
	sectionOffset = 0x200
	sectionRVA    = 0x2000
	metadataRel   = 0x50
	fileAlign     = 0x200
)

// Builder assembles a PE32 image with a CLI header and a metadata block.
// Table rows are appended as raw fields, so the caller controls widths.
type Builder struct {
	Version   string
	HeapSizes uint8

	// NoCLI leaves data directory 14 empty.
	NoCLI bool

	strings   []byte
	stringIdx map[string]uint32
	guids     []byte
	blob      []byte
	tables    map[uint8]*table
	omit      map[string]bool
}

// New returns a Builder with empty heaps.
func New() *Builder {
	return &Builder{
		Version:   "v4.0.30319",
		strings:   []byte{0},
		stringIdx: map[string]uint32{"": 0},
		blob:      []byte{0},
		tables:    make(map[uint8]*table),
		omit:      make(map[string]bool),
	}
}

// String interns s in the #Strings heap and returns its offset.
func (b *Builder) String(s string) uint32 {
	if idx, ok := b.stringIdx[s]; ok {
		return idx
	}
	idx := uint32(len(b.strings))
	b.strings = append(b.strings, s...)
	b.strings = append(b.strings, 0)
	b.stringIdx[s] = idx
	return idx
}

// RawString appends raw bytes as a heap string without interning.
func (b *Builder) RawString(p []byte) uint32 {
	idx := uint32(len(b.strings))
	b.strings = append(b.strings, p...)
	b.strings = append(b.strings, 0)
	return idx
}

// GUID appends g to the #GUID heap and returns its 1-based index.
func (b *Builder) GUID(g [16]byte) uint32 {
	b.guids = append(b.guids, g[:]...)
	return uint32(len(b.guids) / 16)
}

// Row appends a row to the table and returns its 1-based row number.
func (b *Builder) Row(kind uint8, fields ...Field) uint32 {
	t := b.table(kind)
	for _, f := range fields {
		switch f.Size {
		case 1:
			t.data = append(t.data, uint8(f.Value))
		case 2:
			t.data = binary.LittleEndian.AppendUint16(t.data, uint16(f.Value))
		default:
			t.data = binary.LittleEndian.AppendUint32(t.data, f.Value)
		}
	}
	t.rows++
	return t.rows
}

// Pad appends n zeroed rows of rowSize bytes to the table.
func (b *Builder) Pad(kind uint8, n uint32, rowSize int) {
	t := b.table(kind)
	t.data = append(t.data, make([]byte, int(n)*rowSize)...)
	t.rows += n
}

// Str, GUIDIdx and BlobIdx encode heap indexes at the width HeapSizes selects.
func (b *Builder) Str(v uint32) Field     { return b.heapIndex(0x01, v) }
func (b *Builder) GUIDIdx(v uint32) Field { return b.heapIndex(0x02, v) }
func (b *Builder) BlobIdx(v uint32) Field { return b.heapIndex(0x04, v) }

func (b *Builder) heapIndex(flag uint8, v uint32) Field {
	if b.HeapSizes&flag != 0 {
		return U32(v)
	}
	return Idx(v)
}

// ScopeIdx encodes a ResolutionScope index at the width implied by the
// Module, ModuleRef, AssemblyRef and TypeRef row counts so far. Fill those
// tables before adding TypeRef rows that depend on a wide scope.
func (b *Builder) ScopeIdx(v uint32) Field {
	for _, k := range []uint8{TableModule, TableModuleRef, TableAssemblyRef, TableTypeRef} {
		if t, ok := b.tables[k]; ok && t.rows >= wideScopeRows {
			return U32(v)
		}
	}
	return Idx(v)
}

// Declare marks the table present with the given row count and no data.
func (b *Builder) Declare(kind uint8, rows uint32) {
	b.table(kind).rows = rows
}

func (b *Builder) table(kind uint8) *table {
	t, ok := b.tables[kind]
	if !ok {
		t = &table{}
		b.tables[kind] = t
	}
	return t
}

// Omit leaves the named stream out of the directory.
func (b *Builder) Omit(name string) {
	b.omit[name] = true
}

// Module adds a Module row with the given name and MVID.
func (b *Builder) Module(name string, mvid [16]byte) uint32 {
	return b.Row(TableModule, U16(0), b.Str(b.String(name)), b.GUIDIdx(b.GUID(mvid)), b.GUIDIdx(0), b.GUIDIdx(0))
}

// TypeRef adds a TypeRef row.
func (b *Builder) TypeRef(scope uint32, namespace, name string) uint32 {
	return b.Row(TableTypeRef, b.ScopeIdx(scope), b.Str(b.String(name)), b.Str(b.String(namespace)))
}

// ModuleRef adds a ModuleRef row.
func (b *Builder) ModuleRef(name string) uint32 {
	return b.Row(TableModuleRef, b.Str(b.String(name)))
}

// Assembly adds the Assembly row.
func (b *Builder) Assembly(name string, major, minor, build, rev uint16) uint32 {
	return b.Row(TableAssembly, U32(0x8004), U16(major), U16(minor), U16(build), U16(rev),
		U32(0), b.BlobIdx(0), b.Str(b.String(name)), b.Str(0))
}

// AssemblyRef adds an AssemblyRef row.
func (b *Builder) AssemblyRef(name string) uint32 {
	return b.Row(TableAssemblyRef, U16(4), U16(0), U16(0), U16(0), U32(0),
		b.BlobIdx(0), b.Str(b.String(name)), b.Str(0), b.BlobIdx(0))
}

// Tables returns the #~ stream.
func (b *Builder) Tables() []byte {
	kinds := make([]int, 0, len(b.tables))
	var valid uint64
	for k := range b.tables {
		kinds = append(kinds, int(k))
		valid |= 1 << k
	}
	sort.Ints(kinds)

	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0, 2, 0, b.HeapSizes, 1})
	binary.Write(&buf, binary.LittleEndian, valid)
	binary.Write(&buf, binary.LittleEndian, uint64(0))
	for _, k := range kinds {
		binary.Write(&buf, binary.LittleEndian, b.tables[uint8(k)].rows)
	}
	for _, k := range kinds {
		buf.Write(b.tables[uint8(k)].data)
	}
	return pad4(buf.Bytes())
}

// Metadata returns the metadata block starting at the BSJB root.
func (b *Builder) Metadata() []byte {
	type entry struct {
		name string
		data []byte
	}
	var streams []entry
	for _, e := range []entry{
		{"#~", b.Tables()},
		{"#Strings", pad4(b.strings)},
		{"#GUID", b.guids},
		{"#Blob", pad4(b.blob)},
	} {
		if !b.omit[e.name] {
			streams = append(streams, e)
		}
	}

	version := pad4(append([]byte(b.Version), 0))

	headerSize := 16 + len(version) + 4
	for _, s := range streams {
		headerSize += 8 + len(pad4(append([]byte(s.name), 0)))
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(0x424A5342))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	binary.Write(&buf, binary.LittleEndian, uint32(len(version)))
	buf.Write(version)
	binary.Write(&buf, binary.LittleEndian, uint16(0))
	binary.Write(&buf, binary.LittleEndian, uint16(len(streams)))

	offset := headerSize
	for _, s := range streams {
		binary.Write(&buf, binary.LittleEndian, uint32(offset))
		binary.Write(&buf, binary.LittleEndian, uint32(len(s.data)))
		buf.Write(pad4(append([]byte(s.name), 0)))
		offset += len(s.data)
	}
	for _, s := range streams {
		buf.Write(s.data)
	}
	return buf.Bytes()
}

// cliHeader mirrors IMAGE_COR20_HEADER.
type cliHeader struct {
	Size            uint32
	MajorRuntime    uint16
	MinorRuntime    uint16
	Metadata        pe.DataDirectory
	Flags           uint32
	EntryPointToken uint32
	Directories     [6]pe.DataDirectory
}

// Image returns the complete PE file.
func (b *Builder) Image() []byte {
	md := b.Metadata()

	var section bytes.Buffer
	binary.Write(&section, binary.LittleEndian, cliHeader{
		Size:         72,
		MajorRuntime: 2,
		MinorRuntime: 5,
		Metadata:     pe.DataDirectory{VirtualAddress: sectionRVA + metadataRel, Size: uint32(len(md))},
		Flags:        1,
	})
	section.Write(make([]byte, metadataRel-section.Len()))
	section.Write(md)
	rawSize := (section.Len() + fileAlign) &^ (fileAlign - 1)
	section.Write(make([]byte, rawSize-section.Len()))

	var out bytes.Buffer
	dos := make([]byte, peOffset)
	dos[0], dos[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(dos[0x3c:], peOffset)
	out.Write(dos)
	out.WriteString("PE\x00\x00")

	binary.Write(&out, binary.LittleEndian, pe.FileHeader{
		Machine:              pe.IMAGE_FILE_MACHINE_I386,
		NumberOfSections:     1,
		SizeOfOptionalHeader: uint16(binary.Size(pe.OptionalHeader32{})),
		Characteristics:      pe.IMAGE_FILE_EXECUTABLE_IMAGE | pe.IMAGE_FILE_32BIT_MACHINE | pe.IMAGE_FILE_DLL,
	})

	oh := pe.OptionalHeader32{
		Magic:                 0x10b,
		SizeOfCode:            uint32(rawSize),
		BaseOfCode:            sectionRVA,
		ImageBase:             0x10000000,
		SectionAlignment:      0x2000,
		FileAlignment:         fileAlign,
		MajorSubsystemVersion: 4,
		SizeOfImage:           sectionRVA + uint32(rawSize),
		SizeOfHeaders:         sectionOffset,
		Subsystem:             pe.IMAGE_SUBSYSTEM_WINDOWS_CUI,
		NumberOfRvaAndSizes:   16,
	}
	if !b.NoCLI {
		oh.DataDirectory[pe.IMAGE_DIRECTORY_ENTRY_COM_DESCRIPTOR] = pe.DataDirectory{
			VirtualAddress: sectionRVA,
			Size:           72,
		}
	}
	binary.Write(&out, binary.LittleEndian, oh)

	var name [8]uint8
	copy(name[:], ".text")
	binary.Write(&out, binary.LittleEndian, pe.SectionHeader32{
		Name:             name,
		VirtualSize:      uint32(rawSize),
		VirtualAddress:   sectionRVA,
		SizeOfRawData:    uint32(rawSize),
		PointerToRawData: sectionOffset,
		Characteristics:  pe.IMAGE_SCN_CNT_CODE | pe.IMAGE_SCN_MEM_EXECUTE | pe.IMAGE_SCN_MEM_READ,
	})
	out.Write(make([]byte, sectionOffset-out.Len()))
	out.Write(section.Bytes())
	return out.Bytes()
}

// WriteFile writes the image to a temporary file and returns its path.
func (b *Builder) WriteFile(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.dll")
	if err := os.WriteFile(path, b.Image(), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func pad4(p []byte) []byte {
	for len(p)%4 != 0 {
		p = append(p, 0)
	}
	return p
}
