package tables

import (
	"fmt"

	"github.com/skdltmxn/clrrefs/internal/stream"
)

// Row holds the raw column values of one table row, widened to 32 bits, in
// schema order.
type Row []uint32

// ReadRow decodes the row of table k that starts at offset. The cursor of r
// is restored before returning.
func (l *Layout) ReadRow(r *stream.Reader, k Kind, offset int64) (Row, error) {
	cols := Schema(k)
	if cols == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, k)
	}

	row := make(Row, len(cols))
	err := r.At(offset, func() error {
		for i, c := range cols {
			var err error
			if c.Type == ColFixed && c.Size == 1 {
				var v uint8
				v, err = r.ReadU8()
				row[i] = uint32(v)
			} else {
				row[i], err = r.ReadIndex(c.Width(l.Widths))
			}
			if err != nil {
				return fmt.Errorf("tables: %s.%s at 0x%x: %w", k, c.Name, r.Offset(), err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

// ReadRowIndex decodes the zero-based row of table k.
func (l *Layout) ReadRowIndex(r *stream.Reader, k Kind, row int64) (Row, error) {
	off, err := l.RowOffset(k, row)
	if err != nil {
		return nil, err
	}
	return l.ReadRow(r, k, off)
}

// ModuleRow is a row of the Module table.
type ModuleRow struct {
	Generation uint16
	Name       uint32
	Mvid       uint32
	EncID      uint32
	EncBaseID  uint32
}

// TypeRefRow is a row of the TypeRef table.
type TypeRefRow struct {
	// ResolutionScope is a raw ResolutionScope coded index.
	ResolutionScope uint32
	TypeName        uint32
	TypeNamespace   uint32
}

// ModuleRefRow is a row of the ModuleRef table.
type ModuleRefRow struct {
	Name uint32
}

// AssemblyRow is a row of the Assembly table.
type AssemblyRow struct {
	HashAlgID      uint32
	MajorVersion   uint16
	MinorVersion   uint16
	BuildNumber    uint16
	RevisionNumber uint16
	Flags          uint32
	PublicKey      uint32
	Name           uint32
	Culture        uint32
}

// AssemblyRefRow is a row of the AssemblyRef table.
type AssemblyRefRow struct {
	MajorVersion     uint16
	MinorVersion     uint16
	BuildNumber      uint16
	RevisionNumber   uint16
	Flags            uint32
	PublicKeyOrToken uint32
	Name             uint32
	Culture          uint32
	HashValue        uint32
}

// ModuleAt decodes the Module row at offset.
func (l *Layout) ModuleAt(r *stream.Reader, offset int64) (ModuleRow, error) {
	v, err := l.ReadRow(r, Module, offset)
	if err != nil {
		return ModuleRow{}, err
	}
	return ModuleRow{
		Generation: uint16(v[0]),
		Name:       v[1],
		Mvid:       v[2],
		EncID:      v[3],
		EncBaseID:  v[4],
	}, nil
}

// TypeRefAt decodes the TypeRef row at offset.
func (l *Layout) TypeRefAt(r *stream.Reader, offset int64) (TypeRefRow, error) {
	v, err := l.ReadRow(r, TypeRef, offset)
	if err != nil {
		return TypeRefRow{}, err
	}
	return TypeRefRow{ResolutionScope: v[0], TypeName: v[1], TypeNamespace: v[2]}, nil
}

// ModuleRefAt decodes the ModuleRef row at offset.
func (l *Layout) ModuleRefAt(r *stream.Reader, offset int64) (ModuleRefRow, error) {
	v, err := l.ReadRow(r, ModuleRef, offset)
	if err != nil {
		return ModuleRefRow{}, err
	}
	return ModuleRefRow{Name: v[0]}, nil
}

// AssemblyAt decodes the Assembly row at offset.
func (l *Layout) AssemblyAt(r *stream.Reader, offset int64) (AssemblyRow, error) {
	v, err := l.ReadRow(r, Assembly, offset)
	if err != nil {
		return AssemblyRow{}, err
	}
	return AssemblyRow{
		HashAlgID:      v[0],
		MajorVersion:   uint16(v[1]),
		MinorVersion:   uint16(v[2]),
		BuildNumber:    uint16(v[3]),
		RevisionNumber: uint16(v[4]),
		Flags:          v[5],
		PublicKey:      v[6],
		Name:           v[7],
		Culture:        v[8],
	}, nil
}

// AssemblyRefAt decodes the AssemblyRef row at offset.
func (l *Layout) AssemblyRefAt(r *stream.Reader, offset int64) (AssemblyRefRow, error) {
	v, err := l.ReadRow(r, AssemblyRef, offset)
	if err != nil {
		return AssemblyRefRow{}, err
	}
	return AssemblyRefRow{
		MajorVersion:     uint16(v[0]),
		MinorVersion:     uint16(v[1]),
		BuildNumber:      uint16(v[2]),
		RevisionNumber:   uint16(v[3]),
		Flags:            v[4],
		PublicKeyOrToken: v[5],
		Name:             v[6],
		Culture:          v[7],
		HashValue:        v[8],
	}, nil
}
