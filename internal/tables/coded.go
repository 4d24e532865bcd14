package tables

import (
	"errors"
	"fmt"
	"math/bits"
)

// CodedKind identifies one of the coded index families of ECMA-335 II.24.2.6.
type CodedKind uint8

const (
	CustomAttributeType CodedKind = iota
	HasConstant
	HasCustomAttribute
	HasDeclSecurity
	HasFieldMarshal
	HasSemantics
	Implementation
	MemberForwarded
	MemberRefParent
	MethodDefOrRef
	ResolutionScope
	TypeDefOrRef
	TypeOrMethodDef

	// NumCoded is the number of coded index families.
	NumCoded = 13
)

// ErrInvalidCodedIndex is returned for a tag that names no table.
var ErrInvalidCodedIndex = errors.New("tables: invalid coded index")

// noTable marks a reserved tag slot.
const noTable Kind = 0xFF

// CodedSpec is the fixed tag layout of one coded index family. The tag of a
// target is its position in Tags, not its Kind value.
type CodedSpec struct {
	Name string
	Tags []Kind
	Bits uint
}

func codedSpec(name string, tags ...Kind) CodedSpec {
	return CodedSpec{Name: name, Tags: tags, Bits: uint(bits.Len(uint(len(tags) - 1)))}
}

var codedSpecs = [NumCoded]CodedSpec{
	CustomAttributeType: codedSpec("CustomAttributeType",
		noTable, noTable, MethodDef, MemberRef, noTable),
	HasConstant: codedSpec("HasConstant",
		Field, Param, Property),
	HasCustomAttribute: codedSpec("HasCustomAttribute",
		MethodDef, Field, TypeRef, TypeDef, Param, InterfaceImpl, MemberRef, Module,
		DeclSecurity, Property, Event, StandAloneSig, ModuleRef, TypeSpec, Assembly,
		AssemblyRef, File, ExportedType, ManifestResource, GenericParam,
		GenericParamConstraint, MethodSpec),
	HasDeclSecurity: codedSpec("HasDeclSecurity",
		TypeDef, MethodDef, Assembly),
	HasFieldMarshal: codedSpec("HasFieldMarshal",
		Field, Param),
	HasSemantics: codedSpec("HasSemantics",
		Event, Property),
	Implementation: codedSpec("Implementation",
		File, AssemblyRef, ExportedType),
	MemberForwarded: codedSpec("MemberForwarded",
		Field, MethodDef),
	MemberRefParent: codedSpec("MemberRefParent",
		TypeDef, TypeRef, ModuleRef, MethodDef, TypeSpec),
	MethodDefOrRef: codedSpec("MethodDefOrRef",
		MethodDef, MemberRef),
	ResolutionScope: codedSpec("ResolutionScope",
		Module, ModuleRef, AssemblyRef, TypeRef),
	TypeDefOrRef: codedSpec("TypeDefOrRef",
		TypeDef, TypeRef, TypeSpec),
	TypeOrMethodDef: codedSpec("TypeOrMethodDef",
		TypeDef, MethodDef),
}

// Spec returns the tag layout of the family.
func (c CodedKind) Spec() *CodedSpec {
	return &codedSpecs[c]
}

func (c CodedKind) String() string {
	if c < NumCoded {
		return codedSpecs[c].Name
	}
	return fmt.Sprintf("CodedIndex(%d)", uint8(c))
}

// Targets returns the tables the family can reference, skipping reserved
// tags.
func (c CodedKind) Targets() []Kind {
	spec := c.Spec()
	out := make([]Kind, 0, len(spec.Tags))
	for _, k := range spec.Tags {
		if k != noTable {
			out = append(out, k)
		}
	}
	return out
}

// Decode splits a raw coded index into the target table and the zero-based
// row index. A row index of -1 is a null reference.
func Decode(c CodedKind, raw uint32) (Kind, int64, error) {
	spec := c.Spec()
	tag := raw & (1<<spec.Bits - 1)
	if int(tag) >= len(spec.Tags) || spec.Tags[tag] == noTable {
		return 0, 0, fmt.Errorf("%w: %s tag %d in 0x%x", ErrInvalidCodedIndex, spec.Name, tag, raw)
	}
	return spec.Tags[tag], int64(raw>>spec.Bits) - 1, nil
}

// Encode is the inverse of Decode. Row is zero-based; -1 encodes a null
// reference to the given table.
func Encode(c CodedKind, table Kind, row int64) (uint32, error) {
	spec := c.Spec()
	for tag, k := range spec.Tags {
		if k != table || k == noTable {
			continue
		}
		stored := uint64(row + 1)
		if row < -1 || stored > uint64(^uint32(0))>>spec.Bits {
			return 0, fmt.Errorf("%w: %s row %d does not fit", ErrInvalidCodedIndex, spec.Name, row)
		}
		return uint32(stored)<<spec.Bits | uint32(tag), nil
	}
	return 0, fmt.Errorf("%w: %s cannot reference %s", ErrInvalidCodedIndex, spec.Name, table)
}
