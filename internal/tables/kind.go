// Package tables decodes the #~ tables stream: its header, the index widths
// derived from it, the fixed per-table schemas and the resulting layout.
package tables

import "fmt"

// Kind identifies a metadata table. The value is the table's bit in the
// catalog mask.
type Kind uint8

// MaxKinds is the number of bits in the catalog mask.
const MaxKinds = 64

// Table kinds defined by ECMA-335 II.22
const (
	Module                 Kind = 0x00
	TypeRef                Kind = 0x01
	TypeDef                Kind = 0x02
	FieldPtr               Kind = 0x03
	Field                  Kind = 0x04
	MethodPtr              Kind = 0x05
	MethodDef              Kind = 0x06
	ParamPtr               Kind = 0x07
	Param                  Kind = 0x08
	InterfaceImpl          Kind = 0x09
	MemberRef              Kind = 0x0A
	Constant               Kind = 0x0B
	CustomAttribute        Kind = 0x0C
	FieldMarshal           Kind = 0x0D
	DeclSecurity           Kind = 0x0E
	ClassLayout            Kind = 0x0F
	FieldLayout            Kind = 0x10
	StandAloneSig          Kind = 0x11
	EventMap               Kind = 0x12
	EventPtr               Kind = 0x13
	Event                  Kind = 0x14
	PropertyMap            Kind = 0x15
	PropertyPtr            Kind = 0x16
	Property               Kind = 0x17
	MethodSemantics        Kind = 0x18
	MethodImpl             Kind = 0x19
	ModuleRef              Kind = 0x1A
	TypeSpec               Kind = 0x1B
	ImplMap                Kind = 0x1C
	FieldRVA               Kind = 0x1D
	ENCLog                 Kind = 0x1E
	ENCMap                 Kind = 0x1F
	Assembly               Kind = 0x20
	AssemblyProcessor      Kind = 0x21
	AssemblyOS             Kind = 0x22
	AssemblyRef            Kind = 0x23
	AssemblyRefProcessor   Kind = 0x24
	AssemblyRefOS          Kind = 0x25
	File                   Kind = 0x26
	ExportedType           Kind = 0x27
	ManifestResource       Kind = 0x28
	NestedClass            Kind = 0x29
	GenericParam           Kind = 0x2A
	MethodSpec             Kind = 0x2B
	GenericParamConstraint Kind = 0x2C

	// NumKnown is one past the highest kind with a known schema.
	NumKnown = 0x2D
)

var kindNames = [NumKnown]string{
	Module:                 "Module",
	TypeRef:                "TypeRef",
	TypeDef:                "TypeDef",
	FieldPtr:               "FieldPtr",
	Field:                  "Field",
	MethodPtr:              "MethodPtr",
	MethodDef:              "MethodDef",
	ParamPtr:               "ParamPtr",
	Param:                  "Param",
	InterfaceImpl:          "InterfaceImpl",
	MemberRef:              "MemberRef",
	Constant:               "Constant",
	CustomAttribute:        "CustomAttribute",
	FieldMarshal:           "FieldMarshal",
	DeclSecurity:           "DeclSecurity",
	ClassLayout:            "ClassLayout",
	FieldLayout:            "FieldLayout",
	StandAloneSig:          "StandAloneSig",
	EventMap:               "EventMap",
	EventPtr:               "EventPtr",
	Event:                  "Event",
	PropertyMap:            "PropertyMap",
	PropertyPtr:            "PropertyPtr",
	Property:               "Property",
	MethodSemantics:        "MethodSemantics",
	MethodImpl:             "MethodImpl",
	ModuleRef:              "ModuleRef",
	TypeSpec:               "TypeSpec",
	ImplMap:                "ImplMap",
	FieldRVA:               "FieldRVA",
	ENCLog:                 "ENCLog",
	ENCMap:                 "ENCMap",
	Assembly:               "Assembly",
	AssemblyProcessor:      "AssemblyProcessor",
	AssemblyOS:             "AssemblyOS",
	AssemblyRef:            "AssemblyRef",
	AssemblyRefProcessor:   "AssemblyRefProcessor",
	AssemblyRefOS:          "AssemblyRefOS",
	File:                   "File",
	ExportedType:           "ExportedType",
	ManifestResource:       "ManifestResource",
	NestedClass:            "NestedClass",
	GenericParam:           "GenericParam",
	MethodSpec:             "MethodSpec",
	GenericParamConstraint: "GenericParamConstraint",
}

// Known reports whether the kind has a schema.
func (k Kind) Known() bool {
	return k < NumKnown
}

func (k Kind) String() string {
	if k.Known() {
		return kindNames[k]
	}
	return fmt.Sprintf("Table(0x%02X)", uint8(k))
}
