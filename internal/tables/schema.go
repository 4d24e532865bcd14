package tables

// ColumnType is the storage class of a table column.
type ColumnType uint8

const (
	// ColFixed is a constant-width integer of 1, 2 or 4 bytes.
	ColFixed ColumnType = iota
	ColString
	ColGUID
	ColBlob
	ColCoded
	ColTable
)

// Column describes one field of a table row.
type Column struct {
	Name string
	Type ColumnType

	// Size is the byte width of a ColFixed column.
	Size int

	// Coded is the family of a ColCoded column.
	Coded CodedKind

	// Table is the target of a ColTable column.
	Table Kind
}

// Width returns the on-disk width of the column under w.
func (c Column) Width(w *Widths) int {
	switch c.Type {
	case ColString:
		return w.String
	case ColGUID:
		return w.GUID
	case ColBlob:
		return w.Blob
	case ColCoded:
		return w.Coded[c.Coded]
	case ColTable:
		return w.Table[c.Table]
	default:
		return c.Size
	}
}

func u8(name string) Column  { return Column{Name: name, Type: ColFixed, Size: 1} }
func u16(name string) Column { return Column{Name: name, Type: ColFixed, Size: 2} }
func u32(name string) Column { return Column{Name: name, Type: ColFixed, Size: 4} }
func str(name string) Column { return Column{Name: name, Type: ColString} }
func guid(name string) Column {
	return Column{Name: name, Type: ColGUID}
}
func blob(name string) Column {
	return Column{Name: name, Type: ColBlob}
}
func coded(name string, c CodedKind) Column {
	return Column{Name: name, Type: ColCoded, Coded: c}
}
func index(name string, k Kind) Column {
	return Column{Name: name, Type: ColTable, Table: k}
}

// schemas lists the columns of every known table in on-disk order
// (ECMA-335 II.22).
var schemas = [NumKnown][]Column{
	Module: {u16("Generation"), str("Name"), guid("Mvid"), guid("EncId"), guid("EncBaseId")},
	TypeRef: {coded("ResolutionScope", ResolutionScope), str("TypeName"), str("TypeNamespace")},
	TypeDef: {u32("Flags"), str("TypeName"), str("TypeNamespace"), coded("Extends", TypeDefOrRef),
		index("FieldList", Field), index("MethodList", MethodDef)},
	FieldPtr:  {index("Field", Field)},
	Field:     {u16("Flags"), str("Name"), blob("Signature")},
	MethodPtr: {index("Method", MethodDef)},
	MethodDef: {u32("RVA"), u16("ImplFlags"), u16("Flags"), str("Name"), blob("Signature"),
		index("ParamList", Param)},
	ParamPtr:        {index("Param", Param)},
	Param:           {u16("Flags"), u16("Sequence"), str("Name")},
	InterfaceImpl:   {index("Class", TypeDef), coded("Interface", TypeDefOrRef)},
	MemberRef:       {coded("Class", MemberRefParent), str("Name"), blob("Signature")},
	Constant:        {u8("Type"), u8("Padding"), coded("Parent", HasConstant), blob("Value")},
	CustomAttribute: {coded("Parent", HasCustomAttribute), coded("Type", CustomAttributeType), blob("Value")},
	FieldMarshal:    {coded("Parent", HasFieldMarshal), blob("NativeType")},
	DeclSecurity:    {u16("Action"), coded("Parent", HasDeclSecurity), blob("PermissionSet")},
	ClassLayout:     {u16("PackingSize"), u32("ClassSize"), index("Parent", TypeDef)},
	FieldLayout:     {u32("Offset"), index("Field", Field)},
	StandAloneSig:   {blob("Signature")},
	EventMap:        {index("Parent", TypeDef), index("EventList", Event)},
	EventPtr:        {index("Event", Event)},
	Event:           {u16("EventFlags"), str("Name"), coded("EventType", TypeDefOrRef)},
	PropertyMap:     {index("Parent", TypeDef), index("PropertyList", Property)},
	PropertyPtr:     {index("Property", Property)},
	Property:        {u16("Flags"), str("Name"), blob("Type")},
	MethodSemantics: {u16("Semantics"), index("Method", MethodDef), coded("Association", HasSemantics)},
	MethodImpl: {index("Class", TypeDef), coded("MethodBody", MethodDefOrRef),
		coded("MethodDeclaration", MethodDefOrRef)},
	ModuleRef: {str("Name")},
	TypeSpec:  {blob("Signature")},
	ImplMap: {u16("MappingFlags"), coded("MemberForwarded", MemberForwarded), str("ImportName"),
		index("ImportScope", ModuleRef)},
	FieldRVA: {u32("RVA"), index("Field", Field)},
	ENCLog:   {u32("Token"), u32("FuncCode")},
	ENCMap:   {u32("Token")},
	Assembly: {u32("HashAlgId"), u16("MajorVersion"), u16("MinorVersion"), u16("BuildNumber"),
		u16("RevisionNumber"), u32("Flags"), blob("PublicKey"), str("Name"), str("Culture")},
	AssemblyProcessor: {u32("Processor")},
	AssemblyOS:        {u32("OSPlatformID"), u32("OSMajorVersion"), u32("OSMinorVersion")},
	AssemblyRef: {u16("MajorVersion"), u16("MinorVersion"), u16("BuildNumber"), u16("RevisionNumber"),
		u32("Flags"), blob("PublicKeyOrToken"), str("Name"), str("Culture"), blob("HashValue")},
	AssemblyRefProcessor: {u32("Processor"), index("AssemblyRef", AssemblyRef)},
	AssemblyRefOS: {u32("OSPlatformID"), u32("OSMajorVersion"), u32("OSMinorVersion"),
		index("AssemblyRef", AssemblyRef)},
	File: {u32("Flags"), str("Name"), blob("HashValue")},
	ExportedType: {u32("Flags"), u32("TypeDefId"), str("TypeName"), str("TypeNamespace"),
		coded("Implementation", Implementation)},
	ManifestResource: {u32("Offset"), u32("Flags"), str("Name"), coded("Implementation", Implementation)},
	NestedClass:      {index("NestedClass", TypeDef), index("EnclosingClass", TypeDef)},
	GenericParam:     {u16("Number"), u16("Flags"), coded("Owner", TypeOrMethodDef), str("Name")},
	MethodSpec:       {coded("Method", MethodDefOrRef), blob("Instantiation")},
	GenericParamConstraint: {index("Owner", GenericParam), coded("Constraint", TypeDefOrRef)},
}

// Schema returns the columns of table k, or nil for an unknown kind.
func Schema(k Kind) []Column {
	if !k.Known() {
		return nil
	}
	return schemas[k]
}

// RowSize returns the byte size of one row of table k under w.
func RowSize(k Kind, w *Widths) int {
	size := 0
	for _, c := range Schema(k) {
		size += c.Width(w)
	}
	return size
}
