package container

// Table is the ECMA-335 §II.22 metadata table index. Only tables whose
// rows this reader needs to skip past or decode are given columns below.
// EventPtr (0x13), PropertyPtr (0x16), EncLog (0x1e) and EncMap (0x1f)
// are not listed; a table stream that marks one of them present fails
// the ascending-index walk, since rowSize has no row layout for it.
type Table uint8

const (
	Module                 Table = 0x00
	TypeRef                Table = 0x01
	TypeDef                Table = 0x02
	FieldPtr               Table = 0x03
	Field                  Table = 0x04
	MethodPtr               Table = 0x05
	MethodDef              Table = 0x06
	ParamPtr               Table = 0x07
	Param                  Table = 0x08
	InterfaceImpl          Table = 0x09
	MemberRef              Table = 0x0a
	Constant               Table = 0x0b
	CustomAttribute        Table = 0x0c
	FieldMarshal           Table = 0x0d
	DeclSecurity           Table = 0x0e
	ClassLayout            Table = 0x0f
	FieldLayout            Table = 0x10
	StandAloneSig          Table = 0x11
	EventMap               Table = 0x12
	Event                  Table = 0x14
	PropertyMap            Table = 0x15
	Property               Table = 0x17
	MethodSemantics        Table = 0x18
	MethodImpl             Table = 0x19
	ModuleRef              Table = 0x1a
	TypeSpec               Table = 0x1b
	ImplMap                Table = 0x1c
	FieldRVA               Table = 0x1d
	Assembly               Table = 0x20
	AssemblyProcessor      Table = 0x21
	AssemblyOS             Table = 0x22
	AssemblyRef            Table = 0x23
	AssemblyRefProcessor   Table = 0x24
	AssemblyRefOS          Table = 0x25
	File                   Table = 0x26
	ExportedType           Table = 0x27
	ManifestResource       Table = 0x28
	NestedClass            Table = 0x29
	GenericParam           Table = 0x2a
	MethodSpec             Table = 0x2b
	GenericParamConstraint Table = 0x2c

	maxTableIndex = 0x2c
)

// columnKind describes how one column of a table row is encoded on disk.
type columnKind int

const (
	colFixed2     columnKind = iota // a plain 2-byte constant
	colFixed4                       // a plain 4-byte constant
	colHeapString                   // index into the #Strings heap
	colHeapGUID                     // index into the #GUID heap
	colHeapBlob                     // index into the #Blob heap
	colSimple                       // index into a single other table
	colCoded                        // tagged index into one of several tables
)

// codedKind names one of the coded-index families of ECMA-335 §II.24.2.6:
// a small tag occupying the low TagBits bits selects which of Targets the
// remaining bits index into.
type codedKind struct {
	TagBits uint
	Targets []Table
}

var (
	typeDefOrRef        = codedKind{2, []Table{TypeDef, TypeRef, TypeSpec}}
	hasConstant         = codedKind{2, []Table{Field, Param, Property}}
	hasCustomAttribute  = codedKind{5, []Table{MethodDef, Field, TypeRef, TypeDef, Param, InterfaceImpl, MemberRef, Module, DeclSecurity, Property, Event, StandAloneSig, ModuleRef, TypeSpec, Assembly, AssemblyRef, File, ExportedType, ManifestResource, GenericParam, GenericParamConstraint, MethodSpec}}
	hasFieldMarshal     = codedKind{1, []Table{Field, Param}}
	hasDeclSecurity     = codedKind{2, []Table{TypeDef, MethodDef, Assembly}}
	memberRefParent     = codedKind{3, []Table{TypeDef, TypeRef, ModuleRef, MethodDef, TypeSpec}}
	hasSemantics        = codedKind{1, []Table{Event, Property}}
	methodDefOrRef      = codedKind{1, []Table{MethodDef, MemberRef}}
	memberForwarded     = codedKind{1, []Table{Field, MethodDef}}
	implementation      = codedKind{2, []Table{File, AssemblyRef, ExportedType}}
	customAttributeType = codedKind{3, []Table{MethodDef, MemberRef}}
	resolutionScope     = codedKind{2, []Table{Module, ModuleRef, AssemblyRef, TypeRef}}
	typeOrMethodDef     = codedKind{1, []Table{TypeDef, MethodDef}}
)

// column is one field of a table row.
type column struct {
	Kind   columnKind
	Target Table     // for colSimple
	Coded  codedKind // for colCoded
}

func fixed2() column                  { return column{Kind: colFixed2} }
func fixed4() column                  { return column{Kind: colFixed4} }
func str() column                     { return column{Kind: colHeapString} }
func guid() column                    { return column{Kind: colHeapGUID} }
func blob() column                    { return column{Kind: colHeapBlob} }
func simple(t Table) column           { return column{Kind: colSimple, Target: t} }
func coded(k codedKind) column         { return column{Kind: colCoded, Coded: k} }

// rowLayout lists every legal table's column sequence, in declaration
// order, used to compute each table's per-row byte width during the
// ascending-index skip-forward walk (§4.1 of SPEC_FULL.md). TypeDef,
// Field and MethodDef are additionally decoded field-by-field
// (typedef.go, fielddef.go, methoddef.go); every other table here only
// needs its width, not its values.
var rowLayout = map[Table][]column{
	Module:                 {fixed2(), str(), guid(), guid(), guid()},
	TypeRef:                {coded(resolutionScope), str(), str()},
	TypeDef:                {fixed4(), str(), str(), coded(typeDefOrRef), simple(Field), simple(MethodDef)},
	FieldPtr:               {simple(Field)},
	Field:                  {fixed2(), str(), blob()},
	MethodPtr:              {simple(MethodDef)},
	MethodDef:              {fixed4(), fixed2(), fixed2(), str(), blob(), simple(Param)},
	ParamPtr:               {simple(Param)},
	Param:                  {fixed2(), fixed2(), str()},
	InterfaceImpl:          {simple(TypeDef), coded(typeDefOrRef)},
	MemberRef:              {coded(memberRefParent), str(), blob()},
	Constant:               {fixed2(), coded(hasConstant), blob()},
	CustomAttribute:        {coded(hasCustomAttribute), coded(customAttributeType), blob()},
	FieldMarshal:           {coded(hasFieldMarshal), blob()},
	DeclSecurity:           {fixed2(), coded(hasDeclSecurity), blob()},
	ClassLayout:            {fixed2(), fixed4(), simple(TypeDef)},
	FieldLayout:            {fixed4(), simple(Field)},
	StandAloneSig:          {blob()},
	EventMap:               {simple(TypeDef), simple(Event)},
	Event:                  {fixed2(), str(), coded(typeDefOrRef)},
	PropertyMap:            {simple(TypeDef), simple(Property)},
	Property:               {fixed2(), str(), blob()},
	MethodSemantics:        {fixed2(), simple(MethodDef), coded(hasSemantics)},
	MethodImpl:             {simple(TypeDef), coded(methodDefOrRef), coded(methodDefOrRef)},
	ModuleRef:              {str()},
	TypeSpec:               {blob()},
	ImplMap:                {fixed2(), coded(memberForwarded), str(), simple(ModuleRef)},
	FieldRVA:               {fixed4(), simple(Field)},
	Assembly:               {fixed4(), fixed2(), fixed2(), fixed2(), fixed2(), fixed4(), blob(), str(), str()},
	AssemblyProcessor:      {fixed4()},
	AssemblyOS:             {fixed4(), fixed4(), fixed4()},
	AssemblyRef:            {fixed2(), fixed2(), fixed2(), fixed2(), fixed4(), blob(), str(), str(), blob()},
	AssemblyRefProcessor:   {fixed4(), simple(AssemblyRef)},
	AssemblyRefOS:          {fixed4(), fixed4(), fixed4(), simple(AssemblyRef)},
	File:                   {fixed4(), str(), blob()},
	ExportedType:           {fixed4(), fixed4(), str(), str(), coded(implementation)},
	ManifestResource:       {fixed4(), fixed4(), str(), coded(implementation)},
	NestedClass:            {simple(TypeDef), simple(TypeDef)},
	GenericParam:           {fixed2(), fixed2(), coded(typeOrMethodDef), str()},
	MethodSpec:             {coded(methodDefOrRef), blob()},
	GenericParamConstraint: {simple(GenericParam), coded(typeDefOrRef)},
}
