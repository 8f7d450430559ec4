// Package ir defines the intermediate representation every decoded
// method is assembled into — Component D's output shape. See
// SPEC_FULL.md §3 / spec.md §3.
package ir

// Classification flags a Type carries. Exactly one of Primitive/Value is
// true for a value-shaped type; Reference implies Value is false.
type Classification struct {
	Primitive bool
	Value     bool
	Reference bool
}

// Field is one member of a composite Type's layout.
type Field struct {
	Name   string
	Type   string // the field's type full name, resolved lazily
	Offset int
}

// Type is an IR type: name, full name, computed size, and ordered field
// layout. Invariant: field offsets are strictly increasing and every
// field fits within Size (offset+fieldSize <= Size) — enforced by
// internal/typeresolve when it populates Size and Fields.
type Type struct {
	Name           string
	FullName       string
	Size           int
	Fields         []Field
	Classification Classification
}

// Instruction is one IR instruction inside a Basic Block: the decoded
// opcode plus its literal operands and, for diagnostics, the raw opcode
// byte and the IL offset it was decoded from.
type Instruction struct {
	Opcode    string
	Operands  []int64
	ILOffset  int
	RawOpcode uint16
}

// IsTerminator reports whether this instruction ends a basic block:
// a return or any branch.
func (i Instruction) IsTerminator() bool {
	switch i.Opcode {
	case "ret":
		return true
	}
	if len(i.Opcode) >= 2 && (i.Opcode[:2] == "br") && i.Opcode != "break" {
		return true
	}
	switch i.Opcode {
	case "beq.s", "bge.s", "bgt.s", "ble.s", "blt.s":
		return true
	}
	return false
}

// BasicBlock is a labeled, ordered run of instructions within a method.
type BasicBlock struct {
	Label        string
	Instructions []Instruction
	Successors   []string
	Predecessors []string
}

// Method is one decoded, IR-lowered method. v1 builders produce exactly
// one block (labeled "entry") per method; later passes may split it.
type Method struct {
	Name        string
	FullName    string
	Static      bool
	EntryPoint  bool
	BasicBlocks []BasicBlock
}

// LastInstruction returns the final instruction of the method's last
// block, and whether the method has any instructions at all.
func (m *Method) LastInstruction() (Instruction, bool) {
	if len(m.BasicBlocks) == 0 {
		return Instruction{}, false
	}
	last := m.BasicBlocks[len(m.BasicBlocks)-1]
	if len(last.Instructions) == 0 {
		return Instruction{}, false
	}
	return last.Instructions[len(last.Instructions)-1], true
}

// Module is the root IR container: every decoded type and method, and
// the name of the entry-point method (the one textually named "Main"),
// if any.
type Module struct {
	Name       string
	Types      map[string]*Type
	Methods    map[string]*Method
	EntryPoint string // full name of the entry method, "" if none

	// MethodTokens maps a MethodDef metadata token (0x06000000 | rid) to
	// the full name of the Method it resolves to in this Module, for
	// every MethodDef row that survived the builder's constructor
	// filter. codegen's "call" lowering (spec.md §4.5.4, "call with
	// known target") uses this to resolve a call site's token operand
	// without re-reading the container.
	MethodTokens map[uint32]string

	// Constants reserves a constant-pool id -> literal value mapping for
	// future use; v1 never populates it.
	Constants map[int]int64
}

// NewModule returns an empty Module ready for the builder to populate.
func NewModule(name string) *Module {
	return &Module{
		Name:         name,
		Types:        make(map[string]*Type),
		Methods:      make(map[string]*Method),
		MethodTokens: make(map[uint32]string),
		Constants:    make(map[int]int64),
	}
}
