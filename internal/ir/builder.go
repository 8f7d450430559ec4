package ir

import (
	"strings"

	"github.com/xyproto/gbilc/internal/compilerr"
	"github.com/xyproto/gbilc/internal/container"
	"github.com/xyproto/gbilc/internal/ilops"
	"github.com/xyproto/gbilc/internal/typeresolve"
)

// Builder assembles a Module from a parsed Container, per spec.md §3/§4
// and Component D of SPEC_FULL.md §2. It owns no state across calls to
// Build beyond the Resolver passed to it.
type Builder struct {
	resolver *typeresolve.Resolver
	warnings *compilerr.Collector
}

// NewBuilder returns a Builder that resolves type layouts with resolver
// and records non-fatal diagnostics (unknown opcodes, composite layouts
// that fail to resolve) into warnings.
func NewBuilder(resolver *typeresolve.Resolver, warnings *compilerr.Collector) *Builder {
	return &Builder{resolver: resolver, warnings: warnings}
}

// Build walks every TypeDef and MethodDef row of c and assembles a
// Module: types (skipping compiler-generated ones), methods (skipping
// constructors), and the entry-point designation (the method literally
// named "Main").
func (b *Builder) Build(name string, c *container.Container) (*Module, error) {
	module := NewModule(name)

	for _, t := range c.Types() {
		if container.IsCompilerGenerated(t.Name) || t.Name == "<Module>" {
			continue
		}
		fullName := t.Name
		if t.Namespace != "" {
			fullName = t.Namespace + "." + t.Name
		}

		irType := &Type{
			Name:     t.Name,
			FullName: fullName,
			Classification: Classification{
				Primitive: typeresolve.IsPrimitive(fullName),
			},
		}
		if !irType.Classification.Primitive {
			// TypeDef rows carry an "Extends" coded index identifying the
			// base type, but this reader discards it (container/typedef.go);
			// without it there is no way to distinguish a struct from a
			// class, so every non-primitive type is treated as
			// reference-shaped, matching the source's own best-effort
			// hasattr(csharp_type, 'is_value_type') fallback.
			irType.Classification.Reference = true
		}

		if irType.Classification.Primitive {
			layout, err := b.resolver.PrimitiveLayout(fullName)
			if err != nil {
				return nil, err
			}
			irType.Size = layout.Size
		} else {
			layout, err := b.layoutComposite(fullName, t, c)
			if err != nil {
				if b.warnings != nil {
					b.warnings.Add(compilerr.Warning(compilerr.CategoryLowering, compilerr.Location{}, "%s: %v", fullName, err))
				}
				irType.Size = 1
			} else {
				irType.Size = layout.Size
				for _, fl := range layout.Fields {
					irType.Fields = append(irType.Fields, Field{Name: fl.Name, Type: fl.Type, Offset: fl.Offset})
				}
			}
		}

		module.Types[fullName] = irType
	}

	for i, m := range c.Methods() {
		if strings.HasPrefix(m.Name, ".") {
			continue
		}

		isEntry := m.Name == "Main"
		method := &Method{
			Name:       m.Name,
			FullName:   m.Name,
			Static:     true,
			EntryPoint: isEntry,
		}

		// MethodDef RIDs are 1-based row numbers; a metadata token
		// naming a MethodDef row directly (as opposed to a coded table
		// index) is the fixed table id 0x06 in its top byte and the RID
		// in the low 24 bits (ECMA-335 §II.22.2, "Metadata token").
		rid := uint32(i + 1)
		module.MethodTokens[0x06000000|rid] = method.FullName

		body, err := c.MethodBody(m)
		if err != nil {
			return nil, err
		}
		if body != nil {
			block, err := b.decodeBlock(m.Name, body)
			if err != nil {
				return nil, err
			}
			method.BasicBlocks = append(method.BasicBlocks, block)
		}

		module.Methods[method.FullName] = method
		if isEntry {
			module.EntryPoint = method.FullName
		}
	}

	return module, nil
}

// layoutComposite resolves a non-primitive TypeDef's field layout via its
// Field table rows, supplementing SPEC_FULL.md §11's "type-by-name
// lookup" feature with actual struct layout. Field types that are
// themselves composites are resolved against this target's known
// primitive sizes only: typeresolve.Layout is deliberately non-recursive
// (internal/typeresolve/typeresolve.go), so a field whose type is another
// user-defined composite is reported unsupported rather than chased
// through a second TypeDef lookup.
func (b *Builder) layoutComposite(fullName string, t container.TypeDefRow, c *container.Container) (*typeresolve.Layout, error) {
	rows := c.Fields(t)
	specs := make([]typeresolve.FieldSpec, 0, len(rows))
	for _, f := range rows {
		typeName, ok := c.FieldTypeName(f.Signature)
		if !ok {
			return nil, compilerr.New(compilerr.CategoryLowering, compilerr.KindUnsupportedType, compilerr.Location{}, "field %q has an unresolvable type", f.Name)
		}
		specs = append(specs, typeresolve.FieldSpec{Name: f.Name, TypeName: typeName, IsConstant: f.IsConstant()})
	}
	return b.resolver.Layout(fullName, specs, b.resolver.Size)
}

// decodeBlock decodes il into the single "entry" basic block v1 builders
// produce, recording a warning (not an error) for each unknown opcode.
func (b *Builder) decodeBlock(methodName string, il []byte) (BasicBlock, error) {
	block := BasicBlock{Label: "entry"}

	d := ilops.NewDecoder(il)
	for {
		inst, ok, err := d.Next()
		if err != nil {
			return block, err
		}
		if !ok {
			break
		}
		if strings.HasPrefix(inst.Opcode, "unknown_") && b.warnings != nil {
			b.warnings.Add(compilerr.Warning(compilerr.CategoryDecode, compilerr.Location{Method: methodName, ILOffset: inst.ILOffset}, "unrecognized opcode 0x%02x", inst.RawOpcode&0xFF))
		}
		block.Instructions = append(block.Instructions, Instruction{
			Opcode:    inst.Opcode,
			Operands:  inst.Operands,
			ILOffset:  inst.ILOffset,
			RawOpcode: inst.RawOpcode,
		})
	}

	return block, nil
}
