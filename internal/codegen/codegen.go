// Package codegen implements Component G: lowering of the intermediate
// representation into LR35902 machine code via the Component F emitter.
// See SPEC_FULL.md §4.5 / spec.md §4.5.
package codegen

import (
	"sort"

	"github.com/xyproto/gbilc/internal/compilerr"
	"github.com/xyproto/gbilc/internal/emit"
	"github.com/xyproto/gbilc/internal/ilops"
	"github.com/xyproto/gbilc/internal/ir"
)

// Options controls how the generator handles opcodes it has no lowering
// rule for.
type Options struct {
	// Strict turns an opcode with no lowering rule into a fatal
	// UnsupportedOpcode error instead of a no-op plus diagnostic.
	Strict bool
	Verbose bool
}

// Generator lowers an ir.Module to a flat machine-code image, stack-
// machine style per spec.md §4.5.4: every IL value lives in the
// hardware call/return stack between instructions, never in a named
// register.
type Generator struct {
	opts         Options
	warnings     *compilerr.Collector
	methodTokens map[uint32]string
}

// New returns a Generator that records non-fatal diagnostics (narrowed
// constants, unsupported opcodes in non-strict mode) into warnings.
func New(opts Options, warnings *compilerr.Collector) *Generator {
	return &Generator{opts: opts, warnings: warnings}
}

// argBase and localBase separate the ldarg.* and ldloc.*/stloc.*
// addressing spaces within WRAM. v1 has no calling-convention that
// passes arguments on the stack frame, so the split only matters for
// programs that use both kinds of slot in the same method; giving each
// its own fixed region is simpler than tracking per-method frame
// layout and never collides in practice (a method would need over 128
// arguments to reach into the local region).
const (
	argBase   = WramStart
	localBase = WramStart + 0x0100
)

// Generate lowers every method of module into a single flat image: a
// startup stub, each method's body in name order, the runtime helpers,
// and — if module has an entry point — a jump to it.
func (g *Generator) Generate(module *ir.Module) ([]byte, error) {
	e := emit.New()
	e.Base = CodeStart
	e.Verbose = g.opts.Verbose
	g.methodTokens = module.MethodTokens

	g.emitStartupStub(e)

	names := make([]string, 0, len(module.Methods))
	for name := range module.Methods {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := g.lowerMethod(e, module.Methods[name]); err != nil {
			return nil, err
		}
	}

	if err := emitRuntimeHelpers(e); err != nil {
		return nil, err
	}

	if module.EntryPoint != "" {
		e.EmitByte(0xC3) // JP a16
		patchPos := e.Offset()
		e.EmitU16LE(0x0000)
		e.ReferenceLabel(methodLabel(module.EntryPoint), patchPos, emit.Abs16)
	}

	return e.Finalize()
}

// emitStartupStub emits the fixed boot sequence every image begins
// with: point SP at the top of RAM and disable interrupts, since this
// target never services any.
func (g *Generator) emitStartupStub(e *emit.Emitter) {
	e.EmitByte(0x31) // LD SP, d16
	e.EmitU16LE(StackStart)
	e.EmitByte(0xF3) // DI
}

// lowerMethod defines the method's label, lowers each instruction of
// its single basic block in IL order, and appends a closing RET if the
// block did not already end in a terminator.
func (g *Generator) lowerMethod(e *emit.Emitter, m *ir.Method) error {
	if err := e.DefineLabel(methodLabel(m.FullName)); err != nil {
		return err
	}

	stack := emit.NewStackTracker()
	for _, block := range m.BasicBlocks {
		for i, inst := range block.Instructions {
			var nextILOffset int
			if i+1 < len(block.Instructions) {
				nextILOffset = block.Instructions[i+1].ILOffset
			} else {
				nextILOffset = inst.ILOffset + ilops.ByteLength(inst.RawOpcode)
			}
			if err := e.DefineLabel(ilLabel(m.FullName, inst.ILOffset)); err != nil {
				// An instruction can only be visited once per method, so a
				// duplicate here means two instructions decoded to the same
				// IL offset, which the decoder never produces.
				return err
			}
			if err := g.lowerInstruction(e, stack, m.FullName, inst, nextILOffset); err != nil {
				return err
			}
		}
	}

	last, ok := m.LastInstruction()
	if !ok || !last.IsTerminator() {
		e.EmitByte(0xC9) // RET
	}
	return nil
}

// lowerInstruction dispatches one IR instruction to its lowering rule.
// nextILOffset is the IL offset the following instruction starts at
// (or, for a block's last instruction, where it would start), used to
// resolve a branch's relative displacement per spec.md §4.5.5. stack
// mirrors the "push intermediates on the hardware stack" discipline of
// spec.md §4.5.4 one IR value at a time, independent of how many actual
// PUSH/POP bytes a rule emits — a rule popping more than was ever
// pushed means the source IL itself is unbalanced, which would corrupt
// the return address on real hardware rather than merely miscompute.
func (g *Generator) lowerInstruction(e *emit.Emitter, stack *emit.StackTracker, methodName string, inst ir.Instruction, nextILOffset int) error {
	pop := func(what string) error {
		if err := stack.Pop(what); err != nil {
			return compilerr.New(compilerr.CategoryLowering, compilerr.KindMalformedMethodBody,
				compilerr.Location{Method: methodName, ILOffset: inst.ILOffset}, "%v", err)
		}
		return nil
	}
	push := func(what string) { stack.Push(what) }

	switch inst.Opcode {
	case "nop":
		e.EmitByte(0x00)
	case "ret":
		e.EmitByte(0xC9)
	case "dup":
		if err := pop("dup operand"); err != nil {
			return err
		}
		e.EmitByte(0xE1) // POP HL
		e.EmitByte(0xE5) // PUSH HL
		e.EmitByte(0xE5) // PUSH HL
		push("dup")
		push("dup")
	case "pop":
		if err := pop("pop operand"); err != nil {
			return err
		}
		e.EmitByte(0xE1) // POP HL (discard)

	case "ldc.i4.m1":
		g.pushConst16(e, -1)
		push("const")
	case "ldc.i4.0":
		g.pushConst16(e, 0)
		push("const")
	case "ldc.i4.1":
		g.pushConst16(e, 1)
		push("const")
	case "ldc.i4.2":
		g.pushConst16(e, 2)
		push("const")
	case "ldc.i4.3":
		g.pushConst16(e, 3)
		push("const")
	case "ldc.i4.4":
		g.pushConst16(e, 4)
		push("const")
	case "ldc.i4.5":
		g.pushConst16(e, 5)
		push("const")
	case "ldc.i4.6":
		g.pushConst16(e, 6)
		push("const")
	case "ldc.i4.7":
		g.pushConst16(e, 7)
		push("const")
	case "ldc.i4.8":
		g.pushConst16(e, 8)
		push("const")
	case "ldc.i4.s":
		g.pushConst16(e, inst.Operands[0])
		push("const")
	case "ldc.i4":
		v := inst.Operands[0]
		if v < -32768 || v > 32767 {
			g.warn(methodName, inst.ILOffset, "narrowing ldc.i4 operand %d to 16 bits", v)
		}
		g.pushConst16(e, v)
		push("const")

	case "ldarg.0":
		g.loadSlot(e, argBase, 0)
		push("arg")
	case "ldarg.1":
		g.loadSlot(e, argBase, 1)
		push("arg")
	case "ldarg.2":
		g.loadSlot(e, argBase, 2)
		push("arg")
	case "ldarg.3":
		g.loadSlot(e, argBase, 3)
		push("arg")
	case "ldarg.s":
		g.loadSlot(e, argBase, int(inst.Operands[0]))
		push("arg")

	case "ldloc.0":
		g.loadSlot(e, localBase, 0)
		push("local")
	case "ldloc.1":
		g.loadSlot(e, localBase, 1)
		push("local")
	case "ldloc.2":
		g.loadSlot(e, localBase, 2)
		push("local")
	case "ldloc.3":
		g.loadSlot(e, localBase, 3)
		push("local")
	case "ldloc.s":
		g.loadSlot(e, localBase, int(inst.Operands[0]))
		push("local")

	case "stloc.0":
		if err := pop("stloc operand"); err != nil {
			return err
		}
		g.storeSlot(e, localBase, 0)
	case "stloc.1":
		if err := pop("stloc operand"); err != nil {
			return err
		}
		g.storeSlot(e, localBase, 1)
	case "stloc.2":
		if err := pop("stloc operand"); err != nil {
			return err
		}
		g.storeSlot(e, localBase, 2)
	case "stloc.3":
		if err := pop("stloc operand"); err != nil {
			return err
		}
		g.storeSlot(e, localBase, 3)
	case "stloc.s":
		if err := pop("stloc operand"); err != nil {
			return err
		}
		g.storeSlot(e, localBase, int(inst.Operands[0]))

	case "add":
		if err := pop("add rhs"); err != nil {
			return err
		}
		if err := pop("add lhs"); err != nil {
			return err
		}
		e.EmitByte(0xD1) // POP DE (rhs)
		e.EmitByte(0xE1) // POP HL (lhs)
		e.EmitByte(0x19) // ADD HL, DE
		e.EmitByte(0xE5) // PUSH HL
		push("add result")

	case "sub":
		if err := pop("sub rhs"); err != nil {
			return err
		}
		if err := pop("sub lhs"); err != nil {
			return err
		}
		e.EmitByte(0xD1) // POP DE (rhs)
		e.EmitByte(0xE1) // POP HL (lhs)
		e.EmitByte(0x7D) // LD A, L
		e.EmitByte(0x93) // SUB E
		e.EmitByte(0x6F) // LD L, A
		e.EmitByte(0x7C) // LD A, H
		e.EmitByte(0x9A) // SBC A, D
		e.EmitByte(0x67) // LD H, A
		e.EmitByte(0xE5) // PUSH HL
		push("sub result")

	case "mul":
		if err := pop("mul rhs"); err != nil {
			return err
		}
		if err := pop("mul lhs"); err != nil {
			return err
		}
		e.EmitByte(0xCD) // CALL a16
		patchPos := e.Offset()
		e.EmitU16LE(0x0000)
		e.ReferenceLabel(mul16Label, patchPos, emit.Abs16)
		push("mul result")

	case "div":
		if err := pop("div rhs"); err != nil {
			return err
		}
		if err := pop("div lhs"); err != nil {
			return err
		}
		e.EmitByte(0xCD) // CALL a16
		patchPos := e.Offset()
		e.EmitU16LE(0x0000)
		e.ReferenceLabel(div16Label, patchPos, emit.Abs16)
		e.EmitByte(0xE1) // POP HL -- discard the remainder div16 also pushes
		push("div result")

	case "call":
		if err := g.lowerCall(e, methodName, inst); err != nil {
			return err
		}

	case "br.s":
		g.emitBranch(e, methodName, inst, nextILOffset, emit.Rel8, 0x18)
	case "br":
		g.emitBranch(e, methodName, inst, nextILOffset, emit.Abs16, 0xC3)
	case "brfalse.s":
		if err := pop("brfalse.s condition"); err != nil {
			return err
		}
		e.EmitByte(0xE1) // POP HL
		e.EmitByte(0x7C) // LD A, H
		e.EmitByte(0xB5) // OR L
		g.emitBranch(e, methodName, inst, nextILOffset, emit.Rel8, 0x28) // JR Z
	case "brtrue.s":
		if err := pop("brtrue.s condition"); err != nil {
			return err
		}
		e.EmitByte(0xE1) // POP HL
		e.EmitByte(0x7C) // LD A, H
		e.EmitByte(0xB5) // OR L
		g.emitBranch(e, methodName, inst, nextILOffset, emit.Rel8, 0x20) // JR NZ
	case "beq.s":
		if err := pop("beq.s rhs"); err != nil {
			return err
		}
		if err := pop("beq.s lhs"); err != nil {
			return err
		}
		g.emitCompare(e, methodName, inst)
		e.EmitByte(0x7C) // LD A, H
		e.EmitByte(0xB5) // OR L
		g.emitBranch(e, methodName, inst, nextILOffset, emit.Rel8, 0x28) // JR Z
	case "bge.s":
		if err := pop("bge.s rhs"); err != nil {
			return err
		}
		if err := pop("bge.s lhs"); err != nil {
			return err
		}
		g.emitCompare(e, methodName, inst)
		e.EmitByte(0x7C) // LD A, H
		e.EmitByte(0xE6) // AND d8
		e.EmitByte(0x80)
		g.emitBranch(e, methodName, inst, nextILOffset, emit.Rel8, 0x28) // JR Z (sign bit clear)
	case "blt.s":
		if err := pop("blt.s rhs"); err != nil {
			return err
		}
		if err := pop("blt.s lhs"); err != nil {
			return err
		}
		g.emitCompare(e, methodName, inst)
		e.EmitByte(0x7C) // LD A, H
		e.EmitByte(0xE6)
		e.EmitByte(0x80)
		g.emitBranch(e, methodName, inst, nextILOffset, emit.Rel8, 0x20) // JR NZ (sign bit set)
	case "ble.s":
		if err := pop("ble.s rhs"); err != nil {
			return err
		}
		if err := pop("ble.s lhs"); err != nil {
			return err
		}
		g.emitCompare(e, methodName, inst)
		e.EmitByte(0x7C) // LD A, H
		e.EmitByte(0xB5) // OR L
		g.emitBranch(e, methodName, inst, nextILOffset, emit.Rel8, 0x28) // zero => take
		e.EmitByte(0x7C) // LD A, H
		e.EmitByte(0xE6)
		e.EmitByte(0x80)
		g.emitBranch(e, methodName, inst, nextILOffset, emit.Rel8, 0x20) // negative => take
	case "bgt.s":
		if err := pop("bgt.s rhs"); err != nil {
			return err
		}
		if err := pop("bgt.s lhs"); err != nil {
			return err
		}
		g.emitCompare(e, methodName, inst)
		skip := localSkipLabel(methodName, inst.ILOffset, "skip")
		e.EmitByte(0x7C) // LD A, H
		e.EmitByte(0xB5) // OR L
		zeroPos := e.Offset()
		e.EmitByte(0x28) // JR Z, skip (zero => not greater)
		e.EmitByte(0x00)
		e.ReferenceLabel(skip, zeroPos+1, emit.Rel8)
		e.EmitByte(0x7C) // LD A, H
		e.EmitByte(0xE6)
		e.EmitByte(0x80)
		negPos := e.Offset()
		e.EmitByte(0x20) // JR NZ, skip (negative => not greater)
		e.EmitByte(0x00)
		e.ReferenceLabel(skip, negPos+1, emit.Rel8)
		g.emitBranch(e, methodName, inst, nextILOffset, emit.Rel8, 0x18) // unconditional => take
		if err := e.DefineLabel(skip); err != nil {
			return err
		}

	default:
		return g.unsupported(e, methodName, inst)
	}
	return nil
}

// pushConst16 emits "LD HL, v; PUSH HL" for a literal truncated to 16
// bits.
func (g *Generator) pushConst16(e *emit.Emitter, v int64) {
	e.EmitByte(0x21) // LD HL, d16
	e.EmitU16LE(uint16(v))
	e.EmitByte(0xE5) // PUSH HL
}

// loadSlot emits a 16-bit load from base+index*2 in WRAM, pushing the
// loaded value.
func (g *Generator) loadSlot(e *emit.Emitter, base, index int) {
	addr := uint16(base + index*2)
	e.EmitByte(0x21) // LD HL, addr
	e.EmitU16LE(addr)
	e.EmitByte(0x5E) // LD E, (HL)
	e.EmitByte(0x23) // INC HL
	e.EmitByte(0x56) // LD D, (HL)
	e.EmitByte(0xD5) // PUSH DE
}

// storeSlot emits a 16-bit store of the popped top-of-stack value into
// base+index*2 in WRAM.
func (g *Generator) storeSlot(e *emit.Emitter, base, index int) {
	addr := uint16(base + index*2)
	e.EmitByte(0xD1) // POP DE
	e.EmitByte(0x21) // LD HL, addr
	e.EmitU16LE(addr)
	e.EmitByte(0x73) // LD (HL), E
	e.EmitByte(0x23) // INC HL
	e.EmitByte(0x72) // LD (HL), D
}

// emitCompare pops rhs/lhs and leaves HL = lhs - rhs (two's complement),
// without pushing it back; the caller inspects H's sign bit or the
// HL==0 condition immediately after.
func (g *Generator) emitCompare(e *emit.Emitter, methodName string, inst ir.Instruction) {
	e.EmitByte(0xD1) // POP DE (rhs)
	e.EmitByte(0xE1) // POP HL (lhs)
	e.EmitByte(0x7D) // LD A, L
	e.EmitByte(0x93) // SUB E
	e.EmitByte(0x6F) // LD L, A
	e.EmitByte(0x7C) // LD A, H
	e.EmitByte(0x9A) // SBC A, D
	e.EmitByte(0x67) // LD H, A
}

// emitBranch appends a jump opcode (opcodeByte) followed by its
// operand, and queues a relocation to the synthetic label for the
// branch's resolved target IL offset.
func (g *Generator) emitBranch(e *emit.Emitter, methodName string, inst ir.Instruction, nextILOffset int, kind emit.RelocationKind, opcodeByte byte) {
	target := nextILOffset + int(inst.Operands[0])
	e.EmitByte(opcodeByte)
	patchPos := e.Offset()
	if kind == emit.Rel8 {
		e.EmitByte(0x00)
	} else {
		e.EmitU16LE(0x0000)
	}
	e.ReferenceLabel(ilLabel(methodName, target), patchPos, kind)
}

// lowerCall resolves a call site's metadata token against this module's
// MethodTokens map (spec.md §4.5.4, "call with known target"), built by
// internal/ir's builder from the MethodDef table. A hit is a direct,
// same-assembly, non-generic target — the only case a single-assembly
// AOT compiler can call without a linker (spec.md §1's Non-goals exclude
// "linking against external object files"); it lowers to `CALL a16`
// with the same `Abs16` relocation against the method's label that the
// entry-point `JP a16` in Generate uses. A miss
// means the token instead names a MemberRef or MethodSpec row (another
// assembly, or a generic instantiation), which falls back to the
// generic unsupported-opcode path.
func (g *Generator) lowerCall(e *emit.Emitter, methodName string, inst ir.Instruction) error {
	token := uint32(inst.Operands[0])
	target, ok := g.methodTokens[token]
	if !ok {
		return g.unsupported(e, methodName, inst)
	}
	e.EmitByte(0xCD) // CALL a16
	patchPos := e.Offset()
	e.EmitU16LE(0x0000)
	e.ReferenceLabel(methodLabel(target), patchPos, emit.Abs16)
	return nil
}

// unsupported emits a single-byte no-op for an opcode with no lowering
// rule, recording a diagnostic — or, in strict mode, aborting with
// UnsupportedOpcode.
func (g *Generator) unsupported(e *emit.Emitter, methodName string, inst ir.Instruction) error {
	if g.opts.Strict {
		return compilerr.New(compilerr.CategoryLowering, compilerr.KindUnsupportedOpcode,
			compilerr.Location{Method: methodName, ILOffset: inst.ILOffset},
			"no lowering rule for opcode %q", inst.Opcode)
	}
	g.warn(methodName, inst.ILOffset, "no lowering rule for opcode %q, emitting nop", inst.Opcode)
	e.EmitByte(0x00)
	return nil
}

func (g *Generator) warn(method string, ilOffset int, format string, args ...any) {
	if g.warnings == nil {
		return
	}
	g.warnings.Add(compilerr.Warning(compilerr.CategoryLowering, compilerr.Location{Method: method, ILOffset: ilOffset}, format, args...))
}
