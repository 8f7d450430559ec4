// Package ilops decodes the IL byte stream inside a method body into a
// canonical, flat sequence of (opcode name, operands) records — Component
// C. See SPEC_FULL.md §4.2 / spec.md §4.2.
package ilops

// OperandShape classifies how many bytes of operand data follow an
// opcode and how to interpret them.
type OperandShape int

const (
	ShapeNone    OperandShape = iota // no operand
	ShapeUint8                       // unsigned byte (ldarg.s, ldloc.s, ...)
	ShapeInt8                        // signed byte, a short branch displacement
	ShapeInt32                       // signed 4-byte little-endian integer (ldc.i4)
	ShapeInt64                       // signed 8-byte little-endian integer (ldc.i8)
	ShapeFloat32                     // IEEE-754 single
	ShapeFloat64                     // IEEE-754 double
	ShapeToken                       // 4-byte little-endian metadata token
)

// OpcodeInfo is one entry of the static opcode table: its canonical
// lowercase mnemonic and its operand shape.
type OpcodeInfo struct {
	Name  string
	Shape OperandShape
}

// opcodeTable covers the subset spec.md §4.2 names as mandatory. Keys for
// single-byte opcodes are the opcode byte itself; two-byte (0xFE-prefixed)
// opcodes would be keyed 0xFE00|second, though none are in the mandatory
// subset.
var opcodeTable = map[uint16]OpcodeInfo{
	0x00: {"nop", ShapeNone},
	0x01: {"break", ShapeNone},
	0x02: {"ldarg.0", ShapeNone},
	0x03: {"ldarg.1", ShapeNone},
	0x04: {"ldarg.2", ShapeNone},
	0x05: {"ldarg.3", ShapeNone},
	0x06: {"ldloc.0", ShapeNone},
	0x07: {"ldloc.1", ShapeNone},
	0x08: {"ldloc.2", ShapeNone},
	0x09: {"ldloc.3", ShapeNone},
	0x0A: {"stloc.0", ShapeNone},
	0x0B: {"stloc.1", ShapeNone},
	0x0C: {"stloc.2", ShapeNone},
	0x0D: {"stloc.3", ShapeNone},
	0x0E: {"ldarg.s", ShapeUint8},
	0x0F: {"ldarga.s", ShapeUint8},
	0x10: {"starg.s", ShapeUint8},
	0x11: {"ldloc.s", ShapeUint8},
	0x12: {"ldloca.s", ShapeUint8},
	0x13: {"stloc.s", ShapeUint8},
	0x14: {"ldnull", ShapeNone},
	0x15: {"ldc.i4.m1", ShapeNone},
	0x16: {"ldc.i4.0", ShapeNone},
	0x17: {"ldc.i4.1", ShapeNone},
	0x18: {"ldc.i4.2", ShapeNone},
	0x19: {"ldc.i4.3", ShapeNone},
	0x1A: {"ldc.i4.4", ShapeNone},
	0x1B: {"ldc.i4.5", ShapeNone},
	0x1C: {"ldc.i4.6", ShapeNone},
	0x1D: {"ldc.i4.7", ShapeNone},
	0x1E: {"ldc.i4.8", ShapeNone},
	0x1F: {"ldc.i4.s", ShapeInt8},
	0x20: {"ldc.i4", ShapeInt32},
	0x21: {"ldc.i8", ShapeInt64},
	0x22: {"ldc.r4", ShapeFloat32},
	0x23: {"ldc.r8", ShapeFloat64},
	0x25: {"dup", ShapeNone},
	0x26: {"pop", ShapeNone},
	0x27: {"jmp", ShapeToken},
	0x28: {"call", ShapeToken},
	0x29: {"calli", ShapeToken},
	0x2A: {"ret", ShapeNone},
	0x2B: {"br.s", ShapeInt8},
	0x2C: {"brfalse.s", ShapeInt8},
	0x2D: {"brtrue.s", ShapeInt8},
	0x2E: {"beq.s", ShapeInt8},
	0x2F: {"bge.s", ShapeInt8},
	0x30: {"bgt.s", ShapeInt8},
	0x31: {"ble.s", ShapeInt8},
	0x32: {"blt.s", ShapeInt8},
	0x38: {"br", ShapeInt32},
	0x39: {"brfalse", ShapeInt32},
	0x3A: {"brtrue", ShapeInt32},
	0x58: {"add", ShapeNone},
	0x59: {"sub", ShapeNone},
	0x5A: {"mul", ShapeNone},
	0x5B: {"div", ShapeNone},
	0x5F: {"and", ShapeNone},
	0x60: {"or", ShapeNone},
	0x61: {"xor", ShapeNone},
	0x62: {"shl", ShapeNone},
	0x63: {"shr", ShapeNone},
	0x6F: {"callvirt", ShapeToken},
	0x72: {"ldstr", ShapeToken},
	0x73: {"newobj", ShapeToken},
	0x7B: {"ldfld", ShapeToken},
	0x7C: {"ldflda", ShapeToken},
	0x7D: {"stfld", ShapeToken},
	0x7E: {"ldsfld", ShapeToken},
	0x7F: {"ldsflda", ShapeToken},
	0x80: {"stsfld", ShapeToken},
	0x8C: {"box", ShapeToken},
	0x8D: {"newarr", ShapeToken},
	0x8E: {"ldlen", ShapeNone},
	0x8F: {"ldelema", ShapeToken},
	0x90: {"ldelem.i1", ShapeNone},
	0x91: {"ldelem.u1", ShapeNone},
	0x92: {"ldelem.i2", ShapeNone},
	0x93: {"ldelem.u2", ShapeNone},
	0x94: {"ldelem.i4", ShapeNone},
	0x95: {"ldelem.u4", ShapeNone},
	0x96: {"ldelem.i8", ShapeNone},
	0x97: {"ldelem.i", ShapeNone},
	0x98: {"ldelem.r4", ShapeNone},
	0x99: {"ldelem.r8", ShapeNone},
	0x9A: {"ldelem.ref", ShapeNone},
	0x9C: {"stelem.i1", ShapeNone},
	0x9D: {"stelem.i2", ShapeNone},
	0x9E: {"stelem.i4", ShapeNone},
	0x9F: {"stelem.i8", ShapeNone},
	0xA0: {"stelem.r4", ShapeNone},
	0xA1: {"stelem.r8", ShapeNone},
	0xA2: {"stelem.ref", ShapeNone},
	0xD0: {"ldtoken", ShapeToken},
	0xD1: {"conv.u2", ShapeNone},
	0xD2: {"conv.u1", ShapeNone},
	0xD3: {"conv.i", ShapeNone},
}

// Lookup returns the opcode table entry for raw (already combined with
// the 0xFE00 prefix tag where applicable), and whether it is known.
func Lookup(raw uint16) (OpcodeInfo, bool) {
	info, ok := opcodeTable[raw]
	return info, ok
}

// ByteLength returns the total number of encoded bytes (opcode plus
// operand) an instruction with the given raw opcode value occupies in
// the IL stream — used by the code generator to locate the next
// instruction's IL offset (needed for branch-target resolution, spec.md
// §4.5.5) without re-running the decoder.
func ByteLength(raw uint16) int {
	opcodeLen := 1
	if raw&0xFE00 == 0xFE00 {
		opcodeLen = 2
	}
	info, ok := Lookup(raw)
	if !ok {
		return opcodeLen
	}
	return opcodeLen + operandByteLen(info.Shape)
}

// operandByteLen returns how many bytes of operand data a shape consumes.
func operandByteLen(shape OperandShape) int {
	switch shape {
	case ShapeNone:
		return 0
	case ShapeUint8, ShapeInt8:
		return 1
	case ShapeInt32, ShapeFloat32, ShapeToken:
		return 4
	case ShapeInt64, ShapeFloat64:
		return 8
	default:
		return 0
	}
}
