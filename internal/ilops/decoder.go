package ilops

import (
	"encoding/binary"

	"github.com/xyproto/gbilc/internal/compilerr"
)

// Instruction is one decoded IL instruction: its canonical lowercase
// opcode name, its operands decoded literally from the stream (no
// semantic interpretation — floating-point operands are the raw IEEE-754
// bit pattern, since this compiler never lowers float arithmetic), the
// byte offset the opcode started at, and the raw opcode value for
// diagnostics on unknown opcodes.
type Instruction struct {
	Opcode    string
	Operands  []int64
	ILOffset  int
	RawOpcode uint16
}

// Decoder walks an IL byte slice one instruction at a time, in the
// single pass spec.md §4.2 describes.
type Decoder struct {
	data   []byte
	offset int
}

// NewDecoder returns a Decoder over il, starting at offset 0.
func NewDecoder(il []byte) *Decoder {
	return &Decoder{data: il}
}

// Next decodes the instruction at the current offset and advances past
// it. It returns (Instruction{}, false, nil) once the stream is
// exhausted.
func (d *Decoder) Next() (Instruction, bool, error) {
	if d.offset >= len(d.data) {
		return Instruction{}, false, nil
	}
	start := d.offset

	raw := uint16(d.data[d.offset])
	d.offset++
	if raw == 0xFE {
		if d.offset >= len(d.data) {
			return Instruction{}, false, compilerr.New(compilerr.CategoryDecode, compilerr.KindMalformedMethodBody, compilerr.Location{ILOffset: start}, "truncated two-byte opcode prefix")
		}
		raw = 0xFE00 | uint16(d.data[d.offset])
		d.offset++
	}

	info, known := Lookup(raw)
	if !known {
		return Instruction{Opcode: unknownName(raw), ILOffset: start, RawOpcode: raw}, true, nil
	}

	operands, err := d.readOperands(info.Shape, start)
	if err != nil {
		return Instruction{}, false, err
	}

	return Instruction{
		Opcode:    info.Name,
		Operands:  operands,
		ILOffset:  start,
		RawOpcode: raw,
	}, true, nil
}

// DecodeAll runs a Decoder to exhaustion and returns every instruction.
func DecodeAll(il []byte) ([]Instruction, error) {
	d := NewDecoder(il)
	var out []Instruction
	for {
		inst, ok, err := d.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, inst)
	}
	return out, nil
}

func (d *Decoder) readOperands(shape OperandShape, opStart int) ([]int64, error) {
	n := operandByteLen(shape)
	if n == 0 {
		return nil, nil
	}
	if d.offset+n > len(d.data) {
		return nil, compilerr.New(compilerr.CategoryDecode, compilerr.KindMalformedMethodBody, compilerr.Location{ILOffset: opStart}, "truncated operand: need %d bytes, have %d", n, len(d.data)-d.offset)
	}
	raw := d.data[d.offset : d.offset+n]
	d.offset += n

	switch shape {
	case ShapeUint8:
		return []int64{int64(raw[0])}, nil
	case ShapeInt8:
		return []int64{int64(int8(raw[0]))}, nil
	case ShapeInt32:
		return []int64{int64(int32(binary.LittleEndian.Uint32(raw)))}, nil
	case ShapeToken:
		return []int64{int64(binary.LittleEndian.Uint32(raw))}, nil
	case ShapeInt64:
		return []int64{int64(binary.LittleEndian.Uint64(raw))}, nil
	case ShapeFloat32:
		return []int64{int64(binary.LittleEndian.Uint32(raw))}, nil
	case ShapeFloat64:
		return []int64{int64(binary.LittleEndian.Uint64(raw))}, nil
	default:
		return nil, nil
	}
}

// unknownName formats the canonical name for an opcode with no table
// entry, per spec.md §4.2: "unknown_<hex>".
func unknownName(raw uint16) string {
	if raw&0xFE00 == 0xFE00 {
		return "unknown_fe" + hex2(byte(raw))
	}
	return "unknown_" + hex2(byte(raw))
}

func hex2(b byte) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[b>>4], digits[b&0xf]})
}
