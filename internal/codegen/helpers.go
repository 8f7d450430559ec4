package codegen

import "github.com/xyproto/gbilc/internal/emit"

// Fixed WRAM scratch cells the runtime helpers use to save the caller's
// BC across their own register use and, for div16, to hold a loop
// counter. Reserved well above the slot regions (internal/codegen's
// argument slots start at WramStart and its local slots at
// WramStart+0x0100, two bytes per slot index, which this target's test
// programs never come close to exhausting).
const (
	helperScratchBC      = 0xCFF0
	helperScratchCounter = 0xCFF2
)

// emitRuntimeHelpers appends the four fixed runtime routines spec.md
// §4.5.6 requires (mul16, div16, memcpy, memset) at their labeled
// addresses. Each helper pops its operands off the hardware stack, last
// pushed first. mul16 and div16 push their result back and save and
// restore the caller's BC around their own register use; memcpy and
// memset push nothing and use BC as their byte counter without
// restoring it.
func emitRuntimeHelpers(e *emit.Emitter) error {
	if err := emitMul16(e); err != nil {
		return err
	}
	if err := emitDiv16(e); err != nil {
		return err
	}
	if err := emitMemcpy(e); err != nil {
		return err
	}
	if err := emitMemset(e); err != nil {
		return err
	}
	return nil
}

func saveBC(e *emit.Emitter) {
	e.EmitByte(0x78) // LD A, B
	e.EmitByte(0xEA) // LD (a16), A
	e.EmitU16LE(helperScratchBC)
	e.EmitByte(0x79) // LD A, C
	e.EmitByte(0xEA)
	e.EmitU16LE(helperScratchBC + 1)
}

func restoreBC(e *emit.Emitter) {
	e.EmitByte(0xFA) // LD A, (a16)
	e.EmitU16LE(helperScratchBC)
	e.EmitByte(0x47) // LD B, A
	e.EmitByte(0xFA)
	e.EmitU16LE(helperScratchBC + 1)
	e.EmitByte(0x4F) // LD C, A
}

// emitMul16 computes a 16-bit product by shift-and-add: the
// multiplicand (DE) doubles each iteration and the multiplier (BC)
// shifts right, terminating as soon as the multiplier reaches zero
// (guaranteed within 16 iterations). The accumulator (HL) is pushed as
// the result; bits beyond 16 are discarded, matching the target's
// single 16-bit-wide ALU.
func emitMul16(e *emit.Emitter) error {
	if err := e.DefineLabel(mul16Label); err != nil {
		return err
	}
	saveBC(e)
	e.EmitByte(0xD1) // POP DE  (multiplicand)
	e.EmitByte(0xC1) // POP BC  (multiplier)
	e.EmitByte(0x21) // LD HL, d16
	e.EmitU16LE(0x0000)

	if err := e.DefineLabel(localSkipLabel("mul16", 0, "loop")); err != nil {
		return err
	}
	e.EmitByte(0x78) // LD A, B
	e.EmitByte(0xB1) // OR C
	donePos := e.Offset()
	e.EmitByte(0x28) // JR Z, done
	e.EmitByte(0x00) // placeholder operand

	e.EmitByte(0x79) // LD A, C
	e.EmitByte(0xE6) // AND d8
	e.EmitByte(0x01)
	skipAddPatch := e.Offset()
	e.EmitByte(0x28) // JR Z, skip_add
	e.EmitByte(0x00)
	e.EmitByte(0x19) // ADD HL, DE
	if err := e.DefineLabel(localSkipLabel("mul16", 0, "skip_add")); err != nil {
		return err
	}
	e.ReferenceLabel(localSkipLabel("mul16", 0, "skip_add"), skipAddPatch+1, emit.Rel8)

	// DE <<= 1
	e.EmitByte(0xCB)
	e.EmitByte(0x23) // SLA E
	e.EmitByte(0xCB)
	e.EmitByte(0x12) // RL D
	// BC >>= 1
	e.EmitByte(0xCB)
	e.EmitByte(0x38) // SRL B
	e.EmitByte(0xCB)
	e.EmitByte(0x19) // RR C

	loopBackPos := e.Offset()
	e.EmitByte(0x18) // JR loop
	e.EmitByte(0x00)
	e.ReferenceLabel(localSkipLabel("mul16", 0, "loop"), loopBackPos+1, emit.Rel8)

	if err := e.DefineLabel(localSkipLabel("mul16", 0, "done")); err != nil {
		return err
	}
	e.ReferenceLabel(localSkipLabel("mul16", 0, "done"), donePos+1, emit.Rel8)

	restoreBC(e)
	e.EmitByte(0xE5) // PUSH HL (product)
	e.EmitByte(0xC9) // RET
	return nil
}

// emitDiv16 computes quotient and remainder by restoring shift-and-
// subtract division. Division by zero short-circuits to quotient 0,
// remainder 0 without trapping, per spec.md §4.5.6.
func emitDiv16(e *emit.Emitter) error {
	if err := e.DefineLabel(div16Label); err != nil {
		return err
	}
	saveBC(e)
	e.EmitByte(0xC1) // POP BC (divisor)
	e.EmitByte(0xD1) // POP DE (dividend)

	e.EmitByte(0x78) // LD A, B
	e.EmitByte(0xB1) // OR C
	zeroPatchPos := e.Offset()
	e.EmitByte(0x20) // JR NZ, nonzero_divisor
	e.EmitByte(0x00)

	// divisor == 0: DE = 0, HL = 0, skip the loop entirely.
	e.EmitByte(0x11) // LD DE, d16
	e.EmitU16LE(0x0000)
	e.EmitByte(0x21) // LD HL, d16
	e.EmitU16LE(0x0000)
	finishPatchPos := e.Offset()
	e.EmitByte(0x18) // JR finish
	e.EmitByte(0x00)

	if err := e.DefineLabel(localSkipLabel("div16", 0, "nonzero")); err != nil {
		return err
	}
	e.ReferenceLabel(localSkipLabel("div16", 0, "nonzero"), zeroPatchPos+1, emit.Rel8)

	e.EmitByte(0x21) // LD HL, d16  (remainder = 0)
	e.EmitU16LE(0x0000)
	e.EmitByte(0x3E) // LD A, 16
	e.EmitByte(0x10)
	e.EmitByte(0xEA) // LD (a16), A
	e.EmitU16LE(helperScratchCounter)

	if err := e.DefineLabel(localSkipLabel("div16", 0, "loop")); err != nil {
		return err
	}
	// shift DE:HL left by one bit as a 32-bit pair, carrying DE's old
	// bit 15 into HL's bit 0.
	e.EmitByte(0xCB)
	e.EmitByte(0x23) // SLA E
	e.EmitByte(0xCB)
	e.EmitByte(0x12) // RL D
	e.EmitByte(0xCB)
	e.EmitByte(0x15) // RL L
	e.EmitByte(0xCB)
	e.EmitByte(0x14) // RL H

	// trial subtract: HL -= BC
	e.EmitByte(0x7D) // LD A, L
	e.EmitByte(0x91) // SUB C
	e.EmitByte(0x6F) // LD L, A
	e.EmitByte(0x7C) // LD A, H
	e.EmitByte(0x98) // SBC A, B
	e.EmitByte(0x67) // LD H, A

	failPatchPos := e.Offset()
	e.EmitByte(0x38) // JR C, subtract_failed
	e.EmitByte(0x00)

	e.EmitByte(0xCB) // SET 0, E  (quotient bit)
	e.EmitByte(0xC3)
	overPatchPos := e.Offset()
	e.EmitByte(0x18) // JR over_restore
	e.EmitByte(0x00)

	if err := e.DefineLabel(localSkipLabel("div16", 0, "subtract_failed")); err != nil {
		return err
	}
	e.ReferenceLabel(localSkipLabel("div16", 0, "subtract_failed"), failPatchPos+1, emit.Rel8)
	e.EmitByte(0x09) // ADD HL, BC  (restore)

	if err := e.DefineLabel(localSkipLabel("div16", 0, "over_restore")); err != nil {
		return err
	}
	e.ReferenceLabel(localSkipLabel("div16", 0, "over_restore"), overPatchPos+1, emit.Rel8)

	e.EmitByte(0xFA) // LD A, (a16)  -- decrement counter
	e.EmitU16LE(helperScratchCounter)
	e.EmitByte(0x3D) // DEC A
	e.EmitByte(0xEA) // LD (a16), A
	e.EmitU16LE(helperScratchCounter)

	loopBackPos := e.Offset()
	e.EmitByte(0x20) // JR NZ, loop
	e.EmitByte(0x00)
	e.ReferenceLabel(localSkipLabel("div16", 0, "loop"), loopBackPos+1, emit.Rel8)

	if err := e.DefineLabel(localSkipLabel("div16", 0, "finish")); err != nil {
		return err
	}
	e.ReferenceLabel(localSkipLabel("div16", 0, "finish"), finishPatchPos+1, emit.Rel8)

	restoreBC(e)
	e.EmitByte(0xD5) // PUSH DE  (quotient)
	e.EmitByte(0xE5) // PUSH HL  (remainder, pushed last)
	e.EmitByte(0xC9) // RET
	return nil
}

// emitMemcpy copies count bytes from src to dest, both advancing
// forward; a zero count is a no-op.
func emitMemcpy(e *emit.Emitter) error {
	if err := e.DefineLabel(memcpyLabel); err != nil {
		return err
	}
	e.EmitByte(0xC1) // POP BC (count)
	e.EmitByte(0xE1) // POP HL (src)
	e.EmitByte(0xD1) // POP DE (dest)

	e.EmitByte(0x78) // LD A, B
	e.EmitByte(0xB1) // OR C
	skipPatchPos := e.Offset()
	e.EmitByte(0x28) // JR Z, done
	e.EmitByte(0x00)

	if err := e.DefineLabel(localSkipLabel("memcpy", 0, "loop")); err != nil {
		return err
	}
	e.EmitByte(0x2A) // LD A, (HL+)
	e.EmitByte(0x12) // LD (DE), A
	e.EmitByte(0x13) // INC DE
	e.EmitByte(0x0B) // DEC BC
	e.EmitByte(0x78) // LD A, B
	e.EmitByte(0xB1) // OR C
	loopBackPos := e.Offset()
	e.EmitByte(0x20) // JR NZ, loop
	e.EmitByte(0x00)
	e.ReferenceLabel(localSkipLabel("memcpy", 0, "loop"), loopBackPos+1, emit.Rel8)

	if err := e.DefineLabel(localSkipLabel("memcpy", 0, "done")); err != nil {
		return err
	}
	e.ReferenceLabel(localSkipLabel("memcpy", 0, "done"), skipPatchPos+1, emit.Rel8)
	e.EmitByte(0xC9) // RET
	return nil
}

// emitMemset fills count bytes at dest with the low byte of value; a
// zero count is a no-op.
func emitMemset(e *emit.Emitter) error {
	if err := e.DefineLabel(memsetLabel); err != nil {
		return err
	}
	e.EmitByte(0xC1) // POP BC (count)
	e.EmitByte(0xD1) // POP DE (value)
	e.EmitByte(0xE1) // POP HL (dest)

	e.EmitByte(0x78) // LD A, B
	e.EmitByte(0xB1) // OR C
	skipPatchPos := e.Offset()
	e.EmitByte(0x28) // JR Z, done
	e.EmitByte(0x00)

	if err := e.DefineLabel(localSkipLabel("memset", 0, "loop")); err != nil {
		return err
	}
	e.EmitByte(0x7B) // LD A, E
	e.EmitByte(0x22) // LD (HL+), A
	e.EmitByte(0x0B) // DEC BC
	e.EmitByte(0x78) // LD A, B
	e.EmitByte(0xB1) // OR C
	loopBackPos := e.Offset()
	e.EmitByte(0x20) // JR NZ, loop
	e.EmitByte(0x00)
	e.ReferenceLabel(localSkipLabel("memset", 0, "loop"), loopBackPos+1, emit.Rel8)

	if err := e.DefineLabel(localSkipLabel("memset", 0, "done")); err != nil {
		return err
	}
	e.ReferenceLabel(localSkipLabel("memset", 0, "done"), skipPatchPos+1, emit.Rel8)
	e.EmitByte(0xC9) // RET
	return nil
}
