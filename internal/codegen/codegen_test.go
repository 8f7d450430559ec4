package codegen

import (
	"testing"

	"github.com/xyproto/gbilc/internal/compilerr"
	"github.com/xyproto/gbilc/internal/ir"
)

func moduleWithMethod(name string, entryPoint bool, instructions []ir.Instruction) *ir.Module {
	m := ir.NewModule("test")
	method := &ir.Method{
		Name:        name,
		FullName:    name,
		Static:      true,
		EntryPoint:  entryPoint,
		BasicBlocks: []ir.BasicBlock{{Label: "entry", Instructions: instructions}},
	}
	m.Methods[name] = method
	if entryPoint {
		m.EntryPoint = name
	}
	return m
}

func TestGenerateEmptyModuleStartsWithStartupStub(t *testing.T) {
	g := New(Options{}, nil)
	image, err := g.Generate(ir.NewModule("empty"))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// LD SP, StackStart ; DI -- the runtime helpers always follow
	want := []byte{0x31, 0xFE, 0xFF, 0xF3}
	if len(image) < len(want) {
		t.Fatalf("image = % x, want prefix % x", image, want)
	}
	for i, b := range want {
		if image[i] != b {
			t.Fatalf("image[%d] = 0x%02x, want 0x%02x", i, image[i], b)
		}
	}
}

func TestGenerateEntryPointEmitsFinalJump(t *testing.T) {
	module := moduleWithMethod("Main", true, []ir.Instruction{
		{Opcode: "ret", ILOffset: 0, RawOpcode: 0x2A},
	})
	g := New(Options{}, nil)
	image, err := g.Generate(module)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// Last 3 bytes: JP a16 to the method's offset (right after the 4-byte
	// startup stub).
	n := len(image)
	if image[n-3] != 0xC3 {
		t.Fatalf("final jump opcode = 0x%02x, want 0xC3", image[n-3])
	}
	target := uint16(image[n-2]) | uint16(image[n-1])<<8
	if target != uint16(CodeStart+4) {
		t.Fatalf("final jump target = 0x%04x, want 0x%04x", target, CodeStart+4)
	}
}

func TestGenerateAddLowersToStackSequence(t *testing.T) {
	module := moduleWithMethod("Add", false, []ir.Instruction{
		{Opcode: "ldc.i4.1", ILOffset: 0, RawOpcode: 0x17},
		{Opcode: "ldc.i4.2", ILOffset: 1, RawOpcode: 0x18},
		{Opcode: "add", ILOffset: 2, RawOpcode: 0x58},
		{Opcode: "ret", ILOffset: 3, RawOpcode: 0x2A},
	})
	g := New(Options{}, nil)
	image, err := g.Generate(module)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	body := image[4:] // past the startup stub; runtime helpers follow want
	want := []byte{
		0x21, 0x01, 0x00, 0xE5, // LD HL,1 ; PUSH HL
		0x21, 0x02, 0x00, 0xE5, // LD HL,2 ; PUSH HL
		0xD1, 0xE1, 0x19, 0xE5, // POP DE ; POP HL ; ADD HL,DE ; PUSH HL
		0xC9, // RET
	}
	if len(body) < len(want) {
		t.Fatalf("body = % x, want prefix % x", body, want)
	}
	for i, b := range want {
		if body[i] != b {
			t.Fatalf("body[%d] = 0x%02x, want 0x%02x", i, body[i], b)
		}
	}
}

func TestGenerateMissingTerminatorGetsImplicitRet(t *testing.T) {
	module := moduleWithMethod("NoReturn", false, []ir.Instruction{
		{Opcode: "nop", ILOffset: 0, RawOpcode: 0x00},
	})
	g := New(Options{}, nil)
	image, err := g.Generate(module)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	body := image[4:] // runtime helpers follow the method body
	if len(body) < 2 || body[0] != 0x00 || body[1] != 0xC9 {
		t.Fatalf("body = % x, want prefix [00 C9]", body)
	}
}

func TestGenerateBackwardBranchResolves(t *testing.T) {
	// A tiny loop: nop ; br.s back-to-self-ish pattern exercised via
	// an unconditional backward branch to IL offset 0.
	module := moduleWithMethod("Loop", false, []ir.Instruction{
		{Opcode: "nop", ILOffset: 0, RawOpcode: 0x00},
		{Opcode: "br.s", ILOffset: 1, Operands: []int64{-3}, RawOpcode: 0x2B},
	})
	g := New(Options{}, nil)
	image, err := g.Generate(module)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	body := image[4:] // nop(1) ; JR rel8(2) ; runtime helpers follow
	if len(body) < 3 {
		t.Fatalf("body len = %d, want >= 3: % x", len(body), body)
	}
	if body[0] != 0x00 || body[1] != 0x18 {
		t.Fatalf("body = % x, want leading [00 18 ..]", body)
	}
	// JR's displacement is measured from the byte after the operand
	// (offset 3) back to offset 0 => disp = -3.
	if int8(body[2]) != -3 {
		t.Fatalf("branch displacement = %d, want -3", int8(body[2]))
	}
}

func TestGenerateStrictModeFailsOnUnknownOpcode(t *testing.T) {
	module := moduleWithMethod("Bad", false, []ir.Instruction{
		{Opcode: "newobj", ILOffset: 0, RawOpcode: 0x73},
	})
	g := New(Options{Strict: true}, nil)
	_, err := g.Generate(module)
	if err == nil {
		t.Fatal("expected UnsupportedOpcode error, got nil")
	}
	cerr, ok := err.(*compilerr.Error)
	if !ok {
		t.Fatalf("error type = %T, want *compilerr.Error", err)
	}
	if cerr.Kind != compilerr.KindUnsupportedOpcode {
		t.Fatalf("Kind = %v, want KindUnsupportedOpcode", cerr.Kind)
	}
}

func TestGenerateNonStrictModeWarnsAndEmitsNop(t *testing.T) {
	module := moduleWithMethod("Bad", false, []ir.Instruction{
		{Opcode: "newobj", ILOffset: 0, RawOpcode: 0x73},
	})
	warnings := &compilerr.Collector{}
	g := New(Options{Strict: false}, warnings)
	image, err := g.Generate(module)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(warnings.Warnings()) == 0 {
		t.Fatal("expected a warning for the unsupported opcode")
	}
	body := image[4:]
	if len(body) < 2 || body[0] != 0x00 || body[1] != 0xC9 {
		t.Fatalf("body = % x, want prefix [00 C9] (nop + implicit ret)", body)
	}
}

func TestGenerateStackUnderflowIsFatal(t *testing.T) {
	// "add" with nothing ever pushed: the method's IL is unbalanced.
	module := moduleWithMethod("Broken", false, []ir.Instruction{
		{Opcode: "add", ILOffset: 0, RawOpcode: 0x58},
		{Opcode: "ret", ILOffset: 1, RawOpcode: 0x2A},
	})
	g := New(Options{}, nil)
	_, err := g.Generate(module)
	if err == nil {
		t.Fatal("expected a stack underflow error, got nil")
	}
	cerr, ok := err.(*compilerr.Error)
	if !ok {
		t.Fatalf("error type = %T, want *compilerr.Error", err)
	}
	if cerr.Kind != compilerr.KindMalformedMethodBody {
		t.Fatalf("Kind = %v, want KindMalformedMethodBody", cerr.Kind)
	}
}

func TestGenerateCallToMemberRefTokenIsUnsupported(t *testing.T) {
	// Tag 0x0A in the token's top byte is MemberRef, not MethodDef: it
	// never appears in MethodTokens, so it must fall back to the
	// generic unsupported-opcode path regardless of RID.
	module := moduleWithMethod("Caller", false, []ir.Instruction{
		{Opcode: "call", ILOffset: 0, Operands: []int64{0x0A000001}, RawOpcode: 0x28},
	})
	g := New(Options{Strict: true}, nil)
	_, err := g.Generate(module)
	if err == nil {
		t.Fatal("expected an error for an unresolved call target, got nil")
	}
	cerr, ok := err.(*compilerr.Error)
	if !ok {
		t.Fatalf("error type = %T, want *compilerr.Error", err)
	}
	if cerr.Kind != compilerr.KindUnsupportedOpcode {
		t.Fatalf("Kind = %v, want KindUnsupportedOpcode", cerr.Kind)
	}
}

func TestGenerateCallResolvesKnownMethodDefTarget(t *testing.T) {
	module := moduleWithMethod("Callee", false, []ir.Instruction{
		{Opcode: "ret", ILOffset: 0, RawOpcode: 0x2A},
	})
	callerMethod := &ir.Method{
		Name: "Caller", FullName: "Caller", Static: true,
		BasicBlocks: []ir.BasicBlock{{Label: "entry", Instructions: []ir.Instruction{
			{Opcode: "call", ILOffset: 0, Operands: []int64{0x06000001}, RawOpcode: 0x28},
			{Opcode: "ret", ILOffset: 5, RawOpcode: 0x2A},
		}}},
	}
	module.Methods["Caller"] = callerMethod
	module.MethodTokens[0x06000001] = "Callee"

	g := New(Options{Strict: true}, nil)
	image, err := g.Generate(module)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// Methods are lowered in sorted-name order (Callee, then Caller), so
	// Callee's label sits right after the 4-byte startup stub: a single
	// RET.
	calleeOffset := CodeStart + 4
	body := image[4:]
	if body[0] != 0xC9 {
		t.Fatalf("Callee body = % x, want leading RET", body)
	}
	// Caller follows immediately: CALL a16 to Callee, then RET.
	callerBody := body[1:]
	if callerBody[0] != 0xCD {
		t.Fatalf("Caller opcode = 0x%02x, want 0xCD (CALL a16)", callerBody[0])
	}
	target := uint16(callerBody[1]) | uint16(callerBody[2])<<8
	if target != uint16(calleeOffset) {
		t.Fatalf("call target = 0x%04x, want 0x%04x", target, calleeOffset)
	}
	if callerBody[3] != 0xC9 {
		t.Fatalf("Caller's trailing opcode = 0x%02x, want 0xC9 (RET)", callerBody[3])
	}
}

func TestGenerateStloc16Roundtrip(t *testing.T) {
	module := moduleWithMethod("Roundtrip", false, []ir.Instruction{
		{Opcode: "ldc.i4.5", ILOffset: 0, RawOpcode: 0x1B},
		{Opcode: "stloc.0", ILOffset: 1, RawOpcode: 0x0A},
		{Opcode: "ldloc.0", ILOffset: 2, RawOpcode: 0x06},
		{Opcode: "ret", ILOffset: 3, RawOpcode: 0x2A},
	})
	g := New(Options{}, nil)
	image, err := g.Generate(module)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	body := image[4:]
	want := []byte{
		0x21, 0x05, 0x00, 0xE5, // LD HL,5 ; PUSH HL
		0xD1, 0x21, 0x00, 0xC1, 0x73, 0x23, 0x72, // POP DE ; LD HL,localBase ; LD (HL),E ; INC HL ; LD (HL),D
		0x21, 0x00, 0xC1, 0x5E, 0x23, 0x56, 0xD5, // LD HL,localBase ; LD E,(HL) ; INC HL ; LD D,(HL) ; PUSH DE
		0xC9,
	}
	if len(body) < len(want) {
		t.Fatalf("body = % x (len %d), want prefix % x (len %d)", body, len(body), want, len(want))
	}
	for i, b := range want {
		if body[i] != b {
			t.Fatalf("body[%d] = 0x%02x, want 0x%02x", i, body[i], b)
		}
	}
}
