package ir

import "testing"

func TestIsTerminator(t *testing.T) {
	terminators := []string{"ret", "br", "br.s", "beq.s", "bge.s", "bgt.s", "ble.s", "blt.s"}
	for _, op := range terminators {
		if !(Instruction{Opcode: op}).IsTerminator() {
			t.Errorf("%q should be a terminator", op)
		}
	}
	// "break" starts with "br" but is not a branch. brfalse.s/brtrue.s
	// are terminators and are exercised separately below.
	nonTerminators := []string{"nop", "add", "ldc.i4.0", "call", "break"}
	for _, op := range nonTerminators {
		if (Instruction{Opcode: op}).IsTerminator() {
			t.Errorf("%q should not be a terminator", op)
		}
	}
}

func TestIsTerminatorMatchesBrPrefix(t *testing.T) {
	// brfalse.s/brtrue.s start with "br" and are therefore terminators
	// too, per the prefix check codegen.go relies on.
	for _, op := range []string{"brfalse.s", "brtrue.s"} {
		if !(Instruction{Opcode: op}).IsTerminator() {
			t.Errorf("%q should be a terminator (br prefix)", op)
		}
	}
}

func TestMethodLastInstruction(t *testing.T) {
	m := &Method{BasicBlocks: []BasicBlock{
		{Label: "entry", Instructions: []Instruction{
			{Opcode: "ldc.i4.3"},
			{Opcode: "ret"},
		}},
	}}
	last, ok := m.LastInstruction()
	if !ok {
		t.Fatal("expected an instruction")
	}
	if last.Opcode != "ret" {
		t.Errorf("last opcode = %q, want ret", last.Opcode)
	}
}

func TestMethodLastInstructionEmpty(t *testing.T) {
	m := &Method{}
	if _, ok := m.LastInstruction(); ok {
		t.Fatal("expected no instruction for a method with no blocks")
	}
}

func TestNewModuleInitializesMaps(t *testing.T) {
	m := NewModule("Test")
	if m.Types == nil || m.Methods == nil || m.Constants == nil || m.MethodTokens == nil {
		t.Fatal("NewModule must initialize all four maps")
	}
	if m.EntryPoint != "" {
		t.Errorf("EntryPoint = %q, want empty", m.EntryPoint)
	}
}
