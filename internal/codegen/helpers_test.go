package codegen

import (
	"testing"

	"github.com/xyproto/gbilc/internal/emit"
)

func newHelperEmitter() *emit.Emitter {
	e := emit.New()
	e.Base = CodeStart
	return e
}

func TestEmitRuntimeHelpersDefinesAllFourLabels(t *testing.T) {
	e := newHelperEmitter()
	if err := emitRuntimeHelpers(e); err != nil {
		t.Fatalf("emitRuntimeHelpers: %v", err)
	}
	code, err := e.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(code) == 0 {
		t.Fatal("expected non-empty helper code")
	}
	for _, label := range []string{mul16Label, div16Label, memcpyLabel, memsetLabel} {
		if _, ok := e.LabelOffset(label); !ok {
			t.Errorf("helper label %q not defined", label)
		}
	}
}

func TestEmitRuntimeHelpersEachEndsInRet(t *testing.T) {
	// Every helper is a leaf routine reached by CALL and must end with
	// RET (0xC9) so codegen.go's call sites return to the caller.
	for _, fn := range []func(*emit.Emitter) error{emitMul16, emitDiv16, emitMemcpy, emitMemset} {
		e := newHelperEmitter()
		if err := fn(e); err != nil {
			t.Fatalf("helper emit: %v", err)
		}
		code, err := e.Finalize()
		if err != nil {
			t.Fatalf("Finalize: %v", err)
		}
		if len(code) == 0 || code[len(code)-1] != 0xC9 {
			t.Errorf("helper does not end with RET: % x", code)
		}
	}
}

func TestEmitDiv16HandlesZeroDivisorWithoutTrapping(t *testing.T) {
	// Division by zero must short-circuit to quotient 0, remainder 0
	// rather than looping or faulting (spec.md §4.5.6).
	e := newHelperEmitter()
	if err := emitDiv16(e); err != nil {
		t.Fatalf("emitDiv16: %v", err)
	}
	code, err := e.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	// JR NZ, nonzero (0x20) must appear early, right after testing B|C.
	found := false
	for i := 0; i+1 < len(code); i++ {
		if code[i] == 0x78 && code[i+1] == 0xB1 { // LD A,B ; OR C
			if code[i+2] == 0x20 {
				found = true
			}
			break
		}
	}
	if !found {
		t.Error("expected a zero-divisor guard (LD A,B; OR C; JR NZ) at the start of div16")
	}
}

func TestEmitMemcpyAndMemsetSkipOnZeroCount(t *testing.T) {
	for name, fn := range map[string]func(*emit.Emitter) error{"memcpy": emitMemcpy, "memset": emitMemset} {
		e := newHelperEmitter()
		if err := fn(e); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		code, err := e.Finalize()
		if err != nil {
			t.Fatalf("%s Finalize: %v", name, err)
		}
		// LD A,B ; OR C ; JR Z, done must follow right after the three
		// operand POPs, guarding the zero-count case before any loop
		// body runs.
		end := min(len(code), 6)
		if len(code) < 6 || code[3] != 0x78 || code[4] != 0xB1 || code[5] != 0x28 {
			t.Errorf("%s: expected zero-count guard after the operand pops, got % x", name, code[:end])
		}
	}
}
