// Package emit implements Component F: an append-only machine-code
// buffer with label definition/reference and a linear relocation pass.
// See SPEC_FULL.md §4.4 / spec.md §4.4.
package emit

import (
	"bytes"
	"fmt"
	"os"

	"github.com/xyproto/gbilc/internal/compilerr"
)

// RelocationKind selects how a pending reference is patched at
// finalization.
type RelocationKind int

const (
	// Rel8 writes a signed 8-bit displacement from patchPos+1 to the
	// label's offset; out-of-range raises RelocationOutOfRange.
	Rel8 RelocationKind = iota
	// Abs16 writes the label's absolute offset as a little-endian
	// 16-bit value.
	Abs16
)

type pendingRef struct {
	label    string
	patchPos int
	kind     RelocationKind
}

// Emitter is the append-only machine-code buffer of spec.md §4.4:
// labels map to absolute offsets, and references are queued until
// Finalize flattens the buffer and patches them in.
type Emitter struct {
	buf     bytes.Buffer
	labels  map[string]int
	pending []pendingRef

	// Verbose gates the teacher-style byte trace to stderr.
	Verbose bool

	// Base is added to a label's recorded offset when resolving an Abs16
	// relocation, so labels can be defined against a buffer that starts
	// at offset zero while the buffer itself is ultimately placed at a
	// nonzero address in the final image (CODE_START). Rel8 relocations
	// are unaffected: Base cancels out in the displacement subtraction.
	Base int
}

// New returns an empty Emitter.
func New() *Emitter {
	return &Emitter{labels: make(map[string]int)}
}

// Offset returns the current position: the buffer grows monotonically
// and nothing already emitted is rewritten except by the relocation
// pass.
func (e *Emitter) Offset() int {
	return e.buf.Len()
}

func (e *Emitter) trace(bs []byte) {
	if !e.Verbose {
		return
	}
	for _, b := range bs {
		fmt.Fprintf(os.Stderr, " %02x", b)
	}
}

// EmitByte appends a single raw byte and returns the pre-append offset.
func (e *Emitter) EmitByte(b byte) int {
	off := e.Offset()
	e.buf.WriteByte(b)
	e.trace([]byte{b})
	return off
}

// EmitBytes appends raw bytes and returns the pre-append offset.
func (e *Emitter) EmitBytes(bs []byte) int {
	off := e.Offset()
	e.buf.Write(bs)
	e.trace(bs)
	return off
}

// EmitFill appends n copies of b and returns the pre-append offset.
func (e *Emitter) EmitFill(b byte, n int) int {
	off := e.Offset()
	for i := 0; i < n; i++ {
		e.buf.WriteByte(b)
	}
	if e.Verbose {
		for i := 0; i < n; i++ {
			fmt.Fprintf(os.Stderr, " %02x", b)
		}
	}
	return off
}

// EmitU16LE appends a little-endian 16-bit value and returns the
// pre-append offset.
func (e *Emitter) EmitU16LE(v uint16) int {
	return e.EmitBytes([]byte{byte(v), byte(v >> 8)})
}

// DefineLabel records name -> current offset. Defining the same label
// twice raises DuplicateLabel.
func (e *Emitter) DefineLabel(name string) error {
	if _, exists := e.labels[name]; exists {
		return compilerr.New(compilerr.CategoryEmission, compilerr.KindDuplicateLabel, compilerr.Location{}, "label %q already defined", name)
	}
	e.labels[name] = e.Offset()
	return nil
}

// ReferenceLabel queues a relocation: when Finalize runs, the bytes at
// patchPos will be overwritten per kind once name's offset is known.
func (e *Emitter) ReferenceLabel(name string, patchPos int, kind RelocationKind) {
	e.pending = append(e.pending, pendingRef{label: name, patchPos: patchPos, kind: kind})
}

// Finalize flattens the buffer and applies every pending relocation,
// returning the final byte slice.
func (e *Emitter) Finalize() ([]byte, error) {
	out := make([]byte, e.buf.Len())
	copy(out, e.buf.Bytes())

	for _, ref := range e.pending {
		target, ok := e.labels[ref.label]
		if !ok {
			return nil, compilerr.New(compilerr.CategoryEmission, compilerr.KindUnresolvedLabel, compilerr.Location{}, "unresolved label %q", ref.label)
		}

		switch ref.kind {
		case Rel8:
			disp := target - (ref.patchPos + 1)
			if disp < -128 || disp > 127 {
				return nil, compilerr.New(compilerr.CategoryEmission, compilerr.KindRelocationOutOfRange, compilerr.Location{}, "displacement %d to label %q out of rel8 range", disp, ref.label)
			}
			if ref.patchPos >= len(out) {
				return nil, compilerr.New(compilerr.CategoryEmission, compilerr.KindRelocationOutOfRange, compilerr.Location{}, "patch position %d out of range", ref.patchPos)
			}
			out[ref.patchPos] = byte(int8(disp))
		case Abs16:
			if ref.patchPos+2 > len(out) {
				return nil, compilerr.New(compilerr.CategoryEmission, compilerr.KindRelocationOutOfRange, compilerr.Location{}, "patch position %d out of range for abs16", ref.patchPos)
			}
			abs := target + e.Base
			out[ref.patchPos] = byte(abs)
			out[ref.patchPos+1] = byte(abs >> 8)
		}
	}

	return out, nil
}

// LabelOffset returns the recorded offset of a defined label.
func (e *Emitter) LabelOffset(name string) (int, bool) {
	off, ok := e.labels[name]
	return off, ok
}
