// Package compiler is the orchestrator: it owns the single-threaded,
// synchronous pipeline described in SPEC_FULL.md §5, driving Components
// A through H in sequence and handing the caller either a finished
// cartridge image or the first fatal error any phase raised. See
// spec.md §2's "Data flow" line and §5 ("Concurrency & Resource
// Model").
package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xyproto/gbilc/internal/cartridge"
	"github.com/xyproto/gbilc/internal/codegen"
	"github.com/xyproto/gbilc/internal/compilerr"
	"github.com/xyproto/gbilc/internal/container"
	"github.com/xyproto/gbilc/internal/ir"
	"github.com/xyproto/gbilc/internal/typeresolve"
)

// Phase names one stage of a compilation. Compile enters PhaseRead,
// PhaseResolve, PhaseBuild, PhaseGenerate, PhaseAssemble and
// PhaseComplete, in that order; PhaseDecode is never entered, since IL
// decoding runs inside the IR builder. Named the way the teacher's own
// compilation_pipeline.go names its stages, re-themed to this
// compiler's six pipeline phases instead of the teacher's ELF-specific
// staging (first/second pass symbol collection, PC relocation, ...).
type Phase int

const (
	PhaseRead Phase = iota
	PhaseDecode
	PhaseBuild
	PhaseResolve
	PhaseGenerate
	PhaseAssemble
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseRead:
		return "Read Container"
	case PhaseDecode:
		return "Decode IL"
	case PhaseBuild:
		return "Build IR"
	case PhaseResolve:
		return "Resolve Types"
	case PhaseGenerate:
		return "Generate Code"
	case PhaseAssemble:
		return "Assemble Cartridge"
	case PhaseComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Options configures one compilation end to end: the external
// collaborators (input/output paths) plus the knobs that flow through
// to internal/codegen and internal/cartridge.
type Options struct {
	InputPath     string
	OutputPath    string
	Title         string
	CartridgeType byte
	Strict        bool
	Verbose       bool
}

// Result is everything a completed compilation produced: the final
// image bytes plus every non-fatal diagnostic collected along the way.
// The driver never writes the file itself -- see Driver.Compile's doc
// comment for why that is the caller's job.
type Result struct {
	Image    []byte
	Warnings *compilerr.Collector
}

// Driver coordinates one compilation. It is not reused across
// compilations -- spec.md §5: "no shared mutable state between
// compilations (the process exits after one compilation)" -- so a
// fresh Driver is cheap and the zero value (besides Options) is never
// relied upon.
type Driver struct {
	opts  Options
	phase Phase
}

// New returns a Driver configured by opts.
func New(opts Options) *Driver {
	return &Driver{opts: opts, phase: PhaseRead}
}

// Phase reports the stage most recently entered, for a caller that
// wants to print progress (the CLI's --verbose path).
func (d *Driver) Phase() Phase {
	return d.phase
}

func (d *Driver) transition(p Phase) {
	d.phase = p
	if d.opts.Verbose {
		fmt.Fprintf(os.Stderr, "=== %s ===\n", p)
	}
}

// Compile runs the full pipeline over opts.InputPath and returns the
// assembled cartridge image. It does not write OutputPath -- per
// spec.md §5 ("the output is written in a single pass after the image
// is fully assembled"), the single write belongs to the caller so that
// a failure at any phase before Assemble never touches the filesystem
// at the destination path. On success the caller is expected to write
// Result.Image to opts.OutputPath in one os.WriteFile call.
func (d *Driver) Compile() (*Result, error) {
	warnings := &compilerr.Collector{}

	d.transition(PhaseRead)
	c, err := container.Open(d.opts.InputPath)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	d.transition(PhaseResolve)
	resolver := typeresolve.New()

	d.transition(PhaseBuild)
	moduleName := moduleNameFromPath(d.opts.InputPath)
	builder := ir.NewBuilder(resolver, warnings)
	module, err := builder.Build(moduleName, c)
	if err != nil {
		return nil, err
	}

	d.transition(PhaseGenerate)
	gen := codegen.New(codegen.Options{Strict: d.opts.Strict, Verbose: d.opts.Verbose}, warnings)
	code, err := gen.Generate(module)
	if err != nil {
		return nil, err
	}

	d.transition(PhaseAssemble)
	image, err := cartridge.Build(code, cartridge.Options{
		Title:         d.opts.Title,
		CartridgeType: d.opts.CartridgeType,
	})
	if err != nil {
		return nil, err
	}

	d.transition(PhaseComplete)
	return &Result{Image: image, Warnings: warnings}, nil
}

// moduleNameFromPath derives an IR module name from the input file:
// the base name without its extension, matching how the decoded
// assembly's own module name would read absent a dedicated metadata
// lookup (container.go does not expose the #Strings "module name" row
// independently of TypeDef/MethodDef, so the file name is the
// nearest available stand-in).
func moduleNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
