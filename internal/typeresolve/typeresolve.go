// Package typeresolve maps managed type names to target-memory layouts:
// sizes, alignment, and field offsets — Component E. See SPEC_FULL.md
// §4.3 / spec.md §4.3.
package typeresolve

import "github.com/xyproto/gbilc/internal/compilerr"

// primitiveSizes fixes the byte width of every primitive type this
// target recognizes. IntPtr/UIntPtr collapse to the 16-bit address
// width. Floating-point entries are present, so Size and Layout accept
// Single and Double like any other primitive; IsFloatingPoint identifies
// them, and nothing in this package rejects them (the target CPU has no
// FPU).
var primitiveSizes = map[string]int{
	"System.Byte":    1,
	"System.SByte":   1,
	"System.Boolean": 1,
	"System.Int16":   2,
	"System.UInt16":  2,
	"System.Char":    2,
	"System.IntPtr":  2,
	"System.UIntPtr": 2,
	"System.Int32":   4,
	"System.UInt32":  4,
	"System.Single":  4,
	"System.Double":  8,
}

var floatingPoint = map[string]bool{
	"System.Single": true,
	"System.Double": true,
}

// IsPrimitive reports whether name is a recognized primitive type.
func IsPrimitive(name string) bool {
	_, ok := primitiveSizes[name]
	return ok
}

// IsFloatingPoint reports whether name is one of the floating-point
// primitives.
func IsFloatingPoint(name string) bool {
	return floatingPoint[name]
}

// FieldSpec is one field of a composite type as seen by the caller
// (the IR builder), in declaration order. Constant-valued fields are
// skipped by Layout, matching spec.md §4.3 ("constant-valued fields are
// skipped").
type FieldSpec struct {
	Name       string
	TypeName   string
	IsConstant bool
}

// FieldLayout is one resolved field: its name, declared type, computed
// byte offset, and size.
type FieldLayout struct {
	Name   string
	Type   string
	Offset int
	Size   int
}

// Layout is the resolved memory shape of a type: total size, alignment
// (always 1 on this target — no alignment requirements), and, for
// composites, its field list.
type Layout struct {
	Name      string
	Size      int
	Alignment int
	Primitive bool
	Fields    []FieldLayout
}

// Resolver memoizes layouts by type name for the lifetime of one
// compilation (spec.md §5: "memoization cache ... is per-compilation and
// discarded with the module").
type Resolver struct {
	cache map[string]*Layout
}

// New returns an empty Resolver.
func New() *Resolver {
	return &Resolver{cache: make(map[string]*Layout)}
}

// Size returns the byte size of a primitive type, erroring with
// UnsupportedType if name is not a recognized primitive.
func (r *Resolver) Size(name string) (int, error) {
	size, ok := primitiveSizes[name]
	if !ok {
		return 0, compilerr.New(compilerr.CategoryLowering, compilerr.KindUnsupportedType, compilerr.Location{}, "no size known for type %q", name)
	}
	return size, nil
}

// PrimitiveLayout returns the memoized Layout for a primitive type.
func (r *Resolver) PrimitiveLayout(name string) (*Layout, error) {
	if l, ok := r.cache[name]; ok {
		return l, nil
	}
	size, err := r.Size(name)
	if err != nil {
		return nil, err
	}
	l := &Layout{Name: name, Size: size, Alignment: 1, Primitive: true}
	r.cache[name] = l
	return l, nil
}

// Layout resolves a composite type's memory layout given its fields in
// declaration order. Fields are packed with no padding (alignment 1);
// constant fields are skipped; a composite with no non-constant fields
// gets a minimum size of 1 byte (a distinguishable address). fieldSize
// resolves a single field's byte size — for a nested composite this is
// the caller's responsibility to have already resolved and passed in via
// a prior Layout call, keeping this function non-recursive over
// caller-supplied data.
func (r *Resolver) Layout(typeName string, fields []FieldSpec, fieldSize func(typeName string) (int, error)) (*Layout, error) {
	if l, ok := r.cache[typeName]; ok {
		return l, nil
	}

	var offset int
	var out []FieldLayout
	for _, f := range fields {
		if f.IsConstant {
			continue
		}
		size, err := fieldSize(f.TypeName)
		if err != nil {
			return nil, err
		}
		out = append(out, FieldLayout{Name: f.Name, Type: f.TypeName, Offset: offset, Size: size})
		offset += size
	}

	size := offset
	if size == 0 {
		size = 1
	}

	l := &Layout{Name: typeName, Size: size, Alignment: 1, Fields: out}
	r.cache[typeName] = l
	return l, nil
}

// ArrayLayout returns the fixed pointer-width layout used for every
// array type, regardless of element type (the element size is tracked
// separately by the caller as metadata, per spec.md §4.3).
func ArrayLayout(typeName string) *Layout {
	return &Layout{Name: typeName, Size: 2, Alignment: 1}
}
