package typeresolve

import "testing"

func TestSizeOfPrimitives(t *testing.T) {
	r := New()
	cases := map[string]int{
		"System.Byte":    1,
		"System.SByte":   1,
		"System.Boolean": 1,
		"System.Int16":   2,
		"System.UInt16":  2,
		"System.IntPtr":  2,
		"System.UIntPtr": 2,
		"System.Int32":   4,
		"System.UInt32":  4,
	}
	for name, want := range cases {
		got, err := r.Size(name)
		if err != nil {
			t.Errorf("Size(%q): %v", name, err)
			continue
		}
		if got != want {
			t.Errorf("Size(%q) = %d, want %d", name, got, want)
		}
	}
}

func TestSizeOfUnknownTypeIsUnsupported(t *testing.T) {
	r := New()
	if _, err := r.Size("System.Void"); err == nil {
		t.Fatal("expected UnsupportedType for an unrecognized type name")
	}
}

func TestIsFloatingPointRejectedSeparately(t *testing.T) {
	if !IsPrimitive("System.Single") {
		t.Fatal("System.Single should be a recognized primitive (sized, even though lowering rejects it)")
	}
	if !IsFloatingPoint("System.Single") || !IsFloatingPoint("System.Double") {
		t.Fatal("Single/Double should be classified as floating-point")
	}
	if IsFloatingPoint("System.Int32") {
		t.Fatal("Int32 must not be classified as floating-point")
	}
}

func TestLayoutPacksFieldsWithoutPadding(t *testing.T) {
	r := New()
	fields := []FieldSpec{
		{Name: "a", TypeName: "System.Byte"},
		{Name: "b", TypeName: "System.Int32"},
		{Name: "c", TypeName: "System.Int16"},
	}
	layout, err := r.Layout("Point3", fields, r.Size)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	want := []FieldLayout{
		{Name: "a", Type: "System.Byte", Offset: 0, Size: 1},
		{Name: "b", Type: "System.Int32", Offset: 1, Size: 4},
		{Name: "c", Type: "System.Int16", Offset: 5, Size: 2},
	}
	if len(layout.Fields) != len(want) {
		t.Fatalf("got %d fields, want %d", len(layout.Fields), len(want))
	}
	for i, f := range want {
		if layout.Fields[i] != f {
			t.Errorf("field[%d] = %+v, want %+v", i, layout.Fields[i], f)
		}
	}
	if layout.Size != 7 {
		t.Errorf("Size = %d, want 7", layout.Size)
	}
	if layout.Alignment != 1 {
		t.Errorf("Alignment = %d, want 1 (no alignment requirements)", layout.Alignment)
	}
}

func TestLayoutSkipsConstantFields(t *testing.T) {
	r := New()
	fields := []FieldSpec{
		{Name: "Version", TypeName: "System.Int32", IsConstant: true},
		{Name: "value", TypeName: "System.Byte"},
	}
	layout, err := r.Layout("WithConst", fields, r.Size)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if len(layout.Fields) != 1 {
		t.Fatalf("got %d fields, want 1 (constant skipped)", len(layout.Fields))
	}
	if layout.Fields[0].Offset != 0 {
		t.Errorf("offset = %d, want 0", layout.Fields[0].Offset)
	}
}

func TestLayoutEmptyCompositeHasSizeOne(t *testing.T) {
	r := New()
	layout, err := r.Layout("Marker", nil, r.Size)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if layout.Size != 1 {
		t.Errorf("Size = %d, want 1 (a distinguishable address)", layout.Size)
	}
}

func TestLayoutIsMemoizedByName(t *testing.T) {
	r := New()
	fields := []FieldSpec{{Name: "x", TypeName: "System.Int32"}}
	first, err := r.Layout("Cached", fields, r.Size)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	// A second call with different fields must return the memoized
	// result, not recompute — spec.md §4.3: "the resolver memoizes by
	// type name to handle recursive queries."
	second, err := r.Layout("Cached", nil, r.Size)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if second != first {
		t.Fatal("expected the memoized *Layout pointer to be returned unchanged")
	}
}

func TestArrayLayoutIsPointerWidth(t *testing.T) {
	l := ArrayLayout("System.Int32[]")
	if l.Size != 2 {
		t.Errorf("Size = %d, want 2 (pointer-width)", l.Size)
	}
}
