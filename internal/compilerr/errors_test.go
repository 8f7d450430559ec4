package compilerr

import "testing"

func TestErrorImplementsErrorInterface(t *testing.T) {
	var err error = New(CategoryDecode, KindUnsupportedOpcode, Location{Method: "Main", ILOffset: 4}, "no lowering rule for %q", "ldtoken")
	want := "Main+0x04: UnsupportedOpcode: no lowering rule for \"ldtoken\""
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestLocationStringWithoutMethod(t *testing.T) {
	loc := Location{}
	if loc.String() != "<container>" {
		t.Errorf("String() = %q, want <container>", loc.String())
	}
}

func TestCollectorAccumulatesWarnings(t *testing.T) {
	var c Collector
	c.Add(Warning(CategoryDecode, Location{Method: "Foo"}, "unrecognized opcode 0x%02x", 0xFF))
	c.Add(Warning(CategoryLowering, Location{Method: "Foo"}, "narrowing constant"))
	if len(c.Warnings()) != 2 {
		t.Fatalf("got %d warnings, want 2", len(c.Warnings()))
	}
	report := c.Report(false)
	if report == "" {
		t.Fatal("expected a non-empty report")
	}
}

func TestKindStringRoundTrip(t *testing.T) {
	cases := map[Kind]string{
		KindInvalidContainer:     "InvalidContainer",
		KindMalformedMethodBody:  "MalformedMethodBody",
		KindUnsupportedType:      "UnsupportedType",
		KindUnsupportedOpcode:    "UnsupportedOpcode",
		KindDuplicateLabel:       "DuplicateLabel",
		KindUnresolvedLabel:      "UnresolvedLabel",
		KindRelocationOutOfRange: "RelocationOutOfRange",
		KindRomTooLarge:          "RomTooLarge",
	}
	for k, want := range cases {
		if k.String() != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, k.String(), want)
		}
	}
}
