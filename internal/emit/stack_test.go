package emit

import "testing"

func TestStackTrackerPushPop(t *testing.T) {
	s := NewStackTracker()
	s.Push("lhs")
	s.Push("rhs")
	if s.Depth() != 2 {
		t.Fatalf("depth = %d, want 2", s.Depth())
	}
	if err := s.Pop("rhs"); err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if s.Depth() != 1 {
		t.Fatalf("depth = %d, want 1", s.Depth())
	}
}

func TestStackTrackerUnderflow(t *testing.T) {
	s := NewStackTracker()
	if err := s.Pop("nothing"); err == nil {
		t.Fatal("expected a stack-underflow error popping an empty tracker")
	}
}

func TestStackTrackerValidateAt(t *testing.T) {
	s := NewStackTracker()
	s.Push("return value")
	if err := s.ValidateAt(1, "ret"); err != nil {
		t.Fatalf("ValidateAt: %v", err)
	}
	if err := s.ValidateAt(0, "ret"); err == nil {
		t.Fatal("expected an imbalance error")
	}
}
