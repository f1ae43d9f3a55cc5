package vm

import (
	"strings"
	"testing"

	"github.com/zurustar/letterbox/pkg/compiler/ast"
)

func TestStoreGetMaterializes(t *testing.T) {
	s := NewStore()
	if s.Has('a') {
		t.Fatal("new store should be empty")
	}

	v, err := s.Get('a')
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !v.Equal(Number(0)) {
		t.Errorf("Get('a') = %v, want 0", v)
	}
	if !s.Has('a') || s.Len() != 1 {
		t.Errorf("reading a should create it: has=%v len=%d", s.Has('a'), s.Len())
	}
}

func TestStoreSetAndCopy(t *testing.T) {
	s := NewStore()
	if err := s.Set('a', Text("hi")); err != nil {
		t.Fatal(err)
	}
	if err := s.Copy('a', 'b'); err != nil {
		t.Fatal(err)
	}
	b, _ := s.Get('b')
	if !b.Equal(Text("hi")) {
		t.Errorf("b = %v, want \"hi\"", b)
	}

	// Copy of an unset variable materializes both sides.
	if err := s.Copy('x', 'y'); err != nil {
		t.Fatal(err)
	}
	if !s.Has('x') || !s.Has('y') {
		t.Error("copy should create source and target")
	}
}

func TestStoreReset(t *testing.T) {
	s := NewStore()
	_ = s.Set('a', Number(1))
	_ = s.Set('b', Text("two"))

	s.Reset('a')
	if s.Has('a') {
		t.Error("a should be removed")
	}
	if v, _ := s.Get('a'); !v.Equal(Number(0)) {
		t.Errorf("a after reset = %v, want 0", v)
	}

	s.Reset('q')
	if s.Has('q') {
		t.Error("resetting an unset variable should not create it")
	}

	s.ResetAll()
	if s.Len() != 0 {
		t.Errorf("Len() after ResetAll = %d", s.Len())
	}
}

func TestStoreAsBool(t *testing.T) {
	s := NewStore()
	_ = s.Set('a', Number(2))
	_ = s.Set('b', Text(""))

	tests := []struct {
		name ast.Var
		want bool
	}{
		{'a', true},
		{'b', true},
		{'c', false},
	}
	for _, tt := range tests {
		got, err := s.AsBool(tt.name)
		if err != nil {
			t.Fatalf("AsBool(%s) failed: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("AsBool(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestStoreInvalidNames(t *testing.T) {
	s := NewStore()
	for _, name := range []ast.Var{'A', '1', '\'', ' ', 0} {
		if _, err := s.Get(name); err == nil || !strings.Contains(err.Error(), "invalid variable name") {
			t.Errorf("Get(%q) error = %v", rune(name), err)
		}
		if err := s.Set(name, Number(1)); err == nil {
			t.Errorf("Set(%q) should fail", rune(name))
		}
		if _, err := s.AsBool(name); err == nil {
			t.Errorf("AsBool(%q) should fail", rune(name))
		}
	}
	if s.Len() != 0 {
		t.Errorf("invalid names must not be stored, Len() = %d", s.Len())
	}
}

func TestStoreNamesAndSnapshot(t *testing.T) {
	s := NewStore()
	_ = s.Set('z', Number(1))
	_ = s.Set('a', Number(2))
	_ = s.Set('m', Text("x"))

	names := s.Names()
	if len(names) != 3 || names[0] != 'a' || names[1] != 'm' || names[2] != 'z' {
		t.Errorf("Names() = %v", names)
	}

	snap := s.Snapshot()
	snap['a'] = Number(99)
	if v, _ := s.Get('a'); !v.Equal(Number(2)) {
		t.Error("Snapshot must not alias the store")
	}
}
