package vm

import (
	"fmt"
	"maps"
	"slices"

	"github.com/zurustar/letterbox/pkg/compiler/ast"
)

// Store maps single-letter variable names to values.
//
// Reading a variable that has never been set creates it holding Number(0).
// A Store is shared by a program and every program it executes; it is not
// safe for concurrent use.
type Store struct {
	vars map[ast.Var]Value
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		vars: make(map[ast.Var]Value),
	}
}

// Get returns the value of name, creating it as zero if it is not set yet.
func (s *Store) Get(name ast.Var) (Value, error) {
	if !name.Valid() {
		return Value{}, invalidVarError(name)
	}
	v, ok := s.vars[name]
	if !ok {
		v = Zero()
		s.vars[name] = v
	}
	return v, nil
}

// Set stores value under name, replacing any previous value.
func (s *Store) Set(name ast.Var, value Value) error {
	if !name.Valid() {
		return invalidVarError(name)
	}
	s.vars[name] = value
	return nil
}

// Copy copies the value of from into to.
func (s *Store) Copy(from, to ast.Var) error {
	v, err := s.Get(from)
	if err != nil {
		return err
	}
	return s.Set(to, v)
}

// Reset removes name. A later read sees zero again.
func (s *Store) Reset(name ast.Var) {
	delete(s.vars, name)
}

// ResetAll removes every variable.
func (s *Store) ResetAll() {
	clear(s.vars)
}

// AsBool returns the truthiness of name.
func (s *Store) AsBool(name ast.Var) (bool, error) {
	v, err := s.Get(name)
	if err != nil {
		return false, err
	}
	return v.Truthy(), nil
}

// Has reports whether name currently holds a value, without creating it.
func (s *Store) Has(name ast.Var) bool {
	_, ok := s.vars[name]
	return ok
}

// Len returns the number of variables currently held.
func (s *Store) Len() int {
	return len(s.vars)
}

// Names returns the names currently held, in alphabetical order.
func (s *Store) Names() []ast.Var {
	return slices.Sorted(maps.Keys(s.vars))
}

// Snapshot returns a copy of the current contents.
func (s *Store) Snapshot() map[ast.Var]Value {
	return maps.Clone(s.vars)
}

func invalidVarError(name ast.Var) *RuntimeError {
	return newError(fmt.Sprintf("invalid variable name %q", rune(name)))
}
