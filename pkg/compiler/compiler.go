package compiler

import (
	"fmt"

	"github.com/zurustar/letterbox/pkg/compiler/ast"
	"github.com/zurustar/letterbox/pkg/compiler/lexer"
)

// Compile tokenizes source and collects a CompileError for every illegal
// instruction. The program is returned even when errors are present: an
// illegal instruction only fails a run when execution reaches it.
func Compile(source string) ([]ast.Instruction, []*CompileError) {
	program := lexer.Tokenize(source)

	var errs []*CompileError
	for _, instr := range program {
		if il, ok := instr.(*ast.Illegal); ok {
			errs = append(errs, DescribeIllegal(source, il))
		}
	}
	return program, errs
}

// Check reports every illegal instruction in source.
func Check(source string) []*CompileError {
	_, errs := Compile(source)
	return errs
}

// DescribeIllegal converts an illegal instruction into a CompileError
// pointing at its position in source.
func DescribeIllegal(source string, il *ast.Illegal) *CompileError {
	line, column := il.Position()
	return NewLexerErrorWithContext(
		fmt.Sprintf("unrecognized instruction %q: %s", il.Literal, il.Reason),
		line, column, source)
}
