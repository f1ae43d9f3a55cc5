// Package lexer turns Letterbox source text into instructions.
//
// Letterbox has no statement separators: each instruction is recognised by
// its fixed shape at the current position. Loop, If, Unless and While read
// their variable and then lex the immediately following text as their single
// nested instruction, so lexing and tree construction happen in one pass.
package lexer

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/zurustar/letterbox/pkg/compiler/ast"
)

// Lexer tokenizes Letterbox source code.
type Lexer struct {
	input        string
	position     int  // current position in input
	readPosition int  // current reading position (after current char)
	ch           byte // current char
	line         int  // current line number
	column       int  // current column number
	done         bool
}

// New creates a new Lexer.
func New(input string) *Lexer {
	l := &Lexer{
		input:  input,
		line:   1,
		column: 0,
	}
	l.readChar()
	return l
}

// Next returns the next instruction. It returns false once the input is
// exhausted and keeps returning false afterwards.
func (l *Lexer) Next() (ast.Instruction, bool) {
	if l.done {
		return nil, false
	}

	l.skipIgnored()

	if l.atEOF() {
		l.done = true
		return nil, false
	}
	return l.readInstruction(), true
}

// Tokenize drains a new lexer over input.
func Tokenize(input string) []ast.Instruction {
	l := New(input)
	var program []ast.Instruction
	for {
		instr, ok := l.Next()
		if !ok {
			return program
		}
		program = append(program, instr)
	}
}

// readInstruction reads one instruction starting at the current character.
// It never returns nil.
func (l *Lexer) readInstruction() ast.Instruction {
	start := l.position
	line, column := l.line, l.column

	tok := func() ast.Token {
		return ast.Token{Literal: l.input[start:l.position], Line: line, Column: column}
	}
	illegal := func(format string, args ...any) ast.Instruction {
		return &ast.Illegal{Token: tok(), Reason: fmt.Sprintf(format, args...)}
	}

	head := l.ch
	l.readChar()

	switch head {
	case 'S':
		v, ok := l.readVar()
		if !ok {
			return illegal("expected variable after S")
		}
		if l.ch == '\'' {
			text, ok := l.readQuoted()
			if !ok {
				return illegal("unterminated string")
			}
			return &ast.SaveStr{Token: tok(), Var: v, Text: text}
		}
		num, ok := l.readNumber(true)
		if !ok {
			return illegal("expected number or string after S%c", v)
		}
		return &ast.SaveNumber{Token: tok(), Var: v, Value: num}

	case 'C', 'A':
		a, ok := l.readVar()
		if !ok {
			return illegal("expected two variables after %c", head)
		}
		b, ok := l.readVar()
		if !ok {
			return illegal("expected two variables after %c", head)
		}
		if head == 'C' {
			return &ast.Copy{Token: tok(), From: a, To: b}
		}
		return &ast.Append{Token: tok(), Target: a, Source: b}

	case 'P':
		if l.ch == '\'' {
			text, ok := l.readQuoted()
			if !ok {
				return illegal("unterminated string")
			}
			return &ast.PrintStr{Token: tok(), Text: text}
		}
		v, ok := l.readVar()
		if !ok {
			return illegal("expected variable or string after P")
		}
		return &ast.PrintVar{Token: tok(), Var: v}

	case 'M', 'B':
		op, ok := l.readUpper()
		if !ok {
			return illegal("expected operator after %c", head)
		}
		vars, ok := l.readVars(3)
		if !ok {
			return illegal("expected three variables after %c%c", head, op)
		}
		if head == 'M' {
			if !ast.MathOperator(op).Valid() {
				return illegal("invalid math operator '%c'", op)
			}
			return &ast.MathOp{Token: tok(), Op: ast.MathOperator(op), Target: vars[0], A: vars[1], B: vars[2]}
		}
		if !ast.BoolOperator(op).Valid() {
			return illegal("invalid boolean operator '%c'", op)
		}
		return &ast.BoolOp{Token: tok(), Op: ast.BoolOperator(op), Target: vars[0], A: vars[1], B: vars[2]}

	case 'L', 'I', 'U', 'W':
		v, ok := l.readVar()
		if !ok {
			return illegal("expected variable after %c", head)
		}
		if l.atEOF() || isWhitespace(l.ch) || l.ch == '!' {
			return illegal("missing nested instruction after %c%c", head, v)
		}
		body := l.readInstruction()
		if bad, isIllegal := body.(*ast.Illegal); isIllegal {
			return illegal("invalid nested instruction: %s", bad.Reason)
		}
		switch head {
		case 'L':
			return &ast.Loop{Token: tok(), Count: v, Body: body}
		case 'I':
			return &ast.IfStatement{Token: tok(), Cond: v, Body: body}
		case 'U':
			return &ast.UnlessStatement{Token: tok(), Cond: v, Body: body}
		default:
			return &ast.WhileLoop{Token: tok(), Cond: v, Body: body}
		}

	case 'R':
		if l.ch == 'A' {
			l.readChar()
			return &ast.ResetAll{Token: tok()}
		}
		v, ok := l.readVar()
		if !ok {
			return illegal("expected variable or A after R")
		}
		return &ast.ResetVar{Token: tok(), Var: v}

	case 'G':
		mode, ok := l.readUpper()
		if !ok {
			return illegal("expected input mode after G")
		}
		v, ok := l.readVar()
		if !ok {
			return illegal("expected variable after G%c", mode)
		}
		index, ok := l.readNumber(false)
		if !ok {
			return illegal("expected input index after G%c%c", mode, v)
		}
		if !ast.InputMode(mode).Valid() {
			return illegal("invalid input mode '%c'", mode)
		}
		return &ast.GetInput{Token: tok(), Mode: ast.InputMode(mode), Var: v, Index: index}

	case 'N':
		v, ok := l.readVar()
		if !ok {
			return illegal("expected variable after N")
		}
		return &ast.Negate{Token: tok(), Var: v}

	case 'F':
		return &ast.Finish{Token: tok()}

	case 'X':
		fn, ok := l.readVar()
		if !ok {
			return illegal("expected variable after X")
		}
		var args []ast.Var
		for isVar(l.ch) {
			args = append(args, ast.Var(l.ch))
			l.readChar()
		}
		if len(args)%2 != 0 {
			return illegal("odd number of parameter letters")
		}
		return &ast.Execute{Token: tok(), Func: fn, Args: args}
	}

	// Not the start of any instruction: consume the whole character.
	_, size := utf8.DecodeRuneInString(l.input[start:])
	for l.position < start+size {
		l.readChar()
	}
	return illegal("unrecognized character %q", l.input[start:l.position])
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	if l.position > len(l.input) {
		l.position = len(l.input)
	}
	l.readPosition++
	l.column++

	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) atEOF() bool {
	return l.position >= len(l.input)
}

// skipIgnored skips whitespace and ! comments.
func (l *Lexer) skipIgnored() {
	for !l.atEOF() {
		switch {
		case isWhitespace(l.ch):
			l.readChar()
		case l.ch == '!':
			for !l.atEOF() && l.ch != '\n' {
				l.readChar()
			}
		default:
			return
		}
	}
}

// readVar reads a single variable letter.
func (l *Lexer) readVar() (ast.Var, bool) {
	if l.atEOF() || !isVar(l.ch) {
		return 0, false
	}
	v := ast.Var(l.ch)
	l.readChar()
	return v, true
}

// readVars reads exactly n variable letters.
func (l *Lexer) readVars(n int) ([]ast.Var, bool) {
	vars := make([]ast.Var, 0, n)
	for i := 0; i < n; i++ {
		v, ok := l.readVar()
		if !ok {
			return nil, false
		}
		vars = append(vars, v)
	}
	return vars, true
}

// readUpper reads a single operator or mode letter.
func (l *Lexer) readUpper() (byte, bool) {
	if l.atEOF() || !isUpper(l.ch) {
		return 0, false
	}
	ch := l.ch
	l.readChar()
	return ch, true
}

// readNumber reads -?[0-9]+(\.[0-9]+)? (the sign only when signed is true).
func (l *Lexer) readNumber(signed bool) (float64, bool) {
	position := l.position

	if signed && l.ch == '-' && isDigit(l.peekChar()) {
		l.readChar()
	}
	if l.atEOF() || !isDigit(l.ch) {
		return 0, false
	}
	for !l.atEOF() && isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar() // consume '.'
		for !l.atEOF() && isDigit(l.ch) {
			l.readChar()
		}
	}

	// The literal is always well formed; out of range values come back as ±Inf.
	num, _ := strconv.ParseFloat(l.input[position:l.position], 64)
	return num, true
}

// readQuoted reads a single-quoted literal and returns its content.
// There is no escape syntax.
func (l *Lexer) readQuoted() (string, bool) {
	l.readChar() // consume opening quote
	position := l.position
	for !l.atEOF() && l.ch != '\'' {
		l.readChar()
	}
	if l.atEOF() {
		return "", false
	}
	text := l.input[position:l.position]
	l.readChar() // consume closing quote
	return text, true
}

// GetSource returns the source code as a string
func (l *Lexer) GetSource() string {
	return l.input
}

func isVar(ch byte) bool {
	return 'a' <= ch && ch <= 'z'
}

func isUpper(ch byte) bool {
	return 'A' <= ch && ch <= 'Z'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f'
}
