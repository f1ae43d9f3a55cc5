// Package ast defines the instruction tree produced by the Letterbox lexer.
//
// Every Letterbox statement is a single fixed-shape instruction. Loop, If,
// Unless and While own exactly one nested instruction; that nesting is the
// only recursive structure in a program.
package ast

import (
	"strconv"
	"strings"
)

// Var is a single-letter variable name. Valid names are 'a' through 'z'.
type Var byte

// Valid reports whether v names a variable.
func (v Var) Valid() bool {
	return v >= 'a' && v <= 'z'
}

func (v Var) String() string {
	return string(rune(v))
}

// Token holds the source text and position of an instruction.
// Line and Column are 1-indexed.
type Token struct {
	Literal string
	Line    int
	Column  int
}

// TokenLiteral returns the source text the instruction was read from.
func (t Token) TokenLiteral() string { return t.Literal }

// Position returns the line and column of the first character of the instruction.
func (t Token) Position() (line, column int) { return t.Line, t.Column }

// Instruction is the interface for every instruction variant.
type Instruction interface {
	TokenLiteral() string
	Position() (line, column int)
	String() string
	instructionNode()
}

// MathOperator is the operator code of a MathOp instruction.
type MathOperator byte

const (
	MathAdd       MathOperator = 'A'
	MathSubtract  MathOperator = 'S'
	MathMultiply  MathOperator = 'M'
	MathDivide    MathOperator = 'D'
	MathRemainder MathOperator = 'R'
	MathEqual     MathOperator = 'E'
	MathGreater   MathOperator = 'G'
	MathLess      MathOperator = 'L'
)

// Valid reports whether op is a known math operator code.
func (op MathOperator) Valid() bool {
	return strings.IndexByte("ASMDREGL", byte(op)) >= 0
}

func (op MathOperator) String() string { return string(rune(op)) }

// BoolOperator is the operator code of a BoolOp instruction.
type BoolOperator byte

const (
	BoolEqual BoolOperator = 'E'
	BoolAnd   BoolOperator = 'A'
	BoolOr    BoolOperator = 'O'
	BoolXor   BoolOperator = 'X'
)

// Valid reports whether op is a known boolean operator code.
func (op BoolOperator) Valid() bool {
	return strings.IndexByte("EAOX", byte(op)) >= 0
}

func (op BoolOperator) String() string { return string(rune(op)) }

// InputMode selects how GetInput stores the input string.
type InputMode byte

const (
	InputNumber InputMode = 'N'
	InputString InputMode = 'S'
)

// Valid reports whether m is a known input mode.
func (m InputMode) Valid() bool {
	return m == InputNumber || m == InputString
}

func (m InputMode) String() string { return string(rune(m)) }

// SaveNumber stores a number literal.
// Example: Sa4, Sb-6.5
type SaveNumber struct {
	Token
	Var   Var
	Value float64
}

func (sn *SaveNumber) instructionNode() {}
func (sn *SaveNumber) String() string {
	return "S" + sn.Var.String() + strconv.FormatFloat(sn.Value, 'f', -1, 64)
}

// SaveStr stores a string literal.
// Example: Sa'hello'
type SaveStr struct {
	Token
	Var  Var
	Text string
}

func (ss *SaveStr) instructionNode() {}
func (ss *SaveStr) String() string   { return "S" + ss.Var.String() + "'" + ss.Text + "'" }

// Copy copies the value of From into To.
// Example: Cab
type Copy struct {
	Token
	From Var
	To   Var
}

func (c *Copy) instructionNode() {}
func (c *Copy) String() string   { return "C" + c.From.String() + c.To.String() }

// Append concatenates the display form of Source onto Target, leaving Text in Target.
// Example: Arc
type Append struct {
	Token
	Target Var
	Source Var
}

func (a *Append) instructionNode() {}
func (a *Append) String() string   { return "A" + a.Target.String() + a.Source.String() }

// PrintVar prints the display form of a variable.
// Example: Pa
type PrintVar struct {
	Token
	Var Var
}

func (pv *PrintVar) instructionNode() {}
func (pv *PrintVar) String() string   { return "P" + pv.Var.String() }

// PrintStr prints a literal.
// Example: P'Hello world'
type PrintStr struct {
	Token
	Text string
}

func (ps *PrintStr) instructionNode() {}
func (ps *PrintStr) String() string   { return "P'" + ps.Text + "'" }

// MathOp computes Target = A <Op> B over numbers.
// Example: MAcab
type MathOp struct {
	Token
	Op     MathOperator
	Target Var
	A      Var
	B      Var
}

func (mo *MathOp) instructionNode() {}
func (mo *MathOp) String() string {
	return "M" + mo.Op.String() + mo.Target.String() + mo.A.String() + mo.B.String()
}

// BoolOp computes Target = A <Op> B over truthiness.
// Example: BEcab
type BoolOp struct {
	Token
	Op     BoolOperator
	Target Var
	A      Var
	B      Var
}

func (bo *BoolOp) instructionNode() {}
func (bo *BoolOp) String() string {
	return "B" + bo.Op.String() + bo.Target.String() + bo.A.String() + bo.B.String()
}

// Loop runs Body floor(Count) times.
// Example: LaPb
type Loop struct {
	Token
	Count Var
	Body  Instruction
}

func (l *Loop) instructionNode() {}
func (l *Loop) String() string   { return "L" + l.Count.String() + bodyString(l.Body) }

// IfStatement runs Body once when Cond is truthy.
// Example: IaPb
type IfStatement struct {
	Token
	Cond Var
	Body Instruction
}

func (is *IfStatement) instructionNode() {}
func (is *IfStatement) String() string   { return "I" + is.Cond.String() + bodyString(is.Body) }

// UnlessStatement runs Body once when Cond is falsy.
// Example: UaPb
type UnlessStatement struct {
	Token
	Cond Var
	Body Instruction
}

func (us *UnlessStatement) instructionNode() {}
func (us *UnlessStatement) String() string   { return "U" + us.Cond.String() + bodyString(us.Body) }

// WhileLoop runs Body while Cond is truthy, checking before every iteration.
// Example: WaMSaab
type WhileLoop struct {
	Token
	Cond Var
	Body Instruction
}

func (wl *WhileLoop) instructionNode() {}
func (wl *WhileLoop) String() string   { return "W" + wl.Cond.String() + bodyString(wl.Body) }

// ResetVar removes a variable from the store.
// Example: Ra
type ResetVar struct {
	Token
	Var Var
}

func (rv *ResetVar) instructionNode() {}
func (rv *ResetVar) String() string   { return "R" + rv.Var.String() }

// ResetAll clears the store.
// Example: RA
type ResetAll struct {
	Token
}

func (ra *ResetAll) instructionNode() {}
func (ra *ResetAll) String() string   { return "RA" }

// GetInput reads entry floor(Index) of the input vector into Var.
// Example: GNa0, GSb1
type GetInput struct {
	Token
	Mode  InputMode
	Var   Var
	Index float64
}

func (gi *GetInput) instructionNode() {}
func (gi *GetInput) String() string {
	return "G" + gi.Mode.String() + gi.Var.String() + strconv.FormatFloat(gi.Index, 'f', -1, 64)
}

// Negate replaces a variable with 1 if it was falsy, 0 otherwise.
// Example: Na
type Negate struct {
	Token
	Var Var
}

func (n *Negate) instructionNode() {}
func (n *Negate) String() string   { return "N" + n.Var.String() }

// Finish stops the running program.
// Example: F
type Finish struct {
	Token
}

func (f *Finish) instructionNode() {}
func (f *Finish) String() string   { return "F" }

// Execute runs the program text held by Func. Args holds parameter/argument
// letter pairs: Args[0] is renamed to Args[1], Args[2] to Args[3], and so on.
// Example: Xfaebgcz
type Execute struct {
	Token
	Func Var
	Args []Var
}

func (e *Execute) instructionNode() {}
func (e *Execute) String() string {
	var b strings.Builder
	b.WriteByte('X')
	b.WriteString(e.Func.String())
	for _, a := range e.Args {
		b.WriteByte(byte(a))
	}
	return b.String()
}

// Illegal is produced for source text that is not a valid instruction.
// Evaluating it is always an error.
type Illegal struct {
	Token
	Reason string
}

func (il *Illegal) instructionNode() {}
func (il *Illegal) String() string   { return il.Literal }

func bodyString(body Instruction) string {
	if body == nil {
		return ""
	}
	return body.String()
}
