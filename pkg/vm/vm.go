package vm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/zurustar/letterbox/pkg/compiler/ast"
	"github.com/zurustar/letterbox/pkg/compiler/lexer"
	"github.com/zurustar/letterbox/pkg/logger"
)

// DefaultLoopLimit is the loop limit used by the command line front end.
const DefaultLoopLimit = 1000

// VM evaluates one Letterbox program.
//
// A VM borrows its Store, input vector and output buffer from the caller.
// Programs run through Execute get their own VM that shares all three.
type VM struct {
	program []ast.Instruction
	source  string
	pc      int // Program counter

	store  *Store
	inputs []string
	out    *strings.Builder

	// loopLimit caps loop iterations and Execute nesting; <= 0 disables it.
	loopLimit int
	depth     int

	finished bool
	result   error

	ctx context.Context
	log *slog.Logger
}

// Option is a functional option for configuring the VM.
type Option func(*VM)

// WithLogger sets the logger used for debug tracing.
func WithLogger(log *slog.Logger) Option {
	return func(vm *VM) {
		vm.log = log
	}
}

// WithContext makes the VM stop with ctx's error once ctx is done.
// It is checked before every top-level step and every loop iteration.
func WithContext(ctx context.Context) Option {
	return func(vm *VM) {
		vm.ctx = ctx
	}
}

// WithSource records the source text of program for error reports.
func WithSource(source string) Option {
	return func(vm *VM) {
		vm.source = source
	}
}

func withDepth(depth int) Option {
	return func(vm *VM) {
		vm.depth = depth
	}
}

// New creates a VM for program. store and out must not be nil.
func New(program []ast.Instruction, store *Store, inputs []string, out *strings.Builder, loopLimit int, opts ...Option) (*VM, error) {
	if store == nil {
		return nil, errors.New("vm: store is nil")
	}
	if out == nil {
		return nil, errors.New("vm: output buffer is nil")
	}

	vm := &VM{
		program:   program,
		store:     store,
		inputs:    inputs,
		out:       out,
		loopLimit: loopLimit,
		finished:  len(program) == 0,
		log:       logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(vm)
	}
	return vm, nil
}

// NewFromSource tokenizes source and creates a VM for it.
func NewFromSource(source string, store *Store, inputs []string, out *strings.Builder, loopLimit int, opts ...Option) (*VM, error) {
	opts = append([]Option{WithSource(source)}, opts...)
	return New(lexer.Tokenize(source), store, inputs, out, loopLimit, opts...)
}

// Run executes instructions until the program finishes or one fails.
// The first failure stops the program and is returned unchanged. Running
// a finished program returns its last result again.
func (vm *VM) Run() error {
	for !vm.finished {
		if err := vm.Step(); err != nil {
			return err
		}
	}
	return vm.result
}

// Step executes the instruction at the program counter.
func (vm *VM) Step() error {
	if vm.finished {
		return newError("program is already finished")
	}

	err := vm.checkContext()
	if err == nil {
		err = vm.Evaluate(vm.program[vm.pc])
	}

	vm.result = err
	vm.pc++
	if err != nil || vm.pc >= len(vm.program) {
		vm.finished = true
	}
	return err
}

// IsFinished reports whether the program has stopped.
func (vm *VM) IsFinished() bool { return vm.finished }

// Result returns the result of the last executed instruction.
func (vm *VM) Result() error { return vm.result }

// PC returns the index of the next instruction to run.
func (vm *VM) PC() int { return vm.pc }

// Depth returns how many Execute calls enclose this VM.
func (vm *VM) Depth() int { return vm.depth }

// Evaluate executes a single instruction against the VM's store.
func (vm *VM) Evaluate(instr ast.Instruction) error {
	if err := vm.evaluate(instr); err != nil {
		return annotate(err, instr, vm.source)
	}
	return nil
}

func (vm *VM) evaluate(instr ast.Instruction) error {
	if instr == nil {
		return newError("missing instruction")
	}
	vm.log.Debug("Evaluate", "instr", instr.TokenLiteral(), "depth", vm.depth)

	switch in := instr.(type) {
	case *ast.SaveNumber:
		return vm.store.Set(in.Var, Number(in.Value))

	case *ast.SaveStr:
		return vm.store.Set(in.Var, Text(in.Text))

	case *ast.Copy:
		return vm.store.Copy(in.From, in.To)

	case *ast.Append:
		target, err := vm.store.Get(in.Target)
		if err != nil {
			return err
		}
		source, err := vm.store.Get(in.Source)
		if err != nil {
			return err
		}
		return vm.store.Set(in.Target, Text(target.String()+source.String()))

	case *ast.PrintVar:
		v, err := vm.store.Get(in.Var)
		if err != nil {
			return err
		}
		vm.out.WriteString(v.String())
		return nil

	case *ast.PrintStr:
		vm.out.WriteString(in.Text)
		return nil

	case *ast.MathOp:
		return vm.executeMath(in)

	case *ast.BoolOp:
		return vm.executeBool(in)

	case *ast.Loop:
		return vm.executeLoop(in)

	case *ast.IfStatement:
		cond, err := vm.store.AsBool(in.Cond)
		if err != nil || !cond {
			return err
		}
		return vm.Evaluate(in.Body)

	case *ast.UnlessStatement:
		cond, err := vm.store.AsBool(in.Cond)
		if err != nil || cond {
			return err
		}
		return vm.Evaluate(in.Body)

	case *ast.WhileLoop:
		return vm.executeWhile(in)

	case *ast.ResetVar:
		if !in.Var.Valid() {
			return invalidVarError(in.Var)
		}
		vm.store.Reset(in.Var)
		return nil

	case *ast.ResetAll:
		vm.store.ResetAll()
		return nil

	case *ast.GetInput:
		return vm.executeGetInput(in)

	case *ast.Negate:
		cond, err := vm.store.AsBool(in.Var)
		if err != nil {
			return err
		}
		if cond {
			return vm.store.Set(in.Var, Number(0))
		}
		return vm.store.Set(in.Var, Number(1))

	case *ast.Finish:
		vm.finished = true
		return nil

	case *ast.Execute:
		return vm.executeProgram(in)

	case *ast.Illegal:
		line, column := in.Position()
		return newErrorf("unrecognized instruction %q at line %d, column %d: %s",
			in.Literal, line, column, in.Reason)

	default:
		return newErrorf("unrecognized instruction %s", instr)
	}
}

// number reads name and requires it to hold a number.
func (vm *VM) number(name ast.Var) (float64, error) {
	v, err := vm.store.Get(name)
	if err != nil {
		return 0, err
	}
	n, ok := v.Num()
	if !ok {
		return 0, newErrorf("variable %s is not a number", name)
	}
	return n, nil
}

func (vm *VM) executeMath(in *ast.MathOp) error {
	a, err := vm.number(in.A)
	if err != nil {
		return err
	}
	b, err := vm.number(in.B)
	if err != nil {
		return err
	}

	var result float64
	switch in.Op {
	case ast.MathAdd:
		result = a + b
	case ast.MathSubtract:
		result = a - b
	case ast.MathMultiply:
		result = a * b
	case ast.MathDivide:
		result = a / b
	case ast.MathRemainder:
		result = math.Mod(a, b)
	case ast.MathEqual:
		result = boolNumber(a == b)
	case ast.MathGreater:
		result = boolNumber(a > b)
	case ast.MathLess:
		result = boolNumber(a < b)
	default:
		return newErrorf("invalid math operator '%s'", in.Op)
	}
	return vm.store.Set(in.Target, Number(result))
}

func (vm *VM) executeBool(in *ast.BoolOp) error {
	a, err := vm.store.AsBool(in.A)
	if err != nil {
		return err
	}
	b, err := vm.store.AsBool(in.B)
	if err != nil {
		return err
	}

	var result bool
	switch in.Op {
	case ast.BoolEqual:
		result = a == b
	case ast.BoolAnd:
		result = a && b
	case ast.BoolOr:
		result = a || b
	case ast.BoolXor:
		result = a != b
	default:
		return newErrorf("invalid boolean operator '%s'", in.Op)
	}
	return vm.store.Set(in.Target, Number(boolNumber(result)))
}

func (vm *VM) executeLoop(in *ast.Loop) error {
	count, err := vm.number(in.Count)
	if err != nil {
		return err
	}
	n := math.Floor(count)

	for i := 0; float64(i) < n; i++ {
		if err := vm.checkIteration(i, "loop over %s", in.Count); err != nil {
			return err
		}
		if err := vm.Evaluate(in.Body); err != nil {
			return err
		}
		if vm.finished {
			break
		}
	}
	return nil
}

func (vm *VM) executeWhile(in *ast.WhileLoop) error {
	for i := 0; ; i++ {
		cond, err := vm.store.AsBool(in.Cond)
		if err != nil {
			return err
		}
		if !cond {
			return nil
		}
		if err := vm.checkIteration(i, "while loop on %s", in.Cond); err != nil {
			return err
		}
		if err := vm.Evaluate(in.Body); err != nil {
			return err
		}
		if vm.finished {
			return nil
		}
	}
}

// checkIteration fails when iteration i (zero-based) would pass the loop
// limit or the context is done.
func (vm *VM) checkIteration(i int, format string, args ...any) error {
	if vm.loopLimit > 0 && i >= vm.loopLimit {
		return newLimitError("%s ran more than %d iterations", fmt.Sprintf(format, args...), vm.loopLimit)
	}
	return vm.checkContext()
}

func (vm *VM) checkContext() error {
	if vm.ctx == nil {
		return nil
	}
	if err := vm.ctx.Err(); err != nil {
		return &RuntimeError{Message: "execution stopped: " + err.Error(), Err: err}
	}
	return nil
}

func (vm *VM) executeGetInput(in *ast.GetInput) error {
	if !in.Var.Valid() {
		return invalidVarError(in.Var)
	}

	index := math.Floor(in.Index)
	if math.IsNaN(index) || index < 0 || index >= float64(len(vm.inputs)) {
		return newErrorf("input index %s out of range (%d inputs)", FormatNumber(index), len(vm.inputs))
	}
	raw := vm.inputs[int(index)]

	switch in.Mode {
	case ast.InputNumber:
		n, ok := parseNumberInput(raw)
		if !ok {
			return newErrorf("input %d (%q) is not a number", int(index), raw)
		}
		return vm.store.Set(in.Var, Number(n))
	case ast.InputString:
		return vm.store.Set(in.Var, Text(raw))
	default:
		return newErrorf("invalid input mode '%s'", in.Mode)
	}
}

// parseNumberInput parses a decimal number. Go-only literal forms (digit
// separators and hexadecimal mantissas) are rejected; out of range values
// become ±Inf.
func parseNumberInput(raw string) (float64, bool) {
	if strings.ContainsRune(raw, '_') {
		return 0, false
	}
	unsigned := strings.TrimLeft(raw, "+-")
	if len(unsigned) >= 2 && unsigned[0] == '0' && (unsigned[1] == 'x' || unsigned[1] == 'X') {
		return 0, false
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return n, true
}

func boolNumber(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
