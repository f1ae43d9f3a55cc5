package vm

import (
	"regexp"
	"strings"

	"github.com/zurustar/letterbox/pkg/compiler/ast"
)

// Binding renames the variable Param to Arg inside an executed program.
type Binding struct {
	Param ast.Var
	Arg   ast.Var
}

// literalPattern matches a single-quoted literal. Letterbox has no escapes.
var literalPattern = regexp.MustCompile(`'[^']*'`)

// literalPlaceholder stands in for each literal while letters are renamed.
// It is itself a literal, so restoring can find the placeholders with
// literalPattern in the same order the literals were removed.
const literalPlaceholder = "''"

// Substitute renames variables in program text according to bindings.
//
// Quoted literals are masked out first and put back verbatim afterwards,
// so text such as 'ab' is never rewritten. All bindings apply at once:
// with a->b and b->a the two variables swap. If a parameter is bound more
// than once the first binding wins. Bindings that are not variable letters
// are ignored.
func Substitute(program string, bindings []Binding) string {
	if len(bindings) == 0 {
		return program
	}

	rename := make(map[rune]rune, len(bindings))
	for _, b := range bindings {
		if !b.Param.Valid() || !b.Arg.Valid() {
			continue
		}
		if _, seen := rename[rune(b.Param)]; !seen {
			rename[rune(b.Param)] = rune(b.Arg)
		}
	}

	literals := literalPattern.FindAllString(program, -1)
	masked := literalPattern.ReplaceAllLiteralString(program, literalPlaceholder)

	renamed := strings.Map(func(r rune) rune {
		if to, ok := rename[r]; ok {
			return to
		}
		return r
	}, masked)

	i := 0
	return literalPattern.ReplaceAllStringFunc(renamed, func(string) string {
		lit := literals[i]
		i++
		return lit
	})
}

// Bindings pairs up the argument letters of an Execute instruction.
func Bindings(args []ast.Var) ([]Binding, error) {
	if len(args)%2 != 0 {
		return nil, newErrorf("odd number of parameter letters (%d)", len(args))
	}
	bindings := make([]Binding, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		for _, v := range args[i : i+2] {
			if !v.Valid() {
				return nil, newErrorf("invalid parameter letter %q", rune(v))
			}
		}
		bindings = append(bindings, Binding{Param: args[i], Arg: args[i+1]})
	}
	return bindings, nil
}

// executeProgram runs the text held by in.Func as a nested program sharing
// this VM's store, inputs and output.
func (vm *VM) executeProgram(in *ast.Execute) error {
	fn, err := vm.store.Get(in.Func)
	if err != nil {
		return err
	}
	text, ok := fn.Str()
	if !ok {
		return newErrorf("variable %s does not hold program text", in.Func)
	}

	bindings, err := Bindings(in.Args)
	if err != nil {
		return err
	}

	if vm.loopLimit > 0 && vm.depth+1 > vm.loopLimit {
		return newLimitError("execute of %s nested deeper than %d levels", in.Func, vm.loopLimit)
	}

	expanded := Substitute(text, bindings)
	vm.log.Debug("Execute", "func", in.Func.String(), "program", text, "expanded", expanded, "depth", vm.depth+1)

	child, err := NewFromSource(expanded, vm.store, vm.inputs, vm.out, vm.loopLimit,
		WithLogger(vm.log),
		WithContext(vm.ctx),
		withDepth(vm.depth+1),
	)
	if err != nil {
		return err
	}
	return child.Run()
}
