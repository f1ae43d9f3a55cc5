package vm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// runProgram runs source against a fresh store and returns the output buffer.
func runProgram(t *testing.T, source string, inputs []string) (string, error) {
	t.Helper()
	return runProgramWithLimit(t, source, inputs, DefaultLoopLimit)
}

func runProgramWithLimit(t *testing.T, source string, inputs []string, limit int, opts ...Option) (string, error) {
	t.Helper()
	var out strings.Builder
	program, err := NewFromSource(source, NewStore(), inputs, &out, limit, opts...)
	if err != nil {
		t.Fatalf("program init failed: %v", err)
	}
	err = program.Run()
	return out.String(), err
}

type outputCase struct {
	source   string
	inputs   []string
	expected string
}

func runOutputCases(t *testing.T, cases []outputCase) {
	t.Helper()
	for _, tt := range cases {
		t.Run(tt.source, func(t *testing.T) {
			out, err := runProgram(t, tt.source, tt.inputs)
			if err != nil {
				t.Fatalf("program failed: %v", err)
			}
			if out != tt.expected {
				t.Errorf("output = %q, want %q", out, tt.expected)
			}
		})
	}
}

func TestScenarios(t *testing.T) {
	runOutputCases(t, []outputCase{
		{source: "Sa4 Cab Pb", expected: "4"},
		{source: "Sa3 Sb2 MAcab Pc", expected: "5"},
		{source: "Sa1 Sb'x' BEcab Pc", expected: "1"},
		{source: "Sa10 Sb1 WaMSaab Pa", expected: "0"},
		{source: "Sf'MAcab' Se2 Sg4 Xfaebgcz Pz", expected: "6"},
		{source: "Sa4 Pa F Sa3 Pa", expected: "4"},
	})
}

func TestPrintStoreCopy(t *testing.T) {
	runOutputCases(t, []outputCase{
		{source: "Sb3", expected: ""},
		{source: "Sa4 Cab Pb", expected: "4"},
		{source: "Sa5.5 Pa", expected: "5.5"},
		{source: "Sa-6 Pa", expected: "-6"},
		{source: "Sa-6.5 Pa", expected: "-6.5"},
		{source: "P'Hello world'", expected: "Hello world"},
		{source: "Sz'This is a test' Pz", expected: "This is a test"},
		{source: "Cab Pb", expected: "0"},
		{source: "Sa'txt' Cab Sa1 Pb Pa", expected: "txt1"},
	})
}

func TestAppend(t *testing.T) {
	runOutputCases(t, []outputCase{
		{source: "Arc Pr", expected: "00"},
		{source: "Sr'' Arc Pr", expected: "0"},
		{source: "Sr'' Sc12.5 Arc Pr", expected: "12.5"},
		{source: "Sr'The secret is ' Sc12.5 Arc Pr", expected: "The secret is 12.5"},
		{source: "Sr23 Sc'chicken' Arc Pr", expected: "23chicken"},
		{source: "Sr'fizz' Sc'buzz' Arc Arc Pr", expected: "fizzbuzzbuzz"},
		{source: "Sr'fizz' Sc'buzz' Arr Arr Pr", expected: "fizzfizzfizzfizz"},
	})

	t.Run("result is text", func(t *testing.T) {
		_, err := runProgram(t, "Sa1 Sb2 Aab MAcab", nil)
		if err == nil || !strings.Contains(err.Error(), "variable a is not a number") {
			t.Errorf("expected type error for appended value, got %v", err)
		}
	})
}

func TestReset(t *testing.T) {
	runOutputCases(t, []outputCase{
		{source: "Ra", expected: ""},
		{source: "Pb P' ' Sb3 Pb Rb P' ' Pb", expected: "0 3 0"},
		{source: "Rb Pb", expected: "0"},
		{source: "RA", expected: ""},
		{source: "Sa1 Sb2 Sc'3' RA Pa Pb Pc", expected: "000"},
	})
}

func TestLoop(t *testing.T) {
	runOutputCases(t, []outputCase{
		{source: "Sa3 Sb4 LaPb", expected: "444"},
		{source: "Sa2 Sd11 LdMAbab Pb", expected: "22"},
		{source: "Sa3.9 LaP'x'", expected: "xxx"},
		{source: "Sa0 LaP'x'", expected: ""},
		{source: "Sa-2 LaP'x'", expected: ""},
		{source: "Sa0.99 LaP'x'", expected: ""},
		{source: "Sa2 Sb2 LaLbP'x'", expected: "xxxx"},
	})

	t.Run("count must be a number", func(t *testing.T) {
		_, err := runProgram(t, "Sa'3' LaP'x'", nil)
		if err == nil || !strings.Contains(err.Error(), "variable a is not a number") {
			t.Errorf("expected type error, got %v", err)
		}
	})

	t.Run("count is read once", func(t *testing.T) {
		out, err := runProgram(t, "Sa3 Sb1 LaMAaab Pa", nil)
		if err != nil {
			t.Fatalf("program failed: %v", err)
		}
		if out != "6" {
			t.Errorf("output = %q, want %q", out, "6")
		}
	})
}

func TestWhileLoop(t *testing.T) {
	runOutputCases(t, []outputCase{
		{source: "Sa10 Sb1 WaMSaab Pa", expected: "0"},
		{source: "WaP'never'", expected: ""},
		{source: "Sa3 Sb1 WaMSaab WaP'never' Pa", expected: "0"},
	})
}

func TestIfStatement(t *testing.T) {
	runOutputCases(t, []outputCase{
		{source: "IaPb", expected: ""},
		{source: "Sa0.0 Sb1 IaPb", expected: ""},
		{source: "Sa10 Sb2 IaPb", expected: "2"},
		{source: "Sa10 Sb2 MGcab IcPb", expected: "2"},
		{source: "Sa10 Sb2 MLcab IcPb", expected: ""},
		{source: "Sa'' IaP'yes'", expected: "yes"},
		{source: "Sa'0' IaP'yes'", expected: "yes"},
	})
}

func TestUnlessStatement(t *testing.T) {
	runOutputCases(t, []outputCase{
		{source: "Sb5 UaPb", expected: "5"},
		{source: "Sa0.0 Sb1 UaPb", expected: "1"},
		{source: "Sa10 Sb2 UaPb", expected: ""},
		{source: "Sa10 Sb2 MGcab UcPb", expected: ""},
		{source: "Sa10 Sb2 MLcab UcPb", expected: "2"},
		{source: "Sa'' UaP'no'", expected: ""},
	})
}

func TestNegate(t *testing.T) {
	runOutputCases(t, []outputCase{
		{source: "Na", expected: ""},
		{source: "Na Pa", expected: "1"},
		{source: "Pb P' ' Sb3 Pb Nb P' ' Pb", expected: "0 3 0"},
		{source: "Sa1 Sb2 MGcab Nc Pc", expected: "1"},
		{source: "Sa'' Na Pa", expected: "0"},
		{source: "Sa'text' Na Na Pa", expected: "1"},
	})
}

func TestExecute(t *testing.T) {
	runOutputCases(t, []outputCase{
		{source: "Sc'' Xc", expected: ""},
		{source: "Sa2 Sb'a' Sc'Pb' LaXc", expected: "aa"},
		{
			source:   "Sa4 Sb'loop ' Sc1 Sd'Pb MAaac MLlaf' Sf12 MLlaf WlXd Pa",
			expected: "loop loop loop loop loop loop loop loop 12",
		},
		{source: "Sa1 Sb2 Sx'Pa' Xxab", expected: "2"},
		{source: "Sf'MAcab' Se2 Sg4 Xfaebgcz Pz", expected: "6"},
		// Literals inside the executed program are never renamed.
		{source: "GSf0 Xfaz", inputs: []string{"Sr'ab' Pr"}, expected: "ab"},
		// Finish inside an executed program only stops that program.
		{source: "Sa1 Sb2 GSf0 Xf Pb", inputs: []string{"Pa F Pb"}, expected: "12"},
		// Writes made by the executed program stay visible to the caller.
		{source: "Sf'Sq7' Xf Pq", expected: "7"},
		// Executed programs read the same inputs.
		{source: "Sf'GSa1 Pa' Xf", inputs: []string{"x", "y"}, expected: "y"},
	})

	t.Run("function must hold text", func(t *testing.T) {
		_, err := runProgram(t, "Sf1 Xf", nil)
		if err == nil || !strings.Contains(err.Error(), "variable f does not hold program text") {
			t.Errorf("expected text error, got %v", err)
		}
	})

	t.Run("unset function is zero, not text", func(t *testing.T) {
		_, err := runProgram(t, "Xf", nil)
		if err == nil {
			t.Error("expected error executing an unset variable")
		}
	})

	t.Run("errors in executed programs propagate", func(t *testing.T) {
		out, err := runProgram(t, "Sf'Pa i' Xf Pb", nil)
		if out != "0" {
			t.Errorf("output = %q, want %q", out, "0")
		}
		var rt *RuntimeError
		if !errors.As(err, &rt) {
			t.Fatalf("expected *RuntimeError, got %v", err)
		}
		if !strings.Contains(rt.Message, "unrecognized instruction \"i\"") {
			t.Errorf("unexpected message: %q", rt.Message)
		}
		if rt.Source != "Pa i" {
			t.Errorf("Source = %q, want the executed program text", rt.Source)
		}
		if rt.Instr == nil || rt.Instr.TokenLiteral() != "i" {
			t.Errorf("Instr = %v, want the illegal instruction", rt.Instr)
		}
	})
}

func TestGetInput(t *testing.T) {
	runOutputCases(t, []outputCase{
		{source: "Sa4 Pa", inputs: []string{"1", "2"}, expected: "4"},
		{source: "GNa0 GNb1 MAcab Pa Pb Pc", inputs: []string{"1", "2"}, expected: "123"},
		{source: "GSa0 Pa", inputs: []string{"Pizza"}, expected: "Pizza"},
		{source: "GNa1.7 Pa", inputs: []string{"1", "-2.5"}, expected: "-2.5"},
	})

	errorCases := []struct {
		name     string
		source   string
		inputs   []string
		contains string
	}{
		{"index out of range", "GNa0", nil, "input index 0 out of range (0 inputs)"},
		{"index past end", "GSa2", []string{"a", "b"}, "input index 2 out of range (2 inputs)"},
		{"not a number", "GNa0", []string{"abc"}, `input 0 ("abc") is not a number`},
		{"digit separator", "GNa0", []string{"1_0"}, `input 0 ("1_0") is not a number`},
		{"hex float", "GNa0", []string{"0x1p4"}, `input 0 ("0x1p4") is not a number`},
		{"signed hex", "GNa0", []string{"-0X10"}, `input 0 ("-0X10") is not a number`},
		{"string input is text", "GSa0 Sb1 MAcab", []string{"5"}, "variable a is not a number"},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runProgram(t, tt.source, tt.inputs)
			if err == nil || !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error = %v, want to contain %q", err, tt.contains)
			}
		})
	}
}

func TestFinish(t *testing.T) {
	runOutputCases(t, []outputCase{
		{source: "F", expected: ""},
		{source: "Sa4 Pa F Sa3 Pa", expected: "4"},
		{source: "Sa4 Pa IbF Sa3 Pa", expected: "43"},
		{source: "Sa5 LaF P'after'", expected: ""},
		{source: "Sa1 WaF P'after'", expected: ""},
	})
}

func TestMathOps(t *testing.T) {
	runOutputCases(t, []outputCase{
		// add
		{source: "Sa3 Sb2 MAcab Pc", expected: "5"},
		{source: "Sa3.5 Sb1 MAcab Pc", expected: "4.5"},
		{source: "Sa0.1 Sb0.2 MAcab Pc", expected: "0.30000000000000004"},
		// subtract
		{source: "Sa3 Sb2 MScab Pc", expected: "1"},
		{source: "Sa3.5 Sb5 MScab Pc", expected: "-1.5"},
		// multiply
		{source: "Sa3 Sb2 MMcab Pc", expected: "6"},
		{source: "Sa0.5 Sb5 MMcab Pc", expected: "2.5"},
		// divide
		{source: "Sa3 Sb2 MDcab Pc", expected: "1.5"},
		{source: "Sa10 Sb5 MDcab Pc", expected: "2"},
		{source: "Sa1 Sb0 MDcab Pc", expected: "inf"},
		{source: "Sa-1 Sb0 MDcab Pc", expected: "-inf"},
		{source: "Sb0 MDcbb Pc", expected: "NaN"},
		// remainder
		{source: "Sa3 Sb2 MRcab Pc", expected: "1"},
		{source: "Sa10 Sb10 MRcab Pc", expected: "0"},
		{source: "Sa5 Sb10 MRcab Pc", expected: "5"},
		{source: "Sa-7 Sb3 MRcab Pc", expected: "-1"},
		// equal
		{source: "Sa3 Sb2 MEcab Pc", expected: "0"},
		{source: "Sa10 Sb10 MEcab Pc", expected: "1"},
		// greater
		{source: "Sa3 Sb2 MGcab Pc", expected: "1"},
		{source: "Sa3 Sb2 MGcba Pc", expected: "0"},
		// less
		{source: "Sa3 Sb2 MLcba Pc", expected: "1"},
		{source: "Sa3 Sb2 MLcab Pc", expected: "0"},
	})

	t.Run("text operand", func(t *testing.T) {
		store := NewStore()
		var out strings.Builder
		program, err := NewFromSource("Sa'x' Sb1 Sc9 MAcab Pc", store, nil, &out, 0)
		if err != nil {
			t.Fatal(err)
		}
		err = program.Run()
		if err == nil || !strings.Contains(err.Error(), "variable a is not a number") {
			t.Fatalf("expected type error, got %v", err)
		}
		// Effects before the failure persist; the target is untouched.
		c, _ := store.Get('c')
		if !c.Equal(Number(9)) {
			t.Errorf("c = %v, want 9", c)
		}
		if out.String() != "" {
			t.Errorf("output = %q, want empty", out.String())
		}
	})
}

func TestBoolOps(t *testing.T) {
	runOutputCases(t, []outputCase{
		// equal
		{source: "Sa1 Sb'x' BEcab Pc", expected: "1"},
		{source: "Sa0 Sb'' BEcab Pc", expected: "0"},
		{source: "Sa'cz' Sb0 BEcab Pc", expected: "0"},
		{source: "Sa0 Sb0.0 BEcab Pc", expected: "1"},
		// and
		{source: "Sa1 Sb'x' BAcab Pc", expected: "1"},
		{source: "Sa0 Sb'' BAcab Pc", expected: "0"},
		{source: "Sa'cz' Sb0 BAcab Pc", expected: "0"},
		{source: "Sa0 Sb0.0 BAcab Pc", expected: "0"},
		// or
		{source: "Sa1 Sb'x' BOcab Pc", expected: "1"},
		{source: "Sa0 Sb'' BOcab Pc", expected: "1"},
		{source: "Sa'cz' Sb0 BOcab Pc", expected: "1"},
		{source: "Sa0 Sb0.0 BOcab Pc", expected: "0"},
		// xor
		{source: "Sa1 Sb'x' BXcab Pc", expected: "0"},
		{source: "Sa0 Sb'' BXcab Pc", expected: "1"},
		{source: "Sa'cz' Sb0 BXcab Pc", expected: "1"},
		{source: "Sa0 Sb0.0 BXcab Pc", expected: "0"},
	})
}

func TestIllegalInstruction(t *testing.T) {
	out, err := runProgram(t, "Sa1 Pa i Pa", nil)
	if out != "1" {
		t.Errorf("output = %q, want %q", out, "1")
	}
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), `unrecognized instruction "i" at line 1, column 8`) {
		t.Errorf("unexpected error: %v", err)
	}

	t.Run("illegal text that is never reached is harmless", func(t *testing.T) {
		out, err := runProgram(t, "P'ok' F MZabc", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != "ok" {
			t.Errorf("output = %q, want %q", out, "ok")
		}
	})

	t.Run("failure inside a loop aborts it", func(t *testing.T) {
		out, err := runProgram(t, "Sa3 Sc'x' P'<' LaMAbbc P'>'", nil)
		if err == nil {
			t.Fatal("expected error")
		}
		if out != "<" {
			t.Errorf("output = %q, want %q", out, "<")
		}
	})
}

func TestLoopLimit(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		limit    int
		expected string
		exceeded bool
	}{
		{"loop within limit", "Sa5 LaP'x'", 5, "xxxxx", false},
		{"loop over limit", "Sa10 LaP'x'", 5, "xxxxx", true},
		{"while over limit", "Sa1 WaP'x'", 3, "xxx", true},
		{"while within limit", "Sa3 Sb1 WaMSaab Pa", 3, "0", false},
		{"limit disabled", "Sc1 Sa2000 LaMAbbc Pb", 0, "2000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runProgramWithLimit(t, tt.source, nil, tt.limit)
			if out != tt.expected {
				t.Errorf("output = %q, want %q", out, tt.expected)
			}
			if got := errors.Is(err, ErrLimitExceeded); got != tt.exceeded {
				t.Errorf("errors.Is(err, ErrLimitExceeded) = %v, want %v (err=%v)", got, tt.exceeded, err)
			}
			if !tt.exceeded && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}

	t.Run("recursive execute is bounded", func(t *testing.T) {
		out, err := runProgramWithLimit(t, "GSf0 Xf", []string{"P'.' Xf"}, 10)
		if !errors.Is(err, ErrLimitExceeded) {
			t.Fatalf("expected ErrLimitExceeded, got %v", err)
		}
		if out != strings.Repeat(".", 10) {
			t.Errorf("output = %q, want 10 dots", out)
		}
	})
}

func TestContextCancellation(t *testing.T) {
	t.Run("cancelled before run", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		out, err := runProgramWithLimit(t, "P'x'", nil, 0, WithContext(ctx))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if out != "" {
			t.Errorf("output = %q, want empty", out)
		}
	})

	t.Run("deadline stops an endless loop", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := runProgramWithLimit(t, "Sa1 WaNb", nil, 0, WithContext(ctx))
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected context.DeadlineExceeded, got %v", err)
		}
	})
}

func TestRunAndStep(t *testing.T) {
	t.Run("empty program finishes successfully", func(t *testing.T) {
		var out strings.Builder
		program, err := NewFromSource("  ! nothing here", NewStore(), nil, &out, 0)
		if err != nil {
			t.Fatal(err)
		}
		if !program.IsFinished() {
			t.Error("empty program should start finished")
		}
		if err := program.Run(); err != nil {
			t.Errorf("Run() = %v, want nil", err)
		}
	})

	t.Run("step advances the program counter", func(t *testing.T) {
		var out strings.Builder
		program, err := NewFromSource("Sa1 Pa", NewStore(), nil, &out, 0)
		if err != nil {
			t.Fatal(err)
		}
		if err := program.Step(); err != nil {
			t.Fatal(err)
		}
		if program.PC() != 1 || program.IsFinished() {
			t.Errorf("after one step: pc=%d finished=%v", program.PC(), program.IsFinished())
		}
		if err := program.Step(); err != nil {
			t.Fatal(err)
		}
		if !program.IsFinished() || out.String() != "1" {
			t.Errorf("after two steps: finished=%v out=%q", program.IsFinished(), out.String())
		}
		if err := program.Step(); err == nil {
			t.Error("stepping a finished program should fail")
		}
	})

	t.Run("run after failure returns the same error", func(t *testing.T) {
		var out strings.Builder
		program, err := NewFromSource("i Pa", NewStore(), nil, &out, 0)
		if err != nil {
			t.Fatal(err)
		}
		first := program.Run()
		if first == nil {
			t.Fatal("expected error")
		}
		if second := program.Run(); second != first {
			t.Errorf("second Run() = %v, want %v", second, first)
		}
		if program.Result() != first {
			t.Errorf("Result() = %v, want %v", program.Result(), first)
		}
	})

	t.Run("store is shared between programs", func(t *testing.T) {
		store := NewStore()
		var out strings.Builder
		for _, line := range []string{"Sa5", "MAbaa", "Pb"} {
			program, err := NewFromSource(line, store, nil, &out, 0)
			if err != nil {
				t.Fatal(err)
			}
			if err := program.Run(); err != nil {
				t.Fatal(err)
			}
		}
		if out.String() != "10" {
			t.Errorf("output = %q, want %q", out.String(), "10")
		}
	})

	t.Run("construction requires store and output", func(t *testing.T) {
		var out strings.Builder
		if _, err := New(nil, nil, nil, &out, 0); err == nil {
			t.Error("expected error for nil store")
		}
		if _, err := New(nil, NewStore(), nil, nil, 0); err == nil {
			t.Error("expected error for nil output buffer")
		}
	})
}
