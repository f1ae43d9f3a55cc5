// Package vm provides values, the variable store and the evaluator for Letterbox programs.
package vm

import (
	"math"
	"strconv"
)

// Kind identifies which payload a Value holds.
type Kind int

const (
	KindNumber Kind = iota
	KindText
)

func (k Kind) String() string {
	if k == KindText {
		return "text"
	}
	return "number"
}

// Value is either a Number or a Text. The zero Value is Number(0).
type Value struct {
	kind Kind
	num  float64
	text string
}

// Number creates a numeric value.
func Number(n float64) Value {
	return Value{kind: KindNumber, num: n}
}

// Text creates a text value.
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// Zero is the value of every variable that has not been set.
func Zero() Value {
	return Number(0)
}

// Kind returns the payload kind.
func (v Value) Kind() Kind { return v.kind }

// IsNumber reports whether v holds a number.
func (v Value) IsNumber() bool { return v.kind == KindNumber }

// IsText reports whether v holds text.
func (v Value) IsText() bool { return v.kind == KindText }

// Num returns the numeric payload.
func (v Value) Num() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Str returns the text payload.
func (v Value) Str() (string, bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.text, true
}

// Truthy reports whether v counts as true.
// Numbers are true when non-zero. Text is always true, even when empty.
func (v Value) Truthy() bool {
	if v.kind == KindText {
		return true
	}
	return v.num != 0
}

// Equal reports whether v and other hold the same kind and payload.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	if v.kind == KindText {
		return v.text == other.text
	}
	return v.num == other.num || (math.IsNaN(v.num) && math.IsNaN(other.num))
}

// String returns the display form: text verbatim, numbers via FormatNumber.
func (v Value) String() string {
	if v.kind == KindText {
		return v.text
	}
	return FormatNumber(v.num)
}

// FormatNumber renders n in its shortest exact decimal form without an
// exponent, so whole numbers print without a decimal point.
func FormatNumber(n float64) string {
	switch {
	case math.IsInf(n, 1):
		return "inf"
	case math.IsInf(n, -1):
		return "-inf"
	case math.IsNaN(n):
		return "NaN"
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}
