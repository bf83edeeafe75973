package fixpoint

import (
	"fmt"
	"strconv"
)

type Sort uint8

const (
	Int Sort = iota
	Bool
)

func (s Sort) String() string {
	if s == Bool {
		return "bool"
	}
	return "int"
}

// KVid identifies a k-variable, an unknown predicate the solver has to find
type KVid uint32

func (k KVid) String() string { return fmt.Sprintf("$k%d", uint32(k)) }

type Constant struct {
	IsBool bool
	Int    int64
	Bool   bool
}

func IntConst(n int64) Constant { return Constant{Int: n} }
func BoolConst(b bool) Constant { return Constant{IsBool: true, Bool: b} }

func (c Constant) String() string {
	if c.IsBool {
		return strconv.FormatBool(c.Bool)
	}
	return strconv.FormatInt(c.Int, 10)
}

type BinOp uint8

const (
	Add BinOp = iota
	Sub
	Mul
	Div
	Rem
	Eq
	Neq
	Lt
	Gt
	Lte
	Gte
	LAnd
	LOr
)

func (op BinOp) Precedence() int {
	switch op {
	case Mul, Div, Rem:
		return 5
	case Add, Sub:
		return 4
	case Eq, Neq, Lt, Gt, Lte, Gte:
		return 3
	case LAnd:
		return 2
	default:
		return 1
	}
}

// associative reports whether operators of the given precedence can be chained
// without parentheses. Comparisons cannot.
func associative(precedence int) bool {
	return precedence != 3
}

var binOpSymbols = [...]string{
	Add: "+", Sub: "-", Mul: "*", Div: "/", Rem: "%",
	Eq: "=", Neq: "!=", Lt: "<", Gt: ">", Lte: "<=", Gte: ">=",
	LAnd: "&&", LOr: "||",
}

// String is the human-readable form, see emitted for the solver's
func (op BinOp) String() string { return binOpSymbols[op] }

func (op BinOp) emitted() string {
	if op == Rem {
		return "mod"
	}
	return op.String()
}

type UnOp uint8

const (
	Not UnOp = iota
	Neg
)

func (op UnOp) String() string {
	if op == Not {
		return "!"
	}
	return "-"
}

func (op UnOp) emitted() string {
	if op == Not {
		return "~"
	}
	return "-"
}
