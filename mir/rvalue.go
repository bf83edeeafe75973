package mir

import "fmt"

type BinOp uint8

const (
	Add BinOp = iota
	Sub
	Mul
	Div
	Rem
	Eq
	Ne
	Lt
	Le
	Gt
	Ge
	BitAnd
	BitOr
)

var binOpSymbols = map[BinOp]string{
	Add: "+", Sub: "-", Mul: "*", Div: "/", Rem: "%",
	Eq: "==", Ne: "!=", Lt: "<", Le: "<=", Gt: ">", Ge: ">=",
	BitAnd: "&", BitOr: "|",
}

func (op BinOp) String() string { return binOpSymbols[op] }

// IsComparison is true for operators producing a bool out of two operands of the same type
func (op BinOp) IsComparison() bool {
	return op >= Eq && op <= Ge
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

type BorrowKind uint8

const (
	Shared BorrowKind = iota
	Mut
)

func (k BorrowKind) String() string {
	if k == Mut {
		return "mut"
	}
	return "shared"
}

type RvalueKind uint8

const (
	RvalueUse RvalueKind = iota
	RvalueBinaryOp
	RvalueUnaryOp
	RvalueRef
)

// Rvalue is the right-hand side of an assignment.
// Which fields are meaningful depends on Kind.
type Rvalue struct {
	Kind RvalueKind

	BinOp BinOp
	UnOp  UnOp
	// Lhs is the single operand of Use and UnaryOp
	Lhs Operand
	Rhs Operand

	BorrowKind BorrowKind
	Place      Place
}

func Use(op Operand) Rvalue { return Rvalue{Kind: RvalueUse, Lhs: op} }

func BinaryOp(op BinOp, lhs, rhs Operand) Rvalue {
	return Rvalue{Kind: RvalueBinaryOp, BinOp: op, Lhs: lhs, Rhs: rhs}
}

func UnaryOp(op UnOp, operand Operand) Rvalue {
	return Rvalue{Kind: RvalueUnaryOp, UnOp: op, Lhs: operand}
}

func Ref(kind BorrowKind, place Place) Rvalue {
	return Rvalue{Kind: RvalueRef, BorrowKind: kind, Place: place}
}

func (r Rvalue) String() string {
	switch r.Kind {
	case RvalueUse:
		return r.Lhs.String()
	case RvalueBinaryOp:
		return fmt.Sprintf("%s %s %s", r.Lhs, r.BinOp, r.Rhs)
	case RvalueUnaryOp:
		return fmt.Sprintf("%s%s", r.UnOp, r.Lhs)
	default:
		if r.BorrowKind == Mut {
			return fmt.Sprintf("&mut %s", r.Place)
		}
		return fmt.Sprintf("&%s", r.Place)
	}
}
