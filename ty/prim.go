package ty

// BaseTy is a base type that can be refined
type BaseTy uint8

const (
	Int BaseTy = iota
	Bool
)

func (b BaseTy) String() string {
	if b == Bool {
		return "bool"
	}
	return "int"
}

// Size in bytes of a value of this base type
func (b BaseTy) Size() int {
	if b == Bool {
		return 1
	}
	return 8
}

type BinOpKind uint8

const (
	Add BinOpKind = iota
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
	And
	Or
)

// BinOp is a primitive binary operator. Equality operators carry the base type of
// their operands; Base is zero for every other operator.
type BinOp struct {
	Kind BinOpKind
	Base BaseTy
}

func Op(kind BinOpKind) BinOp       { return BinOp{Kind: kind} }
func EqOp(base BaseTy) BinOp        { return BinOp{Kind: Eq, Base: base} }
func NeqOp(base BaseTy) BinOp       { return BinOp{Kind: Neq, Base: base} }
func (op BinOp) IsArithmetic() bool { return op.Kind <= Rem }
func (op BinOp) IsLogical() bool    { return op.Kind == And || op.Kind == Or }
func (op BinOp) IsComparison() bool { return op.Kind >= Eq && op.Kind <= Gte }

// Result is the base type of the value produced by the operator
func (op BinOp) Result() BaseTy {
	if op.IsArithmetic() {
		return Int
	}
	return Bool
}

var binOpSymbols = [...]string{
	Add: "+", Sub: "-", Mul: "*", Div: "/", Rem: "%",
	Eq: "==", Neq: "!=", Lt: "<", Gt: ">", Lte: "<=", Gte: ">=",
	And: "&&", Or: "||",
}

func (op BinOp) String() string { return binOpSymbols[op.Kind] }

type UnOp uint8

const (
	// Not is boolean negation
	Not UnOp = iota
	// Neg is integer negation
	Neg
)

func (op UnOp) String() string {
	if op == Not {
		return "!"
	}
	return "-"
}
