package fixpoint

// Constraint is an implication tree: Atom, Conj, Guard or ForAll
type Constraint interface {
	isConstraint()
}

// Atom requires a predicate to hold
type Atom struct {
	Pred Pred
}

type Conj struct {
	Constraints []Constraint
}

// Guard assumes Premise while checking Conclusion. Unlike ForAll it binds no variable:
// it exists to carry a side condition, such as a branch condition, into scope.
type Guard struct {
	Premise    Pred
	Conclusion Constraint
}

// ForAll binds the next variable (numbered by nesting depth), assumes Premise about it,
// and requires Conclusion
type ForAll struct {
	Sort       Sort
	Premise    Pred
	Conclusion Constraint
}

var (
	_ Constraint = Atom{}
	_ Constraint = Conj{}
	_ Constraint = Guard{}
	_ Constraint = ForAll{}
)

func (Atom) isConstraint()   {}
func (Conj) isConstraint()   {}
func (Guard) isConstraint()  {}
func (ForAll) isConstraint() {}

// True is the trivially valid constraint
var True Constraint = Atom{Pred: ExprPred{Expr: Const{Value: BoolConst(true)}}}

// False can never be discharged
var False Constraint = Atom{Pred: ExprPred{Expr: Const{Value: BoolConst(false)}}}

// Join conjoins constraints. It returns nil when there is nothing to join.
func Join(constraints ...Constraint) Constraint {
	switch len(constraints) {
	case 0:
		return nil
	case 1:
		return constraints[0]
	default:
		return Conj{Constraints: constraints}
	}
}

// Pred is a constraint-level predicate: And, KVarApp or ExprPred
type Pred interface {
	isPred()
}

type And struct {
	Preds []Pred
}

// KVarApp applies a k-variable to bound variables, referenced by their nesting depth
type KVarApp struct {
	ID   KVid
	Args []int
}

type ExprPred struct {
	Expr Expr
}

var (
	_ Pred = And{}
	_ Pred = KVarApp{}
	_ Pred = ExprPred{}
)

func (And) isPred()      {}
func (KVarApp) isPred()  {}
func (ExprPred) isPred() {}

// Expr is BoundVar, Const, Binary or Unary
type Expr interface {
	isExpr()
}

// BoundVar refers to the variable bound by the ForAll at the given nesting depth
type BoundVar int

type Const struct {
	Value Constant
}

type Binary struct {
	Op       BinOp
	Lhs, Rhs Expr
}

type Unary struct {
	Op      UnOp
	Operand Expr
}

var (
	_ Expr = BoundVar(0)
	_ Expr = Const{}
	_ Expr = Binary{}
	_ Expr = Unary{}
)

func (BoundVar) isExpr() {}
func (Const) isExpr()    {}
func (Binary) isExpr()   {}
func (Unary) isExpr()    {}

func EqualExpr(a, b Expr) bool {
	switch a := a.(type) {
	case BoundVar:
		b, ok := b.(BoundVar)
		return ok && a == b
	case Const:
		b, ok := b.(Const)
		return ok && a == b
	case Binary:
		b, ok := b.(Binary)
		return ok && a.Op == b.Op && EqualExpr(a.Lhs, b.Lhs) && EqualExpr(a.Rhs, b.Rhs)
	case Unary:
		b, ok := b.(Unary)
		return ok && a.Op == b.Op && EqualExpr(a.Operand, b.Operand)
	}
	return false
}

func EqualPred(a, b Pred) bool {
	switch a := a.(type) {
	case ExprPred:
		b, ok := b.(ExprPred)
		return ok && EqualExpr(a.Expr, b.Expr)
	case KVarApp:
		b, ok := b.(KVarApp)
		if !ok || a.ID != b.ID || len(a.Args) != len(b.Args) {
			return false
		}
		for i := range a.Args {
			if a.Args[i] != b.Args[i] {
				return false
			}
		}
		return true
	case And:
		b, ok := b.(And)
		if !ok || len(a.Preds) != len(b.Preds) {
			return false
		}
		for i := range a.Preds {
			if !EqualPred(a.Preds[i], b.Preds[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// IsTrue is true for constraints that are syntactically the constant true
func IsTrue(c Constraint) bool {
	atom, ok := c.(Atom)
	if !ok {
		return false
	}
	return isTruePred(atom.Pred)
}

func isTruePred(p Pred) bool {
	switch p := p.(type) {
	case ExprPred:
		c, ok := p.Expr.(Const)
		return ok && c.Value == BoolConst(true)
	case And:
		for _, inner := range p.Preds {
			if !isTruePred(inner) {
				return false
			}
		}
		return true
	}
	return false
}
