package fixpoint

import (
	"fmt"
	"strings"
)

// Qualifier is a named predicate template over variables v0..vN of the given sorts.
// Qualifiers are hints for the solver's predicate abstraction and are passed through as-is.
type Qualifier struct {
	Name  string
	Sorts []Sort
	Pred  Expr
}

func (q Qualifier) emit(p *printer) {
	vars := make([]string, len(q.Sorts))
	for i, s := range q.Sorts {
		vars[i] = fmt.Sprintf("(v%d %s)", i, s)
	}
	p.printf("(qualif %s (%s) (", q.Name, strings.Join(vars, " "))
	p.expr(q.Pred)
	p.printf("))")
}

func (q Qualifier) String() string {
	sb := &strings.Builder{}
	q.emit(&printer{w: sb, emit: true})
	return sb.String()
}

func cmpQualifier(op BinOp, name string) Qualifier {
	return Qualifier{
		Name:  name,
		Sorts: []Sort{Int, Int},
		Pred:  Binary{Op: op, Lhs: BoundVar(0), Rhs: BoundVar(1)},
	}
}

// DefaultQualifiers are the templates every query carries
func DefaultQualifiers() []Qualifier {
	return []Qualifier{
		{Name: "Pos", Sorts: []Sort{Int}, Pred: Binary{Op: Gt, Lhs: BoundVar(0), Rhs: Const{Value: IntConst(0)}}},
		{Name: "NonNeg", Sorts: []Sort{Int}, Pred: Binary{Op: Gte, Lhs: BoundVar(0), Rhs: Const{Value: IntConst(0)}}},
		cmpQualifier(Eq, "Eq"),
		cmpQualifier(Lt, "Lt"),
		cmpQualifier(Lte, "Le"),
		cmpQualifier(Gt, "Gt"),
		cmpQualifier(Gte, "Ge"),
		{Name: "True", Sorts: []Sort{Bool}, Pred: BoundVar(0)},
	}
}
