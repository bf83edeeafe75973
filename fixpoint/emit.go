package fixpoint

import (
	"fmt"
	"io"
	"strings"
)

// Ctx is the rendering context threaded down the tree. Depth counts the ForAll
// binders enclosing the node being rendered; the next binder is named v<Depth>.
type Ctx struct {
	Depth int
}

func (c Ctx) enter() Ctx {
	return Ctx{Depth: c.Depth + 1}
}

// printer renders constraints either for the solver (emit) or for humans.
// The two only differ on operator spellings: `mod` and `~` versus `%` and `!`.
type printer struct {
	w    io.Writer
	emit bool
	err  error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) binOp(op BinOp) string {
	if p.emit {
		return op.emitted()
	}
	return op.String()
}

func (p *printer) unOp(op UnOp) string {
	if p.emit {
		return op.emitted()
	}
	return op.String()
}

func (p *printer) constraint(c Constraint, ctx Ctx) {
	switch c := c.(type) {
	case Atom:
		p.printf("(")
		p.pred(c.Pred, ctx)
		p.printf(")")
	case Conj:
		p.printf("(and")
		for _, inner := range c.Constraints {
			p.printf(" ")
			p.constraint(inner, ctx)
		}
		p.printf(")")
	case ForAll:
		p.printf("(forall ((v%d %s) ", ctx.Depth, c.Sort)
		p.pred(c.Premise, ctx.enter())
		p.printf(") ")
		p.constraint(c.Conclusion, ctx.enter())
		p.printf(")")
	case Guard:
		p.printf("(forall ((_ int) ")
		p.pred(c.Premise, ctx)
		p.printf(") ")
		p.constraint(c.Conclusion, ctx)
		p.printf(")")
	}
}

func (p *printer) pred(pred Pred, ctx Ctx) {
	switch pred := pred.(type) {
	case KVarApp:
		args := make([]string, len(pred.Args))
		for i, a := range pred.Args {
			args[i] = fmt.Sprintf("v%d", a)
		}
		if len(args) == 0 {
			p.printf("(%s)", pred.ID)
			return
		}
		p.printf("(%s %s)", pred.ID, strings.Join(args, " "))
	case And:
		p.printf("(and")
		for _, inner := range pred.Preds {
			p.printf(" ")
			p.pred(inner, ctx)
		}
		p.printf(")")
	case ExprPred:
		p.printf("(")
		p.expr(pred.Expr)
		p.printf(")")
	}
}

func shouldParenthesize(op BinOp, child Expr) bool {
	inner, ok := child.(Binary)
	if !ok {
		return false
	}
	return inner.Op.Precedence() < op.Precedence() ||
		(inner.Op.Precedence() == op.Precedence() && !associative(op.Precedence()))
}

func (p *printer) expr(e Expr) {
	switch e := e.(type) {
	case BoundVar:
		p.printf("v%d", int(e))
	case Const:
		if p.emit && !e.Value.IsBool && e.Value.Int < 0 {
			p.printf("(%s)", e.Value)
			return
		}
		p.printf("%s", e.Value)
	case Binary:
		p.operand(e.Op, e.Lhs)
		p.printf(" %s ", p.binOp(e.Op))
		p.operand(e.Op, e.Rhs)
	case Unary:
		switch e.Operand.(type) {
		case BoundVar, Const:
			p.printf("%s", p.unOp(e.Op))
			p.expr(e.Operand)
		default:
			p.printf("%s(", p.unOp(e.Op))
			p.expr(e.Operand)
			p.printf(")")
		}
	}
}

func (p *printer) operand(parent BinOp, child Expr) {
	if shouldParenthesize(parent, child) {
		p.printf("(")
		p.expr(child)
		p.printf(")")
		return
	}
	p.expr(child)
}

// Emit writes the solver syntax of c, rendered at the given depth
func Emit(w io.Writer, c Constraint, ctx Ctx) error {
	p := &printer{w: w, emit: true}
	p.constraint(c, ctx)
	return p.err
}

// EmitString renders c for the solver, starting at depth 0
func EmitString(c Constraint) string {
	sb := &strings.Builder{}
	_ = Emit(sb, c, Ctx{})
	return sb.String()
}

// String renders c for humans, with `%` and `!` instead of `mod` and `~`
func String(c Constraint) string {
	sb := &strings.Builder{}
	p := &printer{w: sb}
	p.constraint(c, Ctx{})
	return sb.String()
}

// ExprString renders e for humans
func ExprString(e Expr) string {
	sb := &strings.Builder{}
	p := &printer{w: sb}
	p.expr(e)
	return sb.String()
}
