package tycheck

import (
	"github.com/cottand/refine/fixpoint"
	"github.com/cottand/refine/mir"
	"github.com/cottand/refine/ty"
)

func lowerSort(base ty.BaseTy) fixpoint.Sort {
	if base == ty.Bool {
		return fixpoint.Bool
	}
	return fixpoint.Int
}

func lowerConst(c mir.Constant) fixpoint.Constant {
	if c.IsBool {
		return fixpoint.BoolConst(c.Bool)
	}
	return fixpoint.IntConst(c.Int)
}

var binOps = [...]fixpoint.BinOp{
	ty.Add: fixpoint.Add, ty.Sub: fixpoint.Sub, ty.Mul: fixpoint.Mul, ty.Div: fixpoint.Div, ty.Rem: fixpoint.Rem,
	ty.Eq: fixpoint.Eq, ty.Neq: fixpoint.Neq,
	ty.Lt: fixpoint.Lt, ty.Gt: fixpoint.Gt, ty.Lte: fixpoint.Lte, ty.Gte: fixpoint.Gte,
	ty.And: fixpoint.LAnd, ty.Or: fixpoint.LOr,
}

func lowerBinOp(op ty.BinOp) fixpoint.BinOp { return binOps[op.Kind] }

func lowerUnOp(op ty.UnOp) fixpoint.UnOp {
	if op == ty.Not {
		return fixpoint.Not
	}
	return fixpoint.Neg
}

// resolve finds the binding of a variable. self is the binding of v, nil where v
// is meaningless (branch conditions).
func (w *walker) resolve(v ty.Var, self *binding, fields fieldCtx) (*binding, error) {
	switch v.Kind {
	case ty.VarNu:
		if self == nil {
			return nil, internalf("v used outside of a refinement")
		}
		return self, nil
	case ty.VarField:
		b, ok := fields[v.Field]
		if !ok {
			return nil, internalf("field %s is not in scope", v.Field)
		}
		return b, nil
	default:
		b, ok := w.bindings[v.Ghost]
		if !ok {
			return nil, internalf("ghost %s is not in scope", v.Ghost)
		}
		return b, nil
	}
}

func (w *walker) lowerExpr(p *ty.Pred, self *binding, fields fieldCtx) (fixpoint.Expr, error) {
	switch k := p.Kind().(type) {
	case ty.PredPath:
		b, err := w.resolve(k.Path.Base, self, fields)
		if err != nil {
			return nil, err
		}
		if b, err = b.project(k.Path.Projs); err != nil {
			return nil, err
		}
		if !b.isLeaf() {
			return nil, internalf("%s is not a refined value", k.Path)
		}
		return fixpoint.BoundVar(b.level), nil
	case ty.PredBinary:
		lhs, err := w.lowerExpr(k.Lhs, self, fields)
		if err != nil {
			return nil, err
		}
		rhs, err := w.lowerExpr(k.Rhs, self, fields)
		if err != nil {
			return nil, err
		}
		return fixpoint.Binary{Op: lowerBinOp(k.Op), Lhs: lhs, Rhs: rhs}, nil
	case ty.PredUnary:
		operand, err := w.lowerExpr(k.Operand, self, fields)
		if err != nil {
			return nil, err
		}
		return fixpoint.Unary{Op: lowerUnOp(k.Op), Operand: operand}, nil
	case ty.PredConst:
		return fixpoint.Const{Value: lowerConst(k.Value)}, nil
	}
	return nil, internalf("unknown predicate %s", p)
}

func (w *walker) lowerPred(p *ty.Pred, self *binding, fields fieldCtx) (fixpoint.Pred, error) {
	e, err := w.lowerExpr(p, self, fields)
	if err != nil {
		return nil, err
	}
	return fixpoint.ExprPred{Expr: e}, nil
}

// lowerKvar applies a k-variable to the leaves of every variable it depends on
func (w *walker) lowerKvar(k *ty.Kvar, self *binding, fields fieldCtx) (fixpoint.Pred, error) {
	var args []int
	for _, v := range k.Vars {
		b, err := w.resolve(v, self, fields)
		if err != nil {
			return nil, err
		}
		args = b.leaves(args)
	}
	return fixpoint.KVarApp{ID: fixpoint.KVid(k.ID), Args: args}, nil
}

func (w *walker) lowerRefine(r ty.Refine, self *binding, fields fieldCtx) (fixpoint.Pred, error) {
	if r.IsInfer() {
		return w.lowerKvar(r.Kvar(), self, fields)
	}
	return w.lowerPred(r.Pred(), self, fields)
}

// LowerQualifier compiles a predicate over the ghosts g0..gN, of the given base types,
// into a qualifier over v0..vN
func LowerQualifier(tcx *ty.Ctxt, name string, bases []ty.BaseTy, p *ty.Pred) (fixpoint.Qualifier, error) {
	st := &fnState{tcx: tcx, regions: make(map[ty.RegionVid]*regionSolution)}
	w := st.newWalker()
	sorts := make([]fixpoint.Sort, len(bases))
	for i, base := range bases {
		sorts[i] = lowerSort(base)
		w.bindings[ty.GhostVar(i)] = &binding{level: i}
	}
	e, err := w.lowerExpr(p, nil, nil)
	if err != nil {
		return fixpoint.Qualifier{}, err
	}
	return fixpoint.Qualifier{Name: name, Sorts: sorts, Pred: e}, nil
}
