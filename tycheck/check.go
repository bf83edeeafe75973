package tycheck

import (
	"github.com/cottand/refine/fixpoint"
	"github.com/cottand/refine/mir"
	"github.com/cottand/refine/ty"
	"github.com/cottand/refine/util"
	"github.com/pkg/errors"
)

// check raises the obligations of a terminator
func (w *walker) check(term mir.Terminator) error {
	switch term.Kind {
	case mir.TermGoto:
		return w.checkGoto(term.Target)
	case mir.TermSwitchInt:
		return w.checkSwitch(term.Discr, term.Switch)
	case mir.TermAssert:
		p, base, err := w.operandPred(term.Discr)
		if err != nil {
			return err
		}
		premise, err := w.condition(p, base, mir.BoolConst(term.Expected), true)
		if err != nil {
			return err
		}
		return w.fork(w.sc.guard(premise)).checkGoto(term.Target)
	case mir.TermCall:
		return w.checkCall(term)
	case mir.TermReturn:
		return w.checkReturn()
	case mir.TermUnreachable:
		return nil
	}
	return internalf("unknown terminator %s", term)
}

// condition lowers `p == c` (or `p != c`). Boolean discriminants become `p` or `!p`.
func (w *walker) condition(p *ty.Pred, base ty.BaseTy, c mir.Constant, equal bool) (fixpoint.Pred, error) {
	var cond *ty.Pred
	if base == ty.Bool {
		truth := c.Bool
		if !c.IsBool {
			truth = c.Int != 0
		}
		cond = p
		if truth != equal {
			cond = w.tcx.MkUnary(ty.Not, p)
		}
	} else {
		op := ty.EqOp(base)
		if !equal {
			op = ty.NeqOp(base)
		}
		cond = w.tcx.MkBinary(op, p, w.tcx.MkConst(c))
	}
	return w.lowerPred(cond, nil, nil)
}

func (w *walker) checkSwitch(discr mir.Operand, targets mir.SwitchTargets) error {
	p, base, err := w.operandPred(discr)
	if err != nil {
		return err
	}
	otherwise := w.sc
	for i, value := range targets.Values {
		premise, err := w.condition(p, base, value, true)
		if err != nil {
			return err
		}
		if err := w.fork(w.sc.guard(premise)).checkGoto(targets.Targets[i]); err != nil {
			return err
		}
		premise, err = w.condition(p, base, value, false)
		if err != nil {
			return err
		}
		otherwise = otherwise.guard(premise)
	}
	return w.fork(otherwise).checkGoto(targets.Otherwise)
}

// checkGoto checks the environment against the type expected at the entry of bb
func (w *walker) checkGoto(bb mir.BasicBlock) error {
	expected, err := w.st.benv.Get(bb)
	if err != nil {
		return err
	}
	subst := ty.NewSubst()
	for _, local := range expected.Locals() {
		cur, err := w.local(local)
		if err != nil {
			return err
		}
		if err := w.instantiate(subst, expected, expected.Inputs[local], cur); err != nil {
			return err
		}
	}
	for _, req := range expected.Requires {
		g, ok := subst.Ghost(req.Ghost)
		if !ok {
			return internalf("%s requires %s which no local reaches", bb, req.Ghost)
		}
		if err := w.subtypeGhost(g, w.tcx.Apply(subst, req.Ty)); err != nil {
			return errors.WithMessagef(err, "jumping to %s", bb)
		}
	}
	return nil
}

// requirer is anything with universally quantified ghosts: block types and function declarations
type requirer interface {
	requiredTy(g ty.GhostVar) (*ty.Ty, bool)
}

type declRequires struct{ *ty.FnDecl }

func (d declRequires) requiredTy(g ty.GhostVar) (*ty.Ty, bool) { return d.RequiredTy(g) }

// instantiate maps the quantified ghost formal to the ghost actual, then follows
// references in both types to map their pointees and regions too
func (w *walker) instantiate(subst *ty.Subst, req requirer, formal, actual ty.GhostVar) error {
	if prev, ok := subst.Ghost(formal); ok && prev == actual {
		return nil
	}
	subst.InsertGhost(formal, actual)
	formalTy, ok := req.requiredTy(formal)
	if !ok {
		return nil
	}
	actualTy, err := w.ghostTy(actual)
	if err != nil {
		return err
	}
	return w.instantiateTy(subst, req, formalTy, actualTy)
}

func (w *walker) instantiateTy(subst *ty.Subst, req requirer, formal, actual *ty.Ty) error {
	switch f := formal.Kind().(type) {
	case ty.Ref:
		a, ok := actual.Kind().(ty.Ref)
		if !ok {
			return internalf("shape mismatch: %s against %s", actual, formal)
		}
		if f.Region.Kind == ty.RegionAbstract {
			subst.InsertRegion(f.Region.Universal, a.Region)
		}
		return w.instantiate(subst, req, f.Ghost, a.Ghost)
	case ty.Tuple:
		a, ok := actual.Kind().(ty.Tuple)
		if !ok || a.Len() != f.Len() {
			return internalf("shape mismatch: %s against %s", actual, formal)
		}
		for i := range f.Len() {
			if err := w.instantiateTy(subst, req, f.TyAt(i), a.TyAt(i)); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkCall instantiates the callee's requires with the arguments as obligations,
// then assumes its ensures under fresh ghosts
func (w *walker) checkCall(term mir.Terminator) error {
	decl, err := w.st.genv.Get(term.Func)
	if err != nil {
		return err
	}
	if len(term.Args) != len(decl.Inputs) {
		return internalf("%s takes %d arguments, got %d", term.Func, len(decl.Inputs), len(term.Args))
	}
	subst := ty.NewSubst()
	args := make([]*ty.Ty, len(term.Args))
	for i, arg := range term.Args {
		t, err := w.operandTy(arg)
		if err != nil {
			return err
		}
		g, err := w.fresh(t)
		if err != nil {
			return err
		}
		args[i] = t
		if err := w.instantiate(subst, declRequires{decl}, decl.Inputs[i], g); err != nil {
			return errors.WithMessagef(err, "argument %d of %s", i, term.Func)
		}
	}
	for _, req := range decl.Requires {
		g, ok := subst.Ghost(req.Ghost)
		if !ok {
			return internalf("%s requires %s which no argument reaches", term.Func, req.Ghost)
		}
		if err := w.subtypeGhost(g, w.tcx.Apply(subst, req.Ty)); err != nil {
			return errors.WithMessagef(err, "calling %s", term.Func)
		}
	}

	for _, ens := range decl.Ensures {
		subst.InsertGhost(ens.Ghost, w.st.freshGhost())
	}
	for _, ens := range decl.Ensures {
		g, _ := subst.Ghost(ens.Ghost)
		if err := w.bind(g, w.tcx.Apply(subst, ens.Ty)); err != nil {
			return err
		}
	}
	for _, out := range decl.Outputs {
		ref, ok := args[out.Arg].Kind().(ty.Ref)
		if !ok {
			return internalf("argument %d of %s is not a reference", out.Arg, term.Func)
		}
		g, _ := subst.Ghost(out.Ghost)
		strong, err := w.writeRegion(ref.Region, g, ref.Ghost)
		if err != nil {
			return err
		}
		if strong {
			if err := w.retarget(ref, g); err != nil {
				return err
			}
		}
	}
	ret, _ := subst.Ghost(decl.Output)
	if err := w.assignGhost(term.Destination, ret); err != nil {
		return err
	}
	if !term.HasTarget {
		return nil
	}
	return w.checkGoto(term.Target)
}

// retarget points every local holding the reference ref at the pointee g instead
func (w *walker) retarget(ref ty.Ref, g ty.GhostVar) error {
	var holders []util.Pair[mir.Local, mir.BorrowKind]
	itr := w.locals.Iterator()
	for !itr.Done() {
		local, cur, _ := itr.Next()
		t, err := w.ghostTy(cur)
		if err != nil {
			return err
		}
		if other, ok := t.Kind().(ty.Ref); ok && other.Ghost == ref.Ghost && other.Region.Equal(ref.Region) {
			holders = append(holders, util.NewPair(local, other.Kind))
		}
	}
	for _, h := range holders {
		local, kind := h.Unpack()
		updated, err := w.fresh(w.tcx.MkRef(kind, ref.Region, g))
		if err != nil {
			return err
		}
		w.setLocal(local, updated)
	}
	return nil
}

// checkReturn checks the return place, and the pointees of reference arguments,
// against the function's ensures
func (w *walker) checkReturn() error {
	decl := w.st.fn.Decl
	subst := ty.NewSubst()
	ret, err := w.local(0)
	if err != nil {
		return err
	}
	subst.InsertGhost(decl.Output, ret)
	for _, out := range decl.Outputs {
		g, err := w.local(mir.Local(out.Arg + 1))
		if err != nil {
			return err
		}
		t, err := w.ghostTy(g)
		if err != nil {
			return err
		}
		ref, ok := t.Kind().(ty.Ref)
		if !ok {
			return internalf("argument %d is %s at return, not a reference", out.Arg, t)
		}
		subst.InsertGhost(out.Ghost, ref.Ghost)
	}
	for _, ens := range decl.Ensures {
		g, ok := subst.Ghost(ens.Ghost)
		if !ok {
			return internalf("ensured ghost %s is neither the output nor an argument output", ens.Ghost)
		}
		if err := w.subtypeGhost(g, w.tcx.Apply(subst, ens.Ty)); err != nil {
			return errors.WithMessage(err, "at return")
		}
	}
	return nil
}
