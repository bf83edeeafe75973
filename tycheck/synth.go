package tycheck

import (
	"github.com/cottand/refine/mir"
	"github.com/cottand/refine/ty"
	"github.com/pkg/errors"
	"slices"
)

// selfify strengthens t to say its value is exactly the one at path: {v | v == path}
func (w *walker) selfify(t *ty.Ty, path ty.Path) (*ty.Ty, error) {
	switch k := t.Kind().(type) {
	case ty.Refined:
		eq := w.tcx.MkBinary(ty.EqOp(k.Base), w.tcx.MkVar(ty.Nu), w.tcx.MkPath(path))
		return w.tcx.MkRefined(k.Base, ty.Known(eq)), nil
	case ty.Tuple:
		var err error
		fields := k.Map(func(i int, f ty.Field, fieldTy *ty.Ty) ty.TupleField {
			selfified, ferr := w.selfify(fieldTy, path.Extend(i))
			if ferr != nil {
				err = ferr
			}
			return ty.TupleField{Field: f, Ty: selfified}
		})
		if err != nil {
			return nil, err
		}
		return w.tcx.MkTuple(fields)
	default:
		return t, nil
	}
}

// placeTarget is what a place resolves to: the type of the value there and the path
// naming it. Region is the region of the last reference the place went through.
type placeTarget struct {
	ty       *ty.Ty
	path     ty.Path
	viaRef   bool
	region   ty.Region
	refGhost ty.GhostVar
	// exact is true when path is just a ghost, with no projections
	exact bool
}

func (w *walker) resolvePlace(p mir.Place) (placeTarget, error) {
	g, err := w.local(p.Local)
	if err != nil {
		return placeTarget{}, err
	}
	t, err := w.ghostTy(g)
	if err != nil {
		return placeTarget{}, err
	}
	target := placeTarget{ty: t, path: ty.PathOf(ty.GhostV(g)), exact: true}
	for _, elem := range p.Projection {
		if elem.Deref {
			ref, ok := target.ty.Kind().(ty.Ref)
			if !ok {
				return placeTarget{}, internalf("%s dereferences %s", p, target.ty)
			}
			pointee, err := w.ghostTy(ref.Ghost)
			if err != nil {
				return placeTarget{}, err
			}
			target = placeTarget{
				ty:       pointee,
				path:     ty.PathOf(ty.GhostV(ref.Ghost)),
				viaRef:   true,
				region:   ref.Region,
				refGhost: ref.Ghost,
				exact:    true,
			}
			continue
		}
		tuple, ok := target.ty.Kind().(ty.Tuple)
		if !ok || elem.Field >= tuple.Len() {
			return placeTarget{}, internalf("%s projects field %d out of %s", p, elem.Field, target.ty)
		}
		target.ty = tuple.TyAt(elem.Field)
		target.path = target.path.Extend(elem.Field)
		target.exact = false
	}
	return target, nil
}

// read synthesises the type of the value at p. Moving a whole local out leaves it uninitialised.
func (w *walker) read(p mir.Place, move bool) (*ty.Ty, error) {
	target, err := w.resolvePlace(p)
	if err != nil {
		return nil, err
	}
	if _, ok := target.ty.Kind().(ty.Uninit); ok {
		return nil, internalf("read of uninitialised %s", p)
	}
	t, err := w.selfify(target.ty, target.path)
	if err != nil {
		return nil, err
	}
	if move && p.IsLocal() {
		g, err := w.fresh(w.tcx.MkUninit(target.ty.Size()))
		if err != nil {
			return nil, err
		}
		w.setLocal(p.Local, g)
	}
	return t, nil
}

func (w *walker) constTy(c mir.Constant) *ty.Ty {
	base := ty.Int
	if c.IsBool {
		base = ty.Bool
	}
	eq := w.tcx.MkBinary(ty.EqOp(base), w.tcx.MkVar(ty.Nu), w.tcx.MkConst(c))
	return w.tcx.MkRefined(base, ty.Known(eq))
}

func (w *walker) operandTy(op mir.Operand) (*ty.Ty, error) {
	if !op.IsPlace() {
		return w.constTy(op.Constant), nil
	}
	return w.read(op.Place, op.Kind == mir.OperandMove)
}

// operandPred names the value of a base-typed operand inside a predicate
func (w *walker) operandPred(op mir.Operand) (*ty.Pred, ty.BaseTy, error) {
	if !op.IsPlace() {
		base := ty.Int
		if op.Constant.IsBool {
			base = ty.Bool
		}
		return w.tcx.MkConst(op.Constant), base, nil
	}
	target, err := w.resolvePlace(op.Place)
	if err != nil {
		return nil, 0, err
	}
	refined, ok := target.ty.Kind().(ty.Refined)
	if !ok {
		return nil, 0, internalf("%s is not of a base type: %s", op.Place, target.ty)
	}
	path := w.tcx.MkPath(target.path)
	if op.Kind == mir.OperandMove && op.Place.IsLocal() {
		g, err := w.fresh(w.tcx.MkUninit(target.ty.Size()))
		if err != nil {
			return nil, 0, err
		}
		w.setLocal(op.Place.Local, g)
	}
	return path, refined.Base, nil
}

var mirBinOps = map[mir.BinOp]ty.BinOpKind{
	mir.Add: ty.Add, mir.Sub: ty.Sub, mir.Mul: ty.Mul, mir.Div: ty.Div, mir.Rem: ty.Rem,
	mir.Lt: ty.Lt, mir.Le: ty.Lte, mir.Gt: ty.Gt, mir.Ge: ty.Gte,
}

func (w *walker) binaryTy(op mir.BinOp, lhs, rhs mir.Operand) (*ty.Ty, error) {
	l, base, err := w.operandPred(lhs)
	if err != nil {
		return nil, err
	}
	r, _, err := w.operandPred(rhs)
	if err != nil {
		return nil, err
	}
	var tyOp ty.BinOp
	switch op {
	case mir.Eq:
		tyOp = ty.EqOp(base)
	case mir.Ne:
		tyOp = ty.NeqOp(base)
	case mir.BitAnd, mir.BitOr:
		if base != ty.Bool {
			// bitwise arithmetic is beyond the logic, the result is unconstrained
			return w.tcx.Trivial(ty.Int), nil
		}
		tyOp = ty.Op(ty.And)
		if op == mir.BitOr {
			tyOp = ty.Op(ty.Or)
		}
	default:
		kind, ok := mirBinOps[op]
		if !ok {
			return nil, internalf("unsupported operator %s", op)
		}
		tyOp = ty.Op(kind)
	}
	result := tyOp.Result()
	value := w.tcx.MkBinary(tyOp, l, r)
	eq := w.tcx.MkBinary(ty.EqOp(result), w.tcx.MkVar(ty.Nu), value)
	return w.tcx.MkRefined(result, ty.Known(eq)), nil
}

func (w *walker) unaryTy(op mir.UnOp, operand mir.Operand) (*ty.Ty, error) {
	p, base, err := w.operandPred(operand)
	if err != nil {
		return nil, err
	}
	tyOp := ty.Neg
	if op == mir.Not {
		tyOp = ty.Not
	}
	eq := w.tcx.MkBinary(ty.EqOp(base), w.tcx.MkVar(ty.Nu), w.tcx.MkUnary(tyOp, p))
	return w.tcx.MkRefined(base, ty.Known(eq)), nil
}

// refTy borrows p. Borrowing a whole local points at its current ghost, anything
// else points at a fresh ghost holding a copy of the value.
func (w *walker) refTy(kind mir.BorrowKind, p mir.Place) (*ty.Ty, error) {
	target, err := w.resolvePlace(p)
	if err != nil {
		return nil, err
	}
	region := ty.ConcreteRegion(p)
	if target.viaRef {
		region = target.region
	}
	if target.exact {
		return w.tcx.MkRef(kind, region, target.path.Base.Ghost), nil
	}
	selfified, err := w.selfify(target.ty, target.path)
	if err != nil {
		return nil, err
	}
	g, err := w.fresh(selfified)
	if err != nil {
		return nil, err
	}
	return w.tcx.MkRef(kind, region, g), nil
}

func (w *walker) rvalueTy(rv mir.Rvalue) (*ty.Ty, error) {
	switch rv.Kind {
	case mir.RvalueUse:
		return w.operandTy(rv.Lhs)
	case mir.RvalueBinaryOp:
		return w.binaryTy(rv.BinOp, rv.Lhs, rv.Rhs)
	case mir.RvalueUnaryOp:
		return w.unaryTy(rv.UnOp, rv.Lhs)
	case mir.RvalueRef:
		return w.refTy(rv.BorrowKind, rv.Place)
	}
	return nil, internalf("unknown rvalue %s", rv)
}

// synth runs a statement forward: the target gets a fresh ghost typed by the rvalue
func (w *walker) synth(stmt mir.Statement) error {
	if stmt.Kind == mir.StatementNop {
		return nil
	}
	t, err := w.rvalueTy(stmt.Rvalue)
	if err != nil {
		return errors.WithMessagef(err, "in %s", stmt)
	}
	if err := w.assign(stmt.Place, t); err != nil {
		return errors.WithMessagef(err, "in %s", stmt)
	}
	return nil
}

// assign writes a value of type t to p
func (w *walker) assign(p mir.Place, t *ty.Ty) error {
	g, err := w.local(p.Local)
	if err != nil {
		return err
	}
	if p.IsLocal() {
		fresh, err := w.fresh(t)
		if err != nil {
			return err
		}
		w.setLocal(p.Local, fresh)
		return nil
	}
	old, err := w.ghostTy(g)
	if err != nil {
		return err
	}
	updated, err := w.update(old, ty.PathOf(ty.GhostV(g)), p.Projection, t)
	if err != nil {
		return err
	}
	fresh, err := w.fresh(updated)
	if err != nil {
		return err
	}
	w.setLocal(p.Local, fresh)
	return nil
}

// assignGhost makes p hold the value of g
func (w *walker) assignGhost(p mir.Place, g ty.GhostVar) error {
	if p.IsLocal() {
		if _, err := w.local(p.Local); err != nil {
			return err
		}
		w.setLocal(p.Local, g)
		return nil
	}
	t, err := w.ghostTy(g)
	if err != nil {
		return err
	}
	selfified, err := w.selfify(t, ty.PathOf(ty.GhostV(g)))
	if err != nil {
		return err
	}
	return w.assign(p, selfified)
}

// update rebuilds cur, the value at path, with val written at the end of elems
func (w *walker) update(cur *ty.Ty, path ty.Path, elems []mir.PlaceElem, val *ty.Ty) (*ty.Ty, error) {
	if len(elems) == 0 {
		return val, nil
	}
	elem, rest := elems[0], elems[1:]
	if elem.Deref {
		ref, ok := cur.Kind().(ty.Ref)
		if !ok {
			return nil, internalf("dereference of %s", cur)
		}
		return w.writeThrough(ref, rest, val)
	}
	tuple, ok := cur.Kind().(ty.Tuple)
	if !ok || elem.Field >= tuple.Len() {
		return nil, internalf("field %d of %s", elem.Field, cur)
	}
	var err error
	fields := tuple.Map(func(i int, f ty.Field, fieldTy *ty.Ty) ty.TupleField {
		var t *ty.Ty
		var ferr error
		if i == elem.Field {
			t, ferr = w.update(fieldTy, path.Extend(i), rest, val)
		} else {
			t, ferr = w.selfify(fieldTy, path.Extend(i))
		}
		if ferr != nil {
			err = ferr
		}
		return ty.TupleField{Field: f, Ty: t}
	})
	if err != nil {
		return nil, err
	}
	return w.tcx.MkTuple(fields)
}

// writeThrough writes val through a reference and returns the updated reference
func (w *walker) writeThrough(ref ty.Ref, rest []mir.PlaceElem, val *ty.Ty) (*ty.Ty, error) {
	if ref.Kind != mir.Mut {
		return nil, internalf("write through a shared reference")
	}
	old, err := w.ghostTy(ref.Ghost)
	if err != nil {
		return nil, err
	}
	updated, err := w.update(old, ty.PathOf(ty.GhostV(ref.Ghost)), rest, val)
	if err != nil {
		return nil, err
	}
	pointee, err := w.fresh(updated)
	if err != nil {
		return nil, err
	}
	strong, err := w.writeRegion(ref.Region, pointee, ref.Ghost)
	if err != nil {
		return nil, err
	}
	if strong {
		return w.tcx.MkRef(ref.Kind, ref.Region, pointee), nil
	}
	return w.tcx.MkRef(ref.Kind, ref.Region, ref.Ghost), nil
}

// writeRegion records that the value behind a reference in region r is now g, the
// reference having pointed at old before. It reports whether the reference may point
// at g from now on.
//
// A region of exactly one place updates that place. A universal region is only reachable
// through the reference, so nothing else changes. Any other region is a weak update:
// g must fit old, and every place the region may stand for now holds some value of old's type.
func (w *walker) writeRegion(r ty.Region, g, old ty.GhostVar) (bool, error) {
	var places []mir.Place
	switch r.Kind {
	case ty.RegionConcrete:
		if place, ok := r.Singleton(); ok {
			return true, w.assignGhost(place, g)
		}
		places = r.Places()
	case ty.RegionAbstract:
		return true, nil
	case ty.RegionInfer:
		solution := w.st.solution(r.Vid)
		if place, ok := solution.singlePlace(); ok {
			return true, w.assignGhost(place, g)
		}
		if solution.onlyUniversal() {
			return true, nil
		}
		places = solution.places.Slice()
		slices.SortFunc(places, mir.Place.Compare)
	}

	c, err := w.entailGhosts(g, old)
	if err != nil {
		return false, err
	}
	w.oblige(c)
	oldTy, err := w.ghostTy(old)
	if err != nil {
		return false, err
	}
	for _, place := range places {
		weakened, err := w.fresh(oldTy)
		if err != nil {
			return false, err
		}
		if err := w.assignGhost(place, weakened); err != nil {
			return false, err
		}
	}
	return false, nil
}
