package tycheck

import (
	"github.com/cottand/refine/mir"
	"github.com/cottand/refine/ty"
	set "github.com/hashicorp/go-set/v3"
)

type localSet = set.Set[mir.Local]

func moveOut(s *localSet, op mir.Operand) {
	if op.Kind == mir.OperandMove && op.Place.IsLocal() {
		s.Remove(op.Place.Local)
	}
}

// initTransfer applies the effect of a block on the set of initialised locals
func initTransfer(data *mir.BasicBlockData, in *localSet) *localSet {
	out := in.Copy()
	for _, stmt := range data.Statements {
		if stmt.Kind != mir.StatementAssign {
			continue
		}
		switch stmt.Rvalue.Kind {
		case mir.RvalueUse, mir.RvalueUnaryOp:
			moveOut(out, stmt.Rvalue.Lhs)
		case mir.RvalueBinaryOp:
			moveOut(out, stmt.Rvalue.Lhs)
			moveOut(out, stmt.Rvalue.Rhs)
		}
		if stmt.Place.IsLocal() {
			out.Insert(stmt.Place.Local)
		}
	}
	term := data.Terminator
	switch term.Kind {
	case mir.TermCall:
		for _, arg := range term.Args {
			moveOut(out, arg)
		}
		if term.Destination.IsLocal() {
			out.Insert(term.Destination.Local)
		}
	case mir.TermSwitchInt, mir.TermAssert:
		moveOut(out, term.Discr)
	}
	return out
}

func intersect(a, b *localSet) *localSet {
	out := set.New[mir.Local](a.Size())
	for local := range a.Items() {
		if b.Contains(local) {
			out.Insert(local)
		}
	}
	return out
}

// definitelyInit computes, for every reachable block, the locals initialised on
// every path reaching its entry
func definitelyInit(body *mir.Body) map[mir.BasicBlock]*localSet {
	order := body.ReversePostorder()
	preds := body.Predecessors()
	reachable := set.From(order)

	all := set.New[mir.Local](body.LocalCount)
	for l := range body.LocalCount {
		all.Insert(mir.Local(l))
	}
	args := set.From(body.Args())

	in := make(map[mir.BasicBlock]*localSet, len(order))
	out := make(map[mir.BasicBlock]*localSet, len(order))
	for _, bb := range order {
		in[bb] = all.Copy()
		out[bb] = all.Copy()
	}
	for changed := true; changed; {
		changed = false
		for _, bb := range order {
			entering := all.Copy()
			if bb == mir.EntryBlock {
				entering = args.Copy()
			}
			for _, p := range preds[bb] {
				if reachable.Contains(p) {
					entering = intersect(entering, out[p])
				}
			}
			exiting := initTransfer(body.Block(bb), entering)
			if !exiting.Equal(out[bb]) || !entering.Equal(in[bb]) {
				changed = true
			}
			in[bb], out[bb] = entering, exiting
		}
	}
	return in
}

// templateBuilder builds the inferred type of a block: every refined leaf
// becomes a k-variable over what is in scope where it appears
type templateBuilder struct {
	st    *fnState
	reqs  []ty.GhostTy
	scope []ty.Var
}

func (b *templateBuilder) ty(shape Shape, fields []ty.Var) (*ty.Ty, error) {
	tcx := b.st.tcx
	switch shape.Kind {
	case ShapeBase:
		vars := make([]ty.Var, 0, 1+len(b.scope)+len(fields))
		vars = append(vars, ty.Nu)
		vars = append(vars, b.scope...)
		vars = append(vars, fields...)
		return tcx.MkRefined(shape.Base, ty.Infer(ty.Kvar{ID: b.st.freshKVid(), Vars: vars})), nil
	case ShapeTuple:
		tupleFields := make([]ty.TupleField, len(shape.Fields))
		var earlier []ty.Var
		for i, fieldShape := range shape.Fields {
			t, err := b.ty(fieldShape, earlier)
			if err != nil {
				return nil, err
			}
			tupleFields[i] = ty.TupleField{Field: ty.Field(i), Ty: t}
			if leafy(t) {
				earlier = append(earlier, ty.FieldV(ty.Field(i)))
			}
		}
		return tcx.MkTuple(tupleFields)
	case ShapeRef:
		pointee := b.st.freshGhost()
		t, err := b.ty(*shape.Pointee, nil)
		if err != nil {
			return nil, err
		}
		b.declare(pointee, t)
		return tcx.MkRef(shape.Borrow, ty.InferRegion(b.st.freshRegion()), pointee), nil
	}
	return nil, internalf("unknown shape %s", shape)
}

func (b *templateBuilder) declare(g ty.GhostVar, t *ty.Ty) {
	b.reqs = append(b.reqs, ty.GhostTy{Ghost: g, Ty: t})
	if leafy(t) {
		b.scope = append(b.scope, ty.GhostV(g))
	}
}

func leafy(t *ty.Ty) bool {
	switch t.Kind().(type) {
	case ty.Refined, ty.Tuple:
		return true
	}
	return false
}

// inferTemplate builds the type of a block nobody annotated
func (st *fnState) inferTemplate(init *localSet) (BBlockTy, error) {
	b := &templateBuilder{st: st}
	for _, req := range st.fn.Decl.Requires {
		if leafy(req.Ty) {
			b.scope = append(b.scope, ty.GhostV(req.Ghost))
		}
	}
	inputs := make(map[mir.Local]ty.GhostVar, len(st.fn.Locals))
	for i, shape := range st.fn.Locals {
		local := mir.Local(i)
		g := st.freshGhost()
		inputs[local] = g
		if !init.Contains(local) {
			b.declare(g, st.tcx.MkUninit(shape.Size()))
			continue
		}
		t, err := b.ty(shape, nil)
		if err != nil {
			return BBlockTy{}, err
		}
		b.declare(g, t)
	}
	return BBlockTy{Requires: b.reqs, Inputs: inputs}, nil
}
