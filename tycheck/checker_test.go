package tycheck

import (
	"github.com/cottand/refine/fixpoint"
	"github.com/cottand/refine/mir"
	"github.com/cottand/refine/ty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func stmts(t *testing.T, src ...string) []mir.Statement {
	t.Helper()
	out := make([]mir.Statement, len(src))
	for i, s := range src {
		stmt, err := mir.ParseStatement(s)
		require.NoError(t, err)
		out[i] = stmt
	}
	return out
}

// refined builds {base | v op n}
func refined(tcx *ty.Ctxt, base ty.BaseTy, op ty.BinOp, n int64) *ty.Ty {
	p := tcx.MkBinary(op, tcx.MkVar(ty.Nu), tcx.MkConst(mir.IntConst(n)))
	return tcx.MkRefined(base, ty.Known(p))
}

func intShapes(n int) []Shape {
	shapes := make([]Shape, n)
	for i := range shapes {
		shapes[i] = BaseShape(ty.Int)
	}
	return shapes
}

func obligations(t *testing.T, c fixpoint.Constraint) []string {
	t.Helper()
	conj, ok := c.(fixpoint.Conj)
	if !ok {
		return []string{fixpoint.EmitString(c)}
	}
	out := make([]string, len(conj.Constraints))
	for i, inner := range conj.Constraints {
		out[i] = fixpoint.EmitString(inner)
	}
	return out
}

func TestStraightLine(t *testing.T) {
	tcx := ty.NewCtxt()
	fn := &Func{
		Name: "inc",
		Decl: &ty.FnDecl{
			Requires: []ty.GhostTy{{Ghost: 0, Ty: refined(tcx, ty.Int, ty.Op(ty.Gte), 0)}},
			Inputs:   []ty.GhostVar{0},
			Ensures:  []ty.GhostTy{{Ghost: 1, Ty: refined(tcx, ty.Int, ty.Op(ty.Gte), 1)}},
			Output:   1,
		},
		Body: &mir.Body{
			ArgCount:   1,
			LocalCount: 2,
			Blocks: []mir.BasicBlockData{
				{Statements: stmts(t, "_0 = copy _1 + 1"), Terminator: mir.Return()},
			},
		},
		Locals: intShapes(2),
	}

	c, err := CheckFn(tcx, NewGlobEnv(nil), fn)
	require.NoError(t, err)
	assert.Equal(t,
		"(forall ((v0 int) (v0 >= 0)) (forall ((v1 int) (v1 = v0 + 1)) ((v1 >= 1))))",
		fixpoint.EmitString(c))
}

func TestBranchJoin(t *testing.T) {
	tcx := ty.NewCtxt()
	nonNeg := refined(tcx, ty.Int, ty.Op(ty.Gte), 0)
	fn := &Func{
		Name: "join",
		Decl: &ty.FnDecl{
			Requires: []ty.GhostTy{
				{Ghost: 0, Ty: tcx.Trivial(ty.Bool)},
				{Ghost: 1, Ty: refined(tcx, ty.Int, ty.Op(ty.Gt), 5)},
			},
			Inputs:  []ty.GhostVar{0, 1},
			Ensures: []ty.GhostTy{{Ghost: 2, Ty: nonNeg}},
			Output:  2,
		},
		Body: &mir.Body{
			ArgCount:   2,
			LocalCount: 3,
			Blocks: []mir.BasicBlockData{
				{Terminator: mir.SwitchInt(mir.Copy(mir.PlaceOf(1)), mir.SwitchTargets{
					Values:    []mir.Constant{mir.IntConst(0)},
					Targets:   []mir.BasicBlock{1},
					Otherwise: 2,
				})},
				{Statements: stmts(t, "_0 = copy _2"), Terminator: mir.Goto(3)},
				{Statements: stmts(t, "_0 = const 0"), Terminator: mir.Goto(3)},
				{Terminator: mir.Return()},
			},
		},
		Locals: []Shape{BaseShape(ty.Int), BaseShape(ty.Bool), BaseShape(ty.Int)},
		Blocks: map[mir.BasicBlock]BBlockTy{
			1: {
				Requires: []ty.GhostTy{{Ghost: 20, Ty: refined(tcx, ty.Int, ty.Op(ty.Gt), 5)}},
				Inputs:   map[mir.Local]ty.GhostVar{2: 20},
			},
			2: {Inputs: map[mir.Local]ty.GhostVar{}},
			3: {
				Requires: []ty.GhostTy{{Ghost: 10, Ty: nonNeg}},
				Inputs:   map[mir.Local]ty.GhostVar{0: 10},
			},
		},
	}

	c, err := CheckFn(tcx, NewGlobEnv(nil), fn)
	require.NoError(t, err)
	// bb0 passes _2 unchanged to bb1, so the only obligations are the two jumps into bb3,
	// walked in reverse postorder: bb2 first, then bb1
	assert.Equal(t, []string{
		"(forall ((v0 bool) (true)) (forall ((v1 int) (v1 > 5)) (forall ((v2 int) (v2 = 0)) ((v2 >= 0)))))",
		"(forall ((v0 bool) (true)) (forall ((v1 int) (v1 > 5)) (forall ((v2 int) (v2 > 5)) (forall ((v3 int) (v3 = v2)) ((v3 >= 0))))))",
	}, obligations(t, c))
}

func TestUnknownRefinement(t *testing.T) {
	tcx := ty.NewCtxt()
	pos := refined(tcx, ty.Int, ty.Op(ty.Gt), 0)
	fn := &Func{
		Name: "copy",
		Decl: &ty.FnDecl{
			Requires: []ty.GhostTy{{Ghost: 0, Ty: pos}},
			Inputs:   []ty.GhostVar{0},
			Ensures:  []ty.GhostTy{{Ghost: 1, Ty: pos}},
			Output:   1,
		},
		Body: &mir.Body{
			ArgCount:   1,
			LocalCount: 3,
			Blocks: []mir.BasicBlockData{
				{Statements: stmts(t, "_2 = copy _1"), Terminator: mir.Goto(1)},
				{Statements: stmts(t, "_0 = copy _2"), Terminator: mir.Return()},
			},
		},
		Locals: intShapes(3),
	}

	c, err := CheckFn(tcx, NewGlobEnv(nil), fn)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"(forall ((v0 int) (v0 > 0)) (forall ((v1 int) (v1 = v0)) (($k0 v0 v0))))",
		"(forall ((v0 int) (v0 > 0)) (forall ((v1 int) (v1 = v0)) (($k1 v1 v0 v0))))",
		"(forall ((v0 int) (v0 > 0)) (forall ((v1 int) ($k0 v1 v0)) (forall ((v2 int) ($k1 v2 v0 v1)) (forall ((v3 int) (v3 = v2)) ((v3 > 0))))))",
	}, obligations(t, c))

	kvars, err := fixpoint.Gather(c)
	require.NoError(t, err)
	assert.Equal(t, []fixpoint.KVar{
		{ID: 0, Sorts: []fixpoint.Sort{fixpoint.Int, fixpoint.Int}},
		{ID: 1, Sorts: []fixpoint.Sort{fixpoint.Int, fixpoint.Int, fixpoint.Int}},
	}, kvars)
}

func TestCallInstantiation(t *testing.T) {
	tcx := ty.NewCtxt()
	gtThree := refined(tcx, ty.Int, ty.Op(ty.Gt), 3)
	callee := &ty.FnDecl{
		Requires: []ty.GhostTy{{Ghost: 0, Ty: refined(tcx, ty.Int, ty.Op(ty.Gt), 0)}},
		Inputs:   []ty.GhostVar{0},
		Ensures: []ty.GhostTy{{Ghost: 1, Ty: tcx.MkRefined(ty.Int, ty.Known(
			tcx.MkBinary(ty.Op(ty.Gt), tcx.MkVar(ty.Nu), tcx.MkVar(ty.GhostV(0)))))}},
		Output: 1,
	}
	genv := NewGlobEnv(map[string]*ty.FnDecl{"grow": callee})

	target := mir.BasicBlock(1)
	fn := &Func{
		Name: "caller",
		Decl: &ty.FnDecl{
			Ensures: []ty.GhostTy{{Ghost: 0, Ty: gtThree}},
			Output:  0,
		},
		Body: &mir.Body{
			LocalCount: 1,
			Blocks: []mir.BasicBlockData{
				{Terminator: mir.Call("grow", []mir.Operand{mir.Const(mir.IntConst(3))}, mir.PlaceOf(0), &target)},
				{Terminator: mir.Return()},
			},
		},
		Locals: intShapes(1),
		Blocks: map[mir.BasicBlock]BBlockTy{
			1: {
				Requires: []ty.GhostTy{{Ghost: 10, Ty: gtThree}},
				Inputs:   map[mir.Local]ty.GhostVar{0: 10},
			},
		},
	}

	c, err := CheckFn(tcx, genv, fn)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"(forall ((v0 int) (v0 = 3)) ((v0 > 0)))",
		"(forall ((v0 int) (v0 = 3)) (forall ((v1 int) (v1 > v0)) ((v1 > 3))))",
	}, obligations(t, c))

	t.Run("undeclared callee", func(t *testing.T) {
		_, err := CheckFn(tcx, NewGlobEnv(nil), fn)
		assert.ErrorIs(t, err, ErrInternal)
	})
}

func TestStrongUpdateThroughReference(t *testing.T) {
	tcx := ty.NewCtxt()
	fn := &Func{
		Name: "poke",
		Decl: &ty.FnDecl{
			Ensures: []ty.GhostTy{{Ghost: 0, Ty: refined(tcx, ty.Int, ty.EqOp(ty.Int), 5)}},
			Output:  0,
		},
		Body: &mir.Body{
			LocalCount: 3,
			Blocks: []mir.BasicBlockData{{
				Statements: stmts(t,
					"_1 = const 1",
					"_2 = &mut _1",
					"*_2 = const 5",
					"_0 = copy _1",
				),
				Terminator: mir.Return(),
			}},
		},
		Locals: []Shape{BaseShape(ty.Int), BaseShape(ty.Int), RefShape(mir.Mut, BaseShape(ty.Int))},
	}

	c, err := CheckFn(tcx, NewGlobEnv(nil), fn)
	require.NoError(t, err)
	assert.Equal(t,
		"(forall ((v0 int) (v0 = 1)) (forall ((v1 int) (v1 = 5)) (forall ((v2 int) (v2 = v1)) ((v2 = 5)))))",
		fixpoint.EmitString(c))
}

func TestInternalErrors(t *testing.T) {
	tcx := ty.NewCtxt()
	decl := &ty.FnDecl{Ensures: []ty.GhostTy{{Ghost: 0, Ty: tcx.Trivial(ty.Int)}}, Output: 0}

	tests := []struct {
		name string
		fn   *Func
	}{
		{"read of uninitialised local", &Func{
			Decl:   decl,
			Body:   &mir.Body{LocalCount: 2, Blocks: []mir.BasicBlockData{{Statements: stmts(t, "_0 = copy _1"), Terminator: mir.Return()}}},
			Locals: intShapes(2),
		}},
		{"missing local shapes", &Func{
			Decl:   decl,
			Body:   &mir.Body{LocalCount: 2, Blocks: []mir.BasicBlockData{{Terminator: mir.Return()}}},
			Locals: intShapes(1),
		}},
		{"jump to a missing block", &Func{
			Decl:   decl,
			Body:   &mir.Body{LocalCount: 1, Blocks: []mir.BasicBlockData{{Terminator: mir.Goto(4)}}},
			Locals: intShapes(1),
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			test.fn.Name = test.name
			_, err := CheckFn(tcx, NewGlobEnv(nil), test.fn)
			assert.ErrorIs(t, err, ErrInternal)
		})
	}
}
