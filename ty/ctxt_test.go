package ty

import (
	"github.com/cottand/refine/mir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
)

func gtZero(tcx *Ctxt) *Pred {
	return tcx.MkBinary(Op(Gt), tcx.MkVar(Nu), tcx.MkConst(mir.IntConst(0)))
}

func TestHashConsingIdempotence(t *testing.T) {
	tcx := NewCtxt()

	t.Run("predicates", func(t *testing.T) {
		assert.Same(t, gtZero(tcx), gtZero(tcx))
		assert.NotSame(t, gtZero(tcx), tcx.MkBinary(Op(Gte), tcx.MkVar(Nu), tcx.MkConst(mir.IntConst(0))))
		assert.Same(t, tcx.MkPath(PathOf(GhostV(1), 0, 1)), tcx.MkPath(PathOf(GhostV(1), 0, 1)))
		assert.NotSame(t, tcx.MkPath(PathOf(GhostV(1), 0, 1)), tcx.MkPath(PathOf(GhostV(1), 1, 0)))
	})

	t.Run("equality operators keep their base type", func(t *testing.T) {
		a := tcx.MkBinary(EqOp(Int), tcx.MkVar(Nu), tcx.MkVar(GhostV(0)))
		b := tcx.MkBinary(EqOp(Bool), tcx.MkVar(Nu), tcx.MkVar(GhostV(0)))
		assert.NotSame(t, a, b)
	})

	t.Run("types", func(t *testing.T) {
		a := tcx.MkRefined(Int, Known(gtZero(tcx)))
		b := tcx.MkRefined(Int, Known(gtZero(tcx)))
		assert.Same(t, a, b)
		assert.Equal(t, a.Hash(), b.Hash())
		assert.NotSame(t, a, tcx.MkRefined(Bool, Known(gtZero(tcx))))

		tup1, err := tcx.MkTuple([]TupleField{{Field: 0, Ty: a}, {Field: 1, Ty: tcx.Trivial(Bool)}})
		require.NoError(t, err)
		tup2, err := tcx.MkTuple([]TupleField{{Field: 0, Ty: b}, {Field: 1, Ty: tcx.Trivial(Bool)}})
		require.NoError(t, err)
		assert.Same(t, tup1, tup2)
	})

	t.Run("k-variables compare by id and argument list", func(t *testing.T) {
		k1 := tcx.MkRefined(Int, Infer(Kvar{ID: 3, Vars: []Var{Nu, GhostV(1)}}))
		k2 := tcx.MkRefined(Int, Infer(Kvar{ID: 3, Vars: []Var{Nu, GhostV(1)}}))
		k3 := tcx.MkRefined(Int, Infer(Kvar{ID: 3, Vars: []Var{Nu, GhostV(2)}}))
		assert.Same(t, k1, k2)
		assert.NotSame(t, k1, k3)
	})

	t.Run("regions compare as sets", func(t *testing.T) {
		r1 := tcx.MkRef(mir.Mut, ConcreteRegion(mir.PlaceOf(1), mir.PlaceOf(2)), 4)
		r2 := tcx.MkRef(mir.Mut, ConcreteRegion(mir.PlaceOf(2), mir.PlaceOf(1), mir.PlaceOf(2)), 4)
		assert.Same(t, r1, r2)
		assert.NotSame(t, r1, tcx.MkRef(mir.Shared, ConcreteRegion(mir.PlaceOf(1), mir.PlaceOf(2)), 4))
	})
}

func TestConcurrentInterning(t *testing.T) {
	tcx := NewCtxt()
	const workers = 16
	results := make([]*Ty, workers)
	wg := sync.WaitGroup{}
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range 100 {
				tcx.MkRefined(Int, Known(tcx.MkBinary(Op(Gt), tcx.MkVar(Nu), tcx.MkConst(mir.IntConst(int64(n))))))
			}
			results[i] = tcx.MkRefined(Int, Known(gtZero(tcx)))
		}()
	}
	wg.Wait()
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
	tys, _ := tcx.Stats()
	assert.Equal(t, 100, tys)
}

func TestTupleFieldAcyclicity(t *testing.T) {
	tcx := NewCtxt()
	refersTo := func(f Field) *Ty {
		return tcx.MkRefined(Int, Known(tcx.MkBinary(Op(Gt), tcx.MkVar(Nu), tcx.MkVar(FieldV(f)))))
	}

	_, err := tcx.MkTuple([]TupleField{{Field: 0, Ty: tcx.Trivial(Int)}, {Field: 1, Ty: refersTo(0)}})
	assert.NoError(t, err)

	_, err = tcx.MkTuple([]TupleField{{Field: 0, Ty: refersTo(0)}})
	assert.Error(t, err, "a field cannot refer to itself")

	_, err = tcx.MkTuple([]TupleField{{Field: 0, Ty: refersTo(1)}, {Field: 1, Ty: tcx.Trivial(Int)}})
	assert.Error(t, err, "a field cannot refer to a later field")

	kvarTy := tcx.MkRefined(Int, Infer(Kvar{ID: 0, Vars: []Var{Nu, FieldV(2)}}))
	_, err = tcx.MkTuple([]TupleField{{Field: 1, Ty: kvarTy}})
	assert.Error(t, err, "k-variable arguments follow the same rule")
}

func TestMapTyAtLeavesOriginal(t *testing.T) {
	tcx := NewCtxt()
	orig, err := tcx.MkTuple([]TupleField{{Field: 0, Ty: tcx.Trivial(Int)}, {Field: 1, Ty: tcx.Trivial(Bool)}})
	require.NoError(t, err)
	tuple := orig.Kind().(Tuple)

	updated, err := tcx.MkTuple(tuple.MapTyAt(0, func(*Ty) *Ty { return tcx.MkRefined(Int, Known(gtZero(tcx))) }))
	require.NoError(t, err)

	assert.NotSame(t, orig, updated)
	assert.Equal(t, "(@0: int, @1: bool)", orig.String())
	assert.Equal(t, "(@0: { int | (v > 0) }, @1: bool)", updated.String())
	assert.Equal(t, 9, updated.Size())
}

func TestSubst(t *testing.T) {
	tcx := NewCtxt()
	s := NewSubst()
	s.InsertGhost(0, 7)
	s.InsertRegion(0, ConcreteRegion(mir.PlaceOf(3)))

	refined := tcx.MkRefined(Int, Known(tcx.MkBinary(Op(Gt), tcx.MkVar(Nu), tcx.MkPath(PathOf(GhostV(0), 1)))))
	assert.Equal(t, "{ int | (v > g7.1) }", tcx.Apply(s, refined).String())

	kvar := tcx.MkRefined(Int, Infer(Kvar{ID: 2, Vars: []Var{Nu, GhostV(0), GhostV(1)}}))
	assert.Equal(t, "{ int | $k2[v, g7, g1] }", tcx.Apply(s, kvar).String())

	ref := tcx.MkRef(mir.Mut, AbstractRegion(0), 0)
	assert.Equal(t, "&{ _3 } mut g7", tcx.Apply(s, ref).String())

	untouched := tcx.MkRefined(Int, Known(gtZero(tcx)))
	assert.Same(t, untouched, tcx.Apply(s, untouched))
}

func TestRegionUnion(t *testing.T) {
	a := ConcreteRegion(mir.PlaceOf(2), mir.PlaceOf(1, mir.FieldElem(0)))
	b := ConcreteRegion(mir.PlaceOf(2), mir.PlaceOf(4))
	union := a.Union(b)
	assert.Len(t, union.Places(), 3)
	assert.True(t, union.Equal(b.Union(a)))
	assert.Equal(t, "{ _1.0, _2, _4 }", union.String())

	_, ok := union.Singleton()
	assert.False(t, ok)
	single, ok := ConcreteRegion(mir.PlaceOf(5)).Singleton()
	assert.True(t, ok)
	assert.Equal(t, mir.Local(5), single.Local)
}

func TestFnDeclValidate(t *testing.T) {
	tcx := NewCtxt()
	decl := &FnDecl{
		Requires: []GhostTy{{Ghost: 0, Ty: tcx.Trivial(Int)}, {Ghost: 1, Ty: tcx.MkRef(mir.Mut, AbstractRegion(0), 0)}},
		Inputs:   []GhostVar{1},
		Ensures:  []GhostTy{{Ghost: 2, Ty: tcx.Trivial(Int)}, {Ghost: 3, Ty: tcx.Trivial(Int)}},
		Outputs:  []FnOutput{{Arg: 0, Ghost: 3}},
		Output:   2,
	}
	assert.NoError(t, decl.Validate())
	assert.Equal(t, GhostVar(3), decl.MaxGhost())

	decl.Output = 9
	assert.Error(t, decl.Validate())
	decl.Output = 2

	decl.Ensures[0].Ty = tcx.MkRefined(Int, Infer(Kvar{ID: 0, Vars: []Var{Nu}}))
	assert.ErrorContains(t, decl.Validate(), "signatures cannot leave refinements to inference")
}
