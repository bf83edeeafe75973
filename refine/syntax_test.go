package refine

import (
	"github.com/cottand/refine/mir"
	"github.com/cottand/refine/ty"
	"github.com/cottand/refine/tycheck"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"testing"
)

func yamlNode(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))
	require.Len(t, doc.Content, 1)
	return doc.Content[0]
}

// testNames has g0: int and g1: (int, bool) in scope, with v an int
func testNames(tcx *ty.Ctxt) *names {
	n := newNames()
	base := ty.Int
	n.nu = &base
	pair, _ := tcx.MkTuple([]ty.TupleField{
		{Field: 0, Ty: tcx.Trivial(ty.Int)},
		{Field: 1, Ty: tcx.Trivial(ty.Bool)},
	})
	n.declare(0, tcx.Trivial(ty.Int))
	n.declare(1, pair)
	return n
}

func TestParsePredicate(t *testing.T) {
	tcx := ty.NewCtxt()
	nu := tcx.MkVar(ty.Nu)
	g0 := tcx.MkVar(ty.GhostV(0))
	lit := func(n int64) *ty.Pred { return tcx.MkConst(mir.IntConst(n)) }

	tests := []struct {
		src  string
		want *ty.Pred
	}{
		{"v >= 0", tcx.MkBinary(ty.Op(ty.Gte), nu, lit(0))},
		{"v == g0 + 1", tcx.MkBinary(ty.EqOp(ty.Int), nu, tcx.MkBinary(ty.Op(ty.Add), g0, lit(1)))},
		{"(v > -3)", tcx.MkBinary(ty.Op(ty.Gt), nu, lit(-3))},
		{"-v < 0x10", tcx.MkBinary(ty.Op(ty.Lt), tcx.MkUnary(ty.Neg, nu), lit(16))},
		{"v > 0 && !g1[1]", tcx.MkBinary(ty.Op(ty.And),
			tcx.MkBinary(ty.Op(ty.Gt), nu, lit(0)),
			tcx.MkUnary(ty.Not, tcx.MkPath(ty.PathOf(ty.GhostV(1), 1))))},
		{"g1[1] == (v % 2 != 1)", tcx.MkBinary(ty.EqOp(ty.Bool),
			tcx.MkPath(ty.PathOf(ty.GhostV(1), 1)),
			tcx.MkBinary(ty.NeqOp(ty.Int), tcx.MkBinary(ty.Op(ty.Rem), nu, lit(2)), lit(1)))},
		{"true || false", tcx.MkBinary(ty.Op(ty.Or), tcx.True(), tcx.False())},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			pp := &predParser{tcx: tcx, names: testNames(tcx)}
			p, err := pp.parse(tt.src)
			require.NoError(t, err)
			assert.Same(t, tt.want, p, "got %s", p)
		})
	}
}

func TestParsePredicateErrors(t *testing.T) {
	tcx := ty.NewCtxt()
	tests := []struct {
		src, want string
	}{
		{"v >", "predicate"},
		{"x > 0", "unknown variable x"},
		{"g7 > 0", "before it is declared"},
		{"f0 > 0", "does not precede"},
		{"g1[2] > 0", "does not name a tuple field"},
		{"g1 > 0", "not a refined value"},
		{"v[0] > 0", "projects out of a base value"},
		{"g1[v] > 0", "integer literals"},
		{"v > 1.5", "unsupported literal"},
		{"v << 2", "unsupported operator"},
		{"len(v) > 0", "unsupported expression"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			pp := &predParser{tcx: tcx, names: testNames(tcx)}
			_, err := pp.parse(tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseTypes(t *testing.T) {
	tcx := ty.NewCtxt()

	t.Run("dependent tuple", func(t *testing.T) {
		tp := &typeParser{tcx: tcx}
		typ, err := tp.ty(yamlNode(t, `{tuple: [{int: "v > 0"}, {int: "v > f0"}]}`), newNames())
		require.NoError(t, err)
		tuple, ok := typ.Kind().(ty.Tuple)
		require.True(t, ok)
		assert.Equal(t, 2, tuple.Len())
		assert.Equal(t, []ty.Field{0}, ty.FieldsReferenced(tuple.TyAt(1)))
	})

	t.Run("k-variables see earlier names", func(t *testing.T) {
		tp := &typeParser{tcx: tcx}
		n := testNames(tcx)
		n.declare(2, tcx.MkRef(mir.Mut, ty.ConcreteRegion(mir.PlaceOf(1)), 0))
		typ, err := tp.ty(yamlNode(t, `{tuple: [{int: "?"}, {bool: "?"}]}`), n)
		require.NoError(t, err)
		tuple := typ.Kind().(ty.Tuple)

		first := tuple.TyAt(0).Kind().(ty.Refined).Refine.Kvar()
		second := tuple.TyAt(1).Kind().(ty.Refined).Refine.Kvar()
		require.NotNil(t, first)
		require.NotNil(t, second)
		// the reference g2 is not something a k-variable can depend on
		assert.Equal(t, []ty.Var{ty.Nu, ty.GhostV(0), ty.GhostV(1)}, first.Vars)
		assert.Equal(t, []ty.Var{ty.Nu, ty.GhostV(0), ty.GhostV(1), ty.FieldV(0)}, second.Vars)
		assert.Equal(t, ty.KVid(0), first.ID)
		assert.Equal(t, ty.KVid(1), second.ID)
	})

	t.Run("references and uninit", func(t *testing.T) {
		tp := &typeParser{tcx: tcx}
		typ, err := tp.ty(yamlNode(t, `{ref: mut, region: "'1", ghost: 3}`), newNames())
		require.NoError(t, err)
		assert.Same(t, tcx.MkRef(mir.Mut, ty.AbstractRegion(1), 3), typ)

		typ, err = tp.ty(yamlNode(t, `{uninit: 8}`), newNames())
		require.NoError(t, err)
		assert.Equal(t, 8, typ.Size())

		_, err = tp.ty(yamlNode(t, `{ref: mut, region: "'1"}`), newNames())
		assert.ErrorContains(t, err, "without a ghost")
		_, err = tp.ty(yamlNode(t, `{ref: unique, region: "'1", ghost: 3}`), newNames())
		assert.ErrorContains(t, err, "unknown borrow kind")
		_, err = tp.ty(yamlNode(t, `string`), newNames())
		assert.ErrorContains(t, err, "unknown type")
	})
}

func TestParseShape(t *testing.T) {
	s, err := shape(yamlNode(t, `{ref: shared, to: {tuple: [int, bool]}}`))
	require.NoError(t, err)
	assert.Equal(t, tycheck.ShapeRef, s.Kind)
	assert.Equal(t, mir.Shared, s.Borrow)
	assert.Equal(t, 8, s.Size())
	assert.Equal(t, 9, s.Pointee.Size())

	s, err = shape(yamlNode(t, `{ref: mut, to: int}`))
	require.NoError(t, err)
	assert.Equal(t, tycheck.RefShape(mir.Mut, tycheck.BaseShape(ty.Int)), s)

	_, err = shape(yamlNode(t, `{ref: mut}`))
	assert.ErrorContains(t, err, "{ref: KIND, to: SHAPE}")
	_, err = shape(yamlNode(t, `{uninit: 3}`))
	assert.Error(t, err)
	_, err = shape(yamlNode(t, `{int: "v > 0"}`))
	assert.Error(t, err)
}

func TestParseRegion(t *testing.T) {
	r, err := ParseRegion("'2")
	require.NoError(t, err)
	assert.True(t, r.Equal(ty.AbstractRegion(2)))

	r, err = ParseRegion("$r4")
	require.NoError(t, err)
	assert.True(t, r.Equal(ty.InferRegion(4)))

	r, err = ParseRegion("{ _3, _1 }")
	require.NoError(t, err)
	assert.True(t, r.Equal(ty.ConcreteRegion(mir.PlaceOf(1), mir.PlaceOf(3))))

	r, err = ParseRegion("")
	require.NoError(t, err)
	assert.Empty(t, r.Places())

	_, err = ParseRegion("_1, ???")
	assert.Error(t, err)
}
