package fixpoint

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestQueryFormat(t *testing.T) {
	c := Conj{Constraints: []Constraint{
		True,
		ForAll{Sort: Int, Premise: expr(bin(Gte, BoundVar(0), lit(0))), Conclusion: Atom{Pred: KVarApp{ID: 0, Args: []int{0}}}},
	}}
	q, err := NewQuery(c, []Qualifier{DefaultQualifiers()[0], DefaultQualifiers()[6]})
	require.NoError(t, err)

	assert.Equal(t, ""+
		"(declare $k0 ((int)))\n"+
		"(qualif Pos ((v0 int)) (v0 > 0))\n"+
		"(qualif Ge ((v0 int) (v1 int)) (v0 >= v1))\n"+
		"(constraint (forall ((v0 int) (v0 >= 0)) (($k0 v0))))\n",
		q.String())
}

func TestQueryOfNothing(t *testing.T) {
	q, err := NewQuery(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "(constraint ((true)))\n", q.String())
	assert.Len(t, q.Digest(), 64)
}

func TestDefaultQualifiers(t *testing.T) {
	names := make([]string, 0)
	for _, q := range DefaultQualifiers() {
		names = append(names, q.Name)
	}
	assert.Equal(t, []string{"Pos", "NonNeg", "Eq", "Lt", "Le", "Gt", "Ge", "True"}, names)
	assert.Equal(t, "(qualif True ((v0 bool)) (v0))", DefaultQualifiers()[7].String())
}

func TestParseResult(t *testing.T) {
	tests := []struct {
		output string
		want   Result
		ok     bool
	}{
		{"Liquid-Fixpoint\nSafe\n", Result{Status: Safe}, true},
		{"working...\nUnsafe: [3]\n", Result{Status: Unsafe, Detail: "[3]"}, true},
		{"Unsafe", Result{Status: Unsafe}, true},
		{"segfault", Result{}, false},
	}
	for _, test := range tests {
		t.Run(test.output, func(t *testing.T) {
			got, ok := ParseResult(test.output)
			assert.Equal(t, test.ok, ok)
			assert.Equal(t, test.want, got)
		})
	}
}

type countingSolver struct {
	calls  int
	result Result
}

func (s *countingSolver) Solve(context.Context, *Query) (Result, error) {
	s.calls++
	return s.result, nil
}

func TestCachingSolver(t *testing.T) {
	cache, err := OpenCache(":memory:")
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	q, err := NewQuery(ForAll{Sort: Int, Premise: expr(BoundVar(0)), Conclusion: False}, nil)
	require.NoError(t, err)

	inner := &countingSolver{result: Result{Status: Unsafe, Detail: "[0]"}}
	s := &CachingSolver{Solver: inner, Cache: cache}
	for range 3 {
		r, err := s.Solve(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, Result{Status: Unsafe, Detail: "[0]"}, r)
	}
	assert.Equal(t, 1, inner.calls)

	t.Run("crashes are not cached", func(t *testing.T) {
		other, err := NewQuery(False, nil)
		require.NoError(t, err)
		crashing := &countingSolver{result: Result{Status: Crash, Detail: "boom"}}
		s := &CachingSolver{Solver: crashing, Cache: cache}
		_, _ = s.Solve(ctx, other)
		_, _ = s.Solve(ctx, other)
		assert.Equal(t, 2, crashing.calls)
	})

	t.Run("keyed by solver identity", func(t *testing.T) {
		first := &identifiedSolver{countingSolver: countingSolver{result: Result{Status: Safe}}, id: "fixpoint\x00--eliminate=some"}
		second := &identifiedSolver{countingSolver: countingSolver{result: Result{Status: Unsafe}}, id: "fixpoint"}
		for _, inner := range []*identifiedSolver{first, second, first, second} {
			r, err := (&CachingSolver{Solver: inner, Cache: cache}).Solve(ctx, q)
			require.NoError(t, err)
			assert.Equal(t, inner.result, r)
		}
		assert.Equal(t, 1, first.calls)
		assert.Equal(t, 1, second.calls)
	})
}

type identifiedSolver struct {
	countingSolver
	id string
}

func (s *identifiedSolver) Identity() string { return s.id }

func TestExecSolverIdentity(t *testing.T) {
	a := &ExecSolver{Binary: "fixpoint", Args: []string{"--eliminate=some"}}
	b := &ExecSolver{Binary: "fixpoint"}
	c := &ExecSolver{Binary: "fixpoint", Args: []string{"--eliminate=some"}, Timeout: time.Second}
	assert.NotEqual(t, a.Identity(), b.Identity())
	assert.Equal(t, a.Identity(), c.Identity())
}
