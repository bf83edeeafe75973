package refine

import (
	"context"
	"github.com/cottand/refine/fixpoint"
	"github.com/cottand/refine/ty"
	"github.com/cottand/refine/tycheck"
	"golang.org/x/sync/errgroup"
	"log/slog"
	"time"
)

// Result is the outcome of checking one function. Err is set when the function could
// not be turned into a query, or the solver could not be run on it.
type Result struct {
	Func    string
	Query   *fixpoint.Query
	Verdict *fixpoint.Result
	Err     error
	Elapsed time.Duration
}

// Status summarises the result: ERROR on failure, the solver's verdict otherwise.
// It is empty when the query was not solved.
func (r Result) Status() string {
	switch {
	case r.Err != nil:
		return fixpoint.Crash.String()
	case r.Verdict != nil:
		return r.Verdict.Status.String()
	}
	return ""
}

// Safe is true when the solver proved the function correct
func (r Result) Safe() bool {
	return r.Err == nil && r.Verdict != nil && r.Verdict.Status == fixpoint.Safe
}

type Options struct {
	// Workers bounds how many functions are checked at once. Zero means one.
	Workers int
	// Solver decides the queries. Nil only builds them.
	Solver fixpoint.Solver
	// Qualifiers are added to the defaults and to the program's own
	Qualifiers []fixpoint.Qualifier
}

// Check checks every function of prog, concurrently. Results are in declaration order.
// A failure in one function does not stop the others; the returned error is only set
// when ctx is cancelled.
func Check(ctx context.Context, tcx *ty.Ctxt, prog *Program, opts Options) ([]Result, error) {
	quals := fixpoint.DefaultQualifiers()
	quals = append(quals, opts.Qualifiers...)
	quals = append(quals, prog.Qualifiers...)

	results := make([]Result, len(prog.Funcs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Workers, 1))
	for i, fn := range prog.Funcs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = checkOne(gctx, tcx, prog.Genv, fn, quals, opts.Solver)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	tys, preds := tcx.Stats()
	logger.Debug("checked program", "name", prog.Name, "functions", len(results), slog.Int("types", tys), slog.Int("preds", preds))
	return results, nil
}

func checkOne(ctx context.Context, tcx *ty.Ctxt, genv *tycheck.GlobEnv, fn *tycheck.Func, quals []fixpoint.Qualifier, solver fixpoint.Solver) (res Result) {
	start := time.Now()
	res = Result{Func: fn.Name}
	defer func() { res.Elapsed = time.Since(start) }()

	c, err := tycheck.CheckFn(tcx, genv, fn)
	if err != nil {
		res.Err = err
		logger.Error("could not check function", "fn", fn.Name, "err", err)
		return res
	}
	if res.Query, err = fixpoint.NewQuery(c, quals); err != nil {
		res.Err = err
		return res
	}
	logger.Debug("built query", "fn", fn.Name, "kvars", len(res.Query.KVars), "digest", res.Query.Digest())
	if solver == nil {
		return res
	}
	verdict, err := solver.Solve(ctx, res.Query)
	if err != nil {
		res.Err = err
		return res
	}
	res.Verdict = &verdict
	logger.Info("solved", "fn", fn.Name, "status", verdict.Status.String())
	return res
}
