package cmd

import (
	"context"
	"fmt"
	"github.com/cottand/refine/fixpoint"
	"github.com/cottand/refine/refine"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"io"
	"os"
	"time"
)

var CheckCmd = &cobra.Command{
	Use:          "check file.yaml",
	Short:        "Verify every function of a program",
	RunE:         runCheck,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
}

var (
	checkFlags   *commonFlags
	solverBinary *string
	solverTime   *time.Duration
	cachePath    *string
	noSolve      *bool
)

func init() {
	checkFlags = addCommonFlags(CheckCmd.Flags())
	solverBinary = CheckCmd.Flags().String("solver", "", "solver binary (default: from config, or "+refine.DefaultSolver+")")
	solverTime = CheckCmd.Flags().Duration("timeout", 0, "time limit for each solver run")
	cachePath = CheckCmd.Flags().String("cache", "", "sqlite file caching solver results")
	noSolve = CheckCmd.Flags().Bool("no-solve", false, "only build the queries")
}

func runCheck(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, args[0], checkFlags)
	if err != nil {
		return err
	}
	if *solverBinary != "" {
		s.cfg.Solver = *solverBinary
	}
	if *solverTime != 0 {
		s.cfg.Timeout = *solverTime
	}
	if *cachePath != "" {
		s.cfg.Cache = *cachePath
	}

	var solver fixpoint.Solver
	if !*noSolve {
		var closeSolver func() error
		solver, closeSolver, err = s.cfg.NewSolver()
		if err != nil {
			return err
		}
		defer func() {
			if err := closeSolver(); err != nil {
				s.logger.Warn("could not close solver cache", "err", err)
			}
		}()
	}

	out := cmd.OutOrStdout()
	run := func(ctx context.Context) error {
		return s.check(ctx, out, solver)
	}
	if *checkFlags.watch {
		return watch(cmd.Context(), s, out, run)
	}
	return run(cmd.Context())
}

func (s *session) check(ctx context.Context, out io.Writer, solver fixpoint.Solver) error {
	tcx, prog, err := s.load()
	if err != nil {
		return err
	}
	results, err := refine.Check(ctx, tcx, prog, refine.Options{
		Workers:    s.cfg.Workers,
		Solver:     solver,
		Qualifiers: s.quals,
	})
	if err != nil {
		return fmt.Errorf("check interrupted: %w", err)
	}

	failed := 0
	for _, res := range results {
		printResult(out, res)
		if res.Err != nil || solver != nil && !res.Safe() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d functions could not be verified", failed, len(results))
	}
	return nil
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
)

func colored(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func printResult(w io.Writer, res refine.Result) {
	status := res.Status()
	if status == "" {
		status = "BUILT"
	}
	color := colorRed
	switch {
	case res.Safe():
		color = colorGreen
	case res.Err == nil && res.Verdict == nil:
		color = colorYellow
	}
	if colored(w) {
		status = color + status + colorReset
	}
	line := fmt.Sprintf("%s: %s (%s)", res.Func, status, res.Elapsed.Round(time.Millisecond))
	switch {
	case res.Err != nil:
		line += "\n    " + res.Err.Error()
	case res.Verdict != nil && res.Verdict.Detail != "":
		line += "\n    " + res.Verdict.Detail
	}
	_, _ = fmt.Fprintln(w, line)
}
