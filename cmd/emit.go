package cmd

import (
	"context"
	"fmt"
	"github.com/cottand/refine/refine"
	"github.com/spf13/cobra"
	"io"
	"os"
	"path/filepath"
)

var EmitCmd = &cobra.Command{
	Use:          "emit file.yaml",
	Short:        "Print the solver query of every function of a program",
	RunE:         runEmit,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
}

var (
	emitFlags   *commonFlags
	emitOutPath *string
)

func init() {
	emitFlags = addCommonFlags(EmitCmd.Flags())
	emitOutPath = EmitCmd.Flags().StringP("out", "o", "", "write one FUNCTION.fq file per function into this directory instead of printing")
}

func runEmit(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd, args[0], emitFlags)
	if err != nil {
		return err
	}
	if *emitOutPath != "" {
		err = os.MkdirAll(*emitOutPath, os.ModePerm)
		if err != nil {
			return fmt.Errorf("could not create output directory: %w", err)
		}
	}
	out := cmd.OutOrStdout()
	run := func(ctx context.Context) error {
		return s.emit(ctx, out, *emitOutPath)
	}
	if *emitFlags.watch {
		return watch(cmd.Context(), s, out, run)
	}
	return run(cmd.Context())
}

func (s *session) emit(ctx context.Context, out io.Writer, outPath string) error {
	tcx, prog, err := s.load()
	if err != nil {
		return err
	}
	results, err := refine.Check(ctx, tcx, prog, refine.Options{
		Workers:    s.cfg.Workers,
		Qualifiers: s.quals,
	})
	if err != nil {
		return fmt.Errorf("emit interrupted: %w", err)
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			_, _ = fmt.Fprintf(out, "// %s: %s\n", res.Func, res.Err)
			continue
		}
		if outPath != "" {
			if err := writeQuery(filepath.Join(outPath, res.Func+".fq"), res); err != nil {
				return fmt.Errorf("could not write query of %s: %w", res.Func, err)
			}
			continue
		}
		_, _ = fmt.Fprintf(out, "// %s\n", res.Func)
		if _, err := res.Query.WriteTo(out); err != nil {
			return fmt.Errorf("could not print query of %s: %w", res.Func, err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d functions could not be turned into queries", failed, len(results))
	}
	return nil
}

func writeQuery(at string, res refine.Result) error {
	f, err := os.Create(filepath.Clean(at))
	if err != nil {
		return fmt.Errorf("could not create file: %w", err)
	}
	defer f.Close()
	if _, err := res.Query.WriteTo(f); err != nil {
		return fmt.Errorf("could not write to file: %w", err)
	}
	return nil
}
