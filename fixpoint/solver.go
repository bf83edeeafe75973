package fixpoint

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

type Status uint8

const (
	Safe Status = iota
	Unsafe
	Crash
)

func (s Status) String() string {
	switch s {
	case Safe:
		return "SAFE"
	case Unsafe:
		return "UNSAFE"
	default:
		return "ERROR"
	}
}

// Result is the solver's verdict on a Query. Detail carries the
// counterexample location on Unsafe and the failure on Crash.
type Result struct {
	Status Status
	Detail string
}

// Solver decides queries
type Solver interface {
	Solve(ctx context.Context, q *Query) (Result, error)
}

// ExecSolver runs an external solver binary on a file holding the query
type ExecSolver struct {
	Binary  string
	Args    []string
	Timeout time.Duration
}

var _ Solver = &ExecSolver{}

// Identity is the command line the solver runs, which a cached verdict depends on
func (s *ExecSolver) Identity() string {
	return strings.Join(append([]string{s.Binary}, s.Args...), "\x00")
}

const DefaultSolverTimeout = 30 * time.Second

func (s *ExecSolver) Solve(ctx context.Context, q *Query) (Result, error) {
	f, err := os.CreateTemp("", "refine-*.fq")
	if err != nil {
		return Result{}, fmt.Errorf("could not create query file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := q.WriteTo(f); err != nil {
		_ = f.Close()
		return Result{}, fmt.Errorf("could not write query file: %w", err)
	}
	if err := f.Close(); err != nil {
		return Result{}, fmt.Errorf("could not write query file: %w", err)
	}

	timeout := s.Timeout
	if timeout == 0 {
		timeout = DefaultSolverTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string{}, s.Args...), f.Name())
	cmd := exec.CommandContext(ctx, s.Binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("running solver", "binary", s.Binary, "file", f.Name(), "kvars", len(q.KVars))
	err = cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return Result{Status: Crash, Detail: fmt.Sprintf("solver timed out after %s", timeout)}, nil
	}
	result, ok := ParseResult(stdout.String())
	if ok {
		return result, nil
	}
	if err != nil {
		detail := err.Error()
		if stderr.Len() > 0 {
			detail += ": " + strings.TrimSpace(stderr.String())
		}
		return Result{Status: Crash, Detail: detail}, nil
	}
	return Result{Status: Crash, Detail: "unrecognised solver output: " + strings.TrimSpace(stdout.String())}, nil
}

// ParseResult reads the verdict from the solver's output: the last line
// starting with Safe or Unsafe wins
func ParseResult(output string) (Result, bool) {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		switch {
		case strings.HasPrefix(line, "Unsafe"):
			detail := strings.TrimSpace(strings.TrimPrefix(line, "Unsafe"))
			return Result{Status: Unsafe, Detail: strings.TrimLeft(detail, ": ")}, true
		case strings.HasPrefix(line, "Safe"):
			return Result{Status: Safe}, true
		}
	}
	return Result{}, false
}
