package cmd

import (
	"context"
	"fmt"
	"github.com/fsnotify/fsnotify"
	"io"
	"path/filepath"
	"time"
)

// settle is how long to wait for a burst of writes to end before running again
const settle = 100 * time.Millisecond

// watch runs run once, then again every time the target changes, until ctx is done.
// Failed runs are reported and watching goes on.
func watch(ctx context.Context, s *session, out io.Writer, run func(context.Context) error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("could not start watching: %w", err)
	}
	defer w.Close()
	// editors often replace files, so watch the directory rather than the file
	if err := w.Add(filepath.Dir(s.target)); err != nil {
		return fmt.Errorf("could not watch %s: %w", s.target, err)
	}

	runOnce := func() {
		if err := run(ctx); err != nil {
			_, _ = fmt.Fprintln(out, err)
		}
		_, _ = fmt.Fprintf(out, "watching %s for changes\n", s.target)
	}
	runOnce()

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != s.target || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			s.logger.Debug("program changed", "op", ev.Op.String())
			pending = time.After(settle)
		case <-pending:
			pending = nil
			runOnce()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watch error", "err", err)
		}
	}
}
