package tycheck

import "github.com/pkg/errors"

// ErrInternal marks a broken invariant: malformed input IR, a missing block type,
// mismatched shapes. Programs that fail to type-check never produce it; they produce
// constraints the solver cannot discharge.
var ErrInternal = errors.New("internal error")

func internalf(format string, args ...any) error {
	return errors.Wrapf(ErrInternal, format, args...)
}
