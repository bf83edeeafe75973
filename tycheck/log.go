package tycheck

import (
	"github.com/cottand/refine/fixpoint"
	"github.com/cottand/refine/internal/log"
	"log/slog"
)

var logger = log.DefaultLogger.With("section", "tycheck")

// lazyConstraint renders a constraint only if the record is actually logged
type lazyConstraint struct{ c fixpoint.Constraint }

func (l lazyConstraint) LogValue() slog.Value {
	if l.c == nil {
		return slog.StringValue("<nil>")
	}
	return slog.StringValue(fixpoint.String(l.c))
}
