package fixpoint

import "github.com/cottand/refine/internal/log"

var logger = log.DefaultLogger.With("section", "fixpoint")
