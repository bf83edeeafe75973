package fixpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
)

// Query is everything the solver needs to decide one function: the k-variable
// declarations, the qualifiers and the constraint itself
type Query struct {
	KVars      []KVar
	Qualifiers []Qualifier
	Constraint Constraint
}

// NewQuery simplifies c and gathers the k-variables it applies
func NewQuery(c Constraint, qualifiers []Qualifier) (*Query, error) {
	if c == nil {
		c = True
	}
	c = Simplify(c)
	kvars, err := Gather(c)
	if err != nil {
		return nil, err
	}
	return &Query{
		KVars:      kvars,
		Qualifiers: qualifiers,
		Constraint: c,
	}, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// WriteTo writes the query in solver syntax, one item per line
func (q *Query) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	p := &printer{w: cw, emit: true}
	for _, k := range q.KVars {
		p.printf("%s\n", k)
	}
	for _, qual := range q.Qualifiers {
		qual.emit(p)
		p.printf("\n")
	}
	p.printf("(constraint ")
	p.constraint(q.Constraint, Ctx{})
	p.printf(")\n")
	return cw.n, p.err
}

func (q *Query) String() string {
	sb := &strings.Builder{}
	_, _ = q.WriteTo(sb)
	return sb.String()
}

// Digest identifies the rendered query, so results can be cached across runs
func (q *Query) Digest() string {
	sum := sha256.Sum256([]byte(q.String()))
	return hex.EncodeToString(sum[:])
}
