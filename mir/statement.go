package mir

import "fmt"

type StatementKind uint8

const (
	StatementAssign StatementKind = iota
	StatementNop
)

type Statement struct {
	Kind   StatementKind
	Place  Place
	Rvalue Rvalue
}

func Assign(place Place, rvalue Rvalue) Statement {
	return Statement{Kind: StatementAssign, Place: place, Rvalue: rvalue}
}

var Nop = Statement{Kind: StatementNop}

func (s Statement) String() string {
	if s.Kind == StatementNop {
		return "nop"
	}
	return fmt.Sprintf("%s = %s", s.Place, s.Rvalue)
}
