package mir

import (
	"fmt"
	"strconv"
	"strings"
)

// The textual syntax mirrors what String prints, so that bodies can be written by hand:
//
//	_2 = copy _1 + 1
//	(*_3).0 = move _2
//	_4 = &mut _1
//	_5 = !_4

var binOpsBySymbol = func() map[string]BinOp {
	m := make(map[string]BinOp, len(binOpSymbols))
	for op, sym := range binOpSymbols {
		m[sym] = op
	}
	m["&&"] = BitAnd
	m["||"] = BitOr
	return m
}()

func ParsePlace(s string) (Place, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return Place{}, fmt.Errorf("empty place")
	case strings.HasPrefix(s, "*"):
		inner, err := ParsePlace(s[1:])
		if err != nil {
			return Place{}, err
		}
		return inner.Project(DerefElem), nil
	case strings.HasPrefix(s, "("):
		closing := matchingParen(s)
		if closing < 0 {
			return Place{}, fmt.Errorf("unbalanced parentheses in place %q", s)
		}
		inner, err := ParsePlace(s[1:closing])
		if err != nil {
			return Place{}, err
		}
		return parseFields(inner, s[closing+1:])
	}
	head, rest, _ := strings.Cut(s, ".")
	if !strings.HasPrefix(head, "_") {
		return Place{}, fmt.Errorf("place %q must start with a local like _1", s)
	}
	n, err := strconv.ParseUint(head[1:], 10, 32)
	if err != nil {
		return Place{}, fmt.Errorf("bad local in place %q: %w", s, err)
	}
	if rest == "" {
		return PlaceOf(Local(n)), nil
	}
	return parseFields(PlaceOf(Local(n)), "."+rest)
}

func parseFields(base Place, s string) (Place, error) {
	if s == "" {
		return base, nil
	}
	if !strings.HasPrefix(s, ".") {
		return Place{}, fmt.Errorf("unexpected %q after place %s", s, base)
	}
	for _, f := range strings.Split(s[1:], ".") {
		n, err := strconv.Atoi(f)
		if err != nil {
			return Place{}, fmt.Errorf("bad field projection %q: %w", f, err)
		}
		base = base.Project(FieldElem(n))
	}
	return base, nil
}

func matchingParen(s string) int {
	depth := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func ParseConstant(s string) (Constant, bool) {
	s = strings.TrimSpace(s)
	switch s {
	case "true":
		return BoolConst(true), true
	case "false":
		return BoolConst(false), true
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Constant{}, false
	}
	return IntConst(n), true
}

// ParseOperand accepts `copy P`, `move P`, `const C`, a bare constant, or a bare place
// (which is read as a copy)
func ParseOperand(s string) (Operand, error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "const "); ok {
		c, ok := ParseConstant(rest)
		if !ok {
			return Operand{}, fmt.Errorf("bad constant %q", rest)
		}
		return Const(c), nil
	}
	if c, ok := ParseConstant(s); ok {
		return Const(c), nil
	}
	kind := OperandCopy
	if rest, ok := strings.CutPrefix(s, "move "); ok {
		kind, s = OperandMove, rest
	} else if rest, ok := strings.CutPrefix(s, "copy "); ok {
		s = rest
	}
	p, err := ParsePlace(s)
	if err != nil {
		return Operand{}, err
	}
	return Operand{Kind: kind, Place: p}, nil
}

func ParseRvalue(s string) (Rvalue, error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "&"); ok {
		kind := Shared
		if r, ok := strings.CutPrefix(rest, "mut "); ok {
			kind, rest = Mut, r
		}
		p, err := ParsePlace(rest)
		if err != nil {
			return Rvalue{}, err
		}
		return Ref(kind, p), nil
	}

	fields := strings.Fields(s)
	for i := 1; i < len(fields)-1; i++ {
		op, ok := binOpsBySymbol[fields[i]]
		if !ok {
			continue
		}
		lhs, err := ParseOperand(strings.Join(fields[:i], " "))
		if err != nil {
			return Rvalue{}, err
		}
		rhs, err := ParseOperand(strings.Join(fields[i+1:], " "))
		if err != nil {
			return Rvalue{}, err
		}
		return BinaryOp(op, lhs, rhs), nil
	}

	if _, isConst := ParseConstant(s); !isConst {
		for prefix, op := range map[string]UnOp{"!": Not, "-": Neg} {
			if rest, ok := strings.CutPrefix(s, prefix); ok {
				operand, err := ParseOperand(rest)
				if err != nil {
					return Rvalue{}, err
				}
				return UnaryOp(op, operand), nil
			}
		}
	}
	operand, err := ParseOperand(s)
	if err != nil {
		return Rvalue{}, err
	}
	return Use(operand), nil
}

func ParseStatement(s string) (Statement, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), ";")
	if s == "nop" {
		return Nop, nil
	}
	lhs, rhs, ok := strings.Cut(s, " = ")
	if !ok {
		return Statement{}, fmt.Errorf("statement %q is not an assignment", s)
	}
	place, err := ParsePlace(lhs)
	if err != nil {
		return Statement{}, fmt.Errorf("statement %q: %w", s, err)
	}
	rvalue, err := ParseRvalue(rhs)
	if err != nil {
		return Statement{}, fmt.Errorf("statement %q: %w", s, err)
	}
	return Assign(place, rvalue), nil
}
