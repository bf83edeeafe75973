package mir

import (
	"fmt"
	"strings"
)

// BasicBlock identifies a block in a Body
type BasicBlock uint32

func (bb BasicBlock) String() string {
	return fmt.Sprintf("bb%d", uint32(bb))
}

type TerminatorKind uint8

const (
	TermGoto TerminatorKind = iota
	TermSwitchInt
	TermReturn
	TermCall
	TermAssert
	TermUnreachable
)

// SwitchTargets maps the values of a switch discriminant to a target.
// Values without an entry jump to Otherwise.
type SwitchTargets struct {
	Values    []Constant
	Targets   []BasicBlock
	Otherwise BasicBlock
}

func (t SwitchTargets) All() []BasicBlock {
	return append(append([]BasicBlock(nil), t.Targets...), t.Otherwise)
}

type Terminator struct {
	Kind TerminatorKind

	// Target is the successor of Goto, Assert and Call.
	// A Call without a target diverges.
	Target    BasicBlock
	HasTarget bool

	// Discr is the switch discriminant, or the Assert condition
	Discr    Operand
	Switch   SwitchTargets
	Expected bool

	Func        string
	Args        []Operand
	Destination Place
}

func Goto(target BasicBlock) Terminator {
	return Terminator{Kind: TermGoto, Target: target, HasTarget: true}
}

func SwitchInt(discr Operand, targets SwitchTargets) Terminator {
	return Terminator{Kind: TermSwitchInt, Discr: discr, Switch: targets}
}

func Return() Terminator      { return Terminator{Kind: TermReturn} }
func Unreachable() Terminator { return Terminator{Kind: TermUnreachable} }

func Assert(cond Operand, expected bool, target BasicBlock) Terminator {
	return Terminator{Kind: TermAssert, Discr: cond, Expected: expected, Target: target, HasTarget: true}
}

func Call(fn string, args []Operand, dest Place, target *BasicBlock) Terminator {
	t := Terminator{Kind: TermCall, Func: fn, Args: args, Destination: dest}
	if target != nil {
		t.Target, t.HasTarget = *target, true
	}
	return t
}

// Successors lists the blocks control may flow to after this terminator
func (t Terminator) Successors() []BasicBlock {
	switch t.Kind {
	case TermGoto, TermAssert, TermCall:
		if t.HasTarget {
			return []BasicBlock{t.Target}
		}
		return nil
	case TermSwitchInt:
		return t.Switch.All()
	default:
		return nil
	}
}

func (t Terminator) String() string {
	switch t.Kind {
	case TermGoto:
		return fmt.Sprintf("goto -> %s", t.Target)
	case TermSwitchInt:
		arms := make([]string, 0, len(t.Switch.Values)+1)
		for i, v := range t.Switch.Values {
			arms = append(arms, fmt.Sprintf("%s: %s", v, t.Switch.Targets[i]))
		}
		arms = append(arms, fmt.Sprintf("otherwise: %s", t.Switch.Otherwise))
		return fmt.Sprintf("switchInt(%s) -> [%s]", t.Discr, strings.Join(arms, ", "))
	case TermReturn:
		return "return"
	case TermUnreachable:
		return "unreachable"
	case TermAssert:
		return fmt.Sprintf("assert(%s, %v) -> %s", t.Discr, t.Expected, t.Target)
	default:
		args := make([]string, len(t.Args))
		for i, a := range t.Args {
			args[i] = a.String()
		}
		s := fmt.Sprintf("%s = %s(%s)", t.Destination, t.Func, strings.Join(args, ", "))
		if t.HasTarget {
			s += fmt.Sprintf(" -> %s", t.Target)
		}
		return s
	}
}
