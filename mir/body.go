package mir

import (
	"fmt"
	"slices"
	"strings"
)

type BasicBlockData struct {
	Statements []Statement
	Terminator Terminator
}

// Body is the control flow graph of a single function.
// Shapes of locals are not part of Body; they are supplied with the function declaration.
type Body struct {
	Blocks   []BasicBlockData
	ArgCount int
	// LocalCount includes the return place and the arguments
	LocalCount int
}

const EntryBlock BasicBlock = 0

func (b *Body) Block(bb BasicBlock) *BasicBlockData {
	return &b.Blocks[bb]
}

func (b *Body) Args() []Local {
	args := make([]Local, b.ArgCount)
	for i := range args {
		args[i] = Local(i + 1)
	}
	return args
}

// Validate checks that every jump and every place stays inside the body
func (b *Body) Validate() error {
	if len(b.Blocks) == 0 {
		return fmt.Errorf("body has no basic blocks")
	}
	if b.ArgCount+1 > b.LocalCount {
		return fmt.Errorf("body declares %d arguments but only %d locals", b.ArgCount, b.LocalCount)
	}
	checkPlace := func(p Place) error {
		if int(p.Local) >= b.LocalCount {
			return fmt.Errorf("place %s refers to undeclared local", p)
		}
		return nil
	}
	checkOperand := func(o Operand) error {
		if o.IsPlace() {
			return checkPlace(o.Place)
		}
		return nil
	}
	for i, data := range b.Blocks {
		for _, succ := range data.Terminator.Successors() {
			if int(succ) >= len(b.Blocks) {
				return fmt.Errorf("%s jumps to missing block %s", BasicBlock(i), succ)
			}
		}
		for _, st := range data.Statements {
			if st.Kind != StatementAssign {
				continue
			}
			if err := checkPlace(st.Place); err != nil {
				return err
			}
			for _, o := range []Operand{st.Rvalue.Lhs, st.Rvalue.Rhs} {
				if err := checkOperand(o); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Predecessors returns, for every block, the blocks that can jump to it
func (b *Body) Predecessors() map[BasicBlock][]BasicBlock {
	preds := make(map[BasicBlock][]BasicBlock, len(b.Blocks))
	for i, data := range b.Blocks {
		for _, succ := range data.Terminator.Successors() {
			if !slices.Contains(preds[succ], BasicBlock(i)) {
				preds[succ] = append(preds[succ], BasicBlock(i))
			}
		}
	}
	return preds
}

// ReversePostorder lists the blocks reachable from the entry so that every block comes
// after all of its predecessors, back edges excluded
func (b *Body) ReversePostorder() []BasicBlock {
	visited := make([]bool, len(b.Blocks))
	post := make([]BasicBlock, 0, len(b.Blocks))
	var visit func(bb BasicBlock)
	visit = func(bb BasicBlock) {
		visited[bb] = true
		for _, succ := range b.Blocks[bb].Terminator.Successors() {
			if !visited[succ] {
				visit(succ)
			}
		}
		post = append(post, bb)
	}
	visit(EntryBlock)
	slices.Reverse(post)
	return post
}

func (b *Body) String() string {
	sb := &strings.Builder{}
	for i, data := range b.Blocks {
		fmt.Fprintf(sb, "%s: {\n", BasicBlock(i))
		for _, st := range data.Statements {
			fmt.Fprintf(sb, "    %s;\n", st)
		}
		fmt.Fprintf(sb, "    %s;\n}\n", data.Terminator)
	}
	return sb.String()
}
