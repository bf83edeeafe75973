package tycheck

import (
	"github.com/cottand/refine/fixpoint"
	"github.com/cottand/refine/ty"
)

// frame is a binder (a ForAll over one refined value) or a guard (a branch
// condition) in scope at some program point
type frame struct {
	parent  *frame
	guard   bool
	sort    fixpoint.Sort
	premise fixpoint.Pred
}

// scope is a persistent stack of frames. Pushing returns a new scope, so paths
// that fork (switch targets) share their common prefix.
type scope struct {
	top *frame
	// depth counts the ForAll binders, and is the level of the next one
	depth int
}

func (s scope) forAll(sort fixpoint.Sort, premise fixpoint.Pred) scope {
	return scope{
		top:   &frame{parent: s.top, sort: sort, premise: premise},
		depth: s.depth + 1,
	}
}

func (s scope) guard(premise fixpoint.Pred) scope {
	return scope{
		top:   &frame{parent: s.top, guard: true, premise: premise},
		depth: s.depth,
	}
}

// wrap puts c under every frame of the scope, innermost first
func (s scope) wrap(c fixpoint.Constraint) fixpoint.Constraint {
	for f := s.top; f != nil; f = f.parent {
		if f.guard {
			c = fixpoint.Guard{Premise: f.premise, Conclusion: c}
		} else {
			c = fixpoint.ForAll{Sort: f.sort, Premise: f.premise, Conclusion: c}
		}
	}
	return c
}

// binding locates the refined leaves of a value among the bound variables:
// a refined value is a single level, a tuple has one binding per field,
// references and uninitialised memory have none
type binding struct {
	level  int
	fields []*binding
}

var noBinding = &binding{level: -1}

func (b *binding) isLeaf() bool { return b.level >= 0 }

func (b *binding) project(projs []int) (*binding, error) {
	for _, proj := range projs {
		if proj < 0 || proj >= len(b.fields) {
			return nil, internalf("projection .%d out of bounds", proj)
		}
		b = b.fields[proj]
	}
	return b, nil
}

// leaves appends the levels of every refined leaf under b, in field order
func (b *binding) leaves(acc []int) []int {
	if b.isLeaf() {
		return append(acc, b.level)
	}
	for _, f := range b.fields {
		acc = f.leaves(acc)
	}
	return acc
}

// fieldCtx maps the fields of the enclosing tuple to their bindings
type fieldCtx map[ty.Field]*binding
