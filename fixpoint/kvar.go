package fixpoint

import (
	"cmp"
	"fmt"
	"github.com/cottand/refine/util"
	"github.com/pkg/errors"
	"slices"
	"strings"
)

// KVar is the declaration of a k-variable: the sorts of its arguments
type KVar struct {
	ID    KVid
	Sorts []Sort
}

func (k KVar) String() string {
	sorts := make([]string, len(k.Sorts))
	for i, s := range k.Sorts {
		sorts[i] = fmt.Sprintf("(%s)", s)
	}
	return fmt.Sprintf("(declare %s (%s))", k.ID, strings.Join(sorts, " "))
}

// ErrInconsistentKVar is returned when the same k-variable is applied to arguments of
// different sorts. The type checker never builds such constraints.
var ErrInconsistentKVar = errors.New("inconsistent k-variable signature")

type kvarGatherCtx struct {
	scope util.Stack[Sort]
	kvars map[KVid][]Sort
}

// Gather finds every k-variable applied in c and resolves the sorts of its arguments.
// The signature of a k-variable is fixed by its first occurrence; later occurrences
// must agree with it.
func Gather(c Constraint) ([]KVar, error) {
	cx := &kvarGatherCtx{kvars: make(map[KVid][]Sort)}
	if err := cx.constraint(c); err != nil {
		return nil, err
	}
	decls := make([]KVar, 0, len(cx.kvars))
	for id, sorts := range cx.kvars {
		decls = append(decls, KVar{ID: id, Sorts: sorts})
	}
	slices.SortFunc(decls, func(a, b KVar) int { return cmp.Compare(a.ID, b.ID) })
	return decls, nil
}

func (cx *kvarGatherCtx) constraint(c Constraint) error {
	switch c := c.(type) {
	case Atom:
		return cx.pred(c.Pred)
	case Conj:
		for _, inner := range c.Constraints {
			if err := cx.constraint(inner); err != nil {
				return err
			}
		}
	case Guard:
		if err := cx.pred(c.Premise); err != nil {
			return err
		}
		return cx.constraint(c.Conclusion)
	case ForAll:
		cx.scope.Push(c.Sort)
		defer cx.scope.Pop()
		if err := cx.pred(c.Premise); err != nil {
			return err
		}
		return cx.constraint(c.Conclusion)
	}
	return nil
}

func (cx *kvarGatherCtx) pred(p Pred) error {
	switch p := p.(type) {
	case And:
		for _, inner := range p.Preds {
			if err := cx.pred(inner); err != nil {
				return err
			}
		}
	case KVarApp:
		sorts := make([]Sort, len(p.Args))
		for i, arg := range p.Args {
			sort, ok := cx.scope.At(arg)
			if !ok {
				return errors.Errorf("%s argument v%d is not bound (depth %d)", p.ID, arg, cx.scope.Len())
			}
			sorts[i] = sort
		}
		if prev, seen := cx.kvars[p.ID]; seen {
			if !slices.Equal(prev, sorts) {
				return errors.Wrapf(ErrInconsistentKVar, "%s applied to %v and to %v", p.ID, prev, sorts)
			}
			return nil
		}
		cx.kvars[p.ID] = sorts
	}
	return nil
}
