package tycheck

import (
	"github.com/cottand/refine/fixpoint"
	"github.com/cottand/refine/ty"
)

// entail compiles the judgment sub <: sup for a value of type sub whose leaves are
// bound at b. Only the conclusion is built: sub's refinements are already premises
// of the binders in scope.
func (w *walker) entail(sub *ty.Ty, b *binding, sup *ty.Ty, fields fieldCtx) (fixpoint.Constraint, error) {
	if _, ok := sup.Kind().(ty.Uninit); ok {
		return fixpoint.True, nil
	}
	if sub == sup && len(fields) == 0 {
		return fixpoint.True, nil
	}
	switch subK := sub.Kind().(type) {
	case ty.Refined:
		supK, ok := sup.Kind().(ty.Refined)
		if !ok || supK.Base != subK.Base {
			return nil, internalf("shape mismatch: %s <: %s", sub, sup)
		}
		conclusion, err := w.lowerRefine(supK.Refine, b, fields)
		if err != nil {
			return nil, err
		}
		return fixpoint.Atom{Pred: conclusion}, nil
	case ty.Tuple:
		supK, ok := sup.Kind().(ty.Tuple)
		if !ok || supK.Len() != subK.Len() || len(b.fields) != subK.Len() {
			return nil, internalf("shape mismatch: %s <: %s", sub, sup)
		}
		inner := make(fieldCtx, supK.Len())
		var conj []fixpoint.Constraint
		for i := range supK.Len() {
			c, err := w.entail(subK.TyAt(i), b.fields[i], supK.TyAt(i), inner)
			if err != nil {
				return nil, err
			}
			if !fixpoint.IsTrue(c) {
				conj = append(conj, c)
			}
			inner[supK.FieldAt(i)] = b.fields[i]
		}
		if len(conj) == 0 {
			return fixpoint.True, nil
		}
		return fixpoint.Join(conj...), nil
	case ty.Ref:
		supK, ok := sup.Kind().(ty.Ref)
		if !ok || supK.Kind != subK.Kind {
			return nil, internalf("shape mismatch: %s <: %s", sub, sup)
		}
		if !w.regionSub(subK.Region, supK.Region) {
			return fixpoint.False, nil
		}
		if subK.Ghost == supK.Ghost {
			return fixpoint.True, nil
		}
		return w.entailGhosts(subK.Ghost, supK.Ghost)
	case ty.Uninit:
		return nil, internalf("uninitialised memory used where %s is expected", sup)
	}
	return nil, internalf("unknown type %s", sub)
}

// entailGhosts checks the current type of one ghost against the type of another
func (w *walker) entailGhosts(sub, sup ty.GhostVar) (fixpoint.Constraint, error) {
	subTy, err := w.ghostTy(sub)
	if err != nil {
		return nil, err
	}
	supTy, err := w.ghostTy(sup)
	if err != nil {
		return nil, err
	}
	return w.entail(subTy, w.bindings[sub], supTy, nil)
}

// subtypeGhost raises sub's ghost type <: sup as an obligation
func (w *walker) subtypeGhost(g ty.GhostVar, sup *ty.Ty) error {
	t, err := w.ghostTy(g)
	if err != nil {
		return err
	}
	c, err := w.entail(t, w.bindings[g], sup, nil)
	if err != nil {
		return err
	}
	w.oblige(c)
	return nil
}

// regionSub decides sub ⊆ sup. Inference regions grow to fit when they are the
// supertype, and are compared with what they hold so far when they are the subtype.
// CheckFn walks the function again until no solution grows, so that comparison sees
// the final solutions.
func (w *walker) regionSub(sub, sup ty.Region) bool {
	if sup.Kind == ty.RegionInfer {
		var other *regionSolution
		if sub.Kind == ty.RegionInfer {
			if sub.Vid == sup.Vid {
				return true
			}
			other = w.st.solution(sub.Vid)
		}
		w.st.solution(sup.Vid).include(sub, other)
		return true
	}
	if sub.Kind == ty.RegionInfer {
		return w.st.solution(sub.Vid).within(sup)
	}
	if sub.Kind == ty.RegionAbstract || sup.Kind == ty.RegionAbstract {
		if sub.Kind == ty.RegionConcrete && len(sub.Places()) == 0 {
			return true
		}
		return sub.Equal(sup)
	}
	return sup.PlaceSet().Subset(sub.PlaceSet())
}

// Subtype compiles sub <: sup for closed types: types that mention no ghost variable.
// The result is simplified, so Subtype(t, t) is true.
func Subtype(tcx *ty.Ctxt, sub, sup *ty.Ty) (fixpoint.Constraint, error) {
	st := &fnState{tcx: tcx, regions: make(map[ty.RegionVid]*regionSolution)}
	w := st.newWalker()
	b, err := w.bindTy(sub, nil)
	if err != nil {
		return nil, err
	}
	c, err := w.entail(sub, b, sup, nil)
	if err != nil {
		return nil, err
	}
	return fixpoint.Simplify(w.sc.wrap(c)), nil
}
