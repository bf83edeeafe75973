package fixpoint

// Simplify removes trivially valid parts of c. Binders are only dropped together with
// everything under them, so the depth numbering of what remains is unchanged.
func Simplify(c Constraint) Constraint {
	switch c := c.(type) {
	case Conj:
		kept := make([]Constraint, 0, len(c.Constraints))
		for _, inner := range c.Constraints {
			inner = Simplify(inner)
			if IsTrue(inner) {
				continue
			}
			if conj, ok := inner.(Conj); ok {
				kept = append(kept, conj.Constraints...)
				continue
			}
			kept = append(kept, inner)
		}
		if len(kept) == 0 {
			return True
		}
		return Join(kept...)
	case ForAll:
		conclusion := Simplify(c.Conclusion)
		if IsTrue(conclusion) || assumed(c.Premise, conclusion) {
			return True
		}
		return ForAll{Sort: c.Sort, Premise: c.Premise, Conclusion: conclusion}
	case Guard:
		conclusion := Simplify(c.Conclusion)
		if IsTrue(conclusion) || assumed(c.Premise, conclusion) {
			return True
		}
		return Guard{Premise: c.Premise, Conclusion: conclusion}
	case Atom:
		if isTruePred(c.Pred) {
			return True
		}
	}
	return c
}

// assumed is true when the conclusion is literally the premise, or one of its conjuncts
func assumed(premise Pred, conclusion Constraint) bool {
	atom, ok := conclusion.(Atom)
	if !ok {
		return false
	}
	if EqualPred(premise, atom.Pred) {
		return true
	}
	if and, ok := premise.(And); ok {
		for _, p := range and.Preds {
			if EqualPred(p, atom.Pred) {
				return true
			}
		}
	}
	return false
}
