package ty

// Subst renames ghost variables and instantiates universal regions.
// Variables without an entry are left untouched.
type Subst struct {
	ghosts  map[GhostVar]GhostVar
	regions map[UniversalRegion]Region
}

func NewSubst() *Subst {
	return &Subst{
		ghosts:  make(map[GhostVar]GhostVar),
		regions: make(map[UniversalRegion]Region),
	}
}

func (s *Subst) InsertGhost(from, to GhostVar)                { s.ghosts[from] = to }
func (s *Subst) InsertRegion(from UniversalRegion, to Region) { s.regions[from] = to }

func (s *Subst) Ghost(g GhostVar) (GhostVar, bool) {
	to, ok := s.ghosts[g]
	return to, ok
}

func (s *Subst) Region(r Region) Region {
	if r.Kind != RegionAbstract {
		return r
	}
	if to, ok := s.regions[r.Universal]; ok {
		return to
	}
	return r
}

func (s *Subst) ghostOr(g GhostVar) GhostVar {
	if to, ok := s.ghosts[g]; ok {
		return to
	}
	return g
}

func (s *Subst) Var(v Var) Var {
	if v.Kind == VarGhost {
		return GhostV(s.ghostOr(v.Ghost))
	}
	return v
}

// ApplyPred rebuilds p with every ghost variable renamed
func (tcx *Ctxt) ApplyPred(s *Subst, p *Pred) *Pred {
	switch k := p.kind.(type) {
	case PredPath:
		base := s.Var(k.Path.Base)
		if base == k.Path.Base {
			return p
		}
		return tcx.MkPath(Path{Base: base, Projs: k.Path.Projs})
	case PredBinary:
		lhs, rhs := tcx.ApplyPred(s, k.Lhs), tcx.ApplyPred(s, k.Rhs)
		if lhs == k.Lhs && rhs == k.Rhs {
			return p
		}
		return tcx.MkBinary(k.Op, lhs, rhs)
	case PredUnary:
		operand := tcx.ApplyPred(s, k.Operand)
		if operand == k.Operand {
			return p
		}
		return tcx.MkUnary(k.Op, operand)
	}
	return p
}

// Apply rebuilds t with the substitution applied to every predicate, k-variable,
// reference and region it contains
func (tcx *Ctxt) Apply(s *Subst, t *Ty) *Ty {
	switch k := t.kind.(type) {
	case Refined:
		if k.Refine.IsInfer() {
			vars := make([]Var, len(k.Refine.kvar.Vars))
			for i, v := range k.Refine.kvar.Vars {
				vars[i] = s.Var(v)
			}
			return tcx.MkRefined(k.Base, Infer(Kvar{ID: k.Refine.kvar.ID, Vars: vars}))
		}
		return tcx.MkRefined(k.Base, Known(tcx.ApplyPred(s, k.Refine.pred)))
	case Tuple:
		fields := k.Map(func(_ int, f Field, fieldTy *Ty) TupleField {
			return TupleField{Field: f, Ty: tcx.Apply(s, fieldTy)}
		})
		// renaming ghosts cannot introduce field references
		return tcx.mkTy(Tuple{fields: fields})
	case Ref:
		return tcx.MkRef(k.Kind, s.Region(k.Region), s.ghostOr(k.Ghost))
	}
	return t
}
