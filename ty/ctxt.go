package ty

import (
	"fmt"
	"github.com/cottand/refine/mir"
	"sync"
)

// Ctxt owns the interning tables for types and predicates.
//
// It is safe for concurrent use, so that several functions can be checked in parallel
// against the same Ctxt. Lookups only take a read lock; the write lock is taken on a
// genuine miss, and the bucket is scanned again before inserting.
type Ctxt struct {
	tys   table[Ty]
	preds table[Pred]

	truePred, falsePred *Pred
}

func NewCtxt() *Ctxt {
	tcx := &Ctxt{
		tys:   table[Ty]{buckets: make(map[uint64][]*Ty)},
		preds: table[Pred]{buckets: make(map[uint64][]*Pred)},
	}
	tcx.truePred = tcx.MkConst(mir.BoolConst(true))
	tcx.falsePred = tcx.MkConst(mir.BoolConst(false))
	return tcx
}

type table[T any] struct {
	mu      sync.RWMutex
	buckets map[uint64][]*T
	count   uint64
}

func (t *table[T]) intern(hash uint64, eq func(*T) bool, mk func(id uint64) *T) *T {
	t.mu.RLock()
	for _, candidate := range t.buckets[hash] {
		if eq(candidate) {
			t.mu.RUnlock()
			return candidate
		}
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, candidate := range t.buckets[hash] {
		if eq(candidate) {
			return candidate
		}
	}
	created := mk(t.count)
	t.count++
	t.buckets[hash] = append(t.buckets[hash], created)
	return created
}

func (t *table[T]) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return int(t.count)
}

// Stats returns how many distinct types and predicates were interned
func (tcx *Ctxt) Stats() (tys, preds int) {
	return tcx.tys.len(), tcx.preds.len()
}

func (tcx *Ctxt) mkTy(kind TyKind) *Ty {
	h := newHasher('t')
	h.byte(tyTag(kind))
	kind.hashInto(h)
	hash := h.sum()
	return tcx.tys.intern(hash,
		func(t *Ty) bool { return t.kind.equal(kind) },
		func(id uint64) *Ty { return &Ty{kind: kind, hash: hash, id: id} },
	)
}

func tyTag(kind TyKind) byte {
	switch kind.(type) {
	case Refined:
		return 0
	case Tuple:
		return 1
	case Ref:
		return 2
	default:
		return 3
	}
}

func (tcx *Ctxt) mkPred(kind PredKind) *Pred {
	h := newHasher('p')
	switch kind.(type) {
	case PredPath:
		h.byte(0)
	case PredBinary:
		h.byte(1)
	case PredUnary:
		h.byte(2)
	case PredConst:
		h.byte(3)
	}
	kind.hashInto(h)
	hash := h.sum()
	return tcx.preds.intern(hash,
		func(p *Pred) bool { return p.kind.equal(kind) },
		func(id uint64) *Pred { return &Pred{kind: kind, hash: hash, id: id} },
	)
}

func (tcx *Ctxt) MkRefined(base BaseTy, refine Refine) *Ty {
	if refine.IsInfer() {
		// own the var list so later changes to the caller's slice cannot leak in
		kvar := Kvar{ID: refine.kvar.ID, Vars: append([]Var(nil), refine.kvar.Vars...)}
		refine = Infer(kvar)
	}
	return tcx.mkTy(Refined{Base: base, Refine: refine})
}

// Trivial is the base type refined by true
func (tcx *Ctxt) Trivial(base BaseTy) *Ty {
	return tcx.MkRefined(base, Known(tcx.truePred))
}

// MkTuple interns a dependent tuple. It fails when a field refers to itself or
// to a field that does not come before it.
func (tcx *Ctxt) MkTuple(fields []TupleField) (*Ty, error) {
	seen := make(map[Field]bool, len(fields))
	for _, tf := range fields {
		if seen[tf.Field] {
			return nil, fmt.Errorf("tuple field %s declared twice", tf.Field)
		}
		for _, ref := range FieldsReferenced(tf.Ty) {
			if ref >= tf.Field || !seen[ref] {
				return nil, fmt.Errorf("tuple field %s refers to field %s which does not precede it", tf.Field, ref)
			}
		}
		seen[tf.Field] = true
	}
	return tcx.mkTy(Tuple{fields: append([]TupleField(nil), fields...)}), nil
}

func (tcx *Ctxt) MkRef(kind mir.BorrowKind, region Region, ghost GhostVar) *Ty {
	return tcx.mkTy(Ref{Kind: kind, Region: region, Ghost: ghost})
}

func (tcx *Ctxt) MkUninit(size int) *Ty {
	return tcx.mkTy(Uninit{Size: size})
}

func (tcx *Ctxt) MkPath(path Path) *Pred {
	path.Projs = append([]int(nil), path.Projs...)
	return tcx.mkPred(PredPath{Path: path})
}

func (tcx *Ctxt) MkVar(v Var) *Pred {
	return tcx.mkPred(PredPath{Path: Path{Base: v}})
}

func (tcx *Ctxt) MkBinary(op BinOp, lhs, rhs *Pred) *Pred {
	return tcx.mkPred(PredBinary{Op: op, Lhs: lhs, Rhs: rhs})
}

func (tcx *Ctxt) MkUnary(op UnOp, operand *Pred) *Pred {
	return tcx.mkPred(PredUnary{Op: op, Operand: operand})
}

func (tcx *Ctxt) MkConst(c mir.Constant) *Pred {
	return tcx.mkPred(PredConst{Value: c})
}

func (tcx *Ctxt) True() *Pred  { return tcx.truePred }
func (tcx *Ctxt) False() *Pred { return tcx.falsePred }

// FieldsReferenced lists the tuple fields the top-level refinement of t refers to
func FieldsReferenced(t *Ty) []Field {
	refined, ok := t.kind.(Refined)
	if !ok {
		return nil
	}
	var fields []Field
	if refined.Refine.IsInfer() {
		for _, v := range refined.Refine.kvar.Vars {
			if v.Kind == VarField {
				fields = append(fields, v.Field)
			}
		}
		return fields
	}
	refined.Refine.pred.Vars(func(p Path) {
		if p.Base.Kind == VarField {
			fields = append(fields, p.Base.Field)
		}
	})
	return fields
}
