package ty

import (
	"fmt"
	"github.com/cottand/refine/mir"
	"slices"
	"strings"
)

// Ty is a hash-consed refined type. Two structurally equal types built from the same
// Ctxt are the same pointer, so == is structural equality. Types are never mutated:
// every update builds a new Ty and leaves the old one valid for whoever still holds it.
type Ty struct {
	kind TyKind
	hash uint64
	id   uint64
}

func (t *Ty) Kind() TyKind { return t.kind }
func (t *Ty) Hash() uint64 { return t.hash }

// TyKind is one of Refined, Tuple, Ref, Uninit
type TyKind interface {
	isTyKind()
	hashInto(h *hasher)
	equal(other TyKind) bool
}

// Refined is a refined base type: {B | p}
type Refined struct {
	Base   BaseTy
	Refine Refine
}

// Tuple is a dependent tuple: (@0: int, @1: {int | @0 > v}).
// A field may only refer to fields with a smaller index.
type Tuple struct {
	fields []TupleField
}

type TupleField struct {
	Field Field
	Ty    *Ty
}

// Ref is a borrow of a place in Region. Ghost describes the pointee at borrow time.
type Ref struct {
	Kind   mir.BorrowKind
	Region Region
	Ghost  GhostVar
}

// Uninit is uninitialised memory of the given size
type Uninit struct {
	Size int
}

var (
	_ TyKind = Refined{}
	_ TyKind = Tuple{}
	_ TyKind = Ref{}
	_ TyKind = Uninit{}
)

func (Refined) isTyKind() {}
func (Tuple) isTyKind()   {}
func (Ref) isTyKind()     {}
func (Uninit) isTyKind()  {}

// Refine is either a known predicate, or a k-variable standing for a predicate to infer
type Refine struct {
	pred *Pred
	kvar *Kvar
}

func Known(p *Pred) Refine     { return Refine{pred: p} }
func Infer(k Kvar) Refine      { return Refine{kvar: &k} }
func (r Refine) IsInfer() bool { return r.kvar != nil }

// Pred is nil for refinements to infer
func (r Refine) Pred() *Pred { return r.pred }

// Kvar is nil for known refinements
func (r Refine) Kvar() *Kvar { return r.kvar }

func (r Refine) equal(other Refine) bool {
	if r.IsInfer() != other.IsInfer() {
		return false
	}
	if r.IsInfer() {
		return r.kvar.Equal(*other.kvar)
	}
	return r.pred == other.pred
}

func (r Refine) String() string {
	if r.IsInfer() {
		return r.kvar.String()
	}
	return r.pred.String()
}

// Kvar is a refinement predicate that needs to be inferred. Vars lists the variables the
// predicate may depend on; it is fixed when the k-variable is created.
type Kvar struct {
	ID   KVid
	Vars []Var
}

func (k Kvar) Equal(other Kvar) bool {
	return k.ID == other.ID && slices.Equal(k.Vars, other.Vars)
}

func (k Kvar) String() string {
	vars := make([]string, len(k.Vars))
	for i, v := range k.Vars {
		vars[i] = v.String()
	}
	return fmt.Sprintf("%s[%s]", k.ID, strings.Join(vars, ", "))
}

func (k Refined) hashInto(h *hasher) {
	h.byte(byte(k.Base))
	if k.Refine.IsInfer() {
		h.byte(1)
		h.u64(uint64(k.Refine.kvar.ID))
		h.u64(uint64(len(k.Refine.kvar.Vars)))
		for _, v := range k.Refine.kvar.Vars {
			v.hashInto(h)
		}
		return
	}
	h.byte(0)
	h.u64(k.Refine.pred.id)
}
func (k Tuple) hashInto(h *hasher) {
	h.u64(uint64(len(k.fields)))
	for _, f := range k.fields {
		h.u64(uint64(f.Field))
		h.u64(f.Ty.id)
	}
}
func (k Ref) hashInto(h *hasher) {
	h.byte(byte(k.Kind))
	k.Region.hashInto(h)
	h.u64(uint64(k.Ghost))
}
func (k Uninit) hashInto(h *hasher) {
	h.u64(uint64(k.Size))
}

func (k Refined) equal(other TyKind) bool {
	o, ok := other.(Refined)
	return ok && k.Base == o.Base && k.Refine.equal(o.Refine)
}
func (k Tuple) equal(other TyKind) bool {
	o, ok := other.(Tuple)
	return ok && slices.Equal(k.fields, o.fields)
}
func (k Ref) equal(other TyKind) bool {
	o, ok := other.(Ref)
	return ok && k.Kind == o.Kind && k.Ghost == o.Ghost && k.Region.Equal(o.Region)
}
func (k Uninit) equal(other TyKind) bool {
	o, ok := other.(Uninit)
	return ok && k.Size == o.Size
}

func (t Tuple) Len() int             { return len(t.fields) }
func (t Tuple) IsEmpty() bool        { return len(t.fields) == 0 }
func (t Tuple) TyAt(n int) *Ty       { return t.fields[n].Ty }
func (t Tuple) FieldAt(n int) Field  { return t.fields[n].Field }
func (t Tuple) Fields() []TupleField { return slices.Clone(t.fields) }

// Position returns the position of field f in the tuple
func (t Tuple) Position(f Field) (int, bool) {
	for i, tf := range t.fields {
		if tf.Field == f {
			return i, true
		}
	}
	return 0, false
}

// Map builds the fields of a new tuple out of the fields of t
func (t Tuple) Map(f func(i int, field Field, ty *Ty) TupleField) []TupleField {
	out := make([]TupleField, len(t.fields))
	for i, tf := range t.fields {
		out[i] = f(i, tf.Field, tf.Ty)
	}
	return out
}

// MapTyAt builds the fields of a new tuple where only the type at position n changed
func (t Tuple) MapTyAt(n int, f func(*Ty) *Ty) []TupleField {
	out := slices.Clone(t.fields)
	out[n].Ty = f(out[n].Ty)
	return out
}

// Size in bytes of a value of this type
func (t *Ty) Size() int {
	switch k := t.kind.(type) {
	case Refined:
		return k.Base.Size()
	case Tuple:
		size := 0
		for _, f := range k.fields {
			size += f.Ty.Size()
		}
		return size
	case Ref:
		return 8
	case Uninit:
		return k.Size
	}
	return 0
}

// HasKvar reports whether some refinement in t is still to be inferred
func (t *Ty) HasKvar() bool {
	switch k := t.kind.(type) {
	case Refined:
		return k.Refine.IsInfer()
	case Tuple:
		for _, f := range k.fields {
			if f.Ty.HasKvar() {
				return true
			}
		}
	}
	return false
}

func (t *Ty) String() string {
	switch k := t.kind.(type) {
	case Ref:
		if k.Kind == mir.Mut {
			return fmt.Sprintf("&%s mut %s", k.Region, k.Ghost)
		}
		return fmt.Sprintf("&%s %s", k.Region, k.Ghost)
	case Tuple:
		fields := make([]string, len(k.fields))
		for i, f := range k.fields {
			fields[i] = fmt.Sprintf("%s: %s", f.Field, f.Ty)
		}
		return fmt.Sprintf("(%s)", strings.Join(fields, ", "))
	case Uninit:
		return fmt.Sprintf("uninit(%d)", k.Size)
	case Refined:
		if !k.Refine.IsInfer() && k.Refine.pred.IsTrue() {
			return k.Base.String()
		}
		return fmt.Sprintf("{ %s | %s }", k.Base, k.Refine)
	}
	return "<?>"
}
