package ty

import (
	"fmt"
	"github.com/cottand/refine/mir"
	"slices"
	"strings"
)

type VarKind uint8

const (
	// VarNu is the variable bound by a refined base type, the v in {v: int | v > 0}
	VarNu VarKind = iota
	VarGhost
	// VarField is a field of the enclosing dependent tuple
	VarField
)

// Var is a variable that can be used inside a refinement predicate.
// The three kinds never alias each other.
type Var struct {
	Kind  VarKind
	Ghost GhostVar
	Field Field
}

var Nu = Var{Kind: VarNu}

func GhostV(g GhostVar) Var { return Var{Kind: VarGhost, Ghost: g} }
func FieldV(f Field) Var    { return Var{Kind: VarField, Field: f} }

func (v Var) String() string {
	switch v.Kind {
	case VarGhost:
		return v.Ghost.String()
	case VarField:
		return v.Field.String()
	default:
		return "v"
	}
}

func (v Var) hashInto(h *hasher) {
	h.byte(byte(v.Kind))
	h.u64(uint64(v.Ghost))
	h.u64(uint64(v.Field))
}

// Path is a variable plus a sequence of field projections (by position).
// Unlike mir.Place it never contains dereferences.
type Path struct {
	Base  Var
	Projs []int
}

func PathOf(base Var, projs ...int) Path {
	return Path{Base: base, Projs: projs}
}

func (p Path) Extend(n int) Path {
	projs := make([]int, len(p.Projs), len(p.Projs)+1)
	copy(projs, p.Projs)
	return Path{Base: p.Base, Projs: append(projs, n)}
}

func (p Path) Equal(other Path) bool {
	return p.Base == other.Base && slices.Equal(p.Projs, other.Projs)
}

func (p Path) String() string {
	sb := strings.Builder{}
	sb.WriteString(p.Base.String())
	for _, proj := range p.Projs {
		fmt.Fprintf(&sb, ".%d", proj)
	}
	return sb.String()
}

// Pred is a hash-consed refinement predicate. Two structurally equal predicates built
// from the same Ctxt are the same pointer. Construct with Ctxt.
type Pred struct {
	kind PredKind
	hash uint64
	id   uint64
}

func (p *Pred) Kind() PredKind { return p.kind }
func (p *Pred) Hash() uint64   { return p.hash }

// IsTrue is true for the constant predicate true
func (p *Pred) IsTrue() bool {
	c, ok := p.kind.(PredConst)
	return ok && c.Value.IsTrue()
}

func (p *Pred) String() string {
	switch k := p.kind.(type) {
	case PredPath:
		return k.Path.String()
	case PredBinary:
		return fmt.Sprintf("(%s %s %s)", k.Lhs, k.Op, k.Rhs)
	case PredUnary:
		return fmt.Sprintf("%s%s", k.Op, k.Operand)
	case PredConst:
		return k.Value.String()
	}
	return "<?>"
}

// PredKind is one of PredPath, PredBinary, PredUnary, PredConst
type PredKind interface {
	isPredKind()
	hashInto(h *hasher)
	equal(other PredKind) bool
}

type PredPath struct{ Path Path }

type PredBinary struct {
	Op       BinOp
	Lhs, Rhs *Pred
}

type PredUnary struct {
	Op      UnOp
	Operand *Pred
}

type PredConst struct{ Value mir.Constant }

var (
	_ PredKind = PredPath{}
	_ PredKind = PredBinary{}
	_ PredKind = PredUnary{}
	_ PredKind = PredConst{}
)

func (PredPath) isPredKind()   {}
func (PredBinary) isPredKind() {}
func (PredUnary) isPredKind()  {}
func (PredConst) isPredKind()  {}

func (k PredPath) hashInto(h *hasher) {
	k.Path.Base.hashInto(h)
	h.u64(uint64(len(k.Path.Projs)))
	for _, proj := range k.Path.Projs {
		h.u64(uint64(proj))
	}
}
func (k PredBinary) hashInto(h *hasher) {
	h.byte(byte(k.Op.Kind))
	h.byte(byte(k.Op.Base))
	h.u64(k.Lhs.id)
	h.u64(k.Rhs.id)
}
func (k PredUnary) hashInto(h *hasher) {
	h.byte(byte(k.Op))
	h.u64(k.Operand.id)
}
func (k PredConst) hashInto(h *hasher) {
	h.str(k.Value.String())
}

func (k PredPath) equal(other PredKind) bool {
	o, ok := other.(PredPath)
	return ok && k.Path.Equal(o.Path)
}
func (k PredBinary) equal(other PredKind) bool {
	o, ok := other.(PredBinary)
	return ok && k.Op == o.Op && k.Lhs == o.Lhs && k.Rhs == o.Rhs
}
func (k PredUnary) equal(other PredKind) bool {
	o, ok := other.(PredUnary)
	return ok && k.Op == o.Op && k.Operand == o.Operand
}
func (k PredConst) equal(other PredKind) bool {
	o, ok := other.(PredConst)
	return ok && k.Value == o.Value
}

// Vars calls yield for every variable occurring in the predicate
func (p *Pred) Vars(yield func(Path)) {
	switch k := p.kind.(type) {
	case PredPath:
		yield(k.Path)
	case PredBinary:
		k.Lhs.Vars(yield)
		k.Rhs.Vars(yield)
	case PredUnary:
		k.Operand.Vars(yield)
	}
}
