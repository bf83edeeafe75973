package tycheck

import (
	"cmp"
	"github.com/benbjohnson/immutable"
	"github.com/cottand/refine/fixpoint"
	"github.com/cottand/refine/mir"
	"github.com/cottand/refine/ty"
	set "github.com/hashicorp/go-set/v3"
)

// Func is a function to check: its declaration, its body, the shapes of its locals
// and the block types given explicitly. Blocks without one get an inferred type.
type Func struct {
	Name   string
	Decl   *ty.FnDecl
	Body   *mir.Body
	Locals []Shape
	Blocks map[mir.BasicBlock]BBlockTy
}

// fnState is everything that outlives a single basic block while checking a function:
// fresh name counters, region solutions and the obligations raised so far
type fnState struct {
	tcx  *ty.Ctxt
	genv *GlobEnv
	fn   *Func
	benv *BBlockEnv

	nextGhost  ty.GhostVar
	nextKVid   ty.KVid
	nextRegion ty.RegionVid

	regions     map[ty.RegionVid]*regionSolution
	obligations []fixpoint.Constraint
}

func (st *fnState) freshGhost() ty.GhostVar {
	g := st.nextGhost
	st.nextGhost++
	return g
}

func (st *fnState) freshKVid() ty.KVid {
	k := st.nextKVid
	st.nextKVid++
	return k
}

func (st *fnState) freshRegion() ty.RegionVid {
	r := st.nextRegion
	st.nextRegion++
	st.regions[r] = newRegionSolution()
	return r
}

// solution is what an inference region stands for so far
func (st *fnState) solution(vid ty.RegionVid) *regionSolution {
	s, ok := st.regions[vid]
	if !ok {
		s = newRegionSolution()
		st.regions[vid] = s
	}
	return s
}

// regionsSize is the total size of all region solutions. Solutions only grow.
func (st *fnState) regionsSize() int {
	n := 0
	for _, s := range st.regions {
		n += s.size()
	}
	return n
}

type setOfPlaces = set.HashSet[mir.Place, string]

// regionSolution is the solution of an inference region: places of the function
// plus the universal regions of references it was given
type regionSolution struct {
	places     *setOfPlaces
	universals *set.Set[ty.UniversalRegion]
}

func newRegionSolution() *regionSolution {
	return &regionSolution{
		places:     set.NewHashSet[mir.Place, string](0),
		universals: set.New[ty.UniversalRegion](0),
	}
}

func (s *regionSolution) size() int { return s.places.Size() + s.universals.Size() }

// include grows s to contain r, another inference region's solution being other
func (s *regionSolution) include(r ty.Region, other *regionSolution) {
	switch r.Kind {
	case ty.RegionConcrete:
		s.places.InsertSlice(r.Places())
	case ty.RegionAbstract:
		s.universals.Insert(r.Universal)
	case ty.RegionInfer:
		s.places.InsertSet(other.places)
		s.universals.InsertSet(other.universals)
	}
}

// within reports whether everything in s is also in the fixed region r
func (s *regionSolution) within(r ty.Region) bool {
	switch r.Kind {
	case ty.RegionConcrete:
		return s.universals.Empty() && r.PlaceSet().Subset(s.places)
	case ty.RegionAbstract:
		return s.places.Empty() && set.From([]ty.UniversalRegion{r.Universal}).Subset(s.universals)
	}
	return false
}

// singlePlace returns the place of a solution that is exactly one place
func (s *regionSolution) singlePlace() (mir.Place, bool) {
	if s.places.Size() != 1 || !s.universals.Empty() {
		return mir.Place{}, false
	}
	return s.places.Slice()[0], true
}

// onlyUniversal reports whether s is exactly one universal region
func (s *regionSolution) onlyUniversal() bool {
	return s.places.Empty() && s.universals.Size() == 1
}

type localComparer struct{}

func (localComparer) Compare(a, b mir.Local) int { return cmp.Compare(a, b) }

// walker threads the typing environment along one path through a basic block.
// The ghost and binding tables are only ever added to; ghost variables are never reused.
type walker struct {
	st       *fnState
	tcx      *ty.Ctxt
	locals   *immutable.SortedMap[mir.Local, ty.GhostVar]
	sc       scope
	ghosts   map[ty.GhostVar]*ty.Ty
	bindings map[ty.GhostVar]*binding
}

func (st *fnState) newWalker() *walker {
	return &walker{
		st:       st,
		tcx:      st.tcx,
		locals:   immutable.NewSortedMap[mir.Local, ty.GhostVar](localComparer{}),
		ghosts:   make(map[ty.GhostVar]*ty.Ty),
		bindings: make(map[ty.GhostVar]*binding),
	}
}

// fork returns a walker for a branch: same tables, its own scope
func (w *walker) fork(sc scope) *walker {
	forked := *w
	forked.sc = sc
	return &forked
}

func (w *walker) ghostTy(g ty.GhostVar) (*ty.Ty, error) {
	t, ok := w.ghosts[g]
	if !ok {
		return nil, internalf("ghost %s has no type", g)
	}
	return t, nil
}

func (w *walker) local(l mir.Local) (ty.GhostVar, error) {
	g, ok := w.locals.Get(l)
	if !ok {
		return 0, internalf("local %s is not in the environment", l)
	}
	return g, nil
}

func (w *walker) setLocal(l mir.Local, g ty.GhostVar) {
	w.locals = w.locals.Set(l, g)
}

// bind records that g has type t, putting its refined leaves in scope
func (w *walker) bind(g ty.GhostVar, t *ty.Ty) error {
	w.ghosts[g] = t
	b, err := w.bindTy(t, nil)
	if err != nil {
		return err
	}
	w.bindings[g] = b
	return nil
}

func (w *walker) bindTy(t *ty.Ty, fields fieldCtx) (*binding, error) {
	switch k := t.Kind().(type) {
	case ty.Refined:
		self := &binding{level: w.sc.depth}
		premise, err := w.lowerRefine(k.Refine, self, fields)
		if err != nil {
			return nil, err
		}
		w.sc = w.sc.forAll(lowerSort(k.Base), premise)
		return self, nil
	case ty.Tuple:
		b := &binding{level: -1, fields: make([]*binding, k.Len())}
		inner := make(fieldCtx, k.Len())
		for i := range k.Len() {
			fb, err := w.bindTy(k.TyAt(i), inner)
			if err != nil {
				return nil, err
			}
			b.fields[i] = fb
			inner[k.FieldAt(i)] = fb
		}
		return b, nil
	default:
		return noBinding, nil
	}
}

// fresh allocates a ghost of type t
func (w *walker) fresh(t *ty.Ty) (ty.GhostVar, error) {
	g := w.st.freshGhost()
	return g, w.bind(g, t)
}

// oblige raises c under everything currently in scope
func (w *walker) oblige(c fixpoint.Constraint) {
	if c == nil || fixpoint.IsTrue(c) {
		return
	}
	w.st.obligations = append(w.st.obligations, w.sc.wrap(c))
}
