package tycheck

import (
	"github.com/cottand/refine/fixpoint"
	"github.com/cottand/refine/mir"
	"github.com/cottand/refine/ty"
	"github.com/pkg/errors"
	"log/slog"
)

// CheckFn type checks fn and returns a constraint that is valid iff fn respects its
// declaration. Errors are internal: the function could not be turned into a constraint.
func CheckFn(tcx *ty.Ctxt, genv *GlobEnv, fn *Func) (fixpoint.Constraint, error) {
	if err := validate(fn); err != nil {
		return nil, errors.WithMessage(err, fn.Name)
	}
	st := &fnState{
		tcx:     tcx,
		genv:    genv,
		fn:      fn,
		benv:    NewBBlockEnv(),
		regions: make(map[ty.RegionVid]*regionSolution),
	}
	st.reserveAll()

	body := fn.Body
	order := body.ReversePostorder()
	entryHasPreds := len(body.Predecessors()[mir.EntryBlock]) > 0
	init := definitelyInit(body)
	for _, bb := range order {
		if annotated, ok := fn.Blocks[bb]; ok {
			st.benv.Insert(bb, annotated)
			continue
		}
		if bb == mir.EntryBlock && !entryHasPreds {
			continue
		}
		template, err := st.inferTemplate(init[bb])
		if err != nil {
			return nil, errors.WithMessagef(err, "%s: template for %s", fn.Name, bb)
		}
		logger.Debug("inferred block type", "fn", fn.Name, "block", bb.String(), "type", template.String())
		st.benv.Insert(bb, template)
	}

	// a region solution can grow after a block that relies on it was checked,
	// so walk again until the solutions are stable
	for pass := 1; ; pass++ {
		before := st.regionsSize()
		st.obligations = nil
		for _, bb := range order {
			w, err := st.startOf(bb)
			if err != nil {
				return nil, errors.WithMessagef(err, "%s: %s", fn.Name, bb)
			}
			if err := st.checkBlock(bb, w); err != nil {
				return nil, errors.WithMessagef(err, "%s: %s", fn.Name, bb)
			}
		}
		if st.regionsSize() == before {
			break
		}
		logger.Debug("region solutions grew", "fn", fn.Name, "pass", pass)
	}

	c := fixpoint.Join(st.obligations...)
	if c == nil {
		c = fixpoint.True
	}
	c = fixpoint.Simplify(c)
	logger.Debug("checked function", "fn", fn.Name, "obligations", len(st.obligations), "constraint", lazyConstraint{c})
	return c, nil
}

func validate(fn *Func) error {
	if fn.Decl == nil || fn.Body == nil {
		return internalf("missing declaration or body")
	}
	if err := fn.Body.Validate(); err != nil {
		return errors.Wrap(ErrInternal, err.Error())
	}
	if err := fn.Decl.Validate(); err != nil {
		return errors.Wrap(ErrInternal, err.Error())
	}
	if len(fn.Locals) != fn.Body.LocalCount {
		return internalf("%d local shapes for %d locals", len(fn.Locals), fn.Body.LocalCount)
	}
	if len(fn.Decl.Inputs) != fn.Body.ArgCount {
		return internalf("declaration has %d inputs, body has %d arguments", len(fn.Decl.Inputs), fn.Body.ArgCount)
	}
	return nil
}

// startOf is the environment a block is walked from. A typed entry block is also
// jumped into from the function start, which is checked first.
func (st *fnState) startOf(bb mir.BasicBlock) (*walker, error) {
	_, typed := st.benv.tys[bb]
	if bb != mir.EntryBlock {
		return st.blockWalker(bb)
	}
	start, err := st.entryWalker()
	if err != nil || !typed {
		return start, err
	}
	if err := start.checkGoto(bb); err != nil {
		return nil, errors.WithMessage(err, "at function start")
	}
	return st.blockWalker(bb)
}

func (st *fnState) checkBlock(bb mir.BasicBlock, w *walker) error {
	data := st.fn.Body.Block(bb)
	for _, stmt := range data.Statements {
		if err := w.synth(stmt); err != nil {
			return err
		}
	}
	return w.check(data.Terminator)
}

// scopeWalker is a walker with the function's requires in scope and no locals
func (st *fnState) scopeWalker() (*walker, error) {
	w := st.newWalker()
	for _, req := range st.fn.Decl.Requires {
		if err := w.bind(req.Ghost, req.Ty); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// fillLocals makes every local missing from the environment uninitialised
func (w *walker) fillLocals() error {
	for i, shape := range w.st.fn.Locals {
		local := mir.Local(i)
		if _, ok := w.locals.Get(local); ok {
			continue
		}
		g, err := w.fresh(w.tcx.MkUninit(shape.Size()))
		if err != nil {
			return err
		}
		w.setLocal(local, g)
	}
	return nil
}

// entryWalker is the environment at the start of the function
func (st *fnState) entryWalker() (*walker, error) {
	w, err := st.scopeWalker()
	if err != nil {
		return nil, err
	}
	for i, g := range st.fn.Decl.Inputs {
		w.setLocal(mir.Local(i+1), g)
	}
	return w, w.fillLocals()
}

// blockWalker is the environment at the entry of bb, as its type describes it
func (st *fnState) blockWalker(bb mir.BasicBlock) (*walker, error) {
	t, err := st.benv.Get(bb)
	if err != nil {
		return nil, err
	}
	w, err := st.scopeWalker()
	if err != nil {
		return nil, err
	}
	for _, req := range t.Requires {
		if err := w.bind(req.Ghost, req.Ty); err != nil {
			return nil, err
		}
	}
	for _, local := range t.Locals() {
		w.setLocal(local, t.Inputs[local])
	}
	return w, w.fillLocals()
}

func (st *fnState) reserveGhost(g ty.GhostVar) {
	st.nextGhost = max(st.nextGhost, g+1)
}

// reserve makes sure fresh names never collide with the ones t mentions
func (st *fnState) reserve(t *ty.Ty) {
	switch k := t.Kind().(type) {
	case ty.Refined:
		if kvar := k.Refine.Kvar(); kvar != nil {
			st.nextKVid = max(st.nextKVid, kvar.ID+1)
			for _, v := range kvar.Vars {
				if v.Kind == ty.VarGhost {
					st.reserveGhost(v.Ghost)
				}
			}
			return
		}
		k.Refine.Pred().Vars(func(p ty.Path) {
			if p.Base.Kind == ty.VarGhost {
				st.reserveGhost(p.Base.Ghost)
			}
		})
	case ty.Tuple:
		for i := range k.Len() {
			st.reserve(k.TyAt(i))
		}
	case ty.Ref:
		st.reserveGhost(k.Ghost)
		if k.Region.Kind == ty.RegionInfer {
			st.nextRegion = max(st.nextRegion, k.Region.Vid+1)
		}
	}
}

func (st *fnState) reserveAll() {
	reserveDecl := func(d *ty.FnDecl) {
		for _, entries := range [][]ty.GhostTy{d.Requires, d.Ensures} {
			for _, e := range entries {
				st.reserve(e.Ty)
			}
		}
	}
	reserveDecl(st.fn.Decl)
	st.reserveGhost(st.fn.Decl.MaxGhost())
	for _, t := range st.fn.Blocks {
		for _, req := range t.Requires {
			st.reserveGhost(req.Ghost)
			st.reserve(req.Ty)
		}
	}
	logger.Debug("reserved names", "fn", st.fn.Name, slog.Int("ghosts", int(st.nextGhost)), slog.Int("kvars", int(st.nextKVid)))
}
