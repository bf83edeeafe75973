package tycheck

import (
	"fmt"
	"github.com/benbjohnson/immutable"
	"github.com/cottand/refine/mir"
	"github.com/cottand/refine/ty"
	"maps"
	"slices"
	"strings"
)

// BBlockTy is the type expected at the entry of a basic block. The ghost variables
// in Requires are universally quantified, Inputs say which of them holds each local.
type BBlockTy struct {
	Requires []ty.GhostTy
	Inputs   map[mir.Local]ty.GhostVar
}

func (b BBlockTy) requiredTy(g ty.GhostVar) (*ty.Ty, bool) {
	for _, r := range b.Requires {
		if r.Ghost == g {
			return r.Ty, true
		}
	}
	return nil, false
}

// Locals lists the locals the block type gives an input for, in order
func (b BBlockTy) Locals() []mir.Local {
	return slices.Sorted(maps.Keys(b.Inputs))
}

func (b BBlockTy) String() string {
	reqs := make([]string, len(b.Requires))
	for i, r := range b.Requires {
		reqs[i] = r.String()
	}
	inputs := make([]string, 0, len(b.Inputs))
	for _, local := range b.Locals() {
		inputs = append(inputs, fmt.Sprintf("%s: %s", local, b.Inputs[local]))
	}
	return fmt.Sprintf("forall [%s]. (%s)", strings.Join(reqs, ", "), strings.Join(inputs, ", "))
}

// BBlockEnv holds the expected type of every basic block of a function.
// It is filled before checking starts and only read afterwards.
type BBlockEnv struct {
	tys map[mir.BasicBlock]BBlockTy
}

func NewBBlockEnv() *BBlockEnv {
	return &BBlockEnv{tys: make(map[mir.BasicBlock]BBlockTy)}
}

func (e *BBlockEnv) Insert(bb mir.BasicBlock, t BBlockTy) {
	e.tys[bb] = t
}

func (e *BBlockEnv) Get(bb mir.BasicBlock) (BBlockTy, error) {
	t, ok := e.tys[bb]
	if !ok {
		return BBlockTy{}, internalf("no type for %s", bb)
	}
	return t, nil
}

func (e *BBlockEnv) Len() int {
	return len(e.tys)
}

// GlobEnv maps function names to their declarations
type GlobEnv struct {
	fns *immutable.Map[string, *ty.FnDecl]
}

func NewGlobEnv(decls map[string]*ty.FnDecl) *GlobEnv {
	builder := immutable.NewMapBuilder[string, *ty.FnDecl](nil)
	for _, name := range slices.Sorted(maps.Keys(decls)) {
		builder.Set(name, decls[name])
	}
	return &GlobEnv{fns: builder.Map()}
}

// With returns a new environment that also declares name
func (g *GlobEnv) With(name string, decl *ty.FnDecl) *GlobEnv {
	return &GlobEnv{fns: g.fns.Set(name, decl)}
}

func (g *GlobEnv) Get(name string) (*ty.FnDecl, error) {
	decl, ok := g.fns.Get(name)
	if !ok {
		return nil, internalf("call to undeclared function %s", name)
	}
	return decl, nil
}

func (g *GlobEnv) Len() int {
	return g.fns.Len()
}

// Decls iterates over every declaration, in no particular order
func (g *GlobEnv) Decls(yield func(string, *ty.FnDecl) bool) {
	itr := g.fns.Iterator()
	for !itr.Done() {
		name, decl, _ := itr.Next()
		if !yield(name, decl) {
			return
		}
	}
}
