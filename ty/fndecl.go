package ty

import (
	"fmt"
	"strings"
)

// GhostTy associates a ghost variable with its type
type GhostTy struct {
	Ghost GhostVar
	Ty    *Ty
}

func (g GhostTy) String() string {
	return fmt.Sprintf("%s: %s", g.Ghost, g.Ty)
}

// FnOutput is the ghost variable (bound in FnDecl.Ensures) describing the pointee of the
// reference passed as argument Arg once the function returns
type FnOutput struct {
	Arg   int
	Ghost GhostVar
}

// FnDecl is a function type declaration
type FnDecl struct {
	// Requires maps ghost variables to the types they must have. From the caller's
	// perspective they are universally quantified and instantiated at the call site with
	// concrete ghost variables satisfying the requirements.
	Requires []GhostTy
	// Inputs are the ghost variables (bound in Requires) of each argument
	Inputs []GhostVar
	// Ensures maps ghost variables to their guaranteed types. From the caller's perspective
	// they are existentially quantified and can be assumed after the call returns.
	Ensures []GhostTy
	// Outputs are the updated ghost variables (bound in Ensures) of reference arguments
	Outputs []FnOutput
	// Output is the ghost variable (bound in Ensures) of the returned value
	Output GhostVar
}

func lookup(entries []GhostTy, g GhostVar) (*Ty, bool) {
	for _, e := range entries {
		if e.Ghost == g {
			return e.Ty, true
		}
	}
	return nil, false
}

func (d *FnDecl) RequiredTy(g GhostVar) (*Ty, bool) { return lookup(d.Requires, g) }
func (d *FnDecl) EnsuredTy(g GhostVar) (*Ty, bool)  { return lookup(d.Ensures, g) }

// MaxGhost is the largest ghost variable the declaration mentions
func (d *FnDecl) MaxGhost() GhostVar {
	var highest GhostVar
	bump := func(g GhostVar) {
		if g > highest {
			highest = g
		}
	}
	for _, entries := range [][]GhostTy{d.Requires, d.Ensures} {
		for _, e := range entries {
			bump(e.Ghost)
			if ref, ok := e.Ty.Kind().(Ref); ok {
				bump(ref.Ghost)
			}
		}
	}
	for _, g := range d.Inputs {
		bump(g)
	}
	bump(d.Output)
	return highest
}

// Validate checks that every ghost variable the declaration points at is bound, and
// that no refinement is left to inference: each caller is solved on its own.
func (d *FnDecl) Validate() error {
	for _, entries := range []struct {
		name string
		tys  []GhostTy
	}{{"requires", d.Requires}, {"ensures", d.Ensures}} {
		for _, e := range entries.tys {
			if e.Ty.HasKvar() {
				return fmt.Errorf("%s of %s is %s: signatures cannot leave refinements to inference", entries.name, e.Ghost, e.Ty)
			}
		}
	}
	for i, g := range d.Inputs {
		if _, ok := d.RequiredTy(g); !ok {
			return fmt.Errorf("input %d uses ghost %s which is not in requires", i, g)
		}
	}
	if _, ok := d.EnsuredTy(d.Output); !ok {
		return fmt.Errorf("output ghost %s is not in ensures", d.Output)
	}
	for _, out := range d.Outputs {
		if out.Arg < 0 || out.Arg >= len(d.Inputs) {
			return fmt.Errorf("output refers to argument %d but there are %d inputs", out.Arg, len(d.Inputs))
		}
		if _, ok := d.EnsuredTy(out.Ghost); !ok {
			return fmt.Errorf("output ghost %s for argument %d is not in ensures", out.Ghost, out.Arg)
		}
		argTy, _ := d.RequiredTy(d.Inputs[out.Arg])
		if _, isRef := argTy.Kind().(Ref); !isRef {
			return fmt.Errorf("argument %d has an output but is not a reference", out.Arg)
		}
	}
	return nil
}

func (d *FnDecl) String() string {
	show := func(entries []GhostTy) string {
		s := make([]string, len(entries))
		for i, e := range entries {
			s[i] = e.String()
		}
		return strings.Join(s, ", ")
	}
	inputs := make([]string, len(d.Inputs))
	for i, g := range d.Inputs {
		inputs[i] = g.String()
	}
	return fmt.Sprintf("fn(%s) requires [%s] ensures [%s] -> %s",
		strings.Join(inputs, ", "), show(d.Requires), show(d.Ensures), d.Output)
}
