package refine

import (
	"fmt"
	"github.com/Masterminds/semver/v3"
	"github.com/cottand/refine/fixpoint"
	"github.com/cottand/refine/mir"
	"github.com/cottand/refine/ty"
	"github.com/cottand/refine/tycheck"
	"gopkg.in/yaml.v3"
	"os"
)

// SupportedVersions are the program format versions this checker reads
const SupportedVersions = ">= 0.1, < 1.0"

// Program is a set of functions checked together: every function may call any other
type Program struct {
	Name       string
	Version    *semver.Version
	Qualifiers []fixpoint.Qualifier
	Funcs      []*tycheck.Func
	Genv       *tycheck.GlobEnv
}

type rawProgram struct {
	Version    string          `yaml:"version"`
	Qualifiers []QualifierSpec `yaml:"qualifiers"`
	Functions  []rawFunction   `yaml:"functions"`
}

// QualifierSpec is a qualifier as written in a program or in refine.yaml: a predicate
// over v0..vN, where vI has the I-th sort
type QualifierSpec struct {
	Name  string   `yaml:"name"`
	Sorts []string `yaml:"sorts"`
	Pred  string   `yaml:"pred"`
}

type rawGhostTy struct {
	Ghost uint32    `yaml:"ghost"`
	Type  yaml.Node `yaml:"type"`
}

type rawOutput struct {
	Arg   int    `yaml:"arg"`
	Ghost uint32 `yaml:"ghost"`
}

type rawFunction struct {
	Name     string       `yaml:"name"`
	Requires []rawGhostTy `yaml:"requires"`
	Inputs   []uint32     `yaml:"inputs"`
	Ensures  []rawGhostTy `yaml:"ensures"`
	Outputs  []rawOutput  `yaml:"outputs"`
	Output   uint32       `yaml:"output"`
	Locals   []yaml.Node  `yaml:"locals"`
	Blocks   []rawBlock   `yaml:"blocks"`
}

type rawBlock struct {
	Requires   []rawGhostTy      `yaml:"requires"`
	Inputs     map[uint32]uint32 `yaml:"inputs"`
	Statements []string          `yaml:"statements"`
	Terminator yaml.Node         `yaml:"terminator"`
}

func (b rawBlock) annotated() bool {
	return b.Requires != nil || b.Inputs != nil
}

type rawTerminator struct {
	Goto      *uint32   `yaml:"goto"`
	Switch    *string   `yaml:"switch"`
	Targets   yaml.Node `yaml:"targets"`
	Otherwise *uint32   `yaml:"otherwise"`
	Assert    *string   `yaml:"assert"`
	Expected  *bool     `yaml:"expected"`
	Target    *uint32   `yaml:"target"`
	Call      *string   `yaml:"call"`
	Args      []string  `yaml:"args"`
	Dest      string    `yaml:"dest"`
}

// Load reads the program at path. Types are interned in tcx, which checking must share.
func Load(tcx *ty.Ctxt, path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read program: %w", err)
	}
	return Parse(tcx, path, data)
}

// Parse reads a program from YAML. name is only used in error messages.
func Parse(tcx *ty.Ctxt, name string, data []byte) (*Program, error) {
	var raw rawProgram
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	version, err := checkVersion(raw.Version)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	prog := &Program{Name: name, Version: version}

	if prog.Qualifiers, err = ParseQualifiers(tcx, raw.Qualifiers); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	tp := &typeParser{tcx: tcx}
	decls := make(map[string]*ty.FnDecl, len(raw.Functions))
	for i, rawFn := range raw.Functions {
		if rawFn.Name == "" {
			return nil, fmt.Errorf("%s: function %d has no name", name, i)
		}
		if _, dup := decls[rawFn.Name]; dup {
			return nil, fmt.Errorf("%s: function %s is declared twice", name, rawFn.Name)
		}
		fn, err := tp.function(rawFn)
		if err != nil {
			return nil, fmt.Errorf("%s: function %s: %w", name, rawFn.Name, err)
		}
		decls[fn.Name] = fn.Decl
		prog.Funcs = append(prog.Funcs, fn)
	}
	prog.Genv = tycheck.NewGlobEnv(decls)
	logger.Debug("loaded program", "name", name, "version", version.String(), "functions", len(prog.Funcs))
	return prog, nil
}

func checkVersion(raw string) (*semver.Version, error) {
	if raw == "" {
		return nil, fmt.Errorf("missing version")
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		return nil, fmt.Errorf("bad version %q: %w", raw, err)
	}
	c, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return nil, err
	}
	if !c.Check(v) {
		return nil, fmt.Errorf("version %s is not supported (want %s)", v, SupportedVersions)
	}
	return v, nil
}

// ParseQualifiers compiles qualifier specs into solver qualifiers
func ParseQualifiers(tcx *ty.Ctxt, raw []QualifierSpec) ([]fixpoint.Qualifier, error) {
	quals := make([]fixpoint.Qualifier, 0, len(raw))
	for _, rq := range raw {
		if rq.Name == "" {
			return nil, fmt.Errorf("qualifier %q has no name", rq.Pred)
		}
		params := newNames()
		params.params = true
		bases := make([]ty.BaseTy, len(rq.Sorts))
		for i, s := range rq.Sorts {
			base, ok := baseNamed(s)
			if !ok {
				return nil, fmt.Errorf("qualifier %s: unknown sort %q", rq.Name, s)
			}
			bases[i] = base
			params.declare(ty.GhostVar(i), tcx.Trivial(base))
		}
		p, err := (&predParser{tcx: tcx, names: params}).parse(rq.Pred)
		if err != nil {
			return nil, fmt.Errorf("qualifier %s: %w", rq.Name, err)
		}
		q, err := tycheck.LowerQualifier(tcx, rq.Name, bases, p)
		if err != nil {
			return nil, fmt.Errorf("qualifier %s: %w", rq.Name, err)
		}
		quals = append(quals, q)
	}
	return quals, nil
}

func (tp *typeParser) ghostTys(raw []rawGhostTy, n *names) ([]ty.GhostTy, error) {
	out := make([]ty.GhostTy, len(raw))
	for i, r := range raw {
		t, err := tp.ty(&r.Type, n)
		if err != nil {
			return nil, fmt.Errorf("ghost g%d: %w", r.Ghost, err)
		}
		g := ty.GhostVar(r.Ghost)
		out[i] = ty.GhostTy{Ghost: g, Ty: t}
		n.declare(g, t)
	}
	return out, nil
}

func (tp *typeParser) function(raw rawFunction) (*tycheck.Func, error) {
	n := newNames()
	requires, err := tp.ghostTys(raw.Requires, n)
	if err != nil {
		return nil, fmt.Errorf("requires: %w", err)
	}
	entry := n.clone()
	ensures, err := tp.ghostTys(raw.Ensures, n)
	if err != nil {
		return nil, fmt.Errorf("ensures: %w", err)
	}
	decl := &ty.FnDecl{
		Requires: requires,
		Ensures:  ensures,
		Output:   ty.GhostVar(raw.Output),
	}
	for _, g := range raw.Inputs {
		decl.Inputs = append(decl.Inputs, ty.GhostVar(g))
	}
	for _, out := range raw.Outputs {
		decl.Outputs = append(decl.Outputs, ty.FnOutput{Arg: out.Arg, Ghost: ty.GhostVar(out.Ghost)})
	}
	if err := decl.Validate(); err != nil {
		return nil, err
	}

	fn := &tycheck.Func{
		Name: raw.Name,
		Decl: decl,
		Body: &mir.Body{
			ArgCount:   len(decl.Inputs),
			LocalCount: len(raw.Locals),
		},
		Locals: make([]tycheck.Shape, len(raw.Locals)),
		Blocks: make(map[mir.BasicBlock]tycheck.BBlockTy),
	}
	for i := range raw.Locals {
		if fn.Locals[i], err = shape(&raw.Locals[i]); err != nil {
			return nil, fmt.Errorf("local _%d: %w", i, err)
		}
	}
	for i, rb := range raw.Blocks {
		bb := mir.BasicBlock(i)
		data, err := block(rb)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", bb, err)
		}
		fn.Body.Blocks = append(fn.Body.Blocks, data)
		if !rb.annotated() {
			continue
		}
		// requires of a block see the function's requires, but not its ensures
		requires, err := tp.ghostTys(rb.Requires, entry.clone())
		if err != nil {
			return nil, fmt.Errorf("%s: requires: %w", bb, err)
		}
		inputs := make(map[mir.Local]ty.GhostVar, len(rb.Inputs))
		for local, g := range rb.Inputs {
			inputs[mir.Local(local)] = ty.GhostVar(g)
		}
		fn.Blocks[bb] = tycheck.BBlockTy{Requires: requires, Inputs: inputs}
	}
	if err := fn.Body.Validate(); err != nil {
		return nil, err
	}
	return fn, nil
}

func block(raw rawBlock) (mir.BasicBlockData, error) {
	var data mir.BasicBlockData
	for _, s := range raw.Statements {
		stmt, err := mir.ParseStatement(s)
		if err != nil {
			return data, err
		}
		data.Statements = append(data.Statements, stmt)
	}
	term, err := terminator(&raw.Terminator)
	if err != nil {
		return data, fmt.Errorf("terminator: %w", err)
	}
	data.Terminator = term
	return data, nil
}

func terminator(node *yaml.Node) (mir.Terminator, error) {
	if node.Kind == yaml.ScalarNode {
		switch node.Value {
		case "return":
			return mir.Return(), nil
		case "unreachable":
			return mir.Unreachable(), nil
		}
		return mir.Terminator{}, fmt.Errorf("line %d: unknown terminator %q", node.Line, node.Value)
	}
	if node.Kind == 0 {
		return mir.Terminator{}, fmt.Errorf("missing terminator")
	}
	var raw rawTerminator
	if err := node.Decode(&raw); err != nil {
		return mir.Terminator{}, err
	}
	switch {
	case raw.Goto != nil:
		return mir.Goto(mir.BasicBlock(*raw.Goto)), nil
	case raw.Switch != nil:
		return switchInt(node, raw)
	case raw.Assert != nil:
		cond, err := mir.ParseOperand(*raw.Assert)
		if err != nil {
			return mir.Terminator{}, err
		}
		if raw.Target == nil {
			return mir.Terminator{}, fmt.Errorf("line %d: assert without a target", node.Line)
		}
		expected := true
		if raw.Expected != nil {
			expected = *raw.Expected
		}
		return mir.Assert(cond, expected, mir.BasicBlock(*raw.Target)), nil
	case raw.Call != nil:
		args := make([]mir.Operand, len(raw.Args))
		for i, a := range raw.Args {
			op, err := mir.ParseOperand(a)
			if err != nil {
				return mir.Terminator{}, err
			}
			args[i] = op
		}
		dest, err := mir.ParsePlace(raw.Dest)
		if err != nil {
			return mir.Terminator{}, fmt.Errorf("call destination: %w", err)
		}
		var target *mir.BasicBlock
		if raw.Target != nil {
			bb := mir.BasicBlock(*raw.Target)
			target = &bb
		}
		return mir.Call(*raw.Call, args, dest, target), nil
	}
	return mir.Terminator{}, fmt.Errorf("line %d: unknown terminator", node.Line)
}

func switchInt(node *yaml.Node, raw rawTerminator) (mir.Terminator, error) {
	discr, err := mir.ParseOperand(*raw.Switch)
	if err != nil {
		return mir.Terminator{}, err
	}
	if raw.Otherwise == nil {
		return mir.Terminator{}, fmt.Errorf("line %d: switch without otherwise", node.Line)
	}
	targets := mir.SwitchTargets{Otherwise: mir.BasicBlock(*raw.Otherwise)}
	// pairs of key and value nodes, in the order they were written
	for i := 0; i+1 < len(raw.Targets.Content); i += 2 {
		key, value := raw.Targets.Content[i], raw.Targets.Content[i+1]
		c, ok := mir.ParseConstant(key.Value)
		if !ok {
			return mir.Terminator{}, fmt.Errorf("line %d: bad switch value %q", key.Line, key.Value)
		}
		var bb uint32
		if err := value.Decode(&bb); err != nil {
			return mir.Terminator{}, err
		}
		targets.Values = append(targets.Values, c)
		targets.Targets = append(targets.Targets, mir.BasicBlock(bb))
	}
	return mir.SwitchInt(discr, targets), nil
}
