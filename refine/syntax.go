package refine

import (
	"fmt"
	"github.com/cottand/refine/mir"
	"github.com/cottand/refine/ty"
	"github.com/cottand/refine/tycheck"
	"go/ast"
	"go/parser"
	"go/token"
	"gopkg.in/yaml.v3"
	"strconv"
	"strings"
)

// names is what a predicate may refer to where it is written: v, the ghosts declared
// before it (in order) and the earlier fields of the enclosing tuple
type names struct {
	nu     *ty.BaseTy
	ghosts map[ty.GhostVar]*ty.Ty
	order  []ty.GhostVar
	fields map[ty.Field]*ty.Ty
	// params makes v0..vN name ghosts 0..N, for qualifiers
	params bool
}

func newNames() *names {
	return &names{ghosts: make(map[ty.GhostVar]*ty.Ty)}
}

func (n *names) declare(g ty.GhostVar, t *ty.Ty) {
	if _, ok := n.ghosts[g]; !ok {
		n.order = append(n.order, g)
	}
	n.ghosts[g] = t
}

// clone copies the ghost scope, so that a block annotation sees the function's
// requires without adding to them
func (n *names) clone() *names {
	c := newNames()
	for _, g := range n.order {
		c.declare(g, n.ghosts[g])
	}
	return c
}

func numbered(name, prefix string) (uint32, bool) {
	rest, ok := strings.CutPrefix(name, prefix)
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(rest, 10, 32)
	return uint32(n), err == nil
}

func (n *names) variable(name string) (ty.Var, error) {
	if n.params {
		if i, ok := numbered(name, "v"); ok {
			return ty.GhostV(ty.GhostVar(i)), nil
		}
		return ty.Var{}, fmt.Errorf("unknown qualifier parameter %s", name)
	}
	if name == "v" {
		if n.nu == nil {
			return ty.Var{}, fmt.Errorf("v used outside of a refinement")
		}
		return ty.Nu, nil
	}
	if i, ok := numbered(name, "g"); ok {
		g := ty.GhostVar(i)
		if _, declared := n.ghosts[g]; !declared {
			return ty.Var{}, fmt.Errorf("ghost %s is used before it is declared", g)
		}
		return ty.GhostV(g), nil
	}
	if i, ok := numbered(name, "f"); ok {
		f := ty.Field(i)
		if _, declared := n.fields[f]; !declared {
			return ty.Var{}, fmt.Errorf("field %s does not precede this one", f)
		}
		return ty.FieldV(f), nil
	}
	return ty.Var{}, fmt.Errorf("unknown variable %s", name)
}

// baseOf is the base type of the value a path names
func (n *names) baseOf(p ty.Path) (ty.BaseTy, error) {
	var t *ty.Ty
	switch p.Base.Kind {
	case ty.VarNu:
		if len(p.Projs) > 0 {
			return 0, fmt.Errorf("%s projects out of a base value", p)
		}
		return *n.nu, nil
	case ty.VarGhost:
		t = n.ghosts[p.Base.Ghost]
	case ty.VarField:
		t = n.fields[p.Base.Field]
	}
	for _, proj := range p.Projs {
		tuple, ok := t.Kind().(ty.Tuple)
		if !ok || proj >= tuple.Len() {
			return 0, fmt.Errorf("%s does not name a tuple field", p)
		}
		t = tuple.TyAt(proj)
	}
	refined, ok := t.Kind().(ty.Refined)
	if !ok {
		return 0, fmt.Errorf("%s is not a refined value", p)
	}
	return refined.Base, nil
}

// kvarVars is what a k-variable written here depends on
func (n *names) kvarVars() []ty.Var {
	vars := []ty.Var{ty.Nu}
	for _, g := range n.order {
		if leafy(n.ghosts[g]) {
			vars = append(vars, ty.GhostV(g))
		}
	}
	for f := ty.Field(0); int(f) < len(n.fields); f++ {
		if t, ok := n.fields[f]; ok && leafy(t) {
			vars = append(vars, ty.FieldV(f))
		}
	}
	return vars
}

func leafy(t *ty.Ty) bool {
	switch t.Kind().(type) {
	case ty.Refined, ty.Tuple:
		return true
	}
	return false
}

var binOpsByToken = map[token.Token]ty.BinOpKind{
	token.ADD: ty.Add, token.SUB: ty.Sub, token.MUL: ty.Mul, token.QUO: ty.Div, token.REM: ty.Rem,
	token.EQL: ty.Eq, token.NEQ: ty.Neq,
	token.LSS: ty.Lt, token.GTR: ty.Gt, token.LEQ: ty.Lte, token.GEQ: ty.Gte,
	token.LAND: ty.And, token.LOR: ty.Or,
}

// predParser turns predicates written in Go expression syntax into ty.Pred
type predParser struct {
	tcx   *ty.Ctxt
	names *names
}

func (pp *predParser) parse(src string) (*ty.Pred, error) {
	e, err := parser.ParseExpr(src)
	if err != nil {
		return nil, fmt.Errorf("predicate %q: %w", src, err)
	}
	p, _, err := pp.expr(e)
	if err != nil {
		return nil, fmt.Errorf("predicate %q: %w", src, err)
	}
	return p, nil
}

func (pp *predParser) expr(e ast.Expr) (*ty.Pred, ty.BaseTy, error) {
	tcx := pp.tcx
	switch e := e.(type) {
	case *ast.ParenExpr:
		return pp.expr(e.X)
	case *ast.BasicLit:
		n, err := intLit(e)
		if err != nil {
			return nil, 0, err
		}
		return tcx.MkConst(mir.IntConst(n)), ty.Int, nil
	case *ast.Ident:
		switch e.Name {
		case "true":
			return tcx.True(), ty.Bool, nil
		case "false":
			return tcx.False(), ty.Bool, nil
		}
		return pp.path(e)
	case *ast.IndexExpr:
		return pp.path(e)
	case *ast.UnaryExpr:
		if lit, ok := e.X.(*ast.BasicLit); ok && e.Op == token.SUB {
			n, err := intLit(lit)
			if err != nil {
				return nil, 0, err
			}
			return tcx.MkConst(mir.IntConst(-n)), ty.Int, nil
		}
		operand, _, err := pp.expr(e.X)
		if err != nil {
			return nil, 0, err
		}
		switch e.Op {
		case token.NOT:
			return tcx.MkUnary(ty.Not, operand), ty.Bool, nil
		case token.SUB:
			return tcx.MkUnary(ty.Neg, operand), ty.Int, nil
		}
		return nil, 0, fmt.Errorf("unsupported operator %s", e.Op)
	case *ast.BinaryExpr:
		kind, ok := binOpsByToken[e.Op]
		if !ok {
			return nil, 0, fmt.Errorf("unsupported operator %s", e.Op)
		}
		lhs, lhsBase, err := pp.expr(e.X)
		if err != nil {
			return nil, 0, err
		}
		rhs, rhsBase, err := pp.expr(e.Y)
		if err != nil {
			return nil, 0, err
		}
		op := ty.Op(kind)
		if kind == ty.Eq || kind == ty.Neq {
			op.Base = ty.Int
			if lhsBase == ty.Bool || rhsBase == ty.Bool {
				op.Base = ty.Bool
			}
		}
		return tcx.MkBinary(op, lhs, rhs), op.Result(), nil
	}
	return nil, 0, fmt.Errorf("unsupported expression %T", e)
}

func intLit(lit *ast.BasicLit) (int64, error) {
	if lit.Kind != token.INT {
		return 0, fmt.Errorf("unsupported literal %s", lit.Value)
	}
	return strconv.ParseInt(lit.Value, 0, 64)
}

func (pp *predParser) path(e ast.Expr) (*ty.Pred, ty.BaseTy, error) {
	p, err := pp.pathOf(e)
	if err != nil {
		return nil, 0, err
	}
	base := ty.Int
	if !pp.names.params {
		if base, err = pp.names.baseOf(p); err != nil {
			return nil, 0, err
		}
	} else if t, ok := pp.names.ghosts[p.Base.Ghost]; ok {
		if refined, ok := t.Kind().(ty.Refined); ok {
			base = refined.Base
		}
	}
	return pp.tcx.MkPath(p), base, nil
}

// pathOf reads a variable followed by tuple projections, as in g1[0][2]
func (pp *predParser) pathOf(e ast.Expr) (ty.Path, error) {
	switch e := e.(type) {
	case *ast.Ident:
		v, err := pp.names.variable(e.Name)
		if err != nil {
			return ty.Path{}, err
		}
		return ty.PathOf(v), nil
	case *ast.IndexExpr:
		inner, err := pp.pathOf(e.X)
		if err != nil {
			return ty.Path{}, err
		}
		lit, ok := e.Index.(*ast.BasicLit)
		if !ok {
			return ty.Path{}, fmt.Errorf("tuple projections must be integer literals")
		}
		n, err := intLit(lit)
		if err != nil {
			return ty.Path{}, err
		}
		return inner.Extend(int(n)), nil
	}
	return ty.Path{}, fmt.Errorf("unsupported expression %T", e)
}

// typeNode is how a type is written in YAML. Exactly one of the kinds is set.
type typeNode struct {
	Int    *string      `yaml:"int"`
	Bool   *string      `yaml:"bool"`
	Tuple  *[]yaml.Node `yaml:"tuple"`
	Ref    string       `yaml:"ref"`
	Region string       `yaml:"region"`
	Ghost  *uint32      `yaml:"ghost"`
	To     yaml.Node    `yaml:"to"`
	Uninit *int         `yaml:"uninit"`
}

func (t typeNode) kinds() int {
	n := 0
	for _, present := range []bool{t.Int != nil, t.Bool != nil, t.Tuple != nil, t.Ref != "", t.Uninit != nil} {
		if present {
			n++
		}
	}
	return n
}

func decodeTypeNode(node *yaml.Node) (typeNode, error) {
	var t typeNode
	if err := node.Decode(&t); err != nil {
		return t, err
	}
	if t.kinds() != 1 {
		return t, fmt.Errorf("line %d: a type is one of int, bool, tuple, ref or uninit", node.Line)
	}
	return t, nil
}

func borrowKind(s string) (mir.BorrowKind, error) {
	switch s {
	case "mut":
		return mir.Mut, nil
	case "shared":
		return mir.Shared, nil
	}
	return 0, fmt.Errorf("unknown borrow kind %q", s)
}

func baseNamed(s string) (ty.BaseTy, bool) {
	switch s {
	case "int":
		return ty.Int, true
	case "bool":
		return ty.Bool, true
	}
	return 0, false
}

// typeParser reads types of ghost variables. K-variable ids are unique per program.
type typeParser struct {
	tcx      *ty.Ctxt
	nextKVid ty.KVid
}

func (tp *typeParser) ty(node *yaml.Node, n *names) (*ty.Ty, error) {
	if node.Kind == yaml.ScalarNode {
		base, ok := baseNamed(node.Value)
		if !ok {
			return nil, fmt.Errorf("line %d: unknown type %q", node.Line, node.Value)
		}
		return tp.tcx.Trivial(base), nil
	}
	t, err := decodeTypeNode(node)
	if err != nil {
		return nil, err
	}
	switch {
	case t.Int != nil:
		return tp.refined(ty.Int, *t.Int, n)
	case t.Bool != nil:
		return tp.refined(ty.Bool, *t.Bool, n)
	case t.Tuple != nil:
		return tp.tuple(*t.Tuple, n)
	case t.Uninit != nil:
		return tp.tcx.MkUninit(*t.Uninit), nil
	}
	kind, err := borrowKind(t.Ref)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", node.Line, err)
	}
	if t.Ghost == nil {
		return nil, fmt.Errorf("line %d: reference type without a ghost", node.Line)
	}
	region, err := ParseRegion(t.Region)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", node.Line, err)
	}
	return tp.tcx.MkRef(kind, region, ty.GhostVar(*t.Ghost)), nil
}

func (tp *typeParser) refined(base ty.BaseTy, src string, n *names) (*ty.Ty, error) {
	scope := *n
	scope.nu = &base
	if strings.TrimSpace(src) == "?" {
		kvar := ty.Kvar{ID: tp.nextKVid, Vars: scope.kvarVars()}
		tp.nextKVid++
		return tp.tcx.MkRefined(base, ty.Infer(kvar)), nil
	}
	p, err := (&predParser{tcx: tp.tcx, names: &scope}).parse(src)
	if err != nil {
		return nil, err
	}
	return tp.tcx.MkRefined(base, ty.Known(p)), nil
}

func (tp *typeParser) tuple(nodes []yaml.Node, n *names) (*ty.Ty, error) {
	scope := *n
	scope.fields = make(map[ty.Field]*ty.Ty, len(nodes))
	fields := make([]ty.TupleField, len(nodes))
	for i := range nodes {
		t, err := tp.ty(&nodes[i], &scope)
		if err != nil {
			return nil, err
		}
		fields[i] = ty.TupleField{Field: ty.Field(i), Ty: t}
		scope.fields[ty.Field(i)] = t
	}
	return tp.tcx.MkTuple(fields)
}

// shape reads the type a local is declared with
func shape(node *yaml.Node) (tycheck.Shape, error) {
	if node.Kind == yaml.ScalarNode {
		base, ok := baseNamed(node.Value)
		if !ok {
			return tycheck.Shape{}, fmt.Errorf("line %d: unknown shape %q", node.Line, node.Value)
		}
		return tycheck.BaseShape(base), nil
	}
	t, err := decodeTypeNode(node)
	if err != nil {
		return tycheck.Shape{}, err
	}
	switch {
	case t.Tuple != nil:
		fields := make([]tycheck.Shape, len(*t.Tuple))
		for i := range *t.Tuple {
			if fields[i], err = shape(&(*t.Tuple)[i]); err != nil {
				return tycheck.Shape{}, err
			}
		}
		return tycheck.TupleShape(fields...), nil
	case t.Ref != "" && t.To.Kind != 0:
		kind, err := borrowKind(t.Ref)
		if err != nil {
			return tycheck.Shape{}, fmt.Errorf("line %d: %w", node.Line, err)
		}
		pointee, err := shape(&t.To)
		if err != nil {
			return tycheck.Shape{}, err
		}
		return tycheck.RefShape(kind, pointee), nil
	}
	return tycheck.Shape{}, fmt.Errorf("line %d: locals are int, bool, tuples or {ref: KIND, to: SHAPE}", node.Line)
}

// ParseRegion reads 'N (abstract), $rN (inferred) or a comma separated list of places
func ParseRegion(s string) (ty.Region, error) {
	s = strings.TrimSpace(s)
	if n, ok := numbered(s, "'"); ok {
		return ty.AbstractRegion(ty.UniversalRegion(n)), nil
	}
	if n, ok := numbered(s, "$r"); ok {
		return ty.InferRegion(ty.RegionVid(n)), nil
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "{"), "}")
	if strings.TrimSpace(s) == "" {
		return ty.ConcreteRegion(), nil
	}
	var places []mir.Place
	for _, part := range strings.Split(s, ",") {
		p, err := mir.ParsePlace(part)
		if err != nil {
			return ty.Region{}, fmt.Errorf("region %q: %w", s, err)
		}
		places = append(places, p)
	}
	return ty.ConcreteRegion(places...), nil
}
