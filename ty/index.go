package ty

import "fmt"

// GhostVar is a (logical) ghost variable. Types are not associated to places directly:
// every update of a place creates a new ghost variable describing it. Old ghost variables
// are never reused, so refinements may keep referring to previous values, much like SSA.
type GhostVar uint32

func (g GhostVar) String() string { return fmt.Sprintf("g%d", uint32(g)) }

// Field names a field of a dependent tuple. It is stable under substitution,
// unlike the position of the field.
type Field uint32

func (f Field) String() string { return fmt.Sprintf("@%d", uint32(f)) }

// KVid identifies a refinement that needs to be inferred (a k-variable)
type KVid uint32

func (k KVid) String() string { return fmt.Sprintf("$k%d", uint32(k)) }

// RegionVid identifies a region that needs to be inferred
type RegionVid uint32

func (r RegionVid) String() string { return fmt.Sprintf("$r%d", uint32(r)) }

// UniversalRegion is a universally quantified region, the 'a in fn foo<'a>(n: &'a int)
type UniversalRegion uint32

func (u UniversalRegion) String() string { return fmt.Sprintf("'%d", uint32(u)) }
