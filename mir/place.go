package mir

import (
	"fmt"
	"strconv"
	"strings"
)

// Local is a MIR local. Local 0 is the return place, locals 1..=ArgCount are the arguments.
type Local uint32

func (l Local) String() string {
	return "_" + strconv.Itoa(int(l))
}

// PlaceElem is a single projection of a Place
type PlaceElem struct {
	// Deref is set for a dereference, otherwise this is a projection to Field
	Deref bool
	Field int
}

var DerefElem = PlaceElem{Deref: true}

func FieldElem(n int) PlaceElem {
	return PlaceElem{Field: n}
}

// Place is a local plus a (possibly empty) list of projections, applied left to right
type Place struct {
	Local      Local
	Projection []PlaceElem
}

func PlaceOf(local Local, projs ...PlaceElem) Place {
	return Place{Local: local, Projection: projs}
}

// IsLocal is true when the place is a whole local, without projections
func (p Place) IsLocal() bool {
	return len(p.Projection) == 0
}

func (p Place) Project(elem PlaceElem) Place {
	projs := make([]PlaceElem, len(p.Projection), len(p.Projection)+1)
	copy(projs, p.Projection)
	return Place{Local: p.Local, Projection: append(projs, elem)}
}

func (p Place) Equal(other Place) bool {
	if p.Local != other.Local || len(p.Projection) != len(other.Projection) {
		return false
	}
	for i := range p.Projection {
		if p.Projection[i] != other.Projection[i] {
			return false
		}
	}
	return true
}

// Hash is the canonical printed form, which is injective
func (p Place) Hash() string {
	return p.String()
}

func (p Place) Compare(other Place) int {
	return strings.Compare(p.String(), other.String())
}

func (p Place) String() string {
	s := p.Local.String()
	for i, elem := range p.Projection {
		if elem.Deref {
			if i == len(p.Projection)-1 {
				s = "*" + s
			} else {
				s = "(*" + s + ")"
			}
			continue
		}
		s = fmt.Sprintf("%s.%d", s, elem.Field)
	}
	return s
}
