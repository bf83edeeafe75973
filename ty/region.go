package ty

import (
	"fmt"
	"github.com/cottand/refine/mir"
	set "github.com/hashicorp/go-set/v3"
	"slices"
	"strings"
)

type RegionKind uint8

const (
	// RegionConcrete is an (approximate) provenance set of places
	RegionConcrete RegionKind = iota
	// RegionAbstract is a universally quantified region
	RegionAbstract
	// RegionInfer is a region that needs to be inferred
	RegionInfer
)

// Region is an approximate set of possible provenances for a reference.
// Concrete regions keep their places sorted and without duplicates,
// so that equal sets have equal representations.
type Region struct {
	Kind      RegionKind
	places    []mir.Place
	Universal UniversalRegion
	Vid       RegionVid
}

func ConcreteRegion(places ...mir.Place) Region {
	return regionFromSet(set.HashSetFrom[mir.Place, string](places))
}

func AbstractRegion(u UniversalRegion) Region {
	return Region{Kind: RegionAbstract, Universal: u}
}

func InferRegion(vid RegionVid) Region {
	return Region{Kind: RegionInfer, Vid: vid}
}

func regionFromSet(places *set.HashSet[mir.Place, string]) Region {
	sorted := places.Slice()
	slices.SortFunc(sorted, mir.Place.Compare)
	return Region{Kind: RegionConcrete, places: sorted}
}

func (r Region) Places() []mir.Place {
	return r.places
}

// PlaceSet returns the places of a concrete region as a fresh set
func (r Region) PlaceSet() *set.HashSet[mir.Place, string] {
	return set.HashSetFrom[mir.Place, string](r.places)
}

// Union merges two concrete regions. It is how regions are joined at control flow merges.
func (r Region) Union(other Region) Region {
	s := r.PlaceSet()
	s.InsertSlice(other.places)
	return regionFromSet(s)
}

// Singleton returns the only place of a concrete region with exactly one place
func (r Region) Singleton() (mir.Place, bool) {
	if r.Kind != RegionConcrete || len(r.places) != 1 {
		return mir.Place{}, false
	}
	return r.places[0], true
}

func (r Region) Equal(other Region) bool {
	if r.Kind != other.Kind {
		return false
	}
	switch r.Kind {
	case RegionAbstract:
		return r.Universal == other.Universal
	case RegionInfer:
		return r.Vid == other.Vid
	}
	return slices.EqualFunc(r.places, other.places, mir.Place.Equal)
}

func (r Region) hashInto(h *hasher) {
	h.byte(byte(r.Kind))
	switch r.Kind {
	case RegionAbstract:
		h.u64(uint64(r.Universal))
	case RegionInfer:
		h.u64(uint64(r.Vid))
	default:
		h.u64(uint64(len(r.places)))
		for _, p := range r.places {
			h.str(p.Hash())
		}
	}
}

func (r Region) String() string {
	switch r.Kind {
	case RegionAbstract:
		return r.Universal.String()
	case RegionInfer:
		return r.Vid.String()
	}
	places := make([]string, len(r.places))
	for i, p := range r.places {
		places[i] = p.String()
	}
	return fmt.Sprintf("{ %s }", strings.Join(places, ", "))
}
