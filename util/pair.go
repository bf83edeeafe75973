package util

// Pair groups two values that travel together, such as a local and the kind of
// borrow it holds
type Pair[A, B any] struct {
	Fst A
	Snd B
}

func NewPair[A, B any](fst A, snd B) Pair[A, B] {
	return Pair[A, B]{Fst: fst, Snd: snd}
}

// Unpack returns both halves, for use in multiple assignment
func (p Pair[A, B]) Unpack() (A, B) {
	return p.Fst, p.Snd
}
