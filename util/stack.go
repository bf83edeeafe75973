package util

// Stack is a LIFO of values. The zero value is an empty stack ready to use.
type Stack[A any] struct {
	items []A
}

func (s *Stack[A]) Push(v A) {
	s.items = append(s.items, v)
}

func (s *Stack[A]) Pop() (ret A, ok bool) {
	if len(s.items) == 0 {
		return ret, false
	}
	last := len(s.items) - 1
	ret = s.items[last]
	s.items = s.items[:last]
	return ret, true
}

func (s *Stack[A]) Peek() (ret A, ok bool) {
	if len(s.items) == 0 {
		return ret, false
	}
	return s.items[len(s.items)-1], true
}

// At returns the element pushed i-th, counting from the bottom of the stack
func (s *Stack[A]) At(i int) (ret A, ok bool) {
	if i < 0 || i >= len(s.items) {
		return ret, false
	}
	return s.items[i], true
}

func (s *Stack[A]) Len() int {
	return len(s.items)
}

func (s *Stack[A]) PopAll() []A {
	items := s.items
	s.items = nil
	return items
}
