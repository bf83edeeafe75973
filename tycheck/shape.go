package tycheck

import (
	"fmt"
	"github.com/cottand/refine/mir"
	"github.com/cottand/refine/ty"
	"strings"
)

type ShapeKind uint8

const (
	ShapeBase ShapeKind = iota
	ShapeTuple
	ShapeRef
)

// Shape is the unrefined type of a local, as established by base type checking
type Shape struct {
	Kind    ShapeKind
	Base    ty.BaseTy
	Fields  []Shape
	Borrow  mir.BorrowKind
	Pointee *Shape
}

func BaseShape(base ty.BaseTy) Shape { return Shape{Kind: ShapeBase, Base: base} }

func TupleShape(fields ...Shape) Shape { return Shape{Kind: ShapeTuple, Fields: fields} }

func RefShape(kind mir.BorrowKind, pointee Shape) Shape {
	return Shape{Kind: ShapeRef, Borrow: kind, Pointee: &pointee}
}

func (s Shape) Size() int {
	switch s.Kind {
	case ShapeTuple:
		size := 0
		for _, f := range s.Fields {
			size += f.Size()
		}
		return size
	case ShapeRef:
		return 8
	default:
		return s.Base.Size()
	}
}

func (s Shape) String() string {
	switch s.Kind {
	case ShapeTuple:
		fields := make([]string, len(s.Fields))
		for i, f := range s.Fields {
			fields[i] = f.String()
		}
		return fmt.Sprintf("(%s)", strings.Join(fields, ", "))
	case ShapeRef:
		if s.Borrow == mir.Mut {
			return fmt.Sprintf("&mut %s", s.Pointee)
		}
		return fmt.Sprintf("&%s", s.Pointee)
	default:
		return s.Base.String()
	}
}
