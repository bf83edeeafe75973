package mir

import (
	"fmt"
	"strconv"
)

// Constant is a literal that can appear in an Operand
type Constant struct {
	IsBool bool
	Int    int64
	Bool   bool
}

func IntConst(n int64) Constant { return Constant{Int: n} }
func BoolConst(b bool) Constant { return Constant{IsBool: true, Bool: b} }

func (c Constant) IsTrue() bool { return c.IsBool && c.Bool }

func (c Constant) String() string {
	if c.IsBool {
		return strconv.FormatBool(c.Bool)
	}
	return strconv.FormatInt(c.Int, 10)
}

type OperandKind uint8

const (
	OperandCopy OperandKind = iota
	OperandMove
	OperandConstant
)

type Operand struct {
	Kind OperandKind
	// Place is set for OperandCopy and OperandMove
	Place Place
	// Constant is set for OperandConstant
	Constant Constant
}

func Copy(p Place) Operand      { return Operand{Kind: OperandCopy, Place: p} }
func Move(p Place) Operand      { return Operand{Kind: OperandMove, Place: p} }
func Const(c Constant) Operand  { return Operand{Kind: OperandConstant, Constant: c} }
func (o Operand) IsPlace() bool { return o.Kind != OperandConstant }

func (o Operand) String() string {
	switch o.Kind {
	case OperandCopy:
		return fmt.Sprintf("copy %s", o.Place)
	case OperandMove:
		return fmt.Sprintf("move %s", o.Place)
	default:
		return o.Constant.String()
	}
}
