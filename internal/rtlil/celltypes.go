package rtlil

import "fmt"

// PortID names a cell port.
type PortID string

// Port names used by the primitive cell library.
const (
	PortA    PortID = "A"
	PortB    PortID = "B"
	PortS    PortID = "S"
	PortY    PortID = "Y"
	PortD    PortID = "D"
	PortQ    PortID = "Q"
	PortClk  PortID = "CLK"
	PortEn   PortID = "EN"
	PortAddr PortID = "ADDR"
	PortData PortID = "DATA"
)

// CellType is the closed tagged enum of primitive cell types. Cells of
// types this library does not know are represented as TypeExtern with
// the original name carried on the cell.
type CellType uint8

const (
	TypeExtern CellType = iota

	// Unary ops: A -> Y.
	TypeNot
	TypeLogicNot
	TypeReduceAnd
	TypeReduceOr
	TypeReduceXor

	// Binary ops: A, B -> Y.
	TypeAnd
	TypeOr
	TypeXor
	TypeXnor
	TypeLogicAnd
	TypeLogicOr
	TypeEq
	TypeNe
	TypeLt
	TypeLe
	TypeGt
	TypeGe
	TypeAdd
	TypeSub
	TypeMul
	TypeDiv
	TypeMod
	TypePow
	TypeShl
	TypeShr
	TypeSshl
	TypeSshr

	// Multiplexers: A, B, S -> Y.
	TypeMux
	TypePmux

	// Sequential: CLK, D -> Q.
	TypeDff

	// Memory ports.
	TypeMemRd
	TypeMemWr
)

var cellTypeNames = map[CellType]string{
	TypeNot:       "$not",
	TypeLogicNot:  "$logic_not",
	TypeReduceAnd: "$reduce_and",
	TypeReduceOr:  "$reduce_or",
	TypeReduceXor: "$reduce_xor",
	TypeAnd:       "$and",
	TypeOr:        "$or",
	TypeXor:       "$xor",
	TypeXnor:      "$xnor",
	TypeLogicAnd:  "$logic_and",
	TypeLogicOr:   "$logic_or",
	TypeEq:        "$eq",
	TypeNe:        "$ne",
	TypeLt:        "$lt",
	TypeLe:        "$le",
	TypeGt:        "$gt",
	TypeGe:        "$ge",
	TypeAdd:       "$add",
	TypeSub:       "$sub",
	TypeMul:       "$mul",
	TypeDiv:       "$div",
	TypeMod:       "$mod",
	TypePow:       "$pow",
	TypeShl:       "$shl",
	TypeShr:       "$shr",
	TypeSshl:      "$sshl",
	TypeSshr:      "$sshr",
	TypeMux:       "$mux",
	TypePmux:      "$pmux",
	TypeDff:       "$dff",
	TypeMemRd:     "$memrd",
	TypeMemWr:     "$memwr",
}

var cellTypeByName = func() map[string]CellType {
	m := make(map[string]CellType, len(cellTypeNames))
	for t, name := range cellTypeNames {
		m[name] = t
	}
	return m
}()

// String returns the canonical primitive name of the type.
func (t CellType) String() string {
	if name, ok := cellTypeNames[t]; ok {
		return name
	}
	if t == TypeExtern {
		return "$extern"
	}
	return fmt.Sprintf("CellType(%d)", uint8(t))
}

// ParseCellType maps a primitive name back to its type. Unknown names
// report ok == false; callers represent those as TypeExtern.
func ParseCellType(name string) (CellType, bool) {
	t, ok := cellTypeByName[name]
	return t, ok
}

// TypeName returns the primitive name of a cell, falling back to the
// extern name for extern cells.
func (c *Cell) TypeName() string {
	if c.Type == TypeExtern {
		return c.ExternName
	}
	return c.Type.String()
}

// OutputPorts returns the output port names of the type. Extern cells
// have no known outputs.
func (t CellType) OutputPorts() []PortID {
	switch t {
	case TypeMemWr, TypeExtern:
		return nil
	case TypeDff:
		return []PortID{PortQ}
	case TypeMemRd:
		return []PortID{PortData}
	default:
		return []PortID{PortY}
	}
}

// IsOutputPort reports whether the named port is an output of the type.
func (t CellType) IsOutputPort(name PortID) bool {
	for _, p := range t.OutputPorts() {
		if p == name {
			return true
		}
	}
	return false
}

// CellTypes is a set of cell types, used to restrict netlist walks to
// a known subset of primitives.
type CellTypes struct {
	types map[CellType]bool
}

// NewCellTypes creates an empty type set.
func NewCellTypes() *CellTypes {
	return &CellTypes{types: make(map[CellType]bool)}
}

// EvaluableTypes returns the set of combinational primitives whose
// Boolean semantics can be encoded bit-exactly (everything except
// sequential cells, memory ports and extern cells).
func EvaluableTypes() *CellTypes {
	ct := NewCellTypes()
	for _, t := range []CellType{
		TypeNot, TypeLogicNot, TypeReduceAnd, TypeReduceOr, TypeReduceXor,
		TypeAnd, TypeOr, TypeXor, TypeXnor, TypeLogicAnd, TypeLogicOr,
		TypeEq, TypeNe, TypeLt, TypeLe, TypeGt, TypeGe,
		TypeAdd, TypeSub, TypeMul, TypeDiv, TypeMod, TypePow,
		TypeShl, TypeShr, TypeSshl, TypeSshr,
		TypeMux, TypePmux,
	} {
		ct.Add(t)
	}
	return ct
}

// Add inserts a type into the set.
func (ct *CellTypes) Add(t CellType) { ct.types[t] = true }

// Remove deletes a type from the set.
func (ct *CellTypes) Remove(t CellType) { delete(ct.types, t) }

// Known reports whether the type is in the set.
func (ct *CellTypes) Known(t CellType) bool { return ct.types[t] }
