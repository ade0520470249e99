// Package rtlil provides the gate-level netlist representation the
// memory-share pass operates on: multi-bit signals over named wires and
// constant logic states, primitive cells with typed parameters, and the
// module/design containers that own them.
//
// The representation is deliberately compact. Cell types form a closed
// tagged enum (see celltypes.go) with an extern escape hatch for cells the
// pass only needs to walk around, and all signal equality is structural.
package rtlil

import (
	"fmt"
	"sort"
)

// State is a constant logic value.
type State uint8

const (
	S0 State = iota // logic low
	S1              // logic high
	Sx              // undefined / don't care
	Sz              // high impedance
)

// String returns the canonical single-character rendering of the state.
func (s State) String() string {
	switch s {
	case S0:
		return "0"
	case S1:
		return "1"
	case Sx:
		return "x"
	case Sz:
		return "z"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Wire is a named bundle of bits inside a module. Wires are created and
// owned by their module; a *Wire is only meaningful together with it.
type Wire struct {
	Name       string
	Width      int
	PortInput  bool
	PortOutput bool
}

// SigBit is an atomic wire reference: either one bit of a named wire
// (Wire != nil) or a constant logic state (Wire == nil). SigBit is
// comparable and usable as a map key; equality is structural.
type SigBit struct {
	Wire   *Wire
	Offset int
	State  State
}

// IsConst reports whether the bit is a constant logic value.
func (b SigBit) IsConst() bool { return b.Wire == nil }

// Is reports whether the bit is the given constant state.
func (b SigBit) Is(s State) bool { return b.Wire == nil && b.State == s }

// Key returns a stable textual key for the bit, unique within a module.
func (b SigBit) Key() string {
	if b.Wire == nil {
		return b.State.String()
	}
	return fmt.Sprintf("%s[%d]", b.Wire.Name, b.Offset)
}

// SigSpec is an ordered sequence of signal bits; its width is its length.
type SigSpec []SigBit

// S returns the full signal of a wire, LSB first.
func S(w *Wire) SigSpec {
	sig := make(SigSpec, w.Width)
	for i := range sig {
		sig[i] = SigBit{Wire: w, Offset: i}
	}
	return sig
}

// Bit returns a single-bit signal referencing one bit of a wire.
func Bit(w *Wire, offset int) SigBit {
	return SigBit{Wire: w, Offset: offset}
}

// C builds a constant signal from the given states, LSB first.
func C(states ...State) SigSpec {
	sig := make(SigSpec, len(states))
	for i, s := range states {
		sig[i] = SigBit{State: s}
	}
	return sig
}

// Repeat builds a constant signal of the given width with every bit set
// to the same state.
func Repeat(s State, width int) SigSpec {
	sig := make(SigSpec, width)
	for i := range sig {
		sig[i] = SigBit{State: s}
	}
	return sig
}

// Copy returns an independent copy of the signal.
func (s SigSpec) Copy() SigSpec {
	out := make(SigSpec, len(s))
	copy(out, s)
	return out
}

// Equal reports structural equality of two signals.
func (s SigSpec) Equal(other SigSpec) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// IsFullyUndef reports whether every bit is the constant x or z.
func (s SigSpec) IsFullyUndef() bool {
	for _, b := range s {
		if b.Wire != nil || (b.State != Sx && b.State != Sz) {
			return false
		}
	}
	return len(s) > 0
}

// IsFullyConst reports whether every bit is a constant.
func (s SigSpec) IsFullyConst() bool {
	for _, b := range s {
		if b.Wire != nil {
			return false
		}
	}
	return true
}

// Key returns a stable textual key for the signal, suitable for use as a
// map key where SigSpec itself cannot be one.
func (s SigSpec) Key() string {
	key := make([]byte, 0, len(s)*8)
	for i, b := range s {
		if i > 0 {
			key = append(key, ',')
		}
		key = append(key, b.Key()...)
	}
	return string(key)
}

// Parameter names used by memory port cells.
const (
	ParamMemID       = "MEMID"
	ParamClkEnable   = "CLK_ENABLE"
	ParamClkPolarity = "CLK_POLARITY"
	ParamPriority    = "PRIORITY"
)

// Param is a typed cell parameter: an integer or a string.
type Param struct {
	IsString bool
	Int      int
	Str      string
}

// IntParam builds an integer parameter.
func IntParam(v int) Param { return Param{Int: v} }

// BoolParam builds an integer parameter from a bool.
func BoolParam(v bool) Param {
	if v {
		return Param{Int: 1}
	}
	return Param{Int: 0}
}

// StrParam builds a string parameter.
func StrParam(v string) Param { return Param{IsString: true, Str: v} }

// Cell is a named instance of a primitive type. Connections map port
// names to signals; parameters hold typed constants.
type Cell struct {
	Name        string
	Type        CellType
	ExternName  string // primitive name for TypeExtern cells
	Connections map[PortID]SigSpec
	Parameters  map[string]Param
}

// Port returns the signal connected to the named port. A missing
// connection is a contract violation and panics.
func (c *Cell) Port(name PortID) SigSpec {
	sig, ok := c.Connections[name]
	if !ok {
		panic(fmt.Sprintf("rtlil: cell %s (%v) has no %s connection", c.Name, c.Type, name))
	}
	return sig
}

// SetPort replaces the signal connected to the named port.
func (c *Cell) SetPort(name PortID, sig SigSpec) {
	c.Connections[name] = sig
}

// ParamInt returns an integer parameter. A missing parameter is a
// contract violation and panics.
func (c *Cell) ParamInt(name string) int {
	p, ok := c.Parameters[name]
	if !ok || p.IsString {
		panic(fmt.Sprintf("rtlil: cell %s (%v) has no integer parameter %s", c.Name, c.Type, name))
	}
	return p.Int
}

// ParamBool returns an integer parameter interpreted as a bool.
func (c *Cell) ParamBool(name string) bool { return c.ParamInt(name) != 0 }

// ParamStr returns a string parameter. A missing parameter is a
// contract violation and panics.
func (c *Cell) ParamStr(name string) string {
	p, ok := c.Parameters[name]
	if !ok || !p.IsString {
		panic(fmt.Sprintf("rtlil: cell %s (%v) has no string parameter %s", c.Name, c.Type, name))
	}
	return p.Str
}

// MemID returns the memory identifier of a memrd/memwr cell.
func (c *Cell) MemID() string { return c.ParamStr(ParamMemID) }

// ClkEnable reports whether a memory port is clocked.
func (c *Cell) ClkEnable() bool { return c.ParamBool(ParamClkEnable) }

// ClkPolarity reports the clock polarity of a clocked memory port.
func (c *Cell) ClkPolarity() bool { return c.ParamBool(ParamClkPolarity) }

// Priority returns the write priority of a memwr cell.
func (c *Cell) Priority() int { return c.ParamInt(ParamPriority) }

// Conn is a connection between two equal-width signals; every bit of
// From is an alias of the corresponding bit of To.
type Conn struct {
	From SigSpec
	To   SigSpec
}

// Module is a netlist: wires, cells and alias connections. The module
// exclusively owns its wires and cells.
type Module struct {
	Name        string
	Wires       map[string]*Wire
	Cells       map[string]*Cell
	Connections []Conn

	autoIdx int
}

// NewModule creates an empty module.
func NewModule(name string) *Module {
	return &Module{
		Name:  name,
		Wires: make(map[string]*Wire),
		Cells: make(map[string]*Cell),
	}
}

// AddWire creates a named wire of the given width.
func (m *Module) AddWire(name string, width int) *Wire {
	if _, ok := m.Wires[name]; ok {
		panic(fmt.Sprintf("rtlil: duplicate wire %s in module %s", name, m.Name))
	}
	w := &Wire{Name: name, Width: width}
	m.Wires[name] = w
	return w
}

// NewWire creates an autonamed wire of the given width.
func (m *Module) NewWire(width int) *Wire {
	return m.AddWire(m.autoName(), width)
}

// AddCell adds a cell built by the caller. The name must be unique.
func (m *Module) AddCell(cell *Cell) *Cell {
	if _, ok := m.Cells[cell.Name]; ok {
		panic(fmt.Sprintf("rtlil: duplicate cell %s in module %s", cell.Name, m.Name))
	}
	if cell.Connections == nil {
		cell.Connections = make(map[PortID]SigSpec)
	}
	if cell.Parameters == nil {
		cell.Parameters = make(map[string]Param)
	}
	m.Cells[cell.Name] = cell
	return cell
}

// RemoveCell detaches a cell from the module. Removing an unknown name
// is a no-op.
func (m *Module) RemoveCell(name string) {
	delete(m.Cells, name)
}

// Connect records an alias between two equal-width signals.
func (m *Module) Connect(from, to SigSpec) {
	if len(from) != len(to) {
		panic(fmt.Sprintf("rtlil: connection width mismatch in module %s: %d vs %d", m.Name, len(from), len(to)))
	}
	m.Connections = append(m.Connections, Conn{From: from, To: to})
}

// CellsSorted returns the module's cells ordered by name. Iteration
// over netlist cells always goes through this to keep the pass
// deterministic.
func (m *Module) CellsSorted() []*Cell {
	names := make([]string, 0, len(m.Cells))
	for name := range m.Cells {
		names = append(names, name)
	}
	sort.Strings(names)
	cells := make([]*Cell, len(names))
	for i, name := range names {
		cells[i] = m.Cells[name]
	}
	return cells
}

// WiresSorted returns the module's wires ordered by name.
func (m *Module) WiresSorted() []*Wire {
	names := make([]string, 0, len(m.Wires))
	for name := range m.Wires {
		names = append(names, name)
	}
	sort.Strings(names)
	wires := make([]*Wire, len(names))
	for i, name := range names {
		wires[i] = m.Wires[name]
	}
	return wires
}

func (m *Module) autoName() string {
	m.autoIdx++
	return fmt.Sprintf("$memshare$%d", m.autoIdx)
}

// Design is a collection of modules.
type Design struct {
	Modules map[string]*Module
}

// NewDesign creates an empty design.
func NewDesign() *Design {
	return &Design{Modules: make(map[string]*Module)}
}

// AddModule creates and registers an empty module.
func (d *Design) AddModule(name string) *Module {
	if _, ok := d.Modules[name]; ok {
		panic(fmt.Sprintf("rtlil: duplicate module %s", name))
	}
	m := NewModule(name)
	d.Modules[name] = m
	return m
}

// ModulesSorted returns the design's modules ordered by name.
func (d *Design) ModulesSorted() []*Module {
	names := make([]string, 0, len(d.Modules))
	for name := range d.Modules {
		names = append(names, name)
	}
	sort.Strings(names)
	mods := make([]*Module, len(names))
	for i, name := range names {
		mods[i] = d.Modules[name]
	}
	return mods
}
