package rtlil

import "fmt"

// Gate builders. Each builder instantiates one primitive cell with an
// autonamed output wire and returns the output signal. Synthesized
// cells and wires share the pass prefix so they are recognizable in
// dumps.

func (m *Module) addUnary(t CellType, a SigSpec, outWidth int) SigSpec {
	y := S(m.NewWire(outWidth))
	m.AddCell(&Cell{
		Name:        m.autoName(),
		Type:        t,
		Connections: map[PortID]SigSpec{PortA: a.Copy(), PortY: y},
	})
	return y
}

func (m *Module) addBinary(t CellType, a, b SigSpec, outWidth int) SigSpec {
	if len(a) != len(b) {
		panic(fmt.Sprintf("rtlil: %v operand width mismatch: %d vs %d", t, len(a), len(b)))
	}
	y := S(m.NewWire(outWidth))
	m.AddCell(&Cell{
		Name:        m.autoName(),
		Type:        t,
		Connections: map[PortID]SigSpec{PortA: a.Copy(), PortB: b.Copy(), PortY: y},
	})
	return y
}

// Not returns the bit-wise complement of a.
func (m *Module) Not(a SigSpec) SigSpec { return m.addUnary(TypeNot, a, len(a)) }

// And returns the bit-wise AND of two equal-width signals.
func (m *Module) And(a, b SigSpec) SigSpec { return m.addBinary(TypeAnd, a, b, len(a)) }

// Or returns the bit-wise OR of two equal-width signals.
func (m *Module) Or(a, b SigSpec) SigSpec { return m.addBinary(TypeOr, a, b, len(a)) }

// Xor returns the bit-wise XOR of two equal-width signals.
func (m *Module) Xor(a, b SigSpec) SigSpec { return m.addBinary(TypeXor, a, b, len(a)) }

// Eq returns the single-bit equality of two equal-width signals.
func (m *Module) Eq(a, b SigSpec) SigBit { return m.addBinary(TypeEq, a, b, 1)[0] }

// Ne returns the single-bit inequality of two equal-width signals.
func (m *Module) Ne(a, b SigSpec) SigBit { return m.addBinary(TypeNe, a, b, 1)[0] }

// ReduceAnd returns the AND reduction of a signal to one bit.
func (m *Module) ReduceAnd(a SigSpec) SigBit { return m.addUnary(TypeReduceAnd, a, 1)[0] }

// ReduceOr returns the OR reduction of a signal to one bit.
func (m *Module) ReduceOr(a SigSpec) SigBit { return m.addUnary(TypeReduceOr, a, 1)[0] }

// Mux returns s ? b : a for two equal-width signals.
func (m *Module) Mux(a, b SigSpec, s SigBit) SigSpec {
	if len(a) != len(b) {
		panic(fmt.Sprintf("rtlil: mux operand width mismatch: %d vs %d", len(a), len(b)))
	}
	y := S(m.NewWire(len(a)))
	m.AddMuxCell(a, b, SigSpec{s}, y)
	return y
}

// AddMuxCell instantiates a mux with a caller-provided output signal.
// Used where the output wire is shared by a bit-grouping table.
func (m *Module) AddMuxCell(a, b, s, y SigSpec) *Cell {
	if len(a) != len(y) || len(b) != len(a)*len(s) {
		panic(fmt.Sprintf("rtlil: mux connection width mismatch: A=%d B=%d S=%d Y=%d",
			len(a), len(b), len(s), len(y)))
	}
	t := TypeMux
	if len(s) != 1 {
		t = TypePmux
	}
	return m.AddCell(&Cell{
		Name: m.autoName(),
		Type: t,
		Connections: map[PortID]SigSpec{
			PortA: a.Copy(), PortB: b.Copy(), PortS: s.Copy(), PortY: y.Copy(),
		},
	})
}

// AddMemRd instantiates a memory read port.
func (m *Module) AddMemRd(name, memid string, clkEnable, clkPolarity bool, clk, addr, data, en SigSpec) *Cell {
	return m.AddCell(&Cell{
		Name: name,
		Type: TypeMemRd,
		Connections: map[PortID]SigSpec{
			PortClk: clk.Copy(), PortAddr: addr.Copy(), PortData: data.Copy(), PortEn: en.Copy(),
		},
		Parameters: map[string]Param{
			ParamMemID:       StrParam(memid),
			ParamClkEnable:   BoolParam(clkEnable),
			ParamClkPolarity: BoolParam(clkPolarity),
			ParamPriority:    IntParam(0),
		},
	})
}

// AddMemWr instantiates a memory write port. The enable signal carries
// one bit per data bit.
func (m *Module) AddMemWr(name, memid string, clkEnable, clkPolarity bool, priority int, clk, addr, data, en SigSpec) *Cell {
	if len(en) != len(data) {
		panic(fmt.Sprintf("rtlil: memwr %s EN width %d does not match DATA width %d", name, len(en), len(data)))
	}
	return m.AddCell(&Cell{
		Name: name,
		Type: TypeMemWr,
		Connections: map[PortID]SigSpec{
			PortClk: clk.Copy(), PortAddr: addr.Copy(), PortData: data.Copy(), PortEn: en.Copy(),
		},
		Parameters: map[string]Param{
			ParamMemID:       StrParam(memid),
			ParamClkEnable:   BoolParam(clkEnable),
			ParamClkPolarity: BoolParam(clkPolarity),
			ParamPriority:    IntParam(priority),
		},
	})
}
