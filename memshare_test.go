package memshare

import (
	"testing"

	"github.com/opd-ai/go-memshare/internal/rtlil"
)

// Test helpers shared by the stage tests: port lookup and a small
// ternary-logic evaluator used to check that synthesized enable/data
// logic has the intended semantics.

// memWrPorts returns the surviving write ports of a memory in
// canonical order.
func memWrPorts(m *rtlil.Module, memid string) []*rtlil.Cell {
	var out []*rtlil.Cell
	for _, cell := range m.CellsSorted() {
		if cell.Type == rtlil.TypeMemWr && cell.MemID() == memid {
			out = append(out, cell)
		}
	}
	sortMemPorts(out)
	return out
}

func cellsOfType(m *rtlil.Module, t rtlil.CellType) []*rtlil.Cell {
	var out []*rtlil.Cell
	for _, cell := range m.CellsSorted() {
		if cell.Type == t {
			out = append(out, cell)
		}
	}
	return out
}

// evalCtx evaluates combinational signals of a module under a given
// input assignment, with Kleene three-valued semantics for x.
type evalCtx struct {
	t       *testing.T
	drivers map[rtlil.SigBit]evalDriver
	inputs  map[rtlil.SigBit]rtlil.State
	memo    map[rtlil.SigBit]rtlil.State
}

type evalDriver struct {
	cell   *rtlil.Cell
	offset int
}

func newEval(t *testing.T, m *rtlil.Module) *evalCtx {
	t.Helper()
	ctx := &evalCtx{
		t:       t,
		drivers: make(map[rtlil.SigBit]evalDriver),
		inputs:  make(map[rtlil.SigBit]rtlil.State),
		memo:    make(map[rtlil.SigBit]rtlil.State),
	}
	for _, cell := range m.CellsSorted() {
		for _, port := range cell.Type.OutputPorts() {
			sig, ok := cell.Connections[port]
			if !ok {
				continue
			}
			for i, b := range sig {
				if !b.IsConst() {
					ctx.drivers[b] = evalDriver{cell: cell, offset: i}
				}
			}
		}
	}
	return ctx
}

func (c *evalCtx) set(w *rtlil.Wire, offset int, v rtlil.State) {
	c.inputs[rtlil.Bit(w, offset)] = v
	c.memo = make(map[rtlil.SigBit]rtlil.State)
}

func (c *evalCtx) setAll(w *rtlil.Wire, vals ...rtlil.State) {
	for i, v := range vals {
		c.set(w, i, v)
	}
}

func ternNot(a rtlil.State) rtlil.State {
	switch a {
	case rtlil.S0:
		return rtlil.S1
	case rtlil.S1:
		return rtlil.S0
	}
	return rtlil.Sx
}

func ternAnd(a, b rtlil.State) rtlil.State {
	if a == rtlil.S0 || b == rtlil.S0 {
		return rtlil.S0
	}
	if a == rtlil.S1 && b == rtlil.S1 {
		return rtlil.S1
	}
	return rtlil.Sx
}

func ternOr(a, b rtlil.State) rtlil.State {
	if a == rtlil.S1 || b == rtlil.S1 {
		return rtlil.S1
	}
	if a == rtlil.S0 && b == rtlil.S0 {
		return rtlil.S0
	}
	return rtlil.Sx
}

func ternXor(a, b rtlil.State) rtlil.State {
	if a == rtlil.Sx || a == rtlil.Sz || b == rtlil.Sx || b == rtlil.Sz {
		return rtlil.Sx
	}
	if a == b {
		return rtlil.S0
	}
	return rtlil.S1
}

func (c *evalCtx) eval(b rtlil.SigBit) rtlil.State {
	if b.IsConst() {
		if b.State == rtlil.Sz {
			return rtlil.Sx
		}
		return b.State
	}
	if v, ok := c.inputs[b]; ok {
		return v
	}
	if v, ok := c.memo[b]; ok {
		return v
	}
	drv, ok := c.drivers[b]
	if !ok {
		return rtlil.Sx
	}
	v := c.evalCell(drv.cell, drv.offset)
	c.memo[b] = v
	return v
}

func (c *evalCtx) evalSig(sig rtlil.SigSpec) []rtlil.State {
	out := make([]rtlil.State, len(sig))
	for i, b := range sig {
		out[i] = c.eval(b)
	}
	return out
}

func (c *evalCtx) evalCell(cell *rtlil.Cell, offset int) rtlil.State {
	switch cell.Type {
	case rtlil.TypeNot:
		return ternNot(c.eval(cell.Port(rtlil.PortA)[offset]))

	case rtlil.TypeAnd:
		return ternAnd(c.eval(cell.Port(rtlil.PortA)[offset]), c.eval(cell.Port(rtlil.PortB)[offset]))

	case rtlil.TypeOr:
		return ternOr(c.eval(cell.Port(rtlil.PortA)[offset]), c.eval(cell.Port(rtlil.PortB)[offset]))

	case rtlil.TypeXor:
		return ternXor(c.eval(cell.Port(rtlil.PortA)[offset]), c.eval(cell.Port(rtlil.PortB)[offset]))

	case rtlil.TypeMux, rtlil.TypePmux:
		a := cell.Port(rtlil.PortA)
		bb := cell.Port(rtlil.PortB)
		s := cell.Port(rtlil.PortS)
		out := c.eval(a[offset])
		for j := range s {
			alt := c.eval(bb[offset+j*len(a)])
			switch c.eval(s[j]) {
			case rtlil.S1:
				out = alt
			case rtlil.S0:
				// keep
			default:
				if out != alt {
					out = rtlil.Sx
				}
			}
		}
		return out

	case rtlil.TypeEq, rtlil.TypeNe:
		a := cell.Port(rtlil.PortA)
		bb := cell.Port(rtlil.PortB)
		eq := rtlil.S1
		for i := range a {
			va, vb := c.eval(a[i]), c.eval(bb[i])
			if va == rtlil.Sx || vb == rtlil.Sx {
				if eq != rtlil.S0 {
					eq = rtlil.Sx
				}
				continue
			}
			if va != vb {
				eq = rtlil.S0
			}
		}
		if cell.Type == rtlil.TypeNe {
			return ternNot(eq)
		}
		return eq

	case rtlil.TypeReduceAnd:
		out := rtlil.S1
		for _, b := range cell.Port(rtlil.PortA) {
			out = ternAnd(out, c.eval(b))
		}
		return out

	case rtlil.TypeReduceOr:
		out := rtlil.S0
		for _, b := range cell.Port(rtlil.PortA) {
			out = ternOr(out, c.eval(b))
		}
		return out
	}

	c.t.Fatalf("evaluator: unsupported cell type %s", cell.TypeName())
	return rtlil.Sx
}

func boolState(v bool) rtlil.State {
	if v {
		return rtlil.S1
	}
	return rtlil.S0
}
