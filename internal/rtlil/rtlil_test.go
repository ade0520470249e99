package rtlil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSigSpecBasics(t *testing.T) {
	m := NewModule("top")
	w := m.AddWire("w", 3)

	sig := S(w)
	require.Len(t, sig, 3)
	require.Equal(t, "w[0],w[1],w[2]", sig.Key())
	require.True(t, sig.Equal(SigSpec{Bit(w, 0), Bit(w, 1), Bit(w, 2)}))
	require.False(t, sig.Equal(sig[:2]))

	require.True(t, Repeat(Sx, 2).IsFullyUndef())
	require.True(t, C(Sx, Sz).IsFullyUndef())
	require.False(t, C(Sx, S0).IsFullyUndef())
	require.True(t, C(S0, S1).IsFullyConst())
	require.False(t, sig.IsFullyConst())

	cp := sig.Copy()
	cp[0] = SigBit{State: S1}
	require.Equal(t, Bit(w, 0), sig[0], "Copy must be independent")
}

func TestCellParams(t *testing.T) {
	m := NewModule("top")
	clk := m.AddWire("clk", 1)
	addr := m.AddWire("addr", 2)
	data := m.AddWire("data", 4)

	wr := m.AddMemWr("wr", "mem", true, false, 7, S(clk), S(addr), S(data), Repeat(S1, 4))
	require.Equal(t, "mem", wr.MemID())
	require.True(t, wr.ClkEnable())
	require.False(t, wr.ClkPolarity())
	require.Equal(t, 7, wr.Priority())

	require.Panics(t, func() { wr.ParamInt("NO_SUCH") })
	require.Panics(t, func() { wr.ParamStr(ParamPriority) })
	require.Panics(t, func() { wr.Port("NO_SUCH") })
}

func TestBuilders(t *testing.T) {
	m := NewModule("top")
	a := m.AddWire("a", 4)
	b := m.AddWire("b", 4)

	y := m.And(S(a), S(b))
	require.Len(t, y, 4)

	bit := m.Eq(S(a), S(b))
	require.False(t, bit.IsConst())

	red := m.ReduceOr(S(a))
	require.False(t, red.IsConst())

	muxed := m.Mux(S(a), S(b), bit)
	require.Len(t, muxed, 4)

	require.Panics(t, func() { m.And(S(a), S(b)[:2]) }, "width mismatch must be rejected")

	// One cell per builder call, all with distinct autonames.
	require.Len(t, m.Cells, 4)
	require.Len(t, cellsByType(m, TypeAnd), 1)
	require.Len(t, cellsByType(m, TypeEq), 1)
	require.Len(t, cellsByType(m, TypeReduceOr), 1)
	require.Len(t, cellsByType(m, TypeMux), 1)
}

func TestMemWrWidthCheck(t *testing.T) {
	m := NewModule("top")
	clk := m.AddWire("clk", 1)
	addr := m.AddWire("addr", 2)
	data := m.AddWire("data", 4)

	require.Panics(t, func() {
		m.AddMemWr("wr", "mem", true, true, 0, S(clk), S(addr), S(data), Repeat(S1, 3))
	})
}

func TestCellTypeNames(t *testing.T) {
	tt, ok := ParseCellType("$memwr")
	require.True(t, ok)
	require.Equal(t, TypeMemWr, tt)

	_, ok = ParseCellType("$frobnicate")
	require.False(t, ok)

	require.Equal(t, "$mux", TypeMux.String())
	require.Equal(t, []PortID{PortData}, TypeMemRd.OutputPorts())
	require.Nil(t, TypeMemWr.OutputPorts())
	require.True(t, TypeAnd.IsOutputPort(PortY))
	require.False(t, TypeAnd.IsOutputPort(PortA))
}

func cellsByType(m *Module, t CellType) []*Cell {
	var out []*Cell
	for _, cell := range m.Cells {
		if cell.Type == t {
			out = append(out, cell)
		}
	}
	return out
}
