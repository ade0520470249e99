package rtlil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSigMapConnections(t *testing.T) {
	m := NewModule("top")
	a := m.AddWire("a", 2)
	b := m.AddWire("b", 2)
	c := m.AddWire("c", 2)

	m.Connect(S(a), S(b))
	m.Connect(S(b), S(c))

	sm := NewSigMap(m)
	require.True(t, sm.Apply(S(a)).Equal(sm.Apply(S(c))), "aliases must share a representative")
	require.True(t, sm.Apply(S(b)).Equal(sm.Apply(S(c))))
}

func TestSigMapConstantsWin(t *testing.T) {
	m := NewModule("top")
	a := m.AddWire("a", 2)
	m.Connect(S(a), C(S0, S1))

	sm := NewSigMap(m)
	require.True(t, sm.Apply(S(a)).Equal(C(S0, S1)))

	// Adding a wire alias onto a constant-backed net keeps the
	// constant as representative.
	b := m.AddWire("b", 2)
	sm.Add(S(b), S(a))
	require.True(t, sm.Apply(S(b)).Equal(C(S0, S1)))
}

func TestSigMapCopyIsIndependent(t *testing.T) {
	m := NewModule("top")
	a := m.AddWire("a", 1)
	b := m.AddWire("b", 1)

	sm := NewSigMap(m)
	cp := sm.Copy()
	cp.Add(S(a), S(b))

	require.Equal(t, Bit(b, 0), cp.Bit(Bit(a, 0)))
	require.Equal(t, Bit(a, 0), sm.Bit(Bit(a, 0)), "copy must not leak into the original")
}

// TestSigMapXmuxPattern mirrors how the pass builds its don't-care
// skipping map: the output of a mux with an undefined input aliases
// the other input.
func TestSigMapXmuxPattern(t *testing.T) {
	m := NewModule("top")
	addr := m.AddWire("addr", 2)
	muxy := m.AddWire("muxy", 2)
	sel := m.AddWire("sel", 1)
	m.AddMuxCell(Repeat(Sx, 2), S(addr), SigSpec{Bit(sel, 0)}, S(muxy))

	sm := NewSigMap(m)
	for _, cell := range m.CellsSorted() {
		if cell.Type != TypeMux {
			continue
		}
		sigA := sm.Apply(cell.Port(PortA))
		sigB := sm.Apply(cell.Port(PortB))
		if sigA.IsFullyUndef() {
			sm.Add(cell.Port(PortY), sigB)
		} else if sigB.IsFullyUndef() {
			sm.Add(cell.Port(PortY), sigA)
		}
	}

	require.True(t, sm.Apply(S(muxy)).Equal(S(addr)),
		"mux output must alias the defined input")
}
