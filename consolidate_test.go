package memshare

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opd-ai/go-memshare/internal/rtlil"
)

// TestMergeDisjointBits: two ports to the same address with disjoint
// active bit ranges splice into one port without any new logic.
func TestMergeDisjointBits(t *testing.T) {
	m := rtlil.NewModule("top")
	clk := m.AddWire("clk", 1)
	clk.PortInput = true
	addr := m.AddWire("addr", 2)
	addr.PortInput = true
	d1 := m.AddWire("d1", 8)
	d1.PortInput = true
	d2 := m.AddWire("d2", 8)
	d2.PortInput = true
	e1 := m.AddWire("e1", 1)
	e1.PortInput = true
	e2 := m.AddWire("e2", 1)
	e2.PortInput = true

	en1 := rtlil.SigSpec{
		rtlil.Bit(e1, 0), rtlil.Bit(e1, 0), rtlil.Bit(e1, 0), rtlil.Bit(e1, 0),
		{State: rtlil.S0}, {State: rtlil.S0}, {State: rtlil.S0}, {State: rtlil.S0},
	}
	en2 := rtlil.SigSpec{
		{State: rtlil.S0}, {State: rtlil.S0}, {State: rtlil.S0}, {State: rtlil.S0},
		rtlil.Bit(e2, 0), rtlil.Bit(e2, 0), rtlil.Bit(e2, 0), rtlil.Bit(e2, 0),
	}

	m.AddMemWr("wr1", "mem", true, true, 1, rtlil.S(clk), rtlil.S(addr), rtlil.S(d1), en1)
	m.AddMemWr("wr2", "mem", true, true, 2, rtlil.S(clk), rtlil.S(addr), rtlil.S(d2), en2)

	ShareModule(m, Config{})

	ports := memWrPorts(m, "mem")
	require.Len(t, ports, 1, "ports to the same address must merge")
	merged := ports[0]

	require.True(t, merged.Port(rtlil.PortAddr).Equal(rtlil.S(addr)))

	wantEn := rtlil.SigSpec{
		rtlil.Bit(e1, 0), rtlil.Bit(e1, 0), rtlil.Bit(e1, 0), rtlil.Bit(e1, 0),
		rtlil.Bit(e2, 0), rtlil.Bit(e2, 0), rtlil.Bit(e2, 0), rtlil.Bit(e2, 0),
	}
	require.True(t, merged.Port(rtlil.PortEn).Equal(wantEn),
		"enable must splice the two group drivers, got %s", merged.Port(rtlil.PortEn).Key())

	wantData := append(rtlil.S(d1)[:4].Copy(), rtlil.S(d2)[4:]...)
	require.True(t, merged.Port(rtlil.PortData).Equal(wantData),
		"data must splice low nibble from port 1, high nibble from port 2")

	_, wr1Alive := m.Cells["wr1"]
	require.False(t, wr1Alive, "absorbed port must be deleted")
}

// TestMergeOverlappingBits: both ports write bit 0, so the merge builds
// priority logic: the later port wins, the earlier fills in, otherwise
// the bit is don't-care.
func TestMergeOverlappingBits(t *testing.T) {
	m := rtlil.NewModule("top")
	clk := m.AddWire("clk", 1)
	clk.PortInput = true
	addr := m.AddWire("addr", 2)
	addr.PortInput = true
	d1 := m.AddWire("d1", 1)
	d1.PortInput = true
	d2 := m.AddWire("d2", 1)
	d2.PortInput = true
	e1 := m.AddWire("e1", 1)
	e1.PortInput = true
	e2 := m.AddWire("e2", 1)
	e2.PortInput = true

	m.AddMemWr("wr1", "mem", true, true, 1, rtlil.S(clk), rtlil.S(addr), rtlil.S(d1), rtlil.S(e1))
	m.AddMemWr("wr2", "mem", true, true, 2, rtlil.S(clk), rtlil.S(addr), rtlil.S(d2), rtlil.S(e2))

	ShareModule(m, Config{})

	ports := memWrPorts(m, "mem")
	require.Len(t, ports, 1)
	merged := ports[0]

	en := merged.Port(rtlil.PortEn)
	data := merged.Port(rtlil.PortData)
	require.Len(t, en, 1)
	require.Len(t, data, 1)

	ev := newEval(t, m)
	for e1v := 0; e1v < 2; e1v++ {
		for e2v := 0; e2v < 2; e2v++ {
			for d1v := 0; d1v < 2; d1v++ {
				for d2v := 0; d2v < 2; d2v++ {
					ev.set(e1, 0, boolState(e1v == 1))
					ev.set(e2, 0, boolState(e2v == 1))
					ev.set(d1, 0, boolState(d1v == 1))
					ev.set(d2, 0, boolState(d2v == 1))

					wantEn := boolState(e1v == 1 || e2v == 1)
					require.Equal(t, wantEn, ev.eval(en[0]),
						"en mismatch at e1=%d e2=%d", e1v, e2v)

					got := ev.eval(data[0])
					switch {
					case e2v == 1:
						require.Equal(t, boolState(d2v == 1), got,
							"later port must win at e1=%d e2=%d d1=%d d2=%d", e1v, e2v, d1v, d2v)
					case e1v == 1:
						require.Equal(t, boolState(d1v == 1), got,
							"earlier port must fill in at e1=%d d1=%d d2=%d", e1v, d1v, d2v)
					}
				}
			}
		}
	}
}

// TestMergeWithInterveningPort: ports to A, B, A in priority order,
// where the middle port overlaps. Port 1's contribution must be masked
// out when the addresses collide and port 2 is active.
func TestMergeWithInterveningPort(t *testing.T) {
	m := rtlil.NewModule("top")
	clk := m.AddWire("clk", 1)
	clk.PortInput = true
	addrA := m.AddWire("addrA", 2)
	addrA.PortInput = true
	addrB := m.AddWire("addrB", 2)
	addrB.PortInput = true
	d1 := m.AddWire("d1", 1)
	d1.PortInput = true
	d2 := m.AddWire("d2", 1)
	d2.PortInput = true
	d3 := m.AddWire("d3", 1)
	d3.PortInput = true
	e1 := m.AddWire("e1", 1)
	e1.PortInput = true
	e2 := m.AddWire("e2", 1)
	e2.PortInput = true
	e3 := m.AddWire("e3", 1)
	e3.PortInput = true

	m.AddMemWr("wr1", "mem", true, true, 1, rtlil.S(clk), rtlil.S(addrA), rtlil.S(d1), rtlil.S(e1))
	m.AddMemWr("wr2", "mem", true, true, 2, rtlil.S(clk), rtlil.S(addrB), rtlil.S(d2), rtlil.S(e2))
	m.AddMemWr("wr3", "mem", true, true, 3, rtlil.S(clk), rtlil.S(addrA), rtlil.S(d3), rtlil.S(e3))

	ShareModule(m, Config{})

	ports := memWrPorts(m, "mem")
	require.Len(t, ports, 2, "only the two same-address ports merge")

	_, wr1Alive := m.Cells["wr1"]
	require.False(t, wr1Alive)

	merged := ports[1]
	require.True(t, merged.Port(rtlil.PortAddr).Equal(rtlil.S(addrA)))
	en := merged.Port(rtlil.PortEn)
	data := merged.Port(rtlil.PortData)

	ev := newEval(t, m)
	setCase := func(aA, aB [2]rtlil.State, e1v, e2v, e3v rtlil.State) {
		ev.setAll(addrA, aA[0], aA[1])
		ev.setAll(addrB, aB[0], aB[1])
		ev.set(e1, 0, e1v)
		ev.set(e2, 0, e2v)
		ev.set(e3, 0, e3v)
		ev.set(d1, 0, rtlil.S1)
		ev.set(d3, 0, rtlil.S0)
	}
	same := [2]rtlil.State{rtlil.S0, rtlil.S0}
	other := [2]rtlil.State{rtlil.S1, rtlil.S0}

	// Port 3 active: it wins outright.
	setCase(same, other, rtlil.S0, rtlil.S0, rtlil.S1)
	require.Equal(t, rtlil.S1, ev.eval(en[0]))
	require.Equal(t, rtlil.S0, ev.eval(data[0]))

	// Ports 1 and 2 active at different addresses: port 1's write
	// survives.
	setCase(same, other, rtlil.S1, rtlil.S1, rtlil.S0)
	require.Equal(t, rtlil.S1, ev.eval(en[0]))
	require.Equal(t, rtlil.S1, ev.eval(data[0]))

	// Port 1 active but port 2 writes the same address in between:
	// port 1's contribution is masked out.
	setCase(same, same, rtlil.S1, rtlil.S1, rtlil.S0)
	require.Equal(t, rtlil.S0, ev.eval(en[0]))

	// Same addresses but port 2 inactive: port 1 still writes.
	setCase(same, same, rtlil.S1, rtlil.S0, rtlil.S0)
	require.Equal(t, rtlil.S1, ev.eval(en[0]))
	require.Equal(t, rtlil.S1, ev.eval(data[0]))
}

// TestMergeThroughDontCareMux: an address routed through a mux whose
// other input is fully undefined is the same address; the merge strips
// the mux from the port.
func TestMergeThroughDontCareMux(t *testing.T) {
	m := rtlil.NewModule("top")
	clk := m.AddWire("clk", 1)
	clk.PortInput = true
	addr := m.AddWire("addr", 2)
	addr.PortInput = true
	sel := m.AddWire("sel", 1)
	sel.PortInput = true
	muxy := m.AddWire("muxy", 2)
	d1 := m.AddWire("d1", 1)
	d1.PortInput = true
	d2 := m.AddWire("d2", 1)
	d2.PortInput = true
	e1 := m.AddWire("e1", 1)
	e1.PortInput = true
	e2 := m.AddWire("e2", 1)
	e2.PortInput = true

	m.AddMuxCell(rtlil.Repeat(rtlil.Sx, 2), rtlil.S(addr), rtlil.SigSpec{rtlil.Bit(sel, 0)}, rtlil.S(muxy))

	m.AddMemWr("wr1", "mem", true, true, 1, rtlil.S(clk), rtlil.S(addr), rtlil.S(d1), rtlil.S(e1))
	m.AddMemWr("wr2", "mem", true, true, 2, rtlil.S(clk), rtlil.S(muxy), rtlil.S(d2), rtlil.S(e2))

	ShareModule(m, Config{})

	ports := memWrPorts(m, "mem")
	require.Len(t, ports, 1, "addresses equal up to don't-care muxing must merge")
	require.True(t, ports[0].Port(rtlil.PortAddr).Equal(rtlil.S(addr)),
		"the merged port must bypass the don't-care mux")
}

// TestNoMergeAcrossClockDomains: same address, different clocks, no
// merge.
func TestNoMergeAcrossClockDomains(t *testing.T) {
	m := rtlil.NewModule("top")
	clkA := m.AddWire("clkA", 1)
	clkA.PortInput = true
	clkB := m.AddWire("clkB", 1)
	clkB.PortInput = true
	addr := m.AddWire("addr", 2)
	addr.PortInput = true
	d1 := m.AddWire("d1", 1)
	d1.PortInput = true
	d2 := m.AddWire("d2", 1)
	d2.PortInput = true
	e1 := m.AddWire("e1", 1)
	e1.PortInput = true
	e2 := m.AddWire("e2", 1)
	e2.PortInput = true

	m.AddMemWr("wr1", "mem", true, true, 1, rtlil.S(clkA), rtlil.S(addr), rtlil.S(d1), rtlil.S(e1))
	m.AddMemWr("wr2", "mem", true, true, 2, rtlil.S(clkB), rtlil.S(addr), rtlil.S(d2), rtlil.S(e2))

	ShareModule(m, Config{})

	require.Len(t, memWrPorts(m, "mem"), 2, "cross-domain ports must not merge")
}

// TestMergeBitGrouping: enable bit positions with identical input
// pairs must come out driven by the same gate output.
func TestMergeBitGrouping(t *testing.T) {
	m := rtlil.NewModule("top")
	clk := m.AddWire("clk", 1)
	clk.PortInput = true
	addr := m.AddWire("addr", 2)
	addr.PortInput = true
	d1 := m.AddWire("d1", 4)
	d1.PortInput = true
	d2 := m.AddWire("d2", 4)
	d2.PortInput = true
	e1 := m.AddWire("e1", 1)
	e1.PortInput = true
	f1 := m.AddWire("f1", 1)
	f1.PortInput = true
	e2 := m.AddWire("e2", 1)
	e2.PortInput = true
	f2 := m.AddWire("f2", 1)
	f2.PortInput = true

	en1 := rtlil.SigSpec{rtlil.Bit(e1, 0), rtlil.Bit(e1, 0), rtlil.Bit(f1, 0), rtlil.Bit(f1, 0)}
	en2 := rtlil.SigSpec{rtlil.Bit(e2, 0), rtlil.Bit(e2, 0), rtlil.Bit(f2, 0), rtlil.Bit(f2, 0)}

	m.AddMemWr("wr1", "mem", true, true, 1, rtlil.S(clk), rtlil.S(addr), rtlil.S(d1), en1)
	m.AddMemWr("wr2", "mem", true, true, 2, rtlil.S(clk), rtlil.S(addr), rtlil.S(d2), en2)

	ShareModule(m, Config{})

	ports := memWrPorts(m, "mem")
	require.Len(t, ports, 1)
	en := ports[0].Port(rtlil.PortEn)
	require.Len(t, en, 4)

	require.Equal(t, en[0], en[1], "positions sharing an input pair share a driver")
	require.Equal(t, en[2], en[3], "positions sharing an input pair share a driver")
	require.NotEqual(t, en[0], en[2], "distinct pairs get distinct drivers")
}
