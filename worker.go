package memshare

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/go-memshare/internal"
	"github.com/opd-ai/go-memshare/internal/rtlil"
)

// muxBit locates one output bit of a mux/pmux cell.
type muxBit struct {
	cell *rtlil.Cell
	idx  int
}

// memPorts holds the read and write port cells of one memory, in the
// canonical order produced by sortMemPorts.
type memPorts struct {
	reads  []*rtlil.Cell
	writes []*rtlil.Cell
}

// worker runs the pass over one module. It owns the module's signal
// maps for its whole lifetime; any netlist mutation it performs keeps
// them coherent at the documented stage boundaries.
type worker struct {
	module *rtlil.Module
	log    *logrus.Entry

	// sigmap canonicalizes aliases; sigmapXmux additionally skips
	// muxes with a fully-undefined input, equating addresses that
	// differ only by don't-care muxing.
	sigmap     *rtlil.SigMap
	sigmapXmux *rtlil.SigMap

	// sigToMux maps each canonical bit driven by a mux/pmux to the
	// cell and the bit's index within its Y port.
	sigToMux map[rtlil.SigBit]muxBit

	// condCache shares synthesized enable logic between identical
	// condition sets.
	condCache map[internal.Key]rtlil.SigBit
}

func newWorker(mod *rtlil.Module, cfg Config) *worker {
	return &worker{
		module:    mod,
		log:       cfg.entry().WithField("module", mod.Name),
		sigToMux:  make(map[rtlil.SigBit]muxBit),
		condCache: make(map[internal.Key]rtlil.SigBit),
	}
}

func (w *worker) run() {
	w.sigmap = rtlil.NewSigMap(w.module)
	w.sigmapXmux = w.sigmap.Copy()

	memindex := make(map[string]*memPorts)
	index := func(memid string) *memPorts {
		mp, ok := memindex[memid]
		if !ok {
			mp = &memPorts{}
			memindex[memid] = mp
		}
		return mp
	}

	for _, cell := range w.module.CellsSorted() {
		switch cell.Type {
		case rtlil.TypeMemRd:
			mp := index(cell.MemID())
			mp.reads = append(mp.reads, cell)
		case rtlil.TypeMemWr:
			mp := index(cell.MemID())
			mp.writes = append(mp.writes, cell)
		}

		if cell.Type == rtlil.TypeMux {
			sigA := w.sigmapXmux.Apply(cell.Port(rtlil.PortA))
			sigB := w.sigmapXmux.Apply(cell.Port(rtlil.PortB))
			if sigA.IsFullyUndef() {
				w.sigmapXmux.Add(cell.Port(rtlil.PortY), sigB)
			} else if sigB.IsFullyUndef() {
				w.sigmapXmux.Add(cell.Port(rtlil.PortY), sigA)
			}
		}

		if cell.Type == rtlil.TypeMux || cell.Type == rtlil.TypePmux {
			sigY := w.sigmap.Apply(cell.Port(rtlil.PortY))
			for i, b := range sigY {
				w.sigToMux[b] = muxBit{cell: cell, idx: i}
			}
		}
	}

	memids := make([]string, 0, len(memindex))
	for memid := range memindex {
		memids = append(memids, memid)
	}
	sort.Strings(memids)

	for _, memid := range memids {
		mp := memindex[memid]
		sortMemPorts(mp.reads)
		sortMemPorts(mp.writes)
		w.translateRdFeedbackToEn(memid, mp.reads, mp.writes)
		w.consolidateWrByAddr(memid, &mp.writes)
	}

	// The SAT stage reasons over the common input cone of the enable
	// signals, restricted to primitives with cheap CNF encodings: hard
	// arithmetic and variable shifts stay out of the solver.
	coneTypes := rtlil.EvaluableTypes()
	for _, t := range []rtlil.CellType{
		rtlil.TypeMul, rtlil.TypeDiv, rtlil.TypeMod, rtlil.TypePow,
		rtlil.TypeShl, rtlil.TypeShr, rtlil.TypeSshl, rtlil.TypeSshr,
	} {
		coneTypes.Remove(t)
	}
	walker := rtlil.NewModWalker(w.module, coneTypes)

	for _, memid := range memids {
		w.consolidateWrUsingSat(memid, &memindex[memid].writes, walker, coneTypes)
	}
}

// sortMemPorts orders memory port cells canonically: read ports before
// write ports, read ports by name, write ports by priority. The sort is
// stable so equal-priority writes keep their traversal order.
func sortMemPorts(ports []*rtlil.Cell) {
	sort.SliceStable(ports, func(i, j int) bool {
		return memCellsLess(ports[i], ports[j])
	})
}

func memCellsLess(a, b *rtlil.Cell) bool {
	aRd := a.Type == rtlil.TypeMemRd
	bRd := b.Type == rtlil.TypeMemRd
	if aRd && bRd {
		return a.Name < b.Name
	}
	if aRd != bRd {
		return aRd
	}
	return a.Priority() < b.Priority()
}

// clockDomain tracks the (clocked, polarity, clock) triple that write
// ports must share before any merging applies.
type clockDomain struct {
	valid    bool
	enable   bool
	polarity bool
	clk      rtlil.SigSpec
}

// update folds one port into the domain tracker and reports whether the
// port starts a new clock domain.
func (d *clockDomain) update(enable, polarity bool, clk rtlil.SigSpec) bool {
	if d.valid && enable == d.enable && (!enable || (polarity == d.polarity && clk.Equal(d.clk))) {
		return false
	}
	d.valid = true
	d.enable = enable
	d.polarity = polarity
	d.clk = clk
	return true
}

func (d *clockDomain) String() string {
	if !d.enable {
		return "unclocked"
	}
	edge := "negedge"
	if d.polarity {
		edge = "posedge"
	}
	return fmt.Sprintf("%s %s", edge, d.clk.Key())
}
