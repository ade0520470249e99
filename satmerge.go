package memshare

import (
	"sort"

	"github.com/opd-ai/go-memshare/internal/rtlil"
	"github.com/opd-ai/go-memshare/internal/sat"
)

// SAT-based consolidation: two consecutive write ports in the same
// clock domain whose enables can never be active together are one
// physical port with a selector. Exclusivity is proved by encoding the
// common input cone of the enable signals into CNF and asking the
// solver for a witness of both being active; an unsatisfiable query is
// the proof.

func (w *worker) consolidateWrUsingSat(memid string, wrPorts *[]*rtlil.Cell,
	walker *rtlil.ModWalker, coneTypes *rtlil.CellTypes) {

	ports := *wrPorts
	if len(ports) <= 1 {
		return
	}

	gen := sat.NewGen(walker.SigMap)

	// A port is considered when merging can help: its enable is not
	// already constantly active and has at least one driven bit.
	considered := make(map[int]bool)
	for i, cell := range ports {
		bits := walker.SigMap.Apply(cell.Port(rtlil.PortEn))
		alwaysActive := false
		for _, b := range bits {
			if b.Is(rtlil.S1) {
				alwaysActive = true
				break
			}
		}
		if !alwaysActive && walker.HasDrivers(bits) {
			considered[i] = true
		}
	}

	w.log.Infof("Consolidating write ports of memory %s using sat-based resource sharing:", memid)

	// Considered pairs are consecutive considered ports in the same
	// clock domain.
	pairs := make(map[int]bool)
	var domain clockDomain
	for i, cell := range ports {
		newDomain := domain.update(cell.ClkEnable(), cell.ClkPolarity(),
			w.sigmap.Apply(cell.Port(rtlil.PortClk)))
		if !newDomain && i > 0 && considered[i-1] && considered[i] {
			pairs[i] = true
		}

		status := "not considered"
		if considered[i] {
			status = "considered"
		}
		w.log.Infof("  Port %d (%s) on %s: %s", i, cell.Name, domain.String(), status)
	}

	if len(pairs) == 0 {
		w.log.Infof("  No two subsequent ports in same clock domain considered -> nothing to consolidate.")
		return
	}

	// Build the SAT problem: one aggregate activity variable per pair
	// endpoint, plus the CNF of the common input cone of all enables.
	portVar := make(map[int]int)
	queue := make(map[rtlil.SigBit]bool)
	for i := 0; i < len(ports); i++ {
		if !pairs[i] && !pairs[i+1] {
			continue
		}
		sig := walker.SigMap.Apply(ports[i].Port(rtlil.PortEn))
		portVar[i] = gen.ExpressionOr(gen.ImportSig(sig))
		for _, b := range sig {
			if !b.IsConst() {
				queue[b] = true
			}
		}
	}

	imported := make(map[*rtlil.Cell]bool)
	var coneCells []*rtlil.Cell
	for len(queue) > 0 {
		bits := make([]rtlil.SigBit, 0, len(queue))
		for b := range queue {
			bits = append(bits, b)
		}
		queue = make(map[rtlil.SigBit]bool)

		for _, pb := range walker.Drivers(bits) {
			if imported[pb.Cell] || !coneTypes.Known(pb.Cell.Type) {
				continue
			}
			imported[pb.Cell] = true
			coneCells = append(coneCells, pb.Cell)
			for _, b := range walker.CellInputs(pb.Cell) {
				queue[b] = true
			}
		}
	}

	w.log.Infof("  Common input cone for all EN signals: %d cells.", len(coneCells))

	sort.Slice(coneCells, func(i, j int) bool { return coneCells[i].Name < coneCells[j].Name })
	for _, cell := range coneCells {
		gen.ImportCell(cell)
	}

	w.log.Infof("  Size of unconstrained SAT problem: %d variables, %d clauses",
		gen.NumVars(), gen.NumClauses())

	// Merge subsequent ports where the solver finds no witness of both
	// enables active. An indeterminate answer counts as a witness.
	for i := 0; i < len(ports); i++ {
		if !pairs[i] {
			continue
		}

		if gen.Solve(portVar[i-1], portVar[i]) {
			w.log.Infof("  According to SAT solver sharing of port %d with port %d is not possible.", i-1, i)
			continue
		}

		w.log.Infof("  Merging port %d into port %d.", i-1, i)

		// The merged port inherits the combined activity for the next
		// pair's test.
		portVar[i] = gen.Or(portVar[i-1], portVar[i])

		last := ports[i-1]
		cur := ports[i]

		lastAddr := last.Port(rtlil.PortAddr)
		lastData := last.Port(rtlil.PortData)
		lastEn := walker.SigMap.Apply(last.Port(rtlil.PortEn))

		thisAddr := cur.Port(rtlil.PortAddr)
		thisData := cur.Port(rtlil.PortData)
		thisEn := walker.SigMap.Apply(cur.Port(rtlil.PortEn))

		thisEnActive := w.module.ReduceOr(thisEn)

		cur.SetPort(rtlil.PortAddr, w.module.Mux(lastAddr, thisAddr, thisEnActive))
		cur.SetPort(rtlil.PortData, w.module.Mux(lastData, thisData, thisEnActive))

		// Grouped enable mux: duplicate (last, this) bit pairs share
		// one output bit of a single mux cell.
		groups := make(map[sigBitPair]int)
		var groupedLast, groupedThis rtlil.SigSpec
		idx := make([]int, len(thisEn))
		for j := range thisEn {
			key := sigBitPair{lastEn[j], thisEn[j]}
			g, ok := groups[key]
			if !ok {
				g = len(groupedLast)
				groups[key] = g
				groupedLast = append(groupedLast, lastEn[j])
				groupedThis = append(groupedThis, thisEn[j])
			}
			idx[j] = g
		}

		groupedWire := w.module.NewWire(len(groupedLast))
		w.module.AddMuxCell(groupedLast, groupedThis, rtlil.SigSpec{thisEnActive}, rtlil.S(groupedWire))

		en := make(rtlil.SigSpec, len(thisEn))
		for j := range thisEn {
			en[j] = rtlil.Bit(groupedWire, idx[j])
		}
		cur.SetPort(rtlil.PortEn, en)

		w.module.RemoveCell(last.Name)
		ports[i-1] = nil
	}

	*wrPorts = compactPorts(ports)
}
