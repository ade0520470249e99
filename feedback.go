package memshare

import (
	"sort"
	"strings"

	"github.com/bits-and-blooms/bitset"

	"github.com/opd-ai/go-memshare/internal"
	"github.com/opd-ai/go-memshare/internal/rtlil"
)

// Feedback-to-enable: an asynchronous read port whose data only ever
// flows through mux trees back into a write port of the same memory at
// the same address is a no-op under the select conditions that route
// the read value back. Those conditions are turned into write-enable
// logic, the routed mux inputs become don't-care, and the mux tree and
// read port are left for dead-code removal.

// condTerm is one (select bit = value) equality in a cube.
type condTerm struct {
	bit rtlil.SigBit
	val bool
}

// cube is a conjunction of condTerms, kept sorted by bit key.
type cube []condTerm

func cubeOf(state map[rtlil.SigBit]bool) cube {
	c := make(cube, 0, len(state))
	for b, v := range state {
		c = append(c, condTerm{bit: b, val: v})
	}
	sort.Slice(c, func(i, j int) bool { return c[i].bit.Key() < c[j].bit.Key() })
	return c
}

func (c cube) key() string {
	var sb strings.Builder
	for _, t := range c {
		sb.WriteString(t.bit.Key())
		if t.val {
			sb.WriteString("=1;")
		} else {
			sb.WriteString("=0;")
		}
	}
	return sb.String()
}

// condSet is a set of cubes: the disjunction of conditions under which
// a write-port data bit receives its own read-back value.
type condSet struct {
	cubes map[string]cube
}

func newCondSet() *condSet {
	return &condSet{cubes: make(map[string]cube)}
}

func (cs *condSet) insert(state map[rtlil.SigBit]bool) {
	c := cubeOf(state)
	cs.cubes[c.key()] = c
}

func (cs *condSet) sorted() []cube {
	keys := make([]string, 0, len(cs.cubes))
	for k := range cs.cubes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]cube, len(keys))
	for i, k := range keys {
		out[i] = cs.cubes[k]
	}
	return out
}

// cacheKey returns a fixed-size key identifying the whole set, so that
// identical condition sets share one synthesized enable signal.
func (cs *condSet) cacheKey() internal.Key {
	keys := make([]string, 0, len(cs.cubes))
	for k := range cs.cubes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return internal.KeyOfString(strings.Join(keys, "|"))
}

func stateVisitKey(sig rtlil.SigBit, state map[rtlil.SigBit]bool) internal.Key {
	var sb strings.Builder
	sb.WriteString(sig.Key())
	sb.WriteString("|")
	sb.WriteString(cubeOf(state).key())
	return internal.KeyOfString(sb.String())
}

func copyState(state map[rtlil.SigBit]bool) map[rtlil.SigBit]bool {
	out := make(map[rtlil.SigBit]bool, len(state)+1)
	for k, v := range state {
		out[k] = v
	}
	return out
}

// findDataFeedback walks backward from a write-port data bit through
// the mux tree driving it, looking for bits of the matching async read
// port. state carries the select values assumed along the path; every
// discovered feedback records a copy of state and the routed mux input
// is overwritten with x.
//
// The mux tree is acyclic for well-formed netlists, but a visited set
// over (bit, state) pairs guards against malformed inputs; revisiting
// the same bit under a different state is a different path and stays
// allowed.
func (w *worker) findDataFeedback(sinks map[rtlil.SigBit]bool, sig rtlil.SigBit,
	state map[rtlil.SigBit]bool, conds *condSet, visited map[internal.Key]bool, found *bool) bool {

	if sinks[sig] {
		conds.insert(state)
		*found = true
		return true
	}

	mb, ok := w.sigToMux[sig]
	if !ok {
		return false
	}

	vk := stateVisitKey(sig, state)
	if visited[vk] {
		return false
	}
	visited[vk] = true

	cell := mb.cell
	sigA := w.sigmap.Apply(cell.Port(rtlil.PortA))
	sigB := w.sigmap.Apply(cell.Port(rtlil.PortB))
	sigS := w.sigmap.Apply(cell.Port(rtlil.PortS))
	sigY := w.sigmap.Apply(cell.Port(rtlil.PortY))
	width := len(sigY)
	if sigY[mb.idx] != sig {
		panic("memshare: sig_to_mux entry does not match queried bit")
	}

	// A select already assumed high pins the path to one alternative.
	for i := range sigS {
		if v, ok := state[sigS[i]]; ok && v {
			if w.findDataFeedback(sinks, sigB[mb.idx+i*width], state, conds, visited, found) {
				w.replacePortBit(cell, rtlil.PortB, mb.idx+i*width, rtlil.Sx)
			}
			return false
		}
	}

	for i := range sigS {
		if v, ok := state[sigS[i]]; ok && !v {
			continue
		}
		newState := copyState(state)
		newState[sigS[i]] = true
		if w.findDataFeedback(sinks, sigB[mb.idx+i*width], newState, conds, visited, found) {
			w.replacePortBit(cell, rtlil.PortB, mb.idx+i*width, rtlil.Sx)
		}
	}

	newState := copyState(state)
	for i := range sigS {
		newState[sigS[i]] = false
	}
	if w.findDataFeedback(sinks, sigA[mb.idx], newState, conds, visited, found) {
		w.replacePortBit(cell, rtlil.PortA, mb.idx, rtlil.Sx)
	}

	return false
}

func (w *worker) replacePortBit(cell *rtlil.Cell, port rtlil.PortID, offset int, s rtlil.State) {
	sig := cell.Port(port).Copy()
	sig[offset] = rtlil.SigBit{State: s}
	cell.SetPort(port, sig)
}

// conditionsToLogic synthesizes the enable bit for a condition set: one
// inequality per cube (the cube is violated), AND-reduced, which is
// exactly "no feedback cube matches". Identical sets share logic
// through the worker's cache.
func (w *worker) conditionsToLogic(conds *condSet, created *int) rtlil.SigBit {
	key := conds.cacheKey()
	if bit, ok := w.condCache[key]; ok {
		return bit
	}

	var terms rtlil.SigSpec
	for _, c := range conds.sorted() {
		sig1 := make(rtlil.SigSpec, 0, len(c))
		sig2 := make(rtlil.SigSpec, 0, len(c))
		for _, t := range c {
			sig1 = append(sig1, t.bit)
			if t.val {
				sig2 = append(sig2, rtlil.SigBit{State: rtlil.S1})
			} else {
				sig2 = append(sig2, rtlil.SigBit{State: rtlil.S0})
			}
		}
		terms = append(terms, w.module.Ne(sig1, sig2))
		*created++
	}

	var out rtlil.SigBit
	switch len(terms) {
	case 0:
		out = rtlil.SigBit{State: rtlil.S1}
	case 1:
		out = terms[0]
	default:
		out = w.module.ReduceAnd(terms)
	}

	w.condCache[key] = out
	return out
}

// translateRdFeedbackToEn finds pure-feedback async read ports of one
// memory and folds the discovered feedback conditions into the enables
// of the matching write ports.
func (w *worker) translateRdFeedbackToEn(memid string, rdPorts, wrPorts []*rtlil.Cell) {
	// Interned canonical bits back a dense non-feedback set.
	bitIDs := make(map[rtlil.SigBit]uint)
	idOf := func(b rtlil.SigBit) uint {
		id, ok := bitIDs[b]
		if !ok {
			id = uint(len(bitIDs))
			bitIDs[b] = id
		}
		return id
	}

	nonFeedback := bitset.New(64)
	var worklist []uint
	markNonFeedback := func(sig rtlil.SigSpec) {
		for _, b := range sig {
			if b.IsConst() {
				continue
			}
			id := idOf(b)
			if !nonFeedback.Test(id) {
				nonFeedback.Set(id)
				worklist = append(worklist, id)
			}
		}
	}

	// muxUpstream maps each mux output bit to the input bits that can
	// reach it; non-feedback status propagates backward along it.
	muxUpstream := make(map[uint][]uint)

	for _, wire := range w.module.WiresSorted() {
		if wire.PortOutput {
			markNonFeedback(w.sigmap.Apply(rtlil.S(wire)))
		}
	}

	for _, cell := range w.module.CellsSorted() {
		if cell.Type == rtlil.TypeMux || cell.Type == rtlil.TypePmux {
			sigA := w.sigmap.Apply(cell.Port(rtlil.PortA))
			sigB := w.sigmap.Apply(cell.Port(rtlil.PortB))
			sigS := w.sigmap.Apply(cell.Port(rtlil.PortS))
			sigY := w.sigmap.Apply(cell.Port(rtlil.PortY))

			markNonFeedback(sigS)

			for i := range sigY {
				if sigY[i].IsConst() {
					continue
				}
				yid := idOf(sigY[i])
				if !sigA[i].IsConst() {
					muxUpstream[yid] = append(muxUpstream[yid], idOf(sigA[i]))
				}
				for j := range sigS {
					if b := sigB[i+j*len(sigY)]; !b.IsConst() {
						muxUpstream[yid] = append(muxUpstream[yid], idOf(b))
					}
				}
			}
			continue
		}

		ignoreDataPort := (cell.Type == rtlil.TypeMemWr || cell.Type == rtlil.TypeMemRd) &&
			cell.MemID() == memid

		for _, port := range sortedPorts(cell) {
			if ignoreDataPort && port == rtlil.PortData {
				continue
			}
			markNonFeedback(w.sigmap.Apply(cell.Port(port)))
		}
	}

	// Propagate to the (unique) fixed point.
	for len(worklist) > 0 {
		id := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, up := range muxUpstream[id] {
			if !nonFeedback.Test(up) {
				nonFeedback.Set(up)
				worklist = append(worklist, up)
			}
		}
	}

	// Pure-feedback read ports, grouped by canonical address: per data
	// bit index, the set of bits to treat as feedback sinks.
	asyncRdBits := make(map[string][]map[rtlil.SigBit]bool)

	for _, cell := range rdPorts {
		if cell.ClkEnable() {
			continue
		}

		sigAddr := w.sigmap.Apply(cell.Port(rtlil.PortAddr))
		sigData := w.sigmap.Apply(cell.Port(rtlil.PortData))

		pure := true
		for _, b := range sigData {
			if b.IsConst() {
				pure = false
				break
			}
			if id, ok := bitIDs[b]; ok && nonFeedback.Test(id) {
				pure = false
				break
			}
		}
		if !pure {
			continue
		}

		key := sigAddr.Key()
		perBit := asyncRdBits[key]
		for len(perBit) < len(sigData) {
			perBit = append(perBit, make(map[rtlil.SigBit]bool))
		}
		for i, b := range sigData {
			perBit[i][b] = true
		}
		asyncRdBits[key] = perBit
	}

	if len(asyncRdBits) == 0 {
		return
	}

	w.log.Infof("Populating enable bits on write ports of memory %s with async read feedback:", memid)

	for _, cell := range wrPorts {
		sigAddr := w.sigmapXmux.Apply(cell.Port(rtlil.PortAddr))
		perBit, ok := asyncRdBits[sigAddr.Key()]
		if !ok {
			continue
		}

		w.log.Infof("  Analyzing write port %s.", cell.Name)

		cellData := cell.Port(rtlil.PortData).Copy()
		cellEn := cell.Port(rtlil.PortEn).Copy()
		if len(cellEn) != len(cellData) {
			panic("memshare: memwr EN width does not match DATA width")
		}

		createdConditions := 0
		changed := false
		for i := range cellData {
			if cellEn[i].Is(rtlil.S0) || i >= len(perBit) {
				continue
			}

			state := make(map[rtlil.SigBit]bool)
			conds := newCondSet()

			// The write must stay disabled whenever it already was.
			if !cellEn[i].IsConst() {
				state[w.sigmap.Bit(cellEn[i])] = false
				conds.insert(state)
			}

			visited := make(map[internal.Key]bool)
			found := false
			w.findDataFeedback(perBit[i], w.sigmap.Bit(cellData[i]), state, conds, visited, &found)
			if !found {
				continue
			}

			newEn := w.conditionsToLogic(conds, &createdConditions)
			if newEn != cellEn[i] {
				cellEn[i] = newEn
				changed = true
			}
		}

		if changed {
			w.log.Infof("    Added enable logic for %d different cases.", createdConditions)
			cell.SetPort(rtlil.PortEn, cellEn)
		}
	}
}

// sortedPorts returns a cell's connected port names in a fixed order.
func sortedPorts(cell *rtlil.Cell) []rtlil.PortID {
	ports := make([]rtlil.PortID, 0, len(cell.Connections))
	for port := range cell.Connections {
		ports = append(ports, port)
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i] < ports[j] })
	return ports
}
