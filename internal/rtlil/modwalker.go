package rtlil

import "sort"

// PortBit identifies one bit of one cell port.
type PortBit struct {
	Cell   *Cell
	Port   PortID
	Offset int
}

// ModWalker indexes which cell output drives each signal bit and which
// bits feed each cell, for backward cone walks. Like SigMap it is a
// snapshot: netlist mutations invalidate it.
type ModWalker struct {
	SigMap *SigMap

	drivers    map[SigBit][]PortBit
	cellInputs map[*Cell][]SigBit
	inputBits  map[SigBit]bool
}

// NewModWalker indexes a module under a fresh SigMap. Only cells in the
// given type set, plus memory ports and $dff cells, are indexed; a nil
// set indexes every cell.
func NewModWalker(m *Module, ct *CellTypes) *ModWalker {
	w := &ModWalker{
		SigMap:     NewSigMap(m),
		drivers:    make(map[SigBit][]PortBit),
		cellInputs: make(map[*Cell][]SigBit),
		inputBits:  make(map[SigBit]bool),
	}

	for _, wire := range m.Wires {
		if !wire.PortInput {
			continue
		}
		for _, b := range w.SigMap.Apply(S(wire)) {
			w.inputBits[b] = true
		}
	}

	for _, cell := range m.CellsSorted() {
		if ct != nil && !ct.Known(cell.Type) && cell.Type != TypeMemRd && cell.Type != TypeMemWr && cell.Type != TypeDff {
			continue
		}
		var inputs []SigBit
		for port, sig := range cell.Connections {
			canon := w.SigMap.Apply(sig)
			if cell.Type.IsOutputPort(port) {
				for i, b := range canon {
					if b.IsConst() {
						continue
					}
					w.drivers[b] = append(w.drivers[b], PortBit{Cell: cell, Port: port, Offset: i})
				}
				continue
			}
			for _, b := range canon {
				if !b.IsConst() {
					inputs = append(inputs, b)
				}
			}
		}
		w.cellInputs[cell] = inputs
	}

	return w
}

// HasDrivers reports whether any bit of the signal is driven, either by
// an indexed cell output or by a module input port.
func (w *ModWalker) HasDrivers(sig SigSpec) bool {
	for _, b := range w.SigMap.Apply(sig) {
		if b.IsConst() {
			continue
		}
		if len(w.drivers[b]) > 0 || w.inputBits[b] {
			return true
		}
	}
	return false
}

// Drivers returns the deduplicated set of cell output bits driving any
// of the given canonical bits, ordered by cell name for determinism.
func (w *ModWalker) Drivers(bits []SigBit) []PortBit {
	seen := make(map[PortBit]bool)
	var out []PortBit
	for _, b := range bits {
		for _, pb := range w.drivers[w.SigMap.Bit(b)] {
			if !seen[pb] {
				seen[pb] = true
				out = append(out, pb)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Cell.Name != out[j].Cell.Name {
			return out[i].Cell.Name < out[j].Cell.Name
		}
		if out[i].Port != out[j].Port {
			return out[i].Port < out[j].Port
		}
		return out[i].Offset < out[j].Offset
	})
	return out
}

// CellInputs returns the canonical input bits of an indexed cell.
func (w *ModWalker) CellInputs(c *Cell) []SigBit {
	return w.cellInputs[c]
}
