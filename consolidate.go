package memshare

import (
	"strings"

	"github.com/bits-and-blooms/bitset"

	"github.com/opd-ai/go-memshare/internal/rtlil"
)

// Address consolidation: write ports of the same memory that address
// the same location in the same clock domain collapse into one port.
// Per-bit enables and the last-writer-wins priority of any intervening
// overlapping write are preserved in synthesized logic.

// sigBitPair keys bit-grouping tables: bit positions whose input pair
// is identical must come out driven by the same gate output, so that
// downstream mapping still sees grouped enables.
type sigBitPair [2]rtlil.SigBit

// maskEnNaive zeroes bits of en wherever maskBits is high, gated on the
// single-bit doMask condition. No grouping.
func (w *worker) maskEnNaive(doMask rtlil.SigBit, en, maskBits rtlil.SigSpec) rtlil.SigSpec {
	invMaskBits := w.module.Not(maskBits)
	filtered := w.module.Mux(rtlil.Repeat(rtlil.S1, len(en)), invMaskBits, doMask)
	return w.module.And(filtered, en)
}

// maskEnGrouped is maskEnNaive with bit grouping: duplicate
// (en, maskBits) pairs share one gate output.
func (w *worker) maskEnGrouped(doMask rtlil.SigBit, en, maskBits rtlil.SigSpec) rtlil.SigSpec {
	groups := make(map[sigBitPair]int)
	var groupedEn, groupedMask rtlil.SigSpec

	idx := make([]int, len(en))
	for i := range en {
		key := sigBitPair{en[i], maskBits[i]}
		g, ok := groups[key]
		if !ok {
			g = len(groupedEn)
			groups[key] = g
			groupedEn = append(groupedEn, en[i])
			groupedMask = append(groupedMask, maskBits[i])
		}
		idx[i] = g
	}

	groupedResult := w.maskEnNaive(doMask, groupedEn, groupedMask)

	result := make(rtlil.SigSpec, len(en))
	for i := range en {
		result[i] = groupedResult[idx[i]]
	}
	return result
}

// mergeEnData merges the enable and data signals of two ports with
// overlapping active bits. Per bit, the merged write carries next's
// data when next is enabled, else merged's data when merged is enabled,
// else x. The enable OR preserves bit grouping.
func (w *worker) mergeEnData(mergedEn, mergedData, nextEn, nextData rtlil.SigSpec) (rtlil.SigSpec, rtlil.SigSpec) {
	groups := make(map[sigBitPair]int)
	var groupedOld, groupedNext rtlil.SigSpec

	idx := make([]int, len(mergedEn))
	for i := range mergedEn {
		key := sigBitPair{mergedEn[i], nextEn[i]}
		g, ok := groups[key]
		if !ok {
			g = len(groupedOld)
			groups[key] = g
			groupedOld = append(groupedOld, mergedEn[i])
			groupedNext = append(groupedNext, nextEn[i])
		}
		idx[i] = g
	}

	groupedNew := w.module.Or(groupedOld, groupedNext)
	newMergedEn := make(rtlil.SigSpec, len(mergedEn))
	for i := range mergedEn {
		newMergedEn[i] = groupedNew[idx[i]]
	}

	// Fold both writes into an x-initialized value with set/clear
	// masks; the later port's masks apply last and win.
	newMergedData := rtlil.Repeat(rtlil.Sx, len(mergedData))

	oldDataSet := w.module.And(mergedEn, mergedData)
	oldDataUnset := w.module.And(mergedEn, w.module.Not(mergedData))
	newDataSet := w.module.And(nextEn, nextData)
	newDataUnset := w.module.And(nextEn, w.module.Not(nextData))

	newMergedData = w.module.Or(newMergedData, oldDataSet)
	newMergedData = w.module.And(newMergedData, w.module.Not(oldDataUnset))
	newMergedData = w.module.Or(newMergedData, newDataSet)
	newMergedData = w.module.And(newMergedData, w.module.Not(newDataUnset))

	return newMergedEn, newMergedData
}

func activeBitsString(act *bitset.BitSet, width int) string {
	var sb strings.Builder
	for k := width - 1; k >= 0; k-- {
		if act.Test(uint(k)) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

func (w *worker) consolidateWrByAddr(memid string, wrPorts *[]*rtlil.Cell) {
	ports := *wrPorts
	if len(ports) <= 1 {
		return
	}

	w.log.Infof("Consolidating write ports of memory %s by address:", memid)

	lastPortByAddr := make(map[string]int)
	active := make([]*bitset.BitSet, len(ports))
	var domain clockDomain

	for i := 0; i < len(ports); i++ {
		cell := ports[i]
		addr := w.sigmapXmux.Apply(cell.Port(rtlil.PortAddr))

		if domain.update(cell.ClkEnable(), cell.ClkPolarity(), w.sigmap.Apply(cell.Port(rtlil.PortClk))) {
			lastPortByAddr = make(map[string]int)
			w.log.Infof("  New clock domain: %s", domain.String())
		}

		w.log.Infof("    Port %d (%s) has addr %s.", i, cell.Name, addr.Key())

		enBits := w.sigmap.Apply(cell.Port(rtlil.PortEn))
		if len(enBits) != len(cell.Port(rtlil.PortData)) {
			panic("memshare: memwr EN width does not match DATA width")
		}
		act := bitset.New(uint(len(enBits)))
		for k, b := range enBits {
			if !b.Is(rtlil.S0) {
				act.Set(uint(k))
			}
		}
		active[i] = act
		w.log.Infof("      Active bits: %s", activeBitsString(act, len(enBits)))

		addrKey := addr.Key()
		if lastI, ok := lastPortByAddr[addrKey]; ok {
			w.log.Infof("      Merging port %d into this one.", lastI)

			overlap := active[i].IntersectionCardinality(active[lastI]) > 0
			active[i].InPlaceUnion(active[lastI])

			// Strip the don't-care muxes from the address input.
			cell.SetPort(rtlil.PortAddr, addr)

			// Ports between lastI and i that write overlapping bits to
			// another address take priority over lastI at that address;
			// lastI's contribution is masked out when the addresses
			// collide.
			mergedEn := w.sigmap.Apply(ports[lastI].Port(rtlil.PortEn))

			for j := lastI + 1; j < i; j++ {
				if ports[j] == nil {
					continue
				}
				if active[i].IntersectionCardinality(active[j]) == 0 {
					continue
				}
				w.log.Infof("      Creating collision-detect logic for port %d.", j)
				isSameAddr := w.module.Eq(addr, ports[j].Port(rtlil.PortAddr))
				mergedEn = w.maskEnGrouped(isSameAddr, mergedEn, w.sigmap.Apply(ports[j].Port(rtlil.PortEn)))
			}

			mergedData := ports[lastI].Port(rtlil.PortData).Copy()
			if overlap {
				w.log.Infof("      Creating logic for merging DATA and EN ports.")
				mergedEn, mergedData = w.mergeEnData(mergedEn, mergedData,
					w.sigmap.Apply(cell.Port(rtlil.PortEn)),
					w.sigmap.Apply(cell.Port(rtlil.PortData)))
			} else {
				cellEn := w.sigmap.Apply(cell.Port(rtlil.PortEn))
				cellData := w.sigmap.Apply(cell.Port(rtlil.PortData))
				for k := range mergedEn {
					if !active[lastI].Test(uint(k)) {
						mergedEn[k] = cellEn[k]
						mergedData[k] = cellData[k]
					}
				}
			}

			cell.SetPort(rtlil.PortEn, mergedEn)
			cell.SetPort(rtlil.PortData, mergedData)

			w.module.RemoveCell(ports[lastI].Name)
			ports[lastI] = nil

			w.log.Infof("      Active bits: %s", activeBitsString(active[i], len(enBits)))
		}

		lastPortByAddr[addrKey] = i
	}

	*wrPorts = compactPorts(ports)
}

// compactPorts removes deleted (nil) entries, preserving order.
func compactPorts(ports []*rtlil.Cell) []*rtlil.Cell {
	out := ports[:0]
	for _, cell := range ports {
		if cell != nil {
			out = append(out, cell)
		}
	}
	return out
}
