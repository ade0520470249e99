// Package sat encodes the Boolean semantics of netlist cells into CNF
// and answers satisfiability queries through the gophersat solver.
//
// The generator keeps a growing clause store. Each Solve call builds a
// fresh solver over the full store plus the query literals asserted as
// unit clauses, so adding clauses between queries is always sound.
// An indeterminate solver answer is reported as satisfiable, which is
// the conservative direction for every caller in this module.
package sat

import (
	"fmt"

	"github.com/crillab/gophersat/solver"

	"github.com/opd-ai/go-memshare/internal/rtlil"
)

// Gen turns signal bits into CNF variables and cells into clauses.
type Gen struct {
	sigmap *rtlil.SigMap

	vars     map[rtlil.SigBit]int
	nvars    int
	clauses  [][]int
	imported map[*rtlil.Cell]bool

	// Variable 1 is reserved as the constant-true literal.
	constTrue int
}

// NewGen creates a CNF generator. Signal bits are canonicalized through
// the given map before they are assigned variables.
func NewGen(sigmap *rtlil.SigMap) *Gen {
	g := &Gen{
		sigmap:   sigmap,
		vars:     make(map[rtlil.SigBit]int),
		imported: make(map[*rtlil.Cell]bool),
	}
	g.constTrue = g.newVar()
	g.addClause(g.constTrue)
	return g
}

// NumVars returns the number of CNF variables allocated so far.
func (g *Gen) NumVars() int { return g.nvars }

// NumClauses returns the number of CNF clauses emitted so far.
func (g *Gen) NumClauses() int { return len(g.clauses) }

func (g *Gen) newVar() int {
	g.nvars++
	return g.nvars
}

func (g *Gen) addClause(lits ...int) {
	clause := make([]int, len(lits))
	copy(clause, lits)
	g.clauses = append(g.clauses, clause)
}

// ImportBit returns the literal for a signal bit. Constants map to the
// fixed true/false literals; undefined bits get a fresh unconstrained
// variable per occurrence.
func (g *Gen) ImportBit(b rtlil.SigBit) int {
	b = g.sigmap.Bit(b)
	if b.IsConst() {
		switch b.State {
		case rtlil.S1:
			return g.constTrue
		case rtlil.S0:
			return -g.constTrue
		default:
			return g.newVar()
		}
	}
	if v, ok := g.vars[b]; ok {
		return v
	}
	v := g.newVar()
	g.vars[b] = v
	return v
}

// ImportSig returns the literals for every bit of a signal.
func (g *Gen) ImportSig(sig rtlil.SigSpec) []int {
	lits := make([]int, len(sig))
	for i, b := range sig {
		lits[i] = g.ImportBit(b)
	}
	return lits
}

// Or returns a literal equivalent to the disjunction of a and b.
func (g *Gen) Or(a, b int) int { return g.ExpressionOr([]int{a, b}) }

// ExpressionOr returns a literal equivalent to the disjunction of the
// given literals. An empty disjunction is false.
func (g *Gen) ExpressionOr(lits []int) int {
	if len(lits) == 0 {
		return -g.constTrue
	}
	if len(lits) == 1 {
		return lits[0]
	}
	y := g.newVar()
	big := make([]int, 0, len(lits)+1)
	big = append(big, -y)
	for _, l := range lits {
		g.addClause(y, -l)
		big = append(big, l)
	}
	g.addClause(big...)
	return y
}

// ExpressionAnd returns a literal equivalent to the conjunction of the
// given literals. An empty conjunction is true.
func (g *Gen) ExpressionAnd(lits []int) int {
	if len(lits) == 0 {
		return g.constTrue
	}
	if len(lits) == 1 {
		return lits[0]
	}
	y := g.newVar()
	big := make([]int, 0, len(lits)+1)
	big = append(big, y)
	for _, l := range lits {
		g.addClause(-y, l)
		big = append(big, -l)
	}
	g.addClause(big...)
	return y
}

func (g *Gen) not(a int) int {
	y := g.newVar()
	g.addClause(y, a)
	g.addClause(-y, -a)
	return y
}

func (g *Gen) xor(a, b int) int {
	y := g.newVar()
	g.addClause(-y, a, b)
	g.addClause(-y, -a, -b)
	g.addClause(y, -a, b)
	g.addClause(y, a, -b)
	return y
}

// mux returns a literal for s ? b : a.
func (g *Gen) mux(a, b, s int) int {
	y := g.newVar()
	g.addClause(-s, -b, y)
	g.addClause(-s, b, -y)
	g.addClause(s, -a, y)
	g.addClause(s, a, -y)
	return y
}

// tie constrains an existing literal y to equal the expression literal e.
func (g *Gen) tie(y, e int) {
	g.addClause(-y, e)
	g.addClause(y, -e)
}

// ImportCell encodes the Boolean semantics of a cell. Importing the
// same cell twice is a no-op. Cells whose semantics the generator
// cannot express are a contract violation (the caller restricts the
// cone to encodable types) and panic.
func (g *Gen) ImportCell(cell *rtlil.Cell) {
	if g.imported[cell] {
		return
	}
	g.imported[cell] = true

	switch cell.Type {
	case rtlil.TypeNot:
		a := g.ImportSig(cell.Port(rtlil.PortA))
		y := g.ImportSig(cell.Port(rtlil.PortY))
		g.assertWidths(cell, len(a) == len(y))
		for i := range y {
			g.tie(y[i], g.not(a[i]))
		}

	case rtlil.TypeAnd, rtlil.TypeOr, rtlil.TypeXor, rtlil.TypeXnor:
		a := g.ImportSig(cell.Port(rtlil.PortA))
		b := g.ImportSig(cell.Port(rtlil.PortB))
		y := g.ImportSig(cell.Port(rtlil.PortY))
		g.assertWidths(cell, len(a) == len(b) && len(a) == len(y))
		for i := range y {
			var e int
			switch cell.Type {
			case rtlil.TypeAnd:
				e = g.ExpressionAnd([]int{a[i], b[i]})
			case rtlil.TypeOr:
				e = g.ExpressionOr([]int{a[i], b[i]})
			case rtlil.TypeXor:
				e = g.xor(a[i], b[i])
			default:
				e = g.not(g.xor(a[i], b[i]))
			}
			g.tie(y[i], e)
		}

	case rtlil.TypeMux:
		a := g.ImportSig(cell.Port(rtlil.PortA))
		b := g.ImportSig(cell.Port(rtlil.PortB))
		s := g.ImportSig(cell.Port(rtlil.PortS))
		y := g.ImportSig(cell.Port(rtlil.PortY))
		g.assertWidths(cell, len(s) == 1 && len(a) == len(y) && len(b) == len(y))
		for i := range y {
			g.tie(y[i], g.mux(a[i], b[i], s[0]))
		}

	case rtlil.TypePmux:
		a := g.ImportSig(cell.Port(rtlil.PortA))
		b := g.ImportSig(cell.Port(rtlil.PortB))
		s := g.ImportSig(cell.Port(rtlil.PortS))
		y := g.ImportSig(cell.Port(rtlil.PortY))
		g.assertWidths(cell, len(b) == len(a)*len(s) && len(a) == len(y))
		for i := range y {
			cur := a[i]
			for j := range s {
				cur = g.mux(cur, b[i+j*len(y)], s[j])
			}
			g.tie(y[i], cur)
		}

	case rtlil.TypeEq, rtlil.TypeNe:
		a := g.ImportSig(cell.Port(rtlil.PortA))
		b := g.ImportSig(cell.Port(rtlil.PortB))
		y := g.ImportSig(cell.Port(rtlil.PortY))
		g.assertWidths(cell, len(a) == len(b) && len(y) >= 1)
		eqBits := make([]int, len(a))
		for i := range a {
			eqBits[i] = g.not(g.xor(a[i], b[i]))
		}
		e := g.ExpressionAnd(eqBits)
		if cell.Type == rtlil.TypeNe {
			e = g.not(e)
		}
		g.tie(y[0], e)
		g.zeroUpper(y)

	case rtlil.TypeLt, rtlil.TypeLe, rtlil.TypeGt, rtlil.TypeGe:
		a := g.ImportSig(cell.Port(rtlil.PortA))
		b := g.ImportSig(cell.Port(rtlil.PortB))
		y := g.ImportSig(cell.Port(rtlil.PortY))
		g.assertWidths(cell, len(a) == len(b) && len(y) >= 1)
		if cell.Type == rtlil.TypeGt || cell.Type == rtlil.TypeGe {
			a, b = b, a
		}
		// Unsigned ripple comparator, LSB to MSB.
		lt := -g.constTrue
		if cell.Type == rtlil.TypeLe || cell.Type == rtlil.TypeGe {
			lt = g.constTrue
		}
		for i := range a {
			eq := g.not(g.xor(a[i], b[i]))
			ltHere := g.ExpressionAnd([]int{g.not(a[i]), b[i]})
			lt = g.ExpressionOr([]int{ltHere, g.ExpressionAnd([]int{eq, lt})})
		}
		g.tie(y[0], lt)
		g.zeroUpper(y)

	case rtlil.TypeAdd, rtlil.TypeSub:
		a := g.ImportSig(cell.Port(rtlil.PortA))
		b := g.ImportSig(cell.Port(rtlil.PortB))
		y := g.ImportSig(cell.Port(rtlil.PortY))
		g.assertWidths(cell, len(a) == len(b) && len(y) == len(a))
		carry := -g.constTrue
		if cell.Type == rtlil.TypeSub {
			carry = g.constTrue
		}
		for i := range y {
			bi := b[i]
			if cell.Type == rtlil.TypeSub {
				bi = g.not(b[i])
			}
			sum := g.xor(g.xor(a[i], bi), carry)
			carry = g.ExpressionOr([]int{
				g.ExpressionAnd([]int{a[i], bi}),
				g.ExpressionAnd([]int{g.xor(a[i], bi), carry}),
			})
			g.tie(y[i], sum)
		}

	case rtlil.TypeReduceAnd, rtlil.TypeReduceOr, rtlil.TypeReduceXor:
		a := g.ImportSig(cell.Port(rtlil.PortA))
		y := g.ImportSig(cell.Port(rtlil.PortY))
		g.assertWidths(cell, len(y) >= 1)
		var e int
		switch cell.Type {
		case rtlil.TypeReduceAnd:
			e = g.ExpressionAnd(a)
		case rtlil.TypeReduceOr:
			e = g.ExpressionOr(a)
		default:
			e = -g.constTrue
			for _, l := range a {
				e = g.xor(e, l)
			}
		}
		g.tie(y[0], e)
		g.zeroUpper(y)

	case rtlil.TypeLogicNot:
		a := g.ImportSig(cell.Port(rtlil.PortA))
		y := g.ImportSig(cell.Port(rtlil.PortY))
		g.assertWidths(cell, len(y) >= 1)
		g.tie(y[0], g.not(g.ExpressionOr(a)))
		g.zeroUpper(y)

	case rtlil.TypeLogicAnd, rtlil.TypeLogicOr:
		a := g.ImportSig(cell.Port(rtlil.PortA))
		b := g.ImportSig(cell.Port(rtlil.PortB))
		y := g.ImportSig(cell.Port(rtlil.PortY))
		g.assertWidths(cell, len(y) >= 1)
		la := g.ExpressionOr(a)
		lb := g.ExpressionOr(b)
		if cell.Type == rtlil.TypeLogicAnd {
			g.tie(y[0], g.ExpressionAnd([]int{la, lb}))
		} else {
			g.tie(y[0], g.ExpressionOr([]int{la, lb}))
		}
		g.zeroUpper(y)

	default:
		panic(fmt.Sprintf("sat: cannot encode cell %s of type %s", cell.Name, cell.TypeName()))
	}
}

// zeroUpper ties all but the lowest bit of a single-bit-result output
// to false.
func (g *Gen) zeroUpper(y []int) {
	for _, l := range y[1:] {
		g.addClause(-l)
	}
}

func (g *Gen) assertWidths(cell *rtlil.Cell, ok bool) {
	if !ok {
		panic(fmt.Sprintf("sat: cell %s (%s) has inconsistent port widths", cell.Name, cell.TypeName()))
	}
}

// Solve reports whether the clause store plus the given literals
// asserted true is satisfiable. Indeterminate answers count as
// satisfiable.
func (g *Gen) Solve(assumptions ...int) bool {
	cnf := make([][]int, 0, len(g.clauses)+len(assumptions))
	cnf = append(cnf, g.clauses...)
	for _, a := range assumptions {
		cnf = append(cnf, []int{a})
	}
	pb := solver.ParseSlice(cnf)
	s := solver.New(pb)
	return s.Solve() != solver.Unsat
}
