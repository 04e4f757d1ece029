// Package ligand provides the small-molecule domain model for the dockprep
// pipeline: SMILES parsing, protonation/tautomer variant enumeration at a
// target pH, and 3D conformer generation.  The implementations are
// deliberately self-contained graph algorithms; they favour deterministic,
// auditable behaviour over full cheminformatics coverage.
package ligand

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/turtacn/dockprep/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Molecular graph
// ─────────────────────────────────────────────────────────────────────────────

// MolAtom is one node of the molecular graph.
type MolAtom struct {
	Element  string
	Aromatic bool
	Charge   int

	// HCount is the number of hydrogens attached to this atom.  For bracket
	// atoms it is exactly the bracket's H specification; otherwise it is
	// derived from standard valence after all bonds are known.
	HCount int

	// hExplicit marks HCount as fixed by a bracket expression, exempting the
	// atom from valence-based hydrogen derivation.
	hExplicit bool
}

// Bond is one edge of the molecular graph.  Order is 1, 2, or 3; aromatic
// bonds carry Order 1 with Aromatic set.
type Bond struct {
	A, B     int
	Order    int
	Aromatic bool
}

// Mol is a parsed small molecule.
type Mol struct {
	Atoms []MolAtom
	Bonds []Bond

	// SMILES is the input string the molecule was parsed from.
	SMILES string
}

// Neighbors returns the indices of atoms bonded to atom i.
func (m *Mol) Neighbors(i int) []int {
	var out []int
	for _, b := range m.Bonds {
		if b.A == i {
			out = append(out, b.B)
		} else if b.B == i {
			out = append(out, b.A)
		}
	}
	return out
}

// BondBetween returns the bond connecting atoms i and j, if any.
func (m *Mol) BondBetween(i, j int) (Bond, bool) {
	for _, b := range m.Bonds {
		if (b.A == i && b.B == j) || (b.A == j && b.B == i) {
			return b, true
		}
	}
	return Bond{}, false
}

// bondOrderSum is the total bond order at atom i, counting aromatic bonds as
// 1.5 rounded up at the end (the usual Kekulé-free approximation).
func (m *Mol) bondOrderSum(i int) int {
	sum := 0
	aromatic := 0
	for _, b := range m.Bonds {
		if b.A != i && b.B != i {
			continue
		}
		if b.Aromatic {
			aromatic++
		} else {
			sum += b.Order
		}
	}
	// Two aromatic bonds approximate order 3 (1.5 each); one counts as 1.
	sum += aromatic + aromatic/2
	return sum
}

// Clone returns a deep copy of the molecule.
func (m *Mol) Clone() *Mol {
	cp := &Mol{SMILES: m.SMILES}
	cp.Atoms = append([]MolAtom(nil), m.Atoms...)
	cp.Bonds = append([]Bond(nil), m.Bonds...)
	return cp
}

// defaultValence gives the standard valence used to derive implicit
// hydrogens.  Charges shift the effective valence for N- and O-family atoms.
var defaultValence = map[string]int{
	"B": 3, "C": 4, "N": 3, "O": 2, "P": 3, "S": 2,
	"F": 1, "CL": 1, "BR": 1, "I": 1,
}

// deriveHydrogens fills HCount for every atom whose hydrogen count was not
// fixed by a bracket expression.
func (m *Mol) deriveHydrogens() {
	for i := range m.Atoms {
		a := &m.Atoms[i]
		if a.hExplicit {
			continue
		}
		val, ok := defaultValence[strings.ToUpper(a.Element)]
		if !ok {
			a.HCount = 0
			continue
		}
		switch strings.ToUpper(a.Element) {
		case "N", "P":
			val += a.Charge
		case "O", "S":
			val += a.Charge
		}
		h := val - m.bondOrderSum(i)
		if h < 0 {
			h = 0
		}
		a.HCount = h
	}
}

// HeavyAtomCount returns the number of non-hydrogen atoms.
func (m *Mol) HeavyAtomCount() int {
	n := 0
	for _, a := range m.Atoms {
		if strings.ToUpper(a.Element) != "H" {
			n++
		}
	}
	return n
}

// ─────────────────────────────────────────────────────────────────────────────
// SMILES parser
// ─────────────────────────────────────────────────────────────────────────────

// organicSubset lists element symbols writable without brackets, longest
// match first.
var organicSubset = []string{"Cl", "Br", "B", "C", "N", "O", "P", "S", "F", "I"}

// Parse decodes a SMILES string into a molecular graph.  Supported syntax:
// the organic subset, bracket atoms with charge/hydrogen/isotope
// annotations, branches, ring-closure digits (including %nn), bond symbols
// - = # : / \, and dot-separated fragments.  On failure the returned error
// carries the offending substring.
func Parse(smiles string) (*Mol, error) {
	if strings.TrimSpace(smiles) == "" {
		return nil, errors.InvalidSMILES("empty SMILES string", "")
	}

	p := &parser{input: smiles, mol: &Mol{SMILES: smiles}}
	if err := p.run(); err != nil {
		return nil, err
	}
	p.mol.deriveHydrogens()
	return p.mol, nil
}

type ringBond struct {
	atom  int
	order int
}

type parser struct {
	input string
	pos   int
	mol   *Mol

	prev      int // index of the previous atom, -1 before the first
	stack     []int
	rings     map[int]ringBond
	nextOrder int
	nextArom  bool
}

func (p *parser) errorAt(msg string, from int) error {
	end := from + 8
	if end > len(p.input) {
		end = len(p.input)
	}
	return errors.InvalidSMILES(msg, p.input[from:end])
}

func (p *parser) run() error {
	p.prev = -1
	p.rings = map[int]ringBond{}
	p.nextOrder = 0

	for p.pos < len(p.input) {
		c := p.input[p.pos]
		switch {
		case c == '(':
			if p.prev < 0 {
				return p.errorAt("branch before any atom", p.pos)
			}
			p.stack = append(p.stack, p.prev)
			p.pos++
		case c == ')':
			if len(p.stack) == 0 {
				return p.errorAt("unbalanced closing parenthesis", p.pos)
			}
			p.prev = p.stack[len(p.stack)-1]
			p.stack = p.stack[:len(p.stack)-1]
			p.pos++
		case c == '-' || c == '=' || c == '#' || c == ':' || c == '/' || c == '\\':
			switch c {
			case '=':
				p.nextOrder = 2
			case '#':
				p.nextOrder = 3
			case ':':
				p.nextArom = true
			default:
				p.nextOrder = 1
			}
			p.pos++
		case c == '.':
			p.prev = -1
			p.nextOrder = 0
			p.pos++
		case c >= '0' && c <= '9':
			if err := p.closeRing(int(c - '0')); err != nil {
				return err
			}
			p.pos++
		case c == '%':
			if p.pos+2 >= len(p.input) {
				return p.errorAt("truncated two-digit ring closure", p.pos)
			}
			n, err := strconv.Atoi(p.input[p.pos+1 : p.pos+3])
			if err != nil {
				return p.errorAt("malformed two-digit ring closure", p.pos)
			}
			if err := p.closeRing(n); err != nil {
				return err
			}
			p.pos += 3
		case c == '[':
			if err := p.parseBracketAtom(); err != nil {
				return err
			}
		default:
			if err := p.parseOrganicAtom(); err != nil {
				return err
			}
		}
	}

	if len(p.stack) != 0 {
		return errors.InvalidSMILES("unbalanced opening parenthesis", p.input)
	}
	if len(p.rings) != 0 {
		for n := range p.rings {
			return errors.InvalidSMILES(
				fmt.Sprintf("unmatched ring closure %d", n), p.input)
		}
	}
	if len(p.mol.Atoms) == 0 {
		return errors.InvalidSMILES("no atoms in SMILES string", p.input)
	}
	return nil
}

// addAtom appends the atom and bonds it to the previous one.
func (p *parser) addAtom(a MolAtom) {
	idx := len(p.mol.Atoms)
	p.mol.Atoms = append(p.mol.Atoms, a)
	if p.prev >= 0 {
		order := p.nextOrder
		aromatic := p.nextArom || (a.Aromatic && p.mol.Atoms[p.prev].Aromatic && order == 0)
		if order == 0 {
			order = 1
		}
		p.mol.Bonds = append(p.mol.Bonds, Bond{A: p.prev, B: idx, Order: order, Aromatic: aromatic})
	}
	p.prev = idx
	p.nextOrder = 0
	p.nextArom = false
}

func (p *parser) closeRing(n int) error {
	if p.prev < 0 {
		return p.errorAt("ring closure before any atom", p.pos)
	}
	if open, ok := p.rings[n]; ok {
		delete(p.rings, n)
		if open.atom == p.prev {
			return p.errorAt("ring closure to itself", p.pos)
		}
		order := p.nextOrder
		if order == 0 {
			order = open.order
		}
		aromatic := p.mol.Atoms[open.atom].Aromatic && p.mol.Atoms[p.prev].Aromatic && order <= 1
		if order == 0 {
			order = 1
		}
		p.mol.Bonds = append(p.mol.Bonds, Bond{A: open.atom, B: p.prev, Order: order, Aromatic: aromatic})
	} else {
		p.rings[n] = ringBond{atom: p.prev, order: p.nextOrder}
	}
	p.nextOrder = 0
	return nil
}

func (p *parser) parseOrganicAtom() error {
	start := p.pos
	rest := p.input[p.pos:]

	// Aromatic lowercase subset.
	switch rest[0] {
	case 'b', 'c', 'n', 'o', 'p', 's':
		p.addAtom(MolAtom{
			Element:  strings.ToUpper(rest[:1]),
			Aromatic: true,
		})
		p.pos++
		return nil
	}

	for _, sym := range organicSubset {
		if strings.HasPrefix(rest, sym) {
			p.addAtom(MolAtom{Element: sym})
			p.pos += len(sym)
			return nil
		}
	}
	return p.errorAt("unexpected character", start)
}

// parseBracketAtom decodes "[<isotope><symbol><H<n>><charge>]".
func (p *parser) parseBracketAtom() error {
	start := p.pos
	end := strings.IndexByte(p.input[p.pos:], ']')
	if end < 0 {
		return p.errorAt("unterminated bracket atom", start)
	}
	body := p.input[p.pos+1 : p.pos+end]
	p.pos += end + 1

	i := 0
	// Isotope prefix is parsed and discarded; mass is irrelevant to docking.
	for i < len(body) && body[i] >= '0' && body[i] <= '9' {
		i++
	}
	if i == len(body) {
		return p.errorAt("bracket atom without element symbol", start)
	}

	var a MolAtom
	c := body[i]
	switch {
	case c >= 'a' && c <= 'z':
		a.Aromatic = true
		a.Element = strings.ToUpper(string(c))
		i++
	case c >= 'A' && c <= 'Z':
		sym := string(c)
		i++
		if i < len(body) && body[i] >= 'a' && body[i] <= 'z' {
			sym += string(body[i])
			i++
		}
		a.Element = sym
	default:
		return p.errorAt("bracket atom without element symbol", start)
	}

	for i < len(body) {
		switch body[i] {
		case 'H':
			i++
			n := 1
			j := i
			for j < len(body) && body[j] >= '0' && body[j] <= '9' {
				j++
			}
			if j > i {
				n, _ = strconv.Atoi(body[i:j])
				i = j
			}
			a.HCount = n
			a.hExplicit = true
		case '+', '-':
			sign := 1
			if body[i] == '-' {
				sign = -1
			}
			i++
			n := 1
			j := i
			for j < len(body) && body[j] >= '0' && body[j] <= '9' {
				j++
			}
			if j > i {
				n, _ = strconv.Atoi(body[i:j])
				i = j
			} else {
				// Repeated signs: ++ / --
				for i < len(body) && (body[i] == '+' || body[i] == '-') {
					n++
					i++
				}
			}
			a.Charge = sign * n
		case '@':
			// Chirality markers do not affect preparation; skipped.
			i++
		default:
			return p.errorAt("unsupported bracket annotation", start)
		}
	}
	if !a.hExplicit {
		a.hExplicit = true // bracket atoms default to zero hydrogens
	}
	p.addAtom(a)
	return nil
}
