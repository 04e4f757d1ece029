// Package structure provides the core domain model for macromolecular
// structures in the dockprep pipeline.  A Structure is an ordered, immutable
// sequence of atom records parsed from PDB-format text; all transformations
// (selection, protonation) produce new Structure values rather than mutating
// in place.
package structure

import (
	"fmt"

	"github.com/turtacn/dockprep/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Atom
// ─────────────────────────────────────────────────────────────────────────────

// Atom is a single atom record.  Field layout mirrors the fixed-width
// ATOM/HETATM columns of the PDB format.
type Atom struct {
	Serial    int
	Name      string
	AltLoc    string
	ResName   string
	Chain     string
	ResSeq    int
	ICode     string
	X, Y, Z   float64
	Occupancy float64
	BFactor   float64
	Element   string

	// Hetero marks HETATM records (ligands, ions, waters).
	Hetero bool
}

// ResidueID returns the atom's residue identity in "chain:resname:resseq"
// form, e.g. "A:STI:201".  Flexible-residue lists and selection specs use
// this notation.
func (a Atom) ResidueID() string {
	return fmt.Sprintf("%s:%s:%d", a.Chain, a.ResName, a.ResSeq)
}

// identity is the uniqueness key within a Structure: no two atoms may share
// (chain, residue, atom name, alt-location, insertion code).
func (a Atom) identity() string {
	return fmt.Sprintf("%s|%d|%s|%s|%s", a.Chain, a.ResSeq, a.Name, a.AltLoc, a.ICode)
}

// IsWater reports whether the atom belongs to a crystallographic water.
func (a Atom) IsWater() bool {
	switch a.ResName {
	case "HOH", "WAT", "H2O", "DOD":
		return true
	}
	return false
}

// IsProtein reports whether the atom belongs to one of the standard amino
// acid residues.
func (a Atom) IsProtein() bool {
	_, ok := standardResidues[a.ResName]
	return ok
}

// standardResidues is the set of three-letter codes treated as protein.
var standardResidues = map[string]struct{}{
	"ALA": {}, "ARG": {}, "ASN": {}, "ASP": {}, "CYS": {},
	"GLU": {}, "GLN": {}, "GLY": {}, "HIS": {}, "ILE": {},
	"LEU": {}, "LYS": {}, "MET": {}, "PHE": {}, "PRO": {},
	"SER": {}, "THR": {}, "TRP": {}, "TYR": {}, "VAL": {},
	"SEC": {}, "PYL": {}, "MSE": {},
}

// ─────────────────────────────────────────────────────────────────────────────
// Structure
// ─────────────────────────────────────────────────────────────────────────────

// Structure is an ordered sequence of atoms plus the raw CRYST1 card of the
// source file (needed by external protonation tools).  Atom order is stable:
// downstream components reference atoms by index.
type Structure struct {
	atoms  []Atom
	cryst1 string
}

// New constructs a Structure from a slice of atoms, enforcing the uniqueness
// invariant on (chain, residue, atom name, alt-location).  The slice is
// copied; callers may reuse their own.
func New(atoms []Atom) (*Structure, error) {
	seen := make(map[string]struct{}, len(atoms))
	for _, a := range atoms {
		key := a.identity()
		if _, dup := seen[key]; dup {
			return nil, errors.New(errors.CodeStructureParse,
				"duplicate atom identity").WithDetail(key)
		}
		seen[key] = struct{}{}
	}
	cp := make([]Atom, len(atoms))
	copy(cp, atoms)
	return &Structure{atoms: cp}, nil
}

// Len returns the number of atoms.
func (s *Structure) Len() int { return len(s.atoms) }

// At returns the atom at index i.  Panics on out-of-range, like a slice.
func (s *Structure) At(i int) Atom { return s.atoms[i] }

// Atoms returns a copy of the atom slice, preserving order.
func (s *Structure) Atoms() []Atom {
	cp := make([]Atom, len(s.atoms))
	copy(cp, s.atoms)
	return cp
}

// Cryst1 returns the raw CRYST1 card from the source file, or "" when the
// file carried none.
func (s *Structure) Cryst1() string { return s.cryst1 }

// WithCryst1 returns a copy of the Structure carrying the given CRYST1 card.
func (s *Structure) WithCryst1(card string) *Structure {
	return &Structure{atoms: s.atoms, cryst1: card}
}

// Centroid returns the unweighted arithmetic mean of all atom coordinates.
// Fails with an empty-selection error on a Structure with no atoms.
func (s *Structure) Centroid() (x, y, z float64, err error) {
	if len(s.atoms) == 0 {
		return 0, 0, 0, errors.EmptySelection("centroid of empty structure")
	}
	for _, a := range s.atoms {
		x += a.X
		y += a.Y
		z += a.Z
	}
	n := float64(len(s.atoms))
	return x / n, y / n, z / n, nil
}

// Bounds returns the axis-aligned bounding box of all atom coordinates.
func (s *Structure) Bounds() (min, max [3]float64, err error) {
	if len(s.atoms) == 0 {
		return min, max, errors.EmptySelection("bounds of empty structure")
	}
	first := s.atoms[0]
	min = [3]float64{first.X, first.Y, first.Z}
	max = min
	for _, a := range s.atoms[1:] {
		for i, v := range [3]float64{a.X, a.Y, a.Z} {
			if v < min[i] {
				min[i] = v
			}
			if v > max[i] {
				max[i] = v
			}
		}
	}
	return min, max, nil
}

// HasHetero reports whether any atom carries the heteroatom flag.
func (s *Structure) HasHetero() bool {
	for _, a := range s.atoms {
		if a.Hetero {
			return true
		}
	}
	return false
}
