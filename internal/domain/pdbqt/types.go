// Package pdbqt encodes receptors and ligands into the PDBQT format consumed
// by AutoDock-family docking engines: PDB atom records extended with a
// partial charge column and an AutoDock atom type.
package pdbqt

import (
	"strings"

	"github.com/turtacn/dockprep/internal/domain/ligand"
)

// ─────────────────────────────────────────────────────────────────────────────
// AutoDock atom typing
// ─────────────────────────────────────────────────────────────────────────────

// AtomType is an AutoDock atom type code (C, A, N, NA, OA, SA, HD, ...).
type AtomType string

// LigandAtomType assigns the AutoDock type for atom i of an embedded
// conformer.  Aromatic carbons map to A, hydrogen-free nitrogens and all
// oxygens are acceptors, and every explicit hydrogen in the conformer is a
// polar donor hydrogen (nonpolar hydrogens stay implicit).
func LigandAtomType(conf *ligand.Conformer, i int) AtomType {
	a := conf.Atoms[i]
	el := strings.ToUpper(a.Element)
	switch el {
	case "C":
		if a.Aromatic {
			return "A"
		}
		return "C"
	case "N":
		if a.HCount == 0 {
			return "NA"
		}
		return "N"
	case "O":
		return "OA"
	case "S":
		if a.Aromatic || a.HCount == 0 {
			return "SA"
		}
		return "S"
	case "H":
		return "HD"
	case "CL":
		return "Cl"
	case "BR":
		return "Br"
	default:
		return AtomType(titleElement(el))
	}
}

// titleElement renders an element symbol with conventional casing (FE -> Fe).
func titleElement(el string) string {
	el = strings.ToLower(el)
	if el == "" {
		return el
	}
	return strings.ToUpper(el[:1]) + el[1:]
}

// ReceptorAtomType maps a receptor element symbol to its AutoDock type.
// Receptor typing is element-driven because the PDB record carries no bond
// information.
func ReceptorAtomType(element string) AtomType {
	switch strings.ToUpper(strings.TrimSpace(element)) {
	case "C":
		return "C"
	case "N":
		return "N"
	case "O":
		return "OA"
	case "S":
		return "SA"
	case "H":
		return "HD"
	case "P":
		return "P"
	case "CL":
		return "Cl"
	case "BR":
		return "Br"
	case "ZN":
		return "Zn"
	case "MG":
		return "Mg"
	case "CA":
		return "Ca"
	case "MN":
		return "Mn"
	case "FE":
		return "Fe"
	default:
		el := strings.TrimSpace(element)
		if el == "" {
			return "C"
		}
		return AtomType(titleElement(el))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Partial charges
// ─────────────────────────────────────────────────────────────────────────────

// electronegativity holds Pauling values for the charge model.
var electronegativity = map[string]float64{
	"H": 2.20, "B": 2.04, "C": 2.55, "N": 3.04, "O": 3.44,
	"P": 2.19, "S": 2.58, "F": 3.98, "CL": 3.16, "BR": 2.96, "I": 2.66,
}

// chargeTransferK scales the per-bond electronegativity difference into a
// partial charge increment.  The value reproduces the magnitude of Gasteiger
// charges for common organic bonds without the iterative scheme.
const chargeTransferK = 0.16

// LigandCharges computes partial charges for every atom of a conformer with
// a one-step electronegativity equalization: each bond shifts charge from
// the less to the more electronegative end, and formal charges add on top.
func LigandCharges(conf *ligand.Conformer) []float64 {
	q := make([]float64, len(conf.Atoms))
	chi := func(i int) float64 {
		v, ok := electronegativity[strings.ToUpper(conf.Atoms[i].Element)]
		if !ok {
			return 2.50
		}
		return v
	}
	for _, b := range conf.Bonds {
		delta := (chi(b.B) - chi(b.A)) * chargeTransferK * float64(b.Order)
		q[b.A] += delta
		q[b.B] -= delta
	}
	// Hydrogens made explicit during embedding are already covered by the
	// bond loop; only the remaining implicit ones contribute here.
	explicitH := make([]int, len(conf.Atoms))
	for _, parent := range conf.HeavyParent {
		explicitH[parent]++
	}
	for i, a := range conf.Atoms {
		q[i] += float64(a.Charge)
		if strings.ToUpper(a.Element) == "H" {
			continue
		}
		if implicit := a.HCount - explicitH[i]; implicit > 0 {
			hChi := electronegativity["H"]
			q[i] -= (chi(i) - hChi) * chargeTransferK * float64(implicit)
		}
	}
	return q
}

// receptorCharge gives a fixed per-element charge for rigid receptor atoms.
// Receptor charges only enter the engine's electrostatic term, where this
// level of approximation matches the element-driven typing above.
func receptorCharge(element string) float64 {
	switch strings.ToUpper(strings.TrimSpace(element)) {
	case "N":
		return -0.35
	case "O":
		return -0.45
	case "S":
		return -0.20
	case "H":
		return 0.16
	case "C":
		return 0.10
	default:
		return 0.0
	}
}
