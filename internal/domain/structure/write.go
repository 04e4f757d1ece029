package structure

import (
	"fmt"
	"io"
	"strings"
)

// WritePDB serialises the Structure as fixed-width PDB text.  The CRYST1 card
// is emitted first when present (external protonation tools require one), a
// TER record closes each chain, and END terminates the file.
func WritePDB(w io.Writer, s *Structure) error {
	if s.cryst1 != "" {
		if _, err := fmt.Fprintln(w, s.cryst1); err != nil {
			return err
		}
	}
	prevChain := ""
	for i, a := range s.atoms {
		if prevChain != "" && a.Chain != prevChain {
			if _, err := fmt.Fprintln(w, "TER"); err != nil {
				return err
			}
		}
		prevChain = a.Chain
		if _, err := fmt.Fprintln(w, FormatAtomLine(a, i+1)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "END")
	return err
}

// PDBString returns the Structure as PDB text.
func PDBString(s *Structure) string {
	var sb strings.Builder
	_ = WritePDB(&sb, s)
	return sb.String()
}

// FormatAtomLine renders one atom as a fixed-width ATOM/HETATM record with
// the given serial number.  Serial numbers are reassigned on write so that
// selected subsets stay contiguous.
func FormatAtomLine(a Atom, serial int) string {
	record := "ATOM  "
	if a.Hetero {
		record = "HETATM"
	}
	return fmt.Sprintf("%s%5d %s%1s%-3s %1s%4d%1s   %8.3f%8.3f%8.3f%6.2f%6.2f          %2s",
		record, serial, padAtomName(a.Name, a.Element), a.AltLoc, a.ResName,
		a.Chain, a.ResSeq, a.ICode, a.X, a.Y, a.Z, a.Occupancy, a.BFactor,
		a.Element)
}

// padAtomName aligns the atom name within columns 13-16: names of one- and
// two-letter elements start at column 14, four-character names and two-letter
// elements at column 13.
func padAtomName(name, element string) string {
	if len(name) >= 4 {
		return name[:4]
	}
	if len(element) == 2 {
		return fmt.Sprintf("%-4s", name)
	}
	return fmt.Sprintf(" %-3s", name)
}
