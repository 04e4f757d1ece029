package pdbqt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/turtacn/dockprep/internal/domain/structure"
	"github.com/turtacn/dockprep/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Receptor encoding
// ─────────────────────────────────────────────────────────────────────────────

// backboneNames lists the atom names kept rigid when a residue is declared
// flexible; everything else in the residue is the mobile side chain.
var backboneNames = map[string]bool{
	"N": true, "CA": true, "C": true, "O": true, "OXT": true,
	"H": true, "HA": true, "H1": true, "H2": true, "H3": true,
}

// ReceptorEncoding is the result of encoding a receptor: the rigid body and,
// when flexible residues were requested, their side-chain encoding.
type ReceptorEncoding struct {
	Rigid string
	Flex  string

	// FlexResidues lists the residue IDs actually encoded as flexible, in
	// the order their blocks appear in Flex.
	FlexResidues []string
}

// EncodeReceptor renders a prepared receptor structure as PDBQT.  Residues
// named in flexResidues (by their chain:resname:resseq ID) have their
// side-chain atoms moved into the flexible encoding; their backbone stays in
// the rigid body.  Naming a residue absent from the structure is an error.
func EncodeReceptor(st *structure.Structure, flexResidues []string) (*ReceptorEncoding, error) {
	if st == nil || st.Len() == 0 {
		return nil, errors.New(errors.CodeValidation, "cannot encode empty receptor structure")
	}

	flexWanted := map[string]bool{}
	for _, id := range flexResidues {
		flexWanted[id] = true
	}

	present := map[string]bool{}
	for _, a := range st.Atoms() {
		present[a.ResidueID()] = true
	}
	for id := range flexWanted {
		if !present[id] {
			return nil, errors.New(errors.CodeValidation,
				fmt.Sprintf("flexible residue %s not found in receptor", id))
		}
	}

	var rigid strings.Builder
	flexAtoms := map[string][]structure.Atom{}
	serial := 0
	for _, a := range st.Atoms() {
		id := a.ResidueID()
		if flexWanted[id] && !backboneNames[strings.ToUpper(a.Name)] {
			flexAtoms[id] = append(flexAtoms[id], a)
			continue
		}
		serial++
		rigid.WriteString(receptorAtomLine(a, serial))
	}

	enc := &ReceptorEncoding{Rigid: rigid.String()}
	if len(flexWanted) == 0 {
		return enc, nil
	}

	ids := make([]string, 0, len(flexWanted))
	for id := range flexWanted {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var flex strings.Builder
	for _, id := range ids {
		atoms := flexAtoms[id]
		if len(atoms) == 0 {
			return nil, errors.New(errors.CodeValidation,
				fmt.Sprintf("flexible residue %s has no side-chain atoms", id))
		}
		first := atoms[0]
		fmt.Fprintf(&flex, "BEGIN_RES %s %s %d\n", first.ResName, first.Chain, first.ResSeq)
		flex.WriteString("ROOT\n")
		fs := 0
		for _, a := range atoms {
			fs++
			flex.WriteString(receptorAtomLine(a, fs))
		}
		flex.WriteString("ENDROOT\n")
		fmt.Fprintf(&flex, "END_RES %s %s %d\n", first.ResName, first.Chain, first.ResSeq)
		enc.FlexResidues = append(enc.FlexResidues, id)
	}
	enc.Flex = flex.String()
	return enc, nil
}

// receptorAtomLine renders one receptor PDBQT ATOM record with the
// element-driven type and charge.
func receptorAtomLine(a structure.Atom, serial int) string {
	record := "ATOM  "
	if a.Hetero {
		record = "HETATM"
	}
	return fmt.Sprintf("%s%5d %s%1s%-3s %1s%4d%1s   %8.3f%8.3f%8.3f%6.2f%6.2f    %6.3f %-2s\n",
		record, serial, padReceptorName(a.Name), a.AltLoc, a.ResName,
		a.Chain, a.ResSeq, a.ICode,
		a.X, a.Y, a.Z, a.Occupancy, a.BFactor,
		receptorCharge(a.Element), ReceptorAtomType(a.Element))
}

// padReceptorName aligns atom names the PDB way: one- and two-letter element
// names start in column 14, longer names fill from column 13.
func padReceptorName(name string) string {
	if len(name) >= 4 {
		return name[:4]
	}
	if len(name) < 4 && len(name) > 0 && !startsTwoLetterElement(name) {
		return fmt.Sprintf(" %-3s", name)
	}
	return fmt.Sprintf("%-4s", name)
}

func startsTwoLetterElement(name string) bool {
	u := strings.ToUpper(name)
	for _, el := range []string{"CL", "BR", "FE", "ZN", "MG", "MN", "NA", "SE"} {
		if strings.HasPrefix(u, el) {
			return true
		}
	}
	return false
}
