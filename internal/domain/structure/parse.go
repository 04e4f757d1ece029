package structure

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/turtacn/dockprep/pkg/errors"
)

// Parse reads PDB-format text and returns the Structure of its first model.
// ATOM and HETATM records are consumed; everything else is skipped except
// CRYST1 (kept verbatim for external protonation tools) and ENDMDL, which
// terminates parsing so that multi-model files yield a single conformation.
//
// Column layout follows the wwPDB format description, section 9 (ATOM):
//
//	serial 7-11, name 13-16, altLoc 17, resName 18-20, chain 22,
//	resSeq 23-26, iCode 27, x 31-38, y 39-46, z 47-54,
//	occupancy 55-60, bFactor 61-66, element 77-78
func Parse(r io.Reader) (*Structure, error) {
	var atoms []Atom
	var cryst1 string

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "CRYST1"):
			cryst1 = line
		case strings.HasPrefix(line, "ENDMDL"):
			goto done
		case strings.HasPrefix(line, "ATOM") || strings.HasPrefix(line, "HETATM"):
			atom, err := parseAtomLine(line)
			if err != nil {
				return nil, errors.Wrap(err, errors.CodeStructureParse,
					"malformed atom record").WithDetail(
					"line " + strconv.Itoa(lineNo))
			}
			atoms = append(atoms, atom)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeStructureParse, "read structure text")
	}

done:
	if len(atoms) == 0 {
		return nil, errors.New(errors.CodeStructureParse, "no atom records found")
	}
	s, err := New(atoms)
	if err != nil {
		return nil, err
	}
	if cryst1 != "" {
		s = s.WithCryst1(cryst1)
	}
	return s, nil
}

// ParseString is a convenience wrapper over Parse.
func ParseString(text string) (*Structure, error) {
	return Parse(strings.NewReader(text))
}

// parseAtomLine decodes one fixed-width ATOM/HETATM record.  Short lines are
// padded so that files with trailing columns trimmed (common in tool output)
// still parse; the coordinate columns themselves must be present.
func parseAtomLine(line string) (Atom, error) {
	if len(line) < 54 {
		return Atom{}, errors.New(errors.CodeStructureParse, "record shorter than coordinate columns")
	}
	if len(line) < 80 {
		line = line + strings.Repeat(" ", 80-len(line))
	}

	var a Atom
	var err error
	a.Hetero = strings.HasPrefix(line, "HETATM")

	if a.Serial, err = atoiField(line[6:11]); err != nil {
		return Atom{}, err
	}
	a.Name = strings.TrimSpace(line[12:16])
	a.AltLoc = strings.TrimSpace(line[16:17])
	a.ResName = strings.TrimSpace(line[17:20])
	a.Chain = strings.TrimSpace(line[21:22])
	if a.ResSeq, err = atoiField(line[22:26]); err != nil {
		return Atom{}, err
	}
	a.ICode = strings.TrimSpace(line[26:27])

	if a.X, err = atofField(line[30:38]); err != nil {
		return Atom{}, err
	}
	if a.Y, err = atofField(line[38:46]); err != nil {
		return Atom{}, err
	}
	if a.Z, err = atofField(line[46:54]); err != nil {
		return Atom{}, err
	}

	// Occupancy and B-factor are optional in practice.
	a.Occupancy, _ = atofField(line[54:60])
	a.BFactor, _ = atofField(line[60:66])

	a.Element = strings.TrimSpace(line[76:78])
	if a.Element == "" {
		a.Element = elementFromName(a.Name)
	}
	return a, nil
}

func atoiField(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func atofField(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// elementFromName guesses the element symbol from the atom name for files
// that omit columns 77-78.  Two-letter elements (FE, ZN, CL, BR, MG, ...) are
// name-aligned at column 13; single-letter elements are at column 14, so a
// trimmed name starting with a digit or with H/C/N/O/S/P maps to that letter.
func elementFromName(name string) string {
	name = strings.TrimLeft(name, "0123456789")
	if name == "" {
		return ""
	}
	// "CA" is deliberately absent: in protein records it is the alpha carbon,
	// and calcium ions carry an explicit element column.
	twoLetter := map[string]string{
		"FE": "FE", "ZN": "ZN", "MG": "MG", "MN": "MN",
		"CL": "CL", "BR": "BR", "NA": "NA", "CU": "CU", "NI": "NI",
	}
	if len(name) >= 2 {
		if el, ok := twoLetter[strings.ToUpper(name[:2])]; ok {
			return el
		}
	}
	return strings.ToUpper(name[:1])
}
