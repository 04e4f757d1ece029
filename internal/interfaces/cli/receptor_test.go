package cli

import (
	"strings"
	"testing"
)

func TestReceptorReport_String(t *testing.T) {
	rep := receptorReport{
		Accession:          "1ABC",
		RigidPath:          "1ABC_receptor.pdbqt",
		ProtonationApplied: true,
		InputAtoms:         1200,
		OutputAtoms:        1100,
	}
	s := rep.String()
	if !strings.Contains(s, "1100/1200 atoms") {
		t.Errorf("expected atom counts, got %q", s)
	}
	if strings.Contains(s, "flex:") {
		t.Errorf("rigid-only report should not mention flex output, got %q", s)
	}

	rep.FlexPath = "1ABC_flex.pdbqt"
	rep.FlexResidues = []string{"A:SER:190"}
	s = rep.String()
	if !strings.Contains(s, "1ABC_flex.pdbqt") || !strings.Contains(s, "(1 residues)") {
		t.Errorf("expected flex line, got %q", s)
	}
}

func TestNewPrepareReceptorCmd_Flags(t *testing.T) {
	cmd := NewPrepareReceptorCmd()
	for _, name := range []string{"chain", "keep", "flex", "protonation", "out"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected flag %q", name)
		}
	}
}
