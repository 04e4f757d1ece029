package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/dockprep/internal/application/pipeline"
)

// NewPrepareLigandCmd creates the prepare-ligand command.
func NewPrepareLigandCmd() *cobra.Command {
	var (
		ph         float64
		tautomers  bool
		acidBase   bool
		maxVar     int
		conformers int
		seed       int64
		outDir     string
	)

	cmd := &cobra.Command{
		Use:   "prepare-ligand <smiles>",
		Short: "Enumerate protonation variants, embed 3D conformers, and encode PDBQT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			svcs, err := cliCtx.Services()
			if err != nil {
				return err
			}
			defer svcs.Close()

			pcfg := cliCtx.Config.Pipeline
			input := pipeline.LigandInput{
				SMILES:             args[0],
				PH:                 ph,
				EnumerateTautomers: tautomers || pcfg.EnumerateTautomers,
				EnumerateAcidBase:  acidBase || pcfg.EnumerateAcidBase,
				MaxVariants:        maxVar,
				NumConformers:      conformers,
				Seed:               seed,
			}
			if input.PH == 0 {
				input.PH = pcfg.PH
			}
			if input.MaxVariants == 0 {
				input.MaxVariants = pcfg.MaxVariants
			}
			if input.NumConformers == 0 {
				input.NumConformers = pcfg.NumConformers
			}
			return runPrepareLigand(cmd, svcs.Ligands, input, outDir)
		},
	}

	f := cmd.Flags()
	f.Float64Var(&ph, "ph", 0, "target pH for protonation states (default from config)")
	f.BoolVar(&tautomers, "tautomers", false, "enumerate ring tautomers")
	f.BoolVar(&acidBase, "acid-base", false, "enumerate acid/base protonation states")
	f.IntVar(&maxVar, "max-variants", 0, "cap on enumerated variants (default from config)")
	f.IntVar(&conformers, "conformers", 0, "3D embeddings per variant (default from config)")
	f.Int64Var(&seed, "seed", 0, "conformer seed for reproducible output")
	f.StringVar(&outDir, "out", ".", "directory for the encoded ligand files")
	return cmd
}

type ligandReport struct {
	SMILES   string              `json:"smiles"`
	Variants []ligandVariantInfo `json:"variants"`
	Failures []string            `json:"failures,omitempty"`
}

type ligandVariantInfo struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
	Path        string  `json:"path"`
}

func (r ligandReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ligand %s: %d variant(s) prepared", r.SMILES, len(r.Variants))
	for _, v := range r.Variants {
		fmt.Fprintf(&b, "\n  %-24s p=%.3f  %s", v.Label, v.Probability, v.Path)
	}
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "\n  failed: %s", f)
	}
	return b.String()
}

func runPrepareLigand(cmd *cobra.Command, svc *pipeline.LigandService,
	input pipeline.LigandInput, outDir string) error {
	prepared, err := svc.Prepare(cmd.Context(), input)
	if err != nil {
		return err
	}

	report := ligandReport{SMILES: prepared.SMILES}
	for _, v := range prepared.Variants {
		path := filepath.Join(outDir, "ligand_"+sanitizeLabel(v.Label)+".pdbqt")
		if err := writeOutput(path, v.PDBQT); err != nil {
			return err
		}
		report.Variants = append(report.Variants, ligandVariantInfo{
			Label:       v.Label,
			Probability: v.Probability,
			Path:        path,
		})
	}
	for _, f := range prepared.Failures {
		report.Failures = append(report.Failures, f.Label+": "+f.Err.Error())
	}
	return PrintResult(cmd, report)
}

// sanitizeLabel makes a variant label safe for use in a file name.
func sanitizeLabel(label string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, label)
}
