package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/turtacn/dockprep/internal/application/pipeline"
	"github.com/turtacn/dockprep/internal/domain/docking"
	"github.com/turtacn/dockprep/internal/domain/structure"
)

// boxFlags collects the grid-box flags shared by the box and dock commands.
type boxFlags struct {
	center  []float64
	size    []float64
	ref     string
	chain   string
	resSeq  int
	padding float64
}

func (b *boxFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64SliceVar(&b.center, "center", nil, "explicit box center as x,y,z")
	f.Float64SliceVar(&b.size, "size", nil, "box extents as x,y,z")
	f.StringVar(&b.ref, "ref", "", "reference ligand residue name, e.g. STI")
	f.StringVar(&b.chain, "ref-chain", "", "chain of the reference residue")
	f.IntVar(&b.resSeq, "ref-resseq", 0, "sequence number of the reference residue")
	f.Float64Var(&b.padding, "padding", 0, "margin around the reference bounding box (default from config)")
}

func (b *boxFlags) input() (pipeline.BoxInput, error) {
	in := pipeline.BoxInput{
		RefResName: b.ref,
		RefChain:   b.chain,
		RefResSeq:  b.resSeq,
		Padding:    b.padding,
	}
	if len(b.center) > 0 {
		if len(b.center) != 3 {
			return in, fmt.Errorf("--center requires exactly three values, got %d", len(b.center))
		}
		in.Center = &[3]float64{b.center[0], b.center[1], b.center[2]}
	}
	if len(b.size) > 0 {
		if len(b.size) != 3 {
			return in, fmt.Errorf("--size requires exactly three values, got %d", len(b.size))
		}
		in.Size = &[3]float64{b.size[0], b.size[1], b.size[2]}
	}
	return in, nil
}

// NewBoxCmd creates the box command: resolve a search box without docking.
func NewBoxCmd() *cobra.Command {
	var (
		flags   boxFlags
		pdbPath string
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "box",
		Short: "Resolve the docking search box from explicit bounds or a reference ligand",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			input, err := flags.input()
			if err != nil {
				return err
			}
			if input.Padding == 0 {
				input.Padding = cliCtx.Config.Pipeline.BoxPadding
			}
			var st *structure.Structure
			if pdbPath != "" {
				f, err := os.Open(pdbPath)
				if err != nil {
					return err
				}
				defer f.Close()
				if st, err = structure.Parse(f); err != nil {
					return err
				}
			}
			box, err := pipeline.ResolveBox(input, st)
			if err != nil {
				return err
			}
			if outPath != "" {
				if err := writeOutput(outPath, box.CornersPDB()); err != nil {
					return err
				}
			}
			return PrintResult(cmd, boxReport{box})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&pdbPath, "pdb", "", "structure file for reference-selection mode")
	cmd.Flags().StringVar(&outPath, "out", "", "write the box corners as a PDB file for visual inspection")
	return cmd
}

type boxReport struct {
	Box docking.GridBox `json:"box"`
}

func (r boxReport) String() string { return r.Box.ConfigText() }
