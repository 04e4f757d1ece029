package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/dockprep/internal/application/pipeline"
	dtypes "github.com/turtacn/dockprep/pkg/types/docking"
)

// NewDockCmd creates the dock command: the full pipeline for one
// receptor+ligand pair.
func NewDockCmd() *cobra.Command {
	var (
		box         boxFlags
		chains      []string
		flexRes     []string
		protonation string
		ph          float64
		acidBase    bool
	)

	cmd := &cobra.Command{
		Use:     "dock <accession> <smiles>",
		Aliases: []string{"run"},
		Short:   "Prepare receptor and ligand, run the docking engine, and report ranked poses",
		Args:    cobra.ExactArgs(2),
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

			boxInput, err := box.input()
			if err != nil {
				return err
			}
			pcfg := cliCtx.Config.Pipeline
			if boxInput.Padding == 0 {
				boxInput.Padding = pcfg.BoxPadding
			}
			mode := dtypes.ProtonationMode(protonation)
			if protonation == "" {
				mode = dtypes.ProtonationMode(pcfg.ProtonationMode)
			}
			input := pipeline.DockInput{
				Accession: args[0],
				SMILES:    args[1],
				Box:       boxInput,
				Receptor: pipeline.ReceptorInput{
					Chains:          chains,
					FlexResidues:    flexRes,
					ProtonationMode: mode,
				},
				Ligand: pipeline.LigandInput{
					PH:                 ph,
					EnumerateTautomers: pcfg.EnumerateTautomers,
					EnumerateAcidBase:  acidBase || pcfg.EnumerateAcidBase,
					MaxVariants:        pcfg.MaxVariants,
					NumConformers:      pcfg.NumConformers,
					Seed:               pcfg.ConformerSeed,
				},
			}
			if input.Ligand.PH == 0 {
				input.Ligand.PH = pcfg.PH
			}

			out, err := svcs.Pool.Do(cmd.Context(), input)
			if err != nil {
				return err
			}
			return PrintResult(cmd, dockReport{out})
		},
	}

	box.register(cmd)
	f := cmd.Flags()
	f.StringSliceVar(&chains, "chain", nil, "restrict the receptor to chain(s)")
	f.StringSliceVar(&flexRes, "flex", nil, "flexible residue(s) as chain:resname:resseq")
	f.StringVar(&protonation, "protonation", "", "protonation mode: skip, best_effort, require")
	f.Float64Var(&ph, "ph", 0, "target pH for ligand protonation states")
	f.BoolVar(&acidBase, "acid-base", false, "enumerate ligand acid/base states")
	return cmd
}

type dockReport struct {
	out *pipeline.DockOutput
}

func (r dockReport) MarshalJSON() ([]byte, error) {
	type pose struct {
		Rank     int     `json:"rank"`
		Affinity float64 `json:"affinity"`
	}
	type report struct {
		RunID      string  `json:"run_id"`
		Status     string  `json:"status"`
		Poses      []pose  `json:"poses"`
		Best       float64 `json:"best_affinity"`
		CacheHit   bool    `json:"cache_hit"`
		Diagnostic string  `json:"diagnostic,omitempty"`
	}
	rep := report{
		RunID:    r.out.Run.ID.String(),
		Status:   r.out.Run.Status.String(),
		Best:     r.out.Result.Best().Affinity,
		CacheHit: r.out.CacheHit,
	}
	for _, p := range r.out.Result.Poses {
		rep.Poses = append(rep.Poses, pose{Rank: p.Rank, Affinity: p.Affinity})
	}
	return json.Marshal(rep)
}

func (r dockReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s %s (%d poses", r.out.Run.ID, r.out.Run.Status, r.out.Run.PoseCount)
	if r.out.CacheHit {
		b.WriteString(", cached")
	}
	b.WriteString(")")
	for _, p := range r.out.Result.Poses {
		fmt.Fprintf(&b, "\n  %2d  %8.2f kcal/mol", p.Rank, p.Affinity)
	}
	return b.String()
}
