package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/turtacn/dockprep/internal/application/pipeline"
	"github.com/turtacn/dockprep/internal/infrastructure/rcsb"
)

// NewFetchCmd creates the fetch command: download a structure by accession
// into the local cache.
func NewFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <accession>",
		Short: "Download a protein structure by its 4-character accession code",
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
			return runFetch(cmd.Context(), svcs.Fetcher, cmd.OutOrStdout(), args[0])
		},
	}
}

func runFetch(ctx context.Context, fetcher pipeline.StructureFetcher, out io.Writer, accession string) error {
	code, err := rcsb.ValidateAccession(accession)
	if err != nil {
		return err
	}
	path, err := fetcher.Fetch(ctx, code)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, path)
	return nil
}
