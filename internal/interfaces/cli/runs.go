package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/dockprep/internal/domain/docking"
	"github.com/turtacn/dockprep/internal/infrastructure/database/postgres"
	"github.com/turtacn/dockprep/pkg/errors"
	"github.com/turtacn/dockprep/pkg/types/common"
	dtypes "github.com/turtacn/dockprep/pkg/types/docking"
)

// NewRunsCmd creates the runs command group for inspecting persisted runs.
func NewRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect persisted docking runs",
	}
	cmd.AddCommand(newRunsListCmd(), newRunsShowCmd())
	return cmd
}

func newRunsListCmd() *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent docking runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, cleanup, err := runRepo(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			var runs []*docking.Run
			if status != "" {
				st := dtypes.RunStatus(status)
				if !st.IsValid() {
					return errors.InvalidParam("unknown run status: " + status)
				}
				runs, err = repo.ListByStatus(cmd.Context(), st, limit)
			} else {
				runs, err = repo.ListRecent(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}
			return PrintResult(cmd, runList(runs))
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status: pending, running, succeeded, failed")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one docking run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, cleanup, err := runRepo(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			run, err := repo.FindByID(cmd.Context(), common.ID(args[0]))
			if err != nil {
				return err
			}
			return PrintResult(cmd, runList([]*docking.Run{run}))
		},
	}
}

// runRepo resolves the persisted-run repository, which requires persistence
// to be enabled in the configuration.
func runRepo(cmd *cobra.Command) (postgres.RunRepository, func(), error) {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return nil, nil, err
	}
	if !cliCtx.Config.PersistenceEnabled {
		return nil, nil, errors.New(errors.CodeValidation,
			"runs inspection requires persistence_enabled and a database in the configuration")
	}
	svcs, err := cliCtx.Services()
	if err != nil {
		return nil, nil, err
	}
	return svcs.Runs, svcs.Close, nil
}

// runList renders runs for both output formats.
type runList []*docking.Run

func (l runList) String() string {
	if len(l) == 0 {
		return "no runs"
	}
	var b strings.Builder
	for i, r := range l {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s  %-9s  %s  %s", r.ID, r.Status, r.Accession, r.LigandSMILES)
		if r.BestAffinity != nil {
			fmt.Fprintf(&b, "  best %.2f", *r.BestAffinity)
		}
		if r.FailureCode != "" {
			fmt.Fprintf(&b, "  [%s]", r.FailureCode)
		}
	}
	return b.String()
}
