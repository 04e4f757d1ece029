// Package cli implements the dockprep command tree.  Commands are thin
// adapters: they parse flags, call the application services, and render the
// result; all pipeline logic lives in internal/application/pipeline.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/turtacn/dockprep/internal/config"
	"github.com/turtacn/dockprep/internal/infrastructure/monitoring/logging"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

type cliContextKey struct{}

// RootOptions holds the global CLI flags.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	Output     string
	Verbose    bool
}

// CLIContext carries the initialized configuration and logger through the
// command tree.  Services are built lazily on first use so that commands
// which never touch optional infrastructure (postgres, redis, kafka, minio)
// do not require it to be reachable.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	OutputFormat string

	services *Services
}

// Services returns the wired application services, building them on first
// call.
func (c *CLIContext) Services() (*Services, error) {
	if c.services != nil {
		return c.services, nil
	}
	svcs, err := buildServices(c.Config, c.Logger)
	if err != nil {
		return nil, err
	}
	c.services = svcs
	return svcs, nil
}

// NewRootCommand creates the root command with global flags and all
// subcommands attached.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dockprep",
		Short: "Molecular docking preparation and execution pipeline",
		Long: "dockprep converts a protein accession code and a ligand SMILES string\n" +
			"into engine-ready docking inputs, runs the docking engine, and reports\n" +
			"ranked poses.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return persistentPreRun(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./dockprep.yaml)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level override (debug, info, warn, error)")
	pf.StringVarP(&opts.Output, "output", "o", "text", "output format (text, json)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable verbose logging")

	cmd.AddCommand(
		NewFetchCmd(),
		NewPrepareReceptorCmd(),
		NewPrepareLigandCmd(),
		NewBoxCmd(),
		NewDockCmd(),
		NewWorkerCmd(),
		NewRunsCmd(),
	)
	return cmd
}

func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	cfg, err := initConfig(opts)
	if err != nil {
		return err
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}

	cliCtx := &CLIContext{
		Config:       cfg,
		Logger:       logger,
		OutputFormat: opts.Output,
	}
	cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cliCtx))
	return nil
}

// initConfig loads configuration with priority: --config flag, then
// ./dockprep.yaml, then environment variables over built-in defaults.
func initConfig(opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.Load(opts.ConfigPath)
	}
	if _, err := os.Stat("dockprep.yaml"); err == nil {
		return config.Load("dockprep.yaml")
	}
	return config.LoadFromEnv()
}

// initLogger builds a CLI logger writing to stderr so that command output on
// stdout stays machine-readable.
func initLogger(cfg *config.Config) (logging.Logger, error) {
	format := "console"
	if cfg.Log.Format == "json" {
		format = "json"
	}
	return logging.NewLogger(logging.LogConfig{
		Level:       cfg.Log.Level,
		Format:      format,
		OutputPaths: []string{"stderr"},
	})
}

// GetCLIContext extracts the CLIContext installed by persistentPreRun.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	cliCtx, ok := cmd.Context().Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, fmt.Errorf("CLI context not initialized")
	}
	return cliCtx, nil
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// PrintResult renders data on stdout in the requested output format.
func PrintResult(cmd *cobra.Command, data interface{}) error {
	format := "text"
	if cliCtx, err := GetCLIContext(cmd); err == nil {
		format = cliCtx.OutputFormat
	}
	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	if s, ok := data.(fmt.Stringer); ok {
		fmt.Fprintln(cmd.OutOrStdout(), s.String())
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%+v\n", data)
	return nil
}
