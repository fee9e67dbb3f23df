// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/ghidra-auto/internal/config"
	"github.com/xkilldash9x/ghidra-auto/internal/launcher"
	"github.com/xkilldash9x/ghidra-auto/internal/observability"
	"github.com/xkilldash9x/ghidra-auto/internal/workspace"
)

const appName = "ghidra-auto"

// ErrMissingArgument is returned when no binary path was given.
var ErrMissingArgument = errors.New("missing required argument: <binary>")

type contextKey string

const configKey contextKey = "config"

const usageText = `Usage: %s <binary>

Imports <binary> into a new Ghidra project under $HOME/GhidraProjects/<name>_<timestamp>
and then opens the project in the Ghidra GUI.

Requirements:
  - analyzeHeadless and ghidra available in PATH (e.g. export PATH="/opt/ghidra/support:$PATH")
  - $HOME set (falls back to ./GhidraProjects if not)

Flags:
%s`

// Runner executes the import and open steps for a resolved workspace.
type Runner interface {
	Run(ctx context.Context, layout workspace.Layout, inputPath string) error
}

// Dependencies holds the process-wide state the root command reads.
// Tests replace them to get a deterministic HOME, clock and tools.
type Dependencies struct {
	LookupEnv workspace.LookupEnvFunc
	Now       workspace.ClockFunc
	NewRunner func(cfg config.GhidraConfig, logger *zap.Logger, cmd *cobra.Command) Runner
}

// DefaultDependencies reads the real environment and clock and starts real processes.
func DefaultDependencies() Dependencies {
	return Dependencies{
		LookupEnv: os.LookupEnv,
		Now:       time.Now,
		NewRunner: func(cfg config.GhidraConfig, logger *zap.Logger, cmd *cobra.Command) Runner {
			l := launcher.New(cfg, logger)
			l.Stdin = cmd.InOrStdin()
			l.Stdout = cmd.OutOrStdout()
			l.Stderr = cmd.ErrOrStderr()
			return l
		},
	}
}

// NewRootCommand creates the root command wired to the real process.
func NewRootCommand() *cobra.Command {
	return newRootCmd(DefaultDependencies())
}

func newRootCmd(deps Dependencies) *cobra.Command {
	var (
		cfgFile string
		noOpen  bool
	)

	cmd := &cobra.Command{
		Use:           appName + " <binary>",
		Short:         "Import a binary into a fresh Ghidra project and open it.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		// Only the first positional argument is used; extras are logged and ignored.
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				printUsage(cmd)
				return ErrMissingArgument
			}
			return nil
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(v, cfgFile, deps.LookupEnv); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return fmt.Errorf("failed to load or validate config: %w", err)
			}
			if noOpen {
				cfg.SetGhidraOpen(false)
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting ghidra-auto", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, ok := cmd.Context().Value(configKey).(*config.Config)
			if !ok {
				return errors.New("configuration missing from command context")
			}
			logger := observability.GetLogger().With(zap.String("run_id", uuid.NewString()))

			if len(args) > 1 {
				logger.Warn("Ignoring extra arguments", zap.Strings("ignored", args[1:]))
			}
			return runLaunch(cmd, deps, cfg.Ghidra(), logger, args[0])
		},
	}

	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is $HOME/.ghidra-auto/config.yaml)")
	cmd.Flags().BoolVar(&noOpen, "no-open", false, "import only; do not open the project in the GUI")
	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	cmd.SetHelpFunc(func(c *cobra.Command, _ []string) { printUsage(c) })
	cmd.SetUsageFunc(func(c *cobra.Command) error {
		printUsage(c)
		return nil
	})
	return cmd
}

// runLaunch creates the workspace, reports the project path and hands over to the runner.
func runLaunch(cmd *cobra.Command, deps Dependencies, cfg config.GhidraConfig, logger *zap.Logger, inputPath string) error {
	resolver := workspace.NewResolver(cfg, deps.LookupEnv, deps.Now)
	layout, err := resolver.Resolve(inputPath)
	if err != nil {
		return err
	}

	// The import tool must never run against a directory that does not exist.
	if err := layout.Create(); err != nil {
		return err
	}
	logger.Info("Project directory ready",
		zap.String("input", inputPath),
		zap.String("project_dir", layout.Dir),
		zap.String("project_name", layout.Name),
	)

	fmt.Fprintf(cmd.OutOrStdout(), "Project saved as: %s\n", layout.ProjectFile)

	return deps.NewRunner(cfg, logger, cmd).Run(cmd.Context(), layout, inputPath)
}

// initializeConfig reads in the config file and ENV variables if set.
func initializeConfig(v *viper.Viper, cfgFile string, lookupEnv workspace.LookupEnvFunc) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, ok := lookupEnv("HOME"); ok && home != "" {
			v.AddConfigPath(filepath.Join(home, "."+appName))
		}
		v.AddConfigPath(filepath.Join(string(filepath.Separator), "etc", appName))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	config.BindEnvironment(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars
	}
	return nil
}

func printUsage(cmd *cobra.Command) {
	fmt.Fprintf(cmd.OutOrStdout(), usageText, cmd.Root().Name(), cmd.Root().Flags().FlagUsages())
}

// Execute runs the root command and returns its error, if any.
// Use ExitCode to turn that error into the process exit status.
func Execute(ctx context.Context) error {
	defer observability.Sync()
	return execute(ctx, NewRootCommand(), os.Stderr)
}

func execute(ctx context.Context, root *cobra.Command, stderr io.Writer) error {
	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}

	var toolErr *launcher.ToolError
	switch {
	case errors.As(err, &toolErr):
		// The tool has already spoken on the inherited streams.
	case errors.Is(err, ErrMissingArgument):
		// Usage has already been printed.
	default:
		fmt.Fprintln(stderr, "Error:", err)
	}
	return err
}

// ExitCode maps an error returned by Execute to the process exit status.
// A failing tool's own status is propagated; every other failure is 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var toolErr *launcher.ToolError
	if errors.As(err, &toolErr) {
		return toolErr.ExitCode
	}
	return 1
}
