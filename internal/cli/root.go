// Package cli implements the donutctl command-line interface: inspect the
// loader configuration, list the status codes the extension returns, and
// run the bridge against the in-process host simulator.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/donutloadable/internal/config"
	"github.com/mesh-intelligence/donutloadable/internal/logging"
	"github.com/mesh-intelligence/donutloadable/internal/paths"
	"github.com/mesh-intelligence/donutloadable/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	logLevel  string
	jsonMode  bool
}

// NewRootCmd creates the top-level "donutctl" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "donutctl",
		Short: "Inspect and exercise the donutloadable SQLite extension",
		Long: "donutctl shows the configuration the donutloadable extension reads,\n" +
			"the status codes it returns, and runs it against an in-process SQLite host.",
		// Do not print usage on errors returned by subcommands.
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.configDir, "config-dir", "", "configuration directory (default: $DONUTDB_CONFIG_DIR or the platform config dir)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log to stderr at this level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&flags.jsonMode, "json", false, "output in JSON format")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if flags.logLevel == "" {
			return nil
		}
		l, err := logging.New(flags.logLevel, "stderr")
		if err != nil {
			return err
		}
		logging.SetLogger(l)
		return nil
	}

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(flags))
	root.AddCommand(newConfigCmd(flags))
	root.AddCommand(newStatusCmd(flags))
	root.AddCommand(newSimulateCmd(flags))

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	root := NewRootCmd()
	err := root.Execute()
	_ = logging.Logger().Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
	os.Exit(exitSuccess)
}

// sysError marks failures of the environment rather than of the input.
type sysError struct {
	err error
}

func (e *sysError) Error() string { return e.err.Error() }
func (e *sysError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var se *sysError
	if errors.As(err, &se) {
		return exitSysError
	}
	return exitUserError
}

func (f *rootFlags) resolveConfigDir() (string, error) {
	return paths.ResolveConfigDir(f.configDir)
}

func (f *rootFlags) loadConfig() (types.Config, error) {
	dir, err := f.resolveConfigDir()
	if err != nil {
		return types.Config{}, &sysError{err}
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return types.Config{}, err
	}
	logging.Logger().Debug("config loaded", zap.String("config_dir", dir), zap.String("backend", cfg.Backend))
	return cfg, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
