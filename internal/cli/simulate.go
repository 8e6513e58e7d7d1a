package cli

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/donutloadable/internal/host"
	"github.com/mesh-intelligence/donutloadable/internal/loader"
	"github.com/mesh-intelligence/donutloadable/internal/logging"
	"github.com/mesh-intelligence/donutloadable/internal/paths"
	"github.com/mesh-intelligence/donutloadable/internal/registrar"
	"github.com/mesh-intelligence/donutloadable/pkg/types"
)

const extensionName = "donutloadable"

type simulateFlags struct {
	hostVersion int
	dataDir     string
	open        string
}

type simulateResult struct {
	Status    int32          `json:"status"`
	Name      string         `json:"status_name"`
	State     string         `json:"state"`
	Message   string         `json:"message,omitempty"`
	Permanent bool           `json:"permanent"`
	VFS       []string       `json:"vfs"`
	Tables    []string       `json:"tables,omitempty"`
	Extension host.Extension `json:"extension"`
}

func newSimulateCmd(flags *rootFlags) *cobra.Command {
	sf := &simulateFlags{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Load the extension into an in-process SQLite host",
		Long: "Run the extension entry point against an in-process SQLite host.\n" +
			"The registrar installs the data directory as a read-only VFS named after\n" +
			"the configured backend, unless a Go registrar with that name is compiled in.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			res, err := runSimulate(cmd.Context(), cfg, sf)
			if res != nil {
				if flags.jsonMode {
					if werr := writeJSON(cmd.OutOrStdout(), res); werr != nil {
						return werr
					}
				} else {
					printSimulate(cmd, res)
				}
			}
			return err
		},
	}

	cmd.Flags().IntVar(&sf.hostVersion, "host-version", 0, "SQLite version the host reports, e.g. 3008000 (default: embedded SQLite)")
	cmd.Flags().StringVar(&sf.dataDir, "data-dir", "", "directory exposed through the VFS (default: $DONUTDB_DATA_DIR or ./.donutdb)")
	cmd.Flags().StringVar(&sf.open, "open", "", "database file in the data directory to open through the VFS after loading")

	return cmd
}

func runSimulate(ctx context.Context, cfg types.Config, sf *simulateFlags) (*simulateResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logging.Logger()

	dataDir, err := paths.ResolveDataDir(sf.dataDir)
	if err != nil {
		return nil, &sysError{err}
	}

	var opts []host.Option
	opts = append(opts, host.WithLogger(log))
	if sf.hostVersion != 0 {
		opts = append(opts, host.WithLibVersion(sf.hostVersion))
	}
	h, err := host.New(ctx, opts...)
	if err != nil {
		return nil, &sysError{err}
	}
	defer h.Close()

	// The registrar reaches the host through this closure; the bridge
	// passes it nothing.
	dirRegistrar := registrar.Fatal(cfg.Backend, func() error {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return err
		}
		return h.RegisterVFS(cfg.Backend, os.DirFS(dataDir))
	})

	b := loader.FromConfig(cfg, log).Bridge(dirRegistrar)
	var outcome types.Outcome
	loadErr := h.LoadExtension(extensionName, func(db types.DBHandle, errMsg types.ErrMsgSlot, table types.RoutineTable) types.StatusCode {
		outcome = b.Run(db, errMsg, table)
		return outcome.Status
	})

	ext, _ := h.Extension(extensionName)
	res := &simulateResult{
		Status:    int32(outcome.Status),
		Name:      outcome.Status.String(),
		State:     outcome.StateName(),
		Message:   outcome.Msg,
		Permanent: h.Permanent(extensionName),
		VFS:       h.VFSNames(),
		Extension: ext,
	}
	if loadErr != nil {
		return res, loadErr
	}

	if sf.open != "" {
		tables, err := listTables(ctx, h, cfg.Backend, sf.open)
		if err != nil {
			return res, err
		}
		res.Tables = tables
	}
	log.Debug("simulation finished", zap.Stringer("status", outcome.Status))
	return res, nil
}

func listTables(ctx context.Context, h *host.Host, vfsName, file string) ([]string, error) {
	db, err := h.OpenVFS(ctx, vfsName, file)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return nil, fmt.Errorf("list tables in %s: %w", file, err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(tables)
	return tables, nil
}

func printSimulate(cmd *cobra.Command, res *simulateResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "status:    %d (%s)\n", res.Status, res.Name)
	fmt.Fprintf(out, "state:     %s\n", res.State)
	if res.Message != "" {
		fmt.Fprintf(out, "message:   %s\n", res.Message)
	}
	fmt.Fprintf(out, "permanent: %t\n", res.Permanent)
	fmt.Fprintf(out, "vfs:       %v\n", res.VFS)
	if len(res.Tables) > 0 {
		fmt.Fprintf(out, "tables:    %v\n", res.Tables)
	}
}
