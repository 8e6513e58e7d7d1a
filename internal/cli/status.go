package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/donutloadable/pkg/types"
)

type statusRow struct {
	Code    int32  `json:"code"`
	Name    string `json:"name"`
	Meaning string `json:"meaning"`
}

var statusMeanings = map[types.StatusCode]string{
	types.StatusOK:                "loaded; the host may unload the library with the connection",
	types.StatusError:             "handshake failed, e.g. host older than min_sqlite_version",
	types.StatusMisuse:            "host passed no routine table",
	types.StatusOKLoadPermanently: "loaded; VFS registered and library kept for the process lifetime",
}

func newStatusCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List the status codes the extension entry point returns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([]statusRow, 0, len(types.KnownStatuses))
			for _, s := range types.KnownStatuses {
				rows = append(rows, statusRow{Code: int32(s), Name: s.String(), Meaning: statusMeanings[s]})
			}
			if flags.jsonMode {
				return writeJSON(cmd.OutOrStdout(), rows)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tNAME\tMEANING")
			for _, r := range rows {
				fmt.Fprintf(w, "%d\t%s\t%s\n", r.Code, r.Name, r.Meaning)
			}
			return w.Flush()
		},
	}
}
