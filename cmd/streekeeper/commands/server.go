package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/streekit/streekeeper/pkg/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the language server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := apiClient().Status(cmd.Context())
		if err != nil {
			return err
		}
		printStatus(st)
		return nil
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the language server",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := apiClient().StartServer(cmd.Context())
		if err != nil {
			return err
		}
		printStatus(st)
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the language server",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := apiClient().StopServer(cmd.Context())
		if err != nil {
			return err
		}
		printStatus(st)
		return nil
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the language server",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := apiClient().RestartServer(cmd.Context())
		if err != nil {
			return err
		}
		printStatus(st)
		return nil
	},
}

// printStatus renders a status snapshot as an aligned key/value table.
func printStatus(st *types.Status) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "State:\t%s\n", st.State)
	if st.PID != 0 {
		fmt.Fprintf(w, "PID:\t%d\n", st.PID)
	}
	if len(st.Command) > 0 {
		fmt.Fprintf(w, "Command:\t%s\n", strings.Join(st.Command, " "))
	}
	if st.Source != "" {
		fmt.Fprintf(w, "Source:\t%s\n", st.Source)
	}
	if st.StartedAt > 0 {
		started := time.UnixMilli(st.StartedAt)
		fmt.Fprintf(w, "Started:\t%s (%s ago)\n",
			started.Format(time.RFC3339), time.Since(started).Round(time.Second))
	}
	if st.LaunchID != "" {
		fmt.Fprintf(w, "Launch:\t%s\n", st.LaunchID)
	}
	w.Flush()
}
