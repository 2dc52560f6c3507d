package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/streekit/streekeeper/internal/control"
)

var (
	logsCount  int
	logsFollow bool
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent daemon log lines",
	Long: `Show the most recent diagnostics log lines retained by the daemon.

With --follow the command stays attached to the daemon's event stream
and prints events as they happen.`,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().IntVarP(&logsCount, "lines", "n", 100, "Number of lines to show (0 for all retained)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Stream daemon events after printing")
}

func runLogs(cmd *cobra.Command, args []string) error {
	client := apiClient()

	lines, err := client.Logs(cmd.Context(), logsCount)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Println(line)
	}

	if !logsFollow {
		return nil
	}

	return client.FollowEvents(cmd.Context(), func(e control.Event) {
		if e.Type == "stream.connected" {
			return
		}
		data := ""
		if len(e.Data) > 0 && string(e.Data) != "null" {
			data = " " + string(e.Data)
		}
		fmt.Printf("[%s]%s\n", e.Type, data)
	})
}
