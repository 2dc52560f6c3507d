package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "List pending recovery prompts",
	RunE: func(cmd *cobra.Command, args []string) error {
		prompts, err := apiClient().Prompts(cmd.Context())
		if err != nil {
			return err
		}
		if len(prompts) == 0 {
			fmt.Println("No pending prompts")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tAGE\tMESSAGE\tACTIONS\t")
		for _, p := range prompts {
			age := time.Since(time.UnixMilli(p.CreatedAt)).Round(time.Second)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n",
				p.ID, age, p.Message, strings.Join(p.Actions, ", "))
		}
		return w.Flush()
	},
}

var respondCmd = &cobra.Command{
	Use:   "respond <prompt-id> [action]",
	Short: "Answer a pending recovery prompt",
	Long: `Answer a pending recovery prompt by ID. Omitting the action dismisses
the prompt without taking any remediation.

Examples:
  streekeeper respond 01J8X0FYQ2 Restart
  streekeeper respond 01J8X0FYQ2 "Install Gem"
  streekeeper respond 01J8X0FYQ2               # dismiss`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		action := ""
		if len(args) > 1 {
			action = args[1]
		}
		if err := apiClient().ResolvePrompt(cmd.Context(), args[0], action); err != nil {
			return err
		}
		if action == "" {
			fmt.Println("Prompt dismissed")
		} else {
			fmt.Printf("Prompt resolved with %q\n", action)
		}
		return nil
	},
}
