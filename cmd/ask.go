package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/DachengChen/shelfcare/agent"
	"github.com/spf13/cobra"
)

func newAskCmd(root *rootOptions) *cobra.Command {
	var (
		chainOnly bool
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one question and print the answer",
		Long: `Ask one question. By default the assistant answers it and may use any
of its tools, including asking you a follow-up on the terminal.

With --sql only the text-to-SQL chain runs: the question is turned into
SQL, checked, executed and summarised.`,
		Example: `  shelfcare ask "What stock is running low?"
  shelfcare ask --sql "Which batches expire in the next 30 days?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			human := agent.NewTerminalHuman(cmd.OutOrStdout(), os.Stdin)
			d, err := bootstrap(cmd.Context(), root, bootOptions{human: human})
			if err != nil {
				return err
			}
			defer d.Close()

			out := cmd.OutOrStdout()
			if chainOnly {
				res, err := d.chain.Run(cmd.Context(), question)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(out, res)
				}
				fmt.Fprintf(out, "SQL: %s\n\n%s\n", res.SQL, res.Answer)
				return nil
			}

			res := d.agent.Run(cmd.Context(), agent.NewConversation(), question)
			if asJSON {
				if err := writeJSON(out, res); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(out, res.Output)
			}
			if res.Error {
				return errors.New(res.ErrorType)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&chainOnly, "sql", false, "run only the text-to-SQL chain and show the SQL")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func writeJSON(w interface{ Write([]byte) (int, error) }, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
