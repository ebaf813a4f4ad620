package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/DachengChen/shelfcare/applog"
	"github.com/DachengChen/shelfcare/nl2sql"
	"github.com/spf13/cobra"
)

func newExamplesCmd(root *rootOptions) *cobra.Command {
	var (
		match string
		k     int
	)
	cmd := &cobra.Command{
		Use:   "examples",
		Short: "List the few-shot examples, or show which ones a question selects",
		Example: `  shelfcare examples
  shelfcare examples --match "What stock is running low?" -k 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if match == "" {
				corpus, err := nl2sql.LoadCorpus(cfg.AI.ExamplesPath)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				for i, ex := range corpus.Examples() {
					fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, ex.Question, oneLine(ex.SQL))
				}
				return tw.Flush()
			}

			logger, err := setupLogging(cfg, false)
			if err != nil {
				return err
			}
			defer applog.Close()
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			if st != nil {
				defer st.Close()
			}
			selector, err := newSelector(cfg, st, logger)
			if err != nil {
				return err
			}
			examples, err := selector.Select(cmd.Context(), match, k)
			if err != nil {
				return err
			}
			for i, ex := range examples {
				fmt.Fprintf(out, "%d. %s\n   %s\n", i+1, ex.Question, oneLine(ex.SQL))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&match, "match", "", "question to select examples for")
	cmd.Flags().IntVarP(&k, "top", "k", nl2sql.DefaultTopK, "number of examples to select")
	return cmd
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
