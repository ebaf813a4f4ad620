// Package cmd contains all Cobra commands for shelfcare.
//
// Design decision: the root command launches the chat TUI directly.
// Connection settings come from ~/.shelfcare/config.json, the
// environment, or a saved profile picked with --conn.
package cmd

import (
	"context"
	"fmt"

	"github.com/DachengChen/shelfcare/agent"
	"github.com/DachengChen/shelfcare/applog"
	"github.com/DachengChen/shelfcare/tui"
	"github.com/spf13/cobra"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configDir string
	conn      string
	provider  string
	logLevel  string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "shelfcare",
		Short: "Pharmacy procurement assistant",
		Long: `shelfcare answers questions about stock, orders and expiry dates:
  • Natural-language questions turned into SQL, checked and executed
  • An assistant that can look up overviews and add products
  • Dashboards for inventory, orders and expiry
  • An HTTP API for the same data and chat ('shelfcare serve')

Run 'shelfcare' to start the chat UI.`,
		SilenceUsage: true,
		// Running with no subcommand launches the TUI.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), opts)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.configDir, "config-dir", "", "config directory (default ~/.shelfcare)")
	f.StringVar(&opts.conn, "conn", "", "use a saved connection profile")
	f.StringVar(&opts.provider, "provider", "", "model provider: openai, anthropic, gemini, ollama, placeholder")
	f.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	cmd.AddCommand(
		newAskCmd(opts),
		newServeCmd(opts),
		newExamplesCmd(opts),
		newConnCmd(opts),
		newConfigCmd(opts),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

func runTUI(ctx context.Context, opts *rootOptions) error {
	human := agent.NewChannelHuman()
	d, err := bootstrap(ctx, opts, bootOptions{human: human})
	if err != nil {
		return err
	}
	defer d.Close()

	tuiOpts := tui.Options{
		Runner:    d.agent,
		Dashboard: d.db,
		Human:     human,
		LogPath:   applog.Path(),
		Title: fmt.Sprintf("%s · %s@%s/%s",
			d.provider.Name(), d.cfg.DB.User, d.cfg.DB.Host, d.cfg.DB.Database),
	}
	if d.store != nil {
		tuiOpts.Runs = d.store
	}
	return tui.Start(tuiOpts)
}
