package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/DachengChen/shelfcare/config"
	"github.com/spf13/cobra"
	input "github.com/tcnksm/go-input"
)

func newConnCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conn",
		Short: "Manage saved database connections",
	}
	cmd.AddCommand(newConnListCmd(root), newConnSaveCmd(root), newConnRemoveCmd(root))
	return cmd
}

func connStore(root *rootOptions) (*config.ConnectionStore, error) {
	dir := root.configDir
	if dir == "" {
		dir = config.DefaultDir()
	}
	return config.NewConnectionStore(dir)
}

func newConnListCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := connStore(root)
			if err != nil {
				return err
			}
			if len(store.Connections) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no saved connections")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTARGET\tSSH")
			for _, c := range store.Connections {
				ssh := "-"
				if c.SSH.Enabled {
					ssh = fmt.Sprintf("%s@%s:%d", c.SSH.User, c.SSH.Host, c.SSH.Port)
				}
				fmt.Fprintf(tw, "%s\t%s@%s:%d/%s\t%s\n", c.Name, c.User, c.Host, c.Port, c.Database, ssh)
			}
			return tw.Flush()
		},
	}
}

func newConnSaveCmd(root *rootOptions) *cobra.Command {
	cfg := config.DefaultConfig()
	var askPassword bool
	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Save (or replace) a connection profile",
		Example: `  shelfcare conn save branch-2 --host 10.0.0.12 --database pharmacy --user app --ask-password
  shelfcare conn save remote --host db.internal --ssh-host bastion.example.com --ssh-user deploy --ssh-key ~/.ssh/id_ed25519`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := connStore(root)
			if err != nil {
				return err
			}
			if askPassword {
				ui := &input.UI{Writer: cmd.OutOrStdout(), Reader: os.Stdin}
				cfg.Password, err = ui.Ask("Database password", &input.Options{
					Mask:      true,
					HideOrder: true,
				})
				if err != nil {
					return err
				}
			}
			cfg.SSH.Enabled = cfg.SSH.Host != ""

			store.Add(config.Connection{Name: args[0], Config: cfg})
			if err := store.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved connection %q\n", args[0])
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Host, "host", cfg.Host, "database host")
	f.IntVar(&cfg.Port, "port", cfg.Port, "database port")
	f.StringVar(&cfg.User, "user", cfg.User, "database user")
	f.StringVar(&cfg.Password, "password", "", "database password")
	f.BoolVar(&askPassword, "ask-password", false, "prompt for the password")
	f.StringVar(&cfg.Database, "database", cfg.Database, "database name")
	f.StringVar(&cfg.SSLMode, "sslmode", cfg.SSLMode, "sslmode: disable, require, verify-full")
	f.IntVar(&cfg.PoolSize, "pool-size", 0, "connections kept open (0 keeps the config default)")
	f.IntVar(&cfg.MaxOverflow, "max-overflow", 0, "extra connections under load (0 keeps the config default)")
	f.StringVar(&cfg.SSH.Host, "ssh-host", "", "tunnel through this SSH host")
	f.IntVar(&cfg.SSH.Port, "ssh-port", cfg.SSH.Port, "SSH port")
	f.StringVar(&cfg.SSH.User, "ssh-user", "", "SSH user")
	f.StringVar(&cfg.SSH.KeyPath, "ssh-key", "", "SSH private key")
	f.StringVar(&cfg.SSH.KnownHostsPath, "ssh-known-hosts", "", "known_hosts file (default ~/.ssh/known_hosts)")
	return cmd
}

func newConnRemoveCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <name>",
		Aliases: []string{"remove"},
		Short:   "Remove a saved connection",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := connStore(root)
			if err != nil {
				return err
			}
			if !store.Delete(args[0]) {
				return fmt.Errorf("no saved connection named %q", args[0])
			}
			if err := store.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed connection %q\n", args[0])
			return nil
		},
	}
}
