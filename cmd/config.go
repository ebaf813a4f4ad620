package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/DachengChen/shelfcare/config"
	"github.com/spf13/cobra"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the config file",
	}
	cmd.AddCommand(newConfigInitCmd(root))
	return cmd
}

func newConfigInitCmd(root *rootOptions) *cobra.Command {
	var force, secrets bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write config.json with the current effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Dir(), "config.json")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if !secrets {
				stripSecrets(cfg)
			}
			if err := config.Save(cfg); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config.json")
	cmd.Flags().BoolVar(&secrets, "with-secrets", false, "also write passwords and API keys taken from the environment")
	return cmd
}

// stripSecrets clears credentials so they stay in .env or the environment.
func stripSecrets(cfg *config.AppConfig) {
	cfg.DB.Password = ""
	cfg.DB.SSH.KeyPassphrase = ""
	cfg.AI.OpenAI.APIKey = ""
	cfg.AI.Anthropic.APIKey = ""
	cfg.AI.Gemini.APIKey = ""
	cfg.AI.Embedding.APIKey = ""
}
