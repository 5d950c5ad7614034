package main

import (
	"fmt"

	"github.com/promptmemo/promptmemo/pkg/handler"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Upgrade a legacy cache store in place",
		Long: `Migrate opens the configured store, converting a legacy layout (a
plain-dict JSON export, an append log, or an old table schema) to the current
relational format. Running it on an up-to-date store is a no-op.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			pc, err := handler.New(cfg.DBPath).GetCache()
			if err != nil {
				return err
			}
			defer func() { _ = pc.Backing().Close() }()

			fmt.Printf("Store %s is up to date (%d entries).\n", cfg.DBPath, pc.Len())
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "promptmemo.yaml", "path to config file")
	return cmd
}
