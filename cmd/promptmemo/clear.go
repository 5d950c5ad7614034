package main

import (
	"fmt"

	"github.com/promptmemo/promptmemo/pkg/cache/sqlite"
	"github.com/spf13/cobra"
)

func newClearCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			s, err := sqlite.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			if err := s.Clear(); err != nil {
				return err
			}
			fmt.Println("All cache entries cleared.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "promptmemo.yaml", "path to config file")
	return cmd
}
