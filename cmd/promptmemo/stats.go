package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/promptmemo/promptmemo/pkg/cache/sqlite"
	"github.com/promptmemo/promptmemo/pkg/config"
	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
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

			stats, err := s.Stats()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Store:\t%s\n", cfg.DBPath)
			fmt.Fprintf(w, "Entries:\t%d\n", stats.Entries)
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "promptmemo.yaml", "path to config file")
	return cmd
}

// loadConfig reads the config file when present and falls back to defaults
// otherwise, so the CLI works without a config file.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	return config.Load(path)
}
