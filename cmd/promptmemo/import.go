package main

import (
	"fmt"

	"github.com/promptmemo/promptmemo/pkg/cache/jsonl"
	"github.com/promptmemo/promptmemo/pkg/handler"
	"github.com/spf13/cobra"
)

func newImportCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "import <file.jsonl>",
		Short: "Merge an append log into the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			imported, err := jsonl.ReadFile(args[0])
			if err != nil {
				return err
			}

			pc, err := handler.New(cfg.DBPath).GetCache()
			if err != nil {
				return err
			}
			defer func() { _ = pc.Backing().Close() }()

			before := pc.Len()
			pc.AddEntries(imported.Entries(), true)
			if err := pc.Flush(); err != nil {
				return err
			}
			fmt.Printf("Imported %d entries (%d new) into %s\n",
				imported.Len(), pc.Len()-before, cfg.DBPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "promptmemo.yaml", "path to config file")
	return cmd
}
