package main

import (
	"fmt"
	"strings"

	"github.com/promptmemo/promptmemo/pkg/cache/jsonl"
	"github.com/promptmemo/promptmemo/pkg/handler"
	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var (
		configPath string
		outPath    string
		keys       []string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the cache as an append log (JSONL)",
		Long: `Export writes the cache as one JSON object per line. With --keys only
the named entries are exported — the usual way to ship the minimal cache a
result set actually used.`,
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

			c := pc.Cache
			if len(keys) > 0 {
				c = c.Subset(splitKeys(keys))
			}
			if err := jsonl.WriteFile(outPath, c); err != nil {
				return err
			}
			fmt.Printf("Exported %d entries to %s\n", c.Len(), outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "promptmemo.yaml", "path to config file")
	cmd.Flags().StringVarP(&outPath, "out", "o", "cache.jsonl", "output file")
	cmd.Flags().StringSliceVar(&keys, "keys", nil, "export only these keys (comma-separated or repeated)")
	return cmd
}

// splitKeys tolerates both repeated flags and a single comma-joined value.
func splitKeys(keys []string) []string {
	var out []string
	for _, k := range keys {
		for _, part := range strings.Split(k, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
