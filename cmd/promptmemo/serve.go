package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/promptmemo/promptmemo/pkg/handler"
	"github.com/promptmemo/promptmemo/pkg/mcp"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the cache as an MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			pc, err := handler.New(cfg.DBPath).GetCache()
			if err != nil {
				return err
			}
			defer func() { _ = pc.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := mcp.New(pc.Cache, version)
			return srv.Run(ctx, os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "promptmemo.yaml", "path to config file")
	return cmd
}
