package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "promptmemo",
		Short:   "promptmemo — persistent exact-match cache for LLM responses",
		Version: version,
	}

	root.AddCommand(
		newStatsCmd(),
		newExportCmd(),
		newImportCmd(),
		newClearCmd(),
		newMigrateCmd(),
		newServeCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
