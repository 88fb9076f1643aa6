package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "catalog-ingest",
	Short: "Mirror vendor product catalogs into the shared catalog",
	Long: "catalog-ingest crawls vendor storefronts with a real browser, normalises the listings " +
		"and upserts them into the product catalog keyed by (title, vendor).",
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
