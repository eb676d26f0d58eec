package main

import (
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "carlos-assist",
		Short: "Ask Carlos help engine for the CARLOS compliance dashboard",
		Long: "carlos-assist matches free-text questions to curated knowledge articles,\n" +
			"tracks remediation progress and hands unresolved issues to support.",
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		Version: version,
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newAskCmd())
	root.AddCommand(newCatalogCmd())
	return root
}
