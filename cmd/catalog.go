package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"carlos-assist/internal/kb"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect knowledge catalogs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [file]",
		Short: "Validate a catalog file (embedded default when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			catalog, err := kb.LoadFile(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "articles: %d\nrules: %d\nsuggestions: %d\n",
				catalog.Len(), len(catalog.Rules()), len(catalog.Suggestions()))
			for _, id := range unreachableArticles(catalog) {
				fmt.Fprintf(out, "warning: article %s has no intent rule and relies on content matching\n", id)
			}
			fmt.Fprintln(out, "ok")
			return nil
		},
	})
	return cmd
}

// unreachableArticles 返回没有任何意图规则指向的条目
func unreachableArticles(catalog *kb.Catalog) []string {
	covered := make(map[string]struct{})
	for _, rule := range catalog.Rules() {
		covered[rule.ArticleID] = struct{}{}
	}
	var out []string
	for _, article := range catalog.Articles() {
		if _, ok := covered[article.ID]; !ok {
			out = append(out, article.ID)
		}
	}
	return out
}
