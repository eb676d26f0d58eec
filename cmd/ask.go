package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"carlos-assist/internal/kb"
	"carlos-assist/internal/match"
	"carlos-assist/internal/resolution"
	"carlos-assist/internal/session"
)

func newAskCmd() *cobra.Command {
	var (
		catalogPath string
		labels      string
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question against the knowledge catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := resolution.ParseStepLabels(labels)
			if err != nil {
				return err
			}
			catalog, err := kb.LoadFile(catalogPath)
			if err != nil {
				return err
			}
			question := strings.Join(args, " ")
			if strings.TrimSpace(question) == "" {
				return session.ErrEmptyMessage
			}
			responder := session.NewResponder(match.NewMatcher(catalog), resolution.Options{StepLabels: mode}, catalog.Suggestions())
			printReply(cmd.OutOrStdout(), responder.Respond(question))
			return nil
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "知识库目录文件 为空时使用内置目录")
	cmd.Flags().StringVar(&labels, "step-labels", resolution.LabelsArticle, "步骤标题模式 article|ordinal")
	return cmd
}

func printReply(w io.Writer, reply session.Reply) {
	fmt.Fprintln(w, reply.Text)
	view := reply.Resolution
	if view == nil {
		return
	}
	fmt.Fprintf(w, "\n%s  [%s, confidence %.2f, %s pass]\n", view.Title, view.ID, view.Confidence, reply.Match.Pass)
	if view.IntentPrompt != "" {
		fmt.Fprintln(w, view.IntentPrompt)
	}
	if len(view.Causes) > 0 {
		fmt.Fprintln(w, "\nLikely causes:")
		for _, cause := range view.Causes {
			fmt.Fprintf(w, "  - %s\n", cause)
		}
	}
	fmt.Fprintln(w, "\nSteps:")
	for i, step := range view.Steps {
		fmt.Fprintf(w, "  %d. %s\n", i+1, step.Action)
		if step.Detail != "" {
			fmt.Fprintf(w, "     %s\n", step.Detail)
		}
	}
}
