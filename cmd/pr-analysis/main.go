package main

import (
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pr-analysis",
		Short:         "Pull request review metrics for Bitbucket Cloud and GitHub",
		Long:          "Analyze pull requests of one repository and report review time, reviewer, commit, comment and code churn statistics.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newAnalyzeCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}
