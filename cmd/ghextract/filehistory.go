package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crowdstack/ghextract/internal/extract"
	"github.com/crowdstack/ghextract/internal/github"
	"github.com/crowdstack/ghextract/internal/scope"
)

func newFileHistoryCmd() *cobra.Command {
	var (
		filePath string
		sha      string
	)

	cmd := &cobra.Command{
		Use:   "file-history",
		Short: "Extract per-file commit history for the specified repositories",
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := token()
			if err != nil {
				return err
			}
			if flagOrg == "" || len(flagRepos) == 0 {
				return fmt.Errorf("--org and --repos are required")
			}
			if filePath == "" {
				return fmt.Errorf("--file-path is required")
			}

			window, err := scope.ParseWindow(flagSince, flagUntil)
			if err != nil {
				return err
			}

			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			client, err := github.NewClient(tok, "", flagVerbose, logger)
			if err != nil {
				return err
			}

			return runTask(&extract.FileHistoryTask{
				Client:   client,
				Org:      flagOrg,
				Repos:    splitRepos(flagRepos),
				FilePath: filePath,
				SHA:      sha,
				Window:   window,
				OutDir:   flagOutputDir,
				Logger:   logger,
			})
		},
	}

	cmd.Flags().StringVar(&filePath, "file-path", "", "exact path of the file to trace")
	cmd.Flags().StringVar(&sha, "sha", "", "branch or commit SHA to start from")
	return cmd
}
