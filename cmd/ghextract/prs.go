package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crowdstack/ghextract/internal/extract"
	"github.com/crowdstack/ghextract/internal/github"
	"github.com/crowdstack/ghextract/internal/scope"
)

func newPRsCmd() *cobra.Command {
	var (
		state      string
		mergedOnly bool
	)

	cmd := &cobra.Command{
		Use:   "prs",
		Short: "Extract pull requests for the specified repositories",
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := token()
			if err != nil {
				return err
			}
			if flagOrg == "" || len(flagRepos) == 0 {
				return fmt.Errorf("--org and --repos are required")
			}
			switch state {
			case "open", "closed", "all":
			default:
				return fmt.Errorf("invalid --state %q: use open, closed or all", state)
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

			return runTask(&extract.PRTask{
				Client:     client,
				Org:        flagOrg,
				Repos:      splitRepos(flagRepos),
				State:      state,
				MergedOnly: mergedOnly,
				Window:     window,
				OutDir:     flagOutputDir,
				Logger:     logger,
			})
		},
	}

	cmd.Flags().StringVar(&state, "state", "closed", "PR state filter: open, closed or all")
	cmd.Flags().BoolVar(&mergedOnly, "merged-only", true, "keep only merged PRs")
	return cmd
}

// splitRepos re-splits flag values so both --repos a,b and --repos "a b"
// work, matching the job API.
func splitRepos(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ' '
		})...)
	}
	return out
}
