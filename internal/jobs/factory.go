package jobs

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/crowdstack/ghextract/internal/extract"
	"github.com/crowdstack/ghextract/internal/github"
	"github.com/crowdstack/ghextract/internal/scope"
)

// NewTaskFactory builds extraction tasks backed by the GitHub API.
// apiBaseURL is empty for api.github.com and overridden in tests.
func NewTaskFactory(apiBaseURL string, logger *zap.Logger) TaskFactory {
	return func(tool Tool, args map[string]string, credential, outDir string) (extract.Task, error) {
		window, err := scope.ParseWindow(args["since"], args["until"])
		if err != nil {
			return nil, &ValidationError{Field: "window", Reason: err.Error()}
		}

		client, err := github.NewClient(credential, apiBaseURL, args["verbose"] == "true", logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create github client: %w", err)
		}

		org := strings.TrimSpace(args["org"])
		repos := SplitRepos(args["repos"])

		switch tool {
		case ToolPRExtractor:
			mergedOnly := true
			if v, ok := args["merged_only"]; ok {
				mergedOnly = v == "true"
			}
			return &extract.PRTask{
				Client:     client,
				Org:        org,
				Repos:      repos,
				State:      args["state"],
				MergedOnly: mergedOnly,
				Window:     window,
				OutDir:     outDir,
				Logger:     logger,
			}, nil
		case ToolFileHistory:
			return &extract.FileHistoryTask{
				Client:   client,
				Org:      org,
				Repos:    repos,
				FilePath: strings.TrimSpace(args["file_path"]),
				SHA:      args["sha"],
				Window:   window,
				OutDir:   outDir,
				Logger:   logger,
			}, nil
		}
		return nil, &ValidationError{Field: "tool", Reason: fmt.Sprintf("unknown tool %q", tool)}
	}
}

// SplitRepos parses a comma- or space-separated repository list.
func SplitRepos(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}
