// ghextract runs an extraction in the foreground, without the job server.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/crowdstack/ghextract/internal/extract"
)

var (
	flagToken     string
	flagOrg       string
	flagRepos     []string
	flagSince     string
	flagUntil     string
	flagOutputDir string
	flagVerbose   bool
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "ghextract",
		Short:         "Extract pull requests and per-file commit history from GitHub",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagToken, "token", "", "GitHub token (defaults to GITHUB_TOKEN)")
	root.PersistentFlags().StringVar(&flagOrg, "org", "", "GitHub organization")
	root.PersistentFlags().StringSliceVar(&flagRepos, "repos", nil, "repository names")
	root.PersistentFlags().StringVar(&flagSince, "since", "", "window start (YYYY-MM-DD or RFC 3339)")
	root.PersistentFlags().StringVar(&flagUntil, "until", "", "window end (YYYY-MM-DD or RFC 3339)")
	root.PersistentFlags().StringVar(&flagOutputDir, "output-dir", "output", "output directory")
	root.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "log every API request")

	root.AddCommand(newPRsCmd(), newFileHistoryCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func token() (string, error) {
	if flagToken != "" {
		return flagToken, nil
	}
	if t := os.Getenv("GITHUB_TOKEN"); t != "" {
		return t, nil
	}
	return "", fmt.Errorf("GitHub token is required (pass --token or set GITHUB_TOKEN)")
}

func newLogger() (*zap.Logger, error) {
	if flagVerbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// runTask executes the task while draining its event stream to the terminal.
func runTask(task extract.Task) error {
	events := make(chan extract.Event, 64)

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		defer close(events)
		return task.Run(ctx, extract.NewEmitter(events))
	})
	g.Go(func() error {
		for ev := range events {
			switch e := ev.(type) {
			case extract.Progress:
				fmt.Printf("[%3d%%] %s\n", e.Pct, e.Msg)
			case extract.OutputAnnounced:
				fmt.Printf("wrote %s\n", e.Path)
			case extract.LogLine:
				fmt.Println(e.Text)
			}
		}
		return nil
	})
	return g.Wait()
}
