package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmilitzer/creel/internal/app"
	"github.com/mmilitzer/creel/pkg/creel"
	"github.com/mmilitzer/creel/pkg/creelinstall"
	"github.com/mmilitzer/creel/pkg/creelresolve"
)

func newRunCommand(ctx context.Context, flags *rootFlags, container app.Container, exitCode *int) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Resolve modules and install their artifacts",
		RunE:  runPipeline(ctx, flags, container, exitCode),
	}
}

// runPipeline is the full resolve+install pipeline shared by the run and
// install subcommands: they differ only in name, useful when scripting
// around whichever verb reads more naturally at a given call site.
func runPipeline(ctx context.Context, flags *rootFlags, container app.Container, exitCode *int) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		engine, _, err := loadEngine(ctx, flags, container)
		if err != nil {
			*exitCode = exitConfigError
			return err
		}
		result, err := engine.Run(ctx)
		if err != nil {
			if errors.Is(err, creelresolve.ErrCancelled) {
				*exitCode = exitConfigError
				return err
			}
			var unresolved *creel.UnresolvedError
			if errors.As(err, &unresolved) {
				*exitCode = exitUnresolvedModules
				return err
			}
			*exitCode = exitConfigError
			return err
		}
		if result.Install != nil && len(result.Install.Failed) > 0 {
			*exitCode = exitDownloadFailures
			return reportFailures(cmd, result.Install)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "identified %d module(s), installed %d artifact(s), %d cache hit(s), %d retry(s)\n",
			len(result.Identified), len(result.Install.Installed), result.Install.CacheHits, result.Install.Retries)
		return nil
	}
}

func reportFailures(cmd *cobra.Command, summary *creelinstall.Summary) error {
	for _, failure := range summary.Failed {
		fmt.Fprintf(cmd.ErrOrStderr(), "failed: %s: %v\n", failure.Artifact.FilePath, failure.Err)
	}
	return fmt.Errorf("%d artifact(s) failed to install", len(summary.Failed))
}
