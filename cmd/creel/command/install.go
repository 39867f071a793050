package command

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mmilitzer/creel/internal/app"
)

// newInstallCommand runs the same resolve+install pipeline as "run" under
// the name package-manager users expect.
func newInstallCommand(ctx context.Context, flags *rootFlags, container app.Container, exitCode *int) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Resolve modules and install their artifacts",
		RunE:  runPipeline(ctx, flags, container, exitCode),
	}
}
