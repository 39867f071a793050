package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmilitzer/creel/internal/app"
	"github.com/mmilitzer/creel/pkg/creel"
)

// newResolveCommand runs identification and conflict resolution only,
// without installing artifacts: useful for previewing what a "run" would
// fetch.
func newResolveCommand(ctx context.Context, flags *rootFlags, container app.Container, exitCode *int) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Resolve modules without installing artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := loadEngine(ctx, flags, container)
			if err != nil {
				*exitCode = exitConfigError
				return err
			}

			result, err := engine.Resolve(ctx)
			if err != nil {
				var unresolved *creel.UnresolvedError
				if errors.As(err, &unresolved) {
					*exitCode = exitUnresolvedModules
					fmt.Fprintf(cmd.OutOrStdout(), "unresolved: %d module(s)\n", len(result.Unresolved))
					return nil
				}
				*exitCode = exitConfigError
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "identified %d module(s), %d chosen after conflict resolution\n",
				len(result.Identified), len(result.Chosen))
			return nil
		},
	}
}
