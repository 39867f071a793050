// Package command assembles the creel CLI's cobra command tree: one small
// flags struct with a Bind method, bound as persistent flags shared by every
// subcommand, and a shared container abstraction for stdio/env/args.
package command

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mmilitzer/creel/internal/app"
	"github.com/mmilitzer/creel/internal/applog"
	"github.com/mmilitzer/creel/pkg/creel"
	"github.com/mmilitzer/creel/pkg/creelconfig"
	"github.com/mmilitzer/creel/pkg/creelresolve"
)

// Process exit codes.
const (
	exitOK                = 0
	exitUnresolvedModules = 2
	exitDownloadFailures  = 3
	exitConfigError       = 4
)

type rootFlags struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
}

func (f *rootFlags) Bind(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.ConfigPath, "config", "creel.toml", "path to the engine configuration file")
	flagSet.StringVar(&f.LogLevel, "log-level", "info", "log level: debug, info, warn, error")
	flagSet.StringVar(&f.LogFormat, "log-format", "color", "log format: text, color, json")
}

// Run builds and executes the cobra command tree against container's
// arguments, returning a process exit code.
func Run(ctx context.Context, container app.Container) int {
	flags := &rootFlags{}
	var exitCode int

	root := &cobra.Command{
		Use:           "creel",
		Short:         "Resolve and install module artifacts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags.Bind(root.PersistentFlags())
	root.SetArgs(container.Args())
	root.SetOut(container.Stdout())
	root.SetErr(container.Stderr())

	root.AddCommand(
		newRunCommand(ctx, flags, container, &exitCode),
		newInstallCommand(ctx, flags, container, &exitCode),
		newResolveCommand(ctx, flags, container, &exitCode),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(container.Stderr(), err)
		if exitCode == exitOK {
			exitCode = exitConfigError
		}
	}
	return exitCode
}

// loadEngine is shared setup for every subcommand: build a logger, decode
// config, and wire a creel.Engine from it.
func loadEngine(ctx context.Context, flags *rootFlags, container app.Container) (*creel.Engine, *creelconfig.Config, error) {
	logger, err := applog.NewLogger(container.Stderr(), flags.LogLevel, flags.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	notifier := creelresolve.NewZapNotifier(logger)

	cfg, err := creelconfig.Load(flags.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	engine, err := buildEngine(ctx, cfg, notifier)
	if err != nil {
		return nil, nil, err
	}
	return engine, cfg, nil
}
