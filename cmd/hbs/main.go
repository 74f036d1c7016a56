// Command hbs renders, precompiles and checks Handlebars templates.
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// errReported is returned by commands that already printed their errors.
var errReported = stderrors.New("errors reported")

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, red(err.Error()))
		os.Exit(2)
	}
	root := newRootCmd(cfg)
	if err := root.ExecuteContext(context.Background()); err != nil {
		if !stderrors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, red(err.Error()))
		}
		os.Exit(1)
	}
}

func newRootCmd(cfg *Config) *cobra.Command {
	a := &app{cfg: cfg}
	root := &cobra.Command{
		Use:           "hbs",
		Short:         "Render and precompile Handlebars templates",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().BoolVar(&cfg.NoColor, "no-color", cfg.NoColor, "disable colored output")
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&cfg.PartialsDir, "partials-dir", cfg.PartialsDir, "directory of partials to register")

	root.AddCommand(
		a.renderCmd(),
		a.precompileCmd(),
		a.checkCmd(),
		a.disCmd(),
		a.docsCmd(),
	)
	return root
}
