// Package cli implements the mailmerge command line.
package cli

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/blockedby/mailmerge/internal/config"
	"github.com/blockedby/mailmerge/internal/logger"
)

// Options configure the root command.
type Options struct {
	Out io.Writer
	Err io.Writer
	// LoadConfig defaults to config.Load.
	LoadConfig func() (*config.Config, error)
}

type runtimeState struct {
	cfg       *config.Config
	log       *logger.Logger
	runConfig string
	logLevel  string
	out       io.Writer
	errOut    io.Writer
}

type runtimeKey struct{}

// NewRootCommand builds the mailmerge command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	if opts.LoadConfig == nil {
		opts.LoadConfig = config.Load
	}

	rt := &runtimeState{out: opts.Out, errOut: opts.Err}

	root := &cobra.Command{
		Use:           "mailmerge",
		Short:         "Send personalized mail to every row of a dataset",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.LoadConfig()
			if err != nil {
				return err
			}
			rt.cfg = cfg

			if rt.runConfig == "" {
				rt.runConfig = cfg.RunConfigPath
			}
			level := rt.logLevel
			if level == "" {
				level = cfg.LogLevel
			}
			rt.log = logger.NewWithWriter(level, rt.errOut)
			return nil
		},
	}

	root.SetOut(opts.Out)
	root.SetErr(opts.Err)

	root.PersistentFlags().StringVar(&rt.runConfig, "run", "", "Path to the run YAML (default $RUN_CONFIG)")
	root.PersistentFlags().StringVar(&rt.logLevel, "log-level", "", "Log level (default $LOG_LEVEL)")

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		newValidateCommand(),
		newSendCommand(),
		newEventsCommand(),
	)

	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

// loadRunConfig reads the run YAML. When optional is set a missing file yields the defaults.
func (rt *runtimeState) loadRunConfig(optional bool) (config.RunConfig, error) {
	if _, err := os.Stat(rt.runConfig); err != nil && optional && errors.Is(err, os.ErrNotExist) {
		return config.DefaultRunConfig(), nil
	}
	return config.LoadRunConfig(rt.runConfig)
}
