package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/inercia/go-fakellm/pkg/fake"
	"github.com/inercia/go-fakellm/pkg/llm"
)

type rootOptions struct {
	logLevel string
	envFiles []string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "fakellm",
		Short:         "Replay and record scripted LLM conversations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := zerolog.ParseLevel(opts.logLevel)
			if err != nil {
				return errors.Wrapf(err, "invalid log level %q", opts.logLevel)
			}
			zerolog.SetGlobalLevel(level)
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
			return llm.LoadDotEnv(opts.envFiles...)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "dotenv files loaded when present")

	cmd.AddCommand(newReplayCommand(), newCheckCommand(), newRecordCommand())
	return cmd
}

// loadModel builds a model from the FAKELLM_* environment and the script at
// path, if any
func loadModel(path string) (*fake.Model, error) {
	cfg, err := fake.LoadConfig()
	if err != nil {
		return nil, err
	}
	if path != "" {
		cfg.Script = path
	}
	return cfg.NewModel()
}
