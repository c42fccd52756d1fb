package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/inercia/go-fakellm/pkg/factory"
	"github.com/inercia/go-fakellm/pkg/llm"
	"github.com/inercia/go-fakellm/pkg/record"
	"github.com/inercia/go-fakellm/pkg/task"
)

type recordOptions struct {
	out    string
	system string
}

func newRecordCommand() *cobra.Command {
	opts := &recordOptions{}

	cmd := &cobra.Command{
		Use:   "record MESSAGE...",
		Short: "Ask a real provider and save its answers as a script",
		Long: `Sends each MESSAGE as a user turn of a single conversation to the provider
configured in the environment (OPENAI_API_KEY, OPENAI_BASE_URL,
GEMINI_API_KEY or BEDROCK_MODEL) and writes the answers as a script replaying them.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := factory.New().CreateClientFromEnv()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			rec := record.New()
			client = llm.ClientWithMiddleware(client, []llm.Middleware{rec})
			log.Info().Str("provider", client.GetModelInfo().Provider).Msg("Recording")

			history := llm.NewHistory()
			if opts.system != "" {
				history = history.WithSystemPrompt(opts.system)
			}
			conversation := task.New(client, history)
			for _, msg := range args {
				if _, err := conversation.Chat(cmd.Context(), msg); err != nil {
					return errors.Wrapf(err, "asking %q", msg)
				}
			}

			if opts.out == "" || opts.out == "-" {
				return rec.WriteScript(cmd.OutOrStdout())
			}
			f, err := os.Create(opts.out)
			if err != nil {
				return errors.Wrap(err, "creating script")
			}
			if err := rec.WriteScript(f); err != nil {
				_ = f.Close()
				return err
			}
			return f.Close()
		},
	}

	cmd.Flags().StringVarP(&opts.out, "out", "o", "-", "script file to write")
	cmd.Flags().StringVar(&opts.system, "system", "", "system prompt sent before the messages")
	return cmd
}
