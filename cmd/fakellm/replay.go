package main

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/inercia/go-fakellm/pkg/fake"
	"github.com/inercia/go-fakellm/pkg/llm"
	"github.com/inercia/go-fakellm/pkg/task"
)

type replayOptions struct {
	script    string
	wps       float64
	reasoning bool
}

func newReplayCommand() *cobra.Command {
	opts := &replayOptions{}

	cmd := &cobra.Command{
		Use:   "replay MESSAGE...",
		Short: "Stream the scripted answers to a conversation",
		Long: `Sends each MESSAGE as a user turn of a single conversation and streams
the scripted answer to stdout at the configured pace.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadModel(opts.script)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("wps") {
				if err := m.SetStreamWPS(opts.wps); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			conversation := task.New(fake.NewClient(m, ""), llm.NewHistory())

			for _, msg := range args {
				w := &sectionWriter{w: out, reasoning: opts.reasoning}
				if _, err := conversation.ChatStream(cmd.Context(), msg, w.handle); err != nil {
					return errors.Wrapf(err, "answering %q", msg)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.script, "script", "s", "", "YAML script with the rules (default $FAKELLM_SCRIPT)")
	cmd.Flags().Float64Var(&opts.wps, "wps", 0, "streaming pace in chunks per second")
	cmd.Flags().BoolVar(&opts.reasoning, "reasoning", false, "print the reasoning section too")
	return cmd
}

// sectionWriter prints streamed deltas. With reasoning shown, every section
// starts with its banner, in the layout of fake.Stream.Render.
type sectionWriter struct {
	w         io.Writer
	reasoning bool
	current   string
}

func (s *sectionWriter) handle(event llm.StreamEvent) error {
	if !event.IsDelta() {
		return nil
	}
	delta := event.Choice.Delta
	if s.reasoning {
		if err := s.write(fake.ReasoningSplitter, delta.ReasoningContent); err != nil {
			return err
		}
	}
	return s.write(fake.ContentSplitter, delta.GetText())
}

func (s *sectionWriter) write(banner, text string) error {
	if text == "" {
		return nil
	}
	if s.reasoning && s.current != banner {
		if s.current != "" {
			if _, err := io.WriteString(s.w, "\n\n"); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(s.w, banner+"\n\n"); err != nil {
			return err
		}
		s.current = banner
	}
	_, err := io.WriteString(s.w, text)
	return err
}
