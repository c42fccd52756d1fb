package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inercia/go-fakellm/pkg/fake"
)

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check SCRIPT...",
		Short: "Validate scripts without running them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				script, err := fake.LoadScript(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rules\n", path, len(script.Rules))
			}
			return nil
		},
	}
}
