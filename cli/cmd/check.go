package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Load every provider definition and report errors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, registry, err := setup()
		if err != nil {
			return err
		}
		defs := registry.All()
		for _, def := range defs {
			fmt.Fprintf(cmd.OutOrStdout(), "ok  %s (%d prepare, %d execute flows)\n",
				def.Name, len(def.Prepare), len(def.Execute))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d providers loaded\n", len(defs))
		return nil
	},
}
