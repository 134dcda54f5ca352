package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/BDNK1/rotor/runtime"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available providers and their options",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, registry, err := setup()
		if err != nil {
			return err
		}
		for _, def := range registry.All() {
			printDefinition(cmd.OutOrStdout(), def)
		}
		return nil
	},
}

func printDefinition(w io.Writer, def runtime.Definition) {
	fmt.Fprintf(w, "%s [%s]\n", def.Name, def.Domains[0])
	for _, d := range def.Domains[1:] {
		fmt.Fprintf(w, "    also: %s\n", d)
	}

	names := make([]string, 0, len(def.Options))
	for name := range def.Options {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		opt := def.Options[name]
		suffix := ""
		if opt.Optional {
			suffix = " (optional)"
		}
		fmt.Fprintf(w, "    %s=%s%s\n", name, opt.Description, suffix)

		values := make([]string, 0, len(opt.Values))
		for v := range opt.Values {
			values = append(values, v)
		}
		sort.Strings(values)
		for _, v := range values {
			fmt.Fprintf(w, "        %s: %s\n", v, opt.Values[v])
		}
	}
}
