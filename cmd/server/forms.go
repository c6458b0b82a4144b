package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/shipbroker/internal/core"
	"github.com/JonMunkholm/shipbroker/internal/core/forms"
)

func formsCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "forms",
		Short: "List form definitions",
		Long: `List the form definitions built into the binary.

With --dir, parse the YAML files under DIR/definitions instead and report
the first definition that fails to load.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defs := core.All()
			if dir != "" {
				loaded, err := forms.Load(os.DirFS(dir))
				if err != nil {
					return err
				}
				if len(loaded) == 0 {
					return fmt.Errorf("no definitions found under %s/definitions", dir)
				}
				defs = make([]*core.Definition, len(loaded))
				for i := range loaded {
					defs[i] = &loaded[i]
				}
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tPATH\tTABLE\tSTEPS\tVERIFY")
			for _, def := range defs {
				verifyAction := "-"
				if def.RequiresVerification() {
					verifyAction = def.VerifyAction
				}
				path := def.Path
				if path == "" {
					path = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", def.Key, path, def.Table, def.StepCount(), verifyAction)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory containing a definitions/ folder to check")
	return cmd
}
