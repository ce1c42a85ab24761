package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"routerd/internal/registry"
	"routerd/pkg/types"
)

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "validate",
		Short:   "Validate the config and print the flattened deployment table",
		Example: "  routerd validate --config routerd.yaml",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(nil)
			if err != nil {
				return err
			}
			deps, err := registry.Flatten(cfg.Endpoints)
			if err != nil {
				return err
			}
			return printDeployments(cmd.OutOrStdout(), deps)
		},
	}
}

func printDeployments(w io.Writer, deps []types.Deployment) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DEPLOYMENT\tMODELS\tRPM\tTPM\tCONCURRENCY\tCONTEXT\tSTYLE")
	for _, d := range deps {
		style := "openai"
		if d.APIVersion != "" {
			style = "azure " + d.APIVersion
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			d.Name, strings.Join(d.Models, ","), limit(d.RPM), limit(d.TPM), limit(d.Concurrency), limit(d.ContextWindow), style)
	}
	return tw.Flush()
}

func limit(n int) string {
	if n == 0 {
		return "-"
	}
	return fmt.Sprint(n)
}
