package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshp123/omhome/internal/core"
)

func newPluginsCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "plugins",
		Short: "List hosted plugins with their health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
			defer cancel()

			var summaries []core.PluginSummary
			if err := newAPIClient(resolveAPI()).get(ctx, "/api/v1/plugins", &summaries); err != nil {
				return err
			}
			return output(cmd).show(summaries, func() [][]string {
				rows := [][]string{{"PLUGIN", "VERSION", "STATUS", "PLATFORMS", "MESSAGE"}}
				for _, s := range summaries {
					rows = append(rows, []string{s.PluginID, s.Version, string(s.Status), strings.Join(s.Platforms, ","), orDash(s.Message)})
				}
				return rows
			})
		},
	}
	c.AddCommand(newPluginDocsCmd())
	return c
}

func newPluginDocsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "docs <plugin>",
		Short: "Print a plugin's operator notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
			defer cancel()

			var docs []byte
			if err := newAPIClient(resolveAPI()).get(ctx, "/api/v1/plugins/"+args[0]+"/docs", &docs); err != nil {
				return err
			}
			_, err := cmd.OutOrStdout().Write(docs)
			return err
		},
	}
}
