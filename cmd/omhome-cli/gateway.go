package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/joshp123/omhome/internal/config"
	"github.com/joshp123/omhome/internal/logging"
	"github.com/joshp123/omhome/internal/resource"
	"github.com/joshp123/omhome/plugins/openmotics"
)

// gatewayLog keeps direct gateway calls quiet unless something goes wrong.
func gatewayLog(cmd *cobra.Command) *logrus.Entry {
	logger := logging.New(logging.Options{Level: "warn", Format: "text", Output: cmd.ErrOrStderr()})
	return logging.Component(logger, "cli")
}

func newInstallationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "installations",
		Short: "List the installations the configured cloud credentials can reach",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Mode() != config.ModeCloud {
				return usageError(cmd, "installation discovery needs a cloud config")
			}
			client, err := openmotics.NewCloudClient(*cfg.OpenMotics.Cloud, cfg.Rate, gatewayLog(cmd))
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
			defer cancel()
			installations, err := client.Installations(ctx)
			if err != nil {
				return err
			}
			return output(cmd).show(installations, func() [][]string {
				rows := [][]string{{"ID", "NAME", "MODEL", "VERSION"}}
				for _, inst := range installations {
					rows = append(rows, []string{strconv.Itoa(inst.ID), orDash(inst.Name), orDash(inst.GatewayModel), orDash(inst.Version)})
				}
				return rows
			})
		},
	}
}

type checkResult struct {
	Mode         config.Mode           `json:"mode"`
	Installation resource.Installation `json:"installation"`
	InstallKey   string                `json:"install_key"`
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configured credentials against the gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			gw, err := openmotics.NewGateway(cfg, gatewayLog(cmd))
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
			defer cancel()
			if local, ok := gw.(*openmotics.LocalClient); ok {
				if err := local.Check(ctx); err != nil {
					return describeGatewayError(err)
				}
			}
			inst, err := gw.Installation(ctx)
			if err != nil {
				return describeGatewayError(err)
			}

			result := checkResult{Mode: gw.Mode(), Installation: inst, InstallKey: openmotics.InstallKey(gw, inst)}
			if flagJSON {
				return output(cmd).printJSON(result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %s gateway, installation %d %q, key %s\n", result.Mode, inst.ID, inst.Name, result.InstallKey)
			return nil
		},
	}
}

func describeGatewayError(err error) error {
	switch {
	case openmotics.IsAuthError(err):
		return fmt.Errorf("credentials rejected: %w", err)
	case openmotics.IsRetryable(err):
		return fmt.Errorf("gateway not reachable, try again later: %w", err)
	default:
		return err
	}
}

func addGatewayCommands(root *cobra.Command) {
	root.AddCommand(newInstallationsCmd(), newCheckCmd())
}
