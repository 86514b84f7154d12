package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joshp123/omhome/internal/diagnostics"
	"github.com/joshp123/omhome/internal/entity"
	"github.com/joshp123/omhome/internal/resource"
)

var flagPlatform string

func newEntitiesCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "entities",
		Short: "List entities and their current state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
			defer cancel()

			states, err := newAPIClient(resolveAPI()).entities(ctx, entity.Platform(flagPlatform))
			if err != nil {
				return err
			}
			return output(cmd).show(states, func() [][]string {
				rows := [][]string{{"KEY", "NAME", "PLATFORM", "STATE"}}
				for _, state := range states {
					rows = append(rows, []string{state.Key, orDash(state.Name), string(state.Platform), summarize(state)})
				}
				return rows
			})
		},
	}
	c.Flags().StringVar(&flagPlatform, "platform", "", "Only list one platform (light, switch, cover, climate, sensor, scene)")
	return c
}

func newEntityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entity <key>",
		Short: "Show one entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
			defer cancel()

			var state entity.State
			if err := newAPIClient(resolveAPI()).get(ctx, "/api/v1/entities/"+args[0], &state); err != nil {
				return err
			}
			return output(cmd).printJSON(state)
		},
	}
}

func newSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Print the coordinator's current snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
			defer cancel()

			var snap resource.Snapshot
			if err := newAPIClient(resolveAPI()).get(ctx, "/api/v1/snapshot", &snap); err != nil {
				return err
			}
			return output(cmd).show(snap, func() [][]string {
				rows := [][]string{{"KIND", "RECORDS"}}
				for _, kind := range resource.AllKinds() {
					rows = append(rows, []string{string(kind), strconv.Itoa(snap.Count(kind))})
				}
				return rows
			})
		},
	}
}

type refreshResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Queued  bool   `json:"queued,omitempty"`
}

var flagWait bool

func newRefreshCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh every resource kind now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
			defer cancel()

			path := "/api/v1/refresh"
			if !flagWait {
				path += "?wait=false"
			}
			var result refreshResult
			if err := newAPIClient(resolveAPI()).post(ctx, path, nil, &result); err != nil {
				return err
			}
			if flagJSON {
				return output(cmd).printJSON(result)
			}
			if result.Queued {
				fmt.Fprintln(cmd.OutOrStdout(), "refresh queued")
				return nil
			}
			if !result.Success {
				fmt.Fprintf(cmd.OutOrStdout(), "refresh incomplete: %s\n", result.Error)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "refreshed")
			return nil
		},
	}
	c.Flags().BoolVar(&flagWait, "wait", true, "Wait for the refresh to finish; --wait=false only queues it")
	return c
}

func newDiagnosticsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diagnostics",
		Short: "Print the redacted diagnostics report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
			defer cancel()

			var report diagnostics.Report
			if err := newAPIClient(resolveAPI()).get(ctx, "/api/v1/diagnostics", &report); err != nil {
				return err
			}
			return output(cmd).printJSON(report)
		},
	}
}

func addEntityCommands(root *cobra.Command) {
	root.AddCommand(newEntitiesCmd(), newEntityCmd(), newSnapshotCmd(), newRefreshCmd(), newDiagnosticsCmd())
}

// summarize renders the platform-specific part of a state in one cell.
func summarize(state entity.State) string {
	if !state.Available {
		return "unavailable"
	}
	switch {
	case state.Cover != nil:
		if state.Cover.Position != nil {
			return fmt.Sprintf("%s %d%%", state.Cover.State, *state.Cover.Position)
		}
		return state.Cover.State
	case state.Climate != nil:
		out := state.Climate.HVACMode
		if t := state.Climate.TargetTemperature; t != nil {
			out += fmt.Sprintf(" target %.1f", *t)
		}
		if t := state.Climate.CurrentTemperature; t != nil {
			out += fmt.Sprintf(" current %.1f", *t)
		}
		return out
	case state.Sensor != nil:
		if state.Sensor.Value == nil {
			return "-"
		}
		return fmt.Sprintf("%g %s", *state.Sensor.Value, state.Sensor.Unit)
	case state.On != nil:
		if !*state.On {
			return "off"
		}
		if state.Brightness != nil {
			return fmt.Sprintf("on %d", *state.Brightness)
		}
		return "on"
	}
	return "-"
}
