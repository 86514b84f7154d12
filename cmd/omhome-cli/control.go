package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joshp123/omhome/internal/entity"
)

// actionCommand builds a leaf command that runs one entity action. build
// turns the positional arguments after the entity into the action.
func actionCommand(use, short string, platform entity.Platform, args cobra.PositionalArgs, build func(args []string) (entity.Action, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := build(args[1:])
			if err != nil {
				return usageError(cmd, "%v", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
			defer cancel()
			state, err := newAPIClient(resolveAPI()).act(ctx, platform, args[0], action)
			if err != nil {
				return err
			}
			if flagJSON {
				return output(cmd).printJSON(state)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", state.Key, summarize(state))
			return nil
		},
	}
}

func fixed(name string) func([]string) (entity.Action, error) {
	return func([]string) (entity.Action, error) {
		return entity.Action{Name: name}, nil
	}
}

var flagBrightness int

func lightCommands() *cobra.Command {
	light := &cobra.Command{Use: "light", Short: "Control lights"}

	on := actionCommand("on <light>", "Turn a light on", entity.PlatformLight, cobra.ExactArgs(1), func([]string) (entity.Action, error) {
		action := entity.Action{Name: entity.ActionTurnOn}
		if flagBrightness >= 0 {
			brightness := flagBrightness
			action.Brightness = &brightness
		}
		return action, nil
	})
	on.Flags().IntVar(&flagBrightness, "brightness", -1, "Brightness 0-255 for dimmable lights")

	light.AddCommand(
		on,
		actionCommand("off <light>", "Turn a light off", entity.PlatformLight, cobra.ExactArgs(1), fixed(entity.ActionTurnOff)),
		actionCommand("toggle <light>", "Toggle a light", entity.PlatformLight, cobra.ExactArgs(1), fixed(entity.ActionToggle)),
	)
	return light
}

func switchCommands() *cobra.Command {
	sw := &cobra.Command{Use: "switch", Short: "Control switched outputs"}
	sw.AddCommand(
		actionCommand("on <switch>", "Turn a switch on", entity.PlatformSwitch, cobra.ExactArgs(1), fixed(entity.ActionTurnOn)),
		actionCommand("off <switch>", "Turn a switch off", entity.PlatformSwitch, cobra.ExactArgs(1), fixed(entity.ActionTurnOff)),
		actionCommand("toggle <switch>", "Toggle a switch", entity.PlatformSwitch, cobra.ExactArgs(1), fixed(entity.ActionToggle)),
	)
	return sw
}

func coverCommands() *cobra.Command {
	cover := &cobra.Command{Use: "cover", Short: "Control shutters"}
	cover.AddCommand(
		actionCommand("open <cover>", "Open a cover", entity.PlatformCover, cobra.ExactArgs(1), fixed(entity.ActionOpen)),
		actionCommand("close <cover>", "Close a cover", entity.PlatformCover, cobra.ExactArgs(1), fixed(entity.ActionClose)),
		actionCommand("stop <cover>", "Stop a moving cover", entity.PlatformCover, cobra.ExactArgs(1), fixed(entity.ActionStop)),
		actionCommand("position <cover> <0-100>", "Move a cover to a position (100 is open)", entity.PlatformCover, cobra.ExactArgs(2), func(args []string) (entity.Action, error) {
			position, err := strconv.Atoi(args[0])
			if err != nil {
				return entity.Action{}, fmt.Errorf("invalid position %q", args[0])
			}
			return entity.Action{Name: entity.ActionSetPosition, Position: &position}, nil
		}),
	)
	return cover
}

func climateCommands() *cobra.Command {
	climate := &cobra.Command{Use: "climate", Short: "Control thermostats"}
	climate.AddCommand(
		actionCommand("temp <thermostat> <celsius>", "Set the target temperature", entity.PlatformClimate, cobra.ExactArgs(2), func(args []string) (entity.Action, error) {
			temp, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return entity.Action{}, fmt.Errorf("invalid temperature %q", args[0])
			}
			return entity.Action{Name: entity.ActionSetTemperature, Temperature: &temp}, nil
		}),
		actionCommand("mode <thermostat> <off|heat|cool>", "Set the HVAC mode", entity.PlatformClimate, cobra.ExactArgs(2), func(args []string) (entity.Action, error) {
			return entity.Action{Name: entity.ActionSetHVACMode, HVACMode: args[0]}, nil
		}),
		actionCommand("preset <thermostat> <preset>", "Set the preset (home, away, activity, eco)", entity.PlatformClimate, cobra.ExactArgs(2), func(args []string) (entity.Action, error) {
			return entity.Action{Name: entity.ActionSetPreset, Preset: args[0]}, nil
		}),
	)
	return climate
}

func sceneCommand() *cobra.Command {
	return actionCommand("scene <scene>", "Activate a scene", entity.PlatformScene, cobra.ExactArgs(1), fixed(entity.ActionActivate))
}

func addControlCommands(root *cobra.Command) {
	root.AddCommand(lightCommands(), switchCommands(), coverCommands(), climateCommands(), sceneCommand())
}
