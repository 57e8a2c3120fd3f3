package main

import (
	"context"
	"fmt"

	"github.com/pagekeep/pagekeep"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read and write configuration settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a setting value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Println(a.sets.Get(ctx, args[0], ""))
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write a setting value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.sets.Set(ctx, args[0], args[1]) {
			return fmt.Errorf("failed to write setting %s", args[0])
		}
		fmt.Printf("%s = %s\n", args[0], args[1])
		return nil
	},
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		all, err := a.sets.List(ctx)
		if err != nil {
			return err
		}
		for _, s := range all {
			fmt.Printf("%-28s %-8s %q\n", s.Key, s.Type, s.Value)
		}
		return nil
	},
}

var settingsMaintenanceCmd = &cobra.Command{
	Use:   "maintenance [on|off]",
	Short: "Show or toggle maintenance mode",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 0 {
			if a.sets.MaintenanceMode(ctx) {
				fmt.Println("on")
			} else {
				fmt.Println("off")
			}
			return nil
		}
		switch args[0] {
		case "on", "off":
		default:
			return fmt.Errorf("maintenance takes on or off, got %q", args[0])
		}
		if a.sets.SetMaintenanceMode(ctx, args[0] == "on") != pagekeep.OutcomeOK {
			return fmt.Errorf("failed to write maintenance flag")
		}
		fmt.Printf("maintenance %s\n", args[0])
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsMaintenanceCmd)
}
