package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pagekeep/pagekeep"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create a backup artifact of the store file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		art, err := a.backups.Backup(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("created %s (%s)\n", art.Path, humanize.Bytes(uint64(art.Size)))
		return nil
	},
}

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List backup artifacts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		var cfg ConfigDoc
		if err := cfg.Load(viper.GetString("config")); err != nil {
			return err
		}
		arts, err := pagekeep.ListBackups(cfg.Backup.Dir)
		if err != nil {
			return err
		}
		if len(arts) == 0 {
			fmt.Println("no backups found")
			return nil
		}
		for _, art := range arts {
			fmt.Printf("%s  %s  %s\n", art.CreatedAt.Format("2006-01-02 15:04:05"),
				humanize.Bytes(uint64(art.Size)), art.Filename)
		}
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <artifact>",
	Short: "Restore the store from a backup artifact (takes a safety backup first)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.backups.Restore(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("restored from %s\n", args[0])
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the store to empty and re-run all migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("reset wipes all data; re-run with --yes to confirm")
		}
		ctx := context.Background()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.backups.Reset(ctx); err != nil {
			return err
		}
		// the file was recreated empty; bring the schema back
		if err := a.engine.Initialize(ctx); err != nil {
			return err
		}
		if err := a.engine.Run(ctx); err != nil {
			return err
		}
		fmt.Println("store reset and re-migrated")
		return nil
	},
}

func init() {
	resetCmd.Flags().Bool("yes", false, "confirm the reset")
}
