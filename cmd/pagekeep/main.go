package main

import (
	"os"

	"github.com/pagekeep/pagekeep/internal/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "pagekeep",
	Short: "Operate the pagekeep document store: migrations, settings, backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	// Defaults
	v := viper.GetViper()
	v.SetDefault("config", "./config.yaml")

	// Environment variables support: PAGEKEEP_CONFIG, ...
	v.SetEnvPrefix("PAGEKEEP")
	v.AutomaticEnv()

	rootCmd.PersistentFlags().String("config", v.GetString("config"), "path to the config yaml")
	_ = v.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(backupsCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		common.LogError("command execution failed", err)
		os.Exit(1)
	}
}
