package main

import (
	"context"
	"fmt"

	"github.com/pagekeep/pagekeep/pkg/status"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply all pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.engine.Run(ctx); err != nil {
			return err
		}
		info, err := status.FromEngine(ctx, a.engine)
		if err != nil {
			return err
		}
		fmt.Print(info.FormatHuman(false))
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if showAudit, _ := cmd.Flags().GetBool("audit"); showAudit {
			action, _ := cmd.Flags().GetString("action")
			entity, _ := cmd.Flags().GetString("entity")
			limit, _ := cmd.Flags().GetInt("limit")
			out, err := auditHistory(ctx, a.trail, action, entity, limit)
			if err != nil {
				return err
			}
			fmt.Print(out)
			return nil
		}

		verbose, _ := cmd.Flags().GetBool("verbose")
		info, err := status.FromEngine(ctx, a.engine)
		if err != nil {
			return err
		}
		fmt.Print(info.FormatHuman(verbose))
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("verbose", false, "include the full applied and pending unit lists")
	statusCmd.Flags().Bool("audit", false, "show audit history instead of migration status")
	statusCmd.Flags().String("action", "", "filter audit history by action")
	statusCmd.Flags().String("entity", "", "filter audit history by entity type")
	statusCmd.Flags().Int("limit", 20, "maximum audit entries to show")
}
