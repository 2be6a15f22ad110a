package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"impact-lending-backend/internal/interfaces/router"

	"github.com/spf13/cobra"
)

func reconcileCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation pass and print the report as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, rt, err := router.CreateApp(cfg)
			if err != nil {
				return fmt.Errorf("app create: %w", err)
			}
			defer rt.Close()

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			report := rt.Services.Reconciliation.Run(ctx)

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if len(report.Errors) > 0 {
				return fmt.Errorf("reconciliation finished with %d errors", len(report.Errors))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "pass timeout")
	return cmd
}
