package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check API server connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			health, err := apiClient.Health().Ready(context.Background())
			if err != nil {
				return fmt.Errorf("server not ready: %w", err)
			}

			fmt.Printf("Status:   %s\n", health.Status)
			if health.Database != "" {
				fmt.Printf("Database: %s\n", health.Database)
			}
			return nil
		},
	}
}
