package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newBaselineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baseline",
		Short: "Inspect baseline definitions and change history",
	}

	cmd.AddCommand(newBaselineDefinitionsCmd())
	cmd.AddCommand(newBaselineHistoryCmd())

	return cmd
}

func newBaselineDefinitionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "definitions <category>",
		Short: "List the enabled baseline definitions of a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireClientID()
			if err != nil {
				return err
			}

			defs, err := apiClient.Baselines().Definitions(context.Background(), id, args[0])
			if err != nil {
				return fmt.Errorf("failed to list baseline definitions: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(defs)
			}

			t := NewTable("NAME", "CATEGORY", "MAX LEVEL", "ENABLED")
			for _, d := range defs {
				t.AddRow(d.Name, d.Category, strconv.Itoa(d.MaxLevel), strconv.FormatBool(d.Enabled))
			}
			t.Render()
			return nil
		},
	}
}

func newBaselineHistoryCmd() *cobra.Command {
	var baselineName string

	cmd := &cobra.Command{
		Use:   "history <category> <id>",
		Short: "Show the attribute-level change history of an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireClientID()
			if err != nil {
				return err
			}

			changes, err := apiClient.Baselines().History(context.Background(), id, args[0], args[1], baselineName)
			if err != nil {
				return fmt.Errorf("failed to get baseline history: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(changes)
			}

			t := NewTable("ATTRIBUTE", "OLD", "NEW", "TIME")
			for _, c := range changes {
				t.AddRow(
					c.Attribute,
					truncate(fmt.Sprintf("%v", c.OldValue), 30),
					truncate(fmt.Sprintf("%v", c.NewValue), 30),
					c.Time.Format(time.RFC3339),
				)
			}
			t.Render()
			fmt.Printf("\n%d changes\n", len(changes))
			return nil
		},
	}

	cmd.Flags().StringVar(&baselineName, "baseline", "", "baseline name (default: the implicit default baseline)")

	return cmd
}
