package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/trackline/cmdb/pkg/client"
)

func newRelationshipCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "relationship",
		Aliases: []string{"rel"},
		Short:   "Manage relationships between configuration items",
	}

	cmd.AddCommand(newRelationshipCreateCmd())
	cmd.AddCommand(newRelationshipDeleteCmd())
	cmd.AddCommand(newRelationshipListCmd())

	return cmd
}

func newRelationshipCreateCmd() *cobra.Command {
	var parentCategory, childCategory, createdBy string

	cmd := &cobra.Command{
		Use:   "create <parent-id> <relationship-name> <child-id>",
		Short: "Create a directed, named edge between two items",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireClientID()
			if err != nil {
				return err
			}

			err = apiClient.Relationships().Create(context.Background(), client.CreateRelationshipRequest{
				ClientID:         id,
				ParentID:         args[0],
				ParentCategory:   parentCategory,
				RelationshipName: args[1],
				ChildID:          args[2],
				ChildCategory:    childCategory,
				CreatedBy:        createdBy,
			})
			if err != nil {
				return fmt.Errorf("failed to create relationship: %w", err)
			}

			fmt.Println("Relationship created")
			return nil
		},
	}

	cmd.Flags().StringVar(&parentCategory, "parent-category", "", "category of the parent item")
	cmd.Flags().StringVar(&childCategory, "child-category", "", "category of the child item")
	cmd.Flags().StringVar(&createdBy, "created-by", "", "who is creating the edge")
	_ = cmd.MarkFlagRequired("parent-category")
	_ = cmd.MarkFlagRequired("child-category")

	return cmd
}

func newRelationshipDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <parent-id> <relationship-name> <child-id>",
		Short: "Delete the edges matching the full key",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireClientID()
			if err != nil {
				return err
			}

			err = apiClient.Relationships().Delete(context.Background(), client.DeleteRelationshipRequest{
				ClientID:         id,
				ParentID:         args[0],
				RelationshipName: args[1],
				ChildID:          args[2],
			})
			if err != nil {
				return fmt.Errorf("failed to delete relationship: %w", err)
			}

			fmt.Println("Relationship deleted")
			return nil
		},
	}
}

func newRelationshipListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <id>",
		Short: "List every edge touching an item, both directions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireClientID()
			if err != nil {
				return err
			}

			edges, err := apiClient.Relationships().ListForEntity(context.Background(), id, args[0])
			if err != nil {
				return fmt.Errorf("failed to list relationships: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(edges)
			}

			t := NewTable("PARENT", "RELATIONSHIP", "CHILD", "CREATED")
			for _, e := range edges {
				t.AddRow(
					truncate(e.ParentID, 36),
					e.RelationshipName,
					truncate(e.ChildID, 36),
					e.CreatedAt.Format(time.RFC3339),
				)
			}
			t.Render()
			fmt.Printf("\n%d edges\n", len(edges))
			return nil
		},
	}
}
