package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/trackline/cmdb/pkg/client"
)

func newCICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ci",
		Short: "Manage configuration items",
	}

	cmd.AddCommand(newCIUpsertCmd())
	cmd.AddCommand(newCIIngestCmd())
	cmd.AddCommand(newCIGetCmd())
	cmd.AddCommand(newCIListCmd())
	cmd.AddCommand(newCISetManagedCmd())
	cmd.AddCommand(newCIDeleteCmd())
	cmd.AddCommand(newCIExpandCmd())

	return cmd
}

func newCIUpsertCmd() *cobra.Command {
	var attributesJSON string

	cmd := &cobra.Command{
		Use:   "upsert <category>",
		Short: "Resolve or create a configuration item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireClientID()
			if err != nil {
				return err
			}

			var attributes map[string]interface{}
			if err := json.Unmarshal([]byte(attributesJSON), &attributes); err != nil {
				return fmt.Errorf("invalid --attributes JSON: %w", err)
			}

			res, err := apiClient.CIs().Upsert(context.Background(), client.UpsertCIRequest{
				ClientID:   id,
				Category:   args[0],
				Attributes: attributes,
			})
			if err != nil {
				return fmt.Errorf("failed to upsert configuration item: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(res)
			}

			action := "created"
			if res.Existed {
				action = "updated"
			}
			fmt.Printf("Configuration item %s: %s\n", action, res.Identity)
			return nil
		},
	}

	cmd.Flags().StringVar(&attributesJSON, "attributes", "", "item attributes as a JSON object")
	_ = cmd.MarkFlagRequired("attributes")

	return cmd
}

func newCIIngestCmd() *cobra.Command {
	var payloadFile string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a composite payload from a file",
		Long: `Ingest reads a composite payload (top-level item, detail rows, child items
with relationship wiring) from a JSON file and submits it. Child failures are
reported per child without failing the whole ingestion.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(payloadFile)
			if err != nil {
				return fmt.Errorf("failed to read payload file: %w", err)
			}

			var req client.IngestCIRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("invalid payload JSON: %w", err)
			}
			if req.ClientID == "" {
				id, err := requireClientID()
				if err != nil {
					return err
				}
				req.ClientID = id
			}

			res, err := apiClient.CIs().Ingest(context.Background(), req)
			if err != nil {
				return fmt.Errorf("failed to ingest payload: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(res)
			}

			fmt.Printf("Top-level item: %s\n", res.Identity)
			if len(res.Children) > 0 {
				t := NewTable("CHILD", "TYPE", "STATUS", "MESSAGE")
				for _, c := range res.Children {
					status := "failed"
					if c.Success {
						status = "ok"
					}
					t.AddRow(truncate(c.Name, 30), c.Category, status, truncate(c.Message, 50))
				}
				t.Render()
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&payloadFile, "file", "f", "", "path to the composite payload JSON file")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newCIGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <category> <id>",
		Short: "Get configuration item details",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireClientID()
			if err != nil {
				return err
			}

			item, err := apiClient.CIs().Get(context.Background(), id, args[0], args[1])
			if err != nil {
				return fmt.Errorf("failed to get configuration item: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(item)
			}

			fmt.Printf("Identity:        %s\n", item.Identity)
			fmt.Printf("Category:        %s\n", item.Category)
			fmt.Printf("Status:          %s\n", item.Status)
			fmt.Printf("Managed:         %s\n", formatManaged(item.Managed))
			fmt.Printf("Last discovered: %s\n", item.LastDiscoveredTime.Format(time.RFC3339))
			fmt.Printf("Last modified:   %s\n", item.LastModifiedTime.Format(time.RFC3339))
			if len(item.Attributes) > 0 {
				fmt.Println("Attributes:")
				for k, v := range item.Attributes {
					fmt.Printf("  %s: %v\n", k, v)
				}
			}
			return nil
		},
	}
}

func newCIListCmd() *cobra.Command {
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "list <category>",
		Short: "List configuration items of a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireClientID()
			if err != nil {
				return err
			}

			res, err := apiClient.CIs().List(context.Background(), id, args[0], &client.ListOptions{
				Page:     page,
				PageSize: pageSize,
			})
			if err != nil {
				return fmt.Errorf("failed to list configuration items: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(res.Data)
			}

			t := NewTable("IDENTITY", "CATEGORY", "STATUS", "MANAGED", "LAST DISCOVERED")
			for _, item := range res.Data {
				t.AddRow(
					truncate(item.Identity, 36),
					item.Category,
					item.Status,
					formatManaged(item.Managed),
					item.LastDiscoveredTime.Format(time.RFC3339),
				)
			}
			t.Render()
			fmt.Printf("\nShowing %d of %d items\n", len(res.Data), res.TotalItems)
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "items per page")

	return cmd
}

func newCISetManagedCmd() *cobra.Command {
	var unmanaged bool

	cmd := &cobra.Command{
		Use:   "set-managed <category> <id>",
		Short: "Set the managed flag on an item",
		Long: `Set-managed flips the managed flag on an item. The flag propagates one hop
to directly contained neighbors. Managed items cannot be deleted.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireClientID()
			if err != nil {
				return err
			}

			managed := !unmanaged
			if err := apiClient.CIs().SetManaged(context.Background(), id, args[0], args[1], managed); err != nil {
				return fmt.Errorf("failed to set managed flag: %w", err)
			}

			fmt.Printf("Item %s is now %s\n", args[1], formatManaged(managed))
			return nil
		},
	}

	cmd.Flags().BoolVar(&unmanaged, "unmanaged", false, "clear the managed flag instead of setting it")

	return cmd
}

func newCIDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <category> <id>",
		Short: "Delete an unmanaged item and its contained children",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireClientID()
			if err != nil {
				return err
			}

			if err := apiClient.CIs().Delete(context.Background(), id, args[0], args[1]); err != nil {
				return fmt.Errorf("failed to delete configuration item: %w", err)
			}

			fmt.Println("Configuration item deleted")
			return nil
		},
	}
}

func newCIExpandCmd() *cobra.Command {
	var depth int

	cmd := &cobra.Command{
		Use:   "expand <category> <id>",
		Short: "Expand the relationship tree around an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireClientID()
			if err != nil {
				return err
			}

			tree, err := apiClient.CIs().Expand(context.Background(), id, args[0], args[1], depth)
			if err != nil {
				return fmt.Errorf("failed to expand relationship tree: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(tree)
			}

			printTree(tree, 0)
			return nil
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 3, "maximum traversal depth")

	return cmd
}

func printTree(node *client.CompositeNode, indent int) {
	prefix := ""
	for i := 0; i < indent; i++ {
		prefix += "  "
	}
	label := node.Identity
	if node.Relationship != "" {
		label = fmt.Sprintf("%s (%s, %s)", node.Identity, node.Relationship, node.RelationshipDirection)
	}
	fmt.Printf("%s- %s [%s]\n", prefix, label, node.Category)
	for _, child := range node.Children {
		printTree(child, indent+1)
	}
}
