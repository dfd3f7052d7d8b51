package client_test

import (
	"context"
	"fmt"
	"log"

	"github.com/trackline/cmdb/pkg/client"
)

// Example demonstrates basic usage of the CMDB client
func Example() {
	c := client.NewClient(client.Config{
		BaseURL: "http://localhost:8080",
	})

	ctx := context.Background()

	// Upsert a configuration item
	res, err := c.CIs().Upsert(ctx, client.UpsertCIRequest{
		ClientID: "acme",
		Category: "server",
		Attributes: map[string]interface{}{
			"hostname":    "web-01",
			"environment": "prod",
		},
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Resolved identity: %s (existed: %v)\n", res.Identity, res.Existed)
}

// ExampleCIService_Ingest demonstrates composite ingestion
func ExampleCIService_Ingest() {
	c := client.NewClient(client.Config{
		BaseURL: "http://localhost:8080",
	})

	res, err := c.CIs().Ingest(context.Background(), client.IngestCIRequest{
		ClientID: "acme",
		Category: "server",
		Attributes: map[string]interface{}{
			"hostname": "web-01",
		},
		Details: map[string][]map[string]interface{}{
			"listening_ports": {
				{"ipaddress": "10.0.0.5", "port": 443, "protocol": "tcp"},
			},
		},
		Children: []client.ChildCIRequest{
			{
				Category:     "application",
				Attributes:   map[string]interface{}{"app_name": "billing"},
				Relationship: "runs_on",
				Direction:    "child-to-parent",
			},
		},
	})
	if err != nil {
		log.Fatal(err)
	}

	for _, child := range res.Children {
		fmt.Printf("Child %s: success=%v\n", child.Category, child.Success)
	}
}

// ExampleCIService_Expand demonstrates relationship tree expansion
func ExampleCIService_Expand() {
	c := client.NewClient(client.Config{
		BaseURL: "http://localhost:8080",
	})

	tree, err := c.CIs().Expand(context.Background(), "acme", "server", "1f6e...", 3)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Root %s has %d direct children\n", tree.Identity, len(tree.Children))
}

// ExampleBaselineService_History demonstrates reading change history
func ExampleBaselineService_History() {
	c := client.NewClient(client.Config{
		BaseURL: "http://localhost:8080",
	})

	changes, err := c.Baselines().History(context.Background(), "acme", "server", "1f6e...", "default")
	if err != nil {
		log.Fatal(err)
	}

	for _, ch := range changes {
		fmt.Printf("%s: %v -> %v\n", ch.Attribute, ch.OldValue, ch.NewValue)
	}
}

// ExampleClient_apiKey demonstrates using API key authentication
func ExampleClient_apiKey() {
	c := client.NewClient(client.Config{
		BaseURL: "http://localhost:8080",
		APIKey:  "your-api-key",
	})

	health, err := c.Health().Check(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("API status: %s\n", health.Status)
}
