package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/trackline/cmdb/pkg/client"
)

var (
	cfgFile      string
	outputFormat string
	serverURL    string
	clientID     string
	apiClient    *client.Client
)

var rootCmd = &cobra.Command{
	Use:   "cmdb",
	Short: "CMDB CLI - configuration item inventory and change tracking",
	Long: `CMDB CLI provides command-line access to the configuration management
database for ingesting discovered items, wiring relationships, expanding the
relationship graph, and inspecting baseline change history.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initClient()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.cmdb/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&clientID, "clientid", "", "tenant client identifier")

	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("server_url", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("clientid", rootCmd.PersistentFlags().Lookup("clientid"))

	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newCICmd())
	rootCmd.AddCommand(newRelationshipCmd())
	rootCmd.AddCommand(newBaselineCmd())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return
		}
		configDir := home + "/.cmdb"
		_ = os.MkdirAll(configDir, 0700)
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CMDB")
	viper.AutomaticEnv()

	viper.SetDefault("server_url", "http://localhost:8080")
	viper.SetDefault("output", "table")

	_ = viper.ReadInConfig()
}

func initClient() error {
	url := viper.GetString("server_url")
	if serverURL != "" {
		url = serverURL
	}

	apiClient = client.NewClient(client.Config{
		BaseURL: url,
		APIKey:  viper.GetString("api_key"),
	})
	return nil
}

// requireClientID resolves the tenant from the flag or config; most commands
// cannot run without one.
func requireClientID() (string, error) {
	if clientID != "" {
		return clientID, nil
	}
	if id := viper.GetString("clientid"); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("no client ID set. Use --clientid or set clientid in the config")
}

func getOutputFormat() string {
	if outputFormat != "" && outputFormat != "table" {
		return outputFormat
	}
	return viper.GetString("output")
}
