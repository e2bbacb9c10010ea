package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	outputFmt string
	namespace string
	username  string
	password  string
	token     string
)

var rootCmd = &cobra.Command{
	Use:   "kafkactl",
	Short: "CLI for the ns4kafka control plane",
	Long: `kafkactl manages namespaced Kafka resources (topics, connectors, schemas,
ACLs, role bindings, quotas) declaratively through the ns4kafka API.

Resources are described in YAML and applied with "kafkactl apply -f".
Credentials come from --user/--password, --token, or the KAFKACTL_USER,
KAFKACTL_PASSWORD and KAFKACTL_TOKEN environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("KAFKACTL_SERVER", "http://localhost:8080"), "ns4kafka server URL")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVarP(&namespace, "namespace", "n", "", "Namespace (default: from KAFKACTL_NAMESPACE env)")
	rootCmd.PersistentFlags().StringVar(&username, "user", os.Getenv("KAFKACTL_USER"), "Basic auth username")
	rootCmd.PersistentFlags().StringVar(&password, "password", os.Getenv("KAFKACTL_PASSWORD"), "Basic auth password")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("KAFKACTL_TOKEN"), "Bearer token")

	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(connectorsCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(healthCmd)
}

// resolvedNamespace returns the effective namespace.
// Priority: --namespace flag > KAFKACTL_NAMESPACE env var.
func resolvedNamespace() string {
	if namespace != "" {
		return namespace
	}
	return os.Getenv("KAFKACTL_NAMESPACE")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
