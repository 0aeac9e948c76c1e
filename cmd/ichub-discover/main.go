package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ichub-discover",
	Short: "Industry Core Hub dataspace discovery service",
	Long: `ichub-discover caches connector, digital twin registry and asset
negotiation state for a set of business partner numbers, and serves
paginated shell and submodel discovery against the cached Catena-X
dataspace.`,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(shellsCmd)
	rootCmd.AddCommand(submodelsCmd)
	rootCmd.AddCommand(purgeCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}
