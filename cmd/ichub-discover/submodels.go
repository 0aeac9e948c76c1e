package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/internal/config"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/types"
)

var submodelsCmd = &cobra.Command{
	Use:   "submodels <bpn> <shellID>",
	Short: "Run a one-shot submodel fetch against a shell and print the result as JSON",
	Args:  cobra.ExactArgs(2),
	RunE:  runSubmodels,
}

func runSubmodels(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	h, err := newHubFromConfig(cfg)
	if err != nil {
		return err
	}

	// No governance policies are supplied by this smoke-test command;
	// every submodel with a semanticId surfaces with status
	// governance_not_found rather than pending (one without a semanticId
	// surfaces with status error).
	result, err := h.DiscoverSubmodels(context.Background(), types.BPN(args[0]), args[1], map[string][]types.Policy{})
	if err != nil {
		return fmt.Errorf("discovering submodels: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
