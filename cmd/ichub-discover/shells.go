package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/internal/config"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/hub"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/types"
)

var shellsCmd = &cobra.Command{
	Use:   "shells <bpn>",
	Short: "Run a one-shot shell discovery against a BPN and print the result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runShells,
}

func init() {
	shellsCmd.Flags().Int("limit", 50, "page size")
	shellsCmd.Flags().String("cursor", "", "opaque pagination cursor from a previous call")
}

func runShells(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	cursor, _ := cmd.Flags().GetString("cursor")

	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	h, err := newHubFromConfig(cfg)
	if err != nil {
		return err
	}

	result, err := h.DiscoverShells(context.Background(), types.BPN(args[0]), nil, &limit, cursor)
	if err != nil {
		return fmt.Errorf("discovering shells: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func newHubFromConfig(cfg config.Config) (*hub.Hub, error) {
	return hub.New(hub.Config{
		ConnectorTTL:               cfg.ConnectorTTL,
		DtrTTL:                     cfg.DtrTTL,
		HarvestTimeout:             cfg.HarvestTimeout,
		DtrTypeFilter:              cfg.DtrTypeFilter(),
		ShellCacheCapacity:         cfg.ShellCacheCapacity,
		DiscoveryRetries:           cfg.DiscoveryRetries,
		DiscoveryTimeout:           cfg.DiscoveryTimeout,
		SubmodelNegotiationPoolCap: cfg.SubmodelNegotiationPoolCap,
		SubmodelFetchPoolCap:       cfg.SubmodelFetchPoolCap,
		SubmodelFetchTimeout:       cfg.SubmodelFetchTimeout,
		DiscoveryServiceURL:        cfg.DiscoveryServiceURL,
		Negotiation:                cfg.NegotiationConfig(),
	})
}
