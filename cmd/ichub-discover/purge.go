package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eclipse-tractusx/industry-core-hub-discovery/internal/config"
	"github.com/eclipse-tractusx/industry-core-hub-discovery/pkg/types"
)

var purgeCmd = &cobra.Command{
	Use:   "purge [bpn]",
	Short: "Drop cached connector and DTR state for one BPN, or every BPN with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPurge,
}

func init() {
	purgeCmd.Flags().Bool("all", false, "purge every cached BPN")
}

func runPurge(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	if !all && len(args) == 0 {
		return fmt.Errorf("purge requires either a BPN argument or --all")
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	h, err := newHubFromConfig(cfg)
	if err != nil {
		return err
	}

	if all {
		h.PurgeAll()
		fmt.Println("purged all cached BPNs")
		return nil
	}

	h.PurgeBPN(types.BPN(args[0]))
	fmt.Printf("purged %s\n", args[0])
	return nil
}
