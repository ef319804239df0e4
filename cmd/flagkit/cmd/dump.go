package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/flagkit/flagkit"
)

const defaultCommandTimeout = 10 * time.Second

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Fetch and print every flag's root value as JSON",
	Args:  cobra.NoArgs,
	RunE:  runDump,
}

func runDump(cmd *cobra.Command, args []string) error {
	if _, err := sdkKeyFromConfig(); err != nil {
		return err
	}

	client, err := flagkit.NewClient(buildClientConfig())
	if err != nil {
		return fmt.Errorf("flagkit: %w", err)
	}
	defer client.Close(cmd.Context())

	ctx, cancel := context.WithTimeout(cmd.Context(), defaultCommandTimeout)
	defer cancel()
	if err := client.Refresh(ctx); err != nil {
		return fmt.Errorf("flagkit: refresh: %w", err)
	}

	flags := client.GetAllFlags(ctx)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(flags)
}
