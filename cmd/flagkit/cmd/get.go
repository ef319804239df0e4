package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flagkit/flagkit"
)

var (
	getUserID      string
	getUserEmail   string
	getUserCountry string
)

var getCmd = &cobra.Command{
	Use:   "get <flag-key> <default-value>",
	Short: "Evaluate a single flag for an (optional) user",
	Args:  cobra.ExactArgs(2),
	RunE:  runGet,
}

func init() {
	getCmd.Flags().StringVar(&getUserID, "user-id", "", "user identifier for targeting")
	getCmd.Flags().StringVar(&getUserEmail, "user-email", "", "user email attribute for targeting")
	getCmd.Flags().StringVar(&getUserCountry, "user-country", "", "user country attribute for targeting")
}

func runGet(cmd *cobra.Command, args []string) error {
	if _, err := sdkKeyFromConfig(); err != nil {
		return err
	}
	key, defaultValue := args[0], args[1]

	client, err := flagkit.NewClient(buildClientConfig())
	if err != nil {
		return fmt.Errorf("flagkit: %w", err)
	}
	defer client.Close(cmd.Context())

	ctx, cancel := context.WithTimeout(cmd.Context(), defaultCommandTimeout)
	defer cancel()
	if err := client.Refresh(ctx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "flagkit: refresh failed, evaluating with whatever is cached: %v\n", err)
	}

	var user flagkit.User
	if getUserID != "" {
		user = &flagkit.BasicUser{Identifier: getUserID, Email: getUserEmail, Country: getUserCountry}
	}

	details := client.GetStringValueDetails(ctx, key, user, defaultValue)
	fmt.Fprintln(cmd.OutOrStdout(), details.Value)
	if details.Error != nil {
		return fmt.Errorf("evaluation reported an error (value above is the default): %w", details.Error)
	}
	return nil
}
