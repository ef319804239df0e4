// Package cmd implements the flagkit CLI's subcommands.
package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flagkit/flagkit"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "flagkit",
	Short: "Ad-hoc feature-flag evaluation and cache inspection",
	Long: `flagkit is a small operational CLI around the flagkit Go library.

It lets an operator evaluate a flag or dump every flag's root value
for a given SDK key without writing any Go code, the same way the
library's own Client would, reading configuration from flags,
environment variables (FLAGKIT_*), or a config file.`,
}

// Execute runs the root command; main.go's only job is to call this and
// translate a non-nil error into a process exit code.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion lets main.go inject build-time version information.
func SetVersion(v string) { version = v }

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("sdk-key", "", "flagkit SDK key (required)")
	rootCmd.PersistentFlags().String("base-url", "", "override the default CDN base URL")
	rootCmd.PersistentFlags().Duration("poll-interval", 60*time.Second, "auto-poll interval")
	rootCmd.PersistentFlags().String("config", "", "path to a config file (yaml/json/toml)")

	_ = viper.BindPFlag("sdk-key", rootCmd.PersistentFlags().Lookup("sdk-key"))
	_ = viper.BindPFlag("base-url", rootCmd.PersistentFlags().Lookup("base-url"))
	_ = viper.BindPFlag("poll-interval", rootCmd.PersistentFlags().Lookup("poll-interval"))

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("flagkit")
		viper.AddConfigPath(".")
	}
	viper.SetEnvPrefix("flagkit")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "flagkit: warning: %v\n", err)
		}
	}
}

func sdkKeyFromConfig() (string, error) {
	key := viper.GetString("sdk-key")
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("no SDK key configured: pass --sdk-key or set FLAGKIT_SDK_KEY")
	}
	return key, nil
}

func buildClientConfig() flagkit.Config {
	return flagkit.Config{
		SDKKey:       viper.GetString("sdk-key"),
		BaseURL:      viper.GetString("base-url"),
		PollingMode:  flagkit.Manual,
		PollInterval: viper.GetDuration("poll-interval"),
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the flagkit CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("flagkit", version)
	},
}
