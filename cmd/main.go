package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.PersistentFlags().StringVar(&confPathFlag, "conf", "/etc/ndppd.yaml", "path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "one of debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&logTimeFlag, "log-time", false, "include timestamps in log records")
	rootCmd.PersistentFlags().BoolVar(&logJSONFlag, "log-json", false, "emit JSON log records instead of text")
}

var (
	rootCmd = &cobra.Command{
		Use:   "ndppd",
		Short: "An IPv6 kernel route and address mirror.",
		Long:  "ndppd keeps a live, queryable mirror of the kernel's IPv6 routing and address tables.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(newLogger())
			if err := setLogLevel(logLevelFlag); err != nil {
				slog.Warn("keeping the default log level", "err", err)
			}
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Get the built version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("built commit: %s\n", builtCommit)
		},
	}

	confPathFlag string
	logLevelFlag string
	logTimeFlag  bool
	logJSONFlag  bool

	builtCommit = "dev"
)

func init() {
	// Disable completion please!
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Add the different sub-commands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(routesCmd)
	rootCmd.AddCommand(addressesCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	// Flags aren't parsed yet; PersistentPreRun swaps in the configured
	// handler once they are.
	slog.SetDefault(newLogger())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
