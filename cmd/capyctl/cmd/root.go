package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "capyctl",
	Short: "CapyCode operations CLI",
	Long: `capyctl is the command-line interface for operating CapyCode
backend services.

Push notification events to connected users, seed synthetic event
traffic against the relay, and inspect relay occupancy.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("nats-url", "nats://localhost:4222", "NATS server URL")
}
