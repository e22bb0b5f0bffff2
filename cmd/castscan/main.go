// Castscan discovers media players on the local network and controls them.
//
// It finds UPnP MediaRenderers over SSDP and JSON-RPC remote-control players
// by probing the local /24, keeps a saved selection with custom device names,
// and can cast a URL to the selected player. It also serves the device list
// over a small HTTP and WebSocket API.
//
// Usage:
//
//	castscan [command] [flags]
//
// Running without arguments launches the interactive wizard.
// See 'castscan --help' for available commands.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/castscan/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		var shown reportedError
		if !errors.As(err, &shown) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "castscan",
	Short: "Discover and control network media players",
	Long: `Discover UPnP media renderers and JSON-RPC remote-control players on
the local network, pick one, and cast media to it.

Discovery runs an SSDP search and a probe of the local /24 subnet in
parallel, optionally with an mDNS browse, and merges the results by address.

If no command is specified, the interactive wizard will launch automatically.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWizard(cmd, args)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "castscan %s\n", version.Full())
	},
}
