package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/muurk/castscan/internal/discovery"
	"github.com/muurk/castscan/internal/server"
	"github.com/muurk/castscan/internal/ui"
	"github.com/muurk/castscan/internal/urls"
	"github.com/muurk/castscan/internal/wizard/tui"
)

// Output formats for scan
const (
	formatTable = "table"
	formatJSON  = "json"
)

// Scan command flags
var (
	scanFlags    scanOverrides
	outputFormat string
)

// Select command flags
var (
	selectPort int
	selectScan bool
)

// Serve command flags
var (
	serveHost     string
	servePort     int
	serveInterval time.Duration
)

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(selectCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(wizardCmd)
}

// scanCmd discovers devices on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the network for media players",
	Long: `Scan for media players with an SSDP M-SEARCH and a JSON-RPC probe of
every host in the local /24 subnet. Results are merged by address; a player
found by both keeps the SSDP entry.

Strategies that cannot run on this host (no multicast, no private IPv4
subnet) are reported and skipped.`,
	Example: `  # Scan with saved preferences
  castscan scan

  # Quick scan, probe only
  castscan scan --timeout 2s --no-ssdp

  # Add an mDNS browse and print JSON for scripting
  castscan scan --mdns --format json`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().DurationVar(&scanFlags.timeout, "timeout", 0, "SSDP and mDNS receive timeout (default from config, 5s)")
	scanCmd.Flags().DurationVar(&scanFlags.probeTimeout, "probe-timeout", 0, "Per-host probe timeout (default from config, 1s)")
	scanCmd.Flags().BoolVar(&scanFlags.noSSDP, "no-ssdp", false, "Skip the SSDP search")
	scanCmd.Flags().BoolVar(&scanFlags.noProbe, "no-probe", false, "Skip the subnet probe")
	scanCmd.Flags().BoolVar(&scanFlags.mdns, "mdns", false, "Also browse mDNS for JSON-RPC players")
	scanCmd.Flags().StringVar(&outputFormat, "format", formatTable, "Output format (table, json)")
}

func runScan(cmd *cobra.Command, args []string) error {
	if outputFormat != formatTable && outputFormat != formatJSON {
		return fmt.Errorf("unknown format %q (want table or json)", outputFormat)
	}

	a, err := newApp(scanFlags)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	p := ui.NewPrinter(out)

	if outputFormat == formatTable {
		p.PrintHeader("Device Scan", "castscan "+strings.Join(commandArgs(cmd), " "),
			ui.Param{Key: "Strategies", Value: strategyNames(a.engine.engine)},
			ui.Param{Key: "Timeout", Value: a.discoverTimeout(scanFlags).String()},
		)
		p.Newline()
	}

	devices, err := a.store.DiscoverDevices(cmd.Context())
	if err != nil {
		if outputFormat == formatTable {
			p.PrintError("Scan failed", err, "See "+urls.Troubleshooting)
			return reportedError{err}
		}
		return err
	}

	if outputFormat == formatJSON {
		return writeDevicesJSON(out, devices)
	}

	if report := a.engine.Last(); report != nil {
		p.PrintSteps(strategySteps(report))
	}

	if len(devices) == 0 {
		p.PrintWarning("No devices found",
			ui.Param{Key: "Hint", Value: "check the player allows remote control via HTTP"},
			ui.Param{Key: "Manual", Value: "castscan select <address> --port 8080"},
			ui.Param{Key: "Docs", Value: urls.RemoteControlSettings},
		)
		return nil
	}

	p.PrintDevices(devices, a.store.SelectedDevice().Get())
	p.Newline()
	p.Println(fmt.Sprintf("Found %d device(s). Use 'castscan select <address>' to choose one.", len(devices)))
	return nil
}

// commandArgs reconstructs the invocation for the scan header
func commandArgs(cmd *cobra.Command) []string {
	parts := []string{cmd.Name()}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if f.Value.Type() == "bool" {
			parts = append(parts, "--"+f.Name)
			return
		}
		parts = append(parts, "--"+f.Name, f.Value.String())
	})
	return parts
}

func strategyNames(e interface{ Strategies() []discovery.Strategy }) string {
	var names []string
	for _, s := range e.Strategies() {
		names = append(names, s.Name())
	}
	return strings.Join(names, ", ")
}

// strategySteps turns a report into one step per strategy. Strategies that
// cannot run on this host are shown as skipped rather than failed.
func strategySteps(report *discovery.Report) *ui.Steps {
	steps := ui.NewSteps("Strategies")
	for _, r := range report.Strategies {
		elapsed := r.Elapsed.Round(time.Millisecond)
		switch {
		case errors.Is(r.Err, discovery.ErrNoSubnet), errors.Is(r.Err, discovery.ErrMulticastUnavailable):
			steps.Add(r.Name, ui.StepSkipped, r.Err.Error())
		case r.Err != nil:
			steps.Add(r.Name, ui.StepFailed, r.Err.Error())
		default:
			steps.Add(r.Name, ui.StepComplete, fmt.Sprintf("%d found, %s", len(r.Devices), elapsed))
		}
	}
	return steps
}

func writeDevicesJSON(w io.Writer, devices []*discovery.Device) error {
	if devices == nil {
		devices = []*discovery.Device{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(devices); err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return nil
}

// selectCmd saves the selected device
var selectCmd = &cobra.Command{
	Use:   "select <address>",
	Short: "Select the device that playback commands control",
	Long: `Select a device by address. The selection is saved to the config file and
used by play, stop, pause and players.

Without --scan the device is taken from the last time it was seen, or added
as a remote-control player at --port.`,
	Example: `  # Select a player seen in an earlier scan
  castscan select 192.168.1.20

  # Select a player on a non-default port
  castscan select 192.168.1.20 --port 8081

  # Scan first, then select from the results
  castscan select 192.168.1.20 --scan`,
	Args: cobra.ExactArgs(1),
	RunE: runSelect,
}

func init() {
	selectCmd.Flags().IntVar(&selectPort, "port", 0, "Device port (default: last seen port, else 8080)")
	selectCmd.Flags().BoolVar(&selectScan, "scan", false, "Scan first and select from the results")
}

func runSelect(cmd *cobra.Command, args []string) error {
	a, err := newApp(scanOverrides{})
	if err != nil {
		return err
	}
	defer a.Close()

	address := args[0]
	p := ui.NewPrinter(cmd.OutOrStdout())

	var d *discovery.Device
	if selectScan {
		if _, err := a.store.DiscoverDevices(cmd.Context()); err != nil {
			return err
		}
		d, err = a.store.SelectAddress(address, selectPort)
	} else {
		d, err = a.knownDevice(address, selectPort)
		if err == nil {
			err = a.store.SetSelectedDevice(d)
		}
	}
	if err != nil {
		return err
	}

	p.PrintSuccess("Device selected",
		ui.Param{Key: "Name", Value: d.Name()},
		ui.Param{Key: "Address", Value: d.Address + ":" + strconv.Itoa(d.Port)},
		ui.Param{Key: "Kind", Value: d.Kind.String()},
	)
	return nil
}

// renameCmd stores a custom device name
var renameCmd = &cobra.Command{
	Use:   "rename <address> <name>",
	Short: "Give a device a custom name",
	Long: `Store a custom name for the device at address. Custom names are kept in
the config file and override discovered names. An empty name restores the
discovered name.`,
	Example: `  castscan rename 192.168.1.20 "Living Room"
  castscan rename 192.168.1.20 ""`,
	Args: cobra.ExactArgs(2),
	RunE: runRename,
}

func runRename(cmd *cobra.Command, args []string) error {
	a, err := newApp(scanOverrides{})
	if err != nil {
		return err
	}
	defer a.Close()

	address, name := args[0], strings.TrimSpace(args[1])
	if err := a.store.RenameDevice(address, name); err != nil {
		return err
	}

	p := ui.NewPrinter(cmd.OutOrStdout())
	if name == "" {
		p.PrintSuccess("Custom name cleared", ui.Param{Key: "Address", Value: address})
		return nil
	}
	p.PrintSuccess("Device renamed",
		ui.Param{Key: "Address", Value: address},
		ui.Param{Key: "Name", Value: name},
	)
	return nil
}

// serveCmd runs the HTTP/WebSocket API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the device list over HTTP and WebSocket",
	Long: `Start the castscan API server. It exposes the known devices, the
selection and playback control as JSON endpoints, streams snapshot changes
on /ws and publishes Prometheus metrics on /metrics.

The server runs one scan at startup. POST /api/discover triggers more,
rate limited by --discover-interval.`,
	Example: `  # Listen on localhost:8765
  castscan serve

  # Listen on all interfaces
  castscan serve --host 0.0.0.0 --port 9000 --log-level info`,
	RunE: runServe,
}

func init() {
	defaults := server.DefaultConfig()
	serveCmd.Flags().StringVar(&serveHost, "host", defaults.Host, "Listen address")
	serveCmd.Flags().IntVar(&servePort, "port", defaults.Port, "Listen port")
	serveCmd.Flags().DurationVar(&serveInterval, "discover-interval", defaults.DiscoverInterval, "Minimum time between API-triggered scans")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(scanOverrides{})
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := server.DefaultConfig()
	cfg.Host = serveHost
	cfg.Port = servePort
	cfg.DiscoverInterval = serveInterval

	srv := server.New(cfg, a.store, nil)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.discoverTimeout(scanOverrides{})+10*time.Second)
		defer cancel()
		_, _ = a.store.DiscoverDevices(ctx)
	}()

	ui.NewPrinter(cmd.OutOrStdout()).PrintHeader("API Server", "castscan serve",
		ui.Param{Key: "Listen", Value: "http://" + srv.Addr()},
		ui.Param{Key: "Stream", Value: "ws://" + srv.Addr() + "/ws"},
		ui.Param{Key: "Config", Value: a.registry.Path()},
	)

	return srv.Start()
}

// wizardCmd launches the interactive TUI wizard
var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Launch the interactive device wizard",
	Long: `Launch an interactive TUI for discovering and selecting a device.

The wizard scans on start and lets you select a device, rename it, enter an
address by hand, or rescan. The selection is saved for the playback
commands.`,
	Example: `  castscan wizard
  # Or simply (wizard is default):
  castscan`,
	RunE: runWizard,
}

func runWizard(cmd *cobra.Command, args []string) error {
	a, err := newApp(scanOverrides{})
	if err != nil {
		return err
	}
	defer a.Close()

	d, err := tui.Run(a.store, a.discoverTimeout(scanOverrides{}))
	if err != nil {
		return err
	}
	if d != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Selected %s\n", d)
	}
	return nil
}
