package main

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/muurk/castscan/internal/config"
	"github.com/muurk/castscan/internal/discovery"
	"github.com/muurk/castscan/internal/logging"
	"github.com/muurk/castscan/internal/rpc"
	"github.com/muurk/castscan/internal/store"
)

// Global flags
var (
	configPath string
	logLevel   string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the config file (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); default is silent or $"+logging.LogLevelEnvVar)
}

// reportedError marks an error whose details were already printed
type reportedError struct {
	err error
}

func (e reportedError) Error() string { return e.err.Error() }

func (e reportedError) Unwrap() error { return e.err }

// scanOverrides holds per-invocation discovery flags layered over the saved
// preferences.
type scanOverrides struct {
	timeout      time.Duration
	probeTimeout time.Duration
	noSSDP       bool
	noProbe      bool
	mdns         bool
}

// engineOptions merges preferences and flag overrides
func engineOptions(prefs config.Preferences, o scanOverrides, pinger discovery.Pinger) discovery.Options {
	opts := discovery.Options{
		Timeout:      prefs.DiscoverTimeout(),
		ProbeTimeout: prefs.ProbeTimeout(),
		ProbePort:    prefs.ProbePort,
		ProbeWorkers: prefs.ProbeWorkers,
		SearchTarget: prefs.SearchTarget,
		EnableSSDP:   prefs.EnableSSDP && !o.noSSDP,
		EnableProbe:  prefs.EnableProbe && !o.noProbe,
		EnableMDNS:   prefs.EnableMDNS || o.mdns,
		Pinger:       pinger,
	}
	if o.timeout > 0 {
		opts.Timeout = o.timeout
	}
	if o.probeTimeout > 0 {
		opts.ProbeTimeout = o.probeTimeout
	}
	return opts
}

// reportingEngine runs the full engine report and keeps the last one so the
// scan command can show per-strategy outcomes after the store has the devices.
type reportingEngine struct {
	engine *discovery.Engine
	last   atomic.Pointer[discovery.Report]
}

func (r *reportingEngine) DiscoverAll(ctx context.Context) ([]*discovery.Device, error) {
	report, err := r.engine.Discover(ctx)
	if err != nil {
		return nil, err
	}
	r.last.Store(report)
	return report.Devices, nil
}

// Last returns the most recent report, or nil before the first scan
func (r *reportingEngine) Last() *discovery.Report {
	return r.last.Load()
}

// app bundles what every command needs
type app struct {
	registry *config.Registry
	prefs    config.Preferences
	engine   *reportingEngine
	pinger   *rpc.Pinger
	store    *store.Store
}

// newApp loads the registry, configures logging and builds the store
func newApp(o scanOverrides) (*app, error) {
	if err := logging.Initialize(logLevel); err != nil {
		return nil, err
	}

	var (
		registry *config.Registry
		err      error
	)
	if configPath != "" {
		registry, err = config.Load(configPath)
	} else {
		registry, err = config.LoadRegistry()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	prefs := registry.Preferences
	opts := engineOptions(prefs, o, nil)
	pinger := rpc.NewPinger(opts.ProbeWorkers, opts.ProbeTimeout)
	opts.Pinger = pinger

	engine, err := discovery.NewEngineFromOptions(opts)
	if err != nil {
		pinger.Close()
		return nil, err
	}

	re := &reportingEngine{engine: engine}
	return &app{
		registry: registry,
		prefs:    prefs,
		engine:   re,
		pinger:   pinger,
		store:    store.New(re, registry),
	}, nil
}

func (a *app) Close() {
	a.pinger.Close()
	logging.Sync()
}

// discoverTimeout is the longest a scan can take with these options
func (a *app) discoverTimeout(o scanOverrides) time.Duration {
	opts := engineOptions(a.prefs, o, nil)
	return max(opts.Timeout, opts.ProbeTimeout)
}

// knownDevice builds a device for address from the registry's last sighting,
// falling back to a remote-control player at port.
func (a *app) knownDevice(address string, port int) (*discovery.Device, error) {
	if d := a.store.FindDevice(address); d != nil && (port <= 0 || d.Port == port) {
		return d, nil
	}

	if rec := a.registry.GetDevice(address); rec != nil && rec.LastPort > 0 && (port <= 0 || port == rec.LastPort) {
		var kind discovery.Kind
		if err := kind.UnmarshalText([]byte(rec.LastKind)); err != nil {
			kind = discovery.KindRemoteControl
		}
		d := discovery.NewDevice(address, address, rec.LastPort, kind)
		if d == nil {
			return nil, fmt.Errorf("invalid address: %q", address)
		}
		d.CustomName = rec.CustomName
		return d, nil
	}

	return a.store.AddManualDevice(address, port)
}

// selectedDevice returns the persisted selection or a helpful error
func (a *app) selectedDevice() (*discovery.Device, error) {
	d := a.store.SelectedDevice().Get()
	if d == nil {
		return nil, errors.New("no device selected; run 'castscan select <address>' or 'castscan wizard'")
	}
	return d, nil
}
