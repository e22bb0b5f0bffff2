package discovery

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muurk/castscan/internal/logging"
	"github.com/muurk/castscan/internal/metrics"
)

// Strategy is one way of finding devices. Implementations own their error
// handling: a failed strategy returns an empty list and an informational error.
type Strategy interface {
	Name() string
	Discover(ctx context.Context) ([]*Device, error)
}

// StrategyResult is the outcome of one strategy within a run
type StrategyResult struct {
	Name    string
	Devices []*Device
	Err     error
	Elapsed time.Duration
}

// Report is the outcome of a complete discovery run
type Report struct {
	// Devices is the merged, deduplicated result
	Devices []*Device

	// Strategies holds one entry per strategy, in engine order
	Strategies []StrategyResult

	Elapsed time.Duration
}

// Result returns the entry for the named strategy
func (r *Report) Result(name string) (StrategyResult, bool) {
	for _, s := range r.Strategies {
		if s.Name == name {
			return s, true
		}
	}
	return StrategyResult{}, false
}

// Engine runs its strategies concurrently and merges their results
type Engine struct {
	strategies []Strategy
}

// NewEngine creates an engine. Strategy order decides which duplicate wins.
func NewEngine(strategies ...Strategy) *Engine {
	return &Engine{strategies: strategies}
}

// Strategies returns the configured strategies in merge order
func (e *Engine) Strategies() []Strategy {
	return append([]Strategy(nil), e.strategies...)
}

// DiscoverAll runs every strategy and returns the merged device list.
// Strategy failures only shrink the result; an error is returned when the
// caller cancels or a strategy panics.
func (e *Engine) DiscoverAll(ctx context.Context) ([]*Device, error) {
	report, err := e.Discover(ctx)
	if err != nil {
		return nil, err
	}
	return report.Devices, nil
}

// Discover is DiscoverAll with per-strategy detail
func (e *Engine) Discover(ctx context.Context) (*Report, error) {
	start := time.Now()
	results := make([]StrategyResult, len(e.strategies))
	panics := make([]error, len(e.strategies))

	logging.Info("Starting device discovery", zap.Int("strategies", len(e.strategies)))

	var g errgroup.Group
	for i, strategy := range e.strategies {
		g.Go(func() error {
			name := strategy.Name()
			began := time.Now()

			defer func() {
				if r := recover(); r != nil {
					logging.Error("Discovery strategy panicked",
						zap.String("strategy", name),
						zap.Any("panic", r),
					)
					panics[i] = &DiscoveryError{
						Strategy: name,
						Err:      fmt.Errorf("%w: %v", ErrStrategyPanic, r),
					}
					results[i] = StrategyResult{Name: name, Devices: []*Device{}, Err: panics[i], Elapsed: time.Since(began)}
				}
			}()

			devices, err := strategy.Discover(ctx)
			if devices == nil {
				devices = []*Device{}
			}
			results[i] = StrategyResult{Name: name, Devices: devices, Err: err, Elapsed: time.Since(began)}

			metrics.StrategyDuration.WithLabelValues(name).Observe(results[i].Elapsed.Seconds())
			metrics.StrategyDevices.WithLabelValues(name).Set(float64(len(devices)))
			logging.LogStrategyResult(name, len(devices), results[i].Elapsed, err)
			return nil
		})
	}
	_ = g.Wait()

	lists := make([][]*Device, 0, len(results))
	for _, r := range results {
		lists = append(lists, r.Devices)
	}

	report := &Report{
		Devices:    MergeDevices(lists...),
		Strategies: results,
		Elapsed:    time.Since(start),
	}
	metrics.DiscoveryDuration.Observe(report.Elapsed.Seconds())

	if err := ctx.Err(); err != nil {
		metrics.DiscoveryRunsTotal.WithLabelValues("cancelled").Inc()
		logging.Warn("Device discovery cancelled", zap.Error(err))
		return report, &DiscoveryError{Err: err}
	}

	for _, err := range panics {
		if err != nil {
			metrics.DiscoveryRunsTotal.WithLabelValues("failed").Inc()
			return report, err
		}
	}

	metrics.DiscoveryRunsTotal.WithLabelValues("ok").Inc()
	logging.Info("Device discovery complete",
		zap.Int("devices", len(report.Devices)),
		zap.Duration("elapsed", report.Elapsed),
	)
	return report, nil
}

// MergeDevices concatenates lists in order and drops later devices whose
// address was already seen.
func MergeDevices(lists ...[]*Device) []*Device {
	seen := make(map[string]struct{})
	merged := make([]*Device, 0)
	for _, list := range lists {
		for _, d := range list {
			if d == nil {
				continue
			}
			if _, dup := seen[d.Address]; dup {
				continue
			}
			seen[d.Address] = struct{}{}
			merged = append(merged, d)
		}
	}
	return merged
}

// Options configures the standard strategy set
type Options struct {
	// Timeout bounds the SSDP and mDNS receive phases
	Timeout time.Duration

	ProbeTimeout time.Duration
	ProbePort    int
	ProbeWorkers int

	SearchTarget string

	EnableSSDP  bool
	EnableProbe bool
	EnableMDNS  bool

	// Pinger is required when EnableProbe is set
	Pinger Pinger
}

// DefaultOptions returns SSDP plus the range probe with default timings
func DefaultOptions(pinger Pinger) Options {
	return Options{
		Timeout:      DefaultDiscoveryTimeout,
		ProbeTimeout: DefaultProbeTimeout,
		ProbePort:    DefaultProbePort,
		ProbeWorkers: DefaultProbeWorkers,
		SearchTarget: DefaultSearchTarget,
		EnableSSDP:   true,
		EnableProbe:  true,
		Pinger:       pinger,
	}
}

// NewEngineFromOptions builds an engine with SSDP first, then the range
// probe, then mDNS.
func NewEngineFromOptions(opts Options) (*Engine, error) {
	var strategies []Strategy

	if opts.EnableSSDP {
		s := NewSSDPScanner()
		if opts.Timeout > 0 {
			s.Timeout = opts.Timeout
		}
		if opts.SearchTarget != "" {
			s.SearchTarget = opts.SearchTarget
		}
		strategies = append(strategies, s)
	}

	if opts.EnableProbe {
		if opts.Pinger == nil {
			return nil, fmt.Errorf("range probe enabled without a pinger")
		}
		p := NewRangeProber(opts.Pinger)
		if opts.ProbeTimeout > 0 {
			p.Timeout = opts.ProbeTimeout
		}
		if opts.ProbePort > 0 {
			p.Port = opts.ProbePort
		}
		if opts.ProbeWorkers > 0 {
			p.Workers = opts.ProbeWorkers
		}
		strategies = append(strategies, p)
	}

	if opts.EnableMDNS {
		b := NewMDNSBrowser()
		if opts.Timeout > 0 {
			b.Timeout = opts.Timeout
		}
		strategies = append(strategies, b)
	}

	if len(strategies) == 0 {
		return nil, fmt.Errorf("no discovery strategies enabled")
	}

	return NewEngine(strategies...), nil
}
