// Package config parses the bridge's command line and environment.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config holds the parsed command-line configuration for the demo bridge.
type Config struct {
	// Displays is the set of simulated display ids.
	Displays []int64
	// VsyncPeriod is the simulated refresh period.
	VsyncPeriod time.Duration
	// Duration is how long the bridge runs; 0 means until a signal.
	Duration time.Duration
	// FilterExpr is an optional event filter expression.
	FilterExpr string
	// ModeChanges enables mode change event registration.
	ModeChanges bool
	// FrameRateOverrides enables frame rate override event registration.
	FrameRateOverrides bool
	// Spans enables the OpenTelemetry span observer.
	Spans bool
}

const usage = `Usage: %s [flags]
  --displays <id,id,...>   simulated display ids (default 1)
  --period <duration>      vsync period (default 16.666ms)
  --duration <duration>    run time, 0 = until signal (default 0)
  --filter <expr>          event filter expression
  --mode-changes           register for mode change events
  --frame-rate-overrides   register for frame rate override events
  --spans                  export OpenTelemetry spans per event`

// ParseArgs parses command-line arguments and returns a Config.
func ParseArgs(args []string) (*Config, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no arguments provided")
	}
	programName := args[0]

	cfg := &Config{
		Displays:    []int64{1},
		VsyncPeriod: 16666667 * time.Nanosecond,
	}

	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "--displays":
			val, err := flagValue(args, &i)
			if err != nil {
				return nil, err
			}
			ids, err := parseDisplayList(val)
			if err != nil {
				return nil, err
			}
			cfg.Displays = ids
		case "--period":
			val, err := flagValue(args, &i)
			if err != nil {
				return nil, err
			}
			d, err := time.ParseDuration(val)
			if err != nil {
				return nil, fmt.Errorf("invalid --period %q: %w", val, err)
			}
			if d <= 0 {
				return nil, fmt.Errorf("--period must be positive, got %v", d)
			}
			cfg.VsyncPeriod = d
		case "--duration":
			val, err := flagValue(args, &i)
			if err != nil {
				return nil, err
			}
			d, err := time.ParseDuration(val)
			if err != nil {
				return nil, fmt.Errorf("invalid --duration %q: %w", val, err)
			}
			cfg.Duration = d
		case "--filter":
			val, err := flagValue(args, &i)
			if err != nil {
				return nil, err
			}
			cfg.FilterExpr = val
		case "--mode-changes":
			cfg.ModeChanges = true
		case "--frame-rate-overrides":
			cfg.FrameRateOverrides = true
		case "--spans":
			cfg.Spans = true
		case "--help", "-h":
			return nil, fmt.Errorf(usage, programName)
		default:
			return nil, fmt.Errorf("unknown flag %q\n"+usage, args[i], programName)
		}
	}

	return cfg, nil
}

func flagValue(args []string, i *int) (string, error) {
	if *i+1 >= len(args) {
		return "", fmt.Errorf("%s requires a value", args[*i])
	}
	*i++
	return args[*i], nil
}

func parseDisplayList(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid display id %q: %w", part, err)
		}
		if id == 0 {
			return nil, fmt.Errorf("display id 0 is reserved for the all-displays scope")
		}
		ids = append(ids, id)
	}
	return ids, nil
}
