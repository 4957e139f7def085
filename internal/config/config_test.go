package config

import (
	"testing"
	"time"
)

func TestParseArgs_Defaults(t *testing.T) {
	cfg, err := ParseArgs([]string{"displaybridge"})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	if len(cfg.Displays) != 1 || cfg.Displays[0] != 1 {
		t.Errorf("Displays = %v, want [1]", cfg.Displays)
	}
	if cfg.VsyncPeriod != 16666667*time.Nanosecond {
		t.Errorf("VsyncPeriod = %v, want 16.666667ms", cfg.VsyncPeriod)
	}
	if cfg.Duration != 0 {
		t.Errorf("Duration = %v, want 0", cfg.Duration)
	}
	if cfg.ModeChanges || cfg.FrameRateOverrides || cfg.Spans {
		t.Errorf("boolean flags should default to false, got %+v", cfg)
	}
}

func TestParseArgs_AllFlags(t *testing.T) {
	cfg, err := ParseArgs([]string{
		"displaybridge",
		"--displays", "1,2,7",
		"--period", "8.333ms",
		"--duration", "30s",
		"--filter", `kind == "vsync"`,
		"--mode-changes",
		"--frame-rate-overrides",
		"--spans",
	})
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	want := []int64{1, 2, 7}
	if len(cfg.Displays) != len(want) {
		t.Fatalf("Displays = %v, want %v", cfg.Displays, want)
	}
	for i, id := range want {
		if cfg.Displays[i] != id {
			t.Errorf("Displays[%d] = %d, want %d", i, cfg.Displays[i], id)
		}
	}
	if cfg.VsyncPeriod != 8333*time.Microsecond {
		t.Errorf("VsyncPeriod = %v, want 8.333ms", cfg.VsyncPeriod)
	}
	if cfg.Duration != 30*time.Second {
		t.Errorf("Duration = %v, want 30s", cfg.Duration)
	}
	if cfg.FilterExpr != `kind == "vsync"` {
		t.Errorf("FilterExpr = %q", cfg.FilterExpr)
	}
	if !cfg.ModeChanges || !cfg.FrameRateOverrides || !cfg.Spans {
		t.Errorf("boolean flags not set: %+v", cfg)
	}
}

func TestParseArgs_Errors(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{"no arguments", nil},
		{"unknown flag", []string{"displaybridge", "--bogus"}},
		{"missing value", []string{"displaybridge", "--period"}},
		{"bad period", []string{"displaybridge", "--period", "soon"}},
		{"negative period", []string{"displaybridge", "--period", "-1ms"}},
		{"bad duration", []string{"displaybridge", "--duration", "later"}},
		{"bad display id", []string{"displaybridge", "--displays", "1,x"}},
		{"reserved display id", []string{"displaybridge", "--displays", "0"}},
		{"help", []string{"displaybridge", "--help"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseArgs(tc.args); err == nil {
				t.Errorf("ParseArgs(%v) succeeded, want error", tc.args)
			}
		})
	}
}

func TestOTELConfig_Endpoint(t *testing.T) {
	cases := []struct {
		name string
		cfg  OTELConfig
		want string
	}{
		{"default", OTELConfig{}, "localhost:4318"},
		{"generic endpoint", OTELConfig{ExporterEndpoint: "collector:4318"}, "collector:4318"},
		{"traces endpoint wins", OTELConfig{ExporterEndpoint: "collector:4318", TracesEndpoint: "traces:4318"}, "traces:4318"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.GetEndpoint(); got != tc.want {
				t.Errorf("GetEndpoint() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestOTELConfig_FromEnvironment(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "bridge-test")
	t.Setenv("OTEL_RESOURCE_ATTRIBUTES", "env=test, team=display")

	cfg, err := ParseOTELConfig()
	if err != nil {
		t.Fatalf("ParseOTELConfig: %v", err)
	}
	if cfg.ServiceName != "bridge-test" {
		t.Errorf("ServiceName = %q, want bridge-test", cfg.ServiceName)
	}

	attrs := cfg.ParseResourceAttributes()
	if len(attrs) != 2 {
		t.Fatalf("got %d attributes, want 2", len(attrs))
	}
	if string(attrs[0].Key) != "env" || attrs[0].Value.AsString() != "test" {
		t.Errorf("attrs[0] = %v", attrs[0])
	}
	if string(attrs[1].Key) != "team" || attrs[1].Value.AsString() != "display" {
		t.Errorf("attrs[1] = %v", attrs[1])
	}
}

func TestOTELConfig_MalformedAttributesSkipped(t *testing.T) {
	cfg := OTELConfig{ResourceAttributes: "ok=1,missing,=nokey,also=2"}
	attrs := cfg.ParseResourceAttributes()
	if len(attrs) != 2 {
		t.Fatalf("got %d attributes, want 2: %v", len(attrs), attrs)
	}
}
