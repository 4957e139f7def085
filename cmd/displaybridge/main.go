// displaybridge runs the display event bridge against an in-process
// compositor: it registers a receiver, arms vsync requests each frame, and
// forwards the resulting events to a logging or span-exporting observer.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/mwehr/displaybridge/internal/compositor"
	"github.com/mwehr/displaybridge/internal/config"
	"github.com/mwehr/displaybridge/internal/display"
	"github.com/mwehr/displaybridge/internal/filter"
	"github.com/mwehr/displaybridge/internal/otel"
	"github.com/mwehr/displaybridge/internal/output"
	"github.com/mwehr/displaybridge/internal/receiver"
	"github.com/mwehr/displaybridge/internal/timesync"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// setupOTEL initializes the OTEL provider and returns a tracer plus cleanup.
func setupOTEL() (trace.Tracer, func(), error) {
	otelCfg, err := config.ParseOTELConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse OTEL config: %w", err)
	}

	tp, err := otel.InitProvider(otelCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize OTEL provider: %w", err)
	}

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otel.ShutdownProvider(shutdownCtx, tp); err != nil {
			log.Printf("Error shutting down OTEL provider: %v", err)
		}
	}
	return tp.Tracer("displaybridge"), cleanup, nil
}

// registrationFlags maps config switches to compositor registration flags.
func registrationFlags(cfg *config.Config) compositor.RegistrationFlags {
	var flags compositor.RegistrationFlags
	if cfg.ModeChanges {
		flags |= compositor.RegisterModeChanged
	}
	if cfg.FrameRateOverrides {
		flags |= compositor.RegisterFrameRateOverrides
	}
	return flags
}

func run() error {
	cfg, err := config.ParseArgs(os.Args)
	if err != nil {
		return err
	}

	converter, err := timesync.NewConverter()
	if err != nil {
		return fmt.Errorf("failed to create time converter: %w", err)
	}

	displays := make([]compositor.DisplayConfig, 0, len(cfg.Displays))
	for _, id := range cfg.Displays {
		displays = append(displays, compositor.DisplayConfig{
			ID:        display.DisplayID(id),
			PeriodNs:  cfg.VsyncPeriod.Nanoseconds(),
			ModeID:    1,
			Connected: true,
		})
	}
	svc := compositor.NewService(displays...)
	defer func() {
		if err := svc.Close(); err != nil {
			log.Printf("Error closing compositor service: %v", err)
		}
	}()

	opts := receiver.Options{
		Flags: registrationFlags(cfg),
		Scope: compositor.ScopeAllDisplays,
		OnHandlerError: func(err error) {
			log.Printf("observer failed: %v", err)
		},
	}
	if cfg.FilterExpr != "" {
		f, err := filter.Compile(cfg.FilterExpr)
		if err != nil {
			return err
		}
		opts.Filter = f
	}

	// The observer and buffer belong to this side of the bridge; the
	// receiver only holds weak handles to them.
	buffer := new(display.VsyncEventData)

	var recv *receiver.Receiver
	var cleanupOTEL func()
	if cfg.Spans {
		tracer, cleanup, err := setupOTEL()
		if err != nil {
			return err
		}
		cleanupOTEL = cleanup
		obs := output.NewSpanObserver(tracer, buffer, converter)
		defer runtime.KeepAlive(obs)
		recv = receiver.New(svc, obs, buffer, opts)
	} else {
		obs := output.NewLogObserver(buffer, converter)
		defer runtime.KeepAlive(obs)
		recv = receiver.New(svc, obs, buffer, opts)
	}
	defer runtime.KeepAlive(buffer)
	if cleanupOTEL != nil {
		defer cleanupOTEL()
	}

	if err := recv.Initialize(); err != nil {
		return err
	}
	defer recv.Dispose()

	// Announce the displays, then arm the first frame.
	now := compositor.Now()
	for _, d := range displays {
		svc.EmitHotplug(d.ID, now, true)
	}
	if err := recv.ScheduleVsync(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var deadline <-chan time.Time
	if cfg.Duration > 0 {
		deadline = time.After(cfg.Duration)
	}

	ticker := time.NewTicker(cfg.VsyncPeriod)
	defer ticker.Stop()

	frame := 0
loop:
	for {
		select {
		case <-sigCh:
			log.Println("Received signal, shutting down...")
			break loop
		case <-deadline:
			break loop
		case <-ticker.C:
			frame++
			now := compositor.Now()
			for _, d := range displays {
				svc.EmitVsync(d.ID, now)
			}
			simulateTraffic(svc, cfg, displays, frame, now)
			if err := recv.ScheduleVsync(); err != nil {
				return err
			}
		}
	}

	latest, err := recv.LatestVsyncEventData()
	if err != nil {
		log.Printf("latest vsync event data unavailable: %v", err)
	} else {
		log.Printf("latest vsync event data: vsyncId=%d interval=%dns",
			latest.PreferredTimeline().VsyncID, latest.FrameInterval)
	}

	// Give the channel time to drain before teardown.
	time.Sleep(2 * cfg.VsyncPeriod)
	return nil
}

// simulateTraffic sprinkles the optional event kinds over the vsync stream
// so opted-in registrations have something to deliver.
func simulateTraffic(svc *compositor.Service, cfg *config.Config, displays []compositor.DisplayConfig, frame int, now int64) {
	if cfg.ModeChanges && frame%600 == 0 {
		modeID := int32(frame/600%2 + 1)
		period := cfg.VsyncPeriod.Nanoseconds() * int64(modeID)
		svc.EmitModeChanged(displays[0].ID, now, modeID, period)
	}
	if cfg.FrameRateOverrides && frame%240 == 0 {
		svc.EmitFrameRateOverrides(displays[0].ID, now, []display.FrameRateOverride{
			{OwnerID: 1000, FrameRateHz: 60},
			{OwnerID: 1001, FrameRateHz: 30},
		})
	}
}
