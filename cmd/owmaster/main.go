// Command owmaster supervises 1-Wire style bus channels over GPIO,
// classifies their values into logical states and dispatches configured
// actions on state transitions.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/owmaster/internal/action"
	"github.com/sweeney/owmaster/internal/classify"
	"github.com/sweeney/owmaster/internal/config"
	"github.com/sweeney/owmaster/internal/engine"
	"github.com/sweeney/owmaster/internal/gpio"
	"github.com/sweeney/owmaster/internal/metrics"
	"github.com/sweeney/owmaster/internal/mqtt"
	"github.com/sweeney/owmaster/internal/rules"
	"github.com/sweeney/owmaster/internal/track"
	"github.com/sweeney/owmaster/internal/web"
)

func main() {
	configPath := flag.String("config", "/etc/owmaster.yaml", "Configuration file")
	checkOnly := flag.Bool("check-config", false, "Validate the configuration and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	res, err := cfg.Build()
	if err != nil {
		fatal(fmt.Errorf("invalid configuration: %w", err))
	}
	if *checkOnly {
		fmt.Printf("%s: %d devices, %d channels, %d rules\n",
			*configPath, len(res.Inventory.Devices()), len(res.Inventory.Channels()), res.Table.Len())
		return
	}

	level, err := config.ParseLevel(cfg.OwMaster.LogLevel)
	if err != nil {
		fatal(err)
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	if err := run(cfg, res, log); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
	os.Exit(1)
}

func run(cfg *config.File, res *config.Result, log *slog.Logger) error {
	// Input lines
	inputPins := make([]int, len(res.Lines))
	for i, l := range res.Lines {
		inputPins[i] = l.Pin
	}
	inputs, err := gpio.NewRealLines(cfg.OwMaster.GPIOChip, inputPins)
	if err != nil {
		return fmt.Errorf("init gpio inputs: %w", err)
	}
	defer inputs.Close()

	// Output lines
	outputPins := make([]int, len(res.Outputs))
	for i, l := range res.Outputs {
		outputPins[i] = l.Pin
	}
	outputs, err := gpio.NewRealOutputs(cfg.OwMaster.GPIOChip, outputPins)
	if err != nil {
		return fmt.Errorf("init gpio outputs: %w", err)
	}
	defer outputs.Close()

	// Full scans also read driven output lines back, so written states
	// are observed and reclassified on the next cycle.
	scanLines := append(append([]gpio.Line{}, res.Lines...), res.Outputs...)
	readers := append(inputs.Readers(), outputs.Readers()...)
	src, err := gpio.NewSource(scanLines, readers, time.Now)
	if err != nil {
		return fmt.Errorf("init sample source: %w", err)
	}

	outs := make([]gpio.Output, len(res.Outputs))
	for i, setter := range outputs.Setters() {
		ch := res.Inventory.Channel(res.Outputs[i].Device, res.Outputs[i].Channel)
		outs[i] = gpio.Output{Channel: ch, Setter: setter}
	}
	bus, err := gpio.NewOutputBus(outs)
	if err != nil {
		return fmt.Errorf("init output bus: %w", err)
	}

	// Fan-out sinks
	recorder := metrics.New(prometheus.DefaultRegisterer)
	sinks := []engine.Sink{recorder}
	if cfg.MQTT.Broker != "" {
		publisher, err := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer publisher.Close()
		sinks = append(sinks, mqtt.NewSink(publisher, log))
		log.Info("mqtt connected", "broker", cfg.MQTT.Broker)
	}

	eng := engine.New(engine.Config{
		Inventory:  res.Inventory,
		Classifier: classify.New(cfg.OwMaster.SettleWindow.Std()),
		Tracker:    track.New(log),
		Evaluator:  rules.NewEvaluator(res.Table),
		Dispatcher: action.NewDispatcher(bus, action.NewExecRunner(log), log),
		Sinks:      sinks,
		Monitor:    recorder,
		Log:        log,
	})

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, eng, prometheus.DefaultGatherer)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("http server error", "err", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Info("http server listening", "addr", cfg.HTTP.Addr)
	}

	log.Info("started",
		"devices", len(res.Inventory.Devices()),
		"rules", res.Table.Len(),
		"scan_interval", cfg.OwMaster.ScanInterval.Std(),
		"alarm_scan_interval", cfg.OwMaster.AlarmScanInterval.Std())

	fullTicker := time.NewTicker(cfg.OwMaster.ScanInterval.Std())
	defer fullTicker.Stop()
	alarmTicker := time.NewTicker(cfg.OwMaster.AlarmScanInterval.Std())
	defer alarmTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return eng.Run(src, fullTicker.C, alarmTicker.C, sigCh, time.Now)
}
