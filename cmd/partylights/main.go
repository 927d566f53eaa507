// Package main is the entry point for the partylights controller: it
// loads configuration, builds the audio-to-DMX pipeline, and runs it
// on the scheduler until interrupted.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/partylights/partylights-go/internal/audio"
	"github.com/partylights/partylights-go/internal/audio/capture"
	"github.com/partylights/partylights-go/internal/broker"
	"github.com/partylights/partylights-go/internal/config"
	"github.com/partylights/partylights-go/internal/lightengine"
	"github.com/partylights/partylights-go/internal/mapper"
	"github.com/partylights/partylights-go/internal/metrics"
	"github.com/partylights/partylights-go/internal/modbusbridge"
	"github.com/partylights/partylights-go/internal/mqttbridge"
	"github.com/partylights/partylights-go/internal/opsapi"
	"github.com/partylights/partylights-go/internal/pipeline"
	"github.com/partylights/partylights-go/internal/scheduler"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configFile := pflag.StringP("config-file", "c", "./config/main.yaml", "Configuration file path.")
	logLevel := pflag.StringP("log-level", "l", "info", "Log level: debug, info, warn, error.")
	pflag.Parse()

	if sub := pflag.Arg(0); sub != "" && sub != "run" {
		fmt.Fprintf(os.Stderr, "unknown subcommand %q: the only subcommand is \"run\"\n", sub)
		os.Exit(1)
	}

	log := newLogger(*logLevel)

	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, using environment variables")
	}

	if err := run(log, *configFile); err != nil {
		log.Error("partylights exited with error", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func run(log *slog.Logger, configFile string) error {
	log.Info("starting partylights", "version", Version, "build", BuildTime, "commit", GitCommit)

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}
	defer func() { _ = portaudio.Terminate() }()

	devices, err := cfg.BuildDevices(log)
	if err != nil {
		return fmt.Errorf("build dmx devices: %w", err)
	}
	typeDefs, err := cfg.BuildTypeDefs()
	if err != nil {
		return fmt.Errorf("build light types: %w", err)
	}
	lights, err := cfg.BuildLights(typeDefs, log)
	if err != nil {
		return fmt.Errorf("build lights: %w", err)
	}
	mappings, err := cfg.BuildMappings()
	if err != nil {
		return fmt.Errorf("build mappings: %w", err)
	}
	if err := mapper.Compile(mappings); err != nil {
		return fmt.Errorf("compile mapper predicates: %w", err)
	}

	source, err := capture.NewPortAudioSource(float64(cfg.Capture.SampleRate), cfg.Capture.ChunkSize)
	if err != nil {
		return fmt.Errorf("open audio capture: %w", err)
	}

	fps := float64(cfg.Capture.FPS)
	chain := audio.Chain{
		audio.NewSmoothingProcessor(audio.SmoothingConfig{
			SampleRate:         float64(cfg.Capture.SampleRate),
			FPS:                fps,
			RollingHistory:     cfg.Processors.Smoothing.RollingHistory,
			FFTBins:            cfg.Processors.Smoothing.FFTBins,
			MinFrequency:       cfg.Processors.Smoothing.MinFrequency,
			MaxFrequency:       cfg.Processors.Smoothing.MaxFrequency,
			MinVolumeThreshold: cfg.Processors.Smoothing.MinVolumeThreshold,
		}),
		audio.NewBeatProcessor(audio.BeatConfig{SampleRate: float64(cfg.Capture.SampleRate), FPS: fps}),
		audio.NewPitchProcessor(audio.PitchConfig{SampleRate: float64(cfg.Capture.SampleRate)}),
		audio.NewIdleProcessor(audio.IdleConfig{Threshold: cfg.Processors.Idle.Threshold}),
	}

	engine := lightengine.New(lights, devices, log, time.Now)
	m := mapper.New(mappings, engine, log, time.Now().UnixNano())

	reg := metrics.NewRegistry(prometheus.DefaultRegisterer)
	ops := opsapi.New(log)

	frameInterval := time.Second / time.Duration(cfg.Capture.FPS)
	sched := scheduler.New(log, frameInterval, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registrations := []scheduler.Factory{
		func() scheduler.Task { return pipeline.NewCaptureTask(source, cfg.Capture.ChunkSize) },
		func() scheduler.Task { return pipeline.NewAnalysisTask(chain) },
		func() scheduler.Task { return pipeline.NewMapperTask(m) },
		func() scheduler.Task { return pipeline.NewLightEngineTask(engine) },
		func() scheduler.Task { return pipeline.NewMetricsTask(reg) },
		func() scheduler.Task { return pipeline.NewOpsAPITask(ops, fmt.Sprintf(":%d", opsPort(cfg)), log) },
	}

	if cfg.Network.Broker.Port != 0 {
		b := broker.New(broker.Config{
			Port:          cfg.Network.Broker.Port,
			DiscoveryPort: cfg.Network.Broker.DiscoveryPort,
			ServiceName:   cfg.Network.Broker.ServiceName,
		}, log)
		registrations = append(registrations, func() scheduler.Task { return pipeline.NewBrokerTask(b, log) })
	}

	if cfg.Network.MQTT != nil {
		mb := mqttbridge.New(mqttbridge.Config{
			Broker:      cfg.Network.MQTT.Broker,
			ClientID:    cfg.Network.MQTT.ClientID,
			TopicPrefix: cfg.Network.MQTT.TopicPrefix,
		}, log)
		registrations = append(registrations, func() scheduler.Task { return pipeline.NewMQTTBridgeTask(mb) })
	}

	if cfg.Network.Modbus != nil {
		mbr := modbusbridge.New(fmt.Sprintf(":%d", cfg.Network.Modbus.Port), log)
		registrations = append(registrations, func() scheduler.Task { return pipeline.NewModbusBridgeTask(mbr) })
	}

	for _, factory := range registrations {
		if err := sched.Register(ctx, factory); err != nil {
			return fmt.Errorf("register task: %w", err)
		}
	}

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- sched.Run(ctx) }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("shutting down partylights")
		cancel()
		sched.Shutdown()
		if err := <-runErrCh; err != nil {
			log.Error("teardown error", "error", err)
		}
	case err := <-runErrCh:
		cancel()
		return fmt.Errorf("scheduler stopped: %w", err)
	}

	log.Info("partylights stopped")
	return nil
}

func opsPort(cfg *config.Config) int {
	if cfg.Network.Ops.Port != 0 {
		return cfg.Network.Ops.Port
	}
	return 8090
}
