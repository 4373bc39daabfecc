package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/smartcam/cmd"
	"github.com/smazurov/smartcam/internal/api"
	"github.com/smazurov/smartcam/internal/config"
	"github.com/smazurov/smartcam/internal/device"
	"github.com/smazurov/smartcam/internal/endpoint"
	"github.com/smazurov/smartcam/internal/events"
	"github.com/smazurov/smartcam/internal/logging"
	"github.com/smazurov/smartcam/internal/metrics"
	"github.com/smazurov/smartcam/internal/metrics/collectors"
	"github.com/smazurov/smartcam/internal/metrics/exporters"
	"github.com/smazurov/smartcam/internal/rtpout"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Device settings
	DeviceName             string `help:"Endpoint name (videoN, or auto for the lowest free)" default:"video0" toml:"device.name" env:"DEVICE_NAME"`
	DeviceReadTimeoutMs    int    `help:"Bounded wait of a blocking read, in milliseconds" default:"100" toml:"device.read_timeout_ms" env:"DEVICE_READ_TIMEOUT_MS"`
	DeviceDequeueTimeoutMs int    `help:"Bounded wait of a blocking dequeue, in milliseconds" default:"1000" toml:"device.dequeue_timeout_ms" env:"DEVICE_DEQUEUE_TIMEOUT_MS"`
	DeviceCursorMode       string `help:"Delivery cursor: shared or session" default:"shared" toml:"device.cursor_mode" env:"DEVICE_CURSOR_MODE"`

	// RTP egress settings
	RTPEnabled     bool   `help:"Send the held frame as RTP raw video" default:"false" toml:"rtp.enabled" env:"RTP_ENABLED"`
	RTPDestination string `help:"RTP destination host:port; RTCP goes to port+1" default:"127.0.0.1:5004" toml:"rtp.destination" env:"RTP_DESTINATION"`
	RTPPayloadType int    `help:"RTP payload type" default:"96" toml:"rtp.payload_type" env:"RTP_PAYLOAD_TYPE"`
	RTPMtu         int    `help:"Maximum RTP packet size in bytes" default:"1400" toml:"rtp.mtu" env:"RTP_MTU"`

	// Observability settings
	ObsPrometheusEnabled bool `help:"Enable Prometheus" default:"true" toml:"obs.prometheus_enabled" env:"OBS_PROMETHEUS_ENABLED"`

	// Logging settings
	LoggingLevel  string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingDevice string `help:"Device logging level" default:"info" toml:"logging.device" env:"LOGGING_DEVICE"`
	LoggingAPI    string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingRTP    string `help:"RTP logging level" default:"info" toml:"logging.rtp" env:"LOGGING_RTP"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"device": opts.LoggingDevice,
				"api":    opts.LoggingAPI,
				"http":   opts.LoggingAPI,
				"rtp":    opts.LoggingRTP,
			},
		})
		logger := logging.GetLogger("main")

		eventBus := events.New()
		registry := endpoint.NewRegistry(endpoint.DefaultMaxMinors, logging.GetLogger("endpoint"))

		dev, err := device.New(device.Config{
			Name:           opts.DeviceName,
			ReadTimeout:    time.Duration(opts.DeviceReadTimeoutMs) * time.Millisecond,
			DequeueTimeout: time.Duration(opts.DeviceDequeueTimeoutMs) * time.Millisecond,
			CursorMode:     device.CursorMode(opts.DeviceCursorMode),
			Registrar:      registry,
			EventBus:       eventBus,
			Logger:         logging.GetLogger("device"),
		})
		if err != nil {
			logger.Error("Failed to start capture endpoint", "error", err)
			os.Exit(1)
		}

		collector := collectors.NewEventCollector(eventBus, device.CatalogFourCCs(), logging.GetLogger("metrics"))
		statsExporter := exporters.NewSSEExporter(eventBus)

		apiOpts := &api.Options{
			AuthUsername: opts.AuthUsername,
			AuthPassword: opts.AuthPassword,
			Device:       dev,
			EventBus:     eventBus,
		}
		if opts.ObsPrometheusEnabled {
			apiOpts.PrometheusHandler = exporters.HTTPHandler()
		}
		server := api.NewServer(apiOpts)

		var sender *rtpout.Sender
		if opts.RTPEnabled {
			sender, err = rtpout.NewSender(dev, rtpout.Options{
				Destination: opts.RTPDestination,
				PayloadType: uint8(opts.RTPPayloadType),
				MTU:         opts.RTPMtu,
				Logger:      logging.GetLogger("rtp"),
			})
			if err != nil {
				logger.Error("Failed to set up RTP egress", "error", err)
				os.Exit(1)
			}
		}

		ctx, cancel := context.WithCancel(context.Background())
		var watcher *config.Watcher[logging.Config]

		hooks.OnStart(func() {
			var format device.Format
			_ = dev.GetFormat(&format)
			collector.Start()
			metrics.SetActiveFormat(dev.Name(), format.Pix.FourCC(), device.CatalogFourCCs())
			statsExporter.Start(ctx)

			if w, watchErr := config.WatchLogging(opts.Config, logging.GetLogger("config")); watchErr != nil {
				logger.Warn("Failed to watch config, live log levels disabled", "error", watchErr)
			} else {
				watcher = w
			}

			if sender != nil {
				go func() {
					if runErr := sender.Run(ctx); runErr != nil {
						logger.Error("RTP egress failed", "error", runErr)
					}
				}()
			}

			if _, notifyErr := daemon.SdNotify(false, daemon.SdNotifyReady); notifyErr != nil {
				logger.Debug("sd_notify failed", "error", notifyErr)
			}

			logger.Info("Starting HTTP server", "port", opts.Port, "device", dev.Name())
			if startErr := server.Start(opts.Port); startErr != nil {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

			// Closing the device first releases blocked readers so the
			// HTTP shutdown does not wait out their bounds.
			if closeErr := dev.Close(); closeErr != nil {
				logger.Error("Error closing capture endpoint", "error", closeErr)
			}

			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer stopCancel()
			if stopErr := server.Stop(stopCtx); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			cancel()
			statsExporter.Stop()
			collector.Stop()
			if watcher != nil {
				_ = watcher.Stop()
			}
			metrics.DeleteDeviceMetrics(dev.Name())
		})
	})

	cli.Root().Use = "smartcam"
	cli.Root().Short = "Emulated video capture endpoint"

	cli.Root().AddCommand(cmd.CreatePatternCmd())
	cli.Root().AddCommand(cmd.CreateProbeCmd())

	cli.Run()
}
