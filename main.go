package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"

	"sensornode-go/bus"
	"sensornode-go/services/bridge"
	"sensornode-go/services/config"
	"sensornode-go/services/console"
	"sensornode-go/services/display"
	"sensornode-go/services/httpapi"
	"sensornode-go/services/metrics"
	"sensornode-go/services/node"
	"sensornode-go/services/sensors"
	"sensornode-go/services/store"
	"sensornode-go/services/weather"
	"sensornode-go/types"
	"sensornode-go/version"
	"sensornode-go/x/i2cdev"
	"sensornode-go/x/logring"
)

const adcPath = "/sys/bus/iio/devices/iio:device0/in_voltage%d_raw"

func main() {
	var (
		path        = flag.String("config", config.DefaultPath, "boot file")
		device      = flag.String("device", "", "embedded profile to start from (host, pi)")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()
	if *showVersion {
		fmt.Println(version.Version, version.Build)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	boot := slog.New(slog.NewTextHandler(os.Stderr, nil))
	cfg, err := config.Load(*path, *device, boot)
	if err != nil {
		boot.Error("boot config unusable", "file", *path, "err", err)
		os.Exit(1)
	}

	// Logging: text to stderr (and the serial console), every record also
	// kept in the ring served on /logs.
	var out io.Writer = os.Stderr
	if cfg.Console.Port != "" {
		con, err := console.Open(cfg.Console.Port, cfg.Console.Baud)
		if err != nil {
			boot.Warn("serial console unavailable", "port", cfg.Console.Port, "available", console.Ports(), "err", err)
		} else {
			defer con.Close()
			out = io.MultiWriter(os.Stderr, con)
		}
	}
	level := cfg.Log.SlogLevel()
	ring := logring.New(types.LogCapacity, types.LogMessageMaxLen, nil)
	log := slog.New(node.NewRingHandler(ring, level,
		slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}),
	))
	slog.SetDefault(log)
	log.Info("boot", "version", version.Version, "build", version.Build)

	m := metrics.New()
	b := bus.NewBus(32)

	buses := &i2cdev.Buses{}
	defer buses.Close()
	src := sensors.NewBus(log.With("component", "sensors"))
	built := src.Build(cfg.Sensors, sensors.Env{
		I2C: buses.Get,
		ADC: func(ch int) (sensors.ADC, error) {
			return sensors.SysfsADC{Path: fmt.Sprintf(adcPath, ch)}, nil
		},
	})
	log.Info("sensor drivers built", "configured", len(cfg.Sensors), "built", built)

	var disp display.Renderer
	if cfg.Display.Terminal {
		disp = display.Terminal{W: os.Stdout, Width: cfg.Display.Width}
	}
	var wx node.Weather
	if cfg.Weather.Enabled {
		wx = &weather.Client{
			BaseURL: cfg.Weather.URL,
			CityID:  cfg.Weather.CityID,
			APIKey:  cfg.Weather.APIKey,
			HTTP:    &http.Client{Timeout: weather.DefaultTimeout},
		}
	}

	n := node.New(node.Options{
		Config:   cfg.NodeDefaults(),
		Store:    store.New(store.Dir{Path: cfg.Node.DataDir}, cfg.Node.ConfigFile, log.With("component", "store")),
		PageFile: filepath.Base(cfg.Node.Page),
		Sensors:  src,
		Conn:     b.NewConnection("node"),
		Display:  disp,
		Weather:  wx,
		Ring:     ring,
		Metrics:  m,
		Log:      log.With("component", "node"),
	})
	n.Boot()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return httpapi.New(n, m.Registry(), log.With("component", "http")).ListenAndServe(gctx, cfg.HTTP.Addr)
	})
	if cfg.MQTT.Broker != "" {
		mq := bridge.NewMQTT(bridge.MQTTConfig{
			Broker:    cfg.MQTT.Broker,
			ClientID:  cfg.MQTT.ClientID,
			Username:  cfg.MQTT.Username,
			Password:  cfg.MQTT.Password,
			QoS:       cfg.MQTT.QoS,
			RootTopic: n.Config().RootTopic,
		})
		g.Go(func() error {
			bridge.Start(gctx, b.NewConnection("bridge"), bridge.Options{
				Dialer:  mq,
				Log:     log.With("component", "bridge"),
				Metrics: m,
			})
			return nil
		})
		g.Go(func() error {
			watchBridge(gctx, b.NewConnection("monitor"), log)
			return nil
		})
	} else {
		log.Info("no broker configured, readings stay local")
	}

	if err := g.Wait(); err != nil {
		log.Error("stopped", "err", err)
		os.Exit(1)
	}
	log.Info("stopped")
}

// watchBridge logs broker link transitions.
func watchBridge(ctx context.Context, conn *bus.Connection, log *slog.Logger) {
	sub := conn.Subscribe(bridge.StateTopic)
	defer conn.Unsubscribe(sub)
	last := ""
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			p, _ := msg.Payload.(map[string]any)
			level, _ := p["level"].(string)
			if level == last {
				continue
			}
			last = level
			status, _ := p["status"].(string)
			log.Info("broker link", "level", level, "status", status)
		}
	}
}
