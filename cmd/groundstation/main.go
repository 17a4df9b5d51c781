// Package main is the entry point of the CanSat ground station.
// It loads the configuration, builds the station and optional relay,
// and runs an operator console on stdin until interrupted.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"CanSatGS/internal/app"
	"CanSatGS/internal/core"
	"CanSatGS/internal/model"
	"CanSatGS/internal/util"
)

type options struct {
	config string
	port   string
	baud   int
	replay string
	relay  string
	open   bool
	debug  bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := pflag.NewFlagSet("groundstation", pflag.ContinueOnError)
	fs.StringVarP(&o.config, "config", "c", "", "path to YAML configuration file")
	fs.StringVar(&o.port, "port", "", "serial device (overrides config)")
	fs.IntVar(&o.baud, "baud", 0, "serial baud rate (overrides config)")
	fs.StringVar(&o.replay, "replay", "", "replay a telemetry log file instead of a serial port")
	fs.StringVar(&o.relay, "relay", "", "HTTP/websocket relay listen address, e.g. :8080")
	fs.BoolVar(&o.open, "open", false, "open the link at startup")
	fs.BoolVar(&o.debug, "debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.port != "" && o.replay != "" {
		return o, errors.New("--port and --replay are mutually exclusive")
	}
	return o, nil
}

// applyFlags layers command-line overrides on the loaded config.
func applyFlags(cfg *model.Config, o options) error {
	if o.port != "" {
		cfg.Link.Transport = model.TransportSerial
		cfg.Link.Serial.Device = o.port
	}
	if o.baud > 0 {
		cfg.Link.Serial.Baud = o.baud
	}
	if o.replay != "" {
		cfg.Link.Transport = model.TransportFile
		cfg.Link.File.Path = o.replay
	}
	if o.relay != "" {
		cfg.Relay.Addr = o.relay
	}
	if o.debug {
		cfg.Log.Debug = true
	}
	return cfg.Validate()
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "groundstation: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := model.LoadConfig(opts.config)
	if err != nil {
		return err
	}
	if err := applyFlags(cfg, opts); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logCloser := util.SetupLogger(util.LoggerOptions{
		File:       cfg.Log.AppFile,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Debug:      cfg.Log.Debug,
	})
	defer func() {
		if err := logCloser.Close(); err != nil {
			log.Printf("close app log: %v", err)
		}
	}()
	util.Info("[main] transport=%s config=%q", cfg.Link.Transport, opts.config)

	station, err := core.NewStation(cfg)
	if err != nil {
		return fmt.Errorf("create station: %w", err)
	}

	var relay *app.App
	if cfg.Relay.Addr != "" {
		relay, err = app.NewApp(station, cfg.Relay.DBPath)
		if err != nil {
			return err
		}
		if err := station.Subscribe(relay); err != nil {
			return err
		}
		if _, err := relay.Listen(cfg.Relay.Addr); err != nil {
			relay.Stop()
			return err
		}
	}

	con := newConsole(station, cfg.Commands, os.Stdout)
	if err := station.Subscribe(con); err != nil {
		return err
	}
	station.Start()
	if opts.open {
		if err := station.Open(); err != nil {
			util.Error("[main] open link: %v", err)
		}
	}

	quit := make(chan struct{})
	go func() {
		// stdin closing without :quit leaves the station running until a signal
		if con.run(os.Stdin) {
			close(quit)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case <-stop:
	case <-quit:
	}

	util.Info("[main] shutting down ground station...")
	station.Stop()
	relay.Stop()
	util.Info("[main] stopped cleanly")
	return nil
}
