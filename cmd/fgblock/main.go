package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/namsral/flag"
	"github.com/scraperwall/fgblock"
	"github.com/scraperwall/fgblock/config"
	log "github.com/sirupsen/logrus"
)

func main() {
	var (
		configFile string
		once       bool
		debug      bool
		logLevel   string
		apiAddress string
	)

	flag.StringVar(&configFile, "config", "fgblock.toml", "the TOML configuration file")
	flag.BoolVar(&once, "once", false, "run once and exit")
	flag.BoolVar(&debug, "debug", false, "process the lists without pushing the results")
	flag.StringVar(&logLevel, "loglevel", "", "the log level, overrides log_level from the config file")
	flag.StringVar(&apiAddress, "api-address", "", "serve the HTTP API on this address, overrides api_address")

	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatal(err)
	}

	if debug {
		cfg.Debug = true
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if apiAddress != "" {
		cfg.APIAddress = apiAddress
	}

	setupLogging(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fg, err := fgblock.New(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}

	if once {
		report := fg.Run("once")
		cancel()
		if !report.Skipped && !report.Success() {
			os.Exit(1)
		}
		return
	}

	go fg.Schedule()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Println("exiting...")
	cancel()
}

func setupLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("invalid log level %q: %s", cfg.LogLevel, err)
	}
	if cfg.Debug && level < log.DebugLevel {
		level = log.DebugLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if cfg.LogFile == "" {
		return
	}

	fh, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Fatal(err)
	}
	log.SetOutput(io.MultiWriter(os.Stdout, fh))
}
