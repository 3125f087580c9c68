package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"trade_engine/internal/bootstrap"

	"golang.org/x/sync/errgroup"
)

var (
	configFile   = flag.String("config", "configs/config.yaml", "Path to configuration file")
	exchangeFlag = flag.String("exchange", "", "Exchange to trade against (overrides config)")
	verboseFlag  = flag.Bool("verbose", false, "Enable info logging regardless of config")
	debugFlag    = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	if envConfig := os.Getenv("CONFIG_FILE"); envConfig != "" {
		*configFile = envConfig
	}
	if envExchange := os.Getenv("EXCHANGE"); envExchange != "" {
		*exchangeFlag = envExchange
	}

	logLevel := ""
	if *verboseFlag {
		logLevel = "INFO"
	}
	if *debugFlag {
		logLevel = "DEBUG"
	}

	app, err := bootstrap.NewApp(*configFile, *exchangeFlag, logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Run(ctx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		app.Logger.Error("Application stopped with error", "error", err.Error())
		os.Exit(1)
	}
	app.Logger.Info("Application shut down gracefully")
}
