package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/roman-kulish/marine-echogram/cmd/pingsim/app"
)

func main() {
	var configPath string
	var stdout bool
	flag.StringVar(&configPath, "c", "", "Path to the configuration file")
	flag.BoolVar(&stdout, "stdout", false, "Write pings to stdout as JSON lines instead of a database")
	flag.Parse()

	// stdout carries pings in stream mode
	logOut := os.Stdout
	if stdout {
		logOut = os.Stderr
	}

	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: &logLevel}))

	config := app.NewConfig()
	if configPath != "" {
		var err error
		if config, err = app.LoadConfig(configPath); err != nil {
			logger.Error(fmt.Sprintf("failed to load configuration file: %s", err.Error()), slog.String("path", configPath))
			os.Exit(1)
		}
	}

	level, _ := config.Settings.Level()
	logLevel.Set(level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	if stdout {
		err = app.Stream(ctx, config, os.Stdout, logger)
	} else {
		_, _, err = app.Run(ctx, config, logger)
	}
	if err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
