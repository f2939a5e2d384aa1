// Command rtrtr is the relay's entrypoint: load a config file, build its
// unit/target graph, and serve until terminated. The command surface and
// signal-driven graceful shutdown are grounded in the teacher's serve
// command, generalized from a fixed single-pipe machine to the
// config-driven unit/target graph this relay builds.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/go-rtrtr/rtrtr/config"
	"github.com/go-rtrtr/rtrtr/metrics"
	"github.com/go-rtrtr/rtrtr/telemetry"
)

var (
	configPath  string
	listenAddr  string
	logLevel    string
	gracePeriod time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "rtrtr",
	Short: "rtrtr relays RPKI validated payloads between RTR/JSON sources and RTR/HTTP targets",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "config file path (required)")
	rootCmd.Flags().StringVar(&listenAddr, "http", ":8080", "address the /metrics and /status HTTP endpoints listen on")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	rootCmd.Flags().DurationVar(&gracePeriod, "grace-period", 10*time.Second, "time allowed for units and targets to stop on shutdown")
	rootCmd.MarkFlagRequired("config")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("rtrtr: %w", err)
	}
	logrus.SetLevel(level)

	telemetry.Configure()

	doc, err := config.Parse(configPath)
	if err != nil {
		return fmt.Errorf("rtrtr: %w", err)
	}

	manager, err := config.Build(configPath, doc)
	if err != nil {
		return fmt.Errorf("rtrtr: %w", err)
	}

	app := fiber.New()
	app.Use(recover.New())

	collection := metrics.NewCollection()
	metrics.Register(app, collection)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- manager.Run(ctx, app, collection) }()

	httpErrCh := make(chan error, 1)
	go func() { httpErrCh <- app.Listen(listenAddr) }()

	var runErr error
	select {
	case runErr = <-errCh:
		// A unit or target terminated on its own; this is the "fatal,
		// unrecoverable failure" case of spec §6 unless it was ctx that
		// triggered it, which the ctx.Done case below also covers.
		shutdownHTTP(app)
	case err := <-httpErrCh:
		return fmt.Errorf("rtrtr: http listener: %w", err)
	case <-ctx.Done():
		logrus.Info("shutting down")
		shutdownHTTP(app)
		select {
		case runErr = <-errCh:
		case <-time.After(gracePeriod):
			return fmt.Errorf("rtrtr: units/targets did not stop within grace period")
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func shutdownHTTP(app *fiber.App) {
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		logrus.WithError(err).Warn("http shutdown")
	}
}
