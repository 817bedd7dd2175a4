// Command calcpool-client sends the calculations in $INPUT_FILEPATH to a
// calcpool server and writes each request and response to $OUTPUT_FILEPATH.
//
// Usage:
//
//	INPUT_FILEPATH=in.txt OUTPUT_FILEPATH=out.txt calcpool-client 127.0.0.1:7878
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/jzx17/calcpool/internal/client"
	"github.com/jzx17/calcpool/internal/config"
	"github.com/jzx17/calcpool/internal/logger"
)

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}

		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stderr io.Writer) error {
	cfg, err := config.NewClientLoader().LoadClient(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return err
		}

		return fmt.Errorf("failed to initialize client config: %w", err)
	}

	// logs go to stderr unless a file is set
	log := logger.NewWithWriter(stderr, cfg.Log.JSON, cfg.Log.SlogLevel())
	if cfg.Log.File != "" {
		var closer io.Closer

		log, _, closer = logger.New(cfg.Log)
		defer closer.Close()
	}

	c, err := client.New(*cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := c.Calculate(ctx)
	if err != nil {
		return err
	}

	log.Info("Calculation finished",
		slog.Int("requests", summary.Requests),
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed),
		slog.String("output", cfg.OutputPath))

	return nil
}
