// Command calcpool-server answers calculator requests with a fixed-size worker pool.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/fx"

	"github.com/jzx17/calcpool/internal/config"
	"github.com/jzx17/calcpool/internal/logger"
)

var version = "dev"

func main() {
	loader := config.NewServerLoader()

	cfg, err := loader.LoadServer(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log, level, closer := logger.New(cfg.Log)

	if file := loader.ConfigFileUsed(); file != "" {
		log.Info("Loaded configuration", "file", file)
	}

	app := fx.New(appOptions(cfg, loader, log, level))
	app.Run()

	_ = closer.Close()
}
