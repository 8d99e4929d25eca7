// SmartDoc API server. Parses document images into structured output via a
// vision model backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/app"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	a, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup: %v\n", err)
		os.Exit(1)
	}

	if err := a.Run(context.Background()); err != nil {
		a.Logger().Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
}
