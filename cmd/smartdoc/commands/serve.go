package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/app"
	"github.com/xiechengmude/xDAN-smartDoc-dolphin/internal/config"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the SmartDoc HTTP API server",
	Long:  "Run the SmartDoc HTTP API server until interrupted.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "bind address (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if verbose {
		cfg.Observability.LogLevel = "debug"
	}

	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("initialize service: %w", err)
	}

	return a.Run(context.Background())
}
