package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/remote-agent-terminal/engine-relay/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		port       string
		binary     string
		dedupePeek bool
	)

	root := &cobra.Command{
		Use:          "engine-relay",
		Short:        "Supervise a speech engine and relay its output to live viewers",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("engine") {
				cfg.Engine.Binary = binary
			}
			if cmd.Flags().Changed("dedupe-peek") {
				cfg.Relay.DedupePeek = dedupePeek
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	root.Flags().StringVar(&configPath, "config", os.Getenv("RELAY_CONFIG"), "Path to a YAML config file")
	root.Flags().StringVar(&port, "port", "", "HTTP listen port (overrides config and PORT)")
	root.Flags().StringVar(&binary, "engine", "", "Engine binary path (overrides config and ENGINE_BIN)")
	root.Flags().BoolVar(&dedupePeek, "dedupe-peek", false, "Suppress repeated loading-progress lines")

	return root
}
