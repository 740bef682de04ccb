// showcase builds a product visualization scene from a TOML description:
// model, materials, textures, environment and engraved text. The scene is
// exported to mst or glb, or served to preview clients over WebSocket.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	showcase "github.com/flywave/go-showcase"
)

var (
	configPath string
	assetDir   string
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:   "showcase",
		Short: "Product visualization scene builder",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "scene config file (TOML); defaults to the built-in scene")
	root.PersistentFlags().StringVarP(&assetDir, "assets", "a", ".", "directory plain asset paths are resolved against")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(renderCmd(), serveCmd(), infoCmd(), configCmd(), fontsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("showcase failed", "error", err)
		os.Exit(1)
	}
}

func loadConfig() (showcase.Config, error) {
	if configPath == "" {
		return showcase.Default(), nil
	}
	return showcase.Load(configPath)
}
