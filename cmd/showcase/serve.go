package main

import (
	"context"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	showcase "github.com/flywave/go-showcase"
	"github.com/flywave/go-showcase/preview"
)

func serveCmd() *cobra.Command {
	var (
		addr string
		fps  int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scene to preview clients and accept engraving edits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			hub := preview.NewHub(slog.Default())
			defer hub.Close()

			sc, err := showcase.New(cfg, showcase.NewRouter(assetDir),
				showcase.WithProgressListener(func(p showcase.Progress) {
					data := map[string]interface{}{
						"url": p.URL, "loaded": p.Loaded, "total": p.Total, "fraction": p.Fraction(),
					}
					if p.Err != nil {
						data["error"] = p.Err.Error()
					}
					hub.Broadcast(preview.Event{Type: preview.EventProgress, Data: data})
				}),
				showcase.WithReadyListener(func() {
					hub.Broadcast(preview.Event{Type: preview.EventReady})
				}),
			)
			if err != nil {
				return err
			}
			preview.Attach(hub, sc)

			go func() {
				if err := sc.Load(ctx); err != nil {
					slog.Warn("scene loaded with errors", "error", err)
					hub.Broadcast(preview.Event{Type: preview.EventError, Data: err.Error()})
				}
			}()
			go sc.RenderLoop(&preview.HubRenderer{Hub: hub}, fps).Run(ctx)
			if configPath != "" {
				go watchConfig(ctx, configPath, sc, hub)
			}

			srv := &http.Server{Addr: addr, Handler: preview.Handler(hub, sc)}
			go func() {
				<-ctx.Done()
				shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdown)
			}()
			slog.Info("serving preview", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().IntVar(&fps, "fps", 30, "frame events per second at most")
	return cmd
}

// watchConfig re-applies the materials of the config file whenever it is
// written. The directory is watched since editors often replace the file.
func watchConfig(ctx context.Context, path string, sc *showcase.Showcase, hub *preview.Hub) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("error creating config watcher", "error", err)
		return
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		slog.Error("error watching config", "path", path, "error", err)
		return
	}
	name := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != name || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			cfg, err := showcase.Load(path)
			if err == nil {
				err = sc.ApplyMaterials(ctx, cfg)
			}
			if err != nil {
				slog.Error("config reload failed", "path", path, "error", err)
				hub.Broadcast(preview.Event{Type: preview.EventError, Data: err.Error()})
				continue
			}
			slog.Info("config reloaded", "path", path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Error("config watcher error", "error", err)
		}
	}
}
