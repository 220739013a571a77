package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rubiojr/movieei/pkg/api"
	"github.com/rubiojr/movieei/pkg/config"
	"github.com/rubiojr/movieei/pkg/log"
	"github.com/urfave/cli/v3"
)

// ServeCommand creates the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the search proxy and live search server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "port",
				Usage: "Port to listen on (overrides the listen setting)",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to bind to (overrides the listen setting)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx, c.String("config"), c.String("host"), c.String("port"))
		},
	}
}

// listenAddr merges host and port flags into the configured listen address.
func listenAddr(listen, host, port string) string {
	h, p, err := net.SplitHostPort(listen)
	if err != nil {
		h, p = "localhost", "8080"
	}
	if host != "" {
		h = host
	}
	if port != "" {
		p = port
	}
	return net.JoinHostPort(h, p)
}

func serve(ctx context.Context, configPath, host, port string) error {
	l := log.ForService("server")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	apiServer := api.NewServer(serverOptions(cfg))
	if cfg.Upstream.APIKey == "" {
		l.Warnf("No upstream API key configured; set OMDB_API_KEY or [upstream] api_key")
	}

	addr := listenAddr(cfg.Listen, host, port)
	server := &http.Server{
		Addr:              addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		l.Infof("Starting server on http://%s", addr)
		l.Infof("Available endpoints:")
		l.Infof("  GET  /api/movies?s=&page=&type= - Search proxy")
		l.Infof("  GET  /api/search/ws - Live search (WebSocket)")
		l.Infof("  POST /api/auth/login - Demo login")
		l.Infof("  GET  /health - Health check")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	reload := func(reason string) {
		newCfg, err := config.LoadConfig(configPath)
		if err != nil {
			l.Errorf("Failed to reload configuration (%s): %v", reason, err)
			return
		}
		apiServer.SetUpstream(newUpstream(newCfg))
		l.Infof("Upstream configuration reloaded (%s)", reason)
	}

	var events <-chan fsnotify.Event
	var watchErrors <-chan error
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		l.Warnf("Failed to create config file watcher: %v", err)
	} else {
		defer func() {
			if err := watcher.Close(); err != nil {
				l.Warnf("Failed to close config file watcher: %v", err)
			}
		}()

		if err := watcher.Add(configPath); err != nil {
			l.Warnf("Failed to watch config file %s: %v", configPath, err)
		} else {
			l.Infof("Watching config file for changes: %s", configPath)
			events = watcher.Events
			watchErrors = watcher.Errors
		}
	}

	for {
		select {
		case <-ctx.Done():
			return shutdown(server)
		case err := <-serverErr:
			return fmt.Errorf("server failed: %w", err)
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				reload("SIGHUP")
				continue
			}
			l.Infof("Shutting down server...")
			return shutdown(server)
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove)) {
				continue
			}

			// Editors often replace the file atomically, which drops the watch.
			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				time.Sleep(200 * time.Millisecond)
				if _, err := os.Stat(configPath); os.IsNotExist(err) {
					l.Warnf("Config file was removed and not replaced, skipping reload")
					continue
				}
				if err := watcher.Add(configPath); err != nil {
					l.Warnf("Failed to re-add config file to watcher: %v", err)
				}
			} else {
				time.Sleep(100 * time.Millisecond)
			}
			reload("file change")
		case err, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}
			l.Warnf("Config file watcher error: %v", err)
		}
	}
}

func shutdown(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
