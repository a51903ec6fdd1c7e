package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"

	"techcal/internal/calendar"
	"techcal/internal/config"
	appLog "techcal/internal/log"
	"techcal/internal/refresh"
	"techcal/internal/source"
	"techcal/internal/web"
)

const appVersion = "0.1.0"

func main() {
	app := cli.NewApp()
	app.Name = "techcal"
	app.Usage = "Yearly calendar of community tech events"
	app.Version = appVersion
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Value: "./config.yaml",
			Usage: "Path to config file (created with defaults if missing)",
		},
		cli.IntFlag{
			Name:  "year",
			Usage: "Calendar year to expand (overrides config)",
		},
		cli.StringSliceFlag{
			Name:  "source",
			Usage: "Candidate events.json path or URL, tried in order (overrides config)",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "Output debug messages",
		},
	}
	app.Commands = []cli.Command{
		serveCmd,
		monthCmd,
		calendarCmd,
		sponsorsCmd,
		exportCmd,
	}
	app.Action = serve

	if err := app.Run(os.Args); err != nil {
		appLog.Error("techcal failed", err)
		os.Exit(1)
	}
}

var serveCmd = cli.Command{
	Name:  "serve",
	Usage: "Load the calendar, refresh it on schedule and serve the HTTP API",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "listen",
			Usage: "HTTP listen address (overrides config)",
		},
	},
	Action: serve,
}

// loadConfig reads the config file and applies global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.GlobalString("config")
	cfg, err := config.Load(path)
	if err != nil {
		if cfg == nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		appLog.Error("could not write default config; continuing with defaults", err, "config_path", path)
	}

	if y := c.GlobalInt("year"); y > 0 {
		cfg.Year = y
	}
	if srcs := c.GlobalStringSlice("source"); len(srcs) > 0 {
		cfg.Sources = srcs
	}
	if c.GlobalBool("debug") {
		cfg.LogLevel = "debug"
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

func serve(c *cli.Context) error {
	appLog.Info("techcal starting", "version", appVersion)

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if l := c.String("listen"); l != "" {
		cfg.Listen = l
	}

	appLog.Info("effective config",
		"listen", cfg.Listen,
		"year", cfg.Year,
		"sources", len(cfg.Sources),
		"refresh", cfg.RefreshCron,
		"cache_dir", cfg.CacheDir,
		"log_level", cfg.LogLevel,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	svc := calendar.NewService(cfg.Year)
	refresher := refresh.New(source.NewLoader(cfg.Sources, cfg.CacheDir), svc, cfg.RefreshCron)

	// A failed initial load still serves (empty) views and the error status.
	if err := refresher.RefreshOnce(ctx); err != nil {
		appLog.Error("initial load failed; serving empty calendar", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return web.NewServer(cfg, svc, refresher).Serve(gctx)
	})
	if cfg.RefreshEnabled() {
		g.Go(func() error {
			return refresher.Run(gctx)
		})
	}

	err = g.Wait()
	appLog.Info("techcal exiting")
	return err
}
