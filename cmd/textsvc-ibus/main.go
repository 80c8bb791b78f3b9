// textsvc-ibus runs the text service as an IBus input method engine.
//
// ibus-daemon starts it through the component file written by
// "textsvc ibus install". Log level changes in the config file apply
// without a restart.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"textservice/internal/config"
	"textservice/internal/ime"
	"textservice/internal/logging"
	"textservice/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	_ = flag.Bool("ibus", false, "started by ibus-daemon")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "textsvc-ibus: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	if configPath == "" {
		configPath = config.ConfigPath()
	}
	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	lc, err := logging.FromSettings(cfg.Logging)
	if err != nil {
		return err
	}
	lc.Component = "textsvc-ibus"
	logger, err := logging.New(lc)
	if err != nil {
		return err
	}
	defer logger.Close()
	logging.SetDefault(logger)

	if err := loader.Watch(); err != nil {
		logger.Warn("config watch unavailable", "error", err)
	} else {
		defer loader.Close()
		loader.OnChange(func(c *config.Config) {
			level, err := logging.ParseLevel(c.Logging.Level)
			if err != nil || level == logger.GetLevel() {
				return
			}
			logger.SetLevel(level)
			logger.Info("log level changed", "level", logging.LevelString(level))
		})
		go func() {
			for err := range loader.Errors() {
				logger.Warn("config reload", "error", err)
			}
		}()
	}

	toggle, err := cfg.Keys.ToggleKey()
	if err != nil {
		return err
	}
	opts := ime.EngineOptions{Logger: logger, ToggleKey: toggle}

	backend, err := store.OpenBackend(cfg.Styles.Backend, cfg.Styles.Path)
	if err != nil {
		logger.Warn("style overrides unavailable", "error", err)
	} else {
		defer backend.Close()
		opts.Styles = backend
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := ime.NewServer(cfg.IBus, opts)
	if err := server.Run(ctx); err != nil {
		return err
	}
	logger.Info("shut down")
	return nil
}
