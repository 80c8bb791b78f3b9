// textsvc is the command line utility for the text service: it replays
// keystroke scripts, edits display attribute styles and installs the IBus
// component.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"textservice/internal/config"
	"textservice/internal/logging"
)

var (
	configPath = flag.String("config", "", "path to config file")
	logLevel   = flag.String("log-level", "", "override the configured log level")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]

	var err error
	switch cmd {
	case "replay":
		err = cmdReplay(args)
	case "styles":
		err = cmdStyles(args)
	case "config":
		err = cmdConfig(args)
	case "ibus":
		err = cmdIBus(args)
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `textsvc - text service utility

Usage: textsvc [options] <command> [args]

Commands:
  replay [-v] <script>...        Run keystroke replay scripts
  styles list                    Show display attribute styles
  styles set <name> [flags]      Override a style (see styles set -h)
  styles reset <name>            Remove a style override
  styles db status|rollback      Show or roll back the style database schema
  config init                    Write the default config file
  config show                    Print the effective configuration
  config validate                Check the config file
  ibus install [-exec <path>]    Install the IBus component file
  ibus uninstall                 Remove the IBus component file
  help                           Show this help message

Options:
  -config <path>     Path to config file
  -log-level <lvl>   debug, info, warn or error`)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// setupLogging sends command output logs to stderr at the configured level.
func setupLogging(cfg *config.Config) (*logging.Logger, error) {
	lc, err := logging.FromSettings(cfg.Logging)
	if err != nil {
		return nil, err
	}
	lc.Output = "stderr"
	lc.Component = "textsvc"
	if *logLevel != "" {
		level, err := logging.ParseLevel(*logLevel)
		if err != nil {
			return nil, err
		}
		lc.Level = level
	}
	logger, err := logging.New(lc)
	if err != nil {
		return nil, err
	}
	logging.SetDefault(logger)
	return logger, nil
}

func cmdConfig(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: textsvc config init|show|validate")
	}
	path := *configPath
	if path == "" {
		path = config.ConfigPath()
	}

	switch args[0] {
	case "init":
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		cfg := config.DefaultConfig()
		if err := config.SaveConfig(cfg, path); err != nil {
			return err
		}
		if err := cfg.EnsureDirectories(); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	case "show":
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return toml.NewEncoder(os.Stdout).Encode(cfg)
	case "validate":
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			var verrs config.ValidationErrors
			if errors.As(err, &verrs) {
				for _, hint := range validationHints(verrs) {
					fmt.Fprintln(os.Stderr, "hint:", hint)
				}
			}
			return err
		}
		fmt.Printf("%s: OK\n", path)
		return nil
	default:
		return fmt.Errorf("unknown config command: %s", args[0])
	}
}
