package main

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/marsgrid/ticksync/internal/config"
)

// flagKeys maps command-line flags to the config keys they override.
var flagKeys = map[string]string{
	"address":   "server.address",
	"steps":     "game.steps",
	"map":       "game.mapPath",
	"scenario":  "scenario.configPath",
	"log-level": "logLevel",
}

type options struct {
	configDir string
	version   bool
}

func newFlagSet(out io.Writer) (*pflag.FlagSet, *options) {
	opts := &options{}
	fs := pflag.NewFlagSet(AppName, pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprintf(out, "Usage: %s [flags]\n\n", AppName)
		fs.PrintDefaults()
	}

	fs.StringVarP(&opts.configDir, "config-dir", "c", ".", "directory containing "+config.FileName)
	fs.BoolVar(&opts.version, "version", false, "print version and exit")
	fs.StringP("address", "a", "", "simulation websocket address")
	fs.Int("steps", 0, "total steps; 0 discovers them from the LaserTagBox config")
	fs.String("map", "", "map file to validate before connecting")
	fs.String("scenario", "", "explicit LaserTagBox config.json")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	return fs, opts
}

// parseFlags parses args. Flags that were set are bound into viper so they
// override the config file and environment.
func parseFlags(args []string, out io.Writer) (*options, error) {
	fs, opts := newFlagSet(out)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return nil, fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return opts, nil
}
