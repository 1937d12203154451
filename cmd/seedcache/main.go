package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/oversite/domainwatch/internal/config"
	"github.com/oversite/domainwatch/internal/logging"
	"github.com/oversite/domainwatch/internal/sources"
)

// seedcache fetches the domain lists from the configured servers and writes
// the cache file without probing or alerting. Useful for bootstrapping a new
// install or refreshing the cache out of band.
func main() {
	var configFile string
	var envFile string
	var out string
	flag.StringVar(&configFile, "config", "", "path to config file (YAML or JSON)")
	flag.StringVar(&envFile, "env", "", "path to .env file")
	flag.StringVar(&out, "out", "", "cache file to write (overrides config)")
	flag.Parse()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load env file %s: %v\n", envFile, err)
			os.Exit(1)
		}
	} else {
		_ = godotenv.Load()
	}

	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	} else {
		cfg = &config.Config{}
		cfg.SetDefaults()
	}
	cfg.LoadFromEnv()
	if out != "" {
		cfg.DomainFile = out
	}
	if len(cfg.Servers) == 0 {
		fmt.Fprintln(os.Stderr, "no servers configured")
		os.Exit(1)
	}

	log := logging.New("", cfg.LogLevel)
	defer log.Sync()

	agg := sources.NewAggregator(cfg, log)
	domains := agg.Gather(context.Background())
	fmt.Printf("cached %d domains to %s\n", len(domains), cfg.DomainFile)
}
