// Command migrate runs the SQL schema migrations.
package main

import (
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/nocson47/beaconofknowledge/internal/config"
	"github.com/nocson47/beaconofknowledge/internal/database"
	"github.com/nocson47/beaconofknowledge/internal/middleware"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate <up|down|version|list> [steps]")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := middleware.NewLogger(cfg.Env)
	url := cfg.DatabaseURL()

	switch strings.ToLower(strings.TrimSpace(flag.Arg(0))) {
	case "up":
		return database.RunUp(url, logger)
	case "down":
		steps := 1
		if flag.NArg() > 1 {
			steps, err = strconv.Atoi(flag.Arg(1))
			if err != nil {
				return fmt.Errorf("invalid steps %q: %w", flag.Arg(1), err)
			}
		}
		return database.RunDown(url, steps, logger)
	case "version":
		v, dirty, err := database.Version(url, logger)
		if err != nil {
			return fmt.Errorf("read version: %w", err)
		}
		log.Printf("version=%d dirty=%t", v, dirty)
	case "list":
		names, err := database.MigrationNames()
		if err != nil {
			return err
		}
		for _, name := range names {
			log.Println(name)
		}
	default:
		return usage()
	}
	return nil
}
