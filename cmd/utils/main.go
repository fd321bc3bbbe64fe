package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/barqueue/cmd/utils/internal/commands"
)

const (
	appName    = "barqueue-utils"
	appVersion = "0.1.0"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	config, err := apt.LoadConfig("UTILS", os.Args[2:])
	if err != nil {
		log.Fatalf("Cannot load config: %v", err)
	}

	logger := apt.NewLogger(config.GetStringOrDef("log.level", "info"))

	ctx := context.Background()
	command := os.Args[1]

	switch command {
	case "seed-demo":
		if err := commands.SeedDemo(ctx, config, logger); err != nil {
			log.Fatalf("Demo seeding failed: %v", err)
		}

	case "seed-config":
		if err := commands.SeedConfig(ctx, config, logger); err != nil {
			log.Fatalf("Config seeding failed: %v", err)
		}

	case "clear-demo":
		if err := commands.ClearDemo(ctx, config, logger); err != nil {
			log.Fatalf("Clear demo data failed: %v", err)
		}

	case "reset-db":
		if err := commands.ResetDB(ctx, config, logger); err != nil {
			log.Fatalf("Database reset failed: %v", err)
		}

	case "version":
		fmt.Printf("%s version %s\n", appName, appVersion)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s - barqueue utility commands

Usage:
  %s <command> [options]

Commands:
  seed-demo    Publish a demo shift of bar events over NATS
  seed-config  Apply an engine config YAML document through the service API
  clear-demo   Remove persisted configs and logged events of the demo bar
  reset-db     Drop the barqueue database (USE WITH CAUTION)
  version      Print version information
  help         Show this help message

Environment Variables:
  UTILS_NATS_URL                 NATS URL (default: nats://localhost:4222)
  UTILS_DB_MONGO_URL             MongoDB URL (default: mongodb://localhost:27017)
  UTILS_DB_MONGO_NAME            MongoDB database (default: barqueue)
  UTILS_SERVICES_BARQUEUE_URL    barqueue HTTP URL (default: http://localhost:8090)
  UTILS_DEMO_VENUE, UTILS_DEMO_BAR   target bar (default: demo:downtown / main)
  UTILS_CONFIG_FILE              YAML document for seed-config

Examples:
  %s seed-demo
  UTILS_CONFIG_FILE=deployments/engine-config.yaml %s seed-config
  %s reset-db

`, appName, appName, appName, appName, appName)
}
