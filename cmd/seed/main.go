package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/JaimeStill/ledger/internal/graph"
	"github.com/JaimeStill/ledger/pkg/lifecycle"
)

var graphEnv = &graph.Env{
	Provider:       "LEDGER_GRAPH_PROVIDER",
	URI:            "LEDGER_GRAPH_URI",
	Username:       "LEDGER_GRAPH_USERNAME",
	Password:       "LEDGER_GRAPH_PASSWORD",
	Database:       "LEDGER_GRAPH_DATABASE",
	ConnectTimeout: "LEDGER_GRAPH_CONNECT_TIMEOUT",
}

func main() {
	var (
		file    = flag.String("file", "contracts.yaml", "YAML file of contracts to load")
		timeout = flag.Duration("timeout", time.Minute, "Overall seed timeout")
		dryRun  = flag.Bool("dry-run", false, "Validate the file without writing")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	contracts, err := graph.LoadContractsFile(*file)
	if err != nil {
		log.Fatalf("load contracts: %v", err)
	}
	if *dryRun {
		fmt.Printf("%d contracts valid\n", len(contracts))
		return
	}

	var cfg graph.Config
	if err := cfg.Finalize(graphEnv); err != nil {
		log.Fatalf("graph config: %v", err)
	}

	sys, err := graph.New(&cfg, logger)
	if err != nil {
		log.Fatalf("graph init: %v", err)
	}

	lc := lifecycle.New()
	if err := sys.Start(lc); err != nil {
		log.Fatalf("graph start: %v", err)
	}
	lc.WaitForStartup()
	defer lc.Shutdown(10 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	n, err := graph.Seed(ctx, sys.Store(), contracts)
	if err != nil {
		log.Fatalf("seed failed after %d contracts: %v", n, err)
	}
	fmt.Printf("seeded %d contracts\n", n)
}
