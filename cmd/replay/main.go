package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/erain9/tickbook/pkg/logging"
	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
)

func main() {
	snapshotPath := flag.String("snapshot", "", "Write the final book snapshot as JSON to this file")
	noColor := flag.Bool("no-color", false, "Disable colored output")
	flag.Parse()

	logging.Setup(logging.Config{Level: "warn", Pretty: true, Output: os.Stderr})

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: replay [-snapshot out.json] [-no-color] scenario.yaml...")
		os.Exit(2)
	}
	if *noColor {
		color.NoColor = true
	}

	failed := 0
	for _, path := range flag.Args() {
		sc, err := loadScenario(path)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Failed to load scenario")
		}

		book, n, err := replay(context.Background(), sc, os.Stdout)
		if err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("Failed to replay scenario")
		}
		failed += n

		if *snapshotPath != "" {
			data, err := json.MarshalIndent(book.Snapshot(), "", "  ")
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to encode snapshot")
			}
			if err := os.WriteFile(*snapshotPath, data, 0o644); err != nil {
				log.Fatal().Err(err).Str("path", *snapshotPath).Msg("Failed to write snapshot")
			}
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}
