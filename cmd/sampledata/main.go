// Command sampledata seeds the database with random German Wikipedia
// articles and their parsed discussion pages. Loading goes through the
// regular document services, so embedding and classification jobs are
// enqueued for the worker to pick up.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jonesrussell/doc-indexer/internal/bootstrap"
	"github.com/jonesrussell/doc-indexer/internal/logger"
	"github.com/jonesrussell/doc-indexer/internal/wikipedia"
)

const defaultSampleSize = 1000

func main() {
	os.Exit(run())
}

func run() int {
	var cacheFile string
	var sampleSize int

	flag.StringVar(&cacheFile, "cache", "sampledata/articles.json", "Path to the sample data cache file")
	flag.IntVar(&sampleSize, "count", defaultSampleSize, "Number of articles to fetch")
	flag.Parse()

	cfg, configErr := bootstrap.LoadConfig()
	if configErr != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", configErr)
		return 1
	}

	log, logErr := bootstrap.CreateLogger(cfg)
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", logErr)
		return 1
	}
	defer func() { _ = log.Sync() }()

	db, dbErr := bootstrap.SetupDatabase(cfg)
	if dbErr != nil {
		log.Error("Failed to connect to database", logger.Error(dbErr))
		return 1
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("Failed to close database", logger.Error(closeErr))
		}
	}()

	components, setupErr := bootstrap.SetupComponents(cfg, db, log)
	if setupErr != nil {
		log.Error("Failed to set up components", logger.Error(setupErr))
		return 1
	}
	defer func() { _ = components.Vectors.Close() }()

	loader := wikipedia.NewLoader(
		components.Articles,
		components.Discussions,
		wikipedia.NewClient(),
		cacheFile,
		sampleSize,
		log,
	)

	if runErr := loader.Run(context.Background()); runErr != nil {
		log.Error("Sample data loading failed", logger.Error(runErr))
		return 1
	}

	return 0
}
