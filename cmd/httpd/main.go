package main

import (
	"fmt"
	"os"

	"github.com/jonesrussell/doc-indexer/internal/bootstrap"
)

func main() {
	if err := bootstrap.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "doc-indexer: %v\n", err)
		os.Exit(1)
	}
}
