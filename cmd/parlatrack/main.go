// Command parlatrack runs the legislative-proceedings tracker: an HTTP API
// that ingests collector pushes, deduplicates and merges them into a
// relational store, and serves the result.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
