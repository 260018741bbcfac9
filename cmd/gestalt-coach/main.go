package main

import (
	"embed"
	"fmt"
	"os"
)

//go:embed static/*
var staticFiles embed.FS

// Set by ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
