package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/verity/internal/adapters/driving/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// API keys may live in a .env file next to the binary's working directory.
	_ = godotenv.Load()

	cli.SetVersion(version)
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
