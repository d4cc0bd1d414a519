package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/lfreitas-dev/hrbridge/internal/cli"
)

func main() {
	// Missing .env is fine; config files can also reference real env vars.
	_ = godotenv.Load()

	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
