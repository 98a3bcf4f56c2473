package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/abhisek/pathwise/cmd"
)

func main() {
	// Missing .env is fine; env vars may come from the environment.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
