// Package main is the entry point for Athena Core.
//
// @title           Athena Core API
// @version         1.0
// @description     Transcript segmentation and highlight clip orchestration.
//
// @host      localhost:8080
// @BasePath  /api/v1
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

var version = "dev"

func main() {
	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
