// Package main provides the entry point for the article engine CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "article_engine",
	Short: "Article generation workflow engine",
	Long:  "Article engine runs a durable queue of article jobs through structure generation, content writing, optional image generation, and publishing to WordPress.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
