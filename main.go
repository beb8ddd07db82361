package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"tokenizer-service/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "tokenizer-service",
		Short:        "Tokenize MercadoPago test cards for debugging",
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newTokenizeCmd(),
		newCardsCmd(),
	)

	return root
}

// loadConfig reads an optional .env file before the environment.
func loadConfig() *config.Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: could not load .env: %v\n", err)
	}
	return config.Load()
}
