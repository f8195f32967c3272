package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "jobcard-service",
	Short:         "Job card SOP workflow service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// .env необязателен, переменные окружения имеют приоритет
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
