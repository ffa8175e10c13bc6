package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgPath  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "docqa",
	Short:         "Ask questions about a document",
	Long:          `Upload a document (text, PDF, Word, spreadsheet or scanned image), then ask questions answered from its most relevant passages.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config file (default ./config.yaml or ~/.config/docqa/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	ingestCmd.Flags().StringP("type", "t", "general", "Document type: invoice, prescription, logistics, general")
	askCmd.Flags().IntP("top-k", "k", 0, "Number of chunks to retrieve (default from config)")
	askCmd.Flags().Bool("sources", false, "Print the chunks the answer is based on")
	searchCmd.Flags().IntP("top-k", "k", 0, "Number of chunks to return (default from config)")
	searchCmd.Flags().Bool("json", false, "Output as JSON")
	chatCmd.Flags().StringP("type", "t", "general", "Document type of the file given on the command line")

	rootCmd.AddCommand(ingestCmd, askCmd, searchCmd, statusCmd, chatCmd)
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
