package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"docqa/internal/domain"
	"docqa/internal/progress"
	"docqa/internal/tui"
)

// setup loads config and assembles the app for a command.
func setup(report func(done, total int)) (*app, error) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	logger, err := newLogger(os.Stderr, level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	return buildApp(cfg, logger, report)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Index a document, replacing the previous one, and print its summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docType, _ := cmd.Flags().GetString("type")
		bar := progress.NewEmbedding(progress.Enabled(), os.Stderr)
		a, err := setup(bar.Func())
		if err != nil {
			return err
		}
		res, err := a.assistant.Upload(cmd.Context(), args[0], docType)
		bar.Finish()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if !res.Empty {
			fmt.Fprintf(out, "Indexed %s: %d chunk(s), dimension %d (%s)\n\n",
				res.Source, res.Ingest.ChunkCount, res.Ingest.Dimension, res.Ingest.Model)
		}
		fmt.Fprintln(out, res.Summary)
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the indexed document",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, _ := cmd.Flags().GetInt("top-k")
		showSources, _ := cmd.Flags().GetBool("sources")
		a, err := setup(nil)
		if err != nil {
			return err
		}
		stop := progress.StartSpinner(progress.Enabled(), "thinking")
		reply, err := a.assistant.Ask(cmd.Context(), strings.Join(args, " "), k)
		stop()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, reply.Answer)
		if showSources {
			printResults(cmd, reply.Sources)
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Show the chunks nearest to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, _ := cmd.Flags().GetInt("top-k")
		asJSON, _ := cmd.Flags().GetBool("json")
		a, err := setup(nil)
		if err != nil {
			return err
		}
		results, err := a.service.Retrieve(cmd.Context(), strings.Join(args, " "), k)
		if err != nil {
			return err
		}
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}
		if len(results) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No results. Has a document been ingested?")
			return nil
		}
		printResults(cmd, results)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(nil)
		if err != nil {
			return err
		}
		st, err := a.service.Status(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if !st.Exists {
			fmt.Fprintln(out, "No index. Run `docqa ingest <file>` first.")
			return nil
		}
		fmt.Fprintf(out, "Entries:   %d\nDimension: %d\nModel:     %s\n", st.Entries, st.Dimension, st.Model)
		return nil
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat [file]",
	Short: "Interactive chat over the indexed document",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(nil)
		if err != nil {
			return err
		}
		var document, intro string
		if len(args) == 1 {
			docType, _ := cmd.Flags().GetString("type")
			stop := progress.StartSpinner(progress.Enabled(), "processing "+args[0])
			res, err := a.assistant.Upload(cmd.Context(), args[0], docType)
			stop()
			if err != nil {
				return err
			}
			intro = res.Summary
			if !res.Empty {
				document = res.Source
			}
		} else if st, err := a.service.Status(cmd.Context()); err == nil && st.Exists {
			document = "previously indexed document"
		}
		// Cancelled when the UI exits so in-flight uploads and questions stop.
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		m := tui.New(ctx, a.assistant, a.cfg.Retrieval.TopK, document, intro)
		_, err = tea.NewProgram(m, tea.WithContext(ctx)).Run()
		return err
	},
}

func printResults(cmd *cobra.Command, results []domain.SearchResult) {
	out := cmd.OutOrStdout()
	for i, r := range results {
		fmt.Fprintf(out, "\n[%d] score=%.3f chunk #%d (%s)\n%s\n", i+1, r.Score, r.Chunk.Index, r.Chunk.SourceID, r.Chunk.Text)
	}
}
