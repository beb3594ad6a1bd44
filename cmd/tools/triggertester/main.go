// triggertester exercises the trigger table and the fact lookup from the
// command line, without a running server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/vc-hotseat/backend/internal/analysis/trigger"
	"github.com/zhouzirui/vc-hotseat/backend/internal/config"
	"github.com/zhouzirui/vc-hotseat/backend/internal/model/pitch"
	"github.com/zhouzirui/vc-hotseat/backend/internal/service/search"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Debug("无法加载 .env，改用系统环境变量")
	}

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var phrasesFile string

	root := &cobra.Command{
		Use:           "triggertester",
		Short:         "Try transcripts against the interruption trigger table",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&phrasesFile, "phrases", os.Getenv("TRIGGER_PHRASES_FILE"), "YAML phrase table (default: built-in table)")

	loadTable := func() (trigger.Table, error) {
		if phrasesFile == "" {
			return trigger.DefaultTable(), nil
		}
		return trigger.LoadTable(phrasesFile)
	}

	root.AddCommand(newEvalCmd(loadTable), newPhrasesCmd(loadTable), newFactCheckCmd())
	return root
}

func newEvalCmd(loadTable func() (trigger.Table, error)) *cobra.Command {
	var (
		file  string
		count int
	)
	cmd := &cobra.Command{
		Use:   "eval [transcript]",
		Short: "Evaluate a transcript and print the decision",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			transcript, err := readTranscript(cmd.InOrStdin(), file, args)
			if err != nil {
				return err
			}
			table, err := loadTable()
			if err != nil {
				return err
			}

			decision := trigger.NewEvaluator(table).Evaluate(transcript, count)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "length:   %d\n", len([]rune(transcript)))
			fmt.Fprintf(out, "count:    %d\n", count)
			fmt.Fprintf(out, "fire:     %t\n", decision.Fire)
			fmt.Fprintf(out, "reason:   %s\n", decision.Reason)
			if decision.Fire {
				fmt.Fprintf(out, "category: %s\n", decision.Category)
				fmt.Fprintf(out, "phrase:   %s\n", decision.Phrase)
				fmt.Fprintf(out, "excerpt:  %s\n", trigger.Excerpt(transcript))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the transcript from a file (- for stdin)")
	cmd.Flags().IntVar(&count, "count", 0, "interruptions already recorded in the session")
	return cmd
}

func newPhrasesCmd(loadTable func() (trigger.Table, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "phrases",
		Short: "Print the active phrase table as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := loadTable()
			if err != nil {
				return err
			}
			data, err := table.MarshalFile()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newFactCheckCmd() *cobra.Command {
	var (
		category string
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "factcheck <claim>",
		Short: "Run the Tavily fact lookup for a claim",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, ok := pitch.ParseCategory(category)
			if !ok {
				return fmt.Errorf("unknown category %q", category)
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("配置加载失败: %w", err)
			}
			if !cfg.Search.Enabled() {
				return search.ErrMissingAPIKey
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			svc := search.NewService(search.NewClient(cfg.Search.APIKey, cfg.Search.BaseURL, cfg.Search.Timeout))
			result := svc.FactCheck(ctx, args[0], cat)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().StringVar(&category, "category", string(pitch.RealityCheck), "trigger category framing the query")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	return cmd
}

func readTranscript(stdin io.Reader, file string, args []string) (string, error) {
	switch {
	case file == "-":
		data, err := io.ReadAll(stdin)
		return strings.TrimSpace(string(data)), err
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading transcript: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	case len(args) == 1:
		return args[0], nil
	default:
		return "", fmt.Errorf("provide a transcript argument or --file")
	}
}
