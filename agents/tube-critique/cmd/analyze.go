package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	tubecritique "tubecritique/agents/tube-critique"
	"tubecritique/shared/config"

	"github.com/spf13/cobra"
)

var streamOutput bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze <youtube-url>",
	Short: "Analyze a single video and print the result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := config.NewLogger(os.Stderr, cfg.LogLevel, false)

		pipeline, _, err := newPipeline(cmd.Context(), cfg, nil, logger)
		if err != nil {
			return err
		}

		if streamOutput {
			return analyzeStream(cmd, pipeline, args[0])
		}

		result, err := pipeline.Analyze(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

func init() {
	analyzeCmd.Flags().BoolVarP(&streamOutput, "stream", "s", false,
		"Print model output as it arrives, then the final result")
	rootCmd.AddCommand(analyzeCmd)
}

// analyzeStream writes progress to stderr, raw chunks and the final result to
// stdout.
func analyzeStream(cmd *cobra.Command, pipeline *tubecritique.Pipeline, rawURL string) error {
	events, err := pipeline.Stream(cmd.Context(), rawURL)
	if err != nil {
		return err
	}

	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	for ev := range events {
		switch ev.Status {
		case tubecritique.StatusStarted, tubecritique.StatusProcessing:
			fmt.Fprintln(stderr, ev.Message)
		case tubecritique.StatusMetadata:
			if err := printJSON(stderr, ev.Data); err != nil {
				return err
			}
		case tubecritique.StatusStreaming:
			fmt.Fprint(stdout, ev.Chunk)
		case tubecritique.StatusComplete:
			fmt.Fprintln(stdout)
			return printJSON(stdout, ev.Data)
		case tubecritique.StatusError:
			fmt.Fprintln(stdout)
			return ev.Err
		}
	}
	return cmd.Context().Err()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
