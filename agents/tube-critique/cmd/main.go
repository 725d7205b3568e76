package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	tubecritique "tubecritique/agents/tube-critique"
	"tubecritique/agents/tube-critique/youtube"
	"tubecritique/shared/ai"
	"tubecritique/shared/config"

	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "tube-critique",
	Short: "Critique YouTube videos with Gemini",
	Long: `TubeCritique analyzes a YouTube video with Gemini, natively from the video
when possible and from its transcript otherwise, and returns a structured
critique with scores and action items.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"Path to the YAML config file (default $CONFIG_FILE or config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "",
		"Override the configured log level: debug, info, warn, error")
}

func main() {
	// Create context that responds to signals
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.LoadFile(configFile, true)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		if _, err := config.ParseLogLevel(logLevel); err != nil {
			return nil, err
		}
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

// newPipeline wires the YouTube client and the Gemini analyzer into a pipeline.
func newPipeline(ctx context.Context, cfg *config.Config, observer tubecritique.Observer, logger *slog.Logger) (*tubecritique.Pipeline, *youtube.Client, error) {
	client, err := youtube.NewClient(ctx, &cfg.YouTube, cfg.Analysis.PreferredLanguages, logger.With("component", "youtube"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create YouTube client: %w", err)
	}

	analyzer, err := ai.NewAnalyzer(ctx, &cfg.AI, logger.With("component", "ai"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create AI analyzer: %w", err)
	}

	pipeline := tubecritique.New(tubecritique.Deps{
		Metadata:    client,
		Transcripts: client,
		Model:       analyzer,
		Observer:    observer,
		Logger:      logger.With("component", "pipeline"),
	}, tubecritique.Options{
		MaxTranscriptChars: cfg.Analysis.MaxTranscriptChars,
		StreamFallback:     cfg.Analysis.StreamFallback,
	})
	return pipeline, client, nil
}
