package main

import (
	"tubecritique/agents/tube-critique/youtube"

	"github.com/spf13/cobra"
)

var authorizeCmd = &cobra.Command{
	Use:   "authorize",
	Short: "Authorize YouTube Data API access with the OAuth device flow",
	Long: `Runs the OAuth device flow for the configured Google client and saves the
token to youtube.token_file. Only needed when metadata should come from the
Data API through OAuth instead of an API key.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return youtube.Authorize(cmd.Context(), &cfg.YouTube, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(authorizeCmd)
}
