package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shelfshot",
		Short: "Product photo capture workstation",
		Long: `Shelfshot captures product photos from a camera into sessions, lets you
pick the sharpest frames, and commits them to product folders with JSON
manifests ready for listing.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newProductsCmd())
	cmd.AddCommand(newReindexCmd())
	cmd.AddCommand(newSettingsCmd())

	return cmd
}
