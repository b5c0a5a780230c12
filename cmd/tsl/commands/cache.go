package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/tsl/internal/app"
)

func (c *CLI) newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the persistent result cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show the occupancy of the persistent result cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.CacheStats(cmd.Context(), cmd.OutOrStdout(), cacheOptions(cmd))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clean",
		Short: "Remove the cache directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Clean(cmd.Context(), cacheOptions(cmd))
		},
	})

	return cmd
}

func cacheOptions(cmd *cobra.Command) app.CacheOptions {
	configPath, _ := cmd.Flags().GetString("config")
	return app.CacheOptions{ConfigPath: configPath}
}
