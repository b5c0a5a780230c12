// Package commands implements the CLI commands for tsl.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/tsl/internal/app"
	"go.trai.ch/tsl/internal/build"
)

// CLI represents the command line interface for tsl.
type CLI struct {
	app     Application
	rootCmd *cobra.Command
}

// Application represents the application logic interface.
type Application interface {
	Compile(ctx context.Context, paths []string, opts app.RunOptions) error
	Check(ctx context.Context, paths []string, opts app.RunOptions) error
	Watch(ctx context.Context, root string, opts app.RunOptions) error
	CacheStats(ctx context.Context, w io.Writer, opts app.CacheOptions) error
	Clean(ctx context.Context, opts app.CacheOptions) error
	ConfigureLogging(json, verbose bool)
}

// New creates a new CLI instance with the given app.
func New(a Application) *CLI {
	rootCmd := &cobra.Command{
		Use:           "tsl",
		Short:         "An incremental, parallel TypeScript compiler",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	// Registered before the version flag so -v stays with --verbose.
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a tsl.yaml configuration file")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Write logs as JSON")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("metrics-out", "", "Write Prometheus metrics to this file after the command")

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		verbose, _ := cmd.Flags().GetBool("verbose")
		c.app.ConfigureLogging(jsonLogs, verbose)
	}

	rootCmd.AddCommand(c.newCompileCmd())
	rootCmd.AddCommand(c.newCheckCmd())
	rootCmd.AddCommand(c.newWatchCmd())
	rootCmd.AddCommand(c.newCacheCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}
