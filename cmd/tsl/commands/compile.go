package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/tsl/internal/app"
)

func (c *CLI) newCompileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile [paths...]",
		Short: "Type-check sources and write the emitted JavaScript",
		Long: "Type-check the given files, or every source below the given directories,\n" +
			"and write a .js file next to each source. Defaults to the current directory.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := runOptions(cmd)
			opts.OutDir, _ = cmd.Flags().GetString("out-dir")
			return c.app.Compile(cmd.Context(), args, opts)
		},
	}
	addCompileFlags(cmd)
	cmd.Flags().Bool("no-emit", false, "Type-check only, do not write output")
	cmd.Flags().Bool("source-map", false, "Append an inline source map to emitted code")
	cmd.Flags().StringP("out-dir", "o", "", "Write output below this directory instead of next to each source")
	return cmd
}

func (c *CLI) newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [paths...]",
		Short: "Type-check sources without writing output",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Check(cmd.Context(), args, runOptions(cmd))
		},
	}
	addCompileFlags(cmd)
	return cmd
}

// addCompileFlags registers the flags overriding the configured compile options.
func addCompileFlags(cmd *cobra.Command) {
	cmd.Flags().String("target", "", "Language level of emitted code (ES3, ES5, ES2015, ES2020, ESNext)")
	cmd.Flags().Bool("strict", false, "Enable strict checks")
	cmd.Flags().IntP("workers", "j", 0, "Number of workers (default from configuration)")
	cmd.Flags().BoolP("no-cache", "n", false, "Bypass the persistent result cache")
}

// runOptions collects the flags of cmd. Boolean options are only set when given.
func runOptions(cmd *cobra.Command) app.RunOptions {
	flags := cmd.Flags()

	var opts app.RunOptions
	opts.ConfigPath, _ = flags.GetString("config")
	opts.MetricsOut, _ = flags.GetString("metrics-out")
	opts.Target, _ = flags.GetString("target")
	opts.Workers, _ = flags.GetInt("workers")
	opts.NoCache, _ = flags.GetBool("no-cache")
	opts.Strict = changedBool(cmd, "strict")
	opts.NoEmit = changedBool(cmd, "no-emit")
	opts.SourceMap = changedBool(cmd, "source-map")
	return opts
}

func changedBool(cmd *cobra.Command, name string) *bool {
	flag := cmd.Flags().Lookup(name)
	if flag == nil || !flag.Changed {
		return nil
	}
	v, _ := cmd.Flags().GetBool(name)
	return &v
}
