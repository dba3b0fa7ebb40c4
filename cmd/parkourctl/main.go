// Command parkourctl exports and inspects levels, queries stored episodes
// and serves the observer stream.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:          "parkourctl",
		Short:        "Tools for the parkour environment",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(logLevel)); err != nil {
				return err
			}
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(levelCmd())
	rootCmd.AddCommand(episodesCmd())
	rootCmd.AddCommand(observeCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func levelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "level",
		Short: "Generate and inspect levels",
	}
	cmd.AddCommand(levelExportCmd())
	cmd.AddCommand(levelInspectCmd())
	return cmd
}

func levelExportCmd() *cobra.Command {
	var opts exportOptions

	cmd := &cobra.Command{
		Use:   "export [output-path]",
		Short: "Generate a level and write it as YAML or a .zst snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.out = args[0]
			return runExport(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Config YAML (empty = defaults)")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "Terrain mode override: procedural or latent")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "Seed override (0 = runner.seed)")
	cmd.Flags().Float64SliceVar(&opts.latent, "latent", nil, "Latent vector override")
	return cmd
}

func levelInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [level-path]",
		Short: "Summarize a level YAML file or .zst snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.OutOrStdout(), args[0])
		},
	}
}

func episodesCmd() *cobra.Command {
	var kind, path string

	cmd := &cobra.Command{
		Use:   "episodes [run-id]",
		Short: "List stored runs, or the episodes of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runEpisodes(cmd.Context(), cmd.OutOrStdout(), kind, path, runID)
		},
	}

	cmd.Flags().StringVar(&kind, "store", "sqlite", "Store backend")
	cmd.Flags().StringVar(&path, "db", "parkour.db", "Store path")
	return cmd
}

func observeCmd() *cobra.Command {
	var opts observeOptions

	cmd := &cobra.Command{
		Use:   "observe",
		Short: "Run episodes and stream them to websocket observers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runObserve(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Config YAML (empty = defaults)")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address (empty = observer.addr)")
	cmd.Flags().IntVar(&opts.episodes, "episodes", 0, "Episodes to play (0 = until interrupted)")
	cmd.Flags().BoolVar(&opts.loopbackOnly, "loopback-only", true, "Reject non-loopback clients")
	cmd.Flags().BoolVar(&opts.realtime, "realtime", true, "Pace ticks at physics.fps")
	return cmd
}
