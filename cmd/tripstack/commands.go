package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tripstack/internal/config"
	"tripstack/internal/history"
	"tripstack/internal/orchestrator"
)

// GlobalFlags holds the persistent flags shared by all subcommands.
type GlobalFlags struct {
	ConfigPath string
}

// UpFlags holds flags for the up command.
type UpFlags struct {
	NoCache           bool
	StatusListen      string
	HistoryPath       string
	RequireAPIHealthy bool
	LogLevel          string
}

// HistoryFlags holds flags for the history command.
type HistoryFlags struct {
	Path  string
	Limit int
	RunID int64
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	upFlags := &UpFlags{}
	historyFlags := &HistoryFlags{}

	root := &cobra.Command{
		Use:           "tripstack",
		Short:         "Launch the travel-planner development stack",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", "", "path to TOML config (optional)")

	root.AddCommand(
		createUpCommand(globalFlags, upFlags),
		createHistoryCommand(historyFlags),
	)
	return root
}

func createUpCommand(global *GlobalFlags, flags *UpFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "up",
		Short: "Bring the stack up and supervise it until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(global, flags)
			if err != nil {
				return &orchestrator.ExitError{Code: orchestrator.ExitConfig, Err: err}
			}
			slog.SetDefault(cfg.Log.NewSlogger())
			return runUp(cfg)
		},
	}
	cmd.Flags().BoolVar(&flags.NoCache, "no-cache", false, "skip document store provisioning (CACHE_ENABLED=false)")
	cmd.Flags().StringVar(&flags.StatusListen, "status-listen", "", "serve /status and /metrics on this addr (e.g. :9090)")
	cmd.Flags().StringVar(&flags.HistoryPath, "history", "", "record this run in the given sqlite file")
	cmd.Flags().BoolVar(&flags.RequireAPIHealthy, "require-api-healthy", false, "fail the run if the API never becomes healthy")
	cmd.Flags().StringVar(&flags.LogLevel, "log-level", "", "override log level (debug|info|warn|error)")
	return cmd
}

func loadConfig(global *GlobalFlags, flags *UpFlags) (*config.RunConfig, error) {
	cfg, err := config.Load(global.ConfigPath)
	if err != nil {
		return nil, err
	}
	// Flags win over file and environment.
	if flags.NoCache {
		cfg.CacheEnabled = false
	}
	if flags.StatusListen != "" {
		cfg.StatusListen = flags.StatusListen
	}
	if flags.HistoryPath != "" {
		cfg.HistoryPath = flags.HistoryPath
	}
	if flags.RequireAPIHealthy {
		cfg.RequireAPIHealthy = true
	}
	if flags.LogLevel != "" {
		cfg.Log.Level = flags.LogLevel
	}
	return cfg, nil
}

func runUp(cfg *config.RunConfig) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("signal received, shutting down")
		cancel()
		// Absorb repeated signals; teardown is single-execution.
		for range sigCh {
			slog.Info("shutdown already in progress")
		}
	}()

	return orchestrator.New(cfg).Run(ctx)
}

func createHistoryCommand(flags *HistoryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded launch runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := history.Open(flags.Path)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()
			if flags.RunID > 0 {
				return printEvents(cmd, st, flags.RunID)
			}
			return printRuns(cmd, st, flags.Limit)
		},
	}
	cmd.Flags().StringVar(&flags.Path, "path", "tripstack-history.db", "sqlite history file")
	cmd.Flags().IntVar(&flags.Limit, "limit", 20, "number of runs to show")
	cmd.Flags().Int64Var(&flags.RunID, "run", 0, "show events for one run id")
	return cmd
}

func printRuns(cmd *cobra.Command, st *history.Store, limit int) error {
	runs, err := st.Runs(cmd.Context(), limit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		degraded := ""
		if r.Degraded {
			degraded = " (degraded)"
		}
		cmd.Printf("run %d  %s  %s%s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.FinalState, degraded)
	}
	return nil
}

func printEvents(cmd *cobra.Command, st *history.Store, runID int64) error {
	events, err := st.Events(cmd.Context(), runID)
	if err != nil {
		return err
	}
	for _, e := range events {
		detail := ""
		if e.Detail != "" {
			detail = "  " + e.Detail
		}
		cmd.Printf("%s  %-12s %-16s pid=%d%s\n",
			e.OccurredAt.Format("15:04:05"), e.Name, e.Status, e.PID, detail)
	}
	if len(events) == 0 {
		return fmt.Errorf("no events for run %d", runID)
	}
	return nil
}
