// Package main implements the crewd CLI: a two-agent coordination
// engine that plans, executes, and reviews work through a generative
// execution backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/crewd/internal/backend"
	"github.com/fyrsmithlabs/crewd/internal/config"
	"github.com/fyrsmithlabs/crewd/internal/coordinator"
	"github.com/fyrsmithlabs/crewd/internal/logging"
	"github.com/fyrsmithlabs/crewd/internal/message"
	"github.com/fyrsmithlabs/crewd/internal/monitor"
	"github.com/fyrsmithlabs/crewd/internal/quality"
	"github.com/fyrsmithlabs/crewd/internal/redact"
	"github.com/fyrsmithlabs/crewd/internal/roles"
	"github.com/fyrsmithlabs/crewd/internal/session"
	"github.com/fyrsmithlabs/crewd/internal/store"
	"github.com/fyrsmithlabs/crewd/pkg/server"
)

var (
	version = "dev"

	configPath string
	workDir    string
	model      string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "crewd",
	Short:   "Manager/Worker coordination engine for generative backends",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/crewd/config.yaml)")
	runCmd.Flags().StringVar(&workDir, "workdir", "", "project directory the backend operates in")
	runCmd.Flags().StringVar(&model, "model", "", "backend model override")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the crewd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("crewd", version)
	},
}

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Run one coordination session for a request",
	Args:  cobra.ExactArgs(1),
	RunE:  runCoordination,
}

func runCoordination(cmd *cobra.Command, args []string) error {
	request := args[0]

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if workDir != "" {
		cfg.Backend.WorkDir = workDir
	}
	if model != "" {
		cfg.Backend.Model = model
	}
	if cfg.Backend.WorkDir == "" {
		if cfg.Backend.WorkDir, err = os.Getwd(); err != nil {
			return err
		}
	}

	log, err := logging.NewLogger(&cfg.Logging, nil)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	invoker := backend.NewCLIBackend(cfg.Backend.Command, cfg.Backend.Args...)
	opts := backend.Options{
		Model:        cfg.Backend.Model,
		WorkDir:      cfg.Backend.WorkDir,
		Timeout:      cfg.Backend.Timeout,
		AllowedTools: cfg.Backend.AllowedTools,
	}

	standards := quality.DefaultStandards()
	if err := config.ApplyQuality(cfg.Quality, standards); err != nil {
		return err
	}
	evaluator := quality.NewEvaluator(standards)

	bus := message.NewBus()
	manager := roles.NewManager(invoker, bus, evaluator, log, opts)
	worker := roles.NewWorker(invoker, bus, log, opts)

	sessions := session.NewStore(cfg.Session.Dir)

	var sink monitor.Sink = monitor.NopSink{}
	if cfg.Monitor.NATSURL != "" {
		natsSink, nerr := monitor.ConnectNATS(cfg.Monitor.NATSURL, log)
		if nerr != nil {
			log.Warn(ctx, "nats unavailable, events disabled", zap.Error(nerr))
		} else {
			sink = natsSink
		}
	}

	scrubber, err := redact.NewScrubber()
	if err != nil {
		return err
	}

	coord := coordinator.New(manager, worker, store.New(), bus, sessions, sink, log, coordinator.Config{
		MaxIterations:        cfg.Coordinator.MaxIterations,
		ConcurrencyLimit:     cfg.Coordinator.ConcurrencyLimit,
		IdleIterationCap:     cfg.Coordinator.IdleIterationCap,
		MaxConsecutiveErrors: cfg.Coordinator.MaxConsecutiveErrors,
		StopOnFirstError:     cfg.Coordinator.StopOnFirstError,
		IterationDelay:       cfg.Coordinator.IterationDelay,
		ErrorBackoff:         cfg.Coordinator.ErrorBackoff,
		WorkDir:              cfg.Backend.WorkDir,
		ToolHints:            cfg.Coordinator.ToolHints,
		Constraints:          cfg.Coordinator.Constraints,
	})
	coord.SetScrubber(scrubber)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Server.Enabled {
		srv := server.New(cfg.Server.Addr, coord)
		g.Go(func() error {
			if serr := srv.Start(gctx); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
				return serr
			}
			return nil
		})
	}

	if configPath != "" {
		g.Go(func() error {
			if werr := config.WatchQuality(gctx, configPath, standards, log); werr != nil && !errors.Is(werr, context.Canceled) {
				log.Warn(gctx, "config watcher stopped", zap.Error(werr))
			}
			return nil
		})
	}

	g.Go(func() error {
		defer stop()
		return coord.StartCoordination(gctx, request)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	report := coord.ValidateHandoffExecution()
	fmt.Printf("session %s finished: handoffs=%t executed=%t reviewed=%t\n",
		coord.ExecutionContext().SessionID,
		report.HandoffsOccurred, report.WorkerExecuted, report.ManagerReviewed)
	for _, issue := range report.Issues {
		fmt.Printf("  issue: %s\n", issue)
	}
	return nil
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List persisted coordination sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		ids, err := session.NewStore(cfg.Session.Dir).List()
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}
