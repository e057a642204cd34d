package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-robots/internal/config"
	"github.com/rxtech-lab/argo-robots/internal/logger"
	"github.com/rxtech-lab/argo-robots/internal/scheduler"
	"github.com/rxtech-lab/argo-robots/internal/server"
	"github.com/rxtech-lab/argo-robots/internal/version"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// withApp loads the config, builds the components, runs fn and releases them.
func withApp(ctx context.Context, cmd *cli.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	log, err := logger.NewLoggerWithLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func printJSON(cmd *cli.Command, v any) error {
	encoder := json.NewEncoder(cmd.Root().Writer)
	encoder.SetIndent("", "  ")

	return encoder.Encode(v)
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withApp(ctx, cmd, func(ctx context.Context, a *app) error {
		started, err := a.control.Startup(ctx)
		if err != nil {
			return err
		}

		jobs, err := scheduler.New(a.config.Scheduler, a.ledger, a.hub, a.notifier, a.log)
		if err != nil {
			return err
		}

		jobs.Start()

		srv := server.New(server.Dependencies{
			State:   a.control,
			Hub:     a.hub,
			Robots:  a.engine,
			Store:   optional.Some[server.Pinger](a.sql),
			Metrics: a.metrics,
			Log:     a.log,
		})
		if err := srv.Start(a.config.Server.Addr); err != nil {
			<-jobs.Stop().Done()

			return err
		}

		go a.control.Watch(ctx, a.config.Server.StatePoll)

		a.log.Info("robots service started",
			zap.String("version", version.GetVersion()),
			zap.String("broker", string(a.config.Broker.Type)),
			zap.Int("subscribed", started),
		)

		<-ctx.Done()
		a.log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Warn("ops server shutdown failed", zap.Error(err))
		}

		select {
		case <-jobs.Stop().Done():
		case <-shutdownCtx.Done():
			a.log.Warn("scheduled jobs did not finish in time")
		}

		return nil
	})
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(ctx context.Context, a *app) error {
		state, err := a.control.Persist(ctx, true)
		if err != nil {
			return err
		}

		return printJSON(cmd, state)
	})
}

func stopAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(ctx context.Context, a *app) error {
		state, err := a.control.Persist(ctx, false)
		if err != nil {
			return err
		}

		return printJSON(cmd, state)
	})
}

func stateAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(ctx context.Context, a *app) error {
		state, err := a.control.Get(ctx)
		if err != nil {
			return err
		}

		return printJSON(cmd, state)
	})
}

func importAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(ctx context.Context, a *app) error {
		robotID := optional.None[string]()
		if id := cmd.String("robot"); id != "" {
			robotID = optional.Some(id)
		}

		meta, err := a.broker.ResolveInstrument(ctx, cmd.String("instrument"))
		if err != nil {
			return err
		}

		imported, err := a.ledger.Import(ctx, cmd.Timestamp("from"), cmd.Timestamp("to"), meta.ID, robotID)
		if err != nil {
			return err
		}

		return printJSON(cmd, map[string]any{"instrument": meta.ID, "imported": imported})
	})
}

func checkPaymentsAction(ctx context.Context, cmd *cli.Command) error {
	return withApp(ctx, cmd, func(ctx context.Context, a *app) error {
		synced, err := a.ledger.CheckPayments(ctx)
		if err != nil {
			return err
		}

		return printJSON(cmd, map[string]int{"synced": synced})
	})
}

func schemaAction(_ context.Context, cmd *cli.Command) error {
	cfg := config.Default()

	schema, err := cfg.GenerateSchemaJSON()
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.Root().Writer, schema)

	return err
}

func versionAction(_ context.Context, cmd *cli.Command) error {
	_, err := fmt.Fprintln(cmd.Root().Writer, version.GetVersion())

	return err
}
