package main

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lubeqc/internal/asset"
	"github.com/smallbiznis/lubeqc/internal/catalog"
	"github.com/smallbiznis/lubeqc/internal/clock"
	"github.com/smallbiznis/lubeqc/internal/config"
	"github.com/smallbiznis/lubeqc/internal/consumption"
	consumptiondomain "github.com/smallbiznis/lubeqc/internal/consumption/domain"
	"github.com/smallbiznis/lubeqc/internal/inspection"
	"github.com/smallbiznis/lubeqc/internal/kv"
	"github.com/smallbiznis/lubeqc/internal/migration"
	"github.com/smallbiznis/lubeqc/internal/observability"
	"github.com/smallbiznis/lubeqc/internal/observability/logger"
	"github.com/smallbiznis/lubeqc/internal/providers"
	"github.com/smallbiznis/lubeqc/internal/report"
	reportdomain "github.com/smallbiznis/lubeqc/internal/report/domain"
	"github.com/smallbiznis/lubeqc/internal/server"
	"github.com/smallbiznis/lubeqc/pkg/db"
	"go.uber.org/fx"
)

// coreModules is the storage and record stack shared by every command.
func coreModules() fx.Option {
	return fx.Options(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		kv.Module,

		// Functional Domains
		catalog.Module,
		consumption.Module,
		report.Module,
	)
}

func serverModules() fx.Option {
	return fx.Options(
		coreModules(),
		inspection.Module,
		asset.Module,
		providers.Module,
		server.Module,
		fx.Decorate(decorateLogger(false)),
	)
}

// decorateLogger moves log output to stderr for one-shot commands so their
// stdout stays machine readable.
func decorateLogger(quiet bool) func(logger.Config) logger.Config {
	return func(cfg logger.Config) logger.Config {
		if quiet {
			cfg.OutputPath = "stderr"
			if !verbose {
				cfg.Level = "warn"
			}
		}
		if verbose {
			cfg.Level = "debug"
		}
		return cfg
	}
}

type cliServices struct {
	Consumption consumptiondomain.Service
	Report      reportdomain.Service
}

// startCore boots the core stack for a one-shot command. The caller must
// stop the returned app.
func startCore(ctx context.Context) (*fx.App, cliServices, error) {
	var svc cliServices
	app := fx.New(
		coreModules(),
		fx.Decorate(decorateLogger(true)),
		fx.NopLogger,
		fx.Populate(&svc.Consumption, &svc.Report),
	)
	if err := app.Err(); err != nil {
		return nil, svc, fmt.Errorf("build app: %w", err)
	}
	if err := app.Start(ctx); err != nil {
		return nil, svc, fmt.Errorf("start app: %w", err)
	}
	return app, svc, nil
}

func stopCore(app *fx.App) {
	ctx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()
	_ = app.Stop(ctx)
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
