// Package app wires configuration into the dispatch collaborators shared by the CLI and the server.
package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/blockedby/mailmerge/internal/config"
	"github.com/blockedby/mailmerge/internal/database"
	"github.com/blockedby/mailmerge/internal/dispatcher"
	"github.com/blockedby/mailmerge/internal/graph"
	"github.com/blockedby/mailmerge/internal/logger"
	"github.com/blockedby/mailmerge/internal/migrator"
	"github.com/blockedby/mailmerge/internal/nats"
	"github.com/blockedby/mailmerge/internal/publisher"
	"github.com/blockedby/mailmerge/internal/repository"
	"github.com/blockedby/mailmerge/migrations"
)

// ErrNoCredentials is returned when neither client credentials nor an access token are configured.
var ErrNoCredentials = errors.New("no graph credentials: set GRAPH_TENANT_ID/GRAPH_CLIENT_ID/GRAPH_CLIENT_SECRET or GRAPH_ACCESS_TOKEN")

// Options tune Build.
type Options struct {
	// DryRun logs messages instead of sending and skips the workbook audit log.
	DryRun bool
	// NoHistory skips the run history store.
	NoHistory bool
}

// Components are the collaborators of a dispatch Runner.
type Components struct {
	Graph     *graph.Client
	Mail      dispatcher.MailSender
	Sink      dispatcher.AuditSink
	History   *repository.RunStore
	Notifiers []dispatcher.Notifier
	Preflight func(ctx context.Context) error
	NATS      *nats.Client

	log     *logger.Logger
	closers []func()
}

// Build connects everything cfg and rc configure. Optional backends (postgres, nats)
// are skipped with a warning when unreachable.
func Build(ctx context.Context, cfg *config.Config, rc config.RunConfig, opts Options, log *logger.Logger) (*Components, error) {
	c := &Components{log: log}

	tokens := tokenSource(ctx, cfg)
	if tokens == nil && !opts.DryRun {
		return nil, ErrNoCredentials
	}

	c.Graph = graph.NewClient(graph.Config{
		BaseURL:     cfg.GraphBaseURL,
		TokenSource: tokens,
	}, log)

	if opts.DryRun {
		c.Mail = dispatcher.NewDryRunSender(log)
	} else {
		c.Mail = graph.NewMailService(c.Graph, cfg.GraphSender)
		c.Preflight = func(ctx context.Context) error {
			_, err := c.Graph.Token(ctx)
			return err
		}
	}

	var sinks dispatcher.MultiSink
	if !opts.DryRun && rc.AnyoneEditLink != "" {
		sinks = append(sinks, graph.NewWorkbookSink(graph.NewWorkbook(c.Graph), rc.AnyoneEditLink, rc.TableName, rc.ChunkSize))
	}

	if cfg.DatabaseURL != "" {
		sink, err := c.connectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Warn().Err(err).Msg("postgres unavailable, audit mirror disabled")
		} else {
			sinks = append(sinks, sink)
		}
	}

	switch len(sinks) {
	case 0:
		c.Sink = dispatcher.NopSink{}
	case 1:
		c.Sink = sinks[0]
	default:
		c.Sink = sinks
	}

	if !opts.NoHistory {
		if err := c.openHistory(ctx, cfg); err != nil {
			c.Close()
			return nil, err
		}
	}

	if cfg.NatsURL != "" {
		if err := c.connectNATS(ctx, cfg.NatsURL); err != nil {
			log.Warn().Err(err).Msg("failed to connect to nats, publishing disabled")
		}
	}

	return c, nil
}

// Deps returns runner dependencies, adding extra notifiers such as the websocket hub.
func (c *Components) Deps(extra ...dispatcher.Notifier) dispatcher.Deps {
	deps := dispatcher.Deps{
		Mail:      c.Mail,
		Sink:      c.Sink,
		Notifiers: append(append([]dispatcher.Notifier{}, c.Notifiers...), extra...),
		Log:       c.log,
	}
	if c.History != nil {
		deps.Recorder = c.History
	}
	return deps
}

// Close releases every connection opened by Build.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

func tokenSource(ctx context.Context, cfg *config.Config) oauth2.TokenSource {
	switch {
	case cfg.UsesClientCredentials():
		return graph.ClientCredentialsSource(ctx, cfg.GraphTenantID, cfg.GraphClientID, cfg.GraphClientSecret)
	case cfg.GraphAccessToken != "":
		return graph.StaticSource(cfg.GraphAccessToken)
	default:
		return nil
	}
}

func migrate(ctx context.Context, url string) error {
	m, err := migrator.NewWithFS(migrations.FS)
	if err != nil {
		return err
	}
	if err := m.Up(ctx, url); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (c *Components) connectPostgres(ctx context.Context, url string) (dispatcher.AuditSink, error) {
	if err := migrate(ctx, url); err != nil {
		return nil, err
	}

	db, err := database.New(ctx, url)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, db.Close)

	return repository.NewAuditRepository(db.Pool, c.log), nil
}

func (c *Components) openHistory(ctx context.Context, cfg *config.Config) error {
	dsn := cfg.HistoryDSN
	if dsn == "" {
		return nil
	}

	db, err := database.OpenGORM(dsn)
	if err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		c.closers = append(c.closers, func() { _ = sqlDB.Close() })
	}

	store := repository.NewRunStore(db, c.log)
	if database.IsPostgres(dsn) {
		if err := migrate(ctx, dsn); err != nil {
			return err
		}
	} else if err := store.AutoMigrate(); err != nil {
		return err
	}
	c.History = store
	return nil
}

func (c *Components) connectNATS(ctx context.Context, url string) error {
	nc, err := nats.New(ctx, url)
	if err != nil {
		return err
	}
	c.closers = append(c.closers, nc.Close)

	if err := nc.EnsureDispatchStream(ctx); err != nil {
		return err
	}

	c.NATS = nc
	c.Notifiers = append(c.Notifiers, publisher.NewNATSPublisher(nc, c.log))
	return nil
}
