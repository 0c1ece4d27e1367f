package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/metamigrate/internal/config"
	"github.com/roach88/metamigrate/internal/graphql"
	"github.com/roach88/metamigrate/internal/migrate"
	"github.com/roach88/metamigrate/internal/resolve"
	"github.com/roach88/metamigrate/internal/shopify"
	"github.com/roach88/metamigrate/internal/snapshot"
	"github.com/roach88/metamigrate/internal/store"
)

// Error codes of the JSON error envelope.
const (
	CodeConfig   = "E001"
	CodeSnapshot = "E002"
	CodeJournal  = "E003"
	CodeRemote   = "E004"
)

// Platform is everything the commands need from one store.
// *shopify.Store implements it.
type Platform interface {
	resolve.Directory
	migrate.RemoteSource
	migrate.DefinitionDestination
	migrate.MetaobjectDestination
}

// Connector opens the Admin API of store using the client settings of cfg.
type Connector func(store config.StoreConfig, cfg *config.Config, logger *zap.Logger) Platform

func connectShopify(sc config.StoreConfig, cfg *config.Config, logger *zap.Logger) Platform {
	client := graphql.NewClient(sc.URL, sc.Token, graphql.Options{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Timeout:           cfg.RequestTimeout,
		Logger:            logger,
	})
	return shopify.New(client, logger)
}

// needs lists what a command requires from its session.
type needs struct {
	source      bool
	destination bool
	journal     bool // required, not just used when configured
}

// session is the per-command wiring built from flags and config.
type session struct {
	cfg         *config.Config
	logger      *zap.Logger
	out         *OutputFormatter
	snap        *snapshot.Snapshot
	source      Platform
	destination Platform
	journal     *store.Store
	res         *resolve.Resolver
	ownsLogger  bool
}

func (o *RootOptions) buildLogger() (*zap.Logger, error) {
	if o.Logger != nil {
		return o.Logger, nil
	}
	zc := zap.NewProductionConfig()
	if o.Verbose {
		zc = zap.NewDevelopmentConfig()
	}
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

// open builds the session of cmd. Errors are ExitErrors with
// ExitCommandError and have already been written to the JSON envelope.
func (o *RootOptions) open(cmd *cobra.Command, n needs) (*session, error) {
	out := &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}

	cfg, err := config.Load(o.Config, o.Getenv)
	if err != nil {
		return nil, fail(out, CodeConfig, "failed to load config", err)
	}
	if o.Journal != "" {
		cfg.JournalPath = o.Journal
	}
	if err := cfg.Validate(n.source, n.destination); err != nil {
		return nil, fail(out, CodeConfig, "invalid config", err)
	}
	if n.journal && cfg.JournalPath == "" {
		return nil, fail(out, CodeJournal, "no journal configured",
			fmt.Errorf("set --journal, %s or journal in the config file", config.EnvJournal))
	}

	logger, err := o.buildLogger()
	if err != nil {
		return nil, fail(out, CodeConfig, "failed to build logger", err)
	}

	s := &session{
		cfg:        cfg,
		logger:     logger,
		out:        out,
		snap:       snapshot.New(cfg.SnapshotDir, cfg.StoreName, logger.Named("snapshot")),
		ownsLogger: o.Logger == nil,
	}
	if n.source {
		s.source = o.Connect(cfg.Source, cfg, logger.Named("source"))
	}
	if n.destination {
		s.destination = o.Connect(cfg.Destination, cfg, logger.Named("destination"))
	}
	if cfg.JournalPath != "" {
		s.journal, err = store.Open(cfg.JournalPath)
		if err != nil {
			s.Close()
			return nil, fail(out, CodeJournal, "failed to open journal", err)
		}
		logger.Debug("journal open", zap.String("path", cfg.JournalPath))
	}
	return s, nil
}

// Close releases the journal and flushes the logger.
func (s *session) Close() {
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			s.logger.Error("error closing journal", zap.Error(err))
		}
	}
	if s.ownsLogger {
		_ = s.logger.Sync()
	}
}

// resolver translates references from the source store to the destination.
// The destination is nil for source-only commands. It is built once per
// session.
func (s *session) resolver() *resolve.Resolver {
	if s.res != nil {
		return s.res
	}
	var dst resolve.Directory
	if s.destination != nil {
		dst = s.destination
	}
	s.res = resolve.New(s.source, dst, s.logger.Named("resolve"))
	return s.res
}

func (s *session) options(o *RootOptions, skipUnchanged bool) migrate.Options {
	opts := migrate.Options{
		RunIDs:        o.RunIDs,
		Logger:        s.logger,
		SkipUnchanged: skipUnchanged,
	}
	if s.journal != nil {
		opts.Journal = s.journal
	}
	return opts
}

// commandContext returns the command's context, cancelled on SIGINT or
// SIGTERM. The caller must call the returned cancel function.
func commandContext(cmd *cobra.Command, logger *zap.Logger) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Warn("received signal, cancelling", zap.Stringer("signal", sig))
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// fail writes the JSON error envelope when JSON output is selected and
// returns a command error.
func fail(out *OutputFormatter, code, message string, err error) error {
	if out.Format == "json" {
		_ = out.Error(code, message, errString(err))
	}
	return WrapExitError(ExitCommandError, message, err)
}

// finish turns a migration result into the command's exit status. A non-nil
// err means the run was aborted.
func finish(s *session, report *migrate.Report, err error, strict bool, render func(io.Writer, *migrate.Report)) error {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fail(s.out, CodeRemote, "interrupted", err)
		}
		return fail(s.out, CodeRemote, "run aborted", err)
	}
	if emitErr := s.out.Emit(report, func(w io.Writer) { render(w, report) }); emitErr != nil {
		return WrapExitError(ExitCommandError, "failed to write output", emitErr)
	}
	if strict && report.Failed() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d record(s) failed", len(report.Failures)))
	}
	return nil
}

func errString(err error) any {
	if err == nil {
		return nil
	}
	return err.Error()
}
