package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DMZ-Consulting/blue-deer-ledger/internal/domain"
	"github.com/DMZ-Consulting/blue-deer-ledger/internal/notify"
	"github.com/DMZ-Consulting/blue-deer-ledger/internal/server"
	"github.com/DMZ-Consulting/blue-deer-ledger/internal/server/handler"
	"github.com/DMZ-Consulting/blue-deer-ledger/internal/server/ws"
	"github.com/DMZ-Consulting/blue-deer-ledger/internal/service"
)

// archiveLockTTL bounds how long a crashed archiver can block its peers.
const archiveLockTTL = 30 * time.Minute

// ServerMode runs the HTTP + WebSocket API until the context is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)
	a.startNotifyListener(ctx, g, deps)
	return g.Wait()
}

// ArchiveMode runs only the periodic cold-storage archival job.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	if deps.Archiver == nil {
		return fmt.Errorf("app: archive mode requires S3 configuration")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.runArchiveLoop(ctx, deps)
	})
	return g.Wait()
}

// FullMode runs the API server and the archival job in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)
	a.startNotifyListener(ctx, g, deps)
	if a.cfg.Archive.Enabled {
		if deps.Archiver == nil {
			return fmt.Errorf("app: archive enabled but S3 is not wired")
		}
		g.Go(func() error {
			return a.runArchiveLoop(ctx, deps)
		})
	}
	return g.Wait()
}

// startServer builds the services, handlers, and WebSocket hub, seeds the
// built-in risk profiles when configured, and registers the server goroutines
// on the group.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	journalSvc := service.NewJournalService(
		deps.PositionStore, deps.TransactionStore, deps.StateCache,
		deps.SignalBus, deps.AuditStore, a.logger,
	)
	profileSvc := service.NewProfileService(deps.RiskProfileStore, a.logger)
	reportSvc := service.NewReportService(journalSvc, deps.RiskProfileStore, a.logger)

	if a.cfg.Journal.SeedProfiles {
		if err := profileSvc.Seed(ctx); err != nil {
			a.logger.WarnContext(ctx, "risk profile seeding failed",
				slog.String("error", err.Error()),
			)
		}
	}

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(
		server.Config{
			Port:            a.cfg.Server.Port,
			CORSOrigins:     a.cfg.Server.CORSOrigins,
			APIKey:          a.cfg.Server.APIKey,
			RateLimit:       a.cfg.Server.RateLimit,
			RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
		},
		server.Handlers{
			Health:       handler.NewHealthHandler(a.logger),
			Positions:    handler.NewPositionHandler(journalSvc, a.logger),
			Transactions: handler.NewTransactionHandler(journalSvc, a.logger),
			Reports:      handler.NewReportHandler(reportSvc, a.logger),
			Profiles:     handler.NewProfileHandler(profileSvc, a.logger),
			Events:       handler.NewEventHandler(deps.SignalBus, a.logger),
		},
		deps.RateLimiter,
		hub,
		a.logger,
	)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.logger.InfoContext(ctx, "HTTP server shutting down")
		return srv.Shutdown(shutCtx)
	})
}

// startNotifyListener bridges journal events to the configured notification
// channels. It is a no-op when no channel is configured.
func (a *App) startNotifyListener(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if a.cfg.Notify.TelegramToken == "" && a.cfg.Notify.DiscordWebhookURL == "" {
		return
	}
	listener := notify.NewJournalListener(deps.SignalBus, deps.Notifier, a.logger)
	g.Go(func() error {
		err := listener.Run(ctx, service.EventChannel)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
}

// runArchiveLoop runs one archival pass immediately and then on every tick
// until the context is cancelled. Archival failures are logged and notified
// but do not stop the loop.
func (a *App) runArchiveLoop(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	a.logger.InfoContext(ctx, "archive loop started",
		slog.Duration("interval", interval),
		slog.Int("retention_days", a.cfg.Archive.RetentionDays),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		a.archiveOnce(ctx, deps)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// archiveOnce performs a single archival pass guarded by a distributed lock
// so that only one instance archives at a time.
func (a *App) archiveOnce(ctx context.Context, deps *Dependencies) {
	unlock, err := deps.LockManager.Acquire(ctx, "archive", archiveLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			a.logger.InfoContext(ctx, "archive skipped, lock held by another instance")
			return
		}
		a.logger.ErrorContext(ctx, "archive lock acquisition failed",
			slog.String("error", err.Error()),
		)
		return
	}
	defer unlock()

	cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Archive.RetentionDays)

	archived, err := deps.Archiver.ArchiveClosedPositions(ctx, cutoff)
	if err != nil {
		a.notifyError(ctx, deps, "Position archival failed", err)
		return
	}

	auditRows, err := deps.Archiver.ArchiveAuditLog(ctx, cutoff)
	if err != nil {
		a.notifyError(ctx, deps, "Audit archival failed", err)
		return
	}

	a.logger.InfoContext(ctx, "archive pass complete",
		slog.Int64("positions", archived),
		slog.Int64("audit_rows", auditRows),
		slog.Time("cutoff", cutoff),
	)
}

// notifyError logs the error and forwards it on the "error" event channel.
func (a *App) notifyError(ctx context.Context, deps *Dependencies, title string, err error) {
	a.logger.ErrorContext(ctx, title, slog.String("error", err.Error()))
	if deps.Notifier == nil {
		return
	}
	if nerr := deps.Notifier.Notify(ctx, "error", title, err.Error()); nerr != nil {
		a.logger.WarnContext(ctx, "error notification failed",
			slog.String("error", nerr.Error()),
		)
	}
}
