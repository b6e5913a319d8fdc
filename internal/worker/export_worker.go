package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/events"
	"fintrack/internal/export"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// Journal is the subset of the export journal the worker needs.
type Journal interface {
	Record(ctx context.Context, msg *events.TransactionRecordedMessage) (storage.Entry, bool, error)
	MarkExported(ctx context.Context, eventID, sheetRef string) error
	MarkFailed(ctx context.Context, eventID string, cause error, maxAttempts int) (storage.Status, error)
	Pending(ctx context.Context, limit int) ([]storage.Entry, error)
	Claim(ctx context.Context, eventID string) (bool, error)
	ReleaseClaims(ctx context.Context) (int, error)
}

// errClaimed means another exporter already owns the entry.
var errClaimed = errors.New("entry claimed by another exporter")

// Consumer delivers activity events to a handler until ctx is done.
type Consumer interface {
	Consume(ctx context.Context, handler events.Handler) error
}

// Config tunes batching and retries.
type Config struct {
	BatchSize     int
	RetryInterval time.Duration
	MaxAttempts   int
	Location      *time.Location
}

func (c Config) withDefaults() Config {
	if c.BatchSize < 1 {
		c.BatchSize = 50
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = time.Minute
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 5
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	return c
}

// ExportWorker mirrors recorded transactions into the export sink. Every
// event goes through the journal first so a redelivery never produces a
// second row.
type ExportWorker struct {
	journal Journal
	sink    export.Sink
	cfg     Config
	logger  *log.Logger
}

func NewExportWorker(journal Journal, sink export.Sink, cfg Config, logger *log.Logger) *ExportWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ExportWorker{
		journal: journal,
		sink:    sink,
		cfg:     cfg.withDefaults(),
		logger:  logger.WithComponent(log.ComponentWorker),
	}
}

// HandleTransactionRecorded journals msg and exports it once. Export failures
// are left to the retry loop and do not requeue the message; only journal
// failures are returned.
func (w *ExportWorker) HandleTransactionRecorded(ctx context.Context, msg *events.TransactionRecordedMessage) error {
	entry, created, err := w.journal.Record(ctx, msg)
	if err != nil {
		return fmt.Errorf("journal event: %w", err)
	}

	switch entry.Status {
	case storage.StatusExported:
		w.logger.InfoContext(ctx, "Event already exported, skipping",
			log.FieldEventID, entry.EventID,
			log.FieldSheetRef, entry.SheetRef)
		return nil
	case storage.StatusFailed:
		w.logger.WarnContext(ctx, "Event exhausted its export attempts, skipping",
			log.FieldEventID, entry.EventID,
			log.FieldError, entry.LastError)
		return nil
	case storage.StatusExporting:
		w.logger.DebugContext(ctx, "Event is being exported, skipping",
			log.FieldEventID, entry.EventID)
		return nil
	}

	if !created {
		w.logger.DebugContext(ctx, "Redelivered pending event",
			log.FieldEventID, entry.EventID)
	}
	_ = w.exportEntry(ctx, entry, msg)
	return nil
}

// ProcessPending exports up to one batch of pending journal entries and
// reports how many made it.
func (w *ExportWorker) ProcessPending(ctx context.Context) (int, error) {
	pending, err := w.journal.Pending(ctx, w.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	w.logger.InfoContext(ctx, "Retrying pending exports", log.FieldCount, len(pending))

	exported := 0
	for _, entry := range pending {
		if ctx.Err() != nil {
			return exported, ctx.Err()
		}
		msg, err := entry.Message()
		if err != nil {
			w.markFailed(ctx, entry.EventID, err)
			continue
		}
		if w.exportEntry(ctx, entry, msg) == nil {
			exported++
		}
	}

	w.logger.InfoContext(ctx, "Retry batch finished",
		log.FieldCount, len(pending),
		"exported", exported)
	return exported, nil
}

// RetryLoop runs ProcessPending every RetryInterval until ctx is done.
func (w *ExportWorker) RetryLoop(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.ProcessPending(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.ErrorContext(ctx, "Retry batch failed", log.FieldError, err)
			}
		}
	}
}

// Run drains the backlog once, then consumes events and retries pending
// entries concurrently until ctx is cancelled or the consumer gives up.
func (w *ExportWorker) Run(ctx context.Context, consumer Consumer) error {
	if _, err := w.journal.ReleaseClaims(ctx); err != nil {
		return fmt.Errorf("release claims: %w", err)
	}
	if _, err := w.ProcessPending(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup backlog failed", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Consume(gctx, w.HandleTransactionRecorded)
	})
	g.Go(func() error {
		return w.RetryLoop(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (w *ExportWorker) exportEntry(ctx context.Context, entry storage.Entry, msg *events.TransactionRecordedMessage) error {
	claimed, err := w.journal.Claim(ctx, entry.EventID)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to claim entry",
			log.FieldEventID, entry.EventID,
			log.FieldError, err)
		return err
	}
	if !claimed {
		w.logger.DebugContext(ctx, "Entry already claimed, skipping",
			log.FieldEventID, entry.EventID)
		return errClaimed
	}

	ref, err := w.sink.AppendRow(ctx, export.RowFromMessage(msg, w.cfg.Location))
	if err != nil {
		w.logger.ErrorContext(ctx, "Export failed",
			log.FieldOperation, log.OpExport,
			log.FieldEventID, entry.EventID,
			log.FieldError, err)
		w.markFailed(ctx, entry.EventID, err)
		return err
	}

	if err := w.journal.MarkExported(ctx, entry.EventID, ref); err != nil {
		// Not a failed attempt: the row already landed. The claim stays so the
		// retry loop leaves it alone.
		w.logger.ErrorContext(ctx, "Failed to mark entry exported",
			log.FieldEventID, entry.EventID,
			log.FieldSheetRef, ref,
			log.FieldError, err)
		return err
	}

	w.logger.InfoContext(ctx, "Transaction exported",
		log.FieldOperation, log.OpExport,
		log.FieldEventID, entry.EventID,
		log.FieldDescription, entry.Description,
		log.FieldAmount, entry.Amount,
		log.FieldSheetRef, ref)
	return nil
}

func (w *ExportWorker) markFailed(ctx context.Context, eventID string, cause error) {
	status, err := w.journal.MarkFailed(ctx, eventID, cause, w.cfg.MaxAttempts)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to record export failure",
			log.FieldEventID, eventID,
			log.FieldError, err)
		return
	}
	if status == storage.StatusFailed {
		w.logger.ErrorContext(ctx, "Giving up on export",
			log.FieldEventID, eventID,
			log.FieldError, cause)
	}
}
