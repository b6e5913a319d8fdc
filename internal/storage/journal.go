// Package storage keeps the export worker's journal in SQLite. Each event id
// is exported at most once: an exporter must Claim a pending row before
// appending it. Rows that could not be exported go back to pending for the
// retry loop until they run out of attempts.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"fintrack/internal/core"
	"fintrack/internal/events"
	"fintrack/internal/log"
)

var ErrNotFound = errors.New("journal entry not found")

// Status is the export state of one journal entry.
type Status string

const (
	StatusPending   Status = "pending"
	StatusExporting Status = "exporting"
	StatusExported  Status = "exported"
	StatusFailed    Status = "failed"
)

const timeLayout = time.RFC3339Nano

// Entry is one row of the export journal.
type Entry struct {
	EventID     string
	RecordID    string
	Description string
	Amount      float64
	Category    string
	Kind        string
	Principal   string
	RecordedAt  time.Time
	Status      Status
	Attempts    int
	LastError   string
	SheetRef    string
	ExportedAt  *time.Time
}

// Message rebuilds the event the entry was recorded from.
func (e Entry) Message() (*events.TransactionRecordedMessage, error) {
	id, err := uuid.Parse(e.EventID)
	if err != nil {
		return nil, fmt.Errorf("journal event id %q: %w", e.EventID, err)
	}
	return &events.TransactionRecordedMessage{
		EventID:     id,
		RecordID:    e.RecordID,
		Description: e.Description,
		Amount:      e.Amount,
		Category:    e.Category,
		Kind:        core.Kind(e.Kind),
		Principal:   e.Principal,
		RecordedAt:  e.RecordedAt,
	}, nil
}

// Journal is the SQLite-backed export journal.
type Journal struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time
}

// NewJournal opens (or creates) the database at dbPath and migrates it.
func NewJournal(dbPath string, logger *log.Logger) (*Journal, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY between
	// the consumer and the retry loop.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{
		db:     db,
		logger: logger.WithComponent(log.ComponentStorage),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Record inserts msg as pending unless its event id is already journaled.
// It returns the stored entry and whether this call created it.
func (j *Journal) Record(ctx context.Context, msg *events.TransactionRecordedMessage) (Entry, bool, error) {
	if err := msg.Validate(); err != nil {
		return Entry{}, false, err
	}
	now := j.now().Format(timeLayout)
	res, err := j.db.ExecContext(ctx, `
		INSERT INTO export_journal
			(event_id, record_id, description, amount, category, kind, principal, recorded_at, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'pending', ?, ?)
		ON CONFLICT(event_id) DO NOTHING`,
		msg.EventID.String(), msg.RecordID, msg.Description, msg.Amount, msg.Category,
		string(msg.Kind), msg.Principal, msg.RecordedAt.UTC().Format(timeLayout), now, now)
	if err != nil {
		return Entry{}, false, fmt.Errorf("record event %s: %w", msg.EventID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Entry{}, false, err
	}

	entry, err := j.Get(ctx, msg.EventID.String())
	if err != nil {
		return Entry{}, false, err
	}
	return entry, n > 0, nil
}

const selectColumns = `event_id, record_id, description, amount, category, kind, principal,
	recorded_at, status, attempts, last_error, sheet_ref, exported_at`

// Get returns the entry for eventID or ErrNotFound.
func (j *Journal) Get(ctx context.Context, eventID string) (Entry, error) {
	row := j.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM export_journal WHERE event_id = ?`, eventID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get journal entry %s: %w", eventID, err)
	}
	return entry, nil
}

// Claim moves a pending entry to exporting. It reports false when another
// exporter holds the entry or it is no longer pending.
func (j *Journal) Claim(ctx context.Context, eventID string) (bool, error) {
	res, err := j.db.ExecContext(ctx, `
		UPDATE export_journal
		SET status = 'exporting', updated_at = ?
		WHERE event_id = ? AND status = 'pending'`,
		j.now().Format(timeLayout), eventID)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", eventID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReleaseClaims returns every exporting entry to pending. Call it before any
// exporter starts, when no claim can be live.
func (j *Journal) ReleaseClaims(ctx context.Context) (int, error) {
	res, err := j.db.ExecContext(ctx, `
		UPDATE export_journal
		SET status = 'pending', updated_at = ?
		WHERE status = 'exporting'`,
		j.now().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("release claims: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		j.logger.Warn("Released interrupted exports", log.FieldCount, n)
	}
	return int(n), nil
}

// MarkExported records where the row landed.
func (j *Journal) MarkExported(ctx context.Context, eventID, sheetRef string) error {
	now := j.now().Format(timeLayout)
	res, err := j.db.ExecContext(ctx, `
		UPDATE export_journal
		SET status = 'exported', sheet_ref = ?, last_error = '', exported_at = ?, updated_at = ?
		WHERE event_id = ?`, sheetRef, now, now, eventID)
	if err != nil {
		return fmt.Errorf("mark exported %s: %w", eventID, err)
	}
	return expectOne(res, eventID)
}

// MarkFailed counts a failed attempt and releases any claim. The entry goes
// back to pending until it has used maxAttempts, then becomes failed and is
// no longer retried.
func (j *Journal) MarkFailed(ctx context.Context, eventID string, cause error, maxAttempts int) (Status, error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	res, err := j.db.ExecContext(ctx, `
		UPDATE export_journal
		SET attempts = attempts + 1,
			last_error = ?,
			status = CASE WHEN attempts + 1 >= ? THEN 'failed' ELSE 'pending' END,
			updated_at = ?
		WHERE event_id = ? AND status != 'exported'`,
		msg, maxAttempts, j.now().Format(timeLayout), eventID)
	if err != nil {
		return "", fmt.Errorf("mark failed %s: %w", eventID, err)
	}
	if err := expectOne(res, eventID); err != nil {
		return "", err
	}

	entry, err := j.Get(ctx, eventID)
	if err != nil {
		return "", err
	}
	if entry.Status == StatusFailed {
		j.logger.Warn("Export attempts exhausted",
			log.FieldEventID, eventID,
			log.FieldCount, entry.Attempts,
			log.FieldError, msg)
	}
	return entry.Status, nil
}

// Pending lists entries still waiting for export, oldest first.
func (j *Journal) Pending(ctx context.Context, limit int) ([]Entry, error) {
	if limit < 1 {
		limit = 1
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM export_journal
		WHERE status = 'pending'
		ORDER BY recorded_at ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Counts returns the number of entries per status.
func (j *Journal) Counts(ctx context.Context) (map[Status]int, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM export_journal GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count journal: %w", err)
	}
	defer rows.Close()

	counts := map[Status]int{StatusPending: 0, StatusExporting: 0, StatusExported: 0, StatusFailed: 0}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e          Entry
		status     string
		recordedAt string
		exportedAt sql.NullString
	)
	if err := s.Scan(&e.EventID, &e.RecordID, &e.Description, &e.Amount, &e.Category,
		&e.Kind, &e.Principal, &recordedAt, &status, &e.Attempts, &e.LastError,
		&e.SheetRef, &exportedAt); err != nil {
		return Entry{}, err
	}
	e.Status = Status(status)

	t, err := time.Parse(timeLayout, recordedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parse recorded_at %q: %w", recordedAt, err)
	}
	e.RecordedAt = t

	if exportedAt.Valid && exportedAt.String != "" {
		t, err := time.Parse(timeLayout, exportedAt.String)
		if err != nil {
			return Entry{}, fmt.Errorf("parse exported_at %q: %w", exportedAt.String, err)
		}
		e.ExportedAt = &t
	}
	return e, nil
}

func expectOne(res sql.Result, eventID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, eventID)
	}
	return nil
}
