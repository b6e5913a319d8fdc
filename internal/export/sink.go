// Package export mirrors recorded transactions into an append-only ledger
// sheet. The remote store stays the source of truth; the sheet is a copy.
package export

import (
	"context"
	"errors"
	"time"

	"fintrack/internal/events"
)

var ErrSinkNotInitialized = errors.New("export sink not initialized")

// Header is written once at the top of an empty sheet.
var Header = []any{"Recorded At", "Description", "Amount", "Category", "Kind", "Principal", "Event ID"}

// Row is one exported transaction.
type Row struct {
	EventID     string
	RecordedAt  time.Time
	Description string
	Amount      float64
	Category    string
	Kind        string
	Principal   string
}

// RowFromMessage maps an event onto a sheet row, rendering time in loc.
func RowFromMessage(msg *events.TransactionRecordedMessage, loc *time.Location) Row {
	if loc == nil {
		loc = time.UTC
	}
	return Row{
		EventID:     msg.EventID.String(),
		RecordedAt:  msg.RecordedAt.In(loc),
		Description: msg.Description,
		Amount:      msg.Amount,
		Category:    msg.Category,
		Kind:        string(msg.Kind),
		Principal:   msg.Principal,
	}
}

// Values is the row in column order A..G.
func (r Row) Values() []any {
	return []any{
		r.RecordedAt.Format("2006-01-02 15:04:05"),
		r.Description,
		r.Amount,
		r.Category,
		r.Kind,
		r.Principal,
		r.EventID,
	}
}

// Sink appends rows and returns a reference to where the row landed.
type Sink interface {
	AppendRow(ctx context.Context, row Row) (string, error)
}
