package screens

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

// Status of a view's last load.
type Status int

const (
	StatusLoading Status = iota
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "loading"
	}
}

// TransactionSource fetches the principal's records.
type TransactionSource interface {
	ListTransactions(ctx context.Context, p *auth.Principal) ([]core.TransactionRecord, error)
}

// TransactionsState is one immutable snapshot of the view.
type TransactionsState struct {
	Status   Status
	Records  []core.TransactionRecord
	Totals   core.Totals
	Ratio    float64
	Err      error
	Message  string
	LoadedAt time.Time
}

// TransactionsView derives totals from a freshly fetched list. Concurrent
// refreshes share one fetch; the last completed fetch defines the state.
type TransactionsView struct {
	src       TransactionSource
	principal *auth.Principal
	logger    *log.Logger
	group     singleflight.Group

	mu     sync.RWMutex
	state  TransactionsState
	closed bool
}

// NewTransactionsView starts in StatusLoading.
func NewTransactionsView(src TransactionSource, p *auth.Principal, logger *log.Logger) *TransactionsView {
	if logger == nil {
		logger = log.Discard()
	}
	return &TransactionsView{
		src:       src,
		principal: p,
		logger:    logger.WithComponent(log.ComponentScreens),
		state:     TransactionsState{Status: StatusLoading},
	}
}

// State returns the current snapshot.
func (v *TransactionsView) State() TransactionsState {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state
}

// Refresh fetches the list and replaces the state. A caller arriving while a
// fetch is in flight waits for that fetch instead of starting another. A
// failed fetch still yields a StatusFailed snapshot alongside the error.
func (v *TransactionsView) Refresh(ctx context.Context) (TransactionsState, error) {
	if v.isClosed() {
		return TransactionsState{}, ErrViewClosed
	}
	res, err, _ := v.group.Do("refresh", func() (any, error) {
		records, err := v.src.ListTransactions(ctx, v.principal)
		return v.apply(records, err)
	})
	state, _ := res.(TransactionsState)
	return state, err
}

func (v *TransactionsView) apply(records []core.TransactionRecord, fetchErr error) (TransactionsState, error) {
	next := TransactionsState{LoadedAt: time.Now()}
	if fetchErr != nil {
		next.Status = StatusFailed
		next.Err = fetchErr
		next.Message = UserMessage(fetchErr)
	} else {
		next.Status = StatusReady
		next.Records = records
		next.Totals = core.Aggregate(records)
		next.Ratio = core.ExpenseRatio(next.Totals)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return TransactionsState{}, ErrViewClosed
	}
	v.state = next

	if fetchErr != nil {
		v.logger.Warn("Transactions refresh failed",
			log.FieldOperation, log.OpRefresh,
			log.FieldPrincipal, v.principal.Name(),
			log.FieldError, fetchErr)
	} else {
		v.logger.Debug("Transactions refreshed",
			log.FieldOperation, log.OpRefresh,
			log.FieldCount, len(records))
	}
	return next, fetchErr
}

// Close tears the view down. Fetches that finish later are dropped.
func (v *TransactionsView) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
}

func (v *TransactionsView) isClosed() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.closed
}
