package screens

import (
	"context"
	"errors"
	"sync"

	"fintrack/internal/auth"
	"fintrack/internal/fire"
	"fintrack/internal/log"
)

// Backend is everything the screens need from the remote service.
type Backend interface {
	TransactionSource
	Advisor
}

// Workspace is the set of screens owned by one principal.
type Workspace struct {
	Principal    *auth.Principal
	Transactions *TransactionsView
	Planner      *Planner
	Chat         *AdviceChat
}

// Close tears down every screen; late results are dropped.
func (w *Workspace) Close() {
	w.Transactions.Close()
	w.Chat.Close()
}

// Session follows the auth watcher and keeps exactly one workspace for the
// current principal. Signing out closes it.
type Session struct {
	watcher  *auth.Watcher
	backend  Backend
	defaults fire.Parameters
	logger   *log.Logger

	mu     sync.Mutex
	ws     *Workspace
	ctx    context.Context
	cancel context.CancelFunc
	sub    *auth.Subscription
	done   chan struct{}
}

// NewSession binds screens to the watcher. Call Start to follow changes.
func NewSession(w *auth.Watcher, backend Backend, defaults fire.Parameters, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.Discard()
	}
	return &Session{
		watcher:  w,
		backend:  backend,
		defaults: defaults,
		logger:   logger.WithComponent(log.ComponentScreens),
		ctx:      context.Background(),
	}
}

// Start subscribes to principal changes until ctx ends or Stop is called.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.sub != nil {
		s.mu.Unlock()
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.sub = s.watcher.Subscribe()
	s.done = make(chan struct{})
	sub, done, runCtx := s.sub, s.done, s.ctx
	s.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case p, ok := <-sub.Updates():
				if !ok {
					return
				}
				s.sync(p)
			case <-runCtx.Done():
				return
			}
		}
	}()
}

// Stop unsubscribes and closes the current workspace.
func (s *Session) Stop() {
	s.mu.Lock()
	sub, done, cancel := s.sub, s.done, s.cancel
	s.mu.Unlock()
	if sub == nil {
		return
	}
	sub.Unsubscribe()
	cancel()
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ws != nil {
		s.ws.Close()
		s.ws = nil
	}
	s.sub = nil
}

// Workspace returns the workspace for the current principal, or nil when
// signed out.
func (s *Session) Workspace() *Workspace {
	return s.sync(s.watcher.Current())
}

func (s *Session) sync(p *auth.Principal) *Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ws != nil && s.ws.Principal == p {
		return s.ws
	}
	if s.ws != nil {
		s.ws.Close()
		s.logger.Info("Workspace closed", log.FieldPrincipal, s.ws.Principal.Name())
		s.ws = nil
	}
	if p == nil {
		return nil
	}

	ws := &Workspace{
		Principal:    p,
		Transactions: NewTransactionsView(s.backend, p, s.logger),
		Planner:      NewPlanner(s.defaults),
		Chat:         NewAdviceChat(s.backend, s.logger),
	}
	s.ws = ws
	s.logger.Info("Workspace opened", log.FieldPrincipal, p.Name())

	ctx := s.ctx
	go func() {
		if _, err := ws.Transactions.Refresh(ctx); err != nil && !errors.Is(err, ErrViewClosed) {
			s.logger.Debug("Initial refresh failed", log.FieldError, err)
		}
	}()
	return ws
}
