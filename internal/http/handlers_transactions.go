package http

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/screens"
)

type homeData struct {
	Loading  bool
	Failed   bool
	Records  []core.TransactionRecord
	Totals   core.Totals
	Ratio    float64
	LoadedAt time.Time
}

func homeDataFrom(st screens.TransactionsState) homeData {
	return homeData{
		Loading:  st.Status == screens.StatusLoading,
		Failed:   st.Status == screens.StatusFailed,
		Records:  st.Records,
		Totals:   st.Totals,
		Ratio:    st.Ratio,
		LoadedAt: st.LoadedAt,
	}
}

// handleHome refetches the list on every visit and renders totals derived
// from that fetch alone.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request, ws *screens.Workspace) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.RefreshTimeout)
	defer cancel()

	state, err := ws.Transactions.Refresh(ctx)
	if errors.Is(err, screens.ErrViewClosed) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	p := page{Title: "Home", Active: "home", SignedIn: true, Data: homeDataFrom(state)}
	status := http.StatusOK
	if err != nil {
		s.appMetrics.refreshFailed.Add(1)
		p.Error = screens.UserMessage(err)
		p.Retry = "/transactions/refresh"
		status = statusFor(err)
	}
	s.render(w, r, status, "home", p)
}

// handleRefresh is the retry affordance: it refetches and lands on home.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request, ws *screens.Workspace) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.RefreshTimeout)
	defer cancel()

	if _, err := ws.Transactions.Refresh(ctx); err != nil && !errors.Is(err, screens.ErrViewClosed) {
		s.appMetrics.refreshFailed.Add(1)
		log.FromContext(r.Context()).WarnContext(r.Context(), "Manual refresh failed",
			log.FieldComponent, log.ComponentHTTP,
			log.FieldOperation, log.OpRefresh,
			log.FieldError, err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type newTransactionData struct {
	Draft      screens.Draft
	Categories []string
}

func (s *Server) handleNewTransaction(w http.ResponseWriter, r *http.Request, _ *screens.Workspace) {
	p := page{
		Title:    "Add transaction",
		Active:   "new",
		SignedIn: true,
		Data:     newTransactionData{Categories: core.KnownCategories()},
	}
	switch r.URL.Query().Get("added") {
	case "income":
		p.Flash = screens.Draft{IsIncome: true}.SuccessMessage()
	case "expense":
		p.Flash = screens.Draft{}.SuccessMessage()
	}
	s.render(w, r, http.StatusOK, "new", p)
}

// handleCreateTransaction validates the form, posts it to the store and
// redirects back to an empty form. Validation and remote failures re-render
// the form with the typed values kept.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, ws *screens.Workspace) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	draft := ParseDraft(r.PostForm)

	created, err := s.deps.Transactions.Create(r.Context(), ws.Principal, draft)
	if err != nil {
		s.appMetrics.createFailed.Add(1)
		msg := screens.UserMessage(err)
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			log.FromContext(r.Context()).ErrorContext(r.Context(), "Transaction create failed",
				log.FieldComponent, log.ComponentHTTP,
				log.FieldOperation, log.OpCreate,
				log.FieldErrorType, log.ErrorTypeRemote,
				log.FieldError, err)
		}
		if isHX(r) {
			ErrorResponse(status, msg).TriggerErrorNotification(msg).Write(w)
			return
		}
		s.render(w, r, status, "new", page{
			Title:    "Add transaction",
			Active:   "new",
			SignedIn: true,
			Error:    msg,
			Data:     newTransactionData{Draft: draft, Categories: core.KnownCategories()},
		})
		return
	}
	s.appMetrics.created.Add(1)

	kind := string(core.KindExpense)
	if draft.IsIncome {
		kind = string(core.KindIncome)
	}
	if isHX(r) {
		recordID := ""
		if created.Result.Record != nil {
			recordID = created.Result.Record.ID
		}
		NewHTMXResponse().
			TriggerTransactionCreated(kind, recordID).
			TriggerFormReset().
			TriggerSuccessNotification(created.Message).
			BodyHTML(`<div class="success">` + template.HTMLEscapeString(created.Message) + `</div>`).
			Write(w)
		return
	}
	http.Redirect(w, r, "/transactions/new?added="+kind, http.StatusSeeOther)
}

// handleCategorize returns a suggestion chip for the description. It accepts
// JSON from the page script or a plain form body.
func (s *Server) handleCategorize(w http.ResponseWriter, r *http.Request) {
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	category, err := s.deps.Transactions.Categorize(r.Context(), parser.Get("description"))
	if err != nil {
		status := statusFor(err)
		msg := screens.UserMessage(err)
		if status >= http.StatusInternalServerError {
			msg = "Could not suggest a category"
		}
		ErrorResponse(status, msg).TriggerErrorNotification(msg).Write(w)
		return
	}
	s.appMetrics.categorized.Add(1)

	cat := core.CategoryFor(category)
	NewHTMXResponse().
		TriggerCategorySuggested(category).
		BodyHTML(`<span class="suggestion ` + template.HTMLEscapeString(cat.Class) + `">` +
			template.HTMLEscapeString(cat.Glyph) + ` ` + template.HTMLEscapeString(category) + `</span>`).
		Write(w)
}
