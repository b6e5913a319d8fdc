package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"fintrack/internal/log"
	"fintrack/internal/screens"
)

// adviceTimeout bounds one question; the advisor may be slow.
const adviceTimeout = 60 * time.Second

func (s *Server) handleAdvice(w http.ResponseWriter, r *http.Request, ws *screens.Workspace) {
	state := ws.Chat.State()
	ws.Chat.ClearStatus()
	s.render(w, r, http.StatusOK, "advice", page{
		Title:    "Advice",
		Active:   "advice",
		SignedIn: true,
		Data:     state,
	})
}

// handleAsk appends the question and the answer to the conversation. On
// failure the question stays visible with an error banner.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request, ws *screens.Workspace) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), adviceTimeout)
	defer cancel()

	err := ws.Chat.Ask(ctx, sanitizeInput(r.PostForm.Get("question")))
	if err == nil {
		s.appMetrics.adviceAnswered.Add(1)
		http.Redirect(w, r, "/advice", http.StatusSeeOther)
		return
	}
	if errors.Is(err, screens.ErrViewClosed) {
		http.Redirect(w, r, "/advice", http.StatusSeeOther)
		return
	}

	log.FromContext(r.Context()).WarnContext(r.Context(), "Advice request failed",
		log.FieldComponent, log.ComponentHTTP,
		log.FieldOperation, log.OpAdvice,
		log.FieldError, err)
	state := ws.Chat.State()
	ws.Chat.ClearStatus()
	s.render(w, r, statusFor(err), "advice", page{
		Title:    "Advice",
		Active:   "advice",
		SignedIn: true,
		Error:    screens.UserMessage(err),
		Data:     state,
	})
}
