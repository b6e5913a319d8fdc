package http

import (
	"net/http"

	"fintrack/internal/auth"
	"fintrack/internal/log"
	"fintrack/internal/screens"
)

type loginData struct {
	Enabled bool
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if s.deps.Watcher != nil && s.deps.Watcher.Current() != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login", page{
		Title: "Sign in",
		Data:  loginData{Enabled: s.deps.SignIn != nil},
	})
}

// handleLogin exchanges a pasted token for a principal and publishes it to
// the watcher, which opens a fresh workspace.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.deps.SignIn == nil || s.deps.Watcher == nil {
		s.render(w, r, http.StatusForbidden, "login", page{
			Title: "Sign in",
			Error: "Sign-in is managed by the server configuration",
			Data:  loginData{},
		})
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	p, err := s.deps.SignIn(r.Context(), sanitizeInput(r.PostForm.Get("token")))
	if err != nil || p == nil {
		if err == nil {
			err = auth.ErrNotAuthenticated
		}
		log.FromContext(r.Context()).WarnContext(r.Context(), "Sign-in rejected",
			log.FieldComponent, log.ComponentAuth,
			log.FieldErrorType, log.ErrorTypeAuth,
			log.FieldError, err)
		s.render(w, r, http.StatusUnauthorized, "login", page{
			Title: "Sign in",
			Error: screens.UserMessage(auth.ErrNotAuthenticated),
			Data:  loginData{Enabled: true},
		})
		return
	}

	s.deps.Watcher.Set(p)
	log.FromContext(r.Context()).InfoContext(r.Context(), "Signed in",
		log.FieldComponent, log.ComponentAuth,
		log.FieldPrincipal, p.Name())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleLogout clears the principal. The session closes the workspace and
// discards any results still in flight.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.deps.Watcher != nil {
		if p := s.deps.Watcher.Current(); p != nil {
			log.FromContext(r.Context()).InfoContext(r.Context(), "Signed out",
				log.FieldComponent, log.ComponentAuth,
				log.FieldPrincipal, p.Name())
		}
		s.deps.Watcher.Set(nil)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

type profileData struct {
	Name     string
	Subject  string
	Timezone string
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, ws *screens.Workspace) {
	subject := ""
	if ws.Principal.Email != "" {
		subject = ws.Principal.Subject
	}
	s.render(w, r, http.StatusOK, "profile", page{
		Title:    "Profile",
		Active:   "profile",
		SignedIn: true,
		Data: profileData{
			Name:     ws.Principal.Name(),
			Subject:  subject,
			Timezone: s.opts.Location.String(),
		},
	})
}
