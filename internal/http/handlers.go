package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"teamorders/internal/core"
	applog "teamorders/internal/log"
	"teamorders/internal/session"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// loginForm is the posted login. Names are matched case-insensitively later.
type loginForm struct {
	Team   string `validate:"required,max=100"`
	Member string `validate:"required,max=100"`
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	})
}

// handleReady checks templates, documents and the ledger.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)
	fail := func(name string, err error) {
		checks[name] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	if s.templates == nil {
		fail("templates", errors.New("templates not loaded"))
	} else {
		checks["templates"] = "ok"
	}

	if _, err := s.docs.Snapshot(ctx); err != nil {
		fail("documents", err)
	} else {
		checks["documents"] = "ok"
	}

	if s.ledger == nil {
		fail("ledger", errors.New("not configured"))
	} else if err := s.ledger.Ping(ctx); err != nil {
		fail("ledger", err)
	} else {
		checks["ledger"] = "ok"
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.GetMetrics().ClientCount,
		"status":         "ok",
	}

	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/order", http.StatusSeeOther)
}

type loginPage struct {
	page
	Error  string
	Team   string
	Member string
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login.html", loginPage{page: page{Title: "Login"}})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid request format", http.StatusBadRequest)
		return
	}
	form := loginForm{
		Team:   sanitizeInput(r.PostForm.Get("team_name")),
		Member: sanitizeInput(r.PostForm.Get("member_name")),
	}
	if err := validate.Struct(form); err != nil {
		s.render(w, r, http.StatusBadRequest, "login.html", loginPage{
			page:   page{Title: "Login"},
			Error:  "Enter your team and your name.",
			Team:   form.Team,
			Member: form.Member,
		})
		return
	}

	snap, err := s.docs.Snapshot(ctx)
	if err != nil {
		s.serverError(w, r, "Failed to load roster", err)
		return
	}
	team, member, err := snap.Directory.FindMember(form.Team, form.Member)
	switch {
	case errors.Is(err, core.ErrTeamNotFound):
		logger.InfoContext(ctx, "Login rejected", applog.FieldTeam, form.Team, applog.FieldError, err)
		http.Error(w, fmt.Sprintf("Team '%s' not found.", form.Team), http.StatusForbidden)
		return
	case errors.Is(err, core.ErrMemberNotFound):
		logger.InfoContext(ctx, "Login rejected", applog.FieldTeam, form.Team, applog.FieldMember, form.Member, applog.FieldError, err)
		http.Error(w, fmt.Sprintf("User '%s' not found on team '%s'.", form.Member, form.Team), http.StatusForbidden)
		return
	case err != nil:
		s.serverError(w, r, "Login lookup failed", err)
		return
	}

	id := core.Identity{
		Team:   team,
		Member: member,
		Role:   core.RoleFor(team, member, s.opts.AdminTeam, s.opts.AdminMember),
	}
	if !s.saveSession(w, r, session.State{Identity: id}) {
		return
	}
	logger.InfoContext(ctx, "Member logged in",
		applog.FieldTeam, id.Team,
		applog.FieldMember, id.Member,
		applog.FieldRole, string(id.Role))

	if id.CanViewAdmin() {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/order", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
