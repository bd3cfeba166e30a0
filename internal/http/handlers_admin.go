package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"teamorders/internal/core"
	"teamorders/internal/docstore"
	applog "teamorders/internal/log"
)

const conflictMessage = "This page was changed by someone else since you opened it. Reload and try again."

type budgetRow struct {
	Team   string
	Amount core.Money
}

type budgetsPage struct {
	page
	Version string
	Rows    []budgetRow
}

type menuPage struct {
	page
	Version string
	Menu    core.Menu
}

type teamRow struct {
	Name    string
	Members string
}

type usersPage struct {
	page
	Version string
	Teams   []teamRow
	Error   string
}

// saved logs a replaced document and maps a stale version to 409.
func (s *Server) saved(w http.ResponseWriter, r *http.Request, doc string, err error) bool {
	ctx := r.Context()
	switch {
	case errors.Is(err, docstore.ErrVersionConflict):
		applog.FromContext(ctx).WarnContext(ctx, "Document edit conflict",
			applog.FieldDocument, doc,
			applog.FieldOperation, applog.OpReplace)
		http.Error(w, conflictMessage, http.StatusConflict)
		return false
	case err != nil:
		s.serverError(w, r, "Failed to save "+doc, err)
		return false
	}
	applog.FromContext(ctx).InfoContext(ctx, "Document replaced",
		applog.FieldDocument, doc,
		applog.FieldOperation, applog.OpReplace)
	return true
}

func (s *Server) handleBudgetsPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	budgets, version, err := s.docs.Budgets(ctx)
	if err != nil {
		s.serverError(w, r, "Failed to load budgets", err)
		return
	}
	dir, _, err := s.docs.Directory(ctx)
	if err != nil {
		s.serverError(w, r, "Failed to load roster", err)
		return
	}
	rows := make([]budgetRow, 0, len(dir.Teams))
	for _, team := range dir.TeamNames() {
		rows = append(rows, budgetRow{Team: team, Amount: budgets.For(team)})
	}
	s.render(w, r, http.StatusOK, "manage_budgets.html", budgetsPage{
		page:    s.newPage(r, "Manage Budgets", s.currentWeek()),
		Version: version,
		Rows:    rows,
	})
}

func (s *Server) handleSaveBudgets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid request format", http.StatusBadRequest)
		return
	}
	budgets, _, err := s.docs.Budgets(ctx)
	if err != nil {
		s.serverError(w, r, "Failed to load budgets", err)
		return
	}
	dir, _, err := s.docs.Directory(ctx)
	if err != nil {
		s.serverError(w, r, "Failed to load roster", err)
		return
	}
	updated := ParseBudgetsForm(r.PostForm, dir.TeamNames(), budgets)
	_, err = s.docs.SaveBudgets(ctx, updated, r.PostForm.Get(fieldVersion))
	if !s.saved(w, r, docstore.BudgetsFile, err) {
		return
	}
	http.Redirect(w, r, "/admin/budgets", http.StatusSeeOther)
}

func (s *Server) handleMenuPage(w http.ResponseWriter, r *http.Request) {
	menu, version, err := s.docs.Menu(r.Context())
	if err != nil {
		s.serverError(w, r, "Failed to load menu", err)
		return
	}
	s.render(w, r, http.StatusOK, "edit_menu.html", menuPage{
		page:    s.newPage(r, "Edit Menu", s.currentWeek()),
		Version: version,
		Menu:    menu,
	})
}

func (s *Server) handleSaveMenu(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid request format", http.StatusBadRequest)
		return
	}
	menu := ParseMenuForm(r.PostForm)
	_, err := s.docs.SaveMenu(r.Context(), menu, r.PostForm.Get(fieldVersion))
	if !s.saved(w, r, docstore.MenuFile, err) {
		return
	}
	http.Redirect(w, r, "/admin/edit_menu", http.StatusSeeOther)
}

func (s *Server) handleUsersPage(w http.ResponseWriter, r *http.Request) {
	dir, version, err := s.docs.Directory(r.Context())
	if err != nil {
		s.serverError(w, r, "Failed to load roster", err)
		return
	}
	teams := make([]teamRow, 0, len(dir.Teams))
	for _, t := range dir.Teams {
		var members []string
		for _, m := range t.Members {
			if m = strings.TrimSpace(m); m != "" {
				members = append(members, m)
			}
		}
		teams = append(teams, teamRow{Name: t.Name, Members: strings.Join(members, "\n")})
	}
	s.render(w, r, http.StatusOK, "edit_users.html", usersPage{
		page:    s.newPage(r, "Edit Users", s.currentWeek()),
		Version: version,
		Teams:   teams,
	})
}

func (s *Server) handleSaveUsers(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid request format", http.StatusBadRequest)
		return
	}
	dir, err := ParseUsersForm(r.PostForm)
	if err != nil {
		ctx := r.Context()
		applog.FromContext(ctx).WarnContext(ctx, "Roster rejected",
			applog.FieldDocument, docstore.UsersFile,
			applog.FieldError, err)
		s.render(w, r, http.StatusBadRequest, "edit_users.html", usersPage{
			page:    s.newPage(r, "Edit Users", s.currentWeek()),
			Version: r.PostForm.Get(fieldVersion),
			Teams:   submittedTeams(r.PostForm),
			Error:   rosterMessage(err),
		})
		return
	}
	_, err = s.docs.SaveDirectory(r.Context(), dir, r.PostForm.Get(fieldVersion))
	if !s.saved(w, r, docstore.UsersFile, err) {
		return
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// submittedTeams echoes the posted roster back so a rejected edit is not lost.
func submittedTeams(form url.Values) []teamRow {
	names := form[fieldTeamNames]
	members := form[fieldMembers]
	var rows []teamRow
	for i, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		row := teamRow{Name: name}
		if i < len(members) {
			row.Members = members[i]
		}
		rows = append(rows, row)
	}
	return rows
}

func rosterMessage(err error) string {
	var dup *core.DuplicateMemberError
	if errors.As(err, &dup) {
		return dup.Error() + ". Each member can belong to one team only."
	}
	return "The roster could not be saved."
}
