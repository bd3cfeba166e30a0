package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"teamorders/internal/export"
	applog "teamorders/internal/log"
	"teamorders/internal/report"
	"teamorders/internal/session"
)

type dashboardPage struct {
	page
	Teams   []string
	Members []string
}

type teamOrdersPage struct {
	page
	View report.TeamWeekView
}

type summaryPage struct {
	page
	Rows      []report.SummaryRow
	ExportURL string
}

type totalsPage struct {
	page
	View report.WeeklyTotalsView
}

type allOrdersPage struct {
	page
	Rows []report.OrderRow
}

type memberPage struct {
	page
	View report.MemberView
}

func (s *Server) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := s.reports.Snapshot(r.Context())
	if err != nil {
		s.serverError(w, r, "Failed to load roster", err)
		return
	}
	var members []string
	for _, t := range snap.Directory.Teams {
		for _, m := range t.Members {
			if m = strings.TrimSpace(m); m != "" {
				members = append(members, m)
			}
		}
	}
	s.render(w, r, http.StatusOK, "admin_dashboard.html", dashboardPage{
		page:    s.newPage(r, "Admin Dashboard", s.currentWeek()),
		Teams:   snap.Directory.TeamNames(),
		Members: members,
	})
}

// handleActForAdminTeam lets an admin order on behalf of the admin team.
func (s *Server) handleActForAdminTeam(w http.ResponseWriter, r *http.Request) {
	st := session.FromContext(r.Context())
	st.Identity.ActingForAdminTeam = true
	if !s.saveSession(w, r, st) {
		return
	}
	http.Redirect(w, r, "/order", http.StatusSeeOther)
}

func (s *Server) handleTeamOrders(w http.ResponseWriter, r *http.Request) {
	team := r.PathValue("team")
	week := s.weekParam(r)
	view, err := s.reports.TeamWeek(r.Context(), team, week)
	if err != nil {
		s.serverError(w, r, "Failed to load team orders", err)
		return
	}
	s.render(w, r, http.StatusOK, "team_orders.html", teamOrdersPage{
		page: s.newPage(r, team+" Orders", week),
		View: view,
	})
}

func (s *Server) handleGroupReport(w http.ResponseWriter, r *http.Request) {
	week := s.weekParam(r)
	rows, err := s.reports.GroupReport(r.Context(), week)
	if err != nil {
		s.serverError(w, r, "Failed to load group report", err)
		return
	}
	s.render(w, r, http.StatusOK, "produce_hyvee.html", summaryPage{
		page:      s.newPage(r, "Produce & Hyvee Orders", week),
		Rows:      rows,
		ExportURL: "/admin/produce_hyvee/export?week=" + week.Start.String(),
	})
}

func (s *Server) handleGroupExport(w http.ResponseWriter, r *http.Request) {
	week := s.weekParam(r)
	orders, items, err := s.reports.GroupOrders(r.Context(), week)
	if err != nil {
		s.serverError(w, r, "Failed to load group report", err)
		return
	}
	var buf bytes.Buffer
	if err := export.GroupReport(&buf, orders, items); err != nil {
		s.serverError(w, r, "Failed to build workbook", err)
		return
	}
	s.sendWorkbook(w, r, export.GroupFileName(week), &buf, len(orders))
}

func (s *Server) handleWeeklySummary(w http.ResponseWriter, r *http.Request) {
	week := s.weekParam(r)
	rows, err := s.reports.WeeklySummary(r.Context(), week)
	if err != nil {
		s.serverError(w, r, "Failed to load weekly summary", err)
		return
	}
	s.render(w, r, http.StatusOK, "weekly_summary.html", summaryPage{
		page:      s.newPage(r, "Weekly Summary", week),
		Rows:      rows,
		ExportURL: "/admin/weekly_summary/export?week=" + week.Start.String(),
	})
}

func (s *Server) handleWeeklySummaryExport(w http.ResponseWriter, r *http.Request) {
	week := s.weekParam(r)
	orders, err := s.reports.WeekOrders(r.Context(), week)
	if err != nil {
		s.serverError(w, r, "Failed to load weekly summary", err)
		return
	}
	var buf bytes.Buffer
	if err := export.WeeklySummary(&buf, orders); err != nil {
		s.serverError(w, r, "Failed to build workbook", err)
		return
	}
	s.sendWorkbook(w, r, export.SummaryFileName(week), &buf, len(orders))
}

func (s *Server) sendWorkbook(w http.ResponseWriter, r *http.Request, name string, buf *bytes.Buffer, rows int) {
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Workbook exported",
		applog.FieldOperation, applog.OpExport,
		applog.FieldDocument, name,
		applog.FieldRows, rows)
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleWeeklyTotals(w http.ResponseWriter, r *http.Request) {
	view, err := s.reports.WeeklyTotals(r.Context())
	if err != nil {
		s.serverError(w, r, "Failed to load weekly totals", err)
		return
	}
	s.render(w, r, http.StatusOK, "weekly_totals.html", totalsPage{
		page: s.newPage(r, "Weekly Totals", s.currentWeek()),
		View: view,
	})
}

func (s *Server) handleAllOrders(w http.ResponseWriter, r *http.Request) {
	rows, err := s.reports.AllOrders(r.Context())
	if err != nil {
		s.serverError(w, r, "Failed to load orders", err)
		return
	}
	s.render(w, r, http.StatusOK, "all_orders.html", allOrdersPage{
		page: s.newPage(r, "All Orders", s.currentWeek()),
		Rows: rows,
	})
}

func (s *Server) handleMemberOrders(w http.ResponseWriter, r *http.Request) {
	member := r.PathValue("member")
	week := s.weekParam(r)
	view, err := s.reports.MemberOrders(r.Context(), member, week)
	if err != nil {
		s.serverError(w, r, "Failed to load member orders", err)
		return
	}
	s.render(w, r, http.StatusOK, "user_orders.html", memberPage{
		page: s.newPage(r, member+" Orders", week),
		View: view,
	})
}
