package http

import (
	"errors"
	"net/http"

	"teamorders/internal/core"
	applog "teamorders/internal/log"
	"teamorders/internal/services"
	"teamorders/internal/session"
)

// optionRow is one orderable menu option with its cart form fields.
type optionRow struct {
	Key      string
	Name     string
	Price    core.Money
	Meta     string
	Quantity int
}

type itemRow struct {
	Name    string
	Options []optionRow
}

type groupRow struct {
	Name  string
	Items []itemRow
}

// cartLine is a cart entry prepared for the review and edit pages.
type cartLine struct {
	Key      string
	Item     string
	Option   string
	Label    string
	Meta     string
	Price    core.Money
	Quantity int
	Subtotal core.Money
}

type orderPage struct {
	page
	Groups    []groupRow
	Budget    core.Money
	Remaining core.Money
	CartTotal core.Money
}

type reviewPage struct {
	page
	Lines          []cartLine
	Total          core.Money
	Budget         core.Money
	Remaining      core.Money
	RemainingAfter core.Money
}

type editPage struct {
	page
	Lines []cartLine
}

func cartMeta(item, option string, price core.Money) string {
	return item + core.PriceKeySeparator + option + core.PriceKeySeparator + price.Plain()
}

func menuRows(menu core.Menu, cart session.Cart) []groupRow {
	groups := make([]groupRow, 0, len(menu.Groups))
	for _, g := range menu.Groups {
		gr := groupRow{Name: g.Name}
		for _, it := range g.Items {
			ir := itemRow{Name: it.Name}
			for _, opt := range it.Options {
				key := session.FormKey(it.Name, opt.Name)
				ir.Options = append(ir.Options, optionRow{
					Key:      key,
					Name:     opt.Name,
					Price:    opt.Price,
					Meta:     cartMeta(it.Name, opt.Name, opt.Price),
					Quantity: cart.Quantity(key),
				})
			}
			gr.Items = append(gr.Items, ir)
		}
		groups = append(groups, gr)
	}
	return groups
}

func cartLines(cart session.Cart) []cartLine {
	out := make([]cartLine, 0, len(cart))
	for _, l := range cart {
		out = append(out, cartLine{
			Key:      l.Key,
			Item:     l.Item,
			Option:   l.Option,
			Label:    core.ItemLabel(l.Item, l.Option),
			Meta:     cartMeta(l.Item, l.Option, l.Price),
			Price:    l.Price,
			Quantity: l.Quantity,
			Subtotal: l.Subtotal(),
		})
	}
	return out
}

// handleOrderPage shows the menu with the team's budget for the current
// week. ?new=1 starts an empty cart.
func (s *Server) handleOrderPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := session.FromContext(ctx)

	if r.URL.Query().Get("new") == "1" && len(st.Cart) > 0 {
		st.Cart = nil
		if !s.saveSession(w, r, st) {
			return
		}
	}

	snap, err := s.reports.Snapshot(ctx)
	if err != nil {
		s.serverError(w, r, "Failed to load menu", err)
		return
	}
	week := s.currentWeek()
	status, err := s.reports.BudgetStatus(ctx, st.Identity.Team, week)
	if err != nil {
		s.serverError(w, r, "Failed to compute budget", err)
		return
	}

	s.render(w, r, http.StatusOK, "order.html", orderPage{
		page:      s.newPage(r, "Place Order", week),
		Groups:    menuRows(snap.Menu, st.Cart),
		Budget:    status.Budget,
		Remaining: status.Remaining,
		CartTotal: st.Cart.Total(),
	})
}

// handleAddToOrder keeps the positive quantities of the posted form as the cart.
func (s *Server) handleAddToOrder(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid request format", http.StatusBadRequest)
		return
	}
	st := session.FromContext(r.Context())
	cart, skipped := session.CartFromForm(r.PostForm)
	if skipped > 0 {
		applog.FromContext(r.Context()).DebugContext(r.Context(), "Skipped malformed cart rows",
			applog.FieldMember, st.Identity.Member,
			"skipped", skipped)
	}
	st.Cart = cart
	if !s.saveSession(w, r, st) {
		return
	}
	if r.PostForm.Get("action") == "review" {
		http.Redirect(w, r, "/order/review", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/order", http.StatusSeeOther)
}

// handleEditOrder renders only the posted lines so quantities can be changed.
func (s *Server) handleEditOrder(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid request format", http.StatusBadRequest)
		return
	}
	cart, _ := session.CartFromForm(r.PostForm)
	if len(r.PostForm) == 0 {
		cart = session.FromContext(r.Context()).Cart
	}
	s.render(w, r, http.StatusOK, "order_edit.html", editPage{
		page:  s.newPage(r, "Edit Order", s.currentWeek()),
		Lines: cartLines(cart),
	})
}

// handleReviewOrder shows the cart against what is left of the week's budget.
func (s *Server) handleReviewOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := session.FromContext(ctx)
	week := s.currentWeek()
	status, err := s.reports.BudgetStatus(ctx, st.Identity.Team, week)
	if err != nil {
		s.serverError(w, r, "Failed to compute budget", err)
		return
	}
	total := st.Cart.Total()
	s.render(w, r, http.StatusOK, "order_review.html", reviewPage{
		page:           s.newPage(r, "Review Order", week),
		Lines:          cartLines(st.Cart),
		Total:          total,
		Budget:         status.Budget,
		Remaining:      status.Remaining,
		RemainingAfter: status.Remaining.Sub(total),
	})
}

// handleSubmitOrder persists the cart and clears it.
func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := session.FromContext(ctx)

	if len(st.Cart) > 0 {
		_, err := s.orders.Submit(ctx, st.Identity, st.Cart.Lines(), s.now())
		switch {
		case errors.Is(err, services.ErrNotAllowed):
			http.Error(w, "Access Denied", http.StatusForbidden)
			return
		case errors.Is(err, services.ErrInvalidOrder), errors.Is(err, core.ErrEmptyOrder):
			applog.FromContext(ctx).WarnContext(ctx, "Rejected cart",
				applog.FieldMember, st.Identity.Member,
				applog.FieldError, err)
			http.Error(w, "Your order contains invalid items. Please review it and try again.", http.StatusUnprocessableEntity)
			return
		case err != nil:
			s.serverError(w, r, "Failed to submit order", err)
			return
		}
	}

	st.Cart = nil
	if !s.saveSession(w, r, st) {
		return
	}
	http.Redirect(w, r, "/order", http.StatusSeeOther)
}
