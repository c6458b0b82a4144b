package web

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/shipbroker/internal/logging"
	"github.com/JonMunkholm/shipbroker/internal/web/templates"
)

type dashboardCount struct {
	label, table, column, href string
}

var dashboardCounts = []dashboardCount{
	{"Cargo Listings", "cargo_listings", "contact_email", "/list-cargo"},
	{"Vessel Listings", "vessel_listings", "owner_email", "/list-vessel"},
	{"Messages Sent", "contact_submissions", "email", "/contact"},
}

// handleDashboard shows what the signed-in broker has submitted. Counts run
// in parallel; a failed count is shown as zero with a warning.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user, _ := currentUser(r)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	values := make([]int64, len(dashboardCounts))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range dashboardCounts {
		g.Go(func() error {
			n, err := s.store.CountWhere(gctx, c.table, c.column, user.Email)
			values[i] = n
			return err
		})
	}

	d := templates.Dashboard{Email: user.Email}
	if err := g.Wait(); err != nil {
		logging.FromContext(r.Context()).Error("dashboard counts failed", "user", user.Email, "error", err)
		d.Error = "We could not load all of your listings."
	}

	d.Stats = append(d.Stats, templates.Stat{Label: "Total Listings", Value: values[0] + values[1]})
	for i, c := range dashboardCounts {
		d.Stats = append(d.Stats, templates.Stat{Label: c.label, Value: values[i], Href: c.href})
	}
	s.render(w, r, http.StatusOK, templates.DashboardPage(s.page(r, "Dashboard"), d))
}
