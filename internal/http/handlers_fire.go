package http

import (
	"html/template"
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/fire"
	"fintrack/internal/log"
	"fintrack/internal/screens"
)

type fireData struct {
	Params     fire.Parameters
	Projection fire.Projection
	Chart      template.HTML
	MinSavings int
	MaxSavings int
	MinReturn  int
	MaxReturn  int
}

func (s *Server) fireData(params fire.Parameters, proj fire.Projection) fireData {
	return fireData{
		Params:     params,
		Projection: proj,
		Chart:      netWorthChart(proj.NetWorth, s.opts.Currency),
		MinSavings: fire.MinSavingsRate,
		MaxSavings: fire.MaxSavingsRate,
		MinReturn:  fire.MinInvestmentReturn,
		MaxReturn:  fire.MaxInvestmentReturn,
	}
}

func (s *Server) handleFire(w http.ResponseWriter, r *http.Request, ws *screens.Workspace) {
	params, proj := ws.Planner.Snapshot()
	s.render(w, r, http.StatusOK, "fire", page{
		Title:    "FIRE planner",
		Active:   "fire",
		SignedIn: true,
		Data:     s.fireData(params, proj),
	})
}

// handleUpdateFire applies the whole form at once. A rejected form leaves the
// planner as it was and shows why.
func (s *Server) handleUpdateFire(w http.ResponseWriter, r *http.Request, ws *screens.Workspace) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	_, err := ws.Planner.Apply(ParsePlannerInput(r.PostForm))
	if err != nil {
		params, proj := ws.Planner.Snapshot()
		s.render(w, r, statusFor(err), "fire", page{
			Title:    "FIRE planner",
			Active:   "fire",
			SignedIn: true,
			Error:    screens.UserMessage(err),
			Data:     s.fireData(params, proj),
		})
		return
	}
	http.Redirect(w, r, "/fire", http.StatusSeeOther)
}

type projectionResponse struct {
	Parameters fire.Parameters   `json:"parameters"`
	Projection fire.Projection   `json:"projection"`
	Formatted  map[string]string `json:"formatted"`
}

// handleProjectionAPI projects the query parameters on top of the configured
// defaults. It holds no state and needs no principal.
func (s *Server) handleProjectionAPI(w http.ResponseWriter, r *http.Request) {
	planner := screens.NewPlanner(s.opts.FireDefaults)
	proj, err := planner.Apply(ParsePlannerInput(r.URL.Query()))
	if err != nil {
		NewHTMXResponse().
			Status(http.StatusUnprocessableEntity).
			JSON(map[string]string{"error": screens.UserMessage(err)}).
			Write(w)
		return
	}
	params, _ := planner.Snapshot()

	fireAge := "Not reachable"
	if proj.Reachable {
		fireAge = formatNumber(float64(proj.RoundedFireAge()))
	}
	log.FromContext(r.Context()).DebugContext(r.Context(), "Projection computed",
		log.FieldComponent, log.ComponentHTTP,
		log.FieldOperation, log.OpProject)

	NewHTMXResponse().
		JSON(projectionResponse{
			Parameters: params,
			Projection: proj,
			Formatted: map[string]string{
				"fire_goal":      core.FormatFloat(proj.Goal, s.opts.Currency),
				"annual_savings": core.FormatFloat(proj.AnnualSavings, s.opts.Currency),
				"fire_age":       fireAge,
				"progress_pct":   formatPercent(proj.ProgressPct),
			},
		}).
		Write(w)
}
