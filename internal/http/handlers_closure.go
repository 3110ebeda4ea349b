package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/core"
	applog "github.com/Sesiom2704/gapptomobile-v3-sub003/internal/log"
	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/services"
)

func (s *Server) handleListClosures(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)

	headers, err := s.closures.ListClosures(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]closureJSON, 0, len(headers))
	for _, h := range headers {
		out = append(out, toClosureJSON(h))
	}
	writeJSON(w, http.StatusOK, map[string]any{"closures": out})
}

func (s *Server) handleClosureDetails(w http.ResponseWriter, r *http.Request) {
	id, err := idFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	header, err := s.closures.GetClosure(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	lines, err := s.closures.GetClosureDetails(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]detailLineJSON, 0, len(lines))
	for _, line := range lines {
		out = append(out, toDetailLineJSON(line))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"closure": toClosureJSON(header),
		"lines":   out,
	})
}

func (s *Server) handlePreviewClosure(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)
	period, err := periodFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	criterion, err := criterionFromQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	snap, err := s.preview.Preview(r.Context(), owner, period, criterion)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPreviewJSON(snap))
}

type generateRequest struct {
	Year      int    `json:"year"`
	Month     int    `json:"month"`
	Criterion string `json:"criterion"`
	Force     bool   `json:"force"`
	Overwrite bool   `json:"overwrite"`
}

func (s *Server) handleGenerateClosure(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, &core.ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}

	period := core.Period{Year: req.Year, Month: req.Month}
	criterion := core.Criterion(req.Criterion)
	if criterion == "" {
		criterion = core.CriterionCash
	}

	header, err := s.generator.Generate(r.Context(), owner, period, criterion, services.GenerateOptions{
		Force:     req.Force,
		Overwrite: req.Overwrite,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.kpiCache.Clear()
	slog.InfoContext(r.Context(), "Closure generated via API",
		applog.FieldClosureID, header.ID,
		applog.FieldOwner, owner,
		applog.FieldPeriod, period.Key(),
		applog.FieldCriterion, string(criterion))
	writeJSON(w, http.StatusCreated, toClosureJSON(header))
}

func (s *Server) handleDeleteClosure(w http.ResponseWriter, r *http.Request) {
	id, err := idFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.generator.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	s.kpiCache.Clear()
	w.WriteHeader(http.StatusNoContent)
}

type headerPatchRequest struct {
	LiquiditySnapshot *cents `json:"liquiditySnapshot"`
	ExpectedIncome    *cents `json:"expectedIncome"`
	RealIncome        *cents `json:"realIncome"`
	ExpectedExpense   *cents `json:"expectedExpense"`
	RealExpense       *cents `json:"realExpense"`
}

func (s *Server) handlePatchHeader(w http.ResponseWriter, r *http.Request) {
	id, err := idFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req headerPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, &core.ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}

	header, err := s.corrector.PatchHeader(r.Context(), id, services.HeaderPatch{
		LiquiditySnapshot: (*int64)(req.LiquiditySnapshot),
		ExpectedIncome:    (*int64)(req.ExpectedIncome),
		RealIncome:        (*int64)(req.RealIncome),
		ExpectedExpense:   (*int64)(req.ExpectedExpense),
		RealExpense:       (*int64)(req.RealExpense),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.kpiCache.Clear()
	writeJSON(w, http.StatusOK, toClosureJSON(header))
}

type linePatchRequest struct {
	Expected     *cents `json:"expected"`
	Real         *cents `json:"real"`
	IncludeInKpi *bool  `json:"includeInKpi"`
}

func (s *Server) handlePatchDetailLine(w http.ResponseWriter, r *http.Request) {
	id, err := idFromPath(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req linePatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, &core.ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}

	line, err := s.corrector.PatchDetailLine(r.Context(), id, services.LinePatch{
		Expected:     (*int64)(req.Expected),
		Real:         (*int64)(req.Real),
		IncludeInKpi: req.IncludeInKpi,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.kpiCache.Clear()
	writeJSON(w, http.StatusOK, toDetailLineJSON(line))
}
