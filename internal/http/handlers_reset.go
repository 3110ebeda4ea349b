package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/core"
	applog "github.com/Sesiom2704/gapptomobile-v3-sub003/internal/log"
	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/services"
)

type eligibilityJSON struct {
	Status          string   `json:"status"`
	Reasons         []string `json:"reasons"`
	DayOfMonth      int      `json:"dayOfMonth"`
	PendingExpenses int      `json:"pendingExpenses"`
	PendingIncomes  int      `json:"pendingIncomes"`
	CanReset        bool     `json:"canReset"`
}

// handleResetEligibility reports whether a reset (or closure) would be
// allowed right now, with machine-readable reason codes. Read-only.
func (s *Server) handleResetEligibility(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)
	closed := core.PreviousPeriod(time.Now())

	result, input, err := s.evaluator.Check(r.Context(), owner, closed, "", services.EligibilityOptions{
		EnforceWindow: true,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	reasons := make([]string, 0, len(result.Reasons))
	for _, code := range result.Reasons {
		reasons = append(reasons, string(code))
	}
	writeJSON(w, http.StatusOK, eligibilityJSON{
		Status:          string(result.Status),
		Reasons:         reasons,
		DayOfMonth:      input.DayOfMonth,
		PendingExpenses: input.PendingExpenses,
		PendingIncomes:  input.PendingIncomes,
		CanReset:        input.CanReset,
	})
}

type containerAverageJSON struct {
	ContainerID       int64  `json:"containerId"`
	ContainerName     string `json:"containerName"`
	AverageValue      int64  `json:"averageValue"`
	AffectedItemCount int    `json:"affectedItemCount"`
}

type resetPreviewJSON struct {
	ExpensesToReset      int                    `json:"expensesToReset"`
	IncomesToReset       int                    `json:"incomesToReset"`
	LastInstallmentCount int                    `json:"lastInstallmentCount"`
	Averages             []containerAverageJSON `json:"averages"`
}

func (s *Server) handleResetPreview(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)

	preview, err := s.reset.Preview(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := resetPreviewJSON{
		ExpensesToReset:      preview.ExpensesToReset,
		IncomesToReset:       preview.IncomesToReset,
		LastInstallmentCount: preview.LastInstallmentCount,
		Averages:             make([]containerAverageJSON, 0, len(preview.Averages)),
	}
	for _, avg := range preview.Averages {
		out.Averages = append(out.Averages, containerAverageJSON{
			ContainerID:       avg.ContainerID,
			ContainerName:     avg.ContainerName,
			AverageValue:      avg.AverageValue,
			AffectedItemCount: avg.AffectedItemCount,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type executeResetRequest struct {
	ApplyAverages bool `json:"applyAverages"`
	EnforceWindow bool `json:"enforceWindow"`
	Force         bool `json:"force"`
}

type resetCategoryJSON struct {
	PeriodicReactivatedCount int `json:"periodicReactivatedCount"`
	MonthlyResetCount        int `json:"monthlyResetCount"`
	AveragesUpdatedCount     int `json:"averagesUpdatedCount"`
	ForcedVisibleCount       int `json:"forcedVisibleCount"`
}

type resetSummaryJSON struct {
	Expense resetCategoryJSON `json:"expense"`
	Income  resetCategoryJSON `json:"income"`
}

func (s *Server) handleExecuteReset(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)

	// An empty body runs with defaults; a malformed one is rejected.
	var req executeResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, &core.ValidationError{Field: "body", Reason: "malformed JSON"})
		return
	}

	summary, err := s.reset.Execute(r.Context(), owner, services.ResetOptions{
		ApplyAverages: req.ApplyAverages,
		EnforceWindow: req.EnforceWindow,
		Force:         req.Force,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.kpiCache.Clear()
	slog.InfoContext(r.Context(), "Reset executed via API",
		applog.FieldOperation, applog.OpReset,
		applog.FieldOwner, owner,
		"reactivated", summary.Total().PeriodicReactivatedCount,
		"reset", summary.Total().MonthlyResetCount)
	writeJSON(w, http.StatusOK, resetSummaryJSON{
		Expense: toResetCategoryJSON(summary.Expense),
		Income:  toResetCategoryJSON(summary.Income),
	})
}

func toResetCategoryJSON(c core.ResetCategorySummary) resetCategoryJSON {
	return resetCategoryJSON{
		PeriodicReactivatedCount: c.PeriodicReactivatedCount,
		MonthlyResetCount:        c.MonthlyResetCount,
		AveragesUpdatedCount:     c.AveragesUpdatedCount,
		ForcedVisibleCount:       c.ForcedVisibleCount,
	}
}
