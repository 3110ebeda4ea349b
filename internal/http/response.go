package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/core"
	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/services"
)

// closureJSON is the wire shape of a persisted header. Amounts are cents.
type closureJSON struct {
	ID                   int64     `json:"id"`
	OwnerID              string    `json:"ownerId"`
	Period               string    `json:"period"`
	Year                 int       `json:"year"`
	Month                int       `json:"month"`
	Criterion            string    `json:"criterion"`
	LiquiditySnapshot    int64     `json:"liquiditySnapshot"`
	ExpectedIncome       int64     `json:"expectedIncome"`
	RealIncome           int64     `json:"realIncome"`
	ExpectedExpenseTotal int64     `json:"expectedExpenseTotal"`
	RealExpenseTotal     int64     `json:"realExpenseTotal"`
	ExpectedResult       int64     `json:"expectedResult"`
	RealResult           int64     `json:"realResult"`
	ResultDeviation      int64     `json:"resultDeviation"`
	ResultClass          string    `json:"resultClass"`
	Version              int64     `json:"version"`
	CreatedAt            time.Time `json:"createdAt"`
}

type detailLineJSON struct {
	ID             int64  `json:"id"`
	ClosureID      int64  `json:"closureId"`
	Period         string `json:"period"`
	SegmentID      int64  `json:"segmentId"`
	DetailType     string `json:"detailType"`
	Expected       int64  `json:"expected"`
	Real           int64  `json:"real"`
	Deviation      int64  `json:"deviation"`
	DeviationClass string `json:"deviationClass"`
	FulfillmentPct int64  `json:"fulfillmentPct"`
	ItemCount      int    `json:"itemCount"`
	IncludeInKpi   bool   `json:"includeInKpi"`
}

// previewJSON is a snapshot that was never persisted: same totals as a
// header but no id or version.
type previewJSON struct {
	OwnerID              string           `json:"ownerId"`
	Period               string           `json:"period"`
	Criterion            string           `json:"criterion"`
	LiquiditySnapshot    int64            `json:"liquiditySnapshot"`
	ExpectedIncome       int64            `json:"expectedIncome"`
	RealIncome           int64            `json:"realIncome"`
	ExpectedExpenseTotal int64            `json:"expectedExpenseTotal"`
	RealExpenseTotal     int64            `json:"realExpenseTotal"`
	ExpectedResult       int64            `json:"expectedResult"`
	RealResult           int64            `json:"realResult"`
	ResultDeviation      int64            `json:"resultDeviation"`
	ResultClass          string           `json:"resultClass"`
	Lines                []detailLineJSON `json:"lines"`
	AsOf                 time.Time        `json:"asOf"`
}

func toClosureJSON(h core.ClosureHeader) closureJSON {
	return closureJSON{
		ID:                   h.ID,
		OwnerID:              h.OwnerID,
		Period:               h.Period.Key(),
		Year:                 h.Period.Year,
		Month:                h.Period.Month,
		Criterion:            string(h.Criterion),
		LiquiditySnapshot:    h.LiquiditySnapshot,
		ExpectedIncome:       h.ExpectedIncome,
		RealIncome:           h.RealIncome,
		ExpectedExpenseTotal: h.ExpectedExpenseTotal,
		RealExpenseTotal:     h.RealExpenseTotal,
		ExpectedResult:       h.ExpectedResult,
		RealResult:           h.RealResult,
		ResultDeviation:      h.ResultDeviation,
		ResultClass:          string(core.Classify(h.ResultDeviation)),
		Version:              h.Version,
		CreatedAt:            h.CreatedAt,
	}
}

func toDetailLineJSON(line core.ClosureDetailLine) detailLineJSON {
	return detailLineJSON{
		ID:             line.ID,
		ClosureID:      line.ClosureID,
		Period:         line.Period.Key(),
		SegmentID:      line.SegmentID,
		DetailType:     string(line.DetailType),
		Expected:       line.Expected,
		Real:           line.Real,
		Deviation:      line.Deviation,
		DeviationClass: string(core.Classify(line.Deviation)),
		FulfillmentPct: line.FulfillmentPct,
		ItemCount:      line.ItemCount,
		IncludeInKpi:   line.IncludeInKpi,
	}
}

func toPreviewJSON(snap core.ClosureSnapshot) previewJSON {
	lines := make([]detailLineJSON, 0, len(snap.Lines))
	for _, line := range snap.Lines {
		lines = append(lines, toDetailLineJSON(line))
	}
	return previewJSON{
		OwnerID:              snap.OwnerID,
		Period:               snap.Period.Key(),
		Criterion:            string(snap.Criterion),
		LiquiditySnapshot:    snap.LiquiditySnapshot,
		ExpectedIncome:       snap.ExpectedIncome,
		RealIncome:           snap.RealIncome,
		ExpectedExpenseTotal: snap.ExpectedExpenseTotal,
		RealExpenseTotal:     snap.RealExpenseTotal,
		ExpectedResult:       snap.ExpectedResult,
		RealResult:           snap.RealResult,
		ResultDeviation:      snap.ResultDeviation,
		ResultClass:          string(core.Classify(snap.ResultDeviation)),
		Lines:                lines,
		AsOf:                 snap.AsOf,
	}
}

type errorJSON struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Status  string   `json:"status,omitempty"`
	Reasons []string `json:"reasons,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps the domain error taxonomy onto HTTP status codes. A
// blocked eligibility result is a terminal state, reported as 422 with its
// machine-readable reason codes.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var blocked *services.BlockedError
	if errors.As(err, &blocked) {
		reasons := make([]string, len(blocked.Result.Reasons))
		for i, code := range blocked.Result.Reasons {
			reasons[i] = string(code)
		}
		writeJSON(w, http.StatusUnprocessableEntity, errorJSON{Error: errorBody{
			Code:    "eligibility_blocked",
			Message: blocked.Error(),
			Status:  string(blocked.Result.Status),
			Reasons: reasons,
		}})
		return
	}

	var validation *core.ValidationError
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: errorBody{
			Code: "validation_failed", Message: validation.Error(),
		}})
	case errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrInvalidPeriod),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidCriterion),
		errors.Is(err, core.ErrEmptyOwner):
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: errorBody{
			Code: "validation_failed", Message: err.Error(),
		}})
	case core.IsConflict(err):
		writeJSON(w, http.StatusConflict, errorJSON{Error: errorBody{
			Code: "closure_exists", Message: err.Error(),
		}})
	case core.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorJSON{Error: errorBody{
			Code: "not_found", Message: err.Error(),
		}})
	default:
		slog.ErrorContext(r.Context(), "Request failed", "error", err, "url", r.URL.Path)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: errorBody{
			Code: "internal_error", Message: "internal error",
		}})
	}
}
