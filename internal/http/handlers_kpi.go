package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/services"
)

type kpiPeriodJSON struct {
	Period          string `json:"period"`
	RealIncome      int64  `json:"realIncome"`
	RealExpense     int64  `json:"realExpense"`
	RealResult      int64  `json:"realResult"`
	ResultDeviation int64  `json:"resultDeviation"`
}

type kpiSegmentJSON struct {
	SegmentID  int64   `json:"segmentId"`
	DetailType string  `json:"detailType"`
	Values     []int64 `json:"values"`
}

type kpiReportJSON struct {
	Count        int              `json:"count"`
	TotalIncome  int64            `json:"totalIncome"`
	TotalExpense int64            `json:"totalExpense"`
	TotalResult  int64            `json:"totalResult"`
	AvgResult    decimal.Decimal  `json:"avgResult"`
	AvgDeviation decimal.Decimal  `json:"avgDeviation"`
	Trend        int64            `json:"trend"`
	TrendPct     *decimal.Decimal `json:"trendPct"`
	Periods      []kpiPeriodJSON  `json:"periods"`
	Segments     []kpiSegmentJSON `json:"segments"`
}

func toKpiJSON(report services.KpiReport) kpiReportJSON {
	out := kpiReportJSON{
		Count:        report.Count,
		TotalIncome:  report.TotalIncome,
		TotalExpense: report.TotalExpense,
		TotalResult:  report.TotalResult,
		AvgResult:    report.AvgResult,
		AvgDeviation: report.AvgDeviation,
		Trend:        report.Trend,
	}
	if len(report.Periods) > 1 {
		first := report.Periods[0].RealResult
		last := report.Periods[len(report.Periods)-1].RealResult
		out.TrendPct = services.PctDelta(last, first)
	}
	for _, p := range report.Periods {
		out.Periods = append(out.Periods, kpiPeriodJSON{
			Period:          p.Period.Key(),
			RealIncome:      p.RealIncome,
			RealExpense:     p.RealExpense,
			RealResult:      p.RealResult,
			ResultDeviation: p.ResultDeviation,
		})
	}
	for _, seg := range report.Segments {
		out.Segments = append(out.Segments, kpiSegmentJSON{
			SegmentID:  seg.SegmentID,
			DetailType: string(seg.DetailType),
			Values:     seg.Values,
		})
	}
	return out
}

func (s *Server) handleKpis(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromRequest(r)
	limit := limitFromQuery(r, services.DefaultKpiLimit)
	cacheKey := fmt.Sprintf("%s|%d", owner, limit)

	if cached, ok := s.kpiCache.Get(cacheKey); ok {
		slog.DebugContext(r.Context(), "KPI cache hit", "owner", owner, "limit", limit)
		writeJSON(w, http.StatusOK, toKpiJSON(cached))
		return
	}

	report, err := s.kpi.Fetch(r.Context(), owner, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.kpiCache.Set(cacheKey, report)
	writeJSON(w, http.StatusOK, toKpiJSON(report))
}
