package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/core"
	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/ports"
)

// DefaultKpiLimit is how many recent closures feed the KPI report when the
// caller does not say otherwise.
const DefaultKpiLimit = 12

// detailFetchParallelism bounds the concurrent detail-line reads.
const detailFetchParallelism = 4

type (
	// ClosureWithDetails pairs a persisted header with its lines.
	ClosureWithDetails struct {
		Header core.ClosureHeader
		Lines  []core.ClosureDetailLine
	}

	// PeriodPoint is one period's entry in the charting series.
	PeriodPoint struct {
		Period          core.Period
		RealIncome      int64
		RealExpense     int64
		RealResult      int64
		ResultDeviation int64
	}

	// SegmentSeries is one detail type's real values across all periods.
	// Values is index-aligned with the period series: a period without a
	// line for the segment contributes 0, never a gap.
	SegmentSeries struct {
		SegmentID  int64
		DetailType core.DetailType
		Values     []int64
	}

	// KpiReport is the aggregate over the most recent N closures.
	KpiReport struct {
		Count        int
		TotalIncome  int64
		TotalExpense int64
		TotalResult  int64
		AvgResult    decimal.Decimal
		AvgDeviation decimal.Decimal
		// Trend is last minus first real result. A plain delta, not a
		// regression.
		Trend    int64
		Periods  []PeriodPoint
		Segments []SegmentSeries
	}
)

// KpiAggregator folds persisted closures into summary, trend and series
// data. It only ever consumes persisted closures; previews never enter KPI
// aggregation.
type KpiAggregator struct {
	closures ports.ClosureStore
}

func NewKpiAggregator(closures ports.ClosureStore) *KpiAggregator {
	return &KpiAggregator{closures: closures}
}

// Fetch loads the most recent limit closures with their detail lines and
// aggregates them. Detail lines are fetched concurrently; reads are safe to
// run in parallel and to retry.
func (a *KpiAggregator) Fetch(ctx context.Context, ownerID string, limit int) (KpiReport, error) {
	if limit <= 0 {
		limit = DefaultKpiLimit
	}

	headers, err := a.closures.ListRecentClosures(ctx, ownerID, limit)
	if err != nil {
		return KpiReport{}, fmt.Errorf("list recent closures: %w", err)
	}

	withDetails := make([]ClosureWithDetails, len(headers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailFetchParallelism)
	for i, h := range headers {
		g.Go(func() error {
			lines, err := a.closures.GetClosureDetails(gctx, h.ID)
			if err != nil {
				return fmt.Errorf("details of closure %d: %w", h.ID, err)
			}
			withDetails[i] = ClosureWithDetails{Header: h, Lines: lines}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return KpiReport{}, err
	}

	return Aggregate(withDetails), nil
}

// Aggregate folds an ascending-ordered closure list into a report. Pure:
// no store access, so it is directly testable.
func Aggregate(closures []ClosureWithDetails) KpiReport {
	report := KpiReport{Count: len(closures)}
	if len(closures) == 0 {
		report.AvgResult = decimal.Zero
		report.AvgDeviation = decimal.Zero
		return report
	}

	sumDeviation := int64(0)
	segmentTypes := make(map[core.DetailType]int64) // type -> segment id

	for _, c := range closures {
		h := c.Header
		report.TotalIncome += h.RealIncome
		report.TotalExpense += h.RealExpenseTotal
		report.TotalResult += h.RealResult
		sumDeviation += h.ResultDeviation

		report.Periods = append(report.Periods, PeriodPoint{
			Period:          h.Period,
			RealIncome:      h.RealIncome,
			RealExpense:     h.RealExpenseTotal,
			RealResult:      h.RealResult,
			ResultDeviation: h.ResultDeviation,
		})

		for _, line := range c.Lines {
			if !line.IncludeInKpi {
				continue
			}
			segmentTypes[line.DetailType] = line.SegmentID
		}
	}

	n := decimal.New(int64(len(closures)), 0)
	report.AvgResult = core.Money{Cents: report.TotalResult}.Decimal().DivRound(n, 2)
	report.AvgDeviation = core.Money{Cents: sumDeviation}.Decimal().DivRound(n, 2)
	report.Trend = closures[len(closures)-1].Header.RealResult - closures[0].Header.RealResult

	// Build index-aligned per-segment series: one value per period for
	// every segment seen anywhere in the window.
	types := make([]core.DetailType, 0, len(segmentTypes))
	for dt := range segmentTypes {
		types = append(types, dt)
	}
	sort.Slice(types, func(i, j int) bool {
		return segmentTypes[types[i]] < segmentTypes[types[j]]
	})

	for _, dt := range types {
		series := SegmentSeries{
			SegmentID:  segmentTypes[dt],
			DetailType: dt,
			Values:     make([]int64, len(closures)),
		}
		for i, c := range closures {
			for _, line := range c.Lines {
				if line.DetailType == dt && line.IncludeInKpi {
					series.Values[i] = line.Real
					break
				}
			}
		}
		report.Segments = append(report.Segments, series)
	}

	return report
}

// PctDelta returns the percentage change from previous to current, or nil
// when the baseline is exactly zero (shown as an em dash by clients rather
// than an infinite percentage).
func PctDelta(current, previous int64) *decimal.Decimal {
	if previous == 0 {
		return nil
	}
	d := decimal.New(current-previous, 0).
		Mul(decimal.New(100, 0)).
		DivRound(decimal.New(previous, 0), 1)
	return &d
}
