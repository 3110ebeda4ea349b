package services

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/core"
)

// segmentIDs gives each detail type a stable segment id so lines can be
// matched across periods without string joins.
var segmentIDs = map[core.DetailType]int64{
	core.DetailEveryday:   1,
	core.DetailHousing:    2,
	core.DetailManageable: 3,
	core.DetailExtra:      4,
	core.DetailIncome:     5,
}

// recordRealValue is the single place that applies the criterion to a
// record's real side. Cash counts only paid records; accrual counts every
// registered record, valuing pending ones at their expected amount.
func recordRealValue(rec core.FinancialRecord, criterion core.Criterion) int64 {
	if rec.Status == core.StatusPaid {
		return rec.Real
	}
	if criterion == core.CriterionAccrual {
		return rec.Expected
	}
	return 0
}

// buildSnapshot aggregates a period's records into the closure snapshot.
// Both the preview calculator and the generator run through here, which is
// what keeps preview and commit equivalent: there is no second formula.
//
// liquidityBase is the previous closure's liquidity snapshot (0 when the
// period has no predecessor); the new snapshot carries base plus this
// period's real result.
func buildSnapshot(ownerID string, period core.Period, criterion core.Criterion, records []core.FinancialRecord, liquidityBase int64, asOf time.Time) core.ClosureSnapshot {
	type bucket struct {
		expected  int64
		real      int64
		itemCount int
	}
	buckets := make(map[core.DetailType]*bucket)

	snap := core.ClosureSnapshot{
		OwnerID:   ownerID,
		Period:    period,
		Criterion: criterion,
		AsOf:      asOf,
	}

	for _, rec := range records {
		real := recordRealValue(rec, criterion)
		b := buckets[rec.DetailType]
		if b == nil {
			b = &bucket{}
			buckets[rec.DetailType] = b
		}
		b.expected += rec.Expected
		b.real += real
		b.itemCount++

		if rec.Kind == core.KindIncome {
			snap.ExpectedIncome += rec.Expected
			snap.RealIncome += real
		} else {
			snap.ExpectedExpenseTotal += rec.Expected
			snap.RealExpenseTotal += real
		}
	}

	snap.ExpectedResult = snap.ExpectedIncome - snap.ExpectedExpenseTotal
	snap.RealResult = snap.RealIncome - snap.RealExpenseTotal
	snap.ResultDeviation = core.ResultDeviation(snap.ExpectedResult, snap.RealResult)
	snap.LiquiditySnapshot = liquidityBase + snap.RealResult

	for dt, b := range buckets {
		kind := dt.Kind()
		snap.Lines = append(snap.Lines, core.ClosureDetailLine{
			Period:         period,
			SegmentID:      segmentIDs[dt],
			DetailType:     dt,
			Expected:       b.expected,
			Real:           b.real,
			Deviation:      core.Deviation(kind, b.expected, b.real),
			FulfillmentPct: fulfillmentPct(b.expected, b.real),
			ItemCount:      b.itemCount,
			// Extraordinary lines distort trend series, so they are
			// excluded from KPI aggregation by default.
			IncludeInKpi: dt != core.DetailExtra,
		})
	}

	sort.Slice(snap.Lines, func(i, j int) bool {
		return snap.Lines[i].SegmentID < snap.Lines[j].SegmentID
	})

	return snap
}

// fulfillmentPct returns real/expected in cents of a percent (1234 means
// 12.34%), half-up rounded. Zero expected yields zero: there is no
// meaningful fulfillment of an unbudgeted segment.
func fulfillmentPct(expected, real int64) int64 {
	if expected == 0 {
		return 0
	}
	return decimal.New(real, 0).
		Mul(decimal.New(10000, 0)).
		DivRound(decimal.New(expected, 0), 0).
		IntPart()
}
