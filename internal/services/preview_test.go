package services

import (
	"context"
	"testing"
	"time"

	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/core"
)

var testClock = func() time.Time { return time.Date(2025, 12, 3, 9, 0, 0, 0, time.UTC) }

// november2025Records reproduces the documented closure scenario: expected
// income 2800.00 against expenses 1800.00 (expected result 1000.00), real
// income 3000.00 against real expenses 1800.00 (real result 1200.00).
func november2025Records(owner string) []core.FinancialRecord {
	period := core.Period{Year: 2025, Month: 11}
	return []core.FinancialRecord{
		{ID: 1, OwnerID: owner, Period: period, ContainerID: 10, Kind: core.KindIncome,
			DetailType: core.DetailIncome, Expected: 280000, Real: 300000, Status: core.StatusPaid},
		{ID: 2, OwnerID: owner, Period: period, ContainerID: 11, Kind: core.KindExpense,
			DetailType: core.DetailEveryday, Expected: 100000, Real: 90000, Status: core.StatusPaid},
		{ID: 3, OwnerID: owner, Period: period, ContainerID: 12, Kind: core.KindExpense,
			DetailType: core.DetailHousing, Expected: 80000, Real: 90000, Status: core.StatusPaid},
	}
}

func TestPreview_ScenarioTotals(t *testing.T) {
	ctx := context.Background()
	period := core.Period{Year: 2025, Month: 11}
	closures := newMemClosureStore()
	records := &memRecordStore{records: november2025Records("o1")}

	calc := NewPreviewCalculator(closures, records, testClock)
	snap, err := calc.Preview(ctx, "o1", period, core.CriterionCash)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}

	if snap.RealIncome != 300000 {
		t.Errorf("RealIncome = %d, want 300000", snap.RealIncome)
	}
	if snap.RealExpenseTotal != 180000 {
		t.Errorf("RealExpenseTotal = %d, want 180000", snap.RealExpenseTotal)
	}
	if snap.ExpectedResult != 100000 {
		t.Errorf("ExpectedResult = %d, want 100000", snap.ExpectedResult)
	}
	if snap.RealResult != 120000 {
		t.Errorf("RealResult = %d, want 120000", snap.RealResult)
	}
	if snap.ResultDeviation != 20000 {
		t.Errorf("ResultDeviation = %d, want 20000", snap.ResultDeviation)
	}
	if core.Classify(snap.ResultDeviation) != core.DeviationFavorable {
		t.Error("a +200.00 deviation must classify as favorable")
	}
	if len(snap.Lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(snap.Lines))
	}
	if snap.AsOf != testClock() {
		t.Errorf("AsOf = %v", snap.AsOf)
	}
}

func TestPreview_CriterionValuation(t *testing.T) {
	ctx := context.Background()
	period := core.Period{Year: 2025, Month: 11}
	recs := november2025Records("o1")
	// Make the housing expense pending: cash ignores it on the real side,
	// accrual values it at its expected amount.
	recs[2].Status = core.StatusPending
	closures := newMemClosureStore()
	records := &memRecordStore{records: recs}
	calc := NewPreviewCalculator(closures, records, testClock)

	cash, err := calc.Preview(ctx, "o1", period, core.CriterionCash)
	if err != nil {
		t.Fatalf("Preview(cash): %v", err)
	}
	if cash.RealExpenseTotal != 90000 {
		t.Errorf("cash RealExpenseTotal = %d, want 90000", cash.RealExpenseTotal)
	}

	accrual, err := calc.Preview(ctx, "o1", period, core.CriterionAccrual)
	if err != nil {
		t.Fatalf("Preview(accrual): %v", err)
	}
	if accrual.RealExpenseTotal != 90000+80000 {
		t.Errorf("accrual RealExpenseTotal = %d, want 170000", accrual.RealExpenseTotal)
	}
}

func TestPreview_DetailLineDeviations(t *testing.T) {
	ctx := context.Background()
	period := core.Period{Year: 2025, Month: 11}
	closures := newMemClosureStore()
	records := &memRecordStore{records: november2025Records("o1")}
	calc := NewPreviewCalculator(closures, records, testClock)

	snap, err := calc.Preview(ctx, "o1", period, core.CriterionCash)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}

	byType := make(map[core.DetailType]core.ClosureDetailLine)
	for _, line := range snap.Lines {
		byType[line.DetailType] = line
	}

	// Income earned 200.00 above expectation: favorable.
	if got := byType[core.DetailIncome].Deviation; got != 20000 {
		t.Errorf("income deviation = %d, want 20000", got)
	}
	// Everyday spent 100.00 under budget: favorable.
	if got := byType[core.DetailEveryday].Deviation; got != 10000 {
		t.Errorf("everyday deviation = %d, want 10000", got)
	}
	// Housing overspent 100.00: unfavorable.
	if got := byType[core.DetailHousing].Deviation; got != -10000 {
		t.Errorf("housing deviation = %d, want -10000", got)
	}
	// Everyday fulfillment: 900/1000 = 90.00%.
	if got := byType[core.DetailEveryday].FulfillmentPct; got != 9000 {
		t.Errorf("everyday fulfillment = %d, want 9000", got)
	}
}

// TestPreviewGenerateEquivalence is the preview/commit contract: preview
// immediately before generate yields the values the generator persists.
func TestPreviewGenerateEquivalence(t *testing.T) {
	ctx := context.Background()
	period := core.Period{Year: 2025, Month: 11}
	closures := newMemClosureStore()
	records := &memRecordStore{records: november2025Records("o1")}
	settings := &memSettings{allowed: true}

	calc := NewPreviewCalculator(closures, records, testClock)
	evaluator := NewEligibilityEvaluator(closures, records, settings, testClock)
	gen := NewGenerator(closures, records, evaluator, nil, testClock)

	snap, err := calc.Preview(ctx, "o1", period, core.CriterionCash)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	header, err := gen.Generate(ctx, "o1", period, core.CriterionCash, GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if header.RealIncome != snap.RealIncome {
		t.Errorf("RealIncome: persisted %d, previewed %d", header.RealIncome, snap.RealIncome)
	}
	if header.RealExpenseTotal != snap.RealExpenseTotal {
		t.Errorf("RealExpenseTotal: persisted %d, previewed %d", header.RealExpenseTotal, snap.RealExpenseTotal)
	}
	if header.RealResult != snap.RealResult {
		t.Errorf("RealResult: persisted %d, previewed %d", header.RealResult, snap.RealResult)
	}
	if header.ExpectedResult != snap.ExpectedResult {
		t.Errorf("ExpectedResult: persisted %d, previewed %d", header.ExpectedResult, snap.ExpectedResult)
	}
	if header.ResultDeviation != snap.ResultDeviation {
		t.Errorf("ResultDeviation: persisted %d, previewed %d", header.ResultDeviation, snap.ResultDeviation)
	}
	if header.LiquiditySnapshot != snap.LiquiditySnapshot {
		t.Errorf("LiquiditySnapshot: persisted %d, previewed %d", header.LiquiditySnapshot, snap.LiquiditySnapshot)
	}
}

func TestPreview_LiquidityChainsFromPreviousClosure(t *testing.T) {
	ctx := context.Background()
	closures := newMemClosureStore()
	records := &memRecordStore{records: november2025Records("o1")}
	settings := &memSettings{allowed: true}

	// Close October with a known liquidity, then preview November.
	october := core.Period{Year: 2025, Month: 10}
	octRecords := &memRecordStore{records: []core.FinancialRecord{
		{ID: 9, OwnerID: "o1", Period: october, Kind: core.KindIncome,
			DetailType: core.DetailIncome, Expected: 50000, Real: 50000, Status: core.StatusPaid},
	}}
	octGen := NewGenerator(closures, octRecords, NewEligibilityEvaluator(closures, octRecords, settings, testClock), nil, testClock)
	octHeader, err := octGen.Generate(ctx, "o1", october, core.CriterionCash, GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate(october): %v", err)
	}
	if octHeader.LiquiditySnapshot != 50000 {
		t.Fatalf("october liquidity = %d, want 50000", octHeader.LiquiditySnapshot)
	}

	calc := NewPreviewCalculator(closures, records, testClock)
	snap, err := calc.Preview(ctx, "o1", core.Period{Year: 2025, Month: 11}, core.CriterionCash)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if snap.LiquiditySnapshot != 50000+120000 {
		t.Errorf("november liquidity = %d, want 170000", snap.LiquiditySnapshot)
	}
}
