package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/core"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "closure.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testSnapshot(owner string, period core.Period, criterion core.Criterion) core.ClosureSnapshot {
	return core.ClosureSnapshot{
		OwnerID:              owner,
		Period:               period,
		Criterion:            criterion,
		LiquiditySnapshot:    120000,
		ExpectedIncome:       280000,
		RealIncome:           300000,
		ExpectedExpenseTotal: 180000,
		RealExpenseTotal:     180000,
		ExpectedResult:       100000,
		RealResult:           120000,
		ResultDeviation:      20000,
		Lines: []core.ClosureDetailLine{
			{
				Period:         period,
				SegmentID:      1,
				DetailType:     core.DetailEveryday,
				Expected:       100000,
				Real:           90000,
				Deviation:      10000,
				FulfillmentPct: 9000,
				ItemCount:      3,
				IncludeInKpi:   true,
			},
			{
				Period:         period,
				SegmentID:      5,
				DetailType:     core.DetailIncome,
				Expected:       280000,
				Real:           300000,
				Deviation:      20000,
				FulfillmentPct: 10714,
				ItemCount:      1,
				IncludeInKpi:   true,
			},
		},
		AsOf: time.Date(2025, 12, 3, 9, 0, 0, 0, time.UTC),
	}
}

func TestSaveClosure_RoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	period := core.Period{Year: 2025, Month: 11}

	header, err := repo.SaveClosure(ctx, testSnapshot("casa", period, core.CriterionCash), false)
	if err != nil {
		t.Fatalf("SaveClosure() error = %v", err)
	}
	if header.ID == 0 {
		t.Fatal("SaveClosure() returned zero ID")
	}
	if header.Version != 1 {
		t.Errorf("Version = %d, want 1", header.Version)
	}
	if header.RealResult != 120000 {
		t.Errorf("RealResult = %d, want 120000", header.RealResult)
	}

	lines, err := repo.GetClosureDetails(ctx, header.ID)
	if err != nil {
		t.Fatalf("GetClosureDetails() error = %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("len(lines) = %d, want 2", len(lines))
	}
	if lines[0].SegmentID != 1 || lines[1].SegmentID != 5 {
		t.Errorf("lines not ordered by segment: %d, %d", lines[0].SegmentID, lines[1].SegmentID)
	}
	if lines[1].Deviation != 20000 {
		t.Errorf("income line deviation = %d, want 20000", lines[1].Deviation)
	}

	found, err := repo.FindClosure(ctx, "casa", period, core.CriterionCash)
	if err != nil {
		t.Fatalf("FindClosure() error = %v", err)
	}
	if found == nil || found.ID != header.ID {
		t.Errorf("FindClosure() = %+v, want ID %d", found, header.ID)
	}
}

func TestSaveClosure_DuplicateConflicts(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	period := core.Period{Year: 2025, Month: 11}
	snap := testSnapshot("casa", period, core.CriterionCash)

	if _, err := repo.SaveClosure(ctx, snap, false); err != nil {
		t.Fatalf("first SaveClosure() error = %v", err)
	}

	_, err := repo.SaveClosure(ctx, snap, false)
	var conflict *core.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("duplicate SaveClosure() error = %v, want ConflictError", err)
	}

	// Same period under the other criterion is a separate closure.
	if _, err := repo.SaveClosure(ctx, testSnapshot("casa", period, core.CriterionAccrual), false); err != nil {
		t.Fatalf("SaveClosure(accrual) error = %v", err)
	}

	all, err := repo.ListClosures(ctx, "casa")
	if err != nil {
		t.Fatalf("ListClosures() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("len(closures) = %d, want 2", len(all))
	}
}

func TestSaveClosure_OverwriteReplaces(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	period := core.Period{Year: 2025, Month: 11}

	first, err := repo.SaveClosure(ctx, testSnapshot("casa", period, core.CriterionCash), false)
	if err != nil {
		t.Fatalf("SaveClosure() error = %v", err)
	}

	snap := testSnapshot("casa", period, core.CriterionCash)
	snap.RealExpenseTotal = 185000
	snap.RealResult = 115000
	snap.ResultDeviation = 15000

	second, err := repo.SaveClosure(ctx, snap, true)
	if err != nil {
		t.Fatalf("overwrite SaveClosure() error = %v", err)
	}
	if second.RealExpenseTotal != 185000 {
		t.Errorf("RealExpenseTotal = %d, want 185000", second.RealExpenseTotal)
	}

	if _, err := repo.GetClosure(ctx, first.ID); !core.IsNotFound(err) {
		t.Errorf("old closure still readable, err = %v", err)
	}
	all, err := repo.ListClosures(ctx, "casa")
	if err != nil {
		t.Fatalf("ListClosures() error = %v", err)
	}
	if len(all) != 1 {
		t.Errorf("len(closures) = %d, want 1", len(all))
	}
}

func TestListRecentClosures_AscendingAcrossYears(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	periods := []core.Period{
		{Year: 2025, Month: 10},
		{Year: 2025, Month: 12},
		{Year: 2026, Month: 1},
		{Year: 2025, Month: 11},
	}
	for _, p := range periods {
		if _, err := repo.SaveClosure(ctx, testSnapshot("casa", p, core.CriterionCash), false); err != nil {
			t.Fatalf("SaveClosure(%s) error = %v", p, err)
		}
	}

	recent, err := repo.ListRecentClosures(ctx, "casa", 3)
	if err != nil {
		t.Fatalf("ListRecentClosures() error = %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("len(recent) = %d, want 3", len(recent))
	}
	want := []string{"2025-11", "2025-12", "2026-01"}
	for i, p := range want {
		if recent[i].Period.Key() != p {
			t.Errorf("recent[%d] = %s, want %s", i, recent[i].Period.Key(), p)
		}
	}
}

func TestDeleteClosure(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	period := core.Period{Year: 2025, Month: 11}

	header, err := repo.SaveClosure(ctx, testSnapshot("casa", period, core.CriterionCash), false)
	if err != nil {
		t.Fatalf("SaveClosure() error = %v", err)
	}
	if err := repo.DeleteClosure(ctx, header.ID); err != nil {
		t.Fatalf("DeleteClosure() error = %v", err)
	}
	lines, err := repo.GetClosureDetails(ctx, header.ID)
	if err != nil {
		t.Fatalf("GetClosureDetails() error = %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("lines survive deleted closure: %d", len(lines))
	}
	if err := repo.DeleteClosure(ctx, header.ID); !core.IsNotFound(err) {
		t.Errorf("second DeleteClosure() error = %v, want not found", err)
	}
}

func TestUpdateClosureHeader_OptimisticLock(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	period := core.Period{Year: 2025, Month: 11}

	header, err := repo.SaveClosure(ctx, testSnapshot("casa", period, core.CriterionCash), false)
	if err != nil {
		t.Fatalf("SaveClosure() error = %v", err)
	}

	header.RealIncome = 310000
	header.RealResult = 130000
	header.ResultDeviation = 30000
	updated, err := repo.UpdateClosureHeader(ctx, header)
	if err != nil {
		t.Fatalf("UpdateClosureHeader() error = %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("Version = %d, want 2", updated.Version)
	}
	if updated.RealIncome != 310000 {
		t.Errorf("RealIncome = %d, want 310000", updated.RealIncome)
	}

	// Stale version must not win.
	header.RealIncome = 999999
	if _, err := repo.UpdateClosureHeader(ctx, header); err == nil {
		t.Error("stale UpdateClosureHeader() succeeded, want error")
	}
}

func TestUpdateDetailLine(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	period := core.Period{Year: 2025, Month: 11}

	header, err := repo.SaveClosure(ctx, testSnapshot("casa", period, core.CriterionCash), false)
	if err != nil {
		t.Fatalf("SaveClosure() error = %v", err)
	}
	lines, err := repo.GetClosureDetails(ctx, header.ID)
	if err != nil {
		t.Fatalf("GetClosureDetails() error = %v", err)
	}

	line := lines[0]
	line.Real = 110000
	line.Deviation = -10000
	line.FulfillmentPct = 11000
	line.IncludeInKpi = false
	updated, err := repo.UpdateDetailLine(ctx, line)
	if err != nil {
		t.Fatalf("UpdateDetailLine() error = %v", err)
	}
	if updated.Deviation != -10000 || updated.IncludeInKpi {
		t.Errorf("updated line = %+v", updated)
	}

	if _, err := repo.GetDetailLine(ctx, 424242); !core.IsNotFound(err) {
		t.Errorf("GetDetailLine(missing) error = %v, want not found", err)
	}
}

func seedRecord(t *testing.T, repo *SQLiteRepository, rec core.FinancialRecord) int64 {
	t.Helper()
	id, err := repo.CreateRecord(context.Background(), rec)
	if err != nil {
		t.Fatalf("CreateRecord() error = %v", err)
	}
	return id
}

func TestRecordStore_CountsAndReset(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	nov := core.Period{Year: 2025, Month: 11}

	containerID, err := repo.CreateContainer(ctx, core.Container{
		OwnerID: "casa", Name: "spesa", Kind: core.KindExpense,
		DetailType: core.DetailEveryday, Visible: true,
	})
	if err != nil {
		t.Fatalf("CreateContainer() error = %v", err)
	}

	base := core.FinancialRecord{
		OwnerID: "casa", Period: nov, ContainerID: containerID,
		DetailType: core.DetailEveryday, Kind: core.KindExpense,
		Expected: 10000, Real: 9000, Status: core.StatusPaid,
	}
	seedRecord(t, repo, base)
	pending := base
	pending.Status = core.StatusPending
	pending.Real = 0
	seedRecord(t, repo, pending)
	income := base
	income.Kind = core.KindIncome
	income.DetailType = core.DetailIncome
	seedRecord(t, repo, income)
	recurring := base
	recurring.TemplateID = 7
	recurring.InstallmentsPaid = 12
	recurring.InstallmentsTotal = 12
	seedRecord(t, repo, recurring)

	pendingCounts, err := repo.CountPending(ctx, "casa", nov)
	if err != nil {
		t.Fatalf("CountPending() error = %v", err)
	}
	if pendingCounts.Expense != 1 || pendingCounts.Income != 0 {
		t.Errorf("CountPending() = %+v, want 1 expense", pendingCounts)
	}

	resettable, lastInstallments, err := repo.CountResettable(ctx, "casa", nov)
	if err != nil {
		t.Fatalf("CountResettable() error = %v", err)
	}
	if resettable.Expense != 1 || resettable.Income != 1 {
		t.Errorf("CountResettable() = %+v, want 1 expense and 1 income", resettable)
	}
	if lastInstallments != 1 {
		t.Errorf("lastInstallments = %d, want 1", lastInstallments)
	}

	reset, err := repo.ResetPaidFlags(ctx, "casa", nov)
	if err != nil {
		t.Fatalf("ResetPaidFlags() error = %v", err)
	}
	if reset.Expense != 1 || reset.Income != 1 {
		t.Errorf("ResetPaidFlags() = %+v, want 1 expense and 1 income", reset)
	}

	// Rolled records now sit pending in December.
	dec := nov.Next()
	rolled, err := repo.ListRecords(ctx, "casa", dec)
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}
	if len(rolled) != 2 {
		t.Fatalf("len(rolled) = %d, want 2", len(rolled))
	}
	for _, rec := range rolled {
		if rec.Status != core.StatusPending {
			t.Errorf("rolled record %d status = %s, want pending", rec.ID, rec.Status)
		}
	}

	// Second run finds nothing left to flip.
	again, err := repo.ResetPaidFlags(ctx, "casa", nov)
	if err != nil {
		t.Fatalf("second ResetPaidFlags() error = %v", err)
	}
	if again.Total() != 0 {
		t.Errorf("second ResetPaidFlags() = %+v, want zero", again)
	}
}

func TestPaidMonthlyTotals_WindowAcrossYearBoundary(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	containerID, err := repo.CreateContainer(ctx, core.Container{
		OwnerID: "casa", Name: "spesa", Kind: core.KindExpense,
		DetailType: core.DetailEveryday, AverageDriven: true, Visible: true,
	})
	if err != nil {
		t.Fatalf("CreateContainer() error = %v", err)
	}

	months := map[core.Period]int64{
		{Year: 2025, Month: 11}: 20000,
		{Year: 2025, Month: 12}: 30000,
		{Year: 2026, Month: 1}:  10000,
		{Year: 2025, Month: 9}:  77777, // outside the window
	}
	for p, cents := range months {
		seedRecord(t, repo, core.FinancialRecord{
			OwnerID: "casa", Period: p, ContainerID: containerID,
			DetailType: core.DetailEveryday, Kind: core.KindExpense,
			Expected: cents, Real: cents, Status: core.StatusPaid,
		})
	}
	// Pending records never count toward averages.
	seedRecord(t, repo, core.FinancialRecord{
		OwnerID: "casa", Period: core.Period{Year: 2026, Month: 1},
		ContainerID: containerID, DetailType: core.DetailEveryday,
		Kind: core.KindExpense, Expected: 5000, Status: core.StatusPending,
	})

	totals, err := repo.PaidMonthlyTotals(ctx, containerID, core.Period{Year: 2026, Month: 1}, 3)
	if err != nil {
		t.Fatalf("PaidMonthlyTotals() error = %v", err)
	}
	if len(totals) != 3 {
		t.Fatalf("len(totals) = %d, want 3", len(totals))
	}
	if totals[0].Period.Key() != "2026-01" || totals[0].Cents != 10000 {
		t.Errorf("totals[0] = %+v", totals[0])
	}
	if totals[2].Period.Key() != "2025-11" || totals[2].Cents != 20000 {
		t.Errorf("totals[2] = %+v", totals[2])
	}
}

func TestReactivateDue_SkipsFinishedSeries(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	containerID, err := repo.CreateContainer(ctx, core.Container{
		OwnerID: "casa", Name: "bollette", Kind: core.KindExpense,
		DetailType: core.DetailHousing, Visible: true,
	})
	if err != nil {
		t.Fatalf("CreateContainer() error = %v", err)
	}

	templates := []core.RecurringTemplate{
		{OwnerID: "casa", ContainerID: containerID, DetailType: core.DetailHousing,
			Kind: core.KindExpense, Description: "luce", Amount: 8000, DueDay: 5},
		{OwnerID: "casa", ContainerID: containerID, DetailType: core.DetailIncome,
			Kind: core.KindIncome, Description: "stipendio", Amount: 280000, DueDay: 27},
		{OwnerID: "casa", ContainerID: containerID, DetailType: core.DetailManageable,
			Kind: core.KindExpense, Description: "rata finita", Amount: 15000, DueDay: 10,
			InstallmentsPaid: 12, InstallmentsTotal: 12},
		{OwnerID: "casa", ContainerID: containerID, DetailType: core.DetailHousing,
			Kind: core.KindExpense, Description: "affitto", Amount: 70000, DueDay: 1, Active: true},
	}
	for _, tpl := range templates {
		if _, err := repo.CreateTemplate(ctx, tpl); err != nil {
			t.Fatalf("CreateTemplate(%s) error = %v", tpl.Description, err)
		}
	}

	counts, err := repo.ReactivateDue(ctx, "casa")
	if err != nil {
		t.Fatalf("ReactivateDue() error = %v", err)
	}
	if counts.Expense != 1 || counts.Income != 1 {
		t.Errorf("ReactivateDue() = %+v, want 1 expense and 1 income", counts)
	}

	// Everything reactivatable is active now.
	again, err := repo.ReactivateDue(ctx, "casa")
	if err != nil {
		t.Fatalf("second ReactivateDue() error = %v", err)
	}
	if again.Total() != 0 {
		t.Errorf("second ReactivateDue() = %+v, want zero", again)
	}
}

func TestContainerStore(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	ids := make(map[string]int64)
	containers := []core.Container{
		{OwnerID: "casa", Name: "spesa", Kind: core.KindExpense,
			DetailType: core.DetailEveryday, BudgetCents: 40000,
			AverageDriven: true, Everyday: true, Visible: false},
		{OwnerID: "casa", Name: "stipendio", Kind: core.KindIncome,
			DetailType: core.DetailIncome, Visible: true},
		{OwnerID: "casa", Name: "casa", Kind: core.KindExpense,
			DetailType: core.DetailHousing, Everyday: true, Visible: true},
	}
	for _, c := range containers {
		id, err := repo.CreateContainer(ctx, c)
		if err != nil {
			t.Fatalf("CreateContainer(%s) error = %v", c.Name, err)
		}
		ids[c.Name] = id
	}

	avgDriven, err := repo.ListAverageDriven(ctx, "casa")
	if err != nil {
		t.Fatalf("ListAverageDriven() error = %v", err)
	}
	if len(avgDriven) != 1 || avgDriven[0].Name != "spesa" {
		t.Fatalf("ListAverageDriven() = %+v", avgDriven)
	}

	if err := repo.UpdateBudget(ctx, ids["spesa"], 14500); err != nil {
		t.Fatalf("UpdateBudget() error = %v", err)
	}
	if err := repo.UpdateBudget(ctx, 424242, 100); !core.IsNotFound(err) {
		t.Errorf("UpdateBudget(missing) error = %v, want not found", err)
	}

	forced, err := repo.ForceEverydayVisible(ctx, "casa")
	if err != nil {
		t.Fatalf("ForceEverydayVisible() error = %v", err)
	}
	if forced.Expense != 1 || forced.Income != 0 {
		t.Errorf("ForceEverydayVisible() = %+v, want 1 expense", forced)
	}

	all, err := repo.ListContainers(ctx, "casa")
	if err != nil {
		t.Fatalf("ListContainers() error = %v", err)
	}
	for _, c := range all {
		if c.Name == "spesa" {
			if c.BudgetCents != 14500 {
				t.Errorf("spesa budget = %d, want 14500", c.BudgetCents)
			}
			if !c.Visible {
				t.Error("spesa still hidden after forcing visibility")
			}
		}
	}
}

func TestResetAllowed(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	allowed, err := repo.ResetAllowed(ctx, "casa")
	if err != nil {
		t.Fatalf("ResetAllowed() error = %v", err)
	}
	if !allowed {
		t.Error("ResetAllowed() = false for unknown owner, want default true")
	}

	if err := repo.SetResetAllowed(ctx, "casa", false); err != nil {
		t.Fatalf("SetResetAllowed() error = %v", err)
	}
	allowed, err = repo.ResetAllowed(ctx, "casa")
	if err != nil {
		t.Fatalf("ResetAllowed() error = %v", err)
	}
	if allowed {
		t.Error("ResetAllowed() = true after disabling")
	}

	if err := repo.SetResetAllowed(ctx, "casa", true); err != nil {
		t.Fatalf("SetResetAllowed() re-enable error = %v", err)
	}
}
