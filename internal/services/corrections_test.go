package services

import (
	"context"
	"errors"
	"testing"

	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/core"
)

func correctionFixture(t *testing.T) (context.Context, *memClosureStore, core.ClosureHeader, *Corrector) {
	t.Helper()
	ctx := context.Background()
	closures := newMemClosureStore()
	records := &memRecordStore{records: november2025Records("o1")}
	gen := newTestGenerator(closures, records, nil)
	header, err := gen.Generate(ctx, "o1", core.Period{Year: 2025, Month: 11}, core.CriterionCash, GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return ctx, closures, header, NewCorrector(closures)
}

func TestCorrector_PatchHeaderRecomputesDerivedFields(t *testing.T) {
	ctx, _, header, corrector := correctionFixture(t)

	realIncome := int64(310000)
	updated, err := corrector.PatchHeader(ctx, header.ID, HeaderPatch{RealIncome: &realIncome})
	if err != nil {
		t.Fatalf("PatchHeader: %v", err)
	}

	if updated.RealIncome != 310000 {
		t.Errorf("RealIncome = %d", updated.RealIncome)
	}
	if updated.RealResult != 310000-180000 {
		t.Errorf("RealResult = %d, want 130000", updated.RealResult)
	}
	if updated.ResultDeviation != 30000 {
		t.Errorf("ResultDeviation = %d, want 30000", updated.ResultDeviation)
	}
	if updated.Version != header.Version+1 {
		t.Errorf("Version = %d, want %d", updated.Version, header.Version+1)
	}
}

func TestCorrector_PatchHeaderRejectsNegativeExpenseTotals(t *testing.T) {
	ctx, _, header, corrector := correctionFixture(t)

	bad := int64(-100)
	_, err := corrector.PatchHeader(ctx, header.ID, HeaderPatch{RealExpense: &bad})
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
}

func TestCorrector_PatchHeaderEmptyPatch(t *testing.T) {
	ctx, _, header, corrector := correctionFixture(t)

	_, err := corrector.PatchHeader(ctx, header.ID, HeaderPatch{})
	var verr *core.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
}

func TestCorrector_PatchHeaderUnknownID(t *testing.T) {
	ctx, _, _, corrector := correctionFixture(t)

	v := int64(1)
	_, err := corrector.PatchHeader(ctx, 9999, HeaderPatch{RealIncome: &v})
	if !core.IsNotFound(err) {
		t.Errorf("error = %v, want not-found", err)
	}
}

func TestCorrector_PatchDetailLineRecomputesDeviation(t *testing.T) {
	ctx, closures, header, corrector := correctionFixture(t)

	lines, err := closures.GetClosureDetails(ctx, header.ID)
	if err != nil {
		t.Fatalf("GetClosureDetails: %v", err)
	}
	var everyday core.ClosureDetailLine
	for _, line := range lines {
		if line.DetailType == core.DetailEveryday {
			everyday = line
		}
	}
	if everyday.ID == 0 {
		t.Fatal("everyday line not found")
	}

	// Correct the real spend from 900.00 up to 1100.00: the expense line
	// flips from favorable to unfavorable.
	real := int64(110000)
	updated, err := corrector.PatchDetailLine(ctx, everyday.ID, LinePatch{Real: &real})
	if err != nil {
		t.Fatalf("PatchDetailLine: %v", err)
	}
	if updated.Deviation != -10000 {
		t.Errorf("Deviation = %d, want -10000", updated.Deviation)
	}
	if core.Classify(updated.Deviation) != core.DeviationUnfavorable {
		t.Error("overspend must classify unfavorable")
	}
	if updated.FulfillmentPct != 11000 {
		t.Errorf("FulfillmentPct = %d, want 11000", updated.FulfillmentPct)
	}
}

func TestCorrector_PatchDetailLineToggleKpi(t *testing.T) {
	ctx, closures, header, corrector := correctionFixture(t)

	lines, _ := closures.GetClosureDetails(ctx, header.ID)
	exclude := false
	updated, err := corrector.PatchDetailLine(ctx, lines[0].ID, LinePatch{IncludeInKpi: &exclude})
	if err != nil {
		t.Fatalf("PatchDetailLine: %v", err)
	}
	if updated.IncludeInKpi {
		t.Error("IncludeInKpi should be false after patch")
	}
}
