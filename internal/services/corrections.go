package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/core"
	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/ports"
)

// HeaderPatch is a manual correction to a persisted header. Nil fields are
// left untouched.
type HeaderPatch struct {
	LiquiditySnapshot *int64
	ExpectedIncome    *int64
	RealIncome        *int64
	ExpectedExpense   *int64
	RealExpense       *int64
}

// LinePatch is a manual correction to one detail line.
type LinePatch struct {
	Expected     *int64
	Real         *int64
	IncludeInKpi *bool
}

func (p HeaderPatch) empty() bool {
	return p.LiquiditySnapshot == nil && p.ExpectedIncome == nil && p.RealIncome == nil &&
		p.ExpectedExpense == nil && p.RealExpense == nil
}

func (p LinePatch) empty() bool {
	return p.Expected == nil && p.Real == nil && p.IncludeInKpi == nil
}

// Corrector applies manual-correction edits. It is the only mutation path
// for persisted closures besides delete; every edit recomputes the derived
// fields so the sign convention cannot drift.
type Corrector struct {
	closures ports.ClosureStore
}

func NewCorrector(closures ports.ClosureStore) *Corrector {
	return &Corrector{closures: closures}
}

// PatchHeader applies a partial edit to a header, recomputes results and
// deviation, bumps the version and returns the stored row.
func (c *Corrector) PatchHeader(ctx context.Context, closureID int64, patch HeaderPatch) (core.ClosureHeader, error) {
	if patch.empty() {
		return core.ClosureHeader{}, &core.ValidationError{Field: "patch", Reason: "no fields to update"}
	}

	header, err := c.closures.GetClosure(ctx, closureID)
	if err != nil {
		return core.ClosureHeader{}, fmt.Errorf("get closure %d: %w", closureID, err)
	}

	if patch.LiquiditySnapshot != nil {
		header.LiquiditySnapshot = *patch.LiquiditySnapshot
	}
	if patch.ExpectedIncome != nil {
		header.ExpectedIncome = *patch.ExpectedIncome
	}
	if patch.RealIncome != nil {
		header.RealIncome = *patch.RealIncome
	}
	if patch.ExpectedExpense != nil {
		if *patch.ExpectedExpense < 0 {
			return core.ClosureHeader{}, &core.ValidationError{Field: "expectedExpenseTotal", Reason: "expense totals are positive magnitudes"}
		}
		header.ExpectedExpenseTotal = *patch.ExpectedExpense
	}
	if patch.RealExpense != nil {
		if *patch.RealExpense < 0 {
			return core.ClosureHeader{}, &core.ValidationError{Field: "realExpenseTotal", Reason: "expense totals are positive magnitudes"}
		}
		header.RealExpenseTotal = *patch.RealExpense
	}

	header.ExpectedResult = header.ExpectedIncome - header.ExpectedExpenseTotal
	header.RealResult = header.RealIncome - header.RealExpenseTotal
	header.ResultDeviation = core.ResultDeviation(header.ExpectedResult, header.RealResult)

	updated, err := c.closures.UpdateClosureHeader(ctx, header)
	if err != nil {
		return core.ClosureHeader{}, fmt.Errorf("update closure %d: %w", closureID, err)
	}

	slog.InfoContext(ctx, "Closure header corrected",
		"closure_id", closureID,
		"version", updated.Version,
		"result_deviation_cents", updated.ResultDeviation)

	return updated, nil
}

// PatchDetailLine applies a partial edit to one line and recomputes its
// deviation and fulfillment from the line's own detail type.
func (c *Corrector) PatchDetailLine(ctx context.Context, lineID int64, patch LinePatch) (core.ClosureDetailLine, error) {
	if patch.empty() {
		return core.ClosureDetailLine{}, &core.ValidationError{Field: "patch", Reason: "no fields to update"}
	}

	line, err := c.closures.GetDetailLine(ctx, lineID)
	if err != nil {
		return core.ClosureDetailLine{}, fmt.Errorf("get detail line %d: %w", lineID, err)
	}

	if patch.Expected != nil {
		line.Expected = *patch.Expected
	}
	if patch.Real != nil {
		line.Real = *patch.Real
	}
	if patch.IncludeInKpi != nil {
		line.IncludeInKpi = *patch.IncludeInKpi
	}

	line.Deviation = core.Deviation(line.DetailType.Kind(), line.Expected, line.Real)
	line.FulfillmentPct = fulfillmentPct(line.Expected, line.Real)

	updated, err := c.closures.UpdateDetailLine(ctx, line)
	if err != nil {
		return core.ClosureDetailLine{}, fmt.Errorf("update detail line %d: %w", lineID, err)
	}

	slog.InfoContext(ctx, "Detail line corrected",
		"line_id", lineID,
		"closure_id", updated.ClosureID,
		"deviation_cents", updated.Deviation)

	return updated, nil
}
