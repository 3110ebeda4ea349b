package core

import (
	"strings"
	"time"
)

// Criterion selects the accounting basis a closure is computed under.
type Criterion string

const (
	// CriterionCash counts only paid records in the real totals.
	CriterionCash Criterion = "cash"
	// CriterionAccrual counts every registered record, valuing pending
	// ones at their expected amount.
	CriterionAccrual Criterion = "accrual"
)

func (c Criterion) IsValid() bool {
	return c == CriterionCash || c == CriterionAccrual
}

// DetailType is the per-segment category a detail line aggregates.
type DetailType string

const (
	DetailEveryday   DetailType = "everyday"
	DetailHousing    DetailType = "housing"
	DetailManageable DetailType = "manageable"
	DetailExtra      DetailType = "extra"
	DetailIncome     DetailType = "income"
)

func (dt DetailType) IsValid() bool {
	switch dt {
	case DetailEveryday, DetailHousing, DetailManageable, DetailExtra, DetailIncome:
		return true
	default:
		return false
	}
}

// Kind returns whether lines of this type follow the income or the expense
// deviation convention.
func (dt DetailType) Kind() RecordKind {
	if dt == DetailIncome {
		return KindIncome
	}
	return KindExpense
}

// RecordStatus is the settlement state of a financial record.
type RecordStatus string

const (
	StatusPending RecordStatus = "pending"
	StatusPaid    RecordStatus = "paid"
)

type (
	// ClosureHeader is the persisted financial summary for one period.
	// Expense totals are positive magnitudes; results are income minus
	// expense. At most one header exists per (owner, period, criterion).
	ClosureHeader struct {
		ID                   int64
		OwnerID              string
		Period               Period
		Criterion            Criterion
		LiquiditySnapshot    int64
		ExpectedIncome       int64
		RealIncome           int64
		ExpectedExpenseTotal int64
		RealExpenseTotal     int64
		ExpectedResult       int64
		RealResult           int64
		ResultDeviation      int64
		Version              int64
		CreatedAt            time.Time
	}

	// ClosureDetailLine is a per-segment breakdown row within a closure.
	// FulfillmentPct is real/expected in percent with two decimals,
	// carried as cents-of-a-percent (1234 = 12.34%); zero when expected
	// is zero.
	ClosureDetailLine struct {
		ID             int64
		ClosureID      int64
		Period         Period
		SegmentID      int64
		DetailType     DetailType
		Expected       int64
		Real           int64
		Deviation      int64
		FulfillmentPct int64
		ItemCount      int
		IncludeInKpi   bool
	}

	// ClosureSnapshot is what a closure would contain if generated now.
	// It shares the header's fields so preview and commit cannot drift.
	ClosureSnapshot struct {
		OwnerID              string
		Period               Period
		Criterion            Criterion
		LiquiditySnapshot    int64
		ExpectedIncome       int64
		RealIncome           int64
		ExpectedExpenseTotal int64
		RealExpenseTotal     int64
		ExpectedResult       int64
		RealResult           int64
		ResultDeviation      int64
		Lines                []ClosureDetailLine
		AsOf                 time.Time
	}

	// FinancialRecord is one expense or income occurrence registered for
	// a period. Recurring occurrences point back at their template.
	FinancialRecord struct {
		ID                int64
		OwnerID           string
		Period            Period
		ContainerID       int64
		DetailType        DetailType
		Kind              RecordKind
		Description       string
		Expected          int64
		Real              int64
		Status            RecordStatus
		TemplateID        int64 // 0 for one-off records
		InstallmentsPaid  int
		InstallmentsTotal int // 0 when open-ended
	}

	// RecurringTemplate drives reactivation of periodic items at reset.
	RecurringTemplate struct {
		ID                int64
		OwnerID           string
		ContainerID       int64
		DetailType        DetailType
		Kind              RecordKind
		Description       string
		Amount            int64
		DueDay            int
		Active            bool
		InstallmentsPaid  int
		InstallmentsTotal int
	}

	// Container is a named spending/income bucket used for segment-level
	// budgeting. Average-driven containers have their quota recomputed
	// from the rolling average at reset.
	Container struct {
		ID            int64
		OwnerID       string
		Name          string
		Kind          RecordKind
		DetailType    DetailType
		BudgetCents   int64
		AverageDriven bool
		Everyday      bool
		Visible       bool
	}
)

func (h ClosureHeader) Validate() error {
	if strings.TrimSpace(h.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if err := h.Period.Validate(); err != nil {
		return err
	}
	if !h.Criterion.IsValid() {
		return ErrInvalidCriterion
	}
	return nil
}

func (r FinancialRecord) Validate() error {
	if strings.TrimSpace(r.OwnerID) == "" {
		return ErrEmptyOwner
	}
	if err := r.Period.Validate(); err != nil {
		return err
	}
	if !r.Kind.IsValid() {
		return &ValidationError{Field: "kind", Reason: "must be expense or income"}
	}
	if !r.DetailType.IsValid() {
		return &ValidationError{Field: "detailType", Reason: "unknown segment type"}
	}
	return nil
}

// LastInstallment reports whether this occurrence is the final one of a
// finite recurring series.
func (r FinancialRecord) LastInstallment() bool {
	return r.TemplateID != 0 && r.InstallmentsTotal > 0 &&
		r.InstallmentsPaid >= r.InstallmentsTotal
}
