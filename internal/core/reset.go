package core

// ContainerAverage is the rolling average computed for one average-driven
// container: the mean of its paid amounts over the last three qualifying
// months. AverageValue is in cents.
type ContainerAverage struct {
	ContainerID       int64
	ContainerName     string
	AverageValue      int64
	AffectedItemCount int
}

// ResetPreview is the non-persisting count of what a reset would touch.
type ResetPreview struct {
	ExpensesToReset      int
	IncomesToReset       int
	LastInstallmentCount int
	Averages             []ContainerAverage
}

// ResetCategorySummary holds the counters for one record kind.
type ResetCategorySummary struct {
	PeriodicReactivatedCount int
	MonthlyResetCount        int
	AveragesUpdatedCount     int
	ForcedVisibleCount       int
}

// ResetSummary is the structured per-kind outcome of an executed reset.
// A second run over unchanged state reports zero reactivated/reset counts.
type ResetSummary struct {
	Expense ResetCategorySummary
	Income  ResetCategorySummary
}

// Total folds both kinds into one counter set, for logging.
func (s ResetSummary) Total() ResetCategorySummary {
	return ResetCategorySummary{
		PeriodicReactivatedCount: s.Expense.PeriodicReactivatedCount + s.Income.PeriodicReactivatedCount,
		MonthlyResetCount:        s.Expense.MonthlyResetCount + s.Income.MonthlyResetCount,
		AveragesUpdatedCount:     s.Expense.AveragesUpdatedCount + s.Income.AveragesUpdatedCount,
		ForcedVisibleCount:       s.Expense.ForcedVisibleCount + s.Income.ForcedVisibleCount,
	}
}
