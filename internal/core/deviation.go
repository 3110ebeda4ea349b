package core

// RecordKind distinguishes income from expense aggregates. The deviation
// sign convention depends on it.
type RecordKind string

const (
	KindExpense RecordKind = "expense"
	KindIncome  RecordKind = "income"
)

func (k RecordKind) IsValid() bool {
	return k == KindExpense || k == KindIncome
}

// DeviationClass is the display classification of a deviation value.
type DeviationClass string

const (
	DeviationFavorable   DeviationClass = "favorable"
	DeviationUnfavorable DeviationClass = "unfavorable"
	DeviationNeutral     DeviationClass = "neutral"
)

// Deviation applies the asymmetric sign convention:
//
//	income:  deviation = real - expected  (earning more is favorable)
//	expense: deviation = expected - real  (spending less is favorable)
//
// Positive is always favorable, so callers never branch on kind again.
// Every aggregate in the system derives its deviation here; recomputing
// the delta inline at a call site is a defect.
func Deviation(kind RecordKind, expected, real int64) int64 {
	if kind == KindIncome {
		return real - expected
	}
	return expected - real
}

// ResultDeviation is the header-level delta. A period result behaves like
// income (a higher real result is favorable), so the income convention
// applies regardless of the mix of lines underneath.
func ResultDeviation(expectedResult, realResult int64) int64 {
	return realResult - expectedResult
}

// Classify maps a deviation value to its display class.
func Classify(deviation int64) DeviationClass {
	switch {
	case deviation > 0:
		return DeviationFavorable
	case deviation < 0:
		return DeviationUnfavorable
	default:
		return DeviationNeutral
	}
}
