// Package core holds the closure domain: periods, money, closure entities,
// deviation rules and the error taxonomy shared by every service.
package core

import (
	"fmt"
	"time"
)

// Period identifies one calendar month. It is a value object: compare with
// ==, order with Compare, and derive neighbours with Previous/Next.
type Period struct {
	Year  int
	Month int // 1-12
}

// NewPeriod creates a period without validating it; call Validate before
// trusting external input.
func NewPeriod(year, month int) Period {
	return Period{Year: year, Month: month}
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return ErrInvalidMonth
	}
	if p.Year < 1 {
		return ErrInvalidPeriod
	}
	return nil
}

// Previous returns the preceding month, rolling January back to December of
// the previous year.
func (p Period) Previous() Period {
	if p.Month == 1 {
		return Period{Year: p.Year - 1, Month: 12}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// Next returns the following month, rolling December into January of the
// next year.
func (p Period) Next() Period {
	if p.Month == 12 {
		return Period{Year: p.Year + 1, Month: 1}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// Compare returns -1, 0 or +1 ordering p against other chronologically.
func (p Period) Compare(other Period) int {
	switch {
	case p.Year < other.Year:
		return -1
	case p.Year > other.Year:
		return 1
	case p.Month < other.Month:
		return -1
	case p.Month > other.Month:
		return 1
	default:
		return 0
	}
}

func (p Period) Before(other Period) bool { return p.Compare(other) < 0 }

// Key returns the canonical "YYYY-MM" form used in logs and series labels.
func (p Period) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

func (p Period) String() string { return p.Key() }

// CurrentPeriod returns the period containing now.
func CurrentPeriod(now time.Time) Period {
	return Period{Year: now.Year(), Month: int(now.Month())}
}

// PreviousPeriod returns the period before the one containing now. This is
// the period a closure normally targets: the month that just ended.
func PreviousPeriod(now time.Time) Period {
	return CurrentPeriod(now).Previous()
}
