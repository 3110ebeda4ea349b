package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/core"
)

// cents is a monetary amount in a request body. It accepts either an
// integer number of cents or a decimal string ("12.34", "12,34") as
// entered in clients.
type cents int64

func (c *cents) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := core.ParseDecimalToCents(s)
		if err != nil {
			return err
		}
		*c = cents(v)
		return nil
	}
	var v int64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*c = cents(v)
	return nil
}

// closureReader is the read-only slice of the closure store the handlers
// use directly; everything else goes through the services.
type closureReader interface {
	ListClosures(ctx context.Context, ownerID string) ([]core.ClosureHeader, error)
	GetClosure(ctx context.Context, id int64) (core.ClosureHeader, error)
	GetClosureDetails(ctx context.Context, closureID int64) ([]core.ClosureDetailLine, error)
}

// defaultOwner is used when the request names no owner. The engine is
// multi-owner in storage but typically deployed per household.
const defaultOwner = "default"

func ownerFromRequest(r *http.Request) string {
	if v := strings.TrimSpace(r.URL.Query().Get("owner")); v != "" {
		return v
	}
	if v := strings.TrimSpace(r.Header.Get("X-Owner-ID")); v != "" {
		return v
	}
	return defaultOwner
}

// periodFromQuery reads year and month query parameters, defaulting to the
// previous calendar month (the period a closure normally targets).
func periodFromQuery(r *http.Request) (core.Period, error) {
	period := core.PreviousPeriod(time.Now())

	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return core.Period{}, &core.ValidationError{Field: "year", Reason: "must be a number"}
		}
		period.Year = y
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return core.Period{}, &core.ValidationError{Field: "month", Reason: "must be a number"}
		}
		period.Month = m
	}

	if err := period.Validate(); err != nil {
		return core.Period{}, err
	}
	return period, nil
}

func criterionFromQuery(r *http.Request) (core.Criterion, error) {
	v := core.Criterion(strings.TrimSpace(r.URL.Query().Get("criterion")))
	if v == "" {
		v = core.CriterionCash
	}
	if !v.IsValid() {
		return "", core.ErrInvalidCriterion
	}
	return v, nil
}

func idFromPath(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &core.ValidationError{Field: "id", Reason: "must be a positive number"}
	}
	return id, nil
}

func limitFromQuery(r *http.Request, fallback int) int {
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 120 {
			return n
		}
	}
	return fallback
}
