package amqp

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/core"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},  // capped at 30s
		{10, 30 * time.Second}, // capped at 30s
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			result := exponentialBackoff(tt.attempt)
			if result != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, result, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"connection closed", errors.New("connection closed"), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"domain error", errors.New("closure not found"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestClosureGeneratedMessage_JSON(t *testing.T) {
	msg := NewClosureGeneratedMessage(42, 3)
	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	decoded, err := ClosureGeneratedMessageFromJSON(body)
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	if decoded.ClosureID != 42 || decoded.Version != 3 {
		t.Errorf("decoded = %+v, want ClosureID 42, Version 3", decoded)
	}
	if decoded.Timestamp.IsZero() {
		t.Error("decoded timestamp is zero")
	}

	if _, err := ClosureGeneratedMessageFromJSON([]byte("not json")); err == nil {
		t.Error("FromJSON(garbage) succeeded, want error")
	}
}

func TestResetExecutedMessage_CarriesSummary(t *testing.T) {
	summary := core.ResetSummary{
		Expense: core.ResetCategorySummary{
			PeriodicReactivatedCount: 2,
			MonthlyResetCount:        5,
			AveragesUpdatedCount:     1,
			ForcedVisibleCount:       1,
		},
		Income: core.ResetCategorySummary{
			PeriodicReactivatedCount: 1,
			MonthlyResetCount:        1,
		},
	}
	msg := NewResetExecutedMessage("casa", core.Period{Year: 2025, Month: 11}, summary)

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	decoded, err := ResetExecutedMessageFromJSON(body)
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	if decoded.Period().Key() != "2025-11" {
		t.Errorf("Period() = %s, want 2025-11", decoded.Period().Key())
	}
	if decoded.Summary.Expense.MonthlyResetCount != 5 {
		t.Errorf("expense reset count = %d, want 5", decoded.Summary.Expense.MonthlyResetCount)
	}
	if got := decoded.Summary.Total().PeriodicReactivatedCount; got != 3 {
		t.Errorf("total reactivated = %d, want 3", got)
	}
}
