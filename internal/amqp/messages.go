package amqp

import (
	"encoding/json"
	"time"

	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/core"
)

// ClosureGeneratedMessage is the lightweight event emitted after a closure
// is persisted. It carries only identity and version; the archive worker
// fetches the full closure from the database.
type ClosureGeneratedMessage struct {
	ClosureID int64     `json:"closureId"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewClosureGeneratedMessage(closureID, version int64) *ClosureGeneratedMessage {
	return &ClosureGeneratedMessage{
		ClosureID: closureID,
		Version:   version,
		Timestamp: time.Now(),
	}
}

func (m *ClosureGeneratedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ClosureGeneratedMessageFromJSON(data []byte) (*ClosureGeneratedMessage, error) {
	var msg ClosureGeneratedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ResetExecutedMessage carries the outcome of a monthly reset, including
// the full per-kind summary so the archive row needs no extra lookup.
type ResetExecutedMessage struct {
	OwnerID   string            `json:"ownerId"`
	Year      int               `json:"year"`
	Month     int               `json:"month"`
	Summary   core.ResetSummary `json:"summary"`
	Timestamp time.Time         `json:"timestamp"`
}

func NewResetExecutedMessage(ownerID string, period core.Period, summary core.ResetSummary) *ResetExecutedMessage {
	return &ResetExecutedMessage{
		OwnerID:   ownerID,
		Year:      period.Year,
		Month:     period.Month,
		Summary:   summary,
		Timestamp: time.Now(),
	}
}

func (m *ResetExecutedMessage) Period() core.Period {
	return core.Period{Year: m.Year, Month: m.Month}
}

func (m *ResetExecutedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ResetExecutedMessageFromJSON(data []byte) (*ResetExecutedMessage, error) {
	var msg ResetExecutedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
