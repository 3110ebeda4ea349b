// Package memory is an in-process archive used in tests and when no
// spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/core"
	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/ports"
)

type ArchivedClosure struct {
	Header core.ClosureHeader
	Lines  []core.ClosureDetailLine
}

type ArchivedReset struct {
	OwnerID string
	Period  core.Period
	Summary core.ResetSummary
}

type Store struct {
	mu       sync.Mutex
	closures []ArchivedClosure
	resets   []ArchivedReset
}

var _ ports.ArchiveWriter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendClosure stores the closure and returns a synthetic row reference.
func (s *Store) AppendClosure(_ context.Context, header core.ClosureHeader, lines []core.ClosureDetailLine) (string, error) {
	if err := header.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closures = append(s.closures, ArchivedClosure{
		Header: header,
		Lines:  append([]core.ClosureDetailLine(nil), lines...),
	})
	return fmt.Sprintf("mem:closure:%d", len(s.closures)), nil
}

func (s *Store) AppendResetSummary(_ context.Context, ownerID string, period core.Period, summary core.ResetSummary) (string, error) {
	if err := period.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets = append(s.resets, ArchivedReset{OwnerID: ownerID, Period: period, Summary: summary})
	return fmt.Sprintf("mem:reset:%d", len(s.resets)), nil
}

// Closures returns a copy of everything archived so far.
func (s *Store) Closures() []ArchivedClosure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ArchivedClosure(nil), s.closures...)
}

func (s *Store) Resets() []ArchivedReset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ArchivedReset(nil), s.resets...)
}
