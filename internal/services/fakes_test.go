package services

import (
	"context"
	"sort"

	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/core"
	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/ports"
)

// In-memory fakes for the outbound ports. They mirror the SQLite repository
// semantics closely enough to exercise the services, including the unique
// (owner, period, criterion) constraint and flip-only counting.

type memClosureStore struct {
	nextHeaderID int64
	nextLineID   int64
	headers      map[int64]core.ClosureHeader
	lines        map[int64][]core.ClosureDetailLine
}

func newMemClosureStore() *memClosureStore {
	return &memClosureStore{
		headers: make(map[int64]core.ClosureHeader),
		lines:   make(map[int64][]core.ClosureDetailLine),
	}
}

func (s *memClosureStore) ListClosures(_ context.Context, ownerID string) ([]core.ClosureHeader, error) {
	var out []core.ClosureHeader
	for _, h := range s.headers {
		if h.OwnerID == ownerID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[j].Period.Before(out[i].Period) })
	return out, nil
}

func (s *memClosureStore) ListRecentClosures(_ context.Context, ownerID string, limit int) ([]core.ClosureHeader, error) {
	var out []core.ClosureHeader
	for _, h := range s.headers {
		if h.OwnerID == ownerID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Before(out[j].Period) })
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *memClosureStore) GetClosure(_ context.Context, id int64) (core.ClosureHeader, error) {
	h, ok := s.headers[id]
	if !ok {
		return core.ClosureHeader{}, &core.NotFoundError{Entity: "closure", ID: id}
	}
	return h, nil
}

func (s *memClosureStore) FindClosure(_ context.Context, ownerID string, period core.Period, criterion core.Criterion) (*core.ClosureHeader, error) {
	for _, h := range s.headers {
		if h.OwnerID == ownerID && h.Period == period && h.Criterion == criterion {
			found := h
			return &found, nil
		}
	}
	return nil, nil
}

func (s *memClosureStore) GetClosureDetails(_ context.Context, closureID int64) ([]core.ClosureDetailLine, error) {
	return s.lines[closureID], nil
}

func (s *memClosureStore) SaveClosure(ctx context.Context, snap core.ClosureSnapshot, overwrite bool) (core.ClosureHeader, error) {
	existing, _ := s.FindClosure(ctx, snap.OwnerID, snap.Period, snap.Criterion)
	if existing != nil {
		if !overwrite {
			return core.ClosureHeader{}, &core.ConflictError{
				OwnerID: snap.OwnerID, Period: snap.Period, Criterion: snap.Criterion,
			}
		}
		delete(s.headers, existing.ID)
		delete(s.lines, existing.ID)
	}

	s.nextHeaderID++
	header := core.ClosureHeader{
		ID:                   s.nextHeaderID,
		OwnerID:              snap.OwnerID,
		Period:               snap.Period,
		Criterion:            snap.Criterion,
		LiquiditySnapshot:    snap.LiquiditySnapshot,
		ExpectedIncome:       snap.ExpectedIncome,
		RealIncome:           snap.RealIncome,
		ExpectedExpenseTotal: snap.ExpectedExpenseTotal,
		RealExpenseTotal:     snap.RealExpenseTotal,
		ExpectedResult:       snap.ExpectedResult,
		RealResult:           snap.RealResult,
		ResultDeviation:      snap.ResultDeviation,
		Version:              1,
		CreatedAt:            snap.AsOf,
	}
	s.headers[header.ID] = header

	lines := make([]core.ClosureDetailLine, len(snap.Lines))
	for i, line := range snap.Lines {
		s.nextLineID++
		line.ID = s.nextLineID
		line.ClosureID = header.ID
		lines[i] = line
	}
	s.lines[header.ID] = lines

	return header, nil
}

func (s *memClosureStore) DeleteClosure(_ context.Context, id int64) error {
	if _, ok := s.headers[id]; !ok {
		return &core.NotFoundError{Entity: "closure", ID: id}
	}
	delete(s.headers, id)
	delete(s.lines, id)
	return nil
}

func (s *memClosureStore) UpdateClosureHeader(_ context.Context, header core.ClosureHeader) (core.ClosureHeader, error) {
	if _, ok := s.headers[header.ID]; !ok {
		return core.ClosureHeader{}, &core.NotFoundError{Entity: "closure", ID: header.ID}
	}
	header.Version++
	s.headers[header.ID] = header
	return header, nil
}

func (s *memClosureStore) GetDetailLine(_ context.Context, lineID int64) (core.ClosureDetailLine, error) {
	for _, lines := range s.lines {
		for _, line := range lines {
			if line.ID == lineID {
				return line, nil
			}
		}
	}
	return core.ClosureDetailLine{}, &core.NotFoundError{Entity: "detail line", ID: lineID}
}

func (s *memClosureStore) UpdateDetailLine(_ context.Context, line core.ClosureDetailLine) (core.ClosureDetailLine, error) {
	lines := s.lines[line.ClosureID]
	for i := range lines {
		if lines[i].ID == line.ID {
			lines[i] = line
			return line, nil
		}
	}
	return core.ClosureDetailLine{}, &core.NotFoundError{Entity: "detail line", ID: line.ID}
}

type memRecordStore struct {
	records []core.FinancialRecord
}

func (s *memRecordStore) ListRecords(_ context.Context, ownerID string, period core.Period) ([]core.FinancialRecord, error) {
	var out []core.FinancialRecord
	for _, r := range s.records {
		if r.OwnerID == ownerID && r.Period == period {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memRecordStore) CountPending(_ context.Context, ownerID string, period core.Period) (ports.KindCounts, error) {
	var counts ports.KindCounts
	for _, r := range s.records {
		if r.OwnerID != ownerID || r.Period != period || r.Status != core.StatusPending {
			continue
		}
		if r.Kind == core.KindIncome {
			counts.Income++
		} else {
			counts.Expense++
		}
	}
	return counts, nil
}

func (s *memRecordStore) CountResettable(_ context.Context, ownerID string, period core.Period) (ports.KindCounts, int, error) {
	var counts ports.KindCounts
	lastInstallments := 0
	for _, r := range s.records {
		if r.OwnerID != ownerID || r.Period != period || r.Status != core.StatusPaid {
			continue
		}
		if r.TemplateID == 0 {
			if r.Kind == core.KindIncome {
				counts.Income++
			} else {
				counts.Expense++
			}
		}
		if r.LastInstallment() {
			lastInstallments++
		}
	}
	return counts, lastInstallments, nil
}

func (s *memRecordStore) ResetPaidFlags(_ context.Context, ownerID string, period core.Period) (ports.KindCounts, error) {
	var counts ports.KindCounts
	for i := range s.records {
		r := &s.records[i]
		if r.OwnerID != ownerID || r.Period != period || r.TemplateID != 0 || r.Status != core.StatusPaid {
			continue
		}
		r.Status = core.StatusPending
		r.Period = period.Next()
		if r.Kind == core.KindIncome {
			counts.Income++
		} else {
			counts.Expense++
		}
	}
	return counts, nil
}

func (s *memRecordStore) PaidMonthlyTotals(_ context.Context, containerID int64, upTo core.Period, monthsBack int) ([]ports.MonthlyTotal, error) {
	var out []ports.MonthlyTotal
	period := upTo
	for i := 0; i < monthsBack; i++ {
		var mt ports.MonthlyTotal
		mt.Period = period
		for _, r := range s.records {
			if r.ContainerID == containerID && r.Period == period && r.Status == core.StatusPaid {
				mt.Cents += r.Real
				mt.ItemCount++
			}
		}
		if mt.ItemCount > 0 {
			out = append(out, mt)
		}
		period = period.Previous()
	}
	return out, nil
}

type memTemplateStore struct {
	templates []core.RecurringTemplate
}

func (s *memTemplateStore) ReactivateDue(_ context.Context, ownerID string) (ports.KindCounts, error) {
	var counts ports.KindCounts
	for i := range s.templates {
		tpl := &s.templates[i]
		if tpl.OwnerID != ownerID || tpl.Active {
			continue
		}
		if tpl.InstallmentsTotal > 0 && tpl.InstallmentsPaid >= tpl.InstallmentsTotal {
			continue
		}
		tpl.Active = true
		if tpl.Kind == core.KindIncome {
			counts.Income++
		} else {
			counts.Expense++
		}
	}
	return counts, nil
}

type memContainerStore struct {
	containers []core.Container
}

func (s *memContainerStore) ListContainers(_ context.Context, ownerID string) ([]core.Container, error) {
	var out []core.Container
	for _, c := range s.containers {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memContainerStore) ListAverageDriven(_ context.Context, ownerID string) ([]core.Container, error) {
	var out []core.Container
	for _, c := range s.containers {
		if c.OwnerID == ownerID && c.AverageDriven {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memContainerStore) UpdateBudget(_ context.Context, containerID int64, cents int64) error {
	for i := range s.containers {
		if s.containers[i].ID == containerID {
			s.containers[i].BudgetCents = cents
			return nil
		}
	}
	return &core.NotFoundError{Entity: "container", ID: containerID}
}

func (s *memContainerStore) ForceEverydayVisible(_ context.Context, ownerID string) (ports.KindCounts, error) {
	var counts ports.KindCounts
	for i := range s.containers {
		c := &s.containers[i]
		if c.OwnerID != ownerID || !c.Everyday || c.Visible {
			continue
		}
		c.Visible = true
		if c.Kind == core.KindIncome {
			counts.Income++
		} else {
			counts.Expense++
		}
	}
	return counts, nil
}

type memSettings struct {
	allowed bool
}

func (s *memSettings) ResetAllowed(context.Context, string) (bool, error) {
	return s.allowed, nil
}

type memPublisher struct {
	closureEvents []int64
	resetEvents   int
}

func (p *memPublisher) PublishClosureGenerated(_ context.Context, closureID, _ int64) error {
	p.closureEvents = append(p.closureEvents, closureID)
	return nil
}

func (p *memPublisher) PublishResetExecuted(_ context.Context, _ string, _ core.Period, _ core.ResetSummary) error {
	p.resetEvents++
	return nil
}
