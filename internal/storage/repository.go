// Package storage implements the SQLite-backed stores behind the ports
// interfaces. One repository serves closures, records, templates,
// containers and owner settings.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/core"
	"github.com/Sesiom2704/gapptomobile-v3-sub003/internal/ports"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const headerColumns = `id, owner_id, year, month, criterion,
	liquidity_snapshot_cents, expected_income_cents, real_income_cents,
	expected_expense_cents, real_expense_cents, expected_result_cents,
	real_result_cents, result_deviation_cents, version, created_at`

func scanHeader(row interface{ Scan(...any) error }) (core.ClosureHeader, error) {
	var h core.ClosureHeader
	err := row.Scan(&h.ID, &h.OwnerID, &h.Period.Year, &h.Period.Month, &h.Criterion,
		&h.LiquiditySnapshot, &h.ExpectedIncome, &h.RealIncome,
		&h.ExpectedExpenseTotal, &h.RealExpenseTotal, &h.ExpectedResult,
		&h.RealResult, &h.ResultDeviation, &h.Version, &h.CreatedAt)
	return h, err
}

// ListClosures implements ports.ClosureStore.
func (r *SQLiteRepository) ListClosures(ctx context.Context, ownerID string) ([]core.ClosureHeader, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+headerColumns+` FROM closure_headers
		 WHERE owner_id = ? ORDER BY year DESC, month DESC, criterion`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list closures: %w", err)
	}
	defer rows.Close()

	var out []core.ClosureHeader
	for rows.Next() {
		h, err := scanHeader(rows)
		if err != nil {
			return nil, fmt.Errorf("scan closure header: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ListRecentClosures returns the most recent limit headers in ascending
// period order, ready for KPI consumption.
func (r *SQLiteRepository) ListRecentClosures(ctx context.Context, ownerID string, limit int) ([]core.ClosureHeader, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+headerColumns+` FROM closure_headers
		 WHERE owner_id = ? ORDER BY year DESC, month DESC LIMIT ?`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent closures: %w", err)
	}
	defer rows.Close()

	var out []core.ClosureHeader
	for rows.Next() {
		h, err := scanHeader(rows)
		if err != nil {
			return nil, fmt.Errorf("scan closure header: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Flip DESC fetch order into the ascending order the aggregator wants.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *SQLiteRepository) GetClosure(ctx context.Context, id int64) (core.ClosureHeader, error) {
	h, err := scanHeader(r.db.QueryRowContext(ctx,
		`SELECT `+headerColumns+` FROM closure_headers WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.ClosureHeader{}, &core.NotFoundError{Entity: "closure", ID: id}
	}
	if err != nil {
		return core.ClosureHeader{}, fmt.Errorf("get closure %d: %w", id, err)
	}
	return h, nil
}

func (r *SQLiteRepository) FindClosure(ctx context.Context, ownerID string, period core.Period, criterion core.Criterion) (*core.ClosureHeader, error) {
	h, err := scanHeader(r.db.QueryRowContext(ctx,
		`SELECT `+headerColumns+` FROM closure_headers
		 WHERE owner_id = ? AND year = ? AND month = ? AND criterion = ?`,
		ownerID, period.Year, period.Month, string(criterion)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find closure for %s: %w", period, err)
	}
	return &h, nil
}

func (r *SQLiteRepository) GetClosureDetails(ctx context.Context, closureID int64) ([]core.ClosureDetailLine, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, closure_id, year, month, segment_id, detail_type,
		        expected_cents, real_cents, deviation_cents, fulfillment_pct,
		        item_count, include_in_kpi
		 FROM closure_detail_lines WHERE closure_id = ? ORDER BY segment_id`, closureID)
	if err != nil {
		return nil, fmt.Errorf("get closure details: %w", err)
	}
	defer rows.Close()

	var out []core.ClosureDetailLine
	for rows.Next() {
		var line core.ClosureDetailLine
		if err := rows.Scan(&line.ID, &line.ClosureID, &line.Period.Year, &line.Period.Month,
			&line.SegmentID, &line.DetailType, &line.Expected, &line.Real,
			&line.Deviation, &line.FulfillmentPct, &line.ItemCount, &line.IncludeInKpi); err != nil {
			return nil, fmt.Errorf("scan detail line: %w", err)
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

// SaveClosure writes header and detail lines as one transaction. The unique
// index on (owner, year, month, criterion) backs up the conflict check, so
// a duplicate can never land even under a racing retry.
func (r *SQLiteRepository) SaveClosure(ctx context.Context, snap core.ClosureSnapshot, overwrite bool) (core.ClosureHeader, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.ClosureHeader{}, fmt.Errorf("begin save closure: %w", err)
	}
	defer tx.Rollback()

	var existingID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM closure_headers WHERE owner_id = ? AND year = ? AND month = ? AND criterion = ?`,
		snap.OwnerID, snap.Period.Year, snap.Period.Month, string(snap.Criterion)).Scan(&existingID)
	switch {
	case err == nil && !overwrite:
		return core.ClosureHeader{}, &core.ConflictError{
			OwnerID: snap.OwnerID, Period: snap.Period, Criterion: snap.Criterion,
		}
	case err == nil:
		if _, err := tx.ExecContext(ctx, `DELETE FROM closure_detail_lines WHERE closure_id = ?`, existingID); err != nil {
			return core.ClosureHeader{}, fmt.Errorf("delete replaced lines: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM closure_headers WHERE id = ?`, existingID); err != nil {
			return core.ClosureHeader{}, fmt.Errorf("delete replaced header: %w", err)
		}
	case !errors.Is(err, sql.ErrNoRows):
		return core.ClosureHeader{}, fmt.Errorf("check existing closure: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO closure_headers (owner_id, year, month, criterion,
		    liquidity_snapshot_cents, expected_income_cents, real_income_cents,
		    expected_expense_cents, real_expense_cents, expected_result_cents,
		    real_result_cents, result_deviation_cents, version, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		snap.OwnerID, snap.Period.Year, snap.Period.Month, string(snap.Criterion),
		snap.LiquiditySnapshot, snap.ExpectedIncome, snap.RealIncome,
		snap.ExpectedExpenseTotal, snap.RealExpenseTotal, snap.ExpectedResult,
		snap.RealResult, snap.ResultDeviation, snap.AsOf)
	if err != nil {
		return core.ClosureHeader{}, fmt.Errorf("insert closure header: %w", err)
	}
	closureID, err := res.LastInsertId()
	if err != nil {
		return core.ClosureHeader{}, fmt.Errorf("closure header id: %w", err)
	}

	for _, line := range snap.Lines {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO closure_detail_lines (closure_id, year, month, segment_id,
			    detail_type, expected_cents, real_cents, deviation_cents,
			    fulfillment_pct, item_count, include_in_kpi)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			closureID, line.Period.Year, line.Period.Month, line.SegmentID,
			string(line.DetailType), line.Expected, line.Real, line.Deviation,
			line.FulfillmentPct, line.ItemCount, line.IncludeInKpi); err != nil {
			return core.ClosureHeader{}, fmt.Errorf("insert detail line: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.ClosureHeader{}, fmt.Errorf("commit closure: %w", err)
	}

	slog.InfoContext(ctx, "Closure persisted",
		"closure_id", closureID,
		"owner", snap.OwnerID,
		"period", snap.Period.Key(),
		"criterion", string(snap.Criterion),
		"lines", len(snap.Lines))

	return r.GetClosure(ctx, closureID)
}

func (r *SQLiteRepository) DeleteClosure(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete closure: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM closure_detail_lines WHERE closure_id = ?`, id); err != nil {
		return fmt.Errorf("delete closure lines: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM closure_headers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete closure header: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete closure rows affected: %w", err)
	}
	if affected == 0 {
		return &core.NotFoundError{Entity: "closure", ID: id}
	}
	return tx.Commit()
}

// UpdateClosureHeader persists a manual correction with optimistic locking
// on the version column.
func (r *SQLiteRepository) UpdateClosureHeader(ctx context.Context, header core.ClosureHeader) (core.ClosureHeader, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE closure_headers SET
		    liquidity_snapshot_cents = ?, expected_income_cents = ?, real_income_cents = ?,
		    expected_expense_cents = ?, real_expense_cents = ?, expected_result_cents = ?,
		    real_result_cents = ?, result_deviation_cents = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		header.LiquiditySnapshot, header.ExpectedIncome, header.RealIncome,
		header.ExpectedExpenseTotal, header.RealExpenseTotal, header.ExpectedResult,
		header.RealResult, header.ResultDeviation, header.ID, header.Version)
	if err != nil {
		return core.ClosureHeader{}, fmt.Errorf("update closure header: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return core.ClosureHeader{}, fmt.Errorf("update header rows affected: %w", err)
	}
	if affected == 0 {
		// Either the row is gone or someone raced us on the version.
		if _, err := r.GetClosure(ctx, header.ID); err != nil {
			return core.ClosureHeader{}, err
		}
		return core.ClosureHeader{}, fmt.Errorf("closure %d version changed underneath the edit: %w",
			header.ID, core.ErrPersistence)
	}
	return r.GetClosure(ctx, header.ID)
}

func (r *SQLiteRepository) GetDetailLine(ctx context.Context, lineID int64) (core.ClosureDetailLine, error) {
	var line core.ClosureDetailLine
	err := r.db.QueryRowContext(ctx,
		`SELECT id, closure_id, year, month, segment_id, detail_type,
		        expected_cents, real_cents, deviation_cents, fulfillment_pct,
		        item_count, include_in_kpi
		 FROM closure_detail_lines WHERE id = ?`, lineID).
		Scan(&line.ID, &line.ClosureID, &line.Period.Year, &line.Period.Month,
			&line.SegmentID, &line.DetailType, &line.Expected, &line.Real,
			&line.Deviation, &line.FulfillmentPct, &line.ItemCount, &line.IncludeInKpi)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ClosureDetailLine{}, &core.NotFoundError{Entity: "detail line", ID: lineID}
	}
	if err != nil {
		return core.ClosureDetailLine{}, fmt.Errorf("get detail line %d: %w", lineID, err)
	}
	return line, nil
}

func (r *SQLiteRepository) UpdateDetailLine(ctx context.Context, line core.ClosureDetailLine) (core.ClosureDetailLine, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE closure_detail_lines SET
		    expected_cents = ?, real_cents = ?, deviation_cents = ?,
		    fulfillment_pct = ?, include_in_kpi = ?
		 WHERE id = ?`,
		line.Expected, line.Real, line.Deviation, line.FulfillmentPct,
		line.IncludeInKpi, line.ID)
	if err != nil {
		return core.ClosureDetailLine{}, fmt.Errorf("update detail line: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return core.ClosureDetailLine{}, fmt.Errorf("update line rows affected: %w", err)
	}
	if affected == 0 {
		return core.ClosureDetailLine{}, &core.NotFoundError{Entity: "detail line", ID: line.ID}
	}
	return r.GetDetailLine(ctx, line.ID)
}

// ListRecords implements ports.RecordStore.
func (r *SQLiteRepository) ListRecords(ctx context.Context, ownerID string, period core.Period) ([]core.FinancialRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, year, month, container_id, detail_type, kind,
		        description, expected_cents, real_cents, status, template_id,
		        installments_paid, installments_total
		 FROM financial_records WHERE owner_id = ? AND year = ? AND month = ?
		 ORDER BY id`, ownerID, period.Year, period.Month)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []core.FinancialRecord
	for rows.Next() {
		var rec core.FinancialRecord
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.Period.Year, &rec.Period.Month,
			&rec.ContainerID, &rec.DetailType, &rec.Kind, &rec.Description,
			&rec.Expected, &rec.Real, &rec.Status, &rec.TemplateID,
			&rec.InstallmentsPaid, &rec.InstallmentsTotal); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CountPending(ctx context.Context, ownerID string, period core.Period) (ports.KindCounts, error) {
	var counts ports.KindCounts
	err := r.db.QueryRowContext(ctx,
		`SELECT
		    COALESCE(SUM(CASE WHEN kind = 'expense' THEN 1 ELSE 0 END), 0),
		    COALESCE(SUM(CASE WHEN kind = 'income' THEN 1 ELSE 0 END), 0)
		 FROM financial_records
		 WHERE owner_id = ? AND year = ? AND month = ? AND status = 'pending'`,
		ownerID, period.Year, period.Month).Scan(&counts.Expense, &counts.Income)
	if err != nil {
		return ports.KindCounts{}, fmt.Errorf("count pending: %w", err)
	}
	return counts, nil
}

func (r *SQLiteRepository) CountResettable(ctx context.Context, ownerID string, period core.Period) (ports.KindCounts, int, error) {
	var counts ports.KindCounts
	var lastInstallments int
	err := r.db.QueryRowContext(ctx,
		`SELECT
		    COALESCE(SUM(CASE WHEN kind = 'expense' AND template_id = 0 THEN 1 ELSE 0 END), 0),
		    COALESCE(SUM(CASE WHEN kind = 'income' AND template_id = 0 THEN 1 ELSE 0 END), 0),
		    COALESCE(SUM(CASE WHEN template_id != 0 AND installments_total > 0
		                        AND installments_paid >= installments_total THEN 1 ELSE 0 END), 0)
		 FROM financial_records
		 WHERE owner_id = ? AND year = ? AND month = ? AND status = 'paid'`,
		ownerID, period.Year, period.Month).Scan(&counts.Expense, &counts.Income, &lastInstallments)
	if err != nil {
		return ports.KindCounts{}, 0, fmt.Errorf("count resettable: %w", err)
	}
	return counts, lastInstallments, nil
}

// ResetPaidFlags rolls the closed period's paid one-off records into the
// next month as pending. The WHERE clause only matches rows still paid, so
// a repeated call affects nothing and reports zero.
func (r *SQLiteRepository) ResetPaidFlags(ctx context.Context, ownerID string, period core.Period) (ports.KindCounts, error) {
	next := period.Next()
	var counts ports.KindCounts
	for _, kind := range []core.RecordKind{core.KindExpense, core.KindIncome} {
		res, err := r.db.ExecContext(ctx,
			`UPDATE financial_records
			 SET status = 'pending', year = ?, month = ?
			 WHERE owner_id = ? AND year = ? AND month = ? AND kind = ?
			   AND template_id = 0 AND status = 'paid'`,
			next.Year, next.Month, ownerID, period.Year, period.Month, string(kind))
		if err != nil {
			return ports.KindCounts{}, fmt.Errorf("reset paid flags (%s): %w", kind, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return ports.KindCounts{}, fmt.Errorf("reset paid rows affected: %w", err)
		}
		if kind == core.KindIncome {
			counts.Income = int(affected)
		} else {
			counts.Expense = int(affected)
		}
	}
	return counts, nil
}

func (r *SQLiteRepository) PaidMonthlyTotals(ctx context.Context, containerID int64, upTo core.Period, monthsBack int) ([]ports.MonthlyTotal, error) {
	start := upTo
	for i := 1; i < monthsBack; i++ {
		start = start.Previous()
	}
	// Months are ordered on year*12+month so the window survives year
	// boundaries.
	rows, err := r.db.QueryContext(ctx,
		`SELECT year, month, SUM(real_cents), COUNT(*)
		 FROM financial_records
		 WHERE container_id = ? AND status = 'paid'
		   AND (year * 12 + month) BETWEEN ? AND ?
		 GROUP BY year, month
		 ORDER BY year DESC, month DESC`,
		containerID, start.Year*12+start.Month, upTo.Year*12+upTo.Month)
	if err != nil {
		return nil, fmt.Errorf("paid monthly totals: %w", err)
	}
	defer rows.Close()

	var out []ports.MonthlyTotal
	for rows.Next() {
		var mt ports.MonthlyTotal
		if err := rows.Scan(&mt.Period.Year, &mt.Period.Month, &mt.Cents, &mt.ItemCount); err != nil {
			return nil, fmt.Errorf("scan monthly total: %w", err)
		}
		out = append(out, mt)
	}
	return out, rows.Err()
}

// ReactivateDue implements ports.TemplateStore. Finished installment
// series stay inactive.
func (r *SQLiteRepository) ReactivateDue(ctx context.Context, ownerID string) (ports.KindCounts, error) {
	var counts ports.KindCounts
	for _, kind := range []core.RecordKind{core.KindExpense, core.KindIncome} {
		res, err := r.db.ExecContext(ctx,
			`UPDATE recurring_templates SET active = 1
			 WHERE owner_id = ? AND kind = ? AND active = 0
			   AND (installments_total = 0 OR installments_paid < installments_total)`,
			ownerID, string(kind))
		if err != nil {
			return ports.KindCounts{}, fmt.Errorf("reactivate templates (%s): %w", kind, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return ports.KindCounts{}, fmt.Errorf("reactivate rows affected: %w", err)
		}
		if kind == core.KindIncome {
			counts.Income = int(affected)
		} else {
			counts.Expense = int(affected)
		}
	}
	return counts, nil
}

// ListContainers implements ports.ContainerStore.
func (r *SQLiteRepository) ListContainers(ctx context.Context, ownerID string) ([]core.Container, error) {
	return r.queryContainers(ctx,
		`SELECT id, owner_id, name, kind, detail_type, budget_cents,
		        average_driven, everyday, visible
		 FROM containers WHERE owner_id = ? ORDER BY name`, ownerID)
}

func (r *SQLiteRepository) ListAverageDriven(ctx context.Context, ownerID string) ([]core.Container, error) {
	return r.queryContainers(ctx,
		`SELECT id, owner_id, name, kind, detail_type, budget_cents,
		        average_driven, everyday, visible
		 FROM containers WHERE owner_id = ? AND average_driven = 1 ORDER BY name`, ownerID)
}

func (r *SQLiteRepository) queryContainers(ctx context.Context, query string, args ...any) ([]core.Container, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	defer rows.Close()

	var out []core.Container
	for rows.Next() {
		var c core.Container
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Kind, &c.DetailType,
			&c.BudgetCents, &c.AverageDriven, &c.Everyday, &c.Visible); err != nil {
			return nil, fmt.Errorf("scan container: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, containerID int64, cents int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE containers SET budget_cents = ? WHERE id = ?`, cents, containerID)
	if err != nil {
		return fmt.Errorf("update container budget: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update budget rows affected: %w", err)
	}
	if affected == 0 {
		return &core.NotFoundError{Entity: "container", ID: containerID}
	}
	return nil
}

func (r *SQLiteRepository) ForceEverydayVisible(ctx context.Context, ownerID string) (ports.KindCounts, error) {
	var counts ports.KindCounts
	for _, kind := range []core.RecordKind{core.KindExpense, core.KindIncome} {
		res, err := r.db.ExecContext(ctx,
			`UPDATE containers SET visible = 1
			 WHERE owner_id = ? AND kind = ? AND everyday = 1 AND visible = 0`,
			ownerID, string(kind))
		if err != nil {
			return ports.KindCounts{}, fmt.Errorf("force visibility (%s): %w", kind, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return ports.KindCounts{}, fmt.Errorf("force visibility rows affected: %w", err)
		}
		if kind == core.KindIncome {
			counts.Income = int(affected)
		} else {
			counts.Expense = int(affected)
		}
	}
	return counts, nil
}

// ResetAllowed implements ports.SettingsStore. Owners without a settings
// row default to allowed.
func (r *SQLiteRepository) ResetAllowed(ctx context.Context, ownerID string) (bool, error) {
	var allowed bool
	err := r.db.QueryRowContext(ctx,
		`SELECT can_reset FROM owner_settings WHERE owner_id = ?`, ownerID).Scan(&allowed)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read reset flag: %w", err)
	}
	return allowed, nil
}

// SetResetAllowed flips the per-owner kill switch.
func (r *SQLiteRepository) SetResetAllowed(ctx context.Context, ownerID string, allowed bool) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO owner_settings (owner_id, can_reset) VALUES (?, ?)
		 ON CONFLICT (owner_id) DO UPDATE SET can_reset = excluded.can_reset`,
		ownerID, allowed)
	if err != nil {
		return fmt.Errorf("set reset flag: %w", err)
	}
	return nil
}

// ListUnarchivedClosures returns closures the archive worker has not yet
// exported, oldest first. The worker sweeps these as a backup for lost
// broker messages.
func (r *SQLiteRepository) ListUnarchivedClosures(ctx context.Context, limit int) ([]core.ClosureHeader, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+headerColumns+` FROM closure_headers
		 WHERE archive_status = 'pending' ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unarchived closures: %w", err)
	}
	defer rows.Close()

	var out []core.ClosureHeader
	for rows.Next() {
		h, err := scanHeader(rows)
		if err != nil {
			return nil, fmt.Errorf("scan closure header: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) MarkArchived(ctx context.Context, closureID int64, rowRef string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE closure_headers
		 SET archive_status = 'done', archived_at = CURRENT_TIMESTAMP, archive_row_ref = ?
		 WHERE id = ?`, rowRef, closureID)
	if err != nil {
		return fmt.Errorf("mark archived: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) MarkArchiveError(ctx context.Context, closureID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE closure_headers SET archive_status = 'error' WHERE id = ?`, closureID)
	if err != nil {
		return fmt.Errorf("mark archive error: %w", err)
	}
	return nil
}

// CreateRecord inserts a financial record. Used by fixtures and the worker
// tooling; the engine itself only reads and resets records.
func (r *SQLiteRepository) CreateRecord(ctx context.Context, rec core.FinancialRecord) (int64, error) {
	if err := rec.Validate(); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO financial_records (owner_id, year, month, container_id,
		    detail_type, kind, description, expected_cents, real_cents, status,
		    template_id, installments_paid, installments_total)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.OwnerID, rec.Period.Year, rec.Period.Month, rec.ContainerID,
		string(rec.DetailType), string(rec.Kind), rec.Description,
		rec.Expected, rec.Real, string(rec.Status), rec.TemplateID,
		rec.InstallmentsPaid, rec.InstallmentsTotal)
	if err != nil {
		return 0, fmt.Errorf("create record: %w", err)
	}
	return res.LastInsertId()
}

// CreateContainer inserts a container.
func (r *SQLiteRepository) CreateContainer(ctx context.Context, c core.Container) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO containers (owner_id, name, kind, detail_type, budget_cents,
		    average_driven, everyday, visible)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.OwnerID, c.Name, string(c.Kind), string(c.DetailType), c.BudgetCents,
		c.AverageDriven, c.Everyday, c.Visible)
	if err != nil {
		return 0, fmt.Errorf("create container: %w", err)
	}
	return res.LastInsertId()
}

// CreateTemplate inserts a recurring template.
func (r *SQLiteRepository) CreateTemplate(ctx context.Context, tpl core.RecurringTemplate) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO recurring_templates (owner_id, container_id, detail_type, kind,
		    description, amount_cents, due_day, active, installments_paid, installments_total)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tpl.OwnerID, tpl.ContainerID, string(tpl.DetailType), string(tpl.Kind),
		tpl.Description, tpl.Amount, tpl.DueDay, tpl.Active,
		tpl.InstallmentsPaid, tpl.InstallmentsTotal)
	if err != nil {
		return 0, fmt.Errorf("create template: %w", err)
	}
	return res.LastInsertId()
}
