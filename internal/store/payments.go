package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/theirongolddev/bdash/internal/model"
)

const requestColumns = `pr.id, pr.sharepoint_id, pr.name, pr.budget_code, pr.budget_line_id, pr.year,
	pr.amount, pr.requested_by, pr.status, pr.request_date, pr.synced_at, pr.created_at, pr.updated_at,
	CASE WHEN bl.id IS NULL THEN 1 ELSE 0 END`

const requestFrom = ` FROM payment_requests pr LEFT JOIN budget_lines bl ON bl.id = pr.budget_line_id`

func scanRequest(row scanner) (model.PaymentRequest, error) {
	var (
		p                model.PaymentRequest
		spID             sql.NullInt64
		lineID, synced   sql.NullString
		status, reqDate  string
		created, updated string
		unlinked         int
	)
	err := row.Scan(&p.ID, &spID, &p.Name, &p.BudgetCode, &lineID, &p.Year,
		&p.Amount, &p.RequestedBy, &status, &reqDate, &synced, &created, &updated, &unlinked)
	if err != nil {
		return p, err
	}
	if spID.Valid {
		v := spID.Int64
		p.SharePointID = &v
	}
	p.BudgetLineID = lineID.String
	p.Status, err = model.ParseStatus(status)
	if err != nil {
		return p, err
	}
	p.RequestDate, _ = time.Parse(dateLayout, reqDate)
	if synced.Valid {
		if t, err := time.Parse(time.RFC3339Nano, synced.String); err == nil {
			p.SyncedAt = &t
		}
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	p.Unlinked = unlinked == 1
	return p, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// UpsertPaymentRequest inserts or replaces a request keyed by id and returns
// the budget line id the request was linked to before the write ("" when new
// or previously unlinked). created_at is preserved on update.
func (s *Store) UpsertPaymentRequest(ctx context.Context, p model.PaymentRequest) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", persistErr("begin upsert", err)
	}
	defer func() { _ = tx.Rollback() }()

	var prev sql.NullString
	err = tx.QueryRowContext(ctx, s.rebind(`SELECT budget_line_id FROM payment_requests WHERE id = ?`), p.ID).Scan(&prev)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", persistErr("reading payment request "+p.ID, err)
	}

	now := time.Now().UTC()
	created := p.CreatedAt
	if created.IsZero() {
		created = now
	}
	var spID any
	if p.SharePointID != nil {
		spID = *p.SharePointID
	}
	var synced any
	if p.SyncedAt != nil {
		synced = p.SyncedAt.UTC().Format(time.RFC3339Nano)
	}
	status := p.Status
	if status == "" {
		status = model.StatusPending
	}

	_, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO payment_requests
		(id, sharepoint_id, name, budget_code, budget_line_id, year, amount, requested_by,
		 status, request_date, synced_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
		 sharepoint_id = excluded.sharepoint_id,
		 name = excluded.name,
		 budget_code = excluded.budget_code,
		 budget_line_id = excluded.budget_line_id,
		 year = excluded.year,
		 amount = excluded.amount,
		 requested_by = excluded.requested_by,
		 status = excluded.status,
		 request_date = excluded.request_date,
		 synced_at = excluded.synced_at,
		 updated_at = excluded.updated_at`),
		p.ID, spID, p.Name, p.BudgetCode, nullString(p.BudgetLineID), p.Year, p.Amount.String(),
		p.RequestedBy, string(status), p.RequestDate.Format(dateLayout), synced,
		created.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", persistErr("upserting payment request "+p.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return "", persistErr("commit upsert", err)
	}
	return prev.String, nil
}

// UpdatePaymentRequestStatus sets the status of an existing request, stamping
// updated_at with at, and returns the updated row.
func (s *Store) UpdatePaymentRequestStatus(ctx context.Context, id string, status model.Status, at time.Time) (model.PaymentRequest, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE payment_requests SET status = ?, updated_at = ? WHERE id = ?`),
		string(status), at.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return model.PaymentRequest{}, persistErr("updating status of "+id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.PaymentRequest{}, persistErr("updating status of "+id, err)
	}
	if n == 0 {
		return model.PaymentRequest{}, fmt.Errorf("payment request %s: %w", id, ErrNotFound)
	}
	return s.PaymentRequest(ctx, id)
}

// PaymentRequest returns one request by id.
func (s *Store) PaymentRequest(ctx context.Context, id string) (model.PaymentRequest, error) {
	p, err := scanRequest(s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+requestColumns+requestFrom+` WHERE pr.id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("payment request %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return p, persistErr("reading payment request", err)
	}
	return p, nil
}

// PaymentRequests returns all requests ordered by id.
func (s *Store) PaymentRequests(ctx context.Context) ([]model.PaymentRequest, error) {
	return s.queryRequests(ctx, `SELECT `+requestColumns+requestFrom+` ORDER BY pr.id`)
}

// PaymentRequestsForLine returns the requests linked to one budget line.
func (s *Store) PaymentRequestsForLine(ctx context.Context, lineID string) ([]model.PaymentRequest, error) {
	return s.queryRequests(ctx, s.rebind(`SELECT `+requestColumns+requestFrom+
		` WHERE pr.budget_line_id = ? ORDER BY pr.id`), lineID)
}

func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]model.PaymentRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistErr("listing payment requests", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.PaymentRequest
	for rows.Next() {
		p, err := scanRequest(rows)
		if err != nil {
			return nil, persistErr("scanning payment request", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterating payment requests", err)
	}
	return out, nil
}
