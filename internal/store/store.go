// Package store provides the SQL-backed ledger of budget lines and payment requests.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/bdash/internal/model"

	_ "github.com/lib/pq"  // register postgres driver
	_ "modernc.org/sqlite" // register sqlite driver
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const dateLayout = "2006-01-02"

// Store is the ledger store.
type Store struct {
	db     *sql.DB
	driver string
}

// Open opens or creates the ledger at dsn using driver ("sqlite" or "postgres")
// and ensures the schema exists. Connecting and creating the schema are
// bounded by ctx; a deadline hit surfaces as a *PersistenceError.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case "", DriverSQLite:
		return openSQLite(ctx, sqliteDSN(dsn))
	case DriverPostgres:
		db, err := sql.Open(DriverPostgres, postgresDSN(ctx, dsn))
		if err != nil {
			return nil, persistErr("opening postgres", err)
		}
		return initSchema(ctx, db, DriverPostgres)
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}
}

// OpenMemory opens an empty in-memory SQLite ledger.
func OpenMemory() (*Store, error) {
	return openSQLite(context.Background(), ":memory:")
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") || strings.Contains(path, "?") || path == ":memory:" {
		return path
	}
	if dir := filepath.Dir(path); dir != "." {
		_ = os.MkdirAll(dir, 0o750)
	}
	return path + "?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)"
}

// postgresDSN adds a lib/pq connect_timeout derived from ctx's deadline
// unless the DSN already sets one.
func postgresDSN(ctx context.Context, dsn string) string {
	deadline, ok := ctx.Deadline()
	if !ok || strings.Contains(dsn, "connect_timeout") {
		return dsn
	}
	secs := max(int(math.Ceil(time.Until(deadline).Seconds())), 1)
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + "connect_timeout=" + strconv.Itoa(secs)
	default:
		return strings.TrimSpace(dsn+" connect_timeout=") + strconv.Itoa(secs)
	}
}

func openSQLite(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open(DriverSQLite, dsn)
	if err != nil {
		return nil, persistErr("opening sqlite", err)
	}
	// One connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	return initSchema(ctx, db, DriverSQLite)
}

func initSchema(ctx context.Context, db *sql.DB, driver string) (*Store, error) {
	err := bounded(ctx, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return persistErr("connecting", err)
		}
		if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
			return persistErr("creating schema", err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, driver: driver}, nil
}

// bounded runs fn and gives up when ctx ends, even if the driver ignores
// cancellation while dialing.
func bounded(ctx context.Context, fn func(context.Context) error) error {
	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return persistErr("connecting", ctx.Err())
	}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the backend driver name.
func (s *Store) Driver() string { return s.driver }

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return persistErr("ping", err)
	}
	return nil
}

// rebind rewrites ? placeholders to $N for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type scanner interface {
	Scan(dest ...any) error
}

const lineColumns = `id, budget_code, funding_source, strategic_pillar, objective, activity,
	odoo_code, odoo_category, zgf_code, currency, total_cost, q1, q2, q3, q4, spent, updated_at`

func scanLine(row scanner) (model.BudgetLine, error) {
	var (
		l       model.BudgetLine
		updated string
	)
	err := row.Scan(&l.ID, &l.BudgetCode, &l.FundingSource, &l.StrategicPillar, &l.Objective,
		&l.Activity, &l.OdooCode, &l.OdooCategory, &l.ZGFCode, &l.Currency,
		&l.TotalCost, &l.Q1, &l.Q2, &l.Q3, &l.Q4, &l.Spent, &updated)
	if err != nil {
		return l, err
	}
	l.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return l, nil
}

// UpsertBudgetLine inserts or replaces a budget line keyed by id.
// The stored spent value is never overwritten here.
func (s *Store) UpsertBudgetLine(ctx context.Context, l model.BudgetLine) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO budget_lines
		(id, budget_code, funding_source, strategic_pillar, objective, activity,
		 odoo_code, odoo_category, zgf_code, currency, total_cost, q1, q2, q3, q4, spent, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '0', ?)
		ON CONFLICT (id) DO UPDATE SET
		 budget_code = excluded.budget_code,
		 funding_source = excluded.funding_source,
		 strategic_pillar = excluded.strategic_pillar,
		 objective = excluded.objective,
		 activity = excluded.activity,
		 odoo_code = excluded.odoo_code,
		 odoo_category = excluded.odoo_category,
		 zgf_code = excluded.zgf_code,
		 currency = excluded.currency,
		 total_cost = excluded.total_cost,
		 q1 = excluded.q1, q2 = excluded.q2, q3 = excluded.q3, q4 = excluded.q4,
		 updated_at = excluded.updated_at`),
		l.ID, l.BudgetCode, l.FundingSource, l.StrategicPillar, l.Objective, l.Activity,
		l.OdooCode, l.OdooCategory, l.ZGFCode, l.Currency,
		l.TotalCost.String(), l.Q1.String(), l.Q2.String(), l.Q3.String(), l.Q4.String(), now,
	)
	if err != nil {
		return persistErr("upserting budget line "+l.ID, err)
	}
	return nil
}

// BudgetLine returns one line by id.
func (s *Store) BudgetLine(ctx context.Context, id string) (model.BudgetLine, error) {
	l, err := scanLine(s.db.QueryRowContext(ctx,
		s.rebind(`SELECT `+lineColumns+` FROM budget_lines WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return l, fmt.Errorf("budget line %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return l, persistErr("reading budget line", err)
	}
	return l, nil
}

// BudgetLines returns all lines ordered by id.
func (s *Store) BudgetLines(ctx context.Context) ([]model.BudgetLine, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+lineColumns+` FROM budget_lines ORDER BY id`)
	if err != nil {
		return nil, persistErr("listing budget lines", err)
	}
	defer func() { _ = rows.Close() }()

	var lines []model.BudgetLine
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, persistErr("scanning budget line", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterating budget lines", err)
	}
	return lines, nil
}

// RecomputeSpent sets a line's spent to the sum of its approved requests.
// It is the only write path for spent.
func (s *Store) RecomputeSpent(ctx context.Context, lineID string) (model.BudgetLine, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.BudgetLine{}, persistErr("begin recompute", err)
	}
	defer func() { _ = tx.Rollback() }()

	lock := `SELECT ` + lineColumns + ` FROM budget_lines WHERE id = ?`
	if s.driver == DriverPostgres {
		lock += ` FOR UPDATE`
	}
	line, err := scanLine(tx.QueryRowContext(ctx, s.rebind(lock), lineID))
	if errors.Is(err, sql.ErrNoRows) {
		return line, fmt.Errorf("budget line %s: %w", lineID, ErrNotFound)
	}
	if err != nil {
		return line, persistErr("locking budget line", err)
	}

	rows, err := tx.QueryContext(ctx, s.rebind(`SELECT amount FROM payment_requests
		WHERE budget_line_id = ? AND status = ?`), lineID, string(model.StatusApproved))
	if err != nil {
		return line, persistErr("summing approved requests", err)
	}
	spent := decimal.Zero
	for rows.Next() {
		var amt decimal.Decimal
		if err := rows.Scan(&amt); err != nil {
			_ = rows.Close()
			return line, persistErr("scanning amount", err)
		}
		spent = spent.Add(amt)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return line, persistErr("iterating amounts", err)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, s.rebind(`UPDATE budget_lines SET spent = ?, updated_at = ? WHERE id = ?`),
		spent.String(), now.Format(time.RFC3339Nano), lineID); err != nil {
		return line, persistErr("writing spent", err)
	}
	if err := tx.Commit(); err != nil {
		return line, persistErr("commit recompute", err)
	}

	line.Spent = spent
	line.UpdatedAt = now
	return line, nil
}
