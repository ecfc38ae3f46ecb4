// Package sqlite is a Repository backed by a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/recon/internal/model"
	"github.com/cleared-dev/recon/internal/reconcile"
)

var _ reconcile.Repository = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS subscriptions (
	user_id    TEXT NOT NULL,
	merchant   TEXT NOT NULL,
	amount     TEXT NOT NULL,
	frequency  TEXT NOT NULL,
	confidence REAL NOT NULL,
	start_date TEXT NOT NULL DEFAULT '',
	category   TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL,
	PRIMARY KEY (user_id, merchant)
);

CREATE TABLE IF NOT EXISTS bills (
	user_id    TEXT NOT NULL,
	merchant   TEXT NOT NULL,
	cycle_day  INTEGER NOT NULL,
	amount     TEXT NOT NULL,
	frequency  TEXT NOT NULL,
	confidence REAL NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (user_id, merchant)
);
`

// Store persists subscriptions and bills, one row per (user, merchant).
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path. Use ":memory:" for a private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

// UpsertSubscription inserts rec or refines the stored record for its merchant.
func (s *Store) UpsertSubscription(ctx context.Context, rec model.SubscriptionRecord) error {
	if rec.UserID == "" || rec.Merchant == "" {
		return fmt.Errorf("subscription requires user and merchant")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	row := tx.QueryRowContext(ctx,
		`SELECT user_id, merchant, amount, frequency, confidence, start_date, category
		 FROM subscriptions WHERE user_id = ? AND merchant = ?`, rec.UserID, rec.Merchant)
	cur, err := scanSubscription(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("loading subscription %s: %w", rec.Merchant, err)
	default:
		rec = cur.Refine(rec)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, merchant, amount, frequency, confidence, start_date, category, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, merchant) DO UPDATE SET
			amount = excluded.amount,
			frequency = excluded.frequency,
			confidence = excluded.confidence,
			start_date = excluded.start_date,
			category = excluded.category,
			updated_at = excluded.updated_at`,
		rec.UserID, rec.Merchant, rec.Amount.String(), string(rec.Frequency), rec.Confidence,
		dateString(rec.StartDate), rec.Category, s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upserting subscription %s: %w", rec.Merchant, err)
	}
	return tx.Commit()
}

// UpsertBill inserts rec or refines the stored record for its merchant.
func (s *Store) UpsertBill(ctx context.Context, rec model.BillRecord) error {
	if rec.UserID == "" || rec.Merchant == "" {
		return fmt.Errorf("bill requires user and merchant")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	row := tx.QueryRowContext(ctx,
		`SELECT user_id, merchant, cycle_day, amount, frequency, confidence
		 FROM bills WHERE user_id = ? AND merchant = ?`, rec.UserID, rec.Merchant)
	cur, err := scanBill(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("loading bill %s: %w", rec.Merchant, err)
	default:
		rec = cur.Refine(rec)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO bills (user_id, merchant, cycle_day, amount, frequency, confidence, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, merchant) DO UPDATE SET
			cycle_day = excluded.cycle_day,
			amount = excluded.amount,
			frequency = excluded.frequency,
			confidence = excluded.confidence,
			updated_at = excluded.updated_at`,
		rec.UserID, rec.Merchant, rec.CycleDay, rec.Amount.String(), string(rec.Frequency), rec.Confidence,
		s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upserting bill %s: %w", rec.Merchant, err)
	}
	return tx.Commit()
}

// ListSubscriptions returns the user's subscriptions ordered by merchant.
func (s *Store) ListSubscriptions(ctx context.Context, userID string) ([]model.SubscriptionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, merchant, amount, frequency, confidence, start_date, category
		 FROM subscriptions WHERE user_id = ? ORDER BY merchant`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying subscriptions: %w", err)
	}
	defer rows.Close()

	var out []model.SubscriptionRecord
	for rows.Next() {
		rec, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning subscription: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListBills returns the user's bills ordered by merchant.
func (s *Store) ListBills(ctx context.Context, userID string) ([]model.BillRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, merchant, cycle_day, amount, frequency, confidence
		 FROM bills WHERE user_id = ? ORDER BY merchant`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying bills: %w", err)
	}
	defer rows.Close()

	var out []model.BillRecord
	for rows.Next() {
		rec, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning bill: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubscription(sc scanner) (model.SubscriptionRecord, error) {
	var (
		rec                     model.SubscriptionRecord
		amount, freq, startDate string
	)
	if err := sc.Scan(&rec.UserID, &rec.Merchant, &amount, &freq, &rec.Confidence, &startDate, &rec.Category); err != nil {
		return model.SubscriptionRecord{}, err
	}
	var err error
	if rec.Amount, err = decimal.NewFromString(amount); err != nil {
		return model.SubscriptionRecord{}, fmt.Errorf("parsing amount %q: %w", amount, err)
	}
	rec.Frequency = model.Frequency(freq)
	if startDate != "" {
		if rec.StartDate, err = civil.ParseDate(startDate); err != nil {
			return model.SubscriptionRecord{}, fmt.Errorf("parsing start date %q: %w", startDate, err)
		}
	}
	return rec, nil
}

func scanBill(sc scanner) (model.BillRecord, error) {
	var (
		rec          model.BillRecord
		amount, freq string
	)
	if err := sc.Scan(&rec.UserID, &rec.Merchant, &rec.CycleDay, &amount, &freq, &rec.Confidence); err != nil {
		return model.BillRecord{}, err
	}
	var err error
	if rec.Amount, err = decimal.NewFromString(amount); err != nil {
		return model.BillRecord{}, fmt.Errorf("parsing amount %q: %w", amount, err)
	}
	rec.Frequency = model.Frequency(freq)
	rec.IsBill = true
	return rec, nil
}

func dateString(d civil.Date) string {
	if !d.IsValid() {
		return ""
	}
	return d.String()
}
