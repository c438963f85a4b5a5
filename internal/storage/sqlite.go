package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"budget/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the default Store backend, persisting the ledger to a local
// SQLite file. SQLite serializes writers, so the per-user salary
// read-modify-write in RecordExpense is naturally single-writer once wrapped
// in a transaction.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
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

	if err := RunSQLiteMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, user core.User) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE username = ?`, user.Username).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check username: %w", err)
	}
	if exists > 0 {
		return ErrUsernameTaken
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash) VALUES (?, ?)`,
		user.Username, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, username string) (core.User, error) {
	var u core.User
	err := s.db.QueryRowContext(ctx,
		`SELECT username, password_hash FROM users WHERE username = ?`, username).
		Scan(&u.Username, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// RecordExpense runs the limit check and the two writes in one transaction:
// both the salary decrement and the transaction insert commit, or neither does.
func (s *SQLiteStore) RecordExpense(ctx context.Context, t core.Transaction) (core.Transaction, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Transaction{}, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var salary, limit int64
	err = tx.QueryRowContext(ctx,
		`SELECT salary_cents, limit_cents FROM expense_limits WHERE username = ?`,
		t.Username).Scan(&salary, &limit)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, false, core.ErrLimitNotConfigured
	}
	if err != nil {
		return core.Transaction{}, false, fmt.Errorf("get expense limit: %w", err)
	}

	remaining, warned, err := core.ApplyExpense(
		core.Money{Cents: salary}, core.Money{Cents: limit}, t.Amount)
	if err != nil {
		return core.Transaction{}, false, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE expense_limits SET salary_cents = ? WHERE username = ?`,
		remaining.Cents, t.Username); err != nil {
		return core.Transaction{}, false, fmt.Errorf("update salary: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (username, category, amount_cents, tx_date) VALUES (?, ?, ?, ?)`,
		t.Username, t.Category, t.Amount.Cents, t.Date.String())
	if err != nil {
		return core.Transaction{}, false, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, false, fmt.Errorf("last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.Transaction{}, false, fmt.Errorf("commit: %w", err)
	}

	t.ID = id
	slog.InfoContext(ctx, "Expense recorded",
		"id", id,
		"user", t.Username,
		"category", t.Category,
		"amount_cents", t.Amount.Cents,
		"remaining_cents", remaining.Cents,
		"warned", warned)
	return t, warned, nil
}

func (s *SQLiteStore) ListTransactions(ctx context.Context, username string) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, category, amount_cents, tx_date
		 FROM transactions WHERE username = ? ORDER BY tx_date, id`, username)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (s *SQLiteStore) GetTransaction(ctx context.Context, username string, id int64) (core.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, category, amount_cents, tx_date
		 FROM transactions WHERE id = ? AND username = ?`, id, username)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) DeleteTransaction(ctx context.Context, username string, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND username = ?`, id, username)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) SetExpenseLimit(ctx context.Context, l core.ExpenseLimit) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expense_limits (username, salary_cents, limit_cents) VALUES (?, ?, ?)
		 ON CONFLICT(username) DO UPDATE SET salary_cents = excluded.salary_cents, limit_cents = excluded.limit_cents`,
		l.Username, l.Salary.Cents, l.Limit.Cents)
	if err != nil {
		return fmt.Errorf("upsert expense limit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetExpenseLimit(ctx context.Context, username string) (core.ExpenseLimit, error) {
	l := core.ExpenseLimit{Username: username}
	err := s.db.QueryRowContext(ctx,
		`SELECT salary_cents, limit_cents FROM expense_limits WHERE username = ?`, username).
		Scan(&l.Salary.Cents, &l.Limit.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExpenseLimit{}, ErrNotFound
	}
	if err != nil {
		return core.ExpenseLimit{}, fmt.Errorf("get expense limit: %w", err)
	}
	return l, nil
}

func (s *SQLiteStore) CreateRecurringExpense(ctx context.Context, re core.RecurringExpense) (core.RecurringExpense, error) {
	var endDate any
	if !re.EndDate.IsZero() {
		endDate = re.EndDate.String()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO recurring_expenses (username, category, amount_cents, frequency, start_date, end_date, next_due)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		re.Username, re.Category, re.Amount.Cents, string(re.Frequency),
		re.StartDate.String(), endDate, re.NextDue.String())
	if err != nil {
		return core.RecurringExpense{}, fmt.Errorf("insert recurring expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.RecurringExpense{}, fmt.Errorf("last insert id: %w", err)
	}
	re.ID = id
	return re, nil
}

func (s *SQLiteStore) ListRecurringExpenses(ctx context.Context, username string) ([]core.RecurringExpense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, category, amount_cents, frequency, start_date, end_date, next_due
		 FROM recurring_expenses WHERE username = ? ORDER BY id`, username)
	if err != nil {
		return nil, fmt.Errorf("list recurring expenses: %w", err)
	}
	defer rows.Close()
	return scanRecurringExpenses(rows)
}

func (s *SQLiteStore) DueRecurringExpenses(ctx context.Context, asOf core.Date) ([]core.RecurringExpense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, category, amount_cents, frequency, start_date, end_date, next_due
		 FROM recurring_expenses WHERE next_due <= ? ORDER BY id`, asOf.String())
	if err != nil {
		return nil, fmt.Errorf("due recurring expenses: %w", err)
	}
	defer rows.Close()
	return scanRecurringExpenses(rows)
}

// MaterializeRecurring inserts the materialized transaction and the schedule
// update (or retirement) in one transaction.
func (s *SQLiteStore) MaterializeRecurring(ctx context.Context, re core.RecurringExpense, next core.Date, retire bool) (core.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (username, category, amount_cents, tx_date) VALUES (?, ?, ?, ?)`,
		re.Username, re.Category, re.Amount.Cents, re.NextDue.String())
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("last insert id: %w", err)
	}

	if retire {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM recurring_expenses WHERE id = ?`, re.ID)
	} else {
		_, err = tx.ExecContext(ctx,
			`UPDATE recurring_expenses SET next_due = ? WHERE id = ?`, next.String(), re.ID)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("advance recurring expense: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.Transaction{}, fmt.Errorf("commit: %w", err)
	}

	return core.Transaction{
		ID:       id,
		Category: re.Category,
		Amount:   re.Amount,
		Date:     re.NextDue,
		Username: re.Username,
	}, nil
}

func (s *SQLiteStore) CategoryTrends(ctx context.Context, username string, from, to core.Date) ([]CategoryTrend, error) {
	query := `SELECT category, strftime('%Y-%m', tx_date) AS month, SUM(amount_cents)
		 FROM transactions WHERE username = ?`
	args := []any{username}
	if !from.IsZero() {
		query += ` AND tx_date >= ?`
		args = append(args, from.String())
	}
	if !to.IsZero() {
		query += ` AND tx_date <= ?`
		args = append(args, to.String())
	}
	query += ` GROUP BY category, month ORDER BY month, category`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("category trends: %w", err)
	}
	defer rows.Close()

	trends := []CategoryTrend{}
	for rows.Next() {
		var ct CategoryTrend
		if err := rows.Scan(&ct.Category, &ct.Month, &ct.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan trend: %w", err)
		}
		trends = append(trends, ct)
	}
	return trends, rows.Err()
}

func (s *SQLiteStore) CategoryTotals(ctx context.Context, username string) ([]CategoryTotal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, SUM(amount_cents) FROM transactions
		 WHERE username = ? GROUP BY category ORDER BY category`, username)
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	totals := []CategoryTotal{}
	for rows.Next() {
		var ct CategoryTotal
		if err := rows.Scan(&ct.Category, &ct.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan total: %w", err)
		}
		totals = append(totals, ct)
	}
	return totals, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var t core.Transaction
	var dateStr string
	if err := row.Scan(&t.ID, &t.Username, &t.Category, &t.Amount.Cents, &dateStr); err != nil {
		return core.Transaction{}, err
	}
	d, err := core.ParseDate(dateStr)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse stored date %q: %w", dateStr, err)
	}
	t.Date = d
	return t, nil
}

func scanTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	txs := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func scanRecurringExpenses(rows *sql.Rows) ([]core.RecurringExpense, error) {
	res := []core.RecurringExpense{}
	for rows.Next() {
		var re core.RecurringExpense
		var freq, startStr, nextStr string
		var endStr sql.NullString
		if err := rows.Scan(&re.ID, &re.Username, &re.Category, &re.Amount.Cents,
			&freq, &startStr, &endStr, &nextStr); err != nil {
			return nil, fmt.Errorf("scan recurring expense: %w", err)
		}
		re.Frequency = core.Frequency(freq)
		var err error
		if re.StartDate, err = core.ParseDate(startStr); err != nil {
			return nil, fmt.Errorf("parse start date %q: %w", startStr, err)
		}
		if re.NextDue, err = core.ParseDate(nextStr); err != nil {
			return nil, fmt.Errorf("parse next due %q: %w", nextStr, err)
		}
		if endStr.Valid && endStr.String != "" {
			if re.EndDate, err = core.ParseDate(endStr.String); err != nil {
				return nil, fmt.Errorf("parse end date %q: %w", endStr.String, err)
			}
		}
		res = append(res, re)
	}
	return res, rows.Err()
}
