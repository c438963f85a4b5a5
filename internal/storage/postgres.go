package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"budget/internal/core"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on a pgx connection pool. The pool reuses
// connections instead of opening one per query; per-user serialization of the
// salary read-modify-write uses SELECT ... FOR UPDATE row locking.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if err := RunPostgresMigrations(dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

func (p *PostgresStore) CreateUser(ctx context.Context, user core.User) error {
	tag, err := p.pool.Exec(ctx,
		`INSERT INTO users (username, password_hash) VALUES ($1, $2)
		 ON CONFLICT (username) DO NOTHING`,
		user.Username, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUsernameTaken
	}
	return nil
}

func (p *PostgresStore) GetUser(ctx context.Context, username string) (core.User, error) {
	var u core.User
	err := p.pool.QueryRow(ctx,
		`SELECT username, password_hash FROM users WHERE username = $1`, username).
		Scan(&u.Username, &u.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.User{}, ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (p *PostgresStore) RecordExpense(ctx context.Context, t core.Transaction) (core.Transaction, bool, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return core.Transaction{}, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Row lock serializes concurrent expenses for the same user without
	// blocking other users.
	var salary, limit int64
	err = tx.QueryRow(ctx,
		`SELECT salary_cents, limit_cents FROM expense_limits WHERE username = $1 FOR UPDATE`,
		t.Username).Scan(&salary, &limit)
	if errors.Is(err, pgx.ErrNoRows) {
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

	if _, err := tx.Exec(ctx,
		`UPDATE expense_limits SET salary_cents = $1 WHERE username = $2`,
		remaining.Cents, t.Username); err != nil {
		return core.Transaction{}, false, fmt.Errorf("update salary: %w", err)
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO transactions (username, category, amount_cents, tx_date)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		t.Username, t.Category, t.Amount.Cents, t.Date.Time).Scan(&t.ID)
	if err != nil {
		return core.Transaction{}, false, fmt.Errorf("insert transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return core.Transaction{}, false, fmt.Errorf("commit: %w", err)
	}
	return t, warned, nil
}

func (p *PostgresStore) ListTransactions(ctx context.Context, username string) ([]core.Transaction, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, username, category, amount_cents, tx_date
		 FROM transactions WHERE username = $1 ORDER BY tx_date, id`, username)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txs := []core.Transaction{}
	for rows.Next() {
		t, err := scanPgTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (p *PostgresStore) GetTransaction(ctx context.Context, username string, id int64) (core.Transaction, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, username, category, amount_cents, tx_date
		 FROM transactions WHERE id = $1 AND username = $2`, id, username)
	t, err := scanPgTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (p *PostgresStore) DeleteTransaction(ctx context.Context, username string, id int64) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM transactions WHERE id = $1 AND username = $2`, id, username)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) SetExpenseLimit(ctx context.Context, l core.ExpenseLimit) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO expense_limits (username, salary_cents, limit_cents) VALUES ($1, $2, $3)
		 ON CONFLICT (username) DO UPDATE SET salary_cents = EXCLUDED.salary_cents, limit_cents = EXCLUDED.limit_cents`,
		l.Username, l.Salary.Cents, l.Limit.Cents)
	if err != nil {
		return fmt.Errorf("upsert expense limit: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetExpenseLimit(ctx context.Context, username string) (core.ExpenseLimit, error) {
	l := core.ExpenseLimit{Username: username}
	err := p.pool.QueryRow(ctx,
		`SELECT salary_cents, limit_cents FROM expense_limits WHERE username = $1`, username).
		Scan(&l.Salary.Cents, &l.Limit.Cents)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ExpenseLimit{}, ErrNotFound
	}
	if err != nil {
		return core.ExpenseLimit{}, fmt.Errorf("get expense limit: %w", err)
	}
	return l, nil
}

func (p *PostgresStore) CreateRecurringExpense(ctx context.Context, re core.RecurringExpense) (core.RecurringExpense, error) {
	var end any
	if !re.EndDate.IsZero() {
		end = re.EndDate.Time
	}
	err := p.pool.QueryRow(ctx,
		`INSERT INTO recurring_expenses (username, category, amount_cents, frequency, start_date, end_date, next_due)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		re.Username, re.Category, re.Amount.Cents, string(re.Frequency),
		re.StartDate.Time, end, re.NextDue.Time).Scan(&re.ID)
	if err != nil {
		return core.RecurringExpense{}, fmt.Errorf("insert recurring expense: %w", err)
	}
	return re, nil
}

func (p *PostgresStore) ListRecurringExpenses(ctx context.Context, username string) ([]core.RecurringExpense, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, username, category, amount_cents, frequency, start_date, end_date, next_due
		 FROM recurring_expenses WHERE username = $1 ORDER BY id`, username)
	if err != nil {
		return nil, fmt.Errorf("list recurring expenses: %w", err)
	}
	defer rows.Close()
	return scanPgRecurringExpenses(rows)
}

func (p *PostgresStore) DueRecurringExpenses(ctx context.Context, asOf core.Date) ([]core.RecurringExpense, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, username, category, amount_cents, frequency, start_date, end_date, next_due
		 FROM recurring_expenses WHERE next_due <= $1 ORDER BY id`, asOf.Time)
	if err != nil {
		return nil, fmt.Errorf("due recurring expenses: %w", err)
	}
	defer rows.Close()
	return scanPgRecurringExpenses(rows)
}

func (p *PostgresStore) MaterializeRecurring(ctx context.Context, re core.RecurringExpense, next core.Date, retire bool) (core.Transaction, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO transactions (username, category, amount_cents, tx_date)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		re.Username, re.Category, re.Amount.Cents, re.NextDue.Time).Scan(&id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	if retire {
		_, err = tx.Exec(ctx, `DELETE FROM recurring_expenses WHERE id = $1`, re.ID)
	} else {
		_, err = tx.Exec(ctx,
			`UPDATE recurring_expenses SET next_due = $1 WHERE id = $2`, next.Time, re.ID)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("advance recurring expense: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
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

func (p *PostgresStore) CategoryTrends(ctx context.Context, username string, from, to core.Date) ([]CategoryTrend, error) {
	query := `SELECT category, to_char(tx_date, 'YYYY-MM') AS month, SUM(amount_cents)
		 FROM transactions WHERE username = $1`
	args := []any{username}
	if !from.IsZero() {
		args = append(args, from.Time)
		query += fmt.Sprintf(` AND tx_date >= $%d`, len(args))
	}
	if !to.IsZero() {
		args = append(args, to.Time)
		query += fmt.Sprintf(` AND tx_date <= $%d`, len(args))
	}
	query += ` GROUP BY category, month ORDER BY month, category`

	rows, err := p.pool.Query(ctx, query, args...)
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

func (p *PostgresStore) CategoryTotals(ctx context.Context, username string) ([]CategoryTotal, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT category, SUM(amount_cents) FROM transactions
		 WHERE username = $1 GROUP BY category ORDER BY category`, username)
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

func scanPgTransaction(row pgx.Row) (core.Transaction, error) {
	var t core.Transaction
	var date time.Time
	if err := row.Scan(&t.ID, &t.Username, &t.Category, &t.Amount.Cents, &date); err != nil {
		return core.Transaction{}, err
	}
	t.Date = core.DateOf(date)
	return t, nil
}

func scanPgRecurringExpenses(rows pgx.Rows) ([]core.RecurringExpense, error) {
	res := []core.RecurringExpense{}
	for rows.Next() {
		var re core.RecurringExpense
		var freq string
		var start, next time.Time
		var end *time.Time
		if err := rows.Scan(&re.ID, &re.Username, &re.Category, &re.Amount.Cents,
			&freq, &start, &end, &next); err != nil {
			return nil, fmt.Errorf("scan recurring expense: %w", err)
		}
		re.Frequency = core.Frequency(freq)
		re.StartDate = core.DateOf(start)
		re.NextDue = core.DateOf(next)
		if end != nil {
			re.EndDate = core.DateOf(*end)
		}
		res = append(res, re)
	}
	return res, rows.Err()
}
