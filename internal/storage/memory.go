package storage

import (
	"context"
	"sort"
	"sync"

	"budget/internal/core"
)

// MemoryStore is an in-memory Store used for tests and local development.
// The limit read-modify-write takes a per-user mutex, mirroring the row-level
// serialization the SQL backends get from their transactions: two concurrent
// expenses for the same user can never both pass the insufficient-funds check
// against a stale salary.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]core.User
	limits    map[string]core.ExpenseLimit
	txs       map[int64]core.Transaction
	recurring map[int64]core.RecurringExpense
	nextTxID  int64
	nextReID  int64

	userMu map[string]*sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]core.User),
		limits:    make(map[string]core.ExpenseLimit),
		txs:       make(map[int64]core.Transaction),
		recurring: make(map[int64]core.RecurringExpense),
		userMu:    make(map[string]*sync.Mutex),
	}
}

func (m *MemoryStore) Close() error { return nil }

// userLock returns the mutex serializing salary mutations for one user.
func (m *MemoryStore) userLock(username string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.userMu[username]
	if !ok {
		lock = &sync.Mutex{}
		m.userMu[username] = lock
	}
	return lock
}

func (m *MemoryStore) CreateUser(_ context.Context, user core.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Username]; ok {
		return ErrUsernameTaken
	}
	m.users[user.Username] = user
	return nil
}

func (m *MemoryStore) GetUser(_ context.Context, username string) (core.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return core.User{}, ErrNotFound
	}
	return u, nil
}

func (m *MemoryStore) RecordExpense(_ context.Context, t core.Transaction) (core.Transaction, bool, error) {
	lock := m.userLock(t.Username)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	limit, ok := m.limits[t.Username]
	if !ok {
		return core.Transaction{}, false, core.ErrLimitNotConfigured
	}

	remaining, warned, err := core.ApplyExpense(limit.Salary, limit.Limit, t.Amount)
	if err != nil {
		return core.Transaction{}, false, err
	}

	limit.Salary = remaining
	m.limits[t.Username] = limit

	m.nextTxID++
	t.ID = m.nextTxID
	m.txs[t.ID] = t
	return t, warned, nil
}

func (m *MemoryStore) ListTransactions(_ context.Context, username string) ([]core.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := []core.Transaction{}
	for _, t := range m.txs {
		if t.Username == username {
			res = append(res, t)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].Date.Equal(res[j].Date.Time) {
			return res[i].Date.Before(res[j].Date.Time)
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (m *MemoryStore) GetTransaction(_ context.Context, username string, id int64) (core.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.txs[id]
	if !ok || t.Username != username {
		return core.Transaction{}, ErrNotFound
	}
	return t, nil
}

func (m *MemoryStore) DeleteTransaction(_ context.Context, username string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txs[id]
	if !ok || t.Username != username {
		return ErrNotFound
	}
	delete(m.txs, id)
	return nil
}

func (m *MemoryStore) SetExpenseLimit(_ context.Context, l core.ExpenseLimit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limits[l.Username] = l
	return nil
}

func (m *MemoryStore) GetExpenseLimit(_ context.Context, username string) (core.ExpenseLimit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.limits[username]
	if !ok {
		return core.ExpenseLimit{}, ErrNotFound
	}
	return l, nil
}

func (m *MemoryStore) CreateRecurringExpense(_ context.Context, re core.RecurringExpense) (core.RecurringExpense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextReID++
	re.ID = m.nextReID
	m.recurring[re.ID] = re
	return re, nil
}

func (m *MemoryStore) ListRecurringExpenses(_ context.Context, username string) ([]core.RecurringExpense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := []core.RecurringExpense{}
	for _, re := range m.recurring {
		if re.Username == username {
			res = append(res, re)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (m *MemoryStore) DueRecurringExpenses(_ context.Context, asOf core.Date) ([]core.RecurringExpense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := []core.RecurringExpense{}
	for _, re := range m.recurring {
		if !re.NextDue.After(asOf.Time) {
			res = append(res, re)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (m *MemoryStore) MaterializeRecurring(_ context.Context, re core.RecurringExpense, next core.Date, retire bool) (core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.recurring[re.ID]
	if !ok {
		return core.Transaction{}, ErrNotFound
	}

	m.nextTxID++
	t := core.Transaction{
		ID:       m.nextTxID,
		Category: re.Category,
		Amount:   re.Amount,
		Date:     re.NextDue,
		Username: re.Username,
	}
	m.txs[t.ID] = t

	if retire {
		delete(m.recurring, re.ID)
	} else {
		stored.NextDue = next
		m.recurring[re.ID] = stored
	}
	return t, nil
}

func (m *MemoryStore) CategoryTrends(ctx context.Context, username string, from, to core.Date) ([]CategoryTrend, error) {
	txs, _ := m.ListTransactions(ctx, username)

	buckets := map[[2]string]int64{}
	for _, t := range txs {
		if !from.IsZero() && t.Date.Before(from.Time) {
			continue
		}
		if !to.IsZero() && t.Date.After(to.Time) {
			continue
		}
		buckets[[2]string{t.Date.YearMonth(), t.Category}] += t.Amount.Cents
	}

	trends := []CategoryTrend{}
	for key, total := range buckets {
		trends = append(trends, CategoryTrend{
			Category: key[1],
			Month:    key[0],
			Total:    core.Money{Cents: total},
		})
	}
	sort.Slice(trends, func(i, j int) bool {
		if trends[i].Month != trends[j].Month {
			return trends[i].Month < trends[j].Month
		}
		return trends[i].Category < trends[j].Category
	})
	return trends, nil
}

func (m *MemoryStore) CategoryTotals(ctx context.Context, username string) ([]CategoryTotal, error) {
	txs, _ := m.ListTransactions(ctx, username)

	buckets := map[string]int64{}
	for _, t := range txs {
		buckets[t.Category] += t.Amount.Cents
	}

	totals := []CategoryTotal{}
	for category, total := range buckets {
		totals = append(totals, CategoryTotal{Category: category, Total: core.Money{Cents: total}})
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].Category < totals[j].Category })
	return totals, nil
}
