package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"budget/internal/auth"
	"budget/internal/services"
	"budget/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	authSvc := auth.NewService("test-secret-for-handlers", 30*time.Minute)
	expenses := services.NewExpenseService(store, nil)
	return NewServer(":0", store, authSvc, expenses), store
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

// registerUser registers a user through the API and returns a usable token.
func registerUser(t *testing.T, h http.Handler, username string) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"password": "hunter2hunter2",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register returned %d: %s", rec.Code, rec.Body.String())
	}
	var tok tokenResponse
	decodeBody(t, rec, &tok)
	if tok.AccessToken == "" || tok.TokenType != "bearer" {
		t.Fatalf("unexpected token response %+v", tok)
	}
	return tok.AccessToken
}

func setLimit(t *testing.T, h http.Handler, token string, salary, limit string) {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/expenses/expense-limit", token, map[string]string{
		"salary": salary,
		"limit":  limit,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("set limit returned %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRegisterAndLogin(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	registerUser(t, h, "alice")

	// Duplicate registration fails 400.
	rec := doJSON(t, h, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "alice", "password": "whatever123",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("duplicate register returned %d, want 400", rec.Code)
	}

	// Login with the right password succeeds.
	rec = doJSON(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice", "password": "hunter2hunter2",
	})
	if rec.Code != http.StatusOK {
		t.Errorf("login returned %d: %s", rec.Code, rec.Body.String())
	}

	// Wrong password and unknown user are both 401 with the same body.
	recWrong := doJSON(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "alice", "password": "wrong",
	})
	recUnknown := doJSON(t, h, http.MethodPost, "/auth/login", "", map[string]string{
		"username": "nobody", "password": "wrong",
	})
	if recWrong.Code != http.StatusUnauthorized || recUnknown.Code != http.StatusUnauthorized {
		t.Errorf("bad logins returned %d/%d, want 401/401", recWrong.Code, recUnknown.Code)
	}
	if recWrong.Body.String() != recUnknown.Body.String() {
		t.Error("login error bodies differ between wrong password and unknown user")
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/expenses", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token returned %d, want 401", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/expenses", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token returned %d, want 401", rec.Code)
	}
}

func TestCreateExpenseFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	token := registerUser(t, h, "alice")

	// Without a limit configured the expense is rejected.
	rec := doJSON(t, h, http.MethodPost, "/api/expenses", token, map[string]any{
		"category": "food", "amount": "12.50", "date": "2024-03-01",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expense without limit returned %d, want 400", rec.Code)
	}

	setLimit(t, h, token, "1000.00", "200.00")

	rec = doJSON(t, h, http.MethodPost, "/api/expenses", token, map[string]any{
		"category": "food", "amount": "12.50", "date": "2024-03-01",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create expense returned %d: %s", rec.Code, rec.Body.String())
	}

	var resp createExpenseResponse
	decodeBody(t, rec, &resp)
	if resp.Expense.ID == 0 || resp.Expense.Category != "food" || resp.Expense.Amount.Cents != 1250 {
		t.Errorf("unexpected expense %+v", resp.Expense)
	}
	if resp.Warning != "" {
		t.Errorf("unexpected warning %q", resp.Warning)
	}

	// Spend down to the threshold: 987.50 remaining, threshold 200.
	rec = doJSON(t, h, http.MethodPost, "/api/expenses", token, map[string]any{
		"category": "rent", "amount": "787.50", "date": "2024-03-02",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create expense returned %d: %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &resp)
	if resp.Warning == "" {
		t.Error("expected warning when remaining salary reached the threshold")
	}

	// Overspending is refused.
	rec = doJSON(t, h, http.MethodPost, "/api/expenses", token, map[string]any{
		"category": "car", "amount": "5000.00", "date": "2024-03-03",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("insufficient funds returned %d, want 400", rec.Code)
	}
}

func TestExpenseOwnershipIsOpaque(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	alice := registerUser(t, h, "alice")
	bob := registerUser(t, h, "bob")
	setLimit(t, h, alice, "1000.00", "0")

	rec := doJSON(t, h, http.MethodPost, "/api/expenses", alice, map[string]any{
		"category": "food", "amount": "10.00", "date": "2024-03-01",
	})
	var resp createExpenseResponse
	decodeBody(t, rec, &resp)
	id := resp.Expense.ID

	// Bob sees alice's expense as 404, indistinguishable from absent.
	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/expenses/%d", id), bob, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign GET returned %d, want 404", rec.Code)
	}
	rec = doJSON(t, h, http.MethodDelete, fmt.Sprintf("/api/expenses/%d", id), bob, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign DELETE returned %d, want 404", rec.Code)
	}

	// The owner can still fetch and delete it.
	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/expenses/%d", id), alice, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("owner GET returned %d, want 200", rec.Code)
	}
	rec = doJSON(t, h, http.MethodDelete, fmt.Sprintf("/api/expenses/%d", id), alice, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("owner DELETE returned %d, want 200", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/expenses/%d", id), alice, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("deleted GET returned %d, want 404", rec.Code)
	}
}

func TestCreateRecurringExpense(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	token := registerUser(t, h, "alice")

	rec := doJSON(t, h, http.MethodPost, "/api/recurring-expenses", token, map[string]any{
		"category":   "netflix",
		"amount":     "9.99",
		"frequency":  "Monthly",
		"start_date": "2024-04-01",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create recurring returned %d: %s", rec.Code, rec.Body.String())
	}

	var resp recurringExpenseResponse
	decodeBody(t, rec, &resp)
	if resp.Frequency != "monthly" {
		t.Errorf("frequency not canonicalized: %q", resp.Frequency)
	}
	if resp.NextDue.String() != "2024-04-01" {
		t.Errorf("next due = %s, want start date", resp.NextDue)
	}

	// Unsupported frequency is a 400.
	rec = doJSON(t, h, http.MethodPost, "/api/recurring-expenses", token, map[string]any{
		"category":   "gym",
		"amount":     "20.00",
		"frequency":  "biannual",
		"start_date": "2024-04-01",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid frequency returned %d, want 400", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/recurring-expenses", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list recurring returned %d", rec.Code)
	}
	var list []recurringExpenseResponse
	decodeBody(t, rec, &list)
	if len(list) != 1 {
		t.Errorf("got %d recurring expenses, want 1", len(list))
	}
}

func TestCategoryTrendsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	token := registerUser(t, h, "alice")
	setLimit(t, h, token, "10000.00", "0")

	for _, e := range []struct{ cat, amount, date string }{
		{"food", "10.00", "2024-01-05"},
		{"food", "5.00", "2024-01-20"},
		{"rent", "700.00", "2024-01-01"},
		{"food", "8.00", "2024-02-03"},
	} {
		rec := doJSON(t, h, http.MethodPost, "/api/expenses", token, map[string]any{
			"category": e.cat, "amount": e.amount, "date": e.date,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("seed expense returned %d: %s", rec.Code, rec.Body.String())
		}
	}

	rec := doJSON(t, h, http.MethodGet, "/api/analytics/category-trends", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("trends returned %d: %s", rec.Code, rec.Body.String())
	}

	var trends []storage.CategoryTrend
	decodeBody(t, rec, &trends)
	if len(trends) != 3 {
		t.Fatalf("got %d trend rows, want 3: %+v", len(trends), trends)
	}
	// Sorted by month then category.
	if trends[0].Month != "2024-01" || trends[0].Category != "food" || trends[0].Total.Cents != 1500 {
		t.Errorf("unexpected first row %+v", trends[0])
	}
	if trends[2].Month != "2024-02" || trends[2].Category != "food" {
		t.Errorf("unexpected last row %+v", trends[2])
	}

	// Range filter narrows to February.
	rec = doJSON(t, h, http.MethodGet, "/api/analytics/category-trends?start_date=2024-02-01", token, nil)
	decodeBody(t, rec, &trends)
	if len(trends) != 1 || trends[0].Month != "2024-02" {
		t.Errorf("filtered trends = %+v, want single February row", trends)
	}

	// Malformed date is a 400.
	rec = doJSON(t, h, http.MethodGet, "/api/analytics/category-trends?start_date=02-2024", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed start_date returned %d, want 400", rec.Code)
	}
}

func TestExportReportCSV(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	token := registerUser(t, h, "alice")
	setLimit(t, h, token, "10000.00", "0")

	for _, e := range []struct{ cat, amount, date string }{
		{"food", "10.00", "2024-01-05"},
		{"rent", "700.00", "2024-01-01"},
	} {
		rec := doJSON(t, h, http.MethodPost, "/api/expenses", token, map[string]any{
			"category": e.cat, "amount": e.amount, "date": e.date,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("seed expense returned %d", rec.Code)
		}
	}

	rec := doJSON(t, h, http.MethodGet, "/api/export-report", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export returned %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %q, want text/csv", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "alice_financial_report.csv") {
		t.Errorf("content disposition = %q", cd)
	}

	lines := strings.Split(strings.TrimRight(rec.Body.String(), "\n"), "\n")
	if lines[0] != "Date,Category,Amount,User" {
		t.Errorf("header = %q", lines[0])
	}
	// 1 header + 2 transactions + blank + totals header + 2 totals.
	if len(lines) != 7 {
		t.Fatalf("got %d lines, want 7:\n%s", len(lines), rec.Body.String())
	}
	if lines[3] != "" {
		t.Errorf("line 4 = %q, want blank separator", lines[3])
	}
	if lines[4] != "Category,Total Spending" {
		t.Errorf("totals header = %q", lines[4])
	}
	if !strings.Contains(rec.Body.String(), "food,10.00") {
		t.Errorf("missing food total in:\n%s", rec.Body.String())
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doJSON(t, h, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s returned %d, want 200", path, rec.Code)
		}
	}
}
