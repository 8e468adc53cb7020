package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fet/internal/core"
	"fet/internal/log"
	"fet/internal/services"
	"fet/internal/storage"
)

type fakeStore struct {
	members  map[string][]core.FamilyMember
	expenses map[string][]core.Expense
	budgets  map[string]core.Budget
	goals    map[string][]core.Goal
	nextID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		members:  make(map[string][]core.FamilyMember),
		expenses: make(map[string][]core.Expense),
		budgets:  make(map[string]core.Budget),
		goals:    make(map[string][]core.Goal),
	}
}

func (f *fakeStore) AddFamilyMember(_ context.Context, fm core.FamilyMember) (int64, error) {
	f.nextID++
	fm.ID = f.nextID
	f.members[fm.Username] = append(f.members[fm.Username], fm)
	return fm.ID, nil
}

func (f *fakeStore) DeleteFamilyMember(_ context.Context, username, name string) error {
	kept := f.members[username][:0]
	found := false
	for _, fm := range f.members[username] {
		if fm.Name == name {
			found = true
			continue
		}
		kept = append(kept, fm)
	}
	f.members[username] = kept
	if !found {
		return storage.ErrNotFound
	}
	return nil
}

func (f *fakeStore) ReplaceFamily(_ context.Context, username string, members []core.FamilyMember) error {
	f.members[username] = members
	return nil
}

func (f *fakeStore) ListFamily(_ context.Context, username string) ([]core.FamilyMember, error) {
	return f.members[username], nil
}

func (f *fakeStore) AddExpense(_ context.Context, e core.Expense) (int64, error) {
	f.nextID++
	e.ID = f.nextID
	f.expenses[e.Username] = append(f.expenses[e.Username], e)
	return e.ID, nil
}

func (f *fakeStore) ListExpenses(_ context.Context, username string) ([]core.Expense, error) {
	return f.expenses[username], nil
}

func (f *fakeStore) SetBudget(_ context.Context, b core.Budget) error {
	f.budgets[b.Username] = b
	return nil
}

func (f *fakeStore) GetBudget(_ context.Context, username string) (core.Budget, bool, error) {
	b, ok := f.budgets[username]
	return b, ok, nil
}

func (f *fakeStore) AddGoal(_ context.Context, g core.Goal) (int64, error) {
	f.nextID++
	g.ID = f.nextID
	f.goals[g.Username] = append(f.goals[g.Username], g)
	return g.ID, nil
}

func (f *fakeStore) DeleteGoal(_ context.Context, username, name string) error {
	kept := f.goals[username][:0]
	found := false
	for _, g := range f.goals[username] {
		if g.Name == name {
			found = true
			continue
		}
		kept = append(kept, g)
	}
	f.goals[username] = kept
	if !found {
		return storage.ErrNotFound
	}
	return nil
}

func (f *fakeStore) ListGoals(_ context.Context, username string) ([]core.Goal, error) {
	return f.goals[username], nil
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	logger := log.New(log.Config{
		Component: log.ComponentHTTP,
		Handler:   slog.NewTextHandler(io.Discard, nil),
	})
	ledger := services.NewLedgerService(store, logger)
	srv := NewServer(":0", ledger)
	ts := httptest.NewServer(srv.Server.Handler)
	t.Cleanup(func() {
		ts.Close()
		srv.rateLimiter.stop()
	})
	return ts, store
}

func doRequest(t *testing.T, ts *httptest.Server, method, path, user, body string) (*http.Response, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if user != "" {
		req.Header.Set("X-User", user)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func TestMissingUserHeaderRejected(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, _ := doRequest(t, ts, http.MethodGet, "/expenses", "", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	resp, _ = doRequest(t, ts, http.MethodGet, "/healthz", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health must not require a user, got %d", resp.StatusCode)
	}
}

func TestAddFamilyMemberReturnsSyncedBudget(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, data := doRequest(t, ts, http.MethodPost, "/family", "alice",
		`{"name":"Bob","relation":"spouse","monthly_income":"3000"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, data)
	}

	var b budgetResponse
	if err := json.Unmarshal(data, &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if b.Main != "3000.00" {
		t.Fatalf("expected synced main 3000.00, got %q", b.Main)
	}

	resp, data = doRequest(t, ts, http.MethodPost, "/family", "alice",
		`{"name":"Carol","monthly_income":"2000"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if b.Main != "5000.00" {
		t.Fatalf("expected synced main 5000.00 after second member, got %q", b.Main)
	}
}

func TestAddFamilyMemberWithoutNameRejected(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, _ := doRequest(t, ts, http.MethodPost, "/family", "alice", `{"monthly_income":"100"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing name, got %d", resp.StatusCode)
	}
}

func TestCreateAndListExpenses(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, data := doRequest(t, ts, http.MethodPost, "/expenses", "alice",
		`{"date":"2026-03-05","amount":"49.99","note":"pharmacy run"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, data)
	}

	var created createExpenseResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if created.Expense.ID == 0 {
		t.Fatal("expected expense ID to be set")
	}
	if created.Expense.Amount != "49.99" {
		t.Fatalf("expected amount 49.99, got %q", created.Expense.Amount)
	}
	if created.Expense.Category != core.CategoryOther {
		t.Fatalf("expected category to default to %s, got %q", core.CategoryOther, created.Expense.Category)
	}

	resp, data = doRequest(t, ts, http.MethodGet, "/expenses", "alice", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var listed []expenseResponse
	if err := json.Unmarshal(data, &listed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(listed) != 1 || listed[0].Note != "pharmacy run" {
		t.Fatalf("expected the created expense back, got %+v", listed)
	}

	// Another user must not see it.
	resp, data = doRequest(t, ts, http.MethodGet, "/expenses", "mallory", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if err := json.Unmarshal(data, &listed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected empty list for other user, got %+v", listed)
	}
}

func TestCreateExpenseBadInput(t *testing.T) {
	ts, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"bad date", `{"date":"03/05/2026","amount":"10"}`},
		{"negative amount", `{"date":"2026-03-05","amount":"-10"}`},
		{"zero amount", `{"date":"2026-03-05","amount":"0"}`},
		{"not json", `date=2026-03-05`},
		{"unknown field", `{"date":"2026-03-05","amount":"10","color":"red"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := doRequest(t, ts, http.MethodPost, "/expenses", "alice", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestBudgetLimitsSurviveSync(t *testing.T) {
	ts, _ := newTestServer(t)

	doRequest(t, ts, http.MethodPost, "/family", "alice",
		`{"name":"Bob","monthly_income":"4000"}`)

	resp, data := doRequest(t, ts, http.MethodPut, "/budget/limits", "alice",
		`{"Groceries":"500","Transport":"150.50"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, data)
	}

	resp, data = doRequest(t, ts, http.MethodPost, "/budget/sync", "alice", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var b budgetResponse
	if err := json.Unmarshal(data, &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if b.Main != "4000.00" {
		t.Fatalf("expected main 4000.00 after sync, got %q", b.Main)
	}
	if b.Limits["Groceries"] != "500.00" || b.Limits["Transport"] != "150.50" {
		t.Fatalf("expected limits to survive sync, got %+v", b.Limits)
	}
}

func TestMonthlySummary(t *testing.T) {
	ts, _ := newTestServer(t)

	doRequest(t, ts, http.MethodPost, "/family", "alice", `{"name":"Bob","monthly_income":"5000"}`)
	doRequest(t, ts, http.MethodPost, "/expenses", "alice", `{"date":"2026-03-05","amount":"1200"}`)
	doRequest(t, ts, http.MethodPost, "/expenses", "alice", `{"date":"2026-04-01","amount":"999"}`)

	resp, data := doRequest(t, ts, http.MethodGet, "/summary/monthly?year=2026&month=3", "alice", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var sum summaryResponse
	if err := json.Unmarshal(data, &sum); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if sum.Spent != "1200.00" {
		t.Fatalf("expected spent 1200.00, got %q", sum.Spent)
	}
	if sum.Saved != "3800.00" {
		t.Fatalf("expected saved 3800.00, got %q", sum.Saved)
	}
}

func TestSummaryRejectsBadPeriod(t *testing.T) {
	ts, _ := newTestServer(t)

	tests := []struct {
		name string
		path string
	}{
		{"month out of range", "/summary/monthly?year=2026&month=13"},
		{"month zero", "/summary/monthly?year=2026&month=0"},
		{"year not a number", "/summary/monthly?year=abc&month=3"},
		{"yearly bad year", "/summary/yearly?year=abc"},
		{"breakdown bad month", "/breakdown?year=2026&month=banana"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := doRequest(t, ts, http.MethodGet, tt.path, "alice", "")
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400 for %s, got %d", tt.path, resp.StatusCode)
			}
		})
	}

	// Omitted parameters still default to the current period.
	resp, _ := doRequest(t, ts, http.MethodGet, "/summary/monthly", "alice", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected defaulted period to answer, got %d", resp.StatusCode)
	}
}

func TestGoalLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, data := doRequest(t, ts, http.MethodPost, "/goals", "alice",
		`{"name":"vacation","target":"1200","months":6}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.StatusCode, data)
	}
	var g goalStatusResponse
	if err := json.Unmarshal(data, &g); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if g.MonthlyTarget != "200.00" {
		t.Fatalf("expected monthly target 200.00, got %q", g.MonthlyTarget)
	}

	resp, _ = doRequest(t, ts, http.MethodDelete, "/goals/vacation", "alice", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	resp, _ = doRequest(t, ts, http.MethodDelete, "/goals/vacation", "alice", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 deleting a missing goal, got %d", resp.StatusCode)
	}
}

func TestReceiptGuess(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, data := doRequest(t, ts, http.MethodPost, "/receipt/guess", "alice",
		`{"text":"DMart supermarket total 123.45"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var guess receiptGuessResponse
	if err := json.Unmarshal(data, &guess); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if guess.Category != "Groceries" {
		t.Fatalf("expected Groceries, got %q", guess.Category)
	}
	if guess.Amount == nil || *guess.Amount != "123.45" {
		t.Fatalf("expected amount 123.45, got %v", guess.Amount)
	}
}

func TestMutatingRequestsRateLimited(t *testing.T) {
	ts, _ := newTestServer(t)

	var last int
	for i := 0; i < requestsPerMinute+1; i++ {
		resp, _ := doRequest(t, ts, http.MethodPost, "/receipt/guess", "alice", `{"text":"x"}`)
		last = resp.StatusCode
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after %d mutating requests, got %d", requestsPerMinute+1, last)
	}

	// Reads stay unthrottled.
	resp, _ := doRequest(t, ts, http.MethodGet, "/expenses", "alice", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected reads to pass, got %d", resp.StatusCode)
	}

	// Other users keep their own window.
	resp, _ = doRequest(t, ts, http.MethodPost, "/receipt/guess", "bob", `{"text":"x"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected fresh user to pass, got %d", resp.StatusCode)
	}
}
