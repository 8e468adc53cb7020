package http

import (
	"errors"
	"net/http"
	"strings"

	"fet/internal/core"
	"fet/internal/forecast"
	"fet/internal/receipt"
	"fet/internal/storage"
)

// --- DTOs ---

// Amounts cross the wire as decimal strings; cents never leak into JSON.

type familyMemberRequest struct {
	Name          string `json:"name"`
	Relation      string `json:"relation"`
	Age           int    `json:"age"`
	MonthlyIncome string `json:"monthly_income"`
	Notes         string `json:"notes"`
	IsHead        bool   `json:"is_head"`
	FamilyName    string `json:"family_name"`
}

type familyMemberResponse struct {
	Name          string `json:"name"`
	Relation      string `json:"relation,omitempty"`
	Age           int    `json:"age,omitempty"`
	MonthlyIncome string `json:"monthly_income"`
	Notes         string `json:"notes,omitempty"`
	IsHead        bool   `json:"is_head,omitempty"`
	FamilyName    string `json:"family_name,omitempty"`
}

type budgetResponse struct {
	Username string            `json:"username"`
	Main     string            `json:"main"`
	Limits   map[string]string `json:"limits,omitempty"`
}

type expenseRequest struct {
	Date           string            `json:"date"`
	Amount         string            `json:"amount"`
	Category       string            `json:"category"`
	AssignedMember string            `json:"assigned_member"`
	Split          map[string]string `json:"split"`
	Note           string            `json:"note"`
}

type expenseResponse struct {
	ID             int64             `json:"id"`
	Date           string            `json:"date"`
	Amount         string            `json:"amount"`
	Category       string            `json:"category"`
	AssignedMember string            `json:"assigned_member,omitempty"`
	Split          map[string]string `json:"split,omitempty"`
	Note           string            `json:"note,omitempty"`
}

type alertOutcomeResponse struct {
	Channel string `json:"channel"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

type createExpenseResponse struct {
	Expense expenseResponse        `json:"expense"`
	Alerts  []alertOutcomeResponse `json:"alerts,omitempty"`
}

type summaryResponse struct {
	Spent string `json:"spent"`
	Saved string `json:"saved"`
}

type categoryAmountResponse struct {
	Category string `json:"category"`
	Amount   string `json:"amount"`
}

type goalRequest struct {
	Name   string `json:"name"`
	Target string `json:"target"`
	Months int    `json:"months"`
}

type goalStatusResponse struct {
	Name          string  `json:"name"`
	Target        string  `json:"target"`
	Months        int     `json:"months"`
	CreatedOn     string  `json:"created_on"`
	MonthlyTarget string  `json:"monthly_target"`
	Progress      float64 `json:"progress"`
}

type categoryShareResponse struct {
	Category string  `json:"category"`
	Amount   string  `json:"amount"`
	Percent  float64 `json:"percent"`
}

type forecastResponse struct {
	NextDaysTotal    *string                 `json:"next_days_total"`
	DailyForecast    []float64               `json:"daily_forecast,omitempty"`
	NextMonthTotal   *string                 `json:"next_month_total"`
	NextMonthSavings *string                 `json:"next_month_savings"`
	TopCategories    []categoryShareResponse `json:"top_categories,omitempty"`
	MonthLabels      []string                `json:"month_labels,omitempty"`
	MonthTotals      []float64               `json:"month_totals,omitempty"`
}

type receiptGuessRequest struct {
	Text string `json:"text"`
}

type receiptGuessResponse struct {
	Category string  `json:"category"`
	Amount   *string `json:"amount"`
}

// --- family ---

func (s *Server) handleListFamily(w http.ResponseWriter, r *http.Request) {
	members, err := s.ledger.ListFamily(r.Context(), UserFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]familyMemberResponse, 0, len(members))
	for _, fm := range members {
		out = append(out, toFamilyMemberResponse(fm))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddFamilyMember(w http.ResponseWriter, r *http.Request) {
	var req familyMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	b, err := s.ledger.AddFamilyMember(r.Context(), toFamilyMember(UserFrom(r.Context()), req))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBudgetResponse(b))
}

func (s *Server) handleReplaceFamily(w http.ResponseWriter, r *http.Request) {
	var reqs []familyMemberRequest
	if err := decodeJSON(r, &reqs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	username := UserFrom(r.Context())
	members := make([]core.FamilyMember, len(reqs))
	for i, req := range reqs {
		members[i] = toFamilyMember(username, req)
	}
	b, err := s.ledger.ReplaceFamily(r.Context(), username, members)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetResponse(b))
}

func (s *Server) handleDeleteFamilyMember(w http.ResponseWriter, r *http.Request) {
	b, err := s.ledger.DeleteFamilyMember(r.Context(), UserFrom(r.Context()), r.PathValue("name"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetResponse(b))
}

// --- expenses ---

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.ledger.ListExpenses(r.Context(), UserFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	date, err := core.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount, expected a positive decimal")
		return
	}
	split, err := parseMoneyMap(req.Split)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid split amount")
		return
	}

	e := core.Expense{
		Username:       UserFrom(r.Context()),
		Date:           date,
		Amount:         core.Money{Cents: cents},
		Category:       req.Category,
		AssignedMember: req.AssignedMember,
		Split:          split,
		Note:           req.Note,
	}

	created, outcomes, err := s.ledger.AddExpense(r.Context(), e)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := createExpenseResponse{Expense: toExpenseResponse(created)}
	for _, o := range outcomes {
		ar := alertOutcomeResponse{Channel: o.Channel, Status: string(o.Status)}
		if o.Err != nil {
			ar.Error = o.Err.Error()
		}
		resp.Alerts = append(resp.Alerts, ar)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// --- budget ---

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	b, err := s.ledger.Budget(r.Context(), UserFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetResponse(b))
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Main string `json:"main"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cents, err := core.ParseDecimalToCents(req.Main)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid main budget, expected a positive decimal")
		return
	}
	b, err := s.ledger.SetMainBudget(r.Context(), UserFrom(r.Context()), core.Money{Cents: cents})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetResponse(b))
}

func (s *Server) handleSyncBudget(w http.ResponseWriter, r *http.Request) {
	b, err := s.ledger.SyncBudget(r.Context(), UserFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetResponse(b))
}

func (s *Server) handleSetLimits(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	limits, err := parseMoneyMap(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit amount")
		return
	}
	b, err := s.ledger.SetCategoryLimits(r.Context(), UserFrom(r.Context()), limits)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetResponse(b))
}

// --- summaries ---

func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseYearMonth(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	summary, err := s.ledger.MonthlySummary(r.Context(), UserFrom(r.Context()), year, month)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		Spent: summary.Spent.String(),
		Saved: summary.Saved.String(),
	})
}

func (s *Server) handleYearlySummary(w http.ResponseWriter, r *http.Request) {
	year, _, err := parseYearMonth(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	summary, err := s.ledger.YearlySummary(r.Context(), UserFrom(r.Context()), year)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		Spent: summary.Spent.String(),
		Saved: summary.Saved.String(),
	})
}

func (s *Server) handleCategoryBreakdown(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseYearMonth(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	breakdown, err := s.ledger.CategoryBreakdown(r.Context(), UserFrom(r.Context()), year, month)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]categoryAmountResponse, 0, len(breakdown))
	for _, row := range breakdown {
		out = append(out, categoryAmountResponse{Category: row.Name, Amount: row.Amount.String()})
	}
	writeJSON(w, http.StatusOK, out)
}

// --- goals ---

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.ledger.ListGoals(r.Context(), UserFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]goalStatusResponse, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, goalStatusResponse{
			Name:          st.Goal.Name,
			Target:        st.Goal.Target.String(),
			Months:        st.Goal.Months,
			CreatedOn:     st.Goal.CreatedOn.String(),
			MonthlyTarget: st.MonthlyTarget.String(),
			Progress:      st.Progress,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cents, err := core.ParseDecimalToCents(req.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid target, expected a positive decimal")
		return
	}
	g, err := s.ledger.AddGoal(r.Context(), core.Goal{
		Username: UserFrom(r.Context()),
		Name:     req.Name,
		Target:   core.Money{Cents: cents},
		Months:   req.Months,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, goalStatusResponse{
		Name:          g.Name,
		Target:        g.Target.String(),
		Months:        g.Months,
		CreatedOn:     g.CreatedOn.String(),
		MonthlyTarget: g.MonthlyTarget().String(),
	})
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteGoal(r.Context(), UserFrom(r.Context()), r.PathValue("name")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- forecast ---

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	result, err := s.ledger.Forecast(r.Context(), UserFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toForecastResponse(result))
}

// --- receipt ---

func (s *Server) handleReceiptGuess(w http.ResponseWriter, r *http.Request) {
	var req receiptGuessRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	category, amount, ok := receipt.Guess(req.Text)
	resp := receiptGuessResponse{Category: category}
	if ok {
		s := amount.String()
		resp.Amount = &s
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- mapping helpers ---

func toFamilyMember(username string, req familyMemberRequest) core.FamilyMember {
	return core.FamilyMember{
		Username:      username,
		Name:          req.Name,
		Relation:      req.Relation,
		Age:           req.Age,
		MonthlyIncome: core.Money{Cents: core.ParseIncomeCents(req.MonthlyIncome)},
		Notes:         req.Notes,
		IsHead:        req.IsHead,
		FamilyName:    req.FamilyName,
	}
}

func toFamilyMemberResponse(fm core.FamilyMember) familyMemberResponse {
	return familyMemberResponse{
		Name:          fm.Name,
		Relation:      fm.Relation,
		Age:           fm.Age,
		MonthlyIncome: fm.MonthlyIncome.String(),
		Notes:         fm.Notes,
		IsHead:        fm.IsHead,
		FamilyName:    fm.FamilyName,
	}
}

func toBudgetResponse(b core.Budget) budgetResponse {
	resp := budgetResponse{Username: b.Username, Main: b.Main.String()}
	if len(b.Limits) > 0 {
		resp.Limits = make(map[string]string, len(b.Limits))
		for cat, m := range b.Limits {
			resp.Limits[cat] = m.String()
		}
	}
	return resp
}

func toExpenseResponse(e core.Expense) expenseResponse {
	resp := expenseResponse{
		ID:             e.ID,
		Date:           e.Date.String(),
		Amount:         e.Amount.String(),
		Category:       e.Category,
		AssignedMember: e.AssignedMember,
		Note:           e.Note,
	}
	if len(e.Split) > 0 {
		resp.Split = make(map[string]string, len(e.Split))
		for name, m := range e.Split {
			resp.Split[name] = m.String()
		}
	}
	return resp
}

func toForecastResponse(result forecast.Result) forecastResponse {
	resp := forecastResponse{
		DailyForecast: result.DailyForecast,
		MonthLabels:   result.MonthLabels,
		MonthTotals:   result.MonthTotals,
	}
	if result.NextDaysTotal != nil {
		s := result.NextDaysTotal.String()
		resp.NextDaysTotal = &s
	}
	if result.NextMonthTotal != nil {
		s := result.NextMonthTotal.String()
		resp.NextMonthTotal = &s
	}
	if result.NextMonthSavings != nil {
		s := result.NextMonthSavings.String()
		resp.NextMonthSavings = &s
	}
	for _, share := range result.TopCategories {
		resp.TopCategories = append(resp.TopCategories, categoryShareResponse{
			Category: share.Category,
			Amount:   core.MoneyFromFloat(share.Amount).String(),
			Percent:  share.Percent,
		})
	}
	return resp
}

func parseMoneyMap(in map[string]string) (map[string]core.Money, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]core.Money, len(in))
	for key, val := range in {
		cents, err := core.ParseDecimalToCents(val)
		if err != nil {
			return nil, err
		}
		out[strings.TrimSpace(key)] = core.Money{Cents: cents}
	}
	return out, nil
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, core.ErrEmptyUser),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrInvalidMonths):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
