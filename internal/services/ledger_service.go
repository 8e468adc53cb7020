// Package services implements the ledger use cases on top of storage,
// aggregation, forecasting and alerting.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fet/internal/alert"
	"fet/internal/cache"
	"fet/internal/core"
	"fet/internal/forecast"
	"fet/internal/log"
	"fet/internal/report"
)

// Store is the persistence contract the service needs.
type Store interface {
	AddFamilyMember(ctx context.Context, fm core.FamilyMember) (int64, error)
	DeleteFamilyMember(ctx context.Context, username, name string) error
	ReplaceFamily(ctx context.Context, username string, members []core.FamilyMember) error
	ListFamily(ctx context.Context, username string) ([]core.FamilyMember, error)

	AddExpense(ctx context.Context, e core.Expense) (int64, error)
	ListExpenses(ctx context.Context, username string) ([]core.Expense, error)

	SetBudget(ctx context.Context, b core.Budget) error
	GetBudget(ctx context.Context, username string) (core.Budget, bool, error)

	AddGoal(ctx context.Context, g core.Goal) (int64, error)
	DeleteGoal(ctx context.Context, username, name string) error
	ListGoals(ctx context.Context, username string) ([]core.Goal, error)
}

// EventPublisher emits an event after an expense is recorded. Publishing
// is best effort; a broker outage never fails the write.
type EventPublisher interface {
	PublishExpenseCreated(ctx context.Context, username string, expenseID int64) error
}

// Notifier fans an alert message out to its channels.
type Notifier interface {
	Dispatch(ctx context.Context, msg alert.Message) []alert.Outcome
}

// GoalStatus is a goal with its derived progress figures.
type GoalStatus struct {
	Goal          core.Goal
	MonthlyTarget core.Money
	// Progress is this month's saving against the monthly target, as a
	// percentage capped at 100.
	Progress float64
}

// LedgerService is the application core shared by the HTTP server and the
// worker. All monetary state flows through it so budget synchronization
// and cache invalidation cannot be bypassed.
type LedgerService struct {
	store     Store
	publisher EventPublisher
	notifier  Notifier
	forecasts *cache.LRUCache[forecast.Result]
	opts      forecast.Options
	logger    *log.Logger
	now       func() time.Time
}

type Option func(*LedgerService)

func WithPublisher(p EventPublisher) Option {
	return func(s *LedgerService) { s.publisher = p }
}

func WithNotifier(n Notifier) Option {
	return func(s *LedgerService) { s.notifier = n }
}

func WithForecastCache(c *cache.LRUCache[forecast.Result]) Option {
	return func(s *LedgerService) { s.forecasts = c }
}

func WithForecastOptions(opts forecast.Options) Option {
	return func(s *LedgerService) { s.opts = opts }
}

// WithClock overrides the service clock. Tests pin it to a fixed day.
func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

func NewLedgerService(store Store, logger *log.Logger, options ...Option) *LedgerService {
	s := &LedgerService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.forecasts == nil {
		s.forecasts = cache.NewLRUCache[forecast.Result](128, 10*time.Minute)
	}
	return s
}

// --- family ---

// AddFamilyMember stores the member and immediately resynchronizes the
// budget so the main ceiling always reflects the current family incomes.
func (s *LedgerService) AddFamilyMember(ctx context.Context, fm core.FamilyMember) (core.Budget, error) {
	fm.Sanitize()
	if err := fm.Validate(); err != nil {
		return core.Budget{}, err
	}
	if _, err := s.store.AddFamilyMember(ctx, fm); err != nil {
		return core.Budget{}, fmt.Errorf("add family member: %w", err)
	}
	return s.SyncBudget(ctx, fm.Username)
}

func (s *LedgerService) DeleteFamilyMember(ctx context.Context, username, name string) (core.Budget, error) {
	if err := s.store.DeleteFamilyMember(ctx, username, name); err != nil {
		return core.Budget{}, err
	}
	return s.SyncBudget(ctx, username)
}

func (s *LedgerService) ReplaceFamily(ctx context.Context, username string, members []core.FamilyMember) (core.Budget, error) {
	if strings.TrimSpace(username) == "" {
		return core.Budget{}, core.ErrEmptyUser
	}
	for i := range members {
		members[i].Username = username
		members[i].Sanitize()
		if err := members[i].Validate(); err != nil {
			return core.Budget{}, err
		}
	}
	if err := s.store.ReplaceFamily(ctx, username, members); err != nil {
		return core.Budget{}, fmt.Errorf("replace family: %w", err)
	}
	return s.SyncBudget(ctx, username)
}

func (s *LedgerService) ListFamily(ctx context.Context, username string) ([]core.FamilyMember, error) {
	return s.store.ListFamily(ctx, username)
}

// --- budget ---

// SyncBudget recomputes the main budget as the sum of all family incomes
// and writes it unconditionally. Manual edits to the main budget do not
// survive a sync; category limits do.
func (s *LedgerService) SyncBudget(ctx context.Context, username string) (core.Budget, error) {
	members, err := s.store.ListFamily(ctx, username)
	if err != nil {
		return core.Budget{}, fmt.Errorf("list family for sync: %w", err)
	}

	var total int64
	for _, fm := range members {
		total += fm.MonthlyIncome.Cents
	}

	existing, _, err := s.store.GetBudget(ctx, username)
	if err != nil {
		return core.Budget{}, fmt.Errorf("load budget for sync: %w", err)
	}

	b := core.Budget{
		Username: username,
		Main:     core.Money{Cents: total},
		Limits:   existing.Limits,
	}
	if err := s.store.SetBudget(ctx, b); err != nil {
		return core.Budget{}, fmt.Errorf("save synchronized budget: %w", err)
	}

	s.logger.InfoContext(ctx, "Budget synchronized",
		log.FieldUsername, username,
		"members", len(members),
		log.FieldAmountCents, total)
	return b, nil
}

// Budget returns the user's budget, self-healing on read: a missing row,
// or a zero main alongside a non-empty family, triggers a sync first.
func (s *LedgerService) Budget(ctx context.Context, username string) (core.Budget, error) {
	b, found, err := s.store.GetBudget(ctx, username)
	if err != nil {
		return core.Budget{}, err
	}
	if found && b.Main.Cents != 0 {
		return b, nil
	}

	members, err := s.store.ListFamily(ctx, username)
	if err != nil {
		return core.Budget{}, err
	}
	if !found || len(members) > 0 {
		return s.SyncBudget(ctx, username)
	}
	return b, nil
}

// SetMainBudget writes a user-entered main budget, keeping the category
// limits. The value only holds until the next family edit: synchronization
// overwrites it with the income sum.
func (s *LedgerService) SetMainBudget(ctx context.Context, username string, main core.Money) (core.Budget, error) {
	if strings.TrimSpace(username) == "" {
		return core.Budget{}, core.ErrEmptyUser
	}
	if err := main.Validate(); err != nil {
		return core.Budget{}, err
	}

	existing, _, err := s.store.GetBudget(ctx, username)
	if err != nil {
		return core.Budget{}, fmt.Errorf("load budget: %w", err)
	}
	b := core.Budget{Username: username, Main: main, Limits: existing.Limits}
	if err := s.store.SetBudget(ctx, b); err != nil {
		return core.Budget{}, fmt.Errorf("save budget: %w", err)
	}

	s.logger.InfoContext(ctx, "Budget set manually",
		log.FieldUsername, username,
		log.FieldAmountCents, main.Cents)
	return b, nil
}

// SetCategoryLimits replaces the per-category limits while keeping the
// synchronized main budget intact.
func (s *LedgerService) SetCategoryLimits(ctx context.Context, username string, limits map[string]core.Money) (core.Budget, error) {
	b, err := s.Budget(ctx, username)
	if err != nil {
		return core.Budget{}, err
	}
	b.Limits = limits
	if err := s.store.SetBudget(ctx, b); err != nil {
		return core.Budget{}, fmt.Errorf("save limits: %w", err)
	}
	return b, nil
}

// --- expenses ---

// AddExpense records the expense, invalidates the user's forecast cache,
// publishes the created event and runs the threshold evaluation. The
// returned outcomes describe alert delivery; they are empty when no
// threshold fired.
func (s *LedgerService) AddExpense(ctx context.Context, e core.Expense) (core.Expense, []alert.Outcome, error) {
	e.Normalize()
	if err := e.Validate(); err != nil {
		return core.Expense{}, nil, err
	}

	id, err := s.store.AddExpense(ctx, e)
	if err != nil {
		return core.Expense{}, nil, fmt.Errorf("add expense: %w", err)
	}
	e.ID = id

	s.forecasts.Delete(e.Username)

	if s.publisher != nil {
		if err := s.publisher.PublishExpenseCreated(ctx, e.Username, id); err != nil {
			s.logger.WarnContext(ctx, "Expense event publish failed",
				log.FieldExpenseID, id,
				log.FieldError, err)
		}
	}

	outcomes := s.EvaluateAndNotify(ctx, e)
	return e, outcomes, nil
}

func (s *LedgerService) ListExpenses(ctx context.Context, username string) ([]core.Expense, error) {
	return s.store.ListExpenses(ctx, username)
}

// --- summaries ---

type Summary struct {
	Spent core.Money
	Saved core.Money
}

func (s *LedgerService) MonthlySummary(ctx context.Context, username string, year, month int) (Summary, error) {
	expenses, err := s.store.ListExpenses(ctx, username)
	if err != nil {
		return Summary{}, err
	}
	b, err := s.Budget(ctx, username)
	if err != nil {
		return Summary{}, err
	}
	spent, saved := report.MonthlySummary(expenses, year, month, b.Main)
	return Summary{Spent: spent, Saved: saved}, nil
}

func (s *LedgerService) YearlySummary(ctx context.Context, username string, year int) (Summary, error) {
	expenses, err := s.store.ListExpenses(ctx, username)
	if err != nil {
		return Summary{}, err
	}
	b, err := s.Budget(ctx, username)
	if err != nil {
		return Summary{}, err
	}
	spent, saved := report.YearlySummary(expenses, year, b.Main)
	return Summary{Spent: spent, Saved: saved}, nil
}

func (s *LedgerService) CategoryBreakdown(ctx context.Context, username string, year, month int) ([]report.CategoryAmount, error) {
	expenses, err := s.store.ListExpenses(ctx, username)
	if err != nil {
		return nil, err
	}
	return report.CategoryBreakdown(expenses, year, month), nil
}

// --- goals ---

func (s *LedgerService) AddGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	g.Name = strings.TrimSpace(g.Name)
	if g.CreatedOn.IsZero() {
		g.CreatedOn = core.DateOf(s.now())
	}
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	id, err := s.store.AddGoal(ctx, g)
	if err != nil {
		return core.Goal{}, fmt.Errorf("add goal: %w", err)
	}
	g.ID = id
	return g, nil
}

func (s *LedgerService) DeleteGoal(ctx context.Context, username, name string) error {
	return s.store.DeleteGoal(ctx, username, name)
}

// ListGoals returns each goal with progress derived from this month's
// saving against the goal's monthly target.
func (s *LedgerService) ListGoals(ctx context.Context, username string) ([]GoalStatus, error) {
	goals, err := s.store.ListGoals(ctx, username)
	if err != nil {
		return nil, err
	}
	if len(goals) == 0 {
		return nil, nil
	}

	now := s.now()
	summary, err := s.MonthlySummary(ctx, username, now.Year(), int(now.Month()))
	if err != nil {
		return nil, err
	}

	statuses := make([]GoalStatus, len(goals))
	for i, g := range goals {
		target := g.MonthlyTarget()
		var progress float64
		if target.Cents > 0 {
			progress = float64(summary.Saved.Cents) / float64(target.Cents) * 100
			if progress > 100 {
				progress = 100
			}
		}
		statuses[i] = GoalStatus{Goal: g, MonthlyTarget: target, Progress: progress}
	}
	return statuses, nil
}

// --- forecasting ---

// Forecast runs the estimation pipeline over the user's history, serving
// from cache when the history has not changed since the last run.
func (s *LedgerService) Forecast(ctx context.Context, username string) (forecast.Result, error) {
	if cached, ok := s.forecasts.Get(username); ok {
		return cached, nil
	}

	expenses, err := s.store.ListExpenses(ctx, username)
	if err != nil {
		return forecast.Result{}, err
	}
	b, err := s.Budget(ctx, username)
	if err != nil {
		return forecast.Result{}, err
	}

	// The main budget stands in for income in the savings history: it is
	// the synchronized sum of family incomes.
	income := b.Main.Float()
	var monthly []forecast.MonthlyRecord
	for _, m := range forecast.MonthlyTotals(expenses) {
		monthly = append(monthly, forecast.MonthlyRecord{
			Month:   m.Label(),
			Income:  income,
			Expense: m.Amount,
		})
	}

	result := forecast.Pipeline(expenses, monthly, s.now(), s.opts)
	s.forecasts.Set(username, result)

	s.logger.InfoContext(ctx, "Forecast computed",
		log.FieldUsername, username,
		"expenses", len(expenses),
		"months", len(monthly))
	return result, nil
}

// --- alerting ---

// EvaluateAndNotify checks the expense's month against the budget and
// category limits and dispatches an alert when a threshold fired. Returns
// nil when evaluation could not run or nothing fired.
func (s *LedgerService) EvaluateAndNotify(ctx context.Context, e core.Expense) []alert.Outcome {
	expenses, err := s.store.ListExpenses(ctx, e.Username)
	if err != nil {
		s.logger.WarnContext(ctx, "Threshold evaluation skipped",
			log.FieldUsername, e.Username,
			log.FieldError, err)
		return nil
	}
	b, found, err := s.store.GetBudget(ctx, e.Username)
	if err != nil {
		s.logger.WarnContext(ctx, "Threshold evaluation skipped",
			log.FieldUsername, e.Username,
			log.FieldError, err)
		return nil
	}

	year, month := e.Date.Year(), e.Date.Month()
	spent := report.MonthTotal(expenses, year, month)
	byCategory := report.CategoryTotals(expenses, year, month)

	eval := alert.Evaluate(byCategory, b.Limits, spent, b.Main, found, e)
	if eval.None() {
		return nil
	}
	if s.notifier == nil {
		s.logger.WarnContext(ctx, "Threshold fired but no notifier configured",
			log.FieldUsername, e.Username)
		return nil
	}

	msg := buildAlertMessage(e.Username, eval)
	outcomes := s.notifier.Dispatch(ctx, msg)
	for _, o := range outcomes {
		s.logger.InfoContext(ctx, "Alert outcome",
			log.FieldUsername, e.Username,
			log.FieldChannel, o.Channel,
			"status", string(o.Status))
	}
	return outcomes
}

func buildAlertMessage(username string, eval alert.Evaluation) alert.Message {
	var b strings.Builder
	subject := "Spending warning"
	if eval.Exceeded() {
		subject = "Budget exceeded"
	}

	if eval.Budget != nil {
		fmt.Fprintf(&b, "Monthly budget exceeded: spent %s of %s.\n",
			eval.Budget.Spent, eval.Budget.Budget)
		fmt.Fprintf(&b, "Latest expense: %s %s on %s.\n",
			eval.Budget.Latest.Category, eval.Budget.Latest.Amount, eval.Budget.Latest.Date)
	}
	for _, c := range eval.Categories {
		switch c.Severity {
		case alert.SeverityExceeded:
			fmt.Fprintf(&b, "Category %s exceeded its limit: %s of %s (%.0f%%).\n",
				c.Category, c.Spent, c.Limit, c.Percent)
		default:
			fmt.Fprintf(&b, "Category %s is at %.0f%% of its limit (%s of %s).\n",
				c.Category, c.Percent, c.Spent, c.Limit)
		}
	}

	return alert.Message{
		Subject: fmt.Sprintf("%s for %s", subject, username),
		Text:    strings.TrimSpace(b.String()),
	}
}
