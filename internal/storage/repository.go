// Package storage persists the ledger in SQLite. One repository owns the
// connection pool; schema changes go through embedded migrations.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"fet/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup by id or name matches nothing.
var ErrNotFound = errors.New("not found")

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
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

	if err := migrateSchema(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- family ---

func (r *SQLiteRepository) AddFamilyMember(ctx context.Context, fm core.FamilyMember) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO family_members (username, name, relation, age, income_cents, notes, is_head, family_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (username, name) DO UPDATE SET
			relation = excluded.relation,
			age = excluded.age,
			income_cents = excluded.income_cents,
			notes = excluded.notes,
			is_head = excluded.is_head,
			family_name = excluded.family_name`,
		fm.Username, fm.Name, fm.Relation, fm.Age, fm.MonthlyIncome.Cents, fm.Notes, boolToInt(fm.IsHead), fm.FamilyName)
	if err != nil {
		return 0, fmt.Errorf("insert family member: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("family member id: %w", err)
	}

	slog.InfoContext(ctx, "Family member saved",
		"username", fm.Username,
		"name", fm.Name,
		"income_cents", fm.MonthlyIncome.Cents)
	return id, nil
}

func (r *SQLiteRepository) DeleteFamilyMember(ctx context.Context, username, name string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM family_members WHERE username = ? AND name = ?`, username, name)
	if err != nil {
		return fmt.Errorf("delete family member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete family member: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceFamily swaps the whole family set in one transaction so readers
// never observe a half-replaced family.
func (r *SQLiteRepository) ReplaceFamily(ctx context.Context, username string, members []core.FamilyMember) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace family: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM family_members WHERE username = ?`, username); err != nil {
		return fmt.Errorf("clear family: %w", err)
	}
	for _, fm := range members {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO family_members (username, name, relation, age, income_cents, notes, is_head, family_name)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			username, fm.Name, fm.Relation, fm.Age, fm.MonthlyIncome.Cents, fm.Notes, boolToInt(fm.IsHead), fm.FamilyName); err != nil {
			return fmt.Errorf("insert family member %q: %w", fm.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace family: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListFamily(ctx context.Context, username string) ([]core.FamilyMember, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, username, name, relation, age, income_cents, notes, is_head, family_name
		FROM family_members WHERE username = ? ORDER BY id`, username)
	if err != nil {
		return nil, fmt.Errorf("list family: %w", err)
	}
	defer rows.Close()

	var members []core.FamilyMember
	for rows.Next() {
		var fm core.FamilyMember
		var isHead int
		if err := rows.Scan(&fm.ID, &fm.Username, &fm.Name, &fm.Relation, &fm.Age,
			&fm.MonthlyIncome.Cents, &fm.Notes, &isHead, &fm.FamilyName); err != nil {
			return nil, fmt.Errorf("scan family member: %w", err)
		}
		fm.IsHead = isHead != 0
		members = append(members, fm)
	}
	return members, rows.Err()
}

// --- expenses ---

func (r *SQLiteRepository) AddExpense(ctx context.Context, e core.Expense) (int64, error) {
	split, err := encodeMoneyMap(e.Split)
	if err != nil {
		return 0, fmt.Errorf("encode split: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (username, date, amount_cents, category, assigned_member, split_json, note)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Username, e.Date.String(), e.Amount.Cents, e.Category, e.AssignedMember, split, e.Note)
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("expense id: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", id,
		"username", e.Username,
		"amount_cents", e.Amount.Cents,
		"category", e.Category,
		"date", e.Date.String())
	return id, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, date, amount_cents, category, assigned_member, split_json, note
		FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return e, nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, username string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, username, date, amount_cents, category, assigned_member, split_json, note
		FROM expenses WHERE username = ? ORDER BY date DESC, id DESC`, username)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var e core.Expense
	var date, split string
	if err := row.Scan(&e.ID, &e.Username, &date, &e.Amount.Cents,
		&e.Category, &e.AssignedMember, &split, &e.Note); err != nil {
		return core.Expense{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("stored date %q: %w", date, err)
	}
	e.Date = d
	e.Split, err = decodeMoneyMap(split)
	if err != nil {
		return core.Expense{}, fmt.Errorf("stored split: %w", err)
	}
	return e, nil
}

// --- budgets ---

// SetBudget replaces the user's budget row wholesale. The latest row is
// authoritative; older rows are removed in the same transaction.
func (r *SQLiteRepository) SetBudget(ctx context.Context, b core.Budget) error {
	limits, err := encodeMoneyMap(b.Limits)
	if err != nil {
		return fmt.Errorf("encode limits: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set budget: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM budgets WHERE username = ?`, b.Username); err != nil {
		return fmt.Errorf("clear budget: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO budgets (username, main_cents, limits_json, updated_at)
		VALUES (?, ?, ?, datetime('now'))`,
		b.Username, b.Main.Cents, limits); err != nil {
		return fmt.Errorf("insert budget: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set budget: %w", err)
	}

	slog.InfoContext(ctx, "Budget saved",
		"username", b.Username,
		"main_cents", b.Main.Cents,
		"limits", len(b.Limits))
	return nil
}

// GetBudget reports found=false when the user has no budget row yet, which
// is distinct from a synchronized zero budget.
func (r *SQLiteRepository) GetBudget(ctx context.Context, username string) (core.Budget, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT main_cents, limits_json FROM budgets
		WHERE username = ? ORDER BY id DESC LIMIT 1`, username)

	b := core.Budget{Username: username}
	var limits string
	err := row.Scan(&b.Main.Cents, &limits)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{Username: username}, false, nil
	}
	if err != nil {
		return core.Budget{}, false, fmt.Errorf("get budget: %w", err)
	}
	b.Limits, err = decodeMoneyMap(limits)
	if err != nil {
		return core.Budget{}, false, fmt.Errorf("stored limits: %w", err)
	}
	return b, true, nil
}

// --- goals ---

func (r *SQLiteRepository) AddGoal(ctx context.Context, g core.Goal) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO goals (username, name, target_cents, months, created_on)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (username, name) DO UPDATE SET
			target_cents = excluded.target_cents,
			months = excluded.months`,
		g.Username, g.Name, g.Target.Cents, g.Months, g.CreatedOn.String())
	if err != nil {
		return 0, fmt.Errorf("insert goal: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("goal id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) DeleteGoal(ctx context.Context, username, name string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM goals WHERE username = ? AND name = ?`, username, name)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) ListGoals(ctx context.Context, username string) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, username, name, target_cents, months, created_on
		FROM goals WHERE username = ? ORDER BY id`, username)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var goals []core.Goal
	for rows.Next() {
		var g core.Goal
		var created string
		if err := rows.Scan(&g.ID, &g.Username, &g.Name, &g.Target.Cents, &g.Months, &created); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		d, err := core.ParseDate(created)
		if err != nil {
			return nil, fmt.Errorf("stored created_on %q: %w", created, err)
		}
		g.CreatedOn = d
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// --- helpers ---

// Money maps are stored as JSON objects of name to cents, keeping the
// schema flat while split shares and category limits stay free-form.
func encodeMoneyMap(m map[string]core.Money) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	cents := make(map[string]int64, len(m))
	for k, v := range m {
		cents[k] = v.Cents
	}
	b, err := json.Marshal(cents)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeMoneyMap(s string) (map[string]core.Money, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var cents map[string]int64
	if err := json.Unmarshal([]byte(s), &cents); err != nil {
		return nil, err
	}
	m := make(map[string]core.Money, len(cents))
	for k, v := range cents {
		m[k] = core.Money{Cents: v}
	}
	return m, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
