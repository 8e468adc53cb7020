// Package worker mirrors recorded expenses to the export spreadsheet in
// response to expense created events.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"fet/internal/amqp"
	"fet/internal/core"
	"fet/internal/sheets"
)

// ExpenseGetter loads one expense by id. The event only carries the id;
// the row itself never rides the queue.
type ExpenseGetter interface {
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
}

type ExportWorker struct {
	store    ExpenseGetter
	appender sheets.ExportAppender
}

func NewExportWorker(store ExpenseGetter, appender sheets.ExportAppender) *ExportWorker {
	return &ExportWorker{store: store, appender: appender}
}

// HandleExpenseCreated loads the expense and appends it to the export
// sheet. Errors propagate to the consumer, which requeues the message.
func (w *ExportWorker) HandleExpenseCreated(ctx context.Context, msg *amqp.ExpenseCreatedMessage) error {
	expense, err := w.store.GetExpense(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("get expense from storage: %w", err)
	}

	ref, err := w.appender.AppendExpense(ctx, expense)
	if err != nil {
		return fmt.Errorf("append expense to sheet: %w", err)
	}

	slog.InfoContext(ctx, "Expense mirrored to export sheet",
		"id", msg.ID,
		"username", msg.Username,
		"sheets_ref", ref)
	return nil
}
