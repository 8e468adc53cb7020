// Package sheets defines the outbound ports for the spreadsheet export.
package sheets

import (
	"context"

	"fet/internal/core"
)

// ExportAppender mirrors one expense to the export spreadsheet and
// returns a reference to the written row.
type ExportAppender interface {
	AppendExpense(ctx context.Context, e core.Expense) (rowRef string, err error)
}
