package sheets

import (
	"context"

	"fintrack/internal/core"
)

// ExportWriter appends export rows to an external spreadsheet.
type ExportWriter interface {
	AppendRows(ctx context.Context, rows []core.ExportRow) (rangeRef string, err error)
}

// Header is the first row of every export sheet.
var Header = []any{"Date", "Category", "Description", "Amount", "Kind", "Wallet"}

// RowValues flattens r in Header order. The amount is a plain decimal so the
// sheet parses it as a number.
func RowValues(r core.ExportRow) []any {
	return []any{r.Date.String(), r.Category, r.Description, r.Amount.String(), r.Kind, r.Wallet}
}
