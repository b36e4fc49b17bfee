// Package ai defines the collaborator ports used for category suggestions and
// chat answers, plus the fixed label vocabulary both sides agree on.
package ai

import (
	"context"
	"strings"

	"fintrack/internal/core"
)

// Vocabulary labels.
const (
	LabelFood          = "Food"
	LabelTransport     = "Transport"
	LabelRent          = "Rent"
	LabelUtilities     = "Utilities"
	LabelShopping      = "Shopping"
	LabelEntertainment = "Entertainment"
	LabelHealth        = "Health"
	LabelEducation     = "Education"
	LabelSalary        = "Salary"
	LabelBonus         = "Bonus"
	LabelInvestment    = "Investment"
	LabelOther         = "Other"
)

// Labels is the closed vocabulary, in display order.
var Labels = []string{
	LabelFood, LabelTransport, LabelRent, LabelUtilities, LabelShopping,
	LabelEntertainment, LabelHealth, LabelEducation, LabelSalary, LabelBonus,
	LabelInvestment, LabelOther,
}

// DirectionOf tells which side of the ledger a vocabulary label belongs to.
func DirectionOf(label string) core.Direction {
	switch label {
	case LabelSalary, LabelBonus, LabelInvestment:
		return core.DirectionIncome
	default:
		return core.DirectionExpense
	}
}

// Normalize maps a free-form label onto the vocabulary, case-insensitively.
// Anything unknown becomes Other.
func Normalize(label string) string {
	label = strings.Trim(strings.TrimSpace(label), `."'`)
	for _, l := range Labels {
		if strings.EqualFold(l, label) {
			return l
		}
	}
	return LabelOther
}

// Suggestion is a label with a confidence in [0,1].
type Suggestion struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Suggester classifies free text. ok is false when there is no suggestion.
type Suggester interface {
	Suggest(ctx context.Context, text string) (s Suggestion, ok bool, err error)
}

// Responder answers a question given a plain-text context block.
type Responder interface {
	Answer(ctx context.Context, question, contextText string) (string, error)
}
