// Package bayes is an offline category suggester backed by a naive Bayes
// classifier trained on a small keyword corpus.
package bayes

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"github.com/jbrukh/bayesian"

	"fintrack/internal/ai"
)

// MinConfidence is the posterior below which the suggestion falls back to Other.
const MinConfidence = 0.35

var seedCorpus = map[string][]string{
	ai.LabelFood:          {"lunch", "dinner", "breakfast", "coffee", "restaurant", "pizza", "groceries", "supermarket", "bakery", "snack", "food", "tea", "pho", "rice", "market"},
	ai.LabelTransport:     {"taxi", "uber", "grab", "bus", "train", "metro", "fuel", "gas", "petrol", "parking", "toll", "flight", "ticket", "bike", "car"},
	ai.LabelRent:          {"rent", "landlord", "apartment", "lease", "deposit", "housing", "room", "flat", "mortgage"},
	ai.LabelUtilities:     {"electricity", "electric", "water", "internet", "wifi", "phone", "mobile", "bill", "utility", "power", "heating"},
	ai.LabelShopping:      {"shopping", "clothes", "shoes", "amazon", "mall", "shirt", "store", "gift", "electronics", "furniture", "online", "order"},
	ai.LabelEntertainment: {"movie", "cinema", "netflix", "spotify", "concert", "game", "games", "party", "bar", "beer", "karaoke", "travel", "holiday"},
	ai.LabelHealth:        {"doctor", "hospital", "pharmacy", "medicine", "dentist", "clinic", "gym", "fitness", "insurance", "vitamins", "health"},
	ai.LabelEducation:     {"school", "tuition", "course", "book", "books", "university", "class", "lesson", "training", "exam", "udemy"},
	ai.LabelSalary:        {"salary", "payroll", "wage", "wages", "paycheck", "monthly", "pay", "employer"},
	ai.LabelBonus:         {"bonus", "reward", "commission", "incentive", "tip", "tips", "gift", "prize"},
	ai.LabelInvestment:    {"dividend", "interest", "stock", "stocks", "crypto", "bitcoin", "fund", "savings", "investment", "bond", "profit"},
	ai.LabelOther:         {"misc", "other", "various", "unknown", "fee", "charge", "cash", "withdrawal"},
}

// Classifier implements ai.Suggester without any network dependency.
type Classifier struct {
	mu      sync.RWMutex
	cl      *bayesian.Classifier
	classes []bayesian.Class
}

func New() *Classifier {
	classes := make([]bayesian.Class, 0, len(ai.Labels))
	for _, l := range ai.Labels {
		classes = append(classes, bayesian.Class(l))
	}
	c := &Classifier{
		cl:      bayesian.NewClassifier(classes...),
		classes: classes,
	}
	for _, l := range ai.Labels {
		for _, word := range seedCorpus[l] {
			c.cl.Learn([]string{word}, bayesian.Class(l))
		}
	}
	return c
}

// Learn adds a labelled description to the model.
func (c *Classifier) Learn(text, label string) {
	words := Tokenize(text)
	if len(words) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cl.Learn(words, bayesian.Class(ai.Normalize(label)))
}

func (c *Classifier) Suggest(_ context.Context, text string) (ai.Suggestion, bool, error) {
	words := Tokenize(text)
	if len(words) == 0 {
		return ai.Suggestion{}, false, nil
	}

	c.mu.RLock()
	scores, best, _ := c.cl.ProbScores(words)
	c.mu.RUnlock()

	confidence := scores[best]
	label := string(c.classes[best])
	if confidence < MinConfidence {
		label = ai.LabelOther
	}
	return ai.Suggestion{Label: label, Confidence: confidence}, true, nil
}

// Tokenize lowercases text and splits it on anything that is not a letter
// or digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
