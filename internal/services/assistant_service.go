package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/ai"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

const (
	chatHistoryLimit = 20
	chatContextDays  = 30

	EmptyQuestionReply = "Sorry, I didn't catch your question."
	ChatFallbackReply  = "Sorry, the assistant is busy right now. Please try again later."
)

// CategorySuggestion is a vocabulary label plus, when the user has a
// category of that name, the matching category.
type CategorySuggestion struct {
	Label        string         `json:"label"`
	Confidence   float64        `json:"confidence"`
	CategoryID   string         `json:"category_id,omitempty"`
	CategoryName string         `json:"category_name,omitempty"`
	Direction    core.Direction `json:"direction,omitempty"`
}

// AssistantService fronts the suggestion and chat collaborators. Their
// failures degrade to "no suggestion" or a fixed reply; they never surface.
type AssistantService struct {
	repo      *storage.Repository
	suggester ai.Suggester
	responder ai.Responder
	timeout   time.Duration
	now       func() time.Time
}

func NewAssistantService(repo *storage.Repository, suggester ai.Suggester, responder ai.Responder, timeout time.Duration) *AssistantService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AssistantService{
		repo:      repo,
		suggester: suggester,
		responder: responder,
		timeout:   timeout,
		now:       time.Now,
	}
}

// SuggestCategory classifies text. ok is false when nothing was suggested.
func (s *AssistantService) SuggestCategory(ctx context.Context, userID, text string) (CategorySuggestion, bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return CategorySuggestion{}, false, core.ErrEmptyText
	}
	if s.suggester == nil || !s.suggestionsEnabled(ctx, userID) {
		return CategorySuggestion{}, false, nil
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	sug, ok, err := s.suggester.Suggest(cctx, text)
	if err != nil {
		logFor(ctx, applog.ComponentAssistant).WarnContext(ctx, "Category suggestion failed",
			"error", &core.CollaboratorError{Collaborator: "suggester", Err: err})
		return CategorySuggestion{}, false, nil
	}
	if !ok {
		return CategorySuggestion{}, false, nil
	}

	out := CategorySuggestion{Label: ai.Normalize(sug.Label), Confidence: sug.Confidence}
	c, err := s.repo.Queries().FindCategoryByName(ctx, userID, out.Label)
	switch {
	case err == nil:
		out.CategoryID = c.ID
		out.CategoryName = c.Name
		out.Direction = c.Direction
	case !errors.Is(err, core.ErrNotFound):
		return CategorySuggestion{}, false, err
	}
	return out, true, nil
}

func (s *AssistantService) suggestionsEnabled(ctx context.Context, userID string) bool {
	st, err := s.repo.Queries().GetSettings(ctx, userID)
	if err != nil {
		return true
	}
	return st.AISuggestions
}

// RecordSuggestion stores an informational suggestion on an uncategorized
// transaction. It is driven by ledger events and never touches balances.
// When nothing matches, the row is marked checked instead.
func (s *AssistantService) RecordSuggestion(ctx context.Context, userID, txID string) error {
	q := s.repo.Queries()
	t, err := q.GetTransaction(ctx, userID, txID)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if t.CategoryID != "" || t.AICategoryID != "" || t.Kind == core.KindTransfer || t.Description == "" {
		return nil
	}

	sug, ok, err := s.SuggestCategory(ctx, userID, t.Description)
	if err != nil {
		return err
	}
	if !ok || sug.CategoryID == "" {
		return q.MarkSuggestionChecked(ctx, userID, t.ID, s.now())
	}
	if err := q.SetAISuggestion(ctx, userID, t.ID, sug.CategoryID, sug.Confidence); err != nil {
		return err
	}
	logFor(ctx, applog.ComponentAssistant).InfoContext(ctx, "AI suggestion recorded",
		"transaction_id", t.ID,
		"category_id", sug.CategoryID,
		"confidence", sug.Confidence)
	return nil
}

// AnswerChat answers a question about the user's recent finances and logs
// the exchange.
func (s *AssistantService) AnswerChat(ctx context.Context, userID, question string) (string, error) {
	question = strings.TrimSpace(question)
	answer := EmptyQuestionReply
	if question != "" {
		contextText, err := s.chatContext(ctx, userID)
		if err != nil {
			return "", err
		}
		answer = s.ask(ctx, question, contextText)
	}

	err := s.repo.Queries().InsertChatLog(ctx, core.ChatLog{
		UserID:    userID,
		Question:  question,
		Answer:    answer,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		logFor(ctx, applog.ComponentAssistant).ErrorContext(ctx, "Failed to save chat log", "error", err)
	}
	return answer, nil
}

func (s *AssistantService) ask(ctx context.Context, question, contextText string) string {
	if s.responder == nil {
		return ChatFallbackReply
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	answer, err := s.responder.Answer(cctx, question, contextText)
	if err != nil {
		logFor(ctx, applog.ComponentAssistant).WarnContext(ctx, "Chat answer failed",
			"error", &core.CollaboratorError{Collaborator: "responder", Err: err})
		return ChatFallbackReply
	}
	return answer
}

func (s *AssistantService) chatContext(ctx context.Context, userID string) (string, error) {
	q := s.repo.Queries()
	wallets, err := q.ListWallets(ctx, userID)
	if err != nil {
		return "", err
	}
	categories, err := q.ListCategories(ctx, userID)
	if err != nil {
		return "", err
	}
	since := core.DateOf(s.now()).AddDays(-chatContextDays)
	txs, err := q.ListTransactions(ctx, userID, storage.TransactionFilter{From: since})
	if err != nil {
		return "", err
	}

	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	return BuildChatContext(wallets, txs, names), nil
}

// BuildChatContext renders wallet balances and recent transactions as the
// plain-text block handed to the responder.
func BuildChatContext(wallets []core.Wallet, txs []core.Transaction, categoryNames map[string]string) string {
	var b strings.Builder
	b.WriteString("--- FINANCIAL OVERVIEW ---\nWALLET BALANCES:\n")
	for _, w := range wallets {
		fmt.Fprintf(&b, "- %s: %s\n", w.Name, w.Balance)
	}

	fmt.Fprintf(&b, "\nTRANSACTIONS IN THE LAST %d DAYS:\n", chatContextDays)
	if len(txs) == 0 {
		b.WriteString("(no transactions yet)\n")
	}
	for _, t := range txs {
		category := categoryNames[t.CategoryID]
		if category == "" {
			category = ai.LabelOther
		}
		fmt.Fprintf(&b, "- [%s] %s: %s - Category: %s (%s)\n",
			chatKindLabel(t.Kind), t.Date.Format("02/01"), t.Amount, category, t.Description)
	}
	b.WriteString("\nNOTE: TRANSFER entries move money between the user's own wallets and are not spending.\n")
	return b.String()
}

func chatKindLabel(k core.Kind) string {
	switch k {
	case core.KindExpense:
		return "EXPENSE"
	case core.KindIncome:
		return "INCOME"
	case core.KindTransfer:
		return "TRANSFER (internal)"
	default:
		return strings.ToUpper(string(k))
	}
}

// ChatHistory returns the most recent exchanges, oldest first.
func (s *AssistantService) ChatHistory(ctx context.Context, userID string) ([]core.ChatLog, error) {
	logs, err := s.repo.Queries().RecentChatLogs(ctx, userID, chatHistoryLimit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(logs)-1; i < j; i, j = i+1, j-1 {
		logs[i], logs[j] = logs[j], logs[i]
	}
	return logs, nil
}

// PurgeChatLogs deletes logs past the retention window.
func (s *AssistantService) PurgeChatLogs(ctx context.Context, now time.Time) (int64, error) {
	return s.repo.Queries().DeleteChatLogsBefore(ctx, now.Add(-core.ChatRetention))
}
