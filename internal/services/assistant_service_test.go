package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/ai"
	"fintrack/internal/core"
)

type stubSuggester struct {
	s   ai.Suggestion
	err error
}

func (f stubSuggester) Suggest(context.Context, string) (ai.Suggestion, bool, error) {
	if f.err != nil {
		return ai.Suggestion{}, false, f.err
	}
	return f.s, true, nil
}

type stubResponder struct {
	gotContext string
	answer     string
	err        error
}

func (r *stubResponder) Answer(_ context.Context, _, contextText string) (string, error) {
	r.gotContext = contextText
	return r.answer, r.err
}

func newAssistant(f fixture, sug ai.Suggester, resp ai.Responder) *AssistantService {
	s := NewAssistantService(f.repo, sug, resp, time.Second)
	s.now = func() time.Time { return testNow }
	return s
}

func TestAssistant_SuggestCategoryMapsToUserCategory(t *testing.T) {
	f := newFixture(t)
	s := newAssistant(f, stubSuggester{s: ai.Suggestion{Label: "food", Confidence: 0.9}}, nil)

	got, ok, err := s.SuggestCategory(context.Background(), f.userID, "pho for lunch")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ai.LabelFood, got.Label)
	assert.Equal(t, f.food, got.CategoryID)
	assert.Equal(t, core.DirectionExpense, got.Direction)
}

func TestAssistant_SuggestDegradesOnFailure(t *testing.T) {
	f := newFixture(t)
	s := newAssistant(f, stubSuggester{err: errors.New("timeout")}, nil)

	_, ok, err := s.SuggestCategory(context.Background(), f.userID, "anything")
	assert.NoError(t, err)
	assert.False(t, ok)

	_, _, err = s.SuggestCategory(context.Background(), f.userID, "   ")
	assert.ErrorIs(t, err, core.ErrEmptyText)
}

func TestAssistant_RecordSuggestion(t *testing.T) {
	f := newFixture(t)
	ledger, _ := newLedger(f)
	s := newAssistant(f, stubSuggester{s: ai.Suggestion{Label: "Food", Confidence: 0.8}}, nil)
	ctx := context.Background()

	tx, err := ledger.Create(ctx, f.userID, core.TransactionInput{
		Kind: core.KindExpense, Amount: money(40), WalletID: f.walletA, Date: core.NewDate(2024, 3, 10), Description: "noodles",
	})
	require.NoError(t, err)

	require.NoError(t, s.RecordSuggestion(ctx, f.userID, tx.ID))
	got, err := ledger.Get(ctx, f.userID, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, f.food, got.AICategoryID)
	require.NotNil(t, got.AIConfidence)
	assert.Equal(t, 0.8, *got.AIConfidence)
	assert.Empty(t, got.CategoryID, "suggestions are informational")
	assert.Equal(t, int64(-40), f.balance(t, f.walletA))

	assert.NoError(t, s.RecordSuggestion(ctx, f.userID, "gone"))
}

func TestAssistant_AnswerChat(t *testing.T) {
	f := newFixture(t)
	ledger, _ := newLedger(f)
	resp := &stubResponder{answer: "You spent 120."}
	s := newAssistant(f, nil, resp)
	ctx := context.Background()

	_, err := ledger.Create(ctx, f.userID, core.TransactionInput{
		Kind: core.KindTransfer, Amount: money(500), WalletID: f.walletA, DestWalletID: f.walletB, Date: core.NewDate(2024, 3, 10),
	})
	require.NoError(t, err)

	answer, err := s.AnswerChat(ctx, f.userID, "How much did I spend?")
	require.NoError(t, err)
	assert.Equal(t, "You spent 120.", answer)
	assert.Contains(t, resp.gotContext, "TRANSFER (internal)")
	assert.Contains(t, resp.gotContext, "Wallet wb: 5.00")

	resp.err = errors.New("quota")
	answer, err = s.AnswerChat(ctx, f.userID, "And now?")
	require.NoError(t, err)
	assert.Equal(t, ChatFallbackReply, answer)

	answer, err = s.AnswerChat(ctx, f.userID, "  ")
	require.NoError(t, err)
	assert.Equal(t, EmptyQuestionReply, answer)

	history, err := s.ChatHistory(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "How much did I spend?", history[0].Question)
}

func TestAssistant_ChatHistoryIsOldestFirst(t *testing.T) {
	f := newFixture(t)
	s := newAssistant(f, nil, nil)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		s.now = func() time.Time { return testNow.Add(time.Duration(i) * time.Minute) }
		_, err := s.AnswerChat(ctx, f.userID, "q")
		require.NoError(t, err)
	}

	history, err := s.ChatHistory(ctx, f.userID)
	require.NoError(t, err)
	require.Len(t, history, 20)
	assert.True(t, history[0].CreatedAt.Before(history[19].CreatedAt))
	assert.Equal(t, testNow.Add(5*time.Minute), history[0].CreatedAt)
}

func TestBuildChatContext_Empty(t *testing.T) {
	out := BuildChatContext(nil, nil, nil)
	assert.True(t, strings.Contains(out, "(no transactions yet)"))
}

func TestMaintenance_Run(t *testing.T) {
	f := newFixture(t)
	ledger, _ := newLedger(f)
	assistant := newAssistant(f, nil, nil)
	ctx := context.Background()
	q := f.repo.Queries()

	require.NoError(t, q.InsertChatLog(ctx, core.ChatLog{UserID: f.userID, Question: "old", Answer: "a", CreatedAt: testNow.Add(-31 * 24 * time.Hour)}))
	require.NoError(t, q.InsertChatLog(ctx, core.ChatLog{UserID: f.userID, Question: "new", Answer: "a", CreatedAt: testNow}))
	require.NoError(t, q.UpsertResetToken(ctx, core.PasswordResetToken{Email: "u1@example.com", Token: "t", ExpiresAt: testNow.Add(-time.Minute)}))
	_, err := ledger.Create(ctx, f.userID, core.TransactionInput{
		Kind: core.KindExpense, Amount: money(10), WalletID: f.walletA, Date: core.NewDate(2024, 3, 1),
	})
	require.NoError(t, err)

	m := NewMaintenanceService(f.repo, assistant, ledger)
	m.now = func() time.Time { return testNow }

	report, err := m.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.ChatLogsPurged)
	assert.Equal(t, int64(1), report.ResetTokensPurged)
	assert.Equal(t, 2, report.WalletsAudited)
	assert.Zero(t, report.BalanceMismatches)
}
