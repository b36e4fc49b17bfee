package services

import (
	"context"
	"time"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

type BudgetService struct {
	repo *storage.Repository
	now  func() time.Time
}

func NewBudgetService(repo *storage.Repository) *BudgetService {
	return &BudgetService{repo: repo, now: time.Now}
}

func (s *BudgetService) today() core.Date {
	return core.DateOf(s.now())
}

// Progress reports spend against the budget's limit over its window.
func (s *BudgetService) Progress(ctx context.Context, userID, id string) (core.BudgetProgress, error) {
	q := s.repo.Queries()
	b, err := q.GetBudget(ctx, userID, id)
	if err != nil {
		return core.BudgetProgress{}, err
	}
	spent, err := q.BudgetSpent(ctx, userID, b.ID, b.StartDate, b.EndDate)
	if err != nil {
		return core.BudgetProgress{}, err
	}
	return core.ComputeProgress(b, spent, s.today()), nil
}

func (s *BudgetService) List(ctx context.Context, userID string) ([]core.BudgetProgress, error) {
	q := s.repo.Queries()
	budgets, err := q.ListBudgets(ctx, userID)
	if err != nil {
		return nil, err
	}

	today := s.today()
	out := make([]core.BudgetProgress, 0, len(budgets))
	for _, b := range budgets {
		spent, err := q.BudgetSpent(ctx, userID, b.ID, b.StartDate, b.EndDate)
		if err != nil {
			return nil, err
		}
		out = append(out, core.ComputeProgress(b, spent, today))
	}
	return out, nil
}

// Create stores the budget and links it to the given categories. Category
// ids the caller does not own, and income categories, are dropped.
func (s *BudgetService) Create(ctx context.Context, userID string, in core.BudgetInput) (core.Budget, error) {
	if err := in.Validate(); err != nil {
		return core.Budget{}, err
	}

	b := core.Budget{
		ID:        core.NewID(),
		UserID:    userID,
		Name:      in.Name,
		Limit:     in.Limit,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		CreatedAt: s.now().UTC(),
	}
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		ids, err := q.OwnedCategoryIDs(ctx, userID, core.DirectionExpense, in.CategoryIDs)
		if err != nil {
			return err
		}
		b.CategoryIDs = nonNil(ids)
		if err := q.InsertBudget(ctx, b); err != nil {
			return err
		}
		return q.ReplaceBudgetCategories(ctx, b.ID, b.CategoryIDs)
	})
	if err != nil {
		return core.Budget{}, err
	}

	logFor(ctx, applog.ComponentBudget).InfoContext(ctx, "Budget created", "budget_id", b.ID, "categories", len(b.CategoryIDs))
	return b, nil
}

// Update replaces the budget fields and its link set.
func (s *BudgetService) Update(ctx context.Context, userID, id string, in core.BudgetInput) (core.Budget, error) {
	if err := in.Validate(); err != nil {
		return core.Budget{}, err
	}

	var b core.Budget
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		existing, err := q.GetBudget(ctx, userID, id)
		if err != nil {
			return err
		}
		ids, err := q.OwnedCategoryIDs(ctx, userID, core.DirectionExpense, in.CategoryIDs)
		if err != nil {
			return err
		}
		b = existing
		b.Name = in.Name
		b.Limit = in.Limit
		b.StartDate = in.StartDate
		b.EndDate = in.EndDate
		b.CategoryIDs = nonNil(ids)
		if err := q.UpdateBudget(ctx, b); err != nil {
			return err
		}
		return q.ReplaceBudgetCategories(ctx, b.ID, b.CategoryIDs)
	})
	if err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

func (s *BudgetService) Delete(ctx context.Context, userID, id string) error {
	return s.repo.Queries().DeleteBudget(ctx, userID, id)
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
