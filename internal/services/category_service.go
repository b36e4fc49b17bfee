package services

import (
	"context"
	"errors"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

type CategoryService struct {
	repo *storage.Repository
	mutationHooks
}

func NewCategoryService(repo *storage.Repository) *CategoryService {
	return &CategoryService{repo: repo}
}

func (s *CategoryService) Create(ctx context.Context, userID string, in core.CategoryInput) (core.Category, error) {
	if err := in.Validate(); err != nil {
		return core.Category{}, err
	}
	c := core.Category{
		ID:        core.NewID(),
		UserID:    userID,
		Name:      strings.TrimSpace(in.Name),
		Direction: in.Direction,
		ParentID:  strings.TrimSpace(in.ParentID),
	}
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		if err := checkParent(ctx, q, userID, c.ID, c.ParentID); err != nil {
			return err
		}
		return q.InsertCategory(ctx, c)
	})
	if err != nil {
		return core.Category{}, err
	}
	return c, nil
}

// Update rewrites the category. A new parent must not be the category itself
// or one of its descendants.
func (s *CategoryService) Update(ctx context.Context, userID, id string, in core.CategoryInput) (core.Category, error) {
	if err := in.Validate(); err != nil {
		return core.Category{}, err
	}
	var c core.Category
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		existing, err := q.GetCategory(ctx, userID, id)
		if err != nil {
			return err
		}
		c = existing
		c.Name = strings.TrimSpace(in.Name)
		c.Direction = in.Direction
		c.ParentID = strings.TrimSpace(in.ParentID)
		if err := checkParent(ctx, q, userID, c.ID, c.ParentID); err != nil {
			return err
		}
		return q.UpdateCategory(ctx, c)
	})
	if err != nil {
		return core.Category{}, err
	}
	s.notify(userID)
	return c, nil
}

func (s *CategoryService) List(ctx context.Context, userID string) ([]core.Category, error) {
	return s.repo.Queries().ListCategories(ctx, userID)
}

// Children returns the direct children of an owned parent.
func (s *CategoryService) Children(ctx context.Context, userID, parentID string) ([]core.Category, error) {
	q := s.repo.Queries()
	if _, err := q.GetCategory(ctx, userID, parentID); err != nil {
		return nil, err
	}
	return q.ListChildren(ctx, userID, parentID)
}

// Delete removes the category. Children become roots and transactions become
// uncategorized.
func (s *CategoryService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.Queries().DeleteCategory(ctx, userID, id); err != nil {
		return err
	}
	s.notify(userID)
	return nil
}

// checkParent walks up from parentID; reaching id means a cycle.
func checkParent(ctx context.Context, q *storage.Queries, userID, id, parentID string) error {
	seen := map[string]bool{}
	for cur := parentID; cur != ""; {
		if cur == id {
			return core.ErrCategoryCycle
		}
		if seen[cur] {
			return core.ErrCategoryCycle
		}
		seen[cur] = true

		parent, err := q.GetCategory(ctx, userID, cur)
		if errors.Is(err, core.ErrNotFound) {
			if cur == parentID {
				return &core.ValidationError{Field: "parent_id", Reason: "category does not exist"}
			}
			return nil
		}
		if err != nil {
			return err
		}
		cur = parent.ParentID
	}
	return nil
}
