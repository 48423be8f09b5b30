package services

import (
	"context"
	"fmt"
	"strings"

	"tally/internal/core"
)

type CategoryStore interface {
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	GetCategory(ctx context.Context, userID, id string) (core.Category, error)
	ListCategories(ctx context.Context, userID string, kind core.Kind) ([]core.Category, error)
	UpdateCategory(ctx context.Context, c core.Category) error
	DeleteCategory(ctx context.Context, userID, id string) error
}

// CategoryPatch holds the fields of a partial category update. Nil means unchanged.
type CategoryPatch struct {
	Name *string
	Kind *core.Kind
	Icon *string
}

// CategoryService validates and applies category mutations for one user at a time.
type CategoryService struct {
	store CategoryStore
	notifier
}

func NewCategoryService(store CategoryStore, views Invalidator, events core.EventPublisher) *CategoryService {
	return &CategoryService{store: store, notifier: notifier{views: views, events: events}}
}

func (s *CategoryService) List(ctx context.Context, userID string, kind core.Kind) ([]core.Category, error) {
	if kind != "" && !kind.Valid() {
		return nil, core.InvalidField("kind", "must be income or expense")
	}
	cats, err := s.store.ListCategories(ctx, userID, kind)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

func (s *CategoryService) Create(ctx context.Context, userID string, c core.Category) (core.Category, error) {
	c.UserID = userID
	c.Name = strings.TrimSpace(c.Name)
	c.Icon = strings.TrimSpace(c.Icon)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	created, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	s.committed(ctx, core.Event{Type: core.EventCategoryCreated, UserID: userID, EntityID: created.ID, Category: &created})
	return created, nil
}

// Update applies p. The store rejects a kind change while transactions still
// reference the category.
func (s *CategoryService) Update(ctx context.Context, userID, id string, p CategoryPatch) (core.Category, error) {
	cur, err := s.store.GetCategory(ctx, userID, id)
	if err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}

	next := cur
	if p.Name != nil {
		next.Name = strings.TrimSpace(*p.Name)
	}
	if p.Icon != nil {
		next.Icon = strings.TrimSpace(*p.Icon)
	}
	if p.Kind != nil {
		next.Kind = *p.Kind
	}
	if err := next.Validate(); err != nil {
		return core.Category{}, err
	}

	if err := s.store.UpdateCategory(ctx, next); err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	s.committed(ctx, core.Event{Type: core.EventCategoryUpdated, UserID: userID, EntityID: id, Category: &next})
	return next, nil
}

// Delete removes the category. Its transactions stay, uncategorized.
func (s *CategoryService) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteCategory(ctx, userID, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	s.committed(ctx, core.Event{Type: core.EventCategoryDeleted, UserID: userID, EntityID: id})
	return nil
}
