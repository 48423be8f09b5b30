package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tally/internal/core"
)

type TransactionStore interface {
	GetCategory(ctx context.Context, userID, id string) (core.Category, error)
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, userID, id string) error
}

// TransactionPatch holds the fields of a partial transaction update. Nil means
// unchanged; ClearCategory detaches the category.
type TransactionPatch struct {
	Kind          *core.Kind
	CategoryID    *string
	ClearCategory bool
	Amount        *int64
	OccurredAt    *time.Time
	Note          *string
}

// TransactionService validates and applies ledger entries.
type TransactionService struct {
	store TransactionStore
	notifier
}

func NewTransactionService(store TransactionStore, views Invalidator, events core.EventPublisher) *TransactionService {
	return &TransactionService{store: store, notifier: notifier{views: views, events: events}}
}

func (s *TransactionService) Get(ctx context.Context, userID, id string) (core.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, userID, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (s *TransactionService) Create(ctx context.Context, userID string, t core.Transaction) (core.Transaction, error) {
	t.UserID = userID
	t.Note = strings.TrimSpace(t.Note)
	if t.CategoryID != nil && *t.CategoryID == "" {
		t.CategoryID = nil
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	ref, err := s.resolveCategory(ctx, t)
	if err != nil {
		return core.Transaction{}, err
	}

	created, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	created.Category = ref
	s.committed(ctx, core.Event{Type: core.EventTransactionCreated, UserID: userID, EntityID: created.ID, Transaction: &created})
	return created, nil
}

func (s *TransactionService) Update(ctx context.Context, userID, id string, p TransactionPatch) (core.Transaction, error) {
	cur, err := s.store.GetTransaction(ctx, userID, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	next := cur
	next.Category = nil
	if p.Kind != nil {
		next.Kind = *p.Kind
	}
	if p.ClearCategory {
		next.CategoryID = nil
	}
	if p.CategoryID != nil {
		cid := *p.CategoryID
		next.CategoryID = &cid
		if cid == "" {
			next.CategoryID = nil
		}
	}
	if p.Amount != nil {
		next.Amount = *p.Amount
	}
	if p.OccurredAt != nil {
		next.OccurredAt = *p.OccurredAt
	}
	if p.Note != nil {
		next.Note = strings.TrimSpace(*p.Note)
	}
	if err := next.Validate(); err != nil {
		return core.Transaction{}, err
	}
	ref, err := s.resolveCategory(ctx, next)
	if err != nil {
		return core.Transaction{}, err
	}

	if err := s.store.UpdateTransaction(ctx, next); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	next.Category = ref
	next.OccurredAt = next.OccurredAt.UTC()
	s.committed(ctx, core.Event{Type: core.EventTransactionUpdated, UserID: userID, EntityID: id, Transaction: &next})
	return next, nil
}

func (s *TransactionService) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteTransaction(ctx, userID, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.committed(ctx, core.Event{Type: core.EventTransactionDeleted, UserID: userID, EntityID: id})
	return nil
}

// resolveCategory checks that t's category belongs to the same user and has
// the same kind. Both failures are reported on the categoryId field.
func (s *TransactionService) resolveCategory(ctx context.Context, t core.Transaction) (*core.CategoryRef, error) {
	if t.CategoryID == nil {
		return nil, nil
	}
	c, err := s.store.GetCategory(ctx, t.UserID, *t.CategoryID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.InvalidField("categoryId", "category does not exist")
	}
	if err != nil {
		return nil, fmt.Errorf("resolve category: %w", err)
	}
	if c.Kind != t.Kind {
		return nil, core.InvalidField("categoryId", fmt.Sprintf("category is %s but transaction is %s", c.Kind, t.Kind))
	}
	return &core.CategoryRef{ID: c.ID, Name: c.Name, Kind: c.Kind, Icon: c.Icon}, nil
}
