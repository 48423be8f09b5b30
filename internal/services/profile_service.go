package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"tally/internal/core"

	"golang.org/x/crypto/bcrypt"
)

type UserStore interface {
	GetUser(ctx context.Context, id string) (core.User, error)
	UpdateUserDisplayName(ctx context.Context, id, name string) error
	UpdateUserPasswordHash(ctx context.Context, id, current, next string) error
	DeleteUser(ctx context.Context, id string) error
}

// ProfileService exposes the caller's own account.
type ProfileService struct {
	store UserStore
	notifier
}

func NewProfileService(store UserStore, views Invalidator, events core.EventPublisher) *ProfileService {
	return &ProfileService{store: store, notifier: notifier{views: views, events: events}}
}

func (s *ProfileService) Me(ctx context.Context, userID string) (core.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return core.User{}, fmt.Errorf("get profile: %w", err)
	}
	return u, nil
}

func (s *ProfileService) UpdateProfile(ctx context.Context, userID, displayName string) (core.User, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return core.User{}, core.InvalidField("displayName", "is required")
	}
	if utf8.RuneCountInString(name) > core.MaxDisplayNameLen {
		return core.User{}, core.InvalidField("displayName", "is too long")
	}

	if err := s.store.UpdateUserDisplayName(ctx, userID, name); err != nil {
		return core.User{}, fmt.Errorf("update profile: %w", err)
	}
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return core.User{}, fmt.Errorf("update profile: %w", err)
	}
	s.committed(ctx, core.Event{Type: core.EventUserUpdated, UserID: userID, EntityID: userID})
	return u, nil
}

// ChangePassword replaces the password after checking the current one.
func (s *ProfileService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if current == "" {
		return core.InvalidField("currentPassword", "is required")
	}
	if len(next) < core.MinPasswordLen {
		return core.InvalidField("newPassword", fmt.Sprintf("must be at least %d characters", core.MinPasswordLen))
	}

	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)); err != nil {
		return core.InvalidField("currentPassword", "does not match")
	}

	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.store.UpdateUserPasswordHash(ctx, userID, u.PasswordHash, hash); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	return nil
}

// DeleteMe removes the account. Categories, transactions and enrollments go
// with it; challenges the user created stay without an owner.
func (s *ProfileService) DeleteMe(ctx context.Context, userID string) error {
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	s.committed(ctx, core.Event{Type: core.EventUserDeleted, UserID: userID, EntityID: userID})
	return nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", core.InvalidField("newPassword", "is too long")
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
