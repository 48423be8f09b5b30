package challenge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tally/internal/core"
)

// TemplateStore is the persistence the challenge catalog needs.
type TemplateStore interface {
	CreateChallenge(ctx context.Context, c core.Challenge) (core.Challenge, error)
	GetChallenge(ctx context.Context, id string) (core.Challenge, error)
	UpdateChallenge(ctx context.Context, c core.Challenge) (core.Challenge, error)
	ListVisibleChallenges(ctx context.Context, userID string) ([]core.Challenge, error)
	ListChallengesByCreator(ctx context.Context, userID string) ([]core.Challenge, error)
	ListAllChallenges(ctx context.Context) ([]core.Challenge, error)
	ChallengeTitleExists(ctx context.Context, title string) (bool, error)
}

// Actor is the authenticated caller as seen by role-gated operations.
type Actor struct {
	UserID string
	Role   core.Role
}

// Patch holds the fields of a partial challenge update. Nil means unchanged.
type Patch struct {
	Title              *string
	Description        *string
	Kind               *core.ChallengeKind
	DurationDays       *int
	TargetAmountPerDay *int64
	ClearTarget        bool
	Active             *bool
	Public             *bool
	StartDate          *time.Time
}

// Catalog manages challenge templates.
type Catalog struct {
	store TemplateStore
}

func NewCatalog(store TemplateStore) *Catalog {
	return &Catalog{store: store}
}

// Create publishes a new template owned by the actor. Only partners and admins may.
func (c *Catalog) Create(ctx context.Context, actor Actor, ch core.Challenge) (core.Challenge, error) {
	if !actor.Role.CanManageChallenges() {
		return core.Challenge{}, fmt.Errorf("create challenge: %w", core.ErrForbidden)
	}
	ch.Title = strings.TrimSpace(ch.Title)
	ch.Description = strings.TrimSpace(ch.Description)
	ch.CreatedBy = actor.UserID
	if err := ch.Validate(); err != nil {
		return core.Challenge{}, err
	}

	created, err := c.store.CreateChallenge(ctx, ch)
	if err != nil {
		return core.Challenge{}, fmt.Errorf("create challenge: %w", err)
	}
	slog.InfoContext(ctx, "Challenge created",
		"id", created.ID,
		"title", created.Title,
		"created_by", actor.UserID)
	return created, nil
}

// Update applies p. Admins may edit anything, partners only their own
// templates. Existing enrollments are left untouched.
func (c *Catalog) Update(ctx context.Context, actor Actor, id string, p Patch) (core.Challenge, error) {
	if !actor.Role.CanManageChallenges() {
		return core.Challenge{}, fmt.Errorf("update challenge: %w", core.ErrForbidden)
	}
	cur, err := c.store.GetChallenge(ctx, id)
	if err != nil {
		return core.Challenge{}, fmt.Errorf("update challenge: %w", err)
	}
	if actor.Role != core.RoleAdmin && cur.CreatedBy != actor.UserID {
		return core.Challenge{}, fmt.Errorf("update challenge %s: %w", id, core.ErrForbidden)
	}

	next := p.apply(cur)
	if err := next.Validate(); err != nil {
		return core.Challenge{}, err
	}
	updated, err := c.store.UpdateChallenge(ctx, next)
	if err != nil {
		return core.Challenge{}, fmt.Errorf("update challenge: %w", err)
	}
	slog.InfoContext(ctx, "Challenge updated", "id", id, "by", actor.UserID)
	return updated, nil
}

// ListVisible returns active challenges that are public or created by the actor.
func (c *Catalog) ListVisible(ctx context.Context, actor Actor) ([]core.Challenge, error) {
	list, err := c.store.ListVisibleChallenges(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	return list, nil
}

// ListMine returns the challenges the actor created, active or not.
func (c *Catalog) ListMine(ctx context.Context, actor Actor) ([]core.Challenge, error) {
	list, err := c.store.ListChallengesByCreator(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("list my challenges: %w", err)
	}
	return list, nil
}

// ListAll returns every template. Used by the admin CLI.
func (c *Catalog) ListAll(ctx context.Context) ([]core.Challenge, error) {
	list, err := c.store.ListAllChallenges(ctx)
	if err != nil {
		return nil, fmt.Errorf("list all challenges: %w", err)
	}
	return list, nil
}

// Get returns a challenge the actor may see. Anything else reads as missing.
func (c *Catalog) Get(ctx context.Context, actor Actor, id string) (core.Challenge, error) {
	ch, err := c.store.GetChallenge(ctx, id)
	if err != nil {
		return core.Challenge{}, fmt.Errorf("get challenge: %w", err)
	}
	if !canSee(actor, ch) {
		return core.Challenge{}, core.NotFoundf("challenge %s", id)
	}
	return ch, nil
}

func canSee(actor Actor, ch core.Challenge) bool {
	switch {
	case actor.Role == core.RoleAdmin:
		return true
	case ch.CreatedBy != "" && ch.CreatedBy == actor.UserID:
		return true
	default:
		return ch.Active && ch.Public
	}
}

func (p Patch) apply(c core.Challenge) core.Challenge {
	if p.Title != nil {
		c.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		c.Description = strings.TrimSpace(*p.Description)
	}
	if p.Kind != nil {
		c.Kind = *p.Kind
	}
	if p.DurationDays != nil {
		c.DurationDays = *p.DurationDays
	}
	if p.ClearTarget {
		c.TargetAmountPerDay = nil
	}
	if p.TargetAmountPerDay != nil {
		v := *p.TargetAmountPerDay
		c.TargetAmountPerDay = &v
	}
	if p.Active != nil {
		c.Active = *p.Active
	}
	if p.Public != nil {
		c.Public = *p.Public
	}
	if p.StartDate != nil {
		d := *p.StartDate
		c.StartDate = &d
	}
	return c
}
