package core

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

const (
	RoleUser    Role = "USER"
	RolePartner Role = "PARTNER"
	RoleAdmin   Role = "ADMIN"
)

const (
	ChallengeNoSpend   ChallengeKind = "NO_SPEND"
	ChallengeSaveFixed ChallengeKind = "SAVE_FIXED"
	ChallengeCustom    ChallengeKind = "CUSTOM"
)

const (
	StatusActive    EnrollmentStatus = "ACTIVE"
	StatusCompleted EnrollmentStatus = "COMPLETED"
	// StatusFailed is accepted by the schema but nothing transitions into it yet.
	StatusFailed EnrollmentStatus = "FAILED"
)

const (
	MaxDisplayNameLen    = 64
	MaxCategoryNameLen   = 64
	MaxNoteLen           = 500
	MaxChallengeTitleLen = 120
	MaxDurationDays      = 3650
	MinPasswordLen       = 8
)

type (
	Kind             string
	Role             string
	ChallengeKind    string
	EnrollmentStatus string

	User struct {
		ID           string    `json:"id"`
		DisplayName  string    `json:"displayName"`
		PasswordHash string    `json:"-"`
		Role         Role      `json:"role"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	Category struct {
		ID        string    `json:"id"`
		UserID    string    `json:"-"`
		Name      string    `json:"name"`
		Kind      Kind      `json:"kind"`
		Icon      string    `json:"icon,omitempty"`
		CreatedAt time.Time `json:"createdAt"`
	}

	// CategoryRef is the display projection of a category attached to a transaction.
	CategoryRef struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Kind Kind   `json:"kind"`
		Icon string `json:"icon,omitempty"`
	}

	Transaction struct {
		ID         string       `json:"id"`
		UserID     string       `json:"-"`
		CategoryID *string      `json:"categoryId"`
		Category   *CategoryRef `json:"category,omitempty"`
		Kind       Kind         `json:"kind"`
		Amount     int64        `json:"amount"`
		OccurredAt time.Time    `json:"occurredAt"`
		Note       string       `json:"note"`
		CreatedAt  time.Time    `json:"createdAt"`
	}

	Challenge struct {
		ID                 string        `json:"id"`
		Title              string        `json:"title"`
		Description        string        `json:"description"`
		Kind               ChallengeKind `json:"type"`
		DurationDays       int           `json:"durationDays"`
		TargetAmountPerDay *int64        `json:"targetAmountPerDay,omitempty"`
		Active             bool          `json:"isActive"`
		Public             bool          `json:"isPublic"`
		CreatedBy          string        `json:"createdBy,omitempty"`
		StartDate          *time.Time    `json:"startDate,omitempty"`
		CreatedAt          time.Time     `json:"createdAt"`
		UpdatedAt          time.Time     `json:"updatedAt"`
	}

	// ChallengeRef is the part of a challenge resolved onto an enrollment.
	ChallengeRef struct {
		ID                 string        `json:"id"`
		Title              string        `json:"title"`
		Description        string        `json:"description"`
		Kind               ChallengeKind `json:"type"`
		DurationDays       int           `json:"durationDays"`
		TargetAmountPerDay *int64        `json:"targetAmountPerDay,omitempty"`
	}

	Enrollment struct {
		ID              string           `json:"id"`
		UserID          string           `json:"-"`
		ChallengeID     string           `json:"challengeId"`
		Challenge       *ChallengeRef    `json:"challenge,omitempty"`
		Status          EnrollmentStatus `json:"status"`
		JoinedAt        time.Time        `json:"joinedAt"`
		StartDate       time.Time        `json:"startDate"`
		LastCheckInDate *time.Time       `json:"lastCheckInDate"`
		CurrentStreak   int              `json:"currentStreak"`
		LongestStreak   int              `json:"longestStreak"`
		CompletedDays   int              `json:"completedDays"`
		Version         int64            `json:"-"`
	}
)

func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

// ParseKind accepts "income" or "expense" in any case.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", InvalidField("kind", "must be income or expense")
	}
	return k, nil
}

func (r Role) Valid() bool {
	return r == RoleUser || r == RolePartner || r == RoleAdmin
}

// ParseRole maps an upstream role claim onto a Role. Unknown or empty claims are ordinary users.
func ParseRole(s string) Role {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return RoleUser
	}
	return r
}

// CanManageChallenges reports whether the role may create challenge templates.
func (r Role) CanManageChallenges() bool {
	return r == RoleAdmin || r == RolePartner
}

func (k ChallengeKind) Valid() bool {
	switch k {
	case ChallengeNoSpend, ChallengeSaveFixed, ChallengeCustom:
		return true
	}
	return false
}

func ParseChallengeKind(s string) (ChallengeKind, error) {
	k := ChallengeKind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", InvalidField("type", "must be one of NO_SPEND, SAVE_FIXED, CUSTOM")
	}
	return k, nil
}

func (c Category) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return InvalidField("name", "is required")
	}
	if utf8.RuneCountInString(name) > MaxCategoryNameLen {
		return InvalidField("name", "is too long")
	}
	if !c.Kind.Valid() {
		return InvalidField("kind", "must be income or expense")
	}
	return nil
}

func (t Transaction) Validate() error {
	if !t.Kind.Valid() {
		return InvalidField("kind", "must be income or expense")
	}
	if t.Amount <= 0 {
		return InvalidField("amount", "must be greater than zero")
	}
	if t.OccurredAt.IsZero() {
		return InvalidField("occurredAt", "is required")
	}
	if utf8.RuneCountInString(t.Note) > MaxNoteLen {
		return InvalidField("note", "is too long")
	}
	return nil
}

func (c Challenge) Validate() error {
	title := strings.TrimSpace(c.Title)
	if title == "" {
		return InvalidField("title", "is required")
	}
	if utf8.RuneCountInString(title) > MaxChallengeTitleLen {
		return InvalidField("title", "is too long")
	}
	if !c.Kind.Valid() {
		return InvalidField("type", "must be one of NO_SPEND, SAVE_FIXED, CUSTOM")
	}
	if c.DurationDays < 1 || c.DurationDays > MaxDurationDays {
		return InvalidField("durationDays", "must be between 1 and 3650")
	}
	if c.TargetAmountPerDay != nil && *c.TargetAmountPerDay <= 0 {
		return InvalidField("targetAmountPerDay", "must be greater than zero")
	}
	if c.Kind == ChallengeSaveFixed && c.TargetAmountPerDay == nil {
		return InvalidField("targetAmountPerDay", "is required for SAVE_FIXED challenges")
	}
	return nil
}

// VisibleTo reports whether userID may see and join the challenge.
func (c Challenge) VisibleTo(userID string) bool {
	return c.Public || (c.CreatedBy != "" && c.CreatedBy == userID)
}

// Ref projects the challenge onto the fields shown alongside an enrollment.
func (c Challenge) Ref() *ChallengeRef {
	return &ChallengeRef{
		ID:                 c.ID,
		Title:              c.Title,
		Description:        c.Description,
		Kind:               c.Kind,
		DurationDays:       c.DurationDays,
		TargetAmountPerDay: c.TargetAmountPerDay,
	}
}
