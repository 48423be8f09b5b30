package challenge

import (
	"context"
	"fmt"
	"log/slog"

	"tally/internal/core"
)

var dailySaving int64 = 100000

// Defaults are the templates installed by `tallyctl seed challenges`.
var Defaults = []core.Challenge{
	{
		Title:        "30 days without milk tea",
		Description:  "Skip milk tea for a month and watch the savings pile up.",
		Kind:         core.ChallengeNoSpend,
		DurationDays: 30,
	},
	{
		Title:              "Save 100,000 per day",
		Description:        "Put aside a fixed amount every day.",
		Kind:               core.ChallengeSaveFixed,
		DurationDays:       30,
		TargetAmountPerDay: &dailySaving,
	},
	{
		Title:        "7 days eating at home",
		Description:  "Cook every meal yourself for a week.",
		Kind:         core.ChallengeNoSpend,
		DurationDays: 7,
	},
	{
		Title:        "14 days without online shopping",
		Description:  "No online orders for two weeks.",
		Kind:         core.ChallengeNoSpend,
		DurationDays: 14,
	},
	{
		Title:        "21-day expense journaling",
		Description:  "Record every expense, every day, for three weeks.",
		Kind:         core.ChallengeCustom,
		DurationDays: 21,
	},
}

// SeedDefaults installs the default templates as active public challenges
// without an owner. Titles that already exist are skipped, so running it again
// is harmless. It returns how many templates were inserted.
func (c *Catalog) SeedDefaults(ctx context.Context) (int, error) {
	inserted := 0
	for _, tmpl := range Defaults {
		exists, err := c.store.ChallengeTitleExists(ctx, tmpl.Title)
		if err != nil {
			return inserted, fmt.Errorf("seed challenges: %w", err)
		}
		if exists {
			slog.DebugContext(ctx, "Challenge already seeded", "title", tmpl.Title)
			continue
		}

		ch := tmpl
		ch.Active = true
		ch.Public = true
		if ch.TargetAmountPerDay != nil {
			v := *ch.TargetAmountPerDay
			ch.TargetAmountPerDay = &v
		}
		if _, err := c.store.CreateChallenge(ctx, ch); err != nil {
			return inserted, fmt.Errorf("seed challenge %q: %w", ch.Title, err)
		}
		inserted++
	}
	slog.InfoContext(ctx, "Challenge templates seeded", "inserted", inserted, "total", len(Defaults))
	return inserted, nil
}
