package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tally/internal/challenge"
	"tally/internal/core"
)

// cliActor acts as an administrator. Templates it creates have no owner
// unless --owner is given.
func cliActor(owner string) challenge.Actor {
	return challenge.Actor{UserID: owner, Role: core.RoleAdmin}
}

func challengesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "challenges",
		Short: "Manage challenge templates",
	}
	cmd.AddCommand(listChallengesCmd())
	cmd.AddCommand(createChallengeCmd())
	cmd.AddCommand(deactivateChallengeCmd())
	return cmd
}

func listChallengesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every challenge template, active or not",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loc, err := location()
			if err != nil {
				return err
			}
			repo, err := openStore()
			if err != nil {
				return err
			}
			defer repo.Close()

			list, err := challenge.NewCatalog(repo).ListAll(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No challenges found. Try 'tallyctl seed challenges'.")
				return nil
			}
			w := newTable(cmd)
			defer w.Flush()
			printChallenges(w, list, loc)
			return nil
		},
	}
}

func createChallengeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a challenge template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			description, _ := cmd.Flags().GetString("description")
			typ, _ := cmd.Flags().GetString("type")
			days, _ := cmd.Flags().GetInt("days")
			target, _ := cmd.Flags().GetString("target")
			private, _ := cmd.Flags().GetBool("private")
			start, _ := cmd.Flags().GetString("start")
			owner, _ := cmd.Flags().GetString("owner")

			kind, err := core.ParseChallengeKind(typ)
			if err != nil {
				return err
			}
			loc, err := location()
			if err != nil {
				return err
			}

			ch := core.Challenge{
				Title:        args[0],
				Description:  description,
				Kind:         kind,
				DurationDays: days,
				Active:       true,
				Public:       !private,
			}
			if target != "" {
				v, err := core.ParseAmount(target)
				if err != nil {
					return err
				}
				ch.TargetAmountPerDay = &v
			}
			if start != "" {
				t, err := time.ParseInLocation("2006-01-02", start, loc)
				if err != nil {
					return fmt.Errorf("invalid --start %q: want YYYY-MM-DD", start)
				}
				ch.StartDate = &t
			}

			repo, err := openStore()
			if err != nil {
				return err
			}
			defer repo.Close()

			created, err := challenge.NewCatalog(repo).Create(cmd.Context(), cliActor(owner), ch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created challenge %s\n", created.ID)
			return nil
		},
	}
	cmd.Flags().String("description", "", "description shown to users")
	cmd.Flags().String("type", string(core.ChallengeNoSpend), "NO_SPEND, SAVE_FIXED or CUSTOM")
	cmd.Flags().Int("days", 30, "duration in days")
	cmd.Flags().String("target", "", "daily target amount, required for SAVE_FIXED")
	cmd.Flags().Bool("private", false, "hide the template from other users")
	cmd.Flags().String("start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().String("owner", "", "user id recorded as the creator")
	return cmd
}

func deactivateChallengeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <challenge-id>",
		Short: "Stop new users from joining a challenge",
		Long:  `Mark the template inactive. Existing enrollments keep running.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openStore()
			if err != nil {
				return err
			}
			defer repo.Close()

			inactive := false
			ch, err := challenge.NewCatalog(repo).Update(cmd.Context(), cliActor(""), args[0], challenge.Patch{Active: &inactive})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deactivated challenge %s (%s)\n", ch.ID, ch.Title)
			return nil
		},
	}
}
