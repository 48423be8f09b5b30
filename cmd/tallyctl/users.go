package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tally/internal/core"
	"tally/internal/services"
)

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(addUserCmd())
	cmd.AddCommand(deleteUserCmd())
	cmd.AddCommand(listUsersCmd())
	return cmd
}

func addUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <display-name>",
		Short: "Create a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, _ := cmd.Flags().GetString("password")
			roleFlag, _ := cmd.Flags().GetString("role")
			id, _ := cmd.Flags().GetString("id")

			name := strings.TrimSpace(args[0])
			if name == "" {
				return fmt.Errorf("display name is required")
			}
			if len(password) < core.MinPasswordLen {
				return fmt.Errorf("password must be at least %d characters", core.MinPasswordLen)
			}
			role := core.Role(strings.ToUpper(strings.TrimSpace(roleFlag)))
			if !role.Valid() {
				return fmt.Errorf("unknown role %q: want USER, PARTNER or ADMIN", roleFlag)
			}

			hash, err := services.HashPassword(password)
			if err != nil {
				return err
			}

			repo, err := openStore()
			if err != nil {
				return err
			}
			defer repo.Close()

			u, err := repo.CreateUser(cmd.Context(), core.User{
				ID:           id,
				DisplayName:  name,
				PasswordHash: hash,
				Role:         role,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", u.ID, u.Role)
			return nil
		},
	}
	cmd.Flags().String("password", "", "initial password")
	cmd.Flags().String("role", string(core.RoleUser), "role: USER, PARTNER or ADMIN")
	cmd.Flags().String("id", "", "user id (default: a new UUID)")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func deleteUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete a user and everything they own",
		Long: `Delete the user. Their categories, transactions and enrollments go with
them; challenges they created stay but lose their owner.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openStore()
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := services.NewProfileService(repo, nil, nil).DeleteMe(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted user %s\n", args[0])
			return nil
		},
	}
}

func listUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
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

			users, err := repo.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			if len(users) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No users found. Use 'tallyctl users add' to create one.")
				return nil
			}

			w := newTable(cmd)
			defer w.Flush()
			fmt.Fprintln(w, "ID\tNAME\tROLE\tCREATED")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.DisplayName, u.Role, u.CreatedAt.In(loc).Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}
