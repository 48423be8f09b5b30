package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tally/internal/challenge"
)

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Install default data",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "challenges",
		Short: "Install the default challenge templates",
		Long:  `Insert the built-in challenge templates. Templates whose title already exists are skipped.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := openStore()
			if err != nil {
				return err
			}
			defer repo.Close()

			n, err := challenge.NewCatalog(repo).SeedDefaults(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d of %d challenge templates\n", n, len(challenge.Defaults))
			return nil
		},
	})
	return cmd
}
