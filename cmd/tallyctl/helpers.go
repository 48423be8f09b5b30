package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tally/internal/core"
	"tally/internal/storage"
)

// openStore opens the configured database, applying pending migrations.
func openStore() (*storage.SQLiteRepository, error) {
	path := viper.GetString("database.path")
	if path == "" {
		return nil, fmt.Errorf("no database path: set --db or SQLITE_DB_PATH")
	}
	repo, err := storage.NewSQLiteRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	return repo, nil
}

func location() (*time.Location, error) {
	tz := viper.GetString("timezone")
	if tz == "" || tz == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return loc, nil
}

func newTable(cmd *cobra.Command) *tabwriter.Writer {
	return tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
}

func printChallenges(w io.Writer, list []core.Challenge, loc *time.Location) {
	fmt.Fprintln(w, "ID\tTITLE\tTYPE\tDAYS\tTARGET\tACTIVE\tPUBLIC\tCREATED")
	for _, c := range list {
		target := "-"
		if c.TargetAmountPerDay != nil {
			target = core.FormatAmount(*c.TargetAmountPerDay)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%t\t%t\t%s\n",
			c.ID, c.Title, c.Kind, c.DurationDays, target, c.Active, c.Public,
			c.CreatedAt.In(loc).Format("2006-01-02"))
	}
}
