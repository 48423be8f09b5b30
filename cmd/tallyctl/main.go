package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"tally/internal/cli"
	applog "tally/internal/log"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tallyctl",
		Short: "Administer a tally database",
		Long: `tallyctl manages the tally SQLite database directly: it applies
migrations, seeds the default challenge templates and manages users and
challenges without going through the HTTP API.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./tally.yaml)")
	root.PersistentFlags().String("db", "./data/tally.db", "path to the SQLite database")
	root.PersistentFlags().String("timezone", "Local", "IANA time zone for dates")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	_ = viper.BindPFlag("database.path", root.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("timezone", root.PersistentFlags().Lookup("timezone"))
	_ = viper.BindPFlag("logging.level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(migrateCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(usersCmd())
	root.AddCommand(challengesCmd())
	return root
}

func main() {
	cli.LoadEnvFile()

	ctx, stop := cli.SignalContext(applog.New(applog.DefaultConfig()))
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("tally")
		viper.SetConfigType("yaml")
	}

	// SQLITE_DB_PATH, TIMEZONE and LOG_LEVEL are shared with the server.
	_ = viper.BindEnv("database.path", "SQLITE_DB_PATH")
	_ = viper.BindEnv("timezone", "TIMEZONE")
	_ = viper.BindEnv("logging.level", "LOG_LEVEL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	cli.SetupCLILogger(viper.GetString("logging.level"), "text", applog.ComponentCLI)
	return nil
}
