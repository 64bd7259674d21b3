// Package cli implements sitectl, the administrator's command line for the site
// content, the newsletter list, contact messages and the database schema.
package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"authorsite/api/internal/config"
)

type rootOptions struct {
	cfgFile string
	cfg     config.Config
}

// NewRootCommand builds the sitectl command tree. Settings come from, in increasing
// precedence: the API server's environment variables, sitectl.yaml, SITE_* variables
// and flags.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "sitectl",
		Short:         "Administer the author site",
		Long:          `sitectl edits the site content, exports newsletter subscribers, triages contact messages and migrates the database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.initializeConfig(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "config file (default is ./sitectl.yaml)")
	flags.String("data-dir", "", "directory of the local store")
	flags.String("database-url", "", "PostgreSQL connection string; empty uses the local store")
	flags.String("migrations-dir", "", "directory of the SQL migrations")
	flags.String("redis-url", "", "Redis URL used to notify running API instances")
	flags.String("env", "", "environment name (development, production)")

	root.AddCommand(
		newContentCommand(opts),
		newImageCommand(),
		newSubscribersCommand(opts),
		newMessagesCommand(opts),
		newMigrateCommand(opts),
		newDataCommand(opts),
	)
	return root
}

var flagKeys = map[string]string{
	"data-dir":       "data_dir",
	"database-url":   "database_url",
	"migrations-dir": "migrations_dir",
	"redis-url":      "redis_url",
	"env":            "env",
}

func (o *rootOptions) initializeConfig(cmd *cobra.Command) error {
	base := config.Load()
	v := viper.New()

	v.SetDefault("data_dir", base.DataDir)
	v.SetDefault("database_url", base.DatabaseURL)
	v.SetDefault("migrations_dir", base.MigrationsDir)
	v.SetDefault("redis_url", base.RedisURL)
	v.SetDefault("env", base.Environment)
	v.SetDefault("local_quota_bytes", base.LocalQuotaBytes)

	if o.cfgFile != "" {
		v.SetConfigFile(o.cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("sitectl")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("SITE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || o.cfgFile != "" {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	base.DataDir = v.GetString("data_dir")
	base.DatabaseURL = v.GetString("database_url")
	base.MigrationsDir = v.GetString("migrations_dir")
	base.RedisURL = v.GetString("redis_url")
	base.Environment = v.GetString("env")
	base.LocalQuotaBytes = v.GetInt("local_quota_bytes")
	o.cfg = base
	return nil
}
